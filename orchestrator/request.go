package orchestrator

import "github.com/logichill/sagaforge/saga"

// Request is the input to ExecuteSaga.
type Request struct {
	SagaType        string
	SagaID          string // optional; generated if empty
	CorrelationID   string // optional; defaults to saga_id
	AggregateFields map[string]any
}

// StepOutcome is one entry in a Response's step history.
type StepOutcome struct {
	StepName    string
	Status      saga.StepStatus
	ErrorMessage string
}

// Response is the result of ExecuteSaga/GetSagaStatus.
type Response struct {
	SagaID      string
	SagaType    string
	State       saga.State
	Steps       []StepOutcome
	StartedAt   string
	CompletedAt string
}
