package saga

import (
	"sort"
	"time"
)

// Saga is the aggregate root of a distributed transaction run. It is
// created by the orchestrator on request admission and mutated only by
// the orchestrator or the compensation engine; callers outside this
// module should treat it as read-only.
type Saga struct {
	SagaID        string
	SagaType      string
	CorrelationID string
	CurrentState  State
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
	ErrorMessage  string

	Steps       []*SagaStep
	Transitions []*SagaTransition
}

// SagaStep is one named operation in a saga's step plan. Status moves
// monotonically forward except for Completed -> Compensated.
type SagaStep struct {
	StepID               string
	StepName              string
	ParticipantService    string
	Status                StepStatus
	StartedAt             *time.Time
	CompletedAt           *time.Time
	ErrorMessage          string
	CompensationRequired  bool
	CompensatedAt         *time.Time
	ResultData            map[string]any
}

// SagaTransition is an immutable log record of one state change. Once
// appended it is never mutated.
type SagaTransition struct {
	TransitionID string
	SagaID       string
	FromState    State
	ToState      State
	Timestamp    time.Time
	ServiceName  string
	Action       string
	EventKind    EventKind
	Message      string
	Data         map[string]any
}

// New creates a saga in its initial Started state. An empty
// correlationID defaults to sagaID.
func New(sagaID, sagaType, correlationID string) *Saga {
	if correlationID == "" {
		correlationID = sagaID
	}
	now := time.Now()
	return &Saga{
		SagaID:        sagaID,
		SagaType:      sagaType,
		CorrelationID: correlationID,
		CurrentState:  StateStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
		Steps:         make([]*SagaStep, 0, 4),
		Transitions:   make([]*SagaTransition, 0, 8),
	}
}

// IsTerminal reports whether the saga has reached an absorbing state.
func (s *Saga) IsTerminal() bool {
	return s.CurrentState.IsTerminal()
}

// AppendTransition records a transition and advances CurrentState to its
// ToState. It refuses to append past a terminal state and requires
// FromState to match the saga's current state, enforcing a monotonic
// transition log at the in-memory level; the durable equivalent is
// sagastore's optimistic concurrency check on CurrentState.
func (s *Saga) AppendTransition(t *SagaTransition) error {
	if s.IsTerminal() {
		return ErrSagaTerminal(s.SagaID, s.CurrentState)
	}
	if t.FromState != s.CurrentState {
		return ErrUnexpectedState(s.SagaID, s.CurrentState, t.FromState)
	}
	s.Transitions = append(s.Transitions, t)
	s.CurrentState = t.ToState
	s.UpdatedAt = t.Timestamp
	if t.ToState.IsTerminal() {
		completedAt := t.Timestamp
		s.CompletedAt = &completedAt
	}
	return nil
}

// FindStep returns the step with the given name, or nil.
func (s *Saga) FindStep(stepName string) *SagaStep {
	for _, step := range s.Steps {
		if step.StepName == stepName {
			return step
		}
	}
	return nil
}

// UpsertStep inserts or replaces the step record with a matching StepName.
func (s *Saga) UpsertStep(step *SagaStep) {
	for i, existing := range s.Steps {
		if existing.StepName == step.StepName {
			s.Steps[i] = step
			return
		}
	}
	s.Steps = append(s.Steps, step)
}

// CompensatableSteps returns steps with Status == Completed and
// CompensationRequired == true, ordered by descending CompletedAt — the
// order the compensation engine must walk them in.
func (s *Saga) CompensatableSteps() []*SagaStep {
	var out []*SagaStep
	for _, step := range s.Steps {
		if step.Status == StepCompleted && step.CompensationRequired && step.CompletedAt != nil {
			out = append(out, step)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(*out[j].CompletedAt)
	})
	return out
}

// MarkInProgress transitions a step to InProgress and stamps StartedAt.
func (s *SagaStep) MarkInProgress() {
	now := time.Now()
	s.Status = StepInProgress
	s.StartedAt = &now
}

// MarkCompleted transitions a step to Completed, recording its result and
// marking it as requiring compensation if the saga later fails. A step
// that reaches Completed must later reach Compensated or remain
// Completed forever — it may never skip straight to Failed.
func (s *SagaStep) MarkCompleted(data map[string]any) {
	now := time.Now()
	s.Status = StepCompleted
	s.CompletedAt = &now
	s.ResultData = data
	s.CompensationRequired = true
}

// MarkFailed transitions a step to Failed.
func (s *SagaStep) MarkFailed(errMsg string) {
	now := time.Now()
	s.Status = StepFailed
	s.CompletedAt = &now
	s.ErrorMessage = errMsg
}

// MarkCompensated transitions a previously-Completed step to Compensated,
// the one allowed backward edge in the status progression.
func (s *SagaStep) MarkCompensated() {
	now := time.Now()
	s.Status = StepCompensated
	s.CompensatedAt = &now
}
