// Package compensation is the compensation engine: given a saga's
// completed prefix of steps, it walks them in reverse completion
// order, invokes each participant's CompensateStep, and records the
// per-step outcome. Unlike an orchestrator that stops at the first
// compensation failure, this engine continues past failures — a saga
// should get as much cleaned up as possible rather than abandon the
// walk on the first participant that can't reverse its step.
package compensation

import (
	"context"
	"strconv"
	"time"

	"github.com/logichill/sagaforge/eventlog"
	"github.com/logichill/sagaforge/idgen"
	"github.com/logichill/sagaforge/metrics"
	"github.com/logichill/sagaforge/obslog"
	"github.com/logichill/sagaforge/participant"
	"github.com/logichill/sagaforge/saga"
	"github.com/logichill/sagaforge/sagastore"
)

// Engine drives the reverse-order compensation walk.
type Engine struct {
	store      sagastore.Store
	producer   eventlog.Producer
	client     *participant.Client
	metrics    *metrics.Collector
	recorder   *obslog.Recorder
}

// New builds a compensation Engine.
func New(store sagastore.Store, producer eventlog.Producer, client *participant.Client, m *metrics.Collector, rec *obslog.Recorder) *Engine {
	return &Engine{store: store, producer: producer, client: client, metrics: m, recorder: rec}
}

// Result is the outcome of one Run.
type Result struct {
	FinalState    saga.State
	Compensated   []string
	StillFailed   []string
}

// Run walks s.CompensatableSteps() in order (already sorted descending
// by completed_at) and calls CompensateStep on each. It transitions s
// to Compensating first (idempotent if already there), then to
// Compensated if every targeted step succeeded, else Failed.
func (e *Engine) Run(ctx context.Context, s *saga.Saga, reason string) (Result, error) {
	if s.CurrentState != saga.StateCompensating {
		if err := e.transition(ctx, s, saga.StateCompensating, saga.EventKindCompensation, "", reason); err != nil {
			return Result{}, err
		}
	}

	steps := s.CompensatableSteps()
	result := Result{}
	allSucceeded := true

	for _, step := range steps {
		start := time.Now()
		resp, err := e.client.CompensateStep(ctx, step.ParticipantService, participant.CompensateStepRequest{
			SagaID:        s.SagaID,
			StepName:      step.StepName,
			Reason:        reason,
			CorrelationID: s.CorrelationID,
			Data:          step.ResultData,
		})

		succeeded := err == nil && resp != nil && resp.Success
		e.metrics.RecordCompensation(s.SagaType, step.StepName, step.ParticipantService, succeeded, time.Since(start))

		if succeeded {
			step.MarkCompensated()
			_ = e.store.RecordStepResult(ctx, s.SagaID, step)
			result.Compensated = append(result.Compensated, step.StepName)
			e.recorder.Compensation(ctx, s.SagaID, s.SagaType, step.StepName, true, "")
			e.appendTransitionEvent(ctx, s, step.StepName, saga.EventKindCompensation, "Compensation Success")
			continue
		}

		allSucceeded = false
		result.StillFailed = append(result.StillFailed, step.StepName)
		errMsg := compensationErrorMessage(err, resp)
		e.recorder.Compensation(ctx, s.SagaID, s.SagaType, step.StepName, false, errMsg)
		e.appendTransitionEvent(ctx, s, step.StepName, saga.EventKindFailure, "Compensation Failure: "+errMsg)
		// Best-effort: do not short-circuit, keep walking the remaining steps.
	}

	finalState := saga.StateCompensated
	if !allSucceeded {
		finalState = saga.StateFailed
	}
	if err := e.transition(ctx, s, finalState, saga.EventKindCompensation, "", reason); err != nil {
		return result, err
	}
	result.FinalState = finalState
	return result, nil
}

// transition publishes the lifecycle event before committing the new
// state to the store: a publish failure must be treated as a
// transition failure rather than a state change nobody heard about.
func (e *Engine) transition(ctx context.Context, s *saga.Saga, to saga.State, kind saga.EventKind, serviceName, message string) error {
	from := s.CurrentState
	transition := &saga.SagaTransition{
		TransitionID: strconv.FormatInt(idgen.Generate(), 10),
		SagaID:       s.SagaID,
		FromState:    from,
		ToState:      to,
		Timestamp:    time.Now(),
		ServiceName:  serviceName,
		EventKind:    kind,
		Message:      message,
	}

	eventType := "SagaCompensating"
	switch to {
	case saga.StateCompensated:
		eventType = "SagaCompensated"
	case saga.StateFailed:
		eventType = "SagaFailed"
	}
	if err := e.publish(ctx, s, eventType, map[string]any{"from_state": string(from), "to_state": string(to)}); err != nil {
		return err
	}

	if err := e.store.UpdateSagaState(ctx, s.SagaID, from, transition); err != nil {
		return err
	}
	_ = s.AppendTransition(transition)
	e.metrics.RecordTransition(s.SagaType, string(from), string(to))
	e.recorder.Transition(ctx, s.SagaID, s.SagaType, string(from), string(to))
	return nil
}

// appendTransitionEvent publishes a per-step compensation outcome
// event. A publish failure here is logged and otherwise ignored rather
// than aborted on, consistent with Run's own best-effort walk: one
// step's event delivery failing must not stop the remaining steps from
// being compensated.
func (e *Engine) appendTransitionEvent(ctx context.Context, s *saga.Saga, stepName string, kind saga.EventKind, message string) {
	eventType := "StepCompensated"
	if kind == saga.EventKindFailure {
		eventType = "StepCompensationFailed"
	}
	if err := e.publish(ctx, s, eventType, map[string]any{"step_name": stepName, "message": message}); err != nil {
		e.recorder.Emit(ctx, obslog.Record{
			EventType: "event_publish_failed", SagaID: s.SagaID, SagaType: s.SagaType,
			Category: "compensation", Severity: obslog.SeverityError,
			Data: map[string]any{"step_name": stepName, "error": err.Error()},
		})
	}
}

// publish returns any producer error instead of swallowing it, so
// callers that require delivery (transition) can fail the transition
// rather than commit a state change their event log never recorded.
func (e *Engine) publish(ctx context.Context, s *saga.Saga, eventType string, data map[string]any) error {
	event := eventlog.New(eventType, s.SagaID, "Saga", data, nil).
		WithCorrelation(s.CorrelationID, s.SagaID, "saga-coordinator")
	if _, _, err := e.producer.Publish(ctx, "saga.orchestration", event); err != nil {
		return err
	}
	e.metrics.RecordBusinessEvent("saga.orchestration", eventType)
	return nil
}

func compensationErrorMessage(err error, resp *participant.CompensateStepResponse) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return resp.ErrorMessage
	}
	return "unknown compensation failure"
}
