// Package orchestrator is the saga scheduler: it admits saga requests,
// walks a registered step plan to completion, and delegates to the
// compensation engine on any step failure. The admit/loop/compensate
// shape follows a typical orchestrator-style saga coordinator, reworked
// from dynamically-built command/callback sagas to a statically
// registered Plan per saga type, since callers never supply an ad hoc
// step list here.
package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/logichill/sagaforge/compensation"
	"github.com/logichill/sagaforge/eventlog"
	"github.com/logichill/sagaforge/idgen"
	"github.com/logichill/sagaforge/logging"
	"github.com/logichill/sagaforge/metrics"
	"github.com/logichill/sagaforge/obslog"
	"github.com/logichill/sagaforge/participant"
	"github.com/logichill/sagaforge/saga"
	"github.com/logichill/sagaforge/sagastore"
)

// SagaDeadline is the soft per-saga deadline value. The Coordinator does
// not enforce it: no timer forces compensation once a saga runs longer.
const SagaDeadline = 5 * time.Minute

// Coordinator is the orchestrator.
type Coordinator struct {
	store    sagastore.Store
	producer eventlog.Producer
	client   *participant.Client
	plans    *PlanRegistry
	engine   *compensation.Engine
	metrics  *metrics.Collector
	recorder *obslog.Recorder
	logger   logging.ILogger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New wires a Coordinator from its collaborators.
func New(store sagastore.Store, producer eventlog.Producer, client *participant.Client, plans *PlanRegistry, engine *compensation.Engine, m *metrics.Collector, rec *obslog.Recorder, logger logging.ILogger) *Coordinator {
	if logger == nil {
		logger = logging.ComponentLogger("orchestrator")
	}
	return &Coordinator{
		store: store, producer: producer, client: client, plans: plans,
		engine: engine, metrics: m, recorder: rec, logger: logger,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-saga mutex, ensuring at most one goroutine in
// this process mutates a given saga_id at a time.
func (c *Coordinator) lockFor(sagaID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	m, ok := c.locks[sagaID]
	if !ok {
		m = &sync.Mutex{}
		c.locks[sagaID] = m
	}
	return m
}

// ExecuteSaga admits a saga request and drives its plan to completion.
func (c *Coordinator) ExecuteSaga(ctx context.Context, req Request) (*Response, error) {
	plan, ok := c.plans.Resolve(req.SagaType)
	if !ok {
		return nil, saga.ErrPlanUnknown(req.SagaType)
	}

	sagaID := req.SagaID
	if sagaID == "" {
		sagaID = uuid.NewString()
	}

	lock := c.lockFor(sagaID)
	lock.Lock()
	defer lock.Unlock()

	if req.SagaID != "" {
		existing, err := c.store.ReadSaga(ctx, sagaID)
		if err == nil {
			if !existing.IsTerminal() {
				// Duplicate admission on a non-terminal saga is idempotent.
				return toResponse(existing), nil
			}
			return nil, saga.ErrAlreadyExists(sagaID)
		}
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = sagaID
	}

	s := saga.New(sagaID, req.SagaType, correlationID)
	s.Transitions = append(s.Transitions, &saga.SagaTransition{
		TransitionID: transitionID(),
		SagaID:       sagaID,
		FromState:    "",
		ToState:      saga.StateStarted,
		Timestamp:    s.CreatedAt,
		EventKind:    saga.EventKindSuccess,
	})
	if err := c.publish(ctx, s, "SagaStarted", nil); err != nil {
		return nil, err
	}
	if err := c.store.CreateSaga(ctx, s); err != nil {
		return nil, err
	}
	c.metrics.RecordSagaStarted(req.SagaType)
	c.recorder.SagaStarted(ctx, sagaID, req.SagaType, correlationID)

	priorResults := make(map[string]map[string]any)
	sagaStart := time.Now()

	for i, step := range plan.Steps {
		stepRecord := &saga.SagaStep{StepName: step.StepName, ParticipantService: step.ParticipantService}
		stepRecord.MarkInProgress()
		_ = c.store.RecordStepResult(ctx, sagaID, stepRecord)
		s.UpsertStep(stepRecord)

		if err := c.transition(ctx, s, step.InProgressState, saga.EventKindSuccess, step.ParticipantService, ""); err != nil {
			return nil, err
		}

		stepStart := time.Now()
		data := buildStepData(req.AggregateFields, priorResults)
		resp, err := c.client.ExecuteStep(ctx, step.ParticipantService, participant.ExecuteStepRequest{
			SagaID: sagaID, StepName: step.StepName, CorrelationID: correlationID, Data: data,
		})
		succeeded := err == nil && resp != nil && resp.Success
		c.metrics.RecordStep(req.SagaType, step.StepName, step.ParticipantService, succeeded, time.Since(stepStart))

		if !succeeded {
			reason := stepFailureReason(err, resp)
			stepRecord.MarkFailed(reason)
			if pubErr := c.publish(ctx, s, "SagaStepFailed", map[string]any{"step_name": step.StepName, "reason": reason}); pubErr != nil {
				return nil, pubErr
			}
			_ = c.store.RecordStepResult(ctx, sagaID, stepRecord)
			s.UpsertStep(stepRecord)
			c.recorder.StepFailed(ctx, sagaID, req.SagaType, step.StepName, step.ParticipantService, reason)

			if transErr := c.transition(ctx, s, saga.StateCompensating, saga.EventKindFailure, step.ParticipantService, reason); transErr != nil {
				return nil, transErr
			}

			result, compErr := c.engine.Run(ctx, s, reason)
			if compErr != nil {
				return nil, compErr
			}
			c.metrics.RecordSagaFailed(req.SagaType, reason, time.Since(sagaStart))
			_ = result
			return toResponse(s), nil
		}

		stepRecord.MarkCompleted(resp.Data)
		_ = c.store.RecordStepResult(ctx, sagaID, stepRecord)
		s.UpsertStep(stepRecord)
		priorResults[step.StepName] = resp.Data
		c.recorder.StepCompleted(ctx, sagaID, req.SagaType, step.StepName, step.ParticipantService)

		if err := c.transition(ctx, s, step.CompletedState, saga.EventKindSuccess, step.ParticipantService, ""); err != nil {
			return nil, err
		}

		if i == len(plan.Steps)-1 && step.CompletedState.IsTerminal() {
			if err := c.publish(ctx, s, "SagaCompleted", nil); err != nil {
				return nil, err
			}
			c.metrics.RecordSagaSucceeded(req.SagaType, time.Since(sagaStart))
		}
	}

	return toResponse(s), nil
}

// GetSagaStatus returns a full saga snapshot.
func (c *Coordinator) GetSagaStatus(ctx context.Context, sagaID string) (*Response, error) {
	s, err := c.store.ReadSaga(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	return toResponse(s), nil
}

// Compensate forces compensation of a non-terminal saga. It is
// idempotent: calling it again after compensation already ran is a
// no-op that returns the existing terminal result; calling it
// concurrently is serialized by the per-saga lock, so only one
// invocation actually walks the compensation engine.
func (c *Coordinator) Compensate(ctx context.Context, sagaID string) (*Response, error) {
	lock := c.lockFor(sagaID)
	lock.Lock()
	defer lock.Unlock()

	s, err := c.store.ReadSaga(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	if s.CurrentState == saga.StateCompleted {
		return nil, saga.ErrAlreadyTerminalSuccess(sagaID)
	}
	if s.CurrentState == saga.StateCompensated || s.CurrentState == saga.StateFailed {
		return toResponse(s), nil
	}

	if s.CurrentState != saga.StateCompensating {
		if err := c.transition(ctx, s, saga.StateCompensating, saga.EventKindCompensation, "", "compensation requested"); err != nil {
			return nil, err
		}
	}
	if _, err := c.engine.Run(ctx, s, "compensation requested"); err != nil {
		return nil, err
	}
	return toResponse(s), nil
}

// ReplayIncomplete implements crash recovery: for every non-terminal
// saga found at startup, it forces compensation rather than resuming
// in-flight steps, bounding the blast radius of a crash with an
// unknown participant outcome.
func (c *Coordinator) ReplayIncomplete(ctx context.Context) error {
	sagas, err := c.store.ReplayIncomplete(ctx)
	if err != nil {
		return err
	}
	for _, s := range sagas {
		c.logger.Warn(ctx, "resuming non-terminal saga via forced compensation", logging.String("saga_id", s.SagaID))
		if _, err := c.Compensate(ctx, s.SagaID); err != nil {
			c.logger.Error(ctx, "replay compensation failed", logging.Error(err), logging.String("saga_id", s.SagaID))
		}
	}
	return nil
}

// transition publishes the StateTransition event before committing the
// new state: a caller must treat a publish failure as a transition
// failure, never as a transition that happened but went unannounced.
func (c *Coordinator) transition(ctx context.Context, s *saga.Saga, to saga.State, kind saga.EventKind, serviceName, message string) error {
	from := s.CurrentState
	t := &saga.SagaTransition{
		TransitionID: transitionID(),
		SagaID:       s.SagaID,
		FromState:    from,
		ToState:      to,
		Timestamp:    time.Now(),
		ServiceName:  serviceName,
		EventKind:    kind,
		Message:      message,
	}
	if err := c.publish(ctx, s, "StateTransition", map[string]any{"from_state": string(from), "to_state": string(to)}); err != nil {
		return err
	}
	if err := c.store.UpdateSagaState(ctx, s.SagaID, from, t); err != nil {
		return err
	}
	if err := s.AppendTransition(t); err != nil {
		return err
	}
	c.metrics.RecordTransition(s.SagaType, string(from), string(to))
	c.recorder.Transition(ctx, s.SagaID, s.SagaType, string(from), string(to))
	return nil
}

// publish returns any producer error to the caller instead of
// swallowing it: the caller must treat a publish failure as a step
// failure, since the saga's recorded history would otherwise diverge
// from what downstream consumers actually observed.
func (c *Coordinator) publish(ctx context.Context, s *saga.Saga, eventType string, data map[string]any) error {
	event := eventlog.New(eventType, s.SagaID, "Saga", data, nil).
		WithCorrelation(s.CorrelationID, s.SagaID, "saga-coordinator")
	if _, _, err := c.producer.Publish(ctx, "saga.orchestration", event); err != nil {
		c.logger.Error(ctx, "failed to publish saga event", logging.Error(err), logging.String("saga_id", s.SagaID))
		return err
	}
	c.metrics.RecordBusinessEvent("saga.orchestration", eventType)
	return nil
}

func buildStepData(aggregateFields map[string]any, priorResults map[string]map[string]any) map[string]any {
	data := make(map[string]any, len(aggregateFields)+1)
	for k, v := range aggregateFields {
		data[k] = v
	}
	if len(priorResults) > 0 {
		data["prior_results"] = priorResults
	}
	return data
}

func stepFailureReason(err error, resp *participant.ExecuteStepResponse) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return resp.ErrorMessage
	}
	return "unknown step failure"
}

func toResponse(s *saga.Saga) *Response {
	steps := make([]StepOutcome, len(s.Steps))
	for i, step := range s.Steps {
		steps[i] = StepOutcome{StepName: step.StepName, Status: step.Status, ErrorMessage: step.ErrorMessage}
	}
	resp := &Response{
		SagaID:    s.SagaID,
		SagaType:  s.SagaType,
		State:     s.CurrentState,
		Steps:     steps,
		StartedAt: s.CreatedAt.Format(time.RFC3339),
	}
	if s.CompletedAt != nil {
		resp.CompletedAt = s.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func transitionID() string {
	return strconv.FormatInt(idgen.Generate(), 10)
}
