// Package obslog emits a structured, newline-delimited JSON event log:
// one record per lifecycle milestone (start, step complete, step fail,
// transition, compensation, controlled failure), independent of
// whatever logging.ILogger the process is
// configured with — obslog writes the canonical record to its own
// io.Writer (typically stdout, easy to ship to a log aggregator) while
// also forwarding a human-readable line through logging.ILogger for
// local operators, layering a component logger over whatever sink is
// configured.
package obslog

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/logichill/sagaforge/logging"
)

// Severity mirrors the levels logging.ILogger already exposes, kept as
// its own type since an obslog Record's severity is a first-class field
// in the JSON output, not a log-call side channel.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Record is one structured lifecycle milestone.
type Record struct {
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	SagaID        string         `json:"saga_id,omitempty"`
	SagaType      string         `json:"saga_type,omitempty"`
	ServiceName   string         `json:"service_name,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Severity      Severity       `json:"severity"`
	Category      string         `json:"category"`
	Data          map[string]any `json:"data,omitempty"`
}

// Recorder writes Records as newline-delimited JSON.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	logger logging.ILogger
}

// New creates a Recorder writing to w. If w is nil, os.Stdout is used.
func New(w io.Writer, logger logging.ILogger) *Recorder {
	if w == nil {
		w = os.Stdout
	}
	if logger == nil {
		logger = logging.ComponentLogger("obslog")
	}
	return &Recorder{w: w, logger: logger}
}

// Emit writes rec as one JSON line and mirrors it to the component logger.
func (r *Recorder) Emit(ctx context.Context, rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.Severity == "" {
		rec.Severity = SeverityInfo
	}

	r.mu.Lock()
	enc := json.NewEncoder(r.w)
	_ = enc.Encode(rec)
	r.mu.Unlock()

	fields := []logging.Field{
		logging.String("event", rec.EventType),
		logging.String("category", rec.Category),
	}
	if rec.SagaID != "" {
		fields = append(fields, logging.String("saga_id", rec.SagaID))
	}
	if rec.SagaType != "" {
		fields = append(fields, logging.String("saga_type", rec.SagaType))
	}
	switch rec.Severity {
	case SeverityWarn:
		r.logger.Warn(ctx, rec.EventType, fields...)
	case SeverityError:
		r.logger.Error(ctx, rec.EventType, fields...)
	default:
		r.logger.Info(ctx, rec.EventType, fields...)
	}
}

// SagaStarted records a saga admission.
func (r *Recorder) SagaStarted(ctx context.Context, sagaID, sagaType, correlationID string) {
	r.Emit(ctx, Record{EventType: "saga_started", SagaID: sagaID, SagaType: sagaType, CorrelationID: correlationID, Category: "lifecycle"})
}

// StepCompleted records a successful step.
func (r *Recorder) StepCompleted(ctx context.Context, sagaID, sagaType, stepName, serviceName string) {
	r.Emit(ctx, Record{EventType: "step_completed", SagaID: sagaID, SagaType: sagaType, ServiceName: serviceName, Category: "step",
		Data: map[string]any{"step_name": stepName}})
}

// StepFailed records a failed step.
func (r *Recorder) StepFailed(ctx context.Context, sagaID, sagaType, stepName, serviceName, reason string) {
	r.Emit(ctx, Record{EventType: "step_failed", SagaID: sagaID, SagaType: sagaType, ServiceName: serviceName, Category: "step", Severity: SeverityWarn,
		Data: map[string]any{"step_name": stepName, "reason": reason}})
}

// Transition records a saga state transition.
func (r *Recorder) Transition(ctx context.Context, sagaID, sagaType, from, to string) {
	r.Emit(ctx, Record{EventType: "state_transition", SagaID: sagaID, SagaType: sagaType, Category: "transition",
		Data: map[string]any{"from_state": from, "to_state": to}})
}

// Compensation records a compensation outcome for a single step.
func (r *Recorder) Compensation(ctx context.Context, sagaID, sagaType, stepName string, succeeded bool, reason string) {
	sev := SeverityInfo
	if !succeeded {
		sev = SeverityWarn
	}
	r.Emit(ctx, Record{EventType: "compensation", SagaID: sagaID, SagaType: sagaType, Category: "compensation", Severity: sev,
		Data: map[string]any{"step_name": stepName, "succeeded": succeeded, "reason": reason}})
}

// ControlledFailure records an injected synthetic failure.
func (r *Recorder) ControlledFailure(ctx context.Context, sagaID, sagaType, kind, participant string) {
	r.Emit(ctx, Record{EventType: "controlled_failure", SagaID: sagaID, SagaType: sagaType, ServiceName: participant, Category: "controlled_failure",
		Data: map[string]any{"kind": kind}})
}
