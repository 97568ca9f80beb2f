// Package metrics collects the coordination core's Prometheus metrics:
// counters for sagas/steps/compensations/controlled
// failures/events/transitions, histograms for durations, gauges for
// live saga counts. It owns its own prometheus.Registry rather than
// using the global DefaultRegisterer, so a coordinator process can run
// more than one isolated instance (e.g. in tests) without colliding on
// metric names.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the coordination core emits.
type Collector struct {
	registry *prometheus.Registry

	SagasStarted   *prometheus.CounterVec // saga_type
	SagasSucceeded *prometheus.CounterVec // saga_type
	SagasFailed    *prometheus.CounterVec // saga_type, failure_reason

	StepsExecuted *prometheus.CounterVec // saga_type, step_name, participant
	StepsSucceeded *prometheus.CounterVec
	StepsFailed    *prometheus.CounterVec

	CompensationsExecuted  *prometheus.CounterVec // saga_type, step_name, participant
	CompensationsSucceeded *prometheus.CounterVec
	CompensationsFailed    *prometheus.CounterVec

	ControlledFailures *prometheus.CounterVec // kind, participant

	BusinessEventsProduced *prometheus.CounterVec // topic, event_type

	StateTransitions *prometheus.CounterVec // saga_type, from_state, to_state

	SagaDuration          *prometheus.HistogramVec // saga_type, outcome
	StepDuration          *prometheus.HistogramVec // saga_type, outcome
	CompensationDuration  *prometheus.HistogramVec // saga_type, outcome

	ActiveSagas  *prometheus.GaugeVec // saga_type
	SagasByState *prometheus.GaugeVec // saga_type, state
}

// New builds a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		SagasStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_started_total", Help: "Total sagas admitted",
		}, []string{"saga_type"}),
		SagasSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_succeeded_total", Help: "Total sagas reaching Completed",
		}, []string{"saga_type"}),
		SagasFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_failed_total", Help: "Total sagas reaching Failed or Compensated",
		}, []string{"saga_type", "failure_reason"}),
		StepsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_step_executed_total", Help: "Total step executions attempted",
		}, []string{"saga_type", "step_name", "participant"}),
		StepsSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_step_succeeded_total", Help: "Total step executions that succeeded",
		}, []string{"saga_type", "step_name", "participant"}),
		StepsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_step_failed_total", Help: "Total step executions that failed",
		}, []string{"saga_type", "step_name", "participant"}),
		CompensationsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_compensation_executed_total", Help: "Total compensation calls attempted",
		}, []string{"saga_type", "step_name", "participant"}),
		CompensationsSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_compensation_succeeded_total", Help: "Total compensation calls that succeeded",
		}, []string{"saga_type", "step_name", "participant"}),
		CompensationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_compensation_failed_total", Help: "Total compensation calls that failed",
		}, []string{"saga_type", "step_name", "participant"}),
		ControlledFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_controlled_failure_total", Help: "Total synthetic failures injected",
		}, []string{"kind", "participant"}),
		BusinessEventsProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_business_event_total", Help: "Total business events produced",
		}, []string{"topic", "event_type"}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_state_transition_total", Help: "Total saga state transitions",
		}, []string{"saga_type", "from_state", "to_state"}),
		SagaDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "saga_duration_seconds", Help: "Saga wall-clock duration", Buckets: prometheus.DefBuckets,
		}, []string{"saga_type", "outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "saga_step_duration_seconds", Help: "Step wall-clock duration", Buckets: prometheus.DefBuckets,
		}, []string{"saga_type", "outcome"}),
		CompensationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "saga_compensation_duration_seconds", Help: "Compensation wall-clock duration", Buckets: prometheus.DefBuckets,
		}, []string{"saga_type", "outcome"}),
		ActiveSagas: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "saga_active", Help: "Currently non-terminal sagas",
		}, []string{"saga_type"}),
		SagasByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "saga_by_state", Help: "Sagas currently in each state",
		}, []string{"saga_type", "state"}),
	}

	reg.MustRegister(
		c.SagasStarted, c.SagasSucceeded, c.SagasFailed,
		c.StepsExecuted, c.StepsSucceeded, c.StepsFailed,
		c.CompensationsExecuted, c.CompensationsSucceeded, c.CompensationsFailed,
		c.ControlledFailures, c.BusinessEventsProduced, c.StateTransitions,
		c.SagaDuration, c.StepDuration, c.CompensationDuration,
		c.ActiveSagas, c.SagasByState,
	)
	return c
}

// Handler serves GET /saga/metrics in Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordSagaStarted(sagaType string) {
	c.SagasStarted.WithLabelValues(sagaType).Inc()
	c.ActiveSagas.WithLabelValues(sagaType).Inc()
}

func (c *Collector) RecordSagaSucceeded(sagaType string, duration time.Duration) {
	c.SagasSucceeded.WithLabelValues(sagaType).Inc()
	c.ActiveSagas.WithLabelValues(sagaType).Dec()
	c.SagaDuration.WithLabelValues(sagaType, "succeeded").Observe(duration.Seconds())
}

func (c *Collector) RecordSagaFailed(sagaType, reason string, duration time.Duration) {
	c.SagasFailed.WithLabelValues(sagaType, reason).Inc()
	c.ActiveSagas.WithLabelValues(sagaType).Dec()
	c.SagaDuration.WithLabelValues(sagaType, "failed").Observe(duration.Seconds())
}

func (c *Collector) RecordStep(sagaType, stepName, participant string, succeeded bool, duration time.Duration) {
	c.StepsExecuted.WithLabelValues(sagaType, stepName, participant).Inc()
	outcome := "succeeded"
	if succeeded {
		c.StepsSucceeded.WithLabelValues(sagaType, stepName, participant).Inc()
	} else {
		outcome = "failed"
		c.StepsFailed.WithLabelValues(sagaType, stepName, participant).Inc()
	}
	c.StepDuration.WithLabelValues(sagaType, outcome).Observe(duration.Seconds())
}

func (c *Collector) RecordCompensation(sagaType, stepName, participant string, succeeded bool, duration time.Duration) {
	c.CompensationsExecuted.WithLabelValues(sagaType, stepName, participant).Inc()
	outcome := "succeeded"
	if succeeded {
		c.CompensationsSucceeded.WithLabelValues(sagaType, stepName, participant).Inc()
	} else {
		outcome = "failed"
		c.CompensationsFailed.WithLabelValues(sagaType, stepName, participant).Inc()
	}
	c.CompensationDuration.WithLabelValues(sagaType, outcome).Observe(duration.Seconds())
}

func (c *Collector) RecordControlledFailure(kind, participant string) {
	c.ControlledFailures.WithLabelValues(kind, participant).Inc()
}

func (c *Collector) RecordBusinessEvent(topic, eventType string) {
	c.BusinessEventsProduced.WithLabelValues(topic, eventType).Inc()
}

func (c *Collector) RecordTransition(sagaType, fromState, toState string) {
	c.StateTransitions.WithLabelValues(sagaType, fromState, toState).Inc()
}

func (c *Collector) SetSagasByState(sagaType, state string, count float64) {
	c.SagasByState.WithLabelValues(sagaType, state).Set(count)
}
