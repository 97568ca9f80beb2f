// Package failureinjector is the controlled failure injector: a
// sidecar consulted by example participant services before they
// process a step call (their compensation handlers do not consult it),
// so resilience tests can force
// or probabilistically trigger specific failure kinds without
// touching the orchestrator itself.
//
// It is grounded in the chaos-injection shape of a workflow test's
// probability-draw handler (probability draw, optional delay honoring
// ctx.Done, injected-failure counting), but reworked from a single
// failRate into five independent per-kind probabilities plus
// deterministic overrides.
package failureinjector

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/logichill/sagaforge/eventlog"
	"github.com/logichill/sagaforge/metrics"
)

// Input is the participant-call context the injector evaluates
// deterministic overrides against.
type Input struct {
	CustomerID     string
	Amount         float64
	StockRequested int
}

// Verdict is the result of Evaluate.
type Verdict struct {
	ShouldFail bool
	Kind       Kind
	Message    string
}

// Injector draws controlled failures per Config and records every one
// it injects through the event producer and metrics collector.
type Injector struct {
	cfg      Config
	producer eventlog.Producer
	metrics  *metrics.Collector

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds an Injector. rngSeed lets callers make draws
// reproducible in tests; production wiring should pass time.Now().UnixNano().
func New(cfg Config, producer eventlog.Producer, m *metrics.Collector, rngSeed int64) *Injector {
	return &Injector{
		cfg:      cfg,
		producer: producer,
		metrics:  m,
		rng:      rand.New(rand.NewSource(rngSeed)),
	}
}

// Evaluate decides whether serviceName's call for input should be
// rejected, sleeping FailureDelay first when it does. Deterministic
// overrides are checked before any probabilistic draw so they always
// win.
func (inj *Injector) Evaluate(ctx context.Context, serviceName, sagaID string, input Input) Verdict {
	if !inj.cfg.EnableFailures {
		return Verdict{}
	}

	verdict := inj.determine(input)
	if !verdict.ShouldFail {
		return verdict
	}

	if inj.cfg.FailureDelay > 0 {
		select {
		case <-time.After(inj.cfg.FailureDelay):
		case <-ctx.Done():
		}
	}

	inj.metrics.RecordControlledFailure(string(verdict.Kind), serviceName)
	inj.publish(ctx, serviceName, sagaID, verdict)
	return verdict
}

func (inj *Injector) determine(input Input) Verdict {
	if inj.cfg.CustomerFailSuffix != "" && strings.HasSuffix(input.CustomerID, inj.cfg.CustomerFailSuffix) {
		return Verdict{ShouldFail: true, Kind: KindPaymentFailure, Message: fmt.Sprintf("deterministic override: customer_id %q matches fail suffix", input.CustomerID)}
	}
	if inj.cfg.AmountThreshold > 0 && input.Amount > inj.cfg.AmountThreshold {
		return Verdict{ShouldFail: true, Kind: KindPaymentFailure, Message: fmt.Sprintf("deterministic override: amount %.2f exceeds threshold %.2f", input.Amount, inj.cfg.AmountThreshold)}
	}
	if inj.cfg.StockThreshold > 0 && input.StockRequested > inj.cfg.StockThreshold {
		return Verdict{ShouldFail: true, Kind: KindInsufficientStock, Message: fmt.Sprintf("deterministic override: stock request %d exceeds threshold %d", input.StockRequested, inj.cfg.StockThreshold)}
	}

	if kind, ok := inj.drawProbabilistic(); ok {
		return Verdict{ShouldFail: true, Kind: kind, Message: fmt.Sprintf("probabilistic draw: %s", kind)}
	}
	return Verdict{}
}

// drawProbabilistic makes one independent draw per kind and returns
// the first kind that hits;
// evaluation order is fixed so tests stay deterministic given a seeded
// rng.
func (inj *Injector) drawProbabilistic() (Kind, bool) {
	inj.mu.Lock()
	defer inj.mu.Unlock()

	draws := []struct {
		kind Kind
		p    float64
	}{
		{KindInsufficientStock, inj.cfg.InsufficientStockProbability},
		{KindPaymentFailure, inj.cfg.PaymentFailureProbability},
		{KindNetworkTimeout, inj.cfg.NetworkTimeoutProbability},
		{KindDatabaseFailure, inj.cfg.DatabaseFailureProbability},
		{KindServiceUnavailable, inj.cfg.ServiceUnavailableProbability},
	}
	for _, d := range draws {
		if d.p <= 0 {
			continue
		}
		if inj.rng.Float64() < d.p {
			return d.kind, true
		}
	}
	return "", false
}

func (inj *Injector) publish(ctx context.Context, serviceName, sagaID string, verdict Verdict) {
	if inj.producer == nil {
		return
	}
	event := eventlog.New("controlled_failure", sagaID, "Saga", map[string]any{
		"kind":         string(verdict.Kind),
		"service_name": serviceName,
		"message":      verdict.Message,
	}, nil).WithCorrelation(sagaID, sagaID, serviceName)
	_, _, _ = inj.producer.Publish(ctx, "saga.orchestration", event)
}
