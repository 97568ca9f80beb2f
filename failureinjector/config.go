package failureinjector

import "time"

// Kind classifies an injected failure. Distinct from a real
// failure only by provenance — the business event and counter it
// produces carry "controlled_failure" so telemetry can tell them apart.
type Kind string

const (
	KindInsufficientStock  Kind = "insufficient_stock"
	KindPaymentFailure     Kind = "payment_failure"
	KindNetworkTimeout     Kind = "network_timeout"
	KindDatabaseFailure    Kind = "database_failure"
	KindServiceUnavailable Kind = "service_unavailable"
)

// Config is the injector's dial set. Every probability is an
// independent per-call draw; deterministic overrides are checked first
// and always win, so test scenarios stay repeatable regardless of the
// probabilistic dials.
type Config struct {
	EnableFailures bool

	InsufficientStockProbability  float64
	PaymentFailureProbability     float64
	NetworkTimeoutProbability     float64
	DatabaseFailureProbability    float64
	ServiceUnavailableProbability float64

	FailureDelay time.Duration

	// CustomerFailSuffix forces a payment failure when Input.CustomerID
	// ends with this suffix (default "_failed").
	CustomerFailSuffix string
	// AmountThreshold forces a payment failure when Input.Amount exceeds it.
	AmountThreshold float64
	// StockThreshold forces an insufficient-stock failure when
	// Input.StockRequested exceeds it.
	StockThreshold int
}

// DefaultConfig returns the injector disabled, following the usual
// Default*Config convention of a safe, inert zero-dial baseline.
func DefaultConfig() Config {
	return Config{
		EnableFailures:     false,
		CustomerFailSuffix: "_failed",
		AmountThreshold:    1000.00,
		StockThreshold:     10000,
	}
}
