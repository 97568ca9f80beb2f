// Command participant-payments is the example payments participant:
// it handles ProcessPayment, consulting the controlled failure
// injector so resilience tests can force payment failures on a
// customer suffix or amount threshold, and refunds on compensation.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/logichill/sagaforge/cmd/internal/participantsvc"
	"github.com/logichill/sagaforge/eventlog/memorylog"
	"github.com/logichill/sagaforge/failureinjector"
	"github.com/logichill/sagaforge/logging"
	"github.com/logichill/sagaforge/metrics"
	"github.com/logichill/sagaforge/participant"
)

func main() {
	logger := logging.NewStdLogger("participant-payments")

	cfg := failureinjector.DefaultConfig()
	cfg.EnableFailures = os.Getenv("SAGAFORGE_ENABLE_FAILURES") == "true"
	injector := failureinjector.New(cfg, memorylog.New(1), metrics.New(), 43)

	charges := map[string]float64{} // saga_id -> charged amount, for refund

	svc := &participantsvc.Service{
		Name:   "payments",
		Logger: logger,
		Steps: map[string]participantsvc.StepHandler{
			"ProcessPayment": func(ctx context.Context, req participant.ExecuteStepRequest) (map[string]any, error) {
				customerID := participantsvc.DataString(req.Data, "customer_id")
				amount := participantsvc.DataFloat(req.Data, "total_amount")
				v := injector.Evaluate(ctx, "payments", req.SagaID, failureinjector.Input{CustomerID: customerID, Amount: amount})
				if v.ShouldFail {
					return nil, fmt.Errorf("payment declined: %s", v.Message)
				}
				charges[req.SagaID] = amount
				return map[string]any{"transaction_id": "txn-" + req.SagaID, "charged_amount": amount}, nil
			},
		},
		Compensate: map[string]participantsvc.CompensateHandler{
			"ProcessPayment": func(ctx context.Context, req participant.CompensateStepRequest) error {
				delete(charges, req.SagaID)
				return nil
			},
		},
	}

	addr := os.Getenv("SAGAFORGE_PARTICIPANT_ADDR")
	if addr == "" {
		addr = ":9002"
	}
	logger.Info(context.Background(), "payments participant listening", logging.String("addr", addr))
	log.Fatal(http.ListenAndServe(addr, svc.Mux()))
}
