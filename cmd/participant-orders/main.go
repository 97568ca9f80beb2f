// Command participant-orders is the example orders participant: it
// handles ConfirmOrder, the terminal step of the Order Creation plan.
// Order confirmation has nothing meaningful to reverse once the saga
// has reached Completed, so no compensation handler is registered; a
// Completed saga never gets compensated, so one is never called in
// practice.
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
	logger := logging.NewStdLogger("participant-orders")

	cfg := failureinjector.DefaultConfig()
	cfg.EnableFailures = os.Getenv("SAGAFORGE_ENABLE_FAILURES") == "true"
	injector := failureinjector.New(cfg, memorylog.New(1), metrics.New(), 44)

	svc := &participantsvc.Service{
		Name:   "orders",
		Logger: logger,
		Steps: map[string]participantsvc.StepHandler{
			"ConfirmOrder": func(ctx context.Context, req participant.ExecuteStepRequest) (map[string]any, error) {
				orderID := participantsvc.DataString(req.Data, "order_id")
				v := injector.Evaluate(ctx, "orders", req.SagaID, failureinjector.Input{})
				if v.ShouldFail {
					return nil, fmt.Errorf("order confirmation failed: %s", v.Message)
				}
				return map[string]any{"order_id": orderID, "confirmed": true}, nil
			},
		},
	}

	addr := os.Getenv("SAGAFORGE_PARTICIPANT_ADDR")
	if addr == "" {
		addr = ":9003"
	}
	logger.Info(context.Background(), "orders participant listening", logging.String("addr", addr))
	log.Fatal(http.ListenAndServe(addr, svc.Mux()))
}
