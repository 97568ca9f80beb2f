// Command participant-inventory is the example inventory participant:
// it handles VerifyStock and ReserveStock, consulting the controlled
// failure injector so resilience tests can force insufficient-stock
// rejections.
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
	logger := logging.NewStdLogger("participant-inventory")

	cfg := failureinjector.DefaultConfig()
	cfg.EnableFailures = os.Getenv("SAGAFORGE_ENABLE_FAILURES") == "true"
	cfg.InsufficientStockProbability = 0.0
	injector := failureinjector.New(cfg, memorylog.New(1), metrics.New(), 42)

	reservations := map[string]int{} // saga_id -> reserved units, for compensation

	svc := &participantsvc.Service{
		Name:   "inventory",
		Logger: logger,
		Steps: map[string]participantsvc.StepHandler{
			"VerifyStock": func(ctx context.Context, req participant.ExecuteStepRequest) (map[string]any, error) {
				stockRequested := participantsvc.DataInt(req.Data, "stock_requested")
				v := injector.Evaluate(ctx, "inventory", req.SagaID, failureinjector.Input{StockRequested: stockRequested})
				if v.ShouldFail {
					return nil, fmt.Errorf("insufficient stock: %s", v.Message)
				}
				return map[string]any{"verified_quantity": stockRequested}, nil
			},
			"ReserveStock": func(ctx context.Context, req participant.ExecuteStepRequest) (map[string]any, error) {
				stockRequested := participantsvc.DataInt(req.Data, "stock_requested")
				v := injector.Evaluate(ctx, "inventory", req.SagaID, failureinjector.Input{StockRequested: stockRequested})
				if v.ShouldFail {
					return nil, fmt.Errorf("reservation rejected: %s", v.Message)
				}
				reservations[req.SagaID] = stockRequested
				return map[string]any{"reservation_id": "res-" + req.SagaID}, nil
			},
		},
		Compensate: map[string]participantsvc.CompensateHandler{
			"ReserveStock": func(ctx context.Context, req participant.CompensateStepRequest) error {
				delete(reservations, req.SagaID)
				return nil
			},
		},
	}

	addr := os.Getenv("SAGAFORGE_PARTICIPANT_ADDR")
	if addr == "" {
		addr = ":9001"
	}
	logger.Info(context.Background(), "inventory participant listening", logging.String("addr", addr))
	log.Fatal(http.ListenAndServe(addr, svc.Mux()))
}
