// Package participantsvc is the shared HTTP scaffolding for the
// example participant binaries (cmd/participant-inventory,
// cmd/participant-payments, cmd/participant-orders). It exposes the
// participant contract: POST /{service}/saga/participate,
// POST /{service}/saga/compensate, GET /{service}/saga/info.
//
// These example services are thin saga-contract exercisers: no CRUD
// services, no catalog/order domain logic beyond what demonstrates the
// step contract, grounded in the same net/http.ServeMux + JSON
// envelope wiring httpapi uses.
package participantsvc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/logichill/sagaforge/failureinjector"
	"github.com/logichill/sagaforge/logging"
	"github.com/logichill/sagaforge/participant"
)

// StepHandler executes one step's business logic and returns its
// result data, or an error for a deterministic step failure.
type StepHandler func(ctx context.Context, req participant.ExecuteStepRequest) (map[string]any, error)

// CompensateHandler reverses a previously completed step.
type CompensateHandler func(ctx context.Context, req participant.CompensateStepRequest) error

// Service is one example participant.
type Service struct {
	Name        string
	Steps       map[string]StepHandler
	Compensate  map[string]CompensateHandler
	Injector    *failureinjector.Injector
	Logger      logging.ILogger
}

// Mux builds the participant's HTTP surface.
func (s *Service) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /"+s.Name+"/saga/participate", s.handleExecute)
	mux.HandleFunc("POST /"+s.Name+"/saga/compensate", s.handleCompensate)
	mux.HandleFunc("GET /"+s.Name+"/saga/info", s.handleInfo)
	return mux
}

func (s *Service) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req participant.ExecuteStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeExecuteResponse(w, participant.ExecuteStepResponse{Success: false, ErrorMessage: "malformed request"})
		return
	}

	handler, ok := s.Steps[req.StepName]
	if !ok {
		writeExecuteResponse(w, participant.ExecuteStepResponse{Success: false, ErrorMessage: "unsupported step: " + req.StepName})
		return
	}

	data, err := handler(r.Context(), req)
	if err != nil {
		s.logger().Warn(r.Context(), "step rejected", logging.String("step_name", req.StepName), logging.Error(err))
		writeExecuteResponse(w, participant.ExecuteStepResponse{Success: false, ErrorMessage: err.Error(), CompensationRequired: true})
		return
	}
	writeExecuteResponse(w, participant.ExecuteStepResponse{Success: true, Data: data})
}

func (s *Service) handleCompensate(w http.ResponseWriter, r *http.Request) {
	var req participant.CompensateStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCompensateResponse(w, participant.CompensateStepResponse{Success: false, ErrorMessage: "malformed request"})
		return
	}

	handler, ok := s.Compensate[req.StepName]
	if !ok {
		// No registered compensation handler for a step is treated as a
		// trivial no-op success rather than a failure: not every step
		// needs a reversal (e.g. a read-only verification step).
		writeCompensateResponse(w, participant.CompensateStepResponse{Success: true})
		return
	}

	if err := handler(r.Context(), req); err != nil {
		s.logger().Warn(r.Context(), "compensation rejected", logging.String("step_name", req.StepName), logging.Error(err))
		writeCompensateResponse(w, participant.CompensateStepResponse{Success: false, ErrorMessage: err.Error()})
		return
	}
	writeCompensateResponse(w, participant.CompensateStepResponse{Success: true})
}

func (s *Service) handleInfo(w http.ResponseWriter, r *http.Request) {
	steps := make([]string, 0, len(s.Steps))
	for name := range s.Steps {
		steps = append(steps, name)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(participant.Info{ServiceName: s.Name, SupportedSteps: steps})
}

func (s *Service) logger() logging.ILogger {
	if s.Logger == nil {
		return logging.ComponentLogger(s.Name)
	}
	return s.Logger
}

func writeExecuteResponse(w http.ResponseWriter, resp participant.ExecuteStepResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeCompensateResponse(w http.ResponseWriter, resp participant.CompensateStepResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// DataString/DataFloat/DataInt pull typed fields out of a step
// request's Data map, which arrives JSON-decoded (numbers as float64).
func DataString(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return v
}

func DataFloat(data map[string]any, key string) float64 {
	v, _ := data[key].(float64)
	return v
}

func DataInt(data map[string]any, key string) int {
	v, _ := data[key].(float64)
	return int(v)
}
