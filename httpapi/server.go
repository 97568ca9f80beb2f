package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/logichill/sagaforge/errors"
	"github.com/logichill/sagaforge/eventlog"
	"github.com/logichill/sagaforge/logging"
	"github.com/logichill/sagaforge/metrics"
	"github.com/logichill/sagaforge/orchestrator"
	"github.com/logichill/sagaforge/saga"
)

// Server is the coordination API: POST /saga/execute, GET
// /saga/status/{saga_id}, POST /saga/compensate/{saga_id}, GET
// /saga/metrics, GET /saga/health, GET /saga/events/statistics.
type Server struct {
	coordinator *orchestrator.Coordinator
	metrics     *metrics.Collector
	producer    eventlog.Producer
	logger      logging.ILogger
	mux         *http.ServeMux
	httpServer  *http.Server
}

// Config configures the server's network listener, mirroring the
// familiar WebConfig field set narrowed to what a single-mux API
// needs.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig follows the usual Default*Config convention.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// New builds a Server and registers its routes on a fresh ServeMux.
func New(coordinator *orchestrator.Coordinator, m *metrics.Collector, producer eventlog.Producer, logger logging.ILogger) *Server {
	if logger == nil {
		logger = logging.ComponentLogger("httpapi")
	}
	s := &Server{coordinator: coordinator, metrics: m, producer: producer, logger: logger, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /saga/execute", s.handleExecute)
	s.mux.HandleFunc("GET /saga/status/{saga_id}", s.handleStatus)
	s.mux.HandleFunc("POST /saga/compensate/{saga_id}", s.handleCompensate)
	s.mux.HandleFunc("GET /saga/metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /saga/health", s.handleHealth)
	s.mux.HandleFunc("GET /saga/events/statistics", s.handleEventStatistics)
}

// Start begins serving on cfg.Addr; it blocks until the server stops.
func (s *Server) Start(cfg Config) error {
	if cfg.Addr == "" {
		cfg = DefaultConfig()
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the underlying mux, e.g. for httptest.NewServer in tests.
func (s *Server) Handler() http.Handler { return s.mux }

type executeRequest struct {
	SagaType        string         `json:"saga_type"`
	SagaID          string         `json:"saga_id,omitempty"`
	CorrelationID   string         `json:"correlation_id,omitempty"`
	AggregateFields map[string]any `json:"aggregate_fields"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.SagaType == "" {
		writeError(w, http.StatusBadRequest, "saga_type is required")
		return
	}

	resp, err := s.coordinator.ExecuteSaga(r.Context(), orchestrator.Request{
		SagaType:        req.SagaType,
		SagaID:          req.SagaID,
		CorrelationID:   req.CorrelationID,
		AggregateFields: req.AggregateFields,
	})
	if err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sagaID := r.PathValue("saga_id")
	resp, err := s.coordinator.GetSagaStatus(r.Context(), sagaID)
	if err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (s *Server) handleCompensate(w http.ResponseWriter, r *http.Request) {
	sagaID := r.PathValue("saga_id")
	resp, err := s.coordinator.Compensate(r.Context(), sagaID)
	if err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.Handler().ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEventStatistics(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, s.producer.Statistics())
}

// writeCoordinatorError maps a coordinator error to an HTTP status via
// the shared error taxonomy, normalizing first so sagastore / eventlog
// / participant sentinel errors get the same treatment as the saga
// package's own SagaError.
func (s *Server) writeCoordinatorError(w http.ResponseWriter, err error) {
	normalized := apperrors.Normalize(err)

	var sagaErr *saga.SagaError
	if se, ok := err.(*saga.SagaError); ok {
		sagaErr = se
	}

	appErr, ok := normalized.(apperrors.IError)
	if !ok {
		if sagaErr != nil {
			writeError(w, statusForSagaCode(sagaErr.Code), sagaErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code() {
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeConcurrency, apperrors.ErrCodeConflict, apperrors.ErrCodeDuplicate:
		status = http.StatusConflict
	case apperrors.ErrCodeServiceUnavailable:
		status = http.StatusServiceUnavailable
	case apperrors.ErrCodeValidation, apperrors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	}
	writeError(w, status, appErr.Error())
}

func statusForSagaCode(code saga.ErrorCode) int {
	switch code {
	case saga.ErrCodePlanUnknown:
		// An unregistered saga_type is a malformed request, not a missing resource.
		return http.StatusBadRequest
	case saga.ErrCodeNotFound:
		return http.StatusNotFound
	case saga.ErrCodeAlreadyExists, saga.ErrCodeConcurrentUpdate, saga.ErrCodeTerminal, saga.ErrCodeAlreadyTerminal:
		return http.StatusConflict
	case saga.ErrCodeUnexpectedState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
