package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logichill/sagaforge/compensation"
	"github.com/logichill/sagaforge/eventlog/memorylog"
	"github.com/logichill/sagaforge/metrics"
	"github.com/logichill/sagaforge/obslog"
	"github.com/logichill/sagaforge/orchestrator"
	"github.com/logichill/sagaforge/participant"
	"github.com/logichill/sagaforge/sagastore"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func okParticipantServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(participant.ExecuteStepResponse{Success: true, Data: map[string]any{"ok": true}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	inventory := okParticipantServer(t)
	payments := okParticipantServer(t)
	orders := okParticipantServer(t)

	registry := participant.NewRegistry()
	registry.Register(participant.Descriptor{ServiceName: "inventory", BaseURL: inventory.URL})
	registry.Register(participant.Descriptor{ServiceName: "payments", BaseURL: payments.URL})
	registry.Register(participant.Descriptor{ServiceName: "orders", BaseURL: orders.URL})

	store := sagastore.NewMemoryStore()
	producer := memorylog.New(2)
	client := participant.NewClient(registry, nil, nil)
	m := metrics.New()
	rec := obslog.New(discardWriter{}, nil)
	engine := compensation.New(store, producer, client, m, rec)
	plans := orchestrator.NewPlanRegistry()
	coordinator := orchestrator.New(store, producer, client, plans, engine, m, rec, nil)

	return New(coordinator, m, producer, nil)
}

func TestHandleExecute_Success(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"saga_type": "OrderCreation", "aggregate_fields": map[string]any{"order_id": "o-1"}})

	req := httptest.NewRequest(http.MethodPost, "/saga/execute", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)
}

func TestHandleExecute_MissingSagaTypeIsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(map[string]any{})

	req := httptest.NewRequest(http.MethodPost, "/saga/execute", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStatus_NotFound(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/saga/status/missing", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/saga/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleEventStatistics_ReturnsStatistics(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/saga/events/statistics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleCompensate_AlreadyCompletedReturnsConflict(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"saga_type": "OrderCreation", "saga_id": "saga-complete", "aggregate_fields": map[string]any{"order_id": "o-2"}})

	execReq := httptest.NewRequest(http.MethodPost, "/saga/execute", bytes.NewReader(body))
	execW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(execW, execReq)
	require.Equal(t, http.StatusOK, execW.Code)

	req := httptest.NewRequest(http.MethodPost, "/saga/compensate/saga-complete", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}
