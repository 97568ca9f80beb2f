package participant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, serviceName, baseURL string) *Registry {
	t.Helper()
	r := NewRegistry()
	r.Register(Descriptor{ServiceName: serviceName, BaseURL: baseURL, SupportedSteps: []string{"ReserveStock"}})
	return r
}

func TestExecuteStep_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inventory/saga/participate", r.URL.Path)
		var req ExecuteStepRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "saga-1", req.SagaID)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ExecuteStepResponse{Success: true, Data: map[string]any{"reservation_id": "r-1"}})
	}))
	defer server.Close()

	client := NewClient(newTestRegistry(t, "inventory", server.URL), nil, nil)

	resp, err := client.ExecuteStep(context.Background(), "inventory", ExecuteStepRequest{SagaID: "saga-1", StepName: "ReserveStock"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "r-1", resp.Data["reservation_id"])
}

func TestExecuteStep_UnresolvedParticipant(t *testing.T) {
	client := NewClient(NewRegistry(), nil, nil)

	_, err := client.ExecuteStep(context.Background(), "missing", ExecuteStepRequest{SagaID: "saga-1"})

	require.Error(t, err)
	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
}

func TestExecuteStep_RetriesTransientFailureThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ExecuteStepResponse{Success: true})
	}))
	defer server.Close()

	client := NewClient(newTestRegistry(t, "inventory", server.URL), nil, nil)
	client.retryCfg.InitialDelay = 0 // keep the test fast; ordering of backoffs is exercised in retry's own tests

	resp, err := client.ExecuteStep(context.Background(), "inventory", ExecuteStepRequest{SagaID: "saga-1"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecuteStep_SurfacesDeterministicFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ExecuteStepResponse{Success: false, ErrorMessage: "insufficient stock", CompensationRequired: false})
	}))
	defer server.Close()

	client := NewClient(newTestRegistry(t, "inventory", server.URL), nil, nil)

	resp, err := client.ExecuteStep(context.Background(), "inventory", ExecuteStepRequest{SagaID: "saga-1"})

	require.NoError(t, err, "a reported business failure is not a transport error")
	assert.False(t, resp.Success)
	assert.Equal(t, "insufficient stock", resp.ErrorMessage)
}
