package sagastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logichill/sagaforge/saga"
)

func TestMemoryStore_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := saga.New("saga-1", "OrderCreation", "")

	require.NoError(t, store.CreateSaga(ctx, s))

	got, err := store.ReadSaga(ctx, "saga-1")
	require.NoError(t, err)
	assert.Equal(t, saga.StateStarted, got.CurrentState)
}

func TestMemoryStore_CreateSaga_RejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateSaga(ctx, saga.New("saga-1", "OrderCreation", "")))

	err := store.CreateSaga(ctx, saga.New("saga-1", "OrderCreation", ""))

	require.Error(t, err)
	var sagaErr *saga.SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, saga.ErrCodeAlreadyExists, sagaErr.Code)
}

func TestMemoryStore_ReadSaga_NotFound(t *testing.T) {
	_, err := NewMemoryStore().ReadSaga(context.Background(), "missing")

	require.Error(t, err)
	var sagaErr *saga.SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, saga.ErrCodeNotFound, sagaErr.Code)
}

func TestMemoryStore_UpdateSagaState_RejectsStaleExpectedState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateSaga(ctx, saga.New("saga-1", "OrderCreation", "")))

	err := store.UpdateSagaState(ctx, "saga-1", saga.StateStockVerifying, &saga.SagaTransition{
		FromState: saga.StateStockVerifying,
		ToState:   saga.StateStockVerified,
		Timestamp: time.Now(),
	})

	require.Error(t, err)
	var sagaErr *saga.SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, saga.ErrCodeConcurrentUpdate, sagaErr.Code)
}

func TestMemoryStore_UpdateSagaState_Succeeds(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateSaga(ctx, saga.New("saga-1", "OrderCreation", "")))

	err := store.UpdateSagaState(ctx, "saga-1", saga.StateStarted, &saga.SagaTransition{
		FromState: saga.StateStarted,
		ToState:   saga.StateStockVerifying,
		Timestamp: time.Now(),
		EventKind: saga.EventKindSuccess,
	})
	require.NoError(t, err)

	got, err := store.ReadSaga(ctx, "saga-1")
	require.NoError(t, err)
	assert.Equal(t, saga.StateStockVerifying, got.CurrentState)
	assert.Len(t, got.Transitions, 1)
}

func TestMemoryStore_ReadSaga_DoesNotAliasStoredCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateSaga(ctx, saga.New("saga-1", "OrderCreation", "")))

	got, err := store.ReadSaga(ctx, "saga-1")
	require.NoError(t, err)
	got.ErrorMessage = "mutated by caller"

	again, err := store.ReadSaga(ctx, "saga-1")
	require.NoError(t, err)
	assert.Empty(t, again.ErrorMessage)
}

func TestMemoryStore_ReplayIncomplete_SkipsTerminalSagas(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateSaga(ctx, saga.New("saga-running", "OrderCreation", "")))

	done := saga.New("saga-done", "OrderCreation", "")
	require.NoError(t, store.CreateSaga(ctx, done))
	require.NoError(t, store.UpdateSagaState(ctx, "saga-done", saga.StateStarted, &saga.SagaTransition{
		FromState: saga.StateStarted,
		ToState:   saga.StateCompleted,
		Timestamp: time.Now(),
	}))

	incomplete, err := store.ReplayIncomplete(ctx)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, "saga-running", incomplete[0].SagaID)
}

func TestMemoryStore_Sweep_DeletesOldTerminalSagas(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateSaga(ctx, saga.New("saga-1", "OrderCreation", "")))
	require.NoError(t, store.UpdateSagaState(ctx, "saga-1", saga.StateStarted, &saga.SagaTransition{
		FromState: saga.StateStarted,
		ToState:   saga.StateCompleted,
		Timestamp: time.Now().Add(-48 * time.Hour),
	}))

	n, err := store.Sweep(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.ReadSaga(ctx, "saga-1")
	require.Error(t, err)
}
