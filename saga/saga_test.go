package saga

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StartsInStartedState(t *testing.T) {
	s := New("saga-1", "OrderCreation", "")

	assert.Equal(t, "saga-1", s.SagaID)
	assert.Equal(t, "saga-1", s.CorrelationID, "correlation id defaults to saga id")
	assert.Equal(t, StateStarted, s.CurrentState)
	assert.False(t, s.IsTerminal())
	assert.Nil(t, s.CompletedAt)
}

func TestAppendTransition_AdvancesStateAndLog(t *testing.T) {
	s := New("saga-1", "OrderCreation", "corr-1")

	err := s.AppendTransition(&SagaTransition{
		SagaID:    s.SagaID,
		FromState: StateStarted,
		ToState:   StateStockVerifying,
		Timestamp: time.Now(),
		EventKind: EventKindSuccess,
	})

	require.NoError(t, err)
	assert.Equal(t, StateStockVerifying, s.CurrentState)
	assert.Len(t, s.Transitions, 1)
}

func TestAppendTransition_RejectsStaleFromState(t *testing.T) {
	s := New("saga-1", "OrderCreation", "")
	require.NoError(t, s.AppendTransition(&SagaTransition{FromState: StateStarted, ToState: StateStockVerifying, Timestamp: time.Now()}))

	err := s.AppendTransition(&SagaTransition{FromState: StateStarted, ToState: StateStockVerified, Timestamp: time.Now()})

	require.Error(t, err)
	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, ErrCodeUnexpectedState, sagaErr.Code)
}

func TestAppendTransition_RejectsPastTerminal(t *testing.T) {
	s := New("saga-1", "OrderCreation", "")
	require.NoError(t, s.AppendTransition(&SagaTransition{FromState: StateStarted, ToState: StateCompleted, Timestamp: time.Now()}))
	assert.True(t, s.IsTerminal())

	err := s.AppendTransition(&SagaTransition{FromState: StateCompleted, ToState: StateFailed, Timestamp: time.Now()})

	require.Error(t, err)
	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, ErrCodeTerminal, sagaErr.Code)
}

func TestCompensatableSteps_OrderedByDescendingCompletedAt(t *testing.T) {
	s := New("saga-1", "OrderCreation", "")
	t1 := time.Now().Add(-2 * time.Minute)
	t2 := time.Now().Add(-1 * time.Minute)

	stepA := &SagaStep{StepName: "VerifyStock"}
	stepA.MarkCompleted(nil)
	stepA.CompletedAt = &t1

	stepB := &SagaStep{StepName: "ReserveStock"}
	stepB.MarkCompleted(nil)
	stepB.CompletedAt = &t2

	stepC := &SagaStep{StepName: "ProcessPayment"}
	stepC.MarkFailed("declined")

	s.UpsertStep(stepA)
	s.UpsertStep(stepB)
	s.UpsertStep(stepC)

	ordered := s.CompensatableSteps()

	require.Len(t, ordered, 2)
	assert.Equal(t, "ReserveStock", ordered[0].StepName, "most recently completed step compensates first")
	assert.Equal(t, "VerifyStock", ordered[1].StepName)
}

func TestMarkCompensated_FromCompleted(t *testing.T) {
	step := &SagaStep{StepName: "ReserveStock"}
	step.MarkCompleted(map[string]any{"reservation_id": "r-1"})
	assert.True(t, step.CompensationRequired)

	step.MarkCompensated()

	assert.Equal(t, StepCompensated, step.Status)
	assert.NotNil(t, step.CompensatedAt)
}

func TestFindStep_ReturnsNilWhenAbsent(t *testing.T) {
	s := New("saga-1", "OrderCreation", "")
	assert.Nil(t, s.FindStep("VerifyStock"))
}
