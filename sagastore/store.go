// Package sagastore is the durable state store for saga coordination
// runs: a keyed mapping from saga id to saga record (current state,
// steps, transition log) with consistent read-after-write semantics per
// saga id, plus the list/scan queries the orchestrator and admin
// surfaces need.
package sagastore

import (
	"context"
	"time"

	"github.com/logichill/sagaforge/saga"
)

// Store is the durable state store contract. Implementations must give
// strong consistency on ReadSaga immediately following a CreateSaga or
// UpdateSagaState for the same saga_id; ListByState/ListByType/
// ListByDateRange may be eventually consistent.
type Store interface {
	// CreateSaga atomically inserts a new saga record. It fails with
	// saga.ErrAlreadyExists if saga_id exists.
	CreateSaga(ctx context.Context, s *saga.Saga) error

	// UpdateSagaState performs a conditional update using optimistic
	// concurrency on current_state: it fails with ErrConcurrentUpdate
	// (saga.ErrConcurrentUpdate) if the stored current_state does not
	// equal expectedCurrentState. On success it appends transition and
	// advances current_state to transition.ToState as one logical commit.
	UpdateSagaState(ctx context.Context, sagaID string, expectedCurrentState saga.State, transition *saga.SagaTransition) error

	// RecordStepResult upserts a step within the saga's step list.
	RecordStepResult(ctx context.Context, sagaID string, step *saga.SagaStep) error

	// ReadSaga returns a full snapshot: saga + steps + transitions.
	ReadSaga(ctx context.Context, sagaID string) (*saga.Saga, error)

	// ListByState returns sagas currently in the given state.
	ListByState(ctx context.Context, state saga.State) ([]*saga.Saga, error)

	// ListByType returns sagas of the given saga type.
	ListByType(ctx context.Context, sagaType string) ([]*saga.Saga, error)

	// ListByDateRange returns sagas created within [from, to].
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*saga.Saga, error)

	// ReplayIncomplete returns every saga whose current_state is
	// non-terminal, for crash-recovery resume/compensation on startup.
	ReplayIncomplete(ctx context.Context) ([]*saga.Saga, error)

	// Sweep deletes terminal sagas completed before the cutoff, for
	// administrative retention. The caller chooses the cutoff; nothing in
	// this module calls Sweep on a schedule. Returns the number deleted.
	Sweep(ctx context.Context, completedBefore time.Time) (int, error)
}
