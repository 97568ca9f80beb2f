package sagastore

import (
	"context"
	"sync"
	"time"

	"github.com/logichill/sagaforge/saga"
)

// MemoryStore is an in-process Store, used by tests and by the
// coordinator when no external database is configured. It holds one
// deep copy of each saga behind a single mutex: saga volumes in a
// coordination core are small and request-scoped, so a single lock is
// simpler than per-saga striping and still guarantees at-most-one
// active mutator for a single process.
type MemoryStore struct {
	mu    sync.RWMutex
	sagas map[string]*saga.Saga
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sagas: make(map[string]*saga.Saga)}
}

func (m *MemoryStore) CreateSaga(ctx context.Context, s *saga.Saga) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sagas[s.SagaID]; exists {
		return saga.ErrAlreadyExists(s.SagaID)
	}
	m.sagas[s.SagaID] = cloneSaga(s)
	return nil
}

func (m *MemoryStore) UpdateSagaState(ctx context.Context, sagaID string, expectedCurrentState saga.State, transition *saga.SagaTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sagas[sagaID]
	if !ok {
		return saga.ErrNotFound(sagaID)
	}
	if s.CurrentState != expectedCurrentState {
		return saga.ErrConcurrentUpdate(sagaID)
	}
	if err := s.AppendTransition(transition); err != nil {
		return err
	}
	return nil
}

func (m *MemoryStore) RecordStepResult(ctx context.Context, sagaID string, step *saga.SagaStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sagas[sagaID]
	if !ok {
		return saga.ErrNotFound(sagaID)
	}
	stepCopy := *step
	s.UpsertStep(&stepCopy)
	return nil
}

func (m *MemoryStore) ReadSaga(ctx context.Context, sagaID string) (*saga.Saga, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sagas[sagaID]
	if !ok {
		return nil, saga.ErrNotFound(sagaID)
	}
	return cloneSaga(s), nil
}

func (m *MemoryStore) ListByState(ctx context.Context, state saga.State) ([]*saga.Saga, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*saga.Saga
	for _, s := range m.sagas {
		if s.CurrentState == state {
			out = append(out, cloneSaga(s))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListByType(ctx context.Context, sagaType string) ([]*saga.Saga, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*saga.Saga
	for _, s := range m.sagas {
		if s.SagaType == sagaType {
			out = append(out, cloneSaga(s))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListByDateRange(ctx context.Context, from, to time.Time) ([]*saga.Saga, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*saga.Saga
	for _, s := range m.sagas {
		if !s.CreatedAt.Before(from) && !s.CreatedAt.After(to) {
			out = append(out, cloneSaga(s))
		}
	}
	return out, nil
}

func (m *MemoryStore) ReplayIncomplete(ctx context.Context) ([]*saga.Saga, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*saga.Saga
	for _, s := range m.sagas {
		if !s.IsTerminal() {
			out = append(out, cloneSaga(s))
		}
	}
	return out, nil
}

func (m *MemoryStore) Sweep(ctx context.Context, completedBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sagas {
		if s.CompletedAt != nil && s.CompletedAt.Before(completedBefore) {
			delete(m.sagas, id)
			n++
		}
	}
	return n, nil
}

// cloneSaga deep-copies the parts of a Saga a caller could mutate, so
// ReadSaga results can never alias the store's own copy (readers are
// lock-free by contract; writers must not see a caller's later edits).
func cloneSaga(s *saga.Saga) *saga.Saga {
	out := *s
	out.Steps = make([]*saga.SagaStep, len(s.Steps))
	for i, step := range s.Steps {
		stepCopy := *step
		out.Steps[i] = &stepCopy
	}
	out.Transitions = make([]*saga.SagaTransition, len(s.Transitions))
	for i, t := range s.Transitions {
		tCopy := *t
		out.Transitions[i] = &tCopy
	}
	return &out
}
