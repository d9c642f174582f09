package tracking

import (
	"context"
	"sync"
)

// StateStore recuerda el último estado observado de cada traslado entre ciclos de sondeo.
// Supone un único escritor: con varias instancias del motor, el almacén debe ser externo
// y compartido (ver redis.StateStore) y solo un tracker debe escanear a la vez.
type StateStore interface {
	Load(ctx context.Context) (map[int64]string, error)
	Save(ctx context.Context, transferID int64, state string) error
	Remove(ctx context.Context, transferIDs ...int64) error
}

// MemoryStateStore almacén de estados local al proceso.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[int64]string
}

// NewMemoryStateStore crea un almacén vacío.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[int64]string)}
}

func (m *MemoryStateStore) Load(_ context.Context) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]string, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStateStore) Save(_ context.Context, transferID int64, state string) error {
	m.mu.Lock()
	m.states[transferID] = state
	m.mu.Unlock()
	return nil
}

func (m *MemoryStateStore) Remove(_ context.Context, transferIDs ...int64) error {
	m.mu.Lock()
	for _, id := range transferIDs {
		delete(m.states, id)
	}
	m.mu.Unlock()
	return nil
}
