package rating

import (
	"context"
	"sync"

	"github.com/okstone/gomoku/internal/models"
)

// MemoryStore is an in-process Store. It backs the server when no database
// is configured and the settler tests.
type MemoryStore struct {
	mu      sync.Mutex
	ratings map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ratings: make(map[string]int)}
}

func (m *MemoryStore) GetRating(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.ratings[id]; ok {
		return r, nil
	}
	return models.DefaultRating, nil
}

func (m *MemoryStore) SetRating(_ context.Context, id string, rating int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[id] = rating
	return nil
}
