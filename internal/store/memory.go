package store

import (
	"context"
	"sync"

	"github.com/ashureev/secretlab/internal/domain"
)

// MemoryStore keeps entries in process memory only.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]domain.ScoreEntry
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.ScoreEntry)}
}

func (m *MemoryStore) LoadScores(_ context.Context) (map[string]domain.ScoreEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.ScoreEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SaveScore(_ context.Context, challenge string, entry domain.ScoreEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[challenge] = entry
	return nil
}

func (m *MemoryStore) DeleteScore(_ context.Context, challenge string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, challenge)
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }
func (m *MemoryStore) Close() error                 { return nil }
