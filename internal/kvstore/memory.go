package kvstore

import (
	"context"
	"strings"
	"sync"

	"github.com/posterfall/ratingscout/internal/domain"
)

// MemoryStore is a mutex-guarded in-memory domain.KVStore. State does not
// survive a restart, so it is only suitable for tests and throwaway runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

var _ domain.KVStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (s *MemoryStore) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if v, ok := s.items[key]; ok {
			result[key] = append([]byte(nil), v...)
		}
	}
	return result, nil
}

func (s *MemoryStore) SetMany(_ context.Context, items map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range items {
		s.items[key] = append([]byte(nil), value...)
	}
	return nil
}

func (s *MemoryStore) RemoveMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
