package discoverydb

import (
	"context"
	"sync"
)

type memoryEntry struct {
	key   Key
	index uint64
}

// MemoryStore keeps discovery entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[memoryEntry][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[memoryEntry][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key Key, index uint64, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryEntry{key: key, index: index}
	if _, ok := s.entries[k]; ok {
		return ErrIndexTaken
	}
	s.entries[k] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key Key, index uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.entries[memoryEntry{key: key, index: index}]
	if !ok {
		return nil, ErrNotPresent
	}
	return append([]byte(nil), v...), nil
}

var _ Store = (*MemoryStore)(nil)
