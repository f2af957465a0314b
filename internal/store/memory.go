package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is a concurrency-safe in-memory BlobStore.
type MemoryStore struct {
	mu sync.RWMutex

	// key: bucket + "/" + object key
	data map[string][]byte

	// maxObjects bounds the number of stored objects (0 = unlimited). The
	// oldest object is evicted first.
	maxObjects int
	order      []string
}

// NewMemoryStore creates a new MemoryStore. If maxObjects is <= 0, it is
// treated as unlimited.
func NewMemoryStore(maxObjects int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string][]byte),
		maxObjects: maxObjects,
	}
}

// Put stores a copy of payload, replacing any previous object.
func (s *MemoryStore) Put(ctx context.Context, bucket, keyPrefix, filename string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return storageError("put", bucket, ObjectKey(keyPrefix, filename), err)
	}
	key := bucket + "/" + ObjectKey(keyPrefix, filename)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists {
		s.order = append(s.order, key)
	}
	s.data[key] = slices.Clone(payload)

	// Enforce retention by count.
	if s.maxObjects > 0 && len(s.order) > s.maxObjects {
		over := len(s.order) - s.maxObjects
		for _, k := range s.order[:over] {
			delete(s.data, k)
		}
		s.order = s.order[over:]
	}
	return nil
}

// Get returns a copy of the stored object.
func (s *MemoryStore) Get(ctx context.Context, bucket, keyPrefix, filename string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError("get", bucket, ObjectKey(keyPrefix, filename), err)
	}
	key := bucket + "/" + ObjectKey(keyPrefix, filename)

	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(payload), nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
