package store

import (
	"context"
	"encoding/json"
	"sync"
)

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[Collection]json.RawMessage
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		collections: make(map[Collection]json.RawMessage),
	}
}

// Read implements Store.Read.
func (s *InMemoryStore) Read(_ context.Context, c Collection) (json.RawMessage, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.collections[c]
	if !ok {
		return nil, ErrMissing
	}
	if !isArray(raw) {
		return nil, ErrInvalid
	}
	// Copy so callers never alias stored bytes.
	return append(json.RawMessage(nil), raw...), nil
}

// Write implements Store.Write.
func (s *InMemoryStore) Write(_ context.Context, c Collection, snapshot json.RawMessage) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	if !isArray(snapshot) {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[c] = append(json.RawMessage(nil), snapshot...)
	return nil
}

// Ensure implements Store.Ensure.
func (s *InMemoryStore) Ensure(ctx context.Context, c Collection, def json.RawMessage) (bool, error) {
	return ensureWith(ctx, s, c, def)
}
