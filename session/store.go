// Package session keeps the signed-in user's bearer token and profile in a
// local key-value store and talks to the backend for account actions.
package session

import (
	"context"
	"sync"
)

// Keys written by the session. All four are set on login and erased
// together on logout, expiry or a 401.
const (
	KeyToken  = "quantumai_token"
	KeyPhone  = "quantumai_phone"
	KeyUser   = "quantumai_user"
	KeyExpiry = "quantumai_expiry"
)

// Keys lists the session keys in write order. The token goes last so that
// it never exists without its expiry.
var Keys = []string{KeyPhone, KeyUser, KeyExpiry, KeyToken}

// Store is the persistent key-value store backing a session.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// ClearAll erases every session key.
	ClearAll(ctx context.Context) error
}

// BatchStore is implemented by stores that can write several keys as one
// unit.
type BatchStore interface {
	Store
	SetAll(ctx context.Context, kv map[string]string) error
}

// MemoryStore is an in-process Store. The zero value is not usable; call
// NewMemoryStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) SetAll(_ context.Context, kv map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range kv {
		s.data[k] = v
	}
	return nil
}

func (s *MemoryStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range Keys {
		delete(s.data, k)
	}
	return nil
}

// Len reports how many keys are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
