package stores

import (
	"context"
	"sync"

	"github.com/systmms/confseal/internal/secure"
	"github.com/systmms/confseal/pkg/secretstore"
)

// MemoryStore is an in-process payload store for development and testing.
// Payloads are sealed into memguard-backed enclaves so the plaintext is
// encrypted at rest in memory and only decrypted for the duration of a
// Read.
type MemoryStore struct {
	name string
	mu   sync.RWMutex
	data map[string]*secure.Payload
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name: name,
		data: make(map[string]*secure.Payload),
	}
}

// Write seals the value into a protected buffer under the coordinate.
func (s *MemoryStore) Write(ctx context.Context, coordinate string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.data[coordinate]; ok {
		old.Destroy()
	}
	s.data[coordinate] = secure.NewPayload([]byte(value))
	return nil
}

// Read decrypts and returns the payload at the coordinate.
func (s *MemoryStore) Read(ctx context.Context, coordinate string) (string, error) {
	s.mu.RLock()
	payload, ok := s.data[coordinate]
	s.mu.RUnlock()
	if !ok {
		return "", secretstore.NotFoundError{Backend: s.name, Key: coordinate}
	}

	locked, err := payload.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	// string conversion copies; the locked view is wiped on return.
	return string(locked.Bytes()), nil
}

// Delete removes and destroys the payload at the coordinate. Absent
// coordinates are not an error.
func (s *MemoryStore) Delete(ctx context.Context, coordinate string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payload, ok := s.data[coordinate]; ok {
		payload.Destroy()
		delete(s.data, coordinate)
	}
	return nil
}

// Len returns the number of stored payloads.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// NewMemoryStoreFactory creates a memory store factory.
func NewMemoryStoreFactory(name string, config map[string]interface{}) (secretstore.Store, error) {
	return NewMemoryStore(name), nil
}
