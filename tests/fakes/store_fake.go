package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/systmms/confseal/pkg/secretstore"
)

// FakeStore is a manual fake implementation of the secretstore.Store
// interface.
//
// It stores payloads in memory and can be configured to fail specific
// operations, making all-or-nothing and rollback behavior testable
// without a real backend.
//
// Example usage:
//
//	store := fakes.NewFakeStore().
//	    WithPayload("airbyte_workspace_..._v1", "hunter2").
//	    WithWriteError("airbyte_workspace_..._v2", errors.New("quota exceeded"))
type FakeStore struct {
	name     string
	payloads map[string]string

	// Behavior control
	writeErrors map[string]error
	readErrors  map[string]error
	delErrors   map[string]error
	opDelay     time.Duration

	// Call tracking
	writes  []string
	reads   []string
	deletes []string

	mu sync.RWMutex
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		name:        "fake",
		payloads:    make(map[string]string),
		writeErrors: make(map[string]error),
		readErrors:  make(map[string]error),
		delErrors:   make(map[string]error),
	}
}

// WithPayload seeds a stored payload. Fluent API for configuring test data.
func (f *FakeStore) WithPayload(coordinate, payload string) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[coordinate] = payload
	return f
}

// WithWriteError makes Write fail for the given coordinate.
func (f *FakeStore) WithWriteError(coordinate string, err error) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErrors[coordinate] = err
	return f
}

// WithReadError makes Read fail for the given coordinate.
func (f *FakeStore) WithReadError(coordinate string, err error) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErrors[coordinate] = err
	return f
}

// WithDeleteError makes Delete fail for the given coordinate.
func (f *FakeStore) WithDeleteError(coordinate string, err error) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delErrors[coordinate] = err
	return f
}

// WithDelay simulates backend latency on every operation.
func (f *FakeStore) WithDelay(d time.Duration) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opDelay = d
	return f
}

// Write implements secretstore.Store.
func (f *FakeStore) Write(ctx context.Context, coordinate string, value string) error {
	f.delay(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes = append(f.writes, coordinate)
	if err, ok := f.writeErrors[coordinate]; ok {
		return err
	}
	f.payloads[coordinate] = value
	return nil
}

// Read implements secretstore.Store.
func (f *FakeStore) Read(ctx context.Context, coordinate string) (string, error) {
	f.delay(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads = append(f.reads, coordinate)
	if err, ok := f.readErrors[coordinate]; ok {
		return "", err
	}
	payload, ok := f.payloads[coordinate]
	if !ok {
		return "", secretstore.NotFoundError{Backend: f.name, Key: coordinate}
	}
	return payload, nil
}

// Delete implements secretstore.Store. Absent coordinates are not an error.
func (f *FakeStore) Delete(ctx context.Context, coordinate string) error {
	f.delay(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, coordinate)
	if err, ok := f.delErrors[coordinate]; ok {
		return err
	}
	delete(f.payloads, coordinate)
	return nil
}

// Payload returns the stored payload and whether it exists.
func (f *FakeStore) Payload(coordinate string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	payload, ok := f.payloads[coordinate]
	return payload, ok
}

// Len returns the number of stored payloads.
func (f *FakeStore) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.payloads)
}

// Writes returns every coordinate passed to Write, in order.
func (f *FakeStore) Writes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.writes...)
}

// Reads returns every coordinate passed to Read, in order.
func (f *FakeStore) Reads() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.reads...)
}

// Deletes returns every coordinate passed to Delete, in order.
func (f *FakeStore) Deletes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.deletes...)
}

func (f *FakeStore) delay(ctx context.Context) {
	f.mu.RLock()
	d := f.opDelay
	f.mu.RUnlock()
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}
}
