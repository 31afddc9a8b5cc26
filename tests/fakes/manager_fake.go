package fakes

import (
	"context"
	"sync"

	"github.com/systmms/confseal/pkg/secretstore"
)

// FakeManager is a manual fake implementation of the secretstore.Manager
// interface, standing in for an externally managed secret service.
//
// Example usage:
//
//	mgr := fakes.NewFakeManager().
//	    WithSecret("DATABASE_PASSWORD", "hunter2").
//	    WithError("FLAKY", errors.New("connection reset"))
type FakeManager struct {
	name    string
	secrets map[string]string
	failOn  map[string]error

	existsCalls []string
	readCalls   []string

	mu sync.RWMutex
}

// NewFakeManager creates an empty FakeManager.
func NewFakeManager() *FakeManager {
	return &FakeManager{
		name:    "fake",
		secrets: make(map[string]string),
		failOn:  make(map[string]error),
	}
}

// WithSecret seeds an externally managed secret.
func (f *FakeManager) WithSecret(name, value string) *FakeManager {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[name] = value
	return f
}

// WithError makes lookups of the given name fail.
func (f *FakeManager) WithError(name string, err error) *FakeManager {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[name] = err
	return f
}

// Exists implements secretstore.Manager.
func (f *FakeManager) Exists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.existsCalls = append(f.existsCalls, name)
	if err, ok := f.failOn[name]; ok {
		return false, err
	}
	_, ok := f.secrets[name]
	return ok, nil
}

// Read implements secretstore.Manager.
func (f *FakeManager) Read(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readCalls = append(f.readCalls, name)
	if err, ok := f.failOn[name]; ok {
		return "", err
	}
	value, ok := f.secrets[name]
	if !ok {
		return "", secretstore.NotFoundError{Backend: f.name, Key: name}
	}
	return value, nil
}

// ExistsCalls returns every name passed to Exists, in order.
func (f *FakeManager) ExistsCalls() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.existsCalls...)
}

// ReadCalls returns every name passed to Read, in order.
func (f *FakeManager) ReadCalls() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.readCalls...)
}
