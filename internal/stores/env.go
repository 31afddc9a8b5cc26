package stores

import (
	"context"
	"os"
	"sync"

	"github.com/systmms/confseal/pkg/secretstore"
)

// EnvManager resolves external references from process environment
// variables. Intended for development and CI, where the "external secret
// manager" is the job's injected environment.
type EnvManager struct {
	name   string
	prefix string
}

// NewEnvManager creates an environment-variable manager. prefix, if
// non-empty, is prepended to every looked-up name.
func NewEnvManager(name, prefix string) *EnvManager {
	return &EnvManager{name: name, prefix: prefix}
}

// Exists reports whether the environment variable is set.
func (m *EnvManager) Exists(ctx context.Context, name string) (bool, error) {
	_, ok := os.LookupEnv(m.prefix + name)
	return ok, nil
}

// Read returns the environment variable's value.
func (m *EnvManager) Read(ctx context.Context, name string) (string, error) {
	value, ok := os.LookupEnv(m.prefix + name)
	if !ok {
		return "", secretstore.NotFoundError{Backend: m.name, Key: name}
	}
	return value, nil
}

// NewEnvManagerFactory creates an env manager factory.
func NewEnvManagerFactory(name string, config map[string]interface{}) (secretstore.Manager, error) {
	prefix := ""
	if p, ok := config["prefix"].(string); ok {
		prefix = p
	}
	return NewEnvManager(name, prefix), nil
}

// LiteralManager serves external references from a fixed in-memory map.
// It doesn't reach any external system; it exists to exercise the
// resolution pipeline in tests and simple setups.
type LiteralManager struct {
	name   string
	mu     sync.RWMutex
	values map[string]string
}

// NewLiteralManager creates a literal manager with predefined values.
func NewLiteralManager(name string, values map[string]string) *LiteralManager {
	if values == nil {
		values = make(map[string]string)
	}
	return &LiteralManager{name: name, values: values}
}

// Exists reports whether the name is present.
func (m *LiteralManager) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[name]
	return ok, nil
}

// Read returns the literal value for the name.
func (m *LiteralManager) Read(ctx context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[name]
	if !ok {
		return "", secretstore.NotFoundError{Backend: m.name, Key: name}
	}
	return value, nil
}

// Set adds or replaces a value, for test setup.
func (m *LiteralManager) Set(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
}

// NewLiteralManagerFactory creates a literal manager factory. Values come
// from a 'values' map in the backend configuration.
func NewLiteralManagerFactory(name string, config map[string]interface{}) (secretstore.Manager, error) {
	values := make(map[string]string)
	if raw, ok := config["values"].(map[string]interface{}); ok {
		for key, value := range raw {
			if s, ok := value.(string); ok {
				values[key] = s
			}
		}
	}
	return NewLiteralManager(name, values), nil
}
