// Package stores provides the backend implementations behind the
// pkg/secretstore boundary interfaces: managed payload stores and
// read-only external secret managers.
package stores

import (
	"fmt"

	"github.com/systmms/confseal/pkg/secretstore"
)

// StoreFactory creates a managed payload store from configuration.
type StoreFactory func(name string, config map[string]interface{}) (secretstore.Store, error)

// ManagerFactory creates an external secret manager from configuration.
type ManagerFactory func(name string, config map[string]interface{}) (secretstore.Manager, error)

// Registry manages backend creation and registration.
type Registry struct {
	stores   map[string]StoreFactory
	managers map[string]ManagerFactory
}

// NewRegistry creates a registry with the built-in backends.
func NewRegistry() *Registry {
	registry := &Registry{
		stores:   make(map[string]StoreFactory),
		managers: make(map[string]ManagerFactory),
	}

	registry.RegisterStore("memory", NewMemoryStoreFactory)
	registry.RegisterStore("keyring", NewKeyringStoreFactory)
	registry.RegisterStore("gcp.secretmanager", NewGCPStoreFactory)
	registry.RegisterStore("aws.secretsmanager", NewAWSStoreFactory)
	registry.RegisterStore("azure.keyvault", NewAzureStoreFactory)

	registry.RegisterManager("env", NewEnvManagerFactory)
	registry.RegisterManager("literal", NewLiteralManagerFactory)
	registry.RegisterManager("gcp.secretmanager", NewGCPManagerFactory)
	registry.RegisterManager("aws.secretsmanager", NewAWSManagerFactory)
	registry.RegisterManager("aws.ssm", NewSSMManagerFactory)
	registry.RegisterManager("azure.keyvault", NewAzureManagerFactory)

	return registry
}

// RegisterStore registers a store factory for a backend type.
func (r *Registry) RegisterStore(backendType string, factory StoreFactory) {
	r.stores[backendType] = factory
}

// RegisterManager registers a manager factory for a backend type.
func (r *Registry) RegisterManager(backendType string, factory ManagerFactory) {
	r.managers[backendType] = factory
}

// CreateStore creates a store instance for the given backend type.
func (r *Registry) CreateStore(backendType string, config map[string]interface{}) (secretstore.Store, error) {
	factory, exists := r.stores[backendType]
	if !exists {
		return nil, fmt.Errorf("unknown secret store type: %s", backendType)
	}
	return factory(backendType, config)
}

// CreateManager creates a manager instance for the given backend type.
func (r *Registry) CreateManager(backendType string, config map[string]interface{}) (secretstore.Manager, error) {
	factory, exists := r.managers[backendType]
	if !exists {
		return nil, fmt.Errorf("unknown external secret manager type: %s", backendType)
	}
	return factory(backendType, config)
}

// SupportedStores returns the registered store backend types.
func (r *Registry) SupportedStores() []string {
	types := make([]string, 0, len(r.stores))
	for backendType := range r.stores {
		types = append(types, backendType)
	}
	return types
}

// SupportedManagers returns the registered manager backend types.
func (r *Registry) SupportedManagers() []string {
	types := make([]string, 0, len(r.managers))
	for backendType := range r.managers {
		types = append(types, backendType)
	}
	return types
}
