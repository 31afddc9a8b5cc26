package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySupportedBackends(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	assert.ElementsMatch(t, []string{
		"memory",
		"keyring",
		"gcp.secretmanager",
		"aws.secretsmanager",
		"azure.keyvault",
	}, registry.SupportedStores())

	assert.ElementsMatch(t, []string{
		"env",
		"literal",
		"gcp.secretmanager",
		"aws.secretsmanager",
		"aws.ssm",
		"azure.keyvault",
	}, registry.SupportedManagers())
}

func TestRegistryCreateStore(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	store, err := registry.CreateStore("memory", map[string]interface{}{})
	require.NoError(t, err)
	require.NotNil(t, store)

	require.NoError(t, store.Write(context.Background(), "k", "v"))
	got, err := store.Read(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestRegistryCreateManager(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	mgr, err := registry.CreateManager("literal", map[string]interface{}{
		"values": map[string]interface{}{"API_KEY": "abc"},
	})
	require.NoError(t, err)

	exists, err := mgr.Exists(context.Background(), "API_KEY")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRegistryUnknownTypes(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	_, err := registry.CreateStore("vaultron", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown secret store type")

	_, err = registry.CreateManager("vaultron", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown external secret manager type")
}

func TestRegistryCustomRegistration(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.RegisterStore("custom", NewMemoryStoreFactory)

	store, err := registry.CreateStore("custom", nil)
	require.NoError(t, err)
	assert.NotNil(t, store)
}
