package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/systmms/confseal/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "confseal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: 0
state_dir: /var/lib/confseal
ephemeral_ttl: 2h
sweep_interval: 15m
store:
  type: gcp.secretmanager
  project_id: acme-prod
  timeout_ms: 5000
externalManager:
  type: env
  prefix: ACME_
managers:
  vault:
    type: aws.secretsmanager
    region: us-east-1
`)

	cfg := &Config{Path: path}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, 0, def.Version)
	assert.Equal(t, "/var/lib/confseal", def.StateDir)
	assert.Equal(t, "gcp.secretmanager", def.Store.Type)
	assert.Equal(t, "acme-prod", def.Store.Config["project_id"])
	assert.Equal(t, 5*time.Second, def.Store.Timeout())
	assert.Equal(t, 2*time.Hour, cfg.EphemeralTTL())
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval())

	require.NotNil(t, def.ExternalManager)
	assert.Equal(t, "env", def.ExternalManager.Type)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	err := cfg.Load()
	require.Error(t, err)

	var cfgErr cserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "path", cfgErr.Field)
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "version: [broken")
	cfg := &Config{Path: path}

	var cfgErr cserrors.ConfigError
	assert.ErrorAs(t, cfg.Load(), &cfgErr)
}

func TestLoadUnsupportedVersion(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "version: 7\nstore:\n  type: memory\n")
	cfg := &Config{Path: path}
	err := cfg.Load()
	require.Error(t, err)

	var cfgErr cserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "version", cfgErr.Field)
}

func TestLoadRequiresStoreType(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "version: 0\n")
	cfg := &Config{Path: path}
	err := cfg.Load()
	require.Error(t, err)

	var cfgErr cserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "store.type", cfgErr.Field)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		field   string
	}{
		{
			name:    "bad ephemeral ttl",
			content: "version: 0\nephemeral_ttl: soon\nstore:\n  type: memory\n",
			field:   "ephemeral_ttl",
		},
		{
			name:    "bad sweep interval",
			content: "version: 0\nsweep_interval: weekly\nstore:\n  type: memory\n",
			field:   "sweep_interval",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{Path: writeConfig(t, tt.content)}
			err := cfg.Load()
			require.Error(t, err)

			var cfgErr cserrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestDurationsDefaultToZeroWhenUnset(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: writeConfig(t, "version: 0\nstore:\n  type: memory\n")}
	require.NoError(t, cfg.Load())

	assert.Zero(t, cfg.EphemeralTTL())
	assert.Zero(t, cfg.SweepInterval())
}

func TestBackendConfigTimeoutDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30*time.Second, BackendConfig{}.Timeout())
	assert.Equal(t, 250*time.Millisecond, BackendConfig{TimeoutMs: 250}.Timeout())
}

func TestGetManager(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: writeConfig(t, `
version: 0
store:
  type: memory
externalManager:
  type: env
managers:
  vault:
    type: aws.secretsmanager
`)}
	require.NoError(t, cfg.Load())

	def, err := cfg.GetManager("")
	require.NoError(t, err)
	assert.Equal(t, "env", def.Type)

	named, err := cfg.GetManager("vault")
	require.NoError(t, err)
	assert.Equal(t, "aws.secretsmanager", named.Type)

	_, err = cfg.GetManager("missing")
	var cfgErr cserrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestGetManagerWithoutDefault(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: writeConfig(t, "version: 0\nstore:\n  type: memory\n")}
	require.NoError(t, cfg.Load())

	_, err := cfg.GetManager("")
	var cfgErr cserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "externalManager", cfgErr.Field)
}
