package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/confseal/internal/config"
	"github.com/systmms/confseal/internal/logging"
	"github.com/systmms/confseal/internal/reference"
)

func testCommandConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "confseal.yaml")
	content := "version: 0\nstate_dir: " + filepath.Join(dir, "state") + "\nstore:\n  type: memory\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return &config.Config{
		Path:   configPath,
		Logger: logging.New(false, true),
	}
}

func writeTestDoc(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestObfuscateCommandEndToEnd(t *testing.T) {
	docPath := writeTestDoc(t, "doc.json", `{"host":"db","password":"hunter2"}`)
	schemaPath := writeTestDoc(t, "spec.json", `{
		"type": "object",
		"properties": {
			"host": {"type": "string"},
			"password": {"type": "string", "airbyte_secret": true}
		}
	}`)
	outPath := filepath.Join(t.TempDir(), "out.json")

	cmd := NewObfuscateCommand(testCommandConfig(t))
	cmd.SetArgs([]string{"--doc", docPath, "--schema", schemaPath, "--out", outPath})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "db", out["host"])
	assert.NotContains(t, string(data), "hunter2")

	ref, ok, err := reference.ParseValue(out["password"])
	require.NoError(t, err)
	require.True(t, ok, "password should be a coordinate wrapper")
	require.NotNil(t, ref.Coordinate)
}

func TestObfuscateCommandRejectsBadOwner(t *testing.T) {
	docPath := writeTestDoc(t, "doc.json", `{"password":"x"}`)
	schemaPath := writeTestDoc(t, "spec.json", `{
		"type": "object",
		"properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)

	cmd := NewObfuscateCommand(testCommandConfig(t))
	cmd.SetArgs([]string{"--doc", docPath, "--schema", schemaPath, "--owner", "nope"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid owner ID")
}

func TestValidateCommandSchemaOnly(t *testing.T) {
	schemaPath := writeTestDoc(t, "spec.json", `{
		"type": "object",
		"properties": {
			"password": {"type": "string", "airbyte_secret": true},
			"host": {"type": "string"}
		}
	}`)

	cmd := NewValidateCommand(testCommandConfig(t))
	cmd.SetArgs([]string{"--schema", schemaPath})
	require.NoError(t, cmd.Execute())
}
