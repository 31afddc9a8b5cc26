package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/internal/logging"
)

// DefaultPath is where the CLI looks for configuration when no --config
// flag is given.
const DefaultPath = "confseal.yaml"

// Config holds the runtime configuration.
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition
}

// Definition represents the confseal.yaml structure.
type Definition struct {
	Version         int                      `yaml:"version"`
	StateDir        string                   `yaml:"state_dir,omitempty"`
	EphemeralTTL    string                   `yaml:"ephemeral_ttl,omitempty"`
	SweepInterval   string                   `yaml:"sweep_interval,omitempty"`
	Store           BackendConfig            `yaml:"store"`
	ExternalManager *BackendConfig           `yaml:"externalManager,omitempty"`
	Managers        map[string]BackendConfig `yaml:"managers,omitempty"`
}

// BackendConfig holds backend-specific configuration for a secret store
// or external manager.
type BackendConfig struct {
	Type      string                 `yaml:"type"`
	TimeoutMs int                    `yaml:"timeout_ms,omitempty"`
	Config    map[string]interface{} `yaml:",inline"`
}

// Timeout converts the configured timeout to a duration, with a default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Load reads and parses the confseal.yaml file.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return cserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a confseal.yaml or pass --config with the file location",
			}
		}
		return cserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return cserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 {
		return cserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your confseal.yaml file",
		}
	}

	if def.Store.Type == "" {
		return cserrors.ConfigError{
			Field:      "store.type",
			Message:    "a secret store backend is required",
			Suggestion: "Set store.type to one of: memory, keyring, gcp.secretmanager, aws.secretsmanager, azure.keyvault",
		}
	}

	if def.EphemeralTTL != "" {
		if _, err := time.ParseDuration(def.EphemeralTTL); err != nil {
			return cserrors.ConfigError{
				Field:      "ephemeral_ttl",
				Value:      def.EphemeralTTL,
				Message:    "invalid duration",
				Suggestion: "Use Go duration syntax, e.g. '2h' or '90m'",
			}
		}
	}
	if def.SweepInterval != "" {
		if _, err := time.ParseDuration(def.SweepInterval); err != nil {
			return cserrors.ConfigError{
				Field:      "sweep_interval",
				Value:      def.SweepInterval,
				Message:    "invalid duration",
				Suggestion: "Use Go duration syntax, e.g. '15m'",
			}
		}
	}

	c.Definition = &def
	return nil
}

// EphemeralTTL returns the configured time-to-live for sentinel-owned
// coordinates, or zero when unset (callers apply their own default).
func (c *Config) EphemeralTTL() time.Duration {
	if c.Definition == nil || c.Definition.EphemeralTTL == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Definition.EphemeralTTL)
	return d
}

// SweepInterval returns the configured sweep cadence, or zero when unset.
func (c *Config) SweepInterval() time.Duration {
	if c.Definition == nil || c.Definition.SweepInterval == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Definition.SweepInterval)
	return d
}

// GetManager returns the configuration for a named external manager.
// The externalManager block acts as the default when no name is given.
func (c *Config) GetManager(name string) (BackendConfig, error) {
	if c.Definition == nil {
		return BackendConfig{}, cserrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	if name == "" {
		if c.Definition.ExternalManager == nil {
			return BackendConfig{}, cserrors.ConfigError{
				Field:      "externalManager",
				Message:    "no external manager configured",
				Suggestion: "Add an externalManager block to confseal.yaml to resolve ${NAME} references",
			}
		}
		return *c.Definition.ExternalManager, nil
	}

	if mgr, ok := c.Definition.Managers[name]; ok {
		return mgr, nil
	}
	return BackendConfig{}, cserrors.ConfigError{
		Field:      "managers",
		Value:      name,
		Message:    "external manager not found",
		Suggestion: fmt.Sprintf("Add a managers.%s block to confseal.yaml", name),
	}
}
