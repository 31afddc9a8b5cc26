package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/systmms/confseal/internal/config"
	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/internal/external"
	"github.com/systmms/confseal/internal/lifecycle"
	"github.com/systmms/confseal/internal/stores"
	"github.com/systmms/confseal/pkg/secretstore"
)

// readJSONFile reads and parses a JSON document from a path, with "-"
// meaning stdin.
func readJSONFile(path string) (map[string]interface{}, error) {
	var data []byte
	var err error

	if path == "-" {
		data, err = os.ReadFile("/dev/stdin")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, cserrors.UserError{
			Message:    fmt.Sprintf("Failed to read file: %s", path),
			Details:    err.Error(),
			Suggestion: "Check that the file exists and is readable",
			Err:        err,
		}
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, cserrors.UserError{
			Message:    fmt.Sprintf("Invalid JSON in file: %s", path),
			Details:    err.Error(),
			Suggestion: "Check the file with a JSON validator",
			Err:        err,
		}
	}
	return doc, nil
}

// writeJSONOutput writes the document as indented JSON to the path, with
// "" or "-" meaning stdout.
func writeJSONOutput(doc map[string]interface{}, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	// Hydrated output can contain plaintext secrets
	return os.WriteFile(path, data, 0600)
}

// parseOwner converts an --owner flag value to a workspace ID. An empty
// value selects the ephemeral sentinel owner.
func parseOwner(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, cserrors.UserError{
			Message:    fmt.Sprintf("Invalid owner ID: %s", value),
			Details:    err.Error(),
			Suggestion: "Pass a UUID, or omit --owner for an ephemeral (expiring) owner",
			Err:        err,
		}
	}
	return id, nil
}

// buildStore constructs the configured secret store backend.
func buildStore(cfg *config.Config, registry *stores.Registry) (secretstore.Store, string, error) {
	storeCfg := cfg.Definition.Store
	store, err := registry.CreateStore(storeCfg.Type, storeCfg.Config)
	if err != nil {
		return nil, "", err
	}
	return store, storeCfg.Type, nil
}

// buildResolver constructs the external manager resolver when one is
// configured. Returns nil when the config has no externalManager block;
// documents without external references do not need one.
func buildResolver(cfg *config.Config, registry *stores.Registry) (*external.Resolver, error) {
	if cfg.Definition.ExternalManager == nil {
		return nil, nil
	}
	mgrCfg := *cfg.Definition.ExternalManager
	manager, err := registry.CreateManager(mgrCfg.Type, mgrCfg.Config)
	if err != nil {
		return nil, err
	}
	resolver := external.New(mgrCfg.Type, manager, cfg.Logger, external.WithTimeout(mgrCfg.Timeout()))
	return resolver, nil
}

// buildManager wires the full lifecycle manager from configuration.
func buildManager(cfg *config.Config) (*lifecycle.Manager, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}

	registry := stores.NewRegistry()

	store, storeName, err := buildStore(cfg, registry)
	if err != nil {
		return nil, err
	}

	resolver, err := buildResolver(cfg, registry)
	if err != nil {
		return nil, err
	}

	stateDir := cfg.Definition.StateDir
	if stateDir == "" {
		stateDir = lifecycle.DefaultRegistryDir()
	}
	pending := lifecycle.NewFileRegistry(stateDir)

	opts := []lifecycle.ManagerOption{
		lifecycle.WithStoreName(storeName),
		lifecycle.WithStoreTimeout(cfg.Definition.Store.Timeout()),
	}
	if ttl := cfg.EphemeralTTL(); ttl > 0 {
		opts = append(opts, lifecycle.WithEphemeralTTL(ttl))
	}

	return lifecycle.NewManager(store, resolver, pending, cfg.Logger, opts...), nil
}
