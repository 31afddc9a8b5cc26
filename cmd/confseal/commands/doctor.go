package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/systmms/confseal/internal/config"
	"github.com/systmms/confseal/internal/coordinate"
	"github.com/systmms/confseal/internal/lifecycle"
	"github.com/systmms/confseal/internal/stores"
	"github.com/systmms/confseal/pkg/secretstore"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check store connectivity and configuration",
		Long: `Verify that the secret store and external manager are properly
configured and accessible.

This command checks:
- Configuration file validity
- Secret store backend construction and authentication
- External manager reachability
- Pending-deletion state directory permissions

With --probe it also writes, reads back, and deletes one throwaway
payload under an ephemeral coordinate to exercise the full store path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking confseal configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.Logger.Info("✓ Configuration loaded successfully")

			registry := stores.NewRegistry()
			failures := 0

			store, storeName, err := buildStore(cfg, registry)
			if err != nil {
				cfg.Logger.Error("✗ Secret store '%s': %v", cfg.Definition.Store.Type, err)
				failures++
			} else {
				cfg.Logger.Info("✓ Secret store '%s' ready", storeName)
			}

			resolver, err := buildResolver(cfg, registry)
			switch {
			case err != nil:
				cfg.Logger.Error("✗ External manager '%s': %v", cfg.Definition.ExternalManager.Type, err)
				failures++
			case resolver == nil:
				cfg.Logger.Info("- No external manager configured (${NAME} references will fail)")
			default:
				cfg.Logger.Info("✓ External manager '%s' ready", resolver.Backend())
			}

			stateDir := cfg.Definition.StateDir
			if stateDir == "" {
				stateDir = lifecycle.DefaultRegistryDir()
			}
			if err := checkStateDir(stateDir); err != nil {
				cfg.Logger.Error("✗ State directory %s: %v", stateDir, err)
				failures++
			} else {
				cfg.Logger.Info("✓ State directory %s writable", stateDir)
			}

			if probe && store != nil {
				coord := coordinate.Mint(coordinate.SentinelOwner)
				ctx := context.Background()
				if err := probeStore(ctx, store, coord.String()); err != nil {
					cfg.Logger.Error("✗ Store probe failed: %v", err)
					failures++
				} else {
					cfg.Logger.Info("✓ Store probe succeeded (write, read, delete)")
				}
			}

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			cfg.Logger.Info("All checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Write and delete a throwaway payload to test the store")

	return cmd
}

// checkStateDir verifies the pending-deletion directory can be created
// and written.
func checkStateDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0600); err != nil {
		return err
	}
	return os.Remove(probe)
}

// probeStore runs one write/read/delete cycle against the store.
func probeStore(ctx context.Context, store secretstore.Store, coord string) error {
	const payload = "confseal-doctor-probe"
	if err := store.Write(ctx, coord, payload); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	got, err := store.Read(ctx, coord)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if got != payload {
		return fmt.Errorf("read returned unexpected payload")
	}
	if err := store.Delete(ctx, coord); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
