package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/confseal/internal/config"
	"github.com/systmms/confseal/internal/lifecycle"
	"github.com/systmms/confseal/internal/stores"
)

func NewSweepCommand(cfg *config.Config) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired ephemeral payloads and retry failed deletions",
		Long: `Process the pending-deletion registry: remove expired
sentinel-owned payloads from the secret store and retry deletions that
failed earlier. An entry leaves the registry only after the store
confirms the delete.

With --watch the sweeper keeps running at the configured interval
until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			registry := stores.NewRegistry()
			store, _, err := buildStore(cfg, registry)
			if err != nil {
				return err
			}

			stateDir := cfg.Definition.StateDir
			if stateDir == "" {
				stateDir = lifecycle.DefaultRegistryDir()
			}
			pending := lifecycle.NewFileRegistry(stateDir)

			var opts []lifecycle.SweeperOption
			if interval := cfg.SweepInterval(); interval > 0 {
				opts = append(opts, lifecycle.WithSweepInterval(interval))
			}
			sweeper := lifecycle.NewSweeper(store, pending, cfg.Logger, opts...)

			if watch {
				ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				sweeper.Run(ctx)
				return nil
			}

			deleted, err := sweeper.SweepOnce(context.Background(), time.Now())
			if err != nil {
				return err
			}
			cfg.Logger.Info("Swept %d payload(s)", deleted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep sweeping at the configured interval")

	return cmd
}
