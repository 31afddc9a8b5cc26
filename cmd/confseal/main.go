package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/confseal/cmd/confseal/commands"
	"github.com/systmms/confseal/internal/config"
	"github.com/systmms/confseal/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "confseal",
		Short: "Seal and unseal secret fields in JSON configuration",
		Long: `confseal replaces the secret fields of a JSON configuration with
opaque coordinates backed by a secret store, and resolves them back on
demand. Fields are located through airbyte_secret annotations in the
configuration's JSON schema.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			cfg.Path = configFile
			cfg.Logger = logger
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Non-interactive mode")

	rootCmd.AddCommand(
		commands.NewObfuscateCommand(cfg),
		commands.NewHydrateCommand(cfg),
		commands.NewValidateCommand(cfg),
		commands.NewDeleteCommand(cfg),
		commands.NewExecCommand(cfg),
		commands.NewSweepCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
