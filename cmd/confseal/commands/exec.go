package commands

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/confseal/internal/config"
	"github.com/systmms/confseal/internal/execenv"
)

func NewExecCommand(cfg *config.Config) *cobra.Command {
	var (
		docPath    string
		schemaPath string
		envVar     string
		workingDir string
		timeout    time.Duration
		printVars  bool
	)

	cmd := &cobra.Command{
		Use:   "exec --doc <file> --schema <file> -- <command> [args...]",
		Short: "Run a command with the hydrated configuration",
		Long: `Hydrate an obfuscated JSON configuration and run a command with the
plaintext document in a mode 0600 temp file. The file path is exposed
to the child through the CONFSEAL_CONFIG environment variable and the
file is removed when the command exits.

The child's exit code becomes confseal's exit code.

Examples:
  confseal exec --doc stored.json --schema spec.json -- npm start
  confseal exec --doc stored.json --schema spec.json --env-var APP_CONFIG -- ./server`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readJSONFile(docPath)
			if err != nil {
				return err
			}
			spec, err := readJSONFile(schemaPath)
			if err != nil {
				return err
			}

			manager, err := buildManager(cfg)
			if err != nil {
				return err
			}

			ctx := context.Background()
			hydrated, err := manager.Hydrate(ctx, doc, spec)
			if err != nil {
				return err
			}

			executor := execenv.New(cfg.Logger)
			code, err := executor.Exec(ctx, execenv.Options{
				Command:    args,
				Document:   hydrated,
				EnvVar:     envVar,
				PrintVars:  printVars,
				WorkingDir: workingDir,
				Timeout:    timeout,
			})
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Obfuscated JSON configuration (use - for stdin)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON schema with airbyte_secret annotations")
	cmd.Flags().StringVar(&envVar, "env-var", "", "Variable carrying the config path (default CONFSEAL_CONFIG)")
	cmd.Flags().StringVar(&workingDir, "workdir", "", "Working directory for the command")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Kill the command after this duration (0 for none)")
	cmd.Flags().BoolVar(&printVars, "print-vars", false, "Print variable names with masked values")
	_ = cmd.MarkFlagRequired("doc")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}
