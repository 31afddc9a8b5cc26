package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/systmms/confseal/internal/config"
)

func NewHydrateCommand(cfg *config.Config) *cobra.Command {
	var (
		docPath    string
		schemaPath string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "hydrate",
		Short: "Resolve coordinates back into plaintext secret values",
		Long: `Walk an obfuscated JSON configuration alongside its schema and
replace every coordinate wrapper and external reference with the
plaintext value it stands for.

The output contains live secrets. It goes to stdout by default; when
--out is given the file is written with mode 0600.

Examples:
  confseal hydrate --doc stored.json --schema spec.json
  confseal hydrate --doc stored.json --schema spec.json --out plain.json`,
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

			hydrated, err := manager.Hydrate(context.Background(), doc, spec)
			if err != nil {
				return err
			}

			return writeJSONOutput(hydrated, outPath)
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Obfuscated JSON configuration (use - for stdin)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON schema with airbyte_secret annotations")
	cmd.Flags().StringVar(&outPath, "out", "", "Output path (default stdout)")
	_ = cmd.MarkFlagRequired("doc")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}
