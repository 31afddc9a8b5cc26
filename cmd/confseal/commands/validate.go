package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/confseal/internal/config"
	"github.com/systmms/confseal/internal/reference"
	"github.com/systmms/confseal/internal/schema"
	"github.com/systmms/confseal/internal/stores"
	"github.com/systmms/confseal/internal/walker"
)

func NewValidateCommand(cfg *config.Config) *cobra.Command {
	var (
		docPath    string
		schemaPath string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a document's secret references without touching values",
		Long: `List the secret paths a schema declares and verify that every
reference in the document is well formed. External references are
checked for existence against the configured manager; no secret value
is ever read or printed.

When --doc is omitted only the schema is scanned.

Examples:
  confseal validate --schema spec.json
  confseal validate --doc stored.json --schema spec.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readJSONFile(schemaPath)
			if err != nil {
				return err
			}

			paths, err := schema.Scan(spec)
			if err != nil {
				return err
			}

			cfg.Logger.Info("Schema declares %d secret field(s)", len(paths))
			for _, p := range paths {
				cfg.Logger.Info("  %s", p.String())
			}

			if docPath == "" {
				return nil
			}

			doc, err := readJSONFile(docPath)
			if err != nil {
				return err
			}

			if err := cfg.Load(); err != nil {
				return err
			}
			registry := stores.NewRegistry()
			resolver, err := buildResolver(cfg, registry)
			if err != nil {
				return err
			}

			ctx := context.Background()
			var coordinates, externals, plaintext int

			visit := walker.VisitorFunc(func(path schema.Path, value any) (any, error) {
				ref, ok, err := reference.ParseValue(value)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", path.String(), err)
				}
				switch {
				case !ok:
					plaintext++
				case ref.Coordinate != nil:
					coordinates++
				case ref.External != nil:
					externals++
					if resolver == nil {
						return nil, fmt.Errorf("%s: external reference %s but no external manager configured", path.String(), ref.External.String())
					}
					if err := resolver.Validate(ctx, *ref.External); err != nil {
						return nil, err
					}
				}
				return value, nil
			})

			if _, err := walker.Walk(doc, spec, visit); err != nil {
				return err
			}

			cfg.Logger.Info("✓ Document valid: %d coordinate(s), %d external reference(s), %d plaintext field(s)", coordinates, externals, plaintext)
			if plaintext > 0 {
				cfg.Logger.Warn("Document still contains %d plaintext secret field(s). Run 'confseal obfuscate' before persisting it", plaintext)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "JSON configuration to check (optional)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON schema with airbyte_secret annotations")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}
