package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/systmms/confseal/internal/config"
	"github.com/systmms/confseal/internal/lifecycle"
)

func NewObfuscateCommand(cfg *config.Config) *cobra.Command {
	var (
		docPath     string
		schemaPath  string
		owner       string
		prevDocPath string
		prevHydPath string
		outPath     string
	)

	cmd := &cobra.Command{
		Use:   "obfuscate",
		Short: "Replace secret fields with store-backed coordinates",
		Long: `Walk a JSON configuration alongside its schema and replace every
field flagged with airbyte_secret by a coordinate reference. Plaintext
values are written to the configured secret store; the output document
contains only opaque coordinates.

Without --owner the coordinates belong to the ephemeral sentinel owner
and expire after the configured time-to-live.

Examples:
  # Obfuscate a new configuration
  confseal obfuscate --doc source.json --schema spec.json --owner 9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d

  # Re-obfuscate, carrying unchanged secrets forward from the previous round
  confseal obfuscate --doc updated.json --schema spec.json \
    --owner 9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d \
    --prev-obfuscated stored.json --prev-hydrated previous-plain.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readJSONFile(docPath)
			if err != nil {
				return err
			}
			spec, err := readJSONFile(schemaPath)
			if err != nil {
				return err
			}

			ownerID, err := parseOwner(owner)
			if err != nil {
				return err
			}

			var prev *lifecycle.Previous
			if prevDocPath != "" {
				prevDoc, err := readJSONFile(prevDocPath)
				if err != nil {
					return err
				}
				prev = &lifecycle.Previous{Obfuscated: prevDoc}
				if prevHydPath != "" {
					prevHyd, err := readJSONFile(prevHydPath)
					if err != nil {
						return err
					}
					prev.Hydrated = prevHyd
				}
			}

			manager, err := buildManager(cfg)
			if err != nil {
				return err
			}

			obfuscated, err := manager.Obfuscate(context.Background(), doc, spec, ownerID, prev)
			if err != nil {
				return err
			}

			return writeJSONOutput(obfuscated, outPath)
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "JSON configuration to obfuscate (use - for stdin)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON schema with airbyte_secret annotations")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner workspace UUID (omit for ephemeral)")
	cmd.Flags().StringVar(&prevDocPath, "prev-obfuscated", "", "Previously obfuscated document, for coordinate reuse")
	cmd.Flags().StringVar(&prevHydPath, "prev-hydrated", "", "Previously hydrated document, for change detection")
	cmd.Flags().StringVar(&outPath, "out", "", "Output path (default stdout)")
	_ = cmd.MarkFlagRequired("doc")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}
