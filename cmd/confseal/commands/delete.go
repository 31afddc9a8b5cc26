package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/confseal/internal/config"
	"github.com/systmms/confseal/internal/coordinate"
	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/internal/lifecycle"
)

func NewDeleteCommand(cfg *config.Config) *cobra.Command {
	var (
		docPath    string
		schemaPath string
	)

	cmd := &cobra.Command{
		Use:   "delete [coordinate...]",
		Short: "Delete stored secret payloads",
		Long: `Delete secret payloads from the configured store, either by
explicit coordinate or for every coordinate referenced by an
obfuscated document.

Deletion is best effort: a payload that cannot be deleted now is
recorded and retried by 'confseal sweep'.

Examples:
  confseal delete airbyte_workspace_9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d_secret_7c9e6679-7425-40de-944b-e07fc1f90ae7_v1
  confseal delete --doc stored.json --schema spec.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var coords []coordinate.Coordinate

			for _, arg := range args {
				coord, err := coordinate.Parse(arg)
				if err != nil {
					return err
				}
				coords = append(coords, coord)
			}

			if docPath != "" {
				if schemaPath == "" {
					return cserrors.UserError{
						Message:    "A schema is required to delete by document",
						Suggestion: "Pass --schema alongside --doc",
					}
				}
				doc, err := readJSONFile(docPath)
				if err != nil {
					return err
				}
				spec, err := readJSONFile(schemaPath)
				if err != nil {
					return err
				}
				docCoords, err := lifecycle.CollectCoordinates(doc, spec)
				if err != nil {
					return err
				}
				coords = append(coords, docCoords...)
			}

			if len(coords) == 0 {
				return cserrors.UserError{
					Message:    "Nothing to delete",
					Suggestion: "Pass coordinates as arguments or --doc with --schema",
				}
			}

			manager, err := buildManager(cfg)
			if err != nil {
				return err
			}

			deleted := manager.DeleteAll(context.Background(), coords)
			cfg.Logger.Info("Deleted %d of %d payload(s)", deleted, len(coords))
			if deleted < len(coords) {
				return fmt.Errorf("%d payload(s) could not be deleted now; they will be retried by 'confseal sweep'", len(coords)-deleted)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Obfuscated document whose coordinates should be deleted")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON schema with airbyte_secret annotations")

	return cmd
}
