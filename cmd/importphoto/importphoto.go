// Package importphoto implements the import subcommand.
package importphoto

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tkoivula/photonest/internal/app"
	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/enrichment"
)

// Command creates the import command, which ingests one or more image files
// and runs the full enrichment pipeline on each.
func Command(settings *conf.Settings) *cobra.Command {
	var lat, lon float64
	var hasCoords bool

	cmd := &cobra.Command{
		Use:   "import [image...]",
		Short: "Import photos and enrich them",
		Long:  `Import one or more image files, classify their content, and resolve their location through reverse geocoding or place prediction.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(settings)
			if err != nil {
				return err
			}
			defer application.Close()

			hasCoords = cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}

				opts := enrichment.ImportOptions{FileName: filepath.Base(path)}
				if hasCoords {
					opts.Latitude = &lat
					opts.Longitude = &lon
				}

				photo, err := application.Orchestrator.ImportAndEnrich(cmd.Context(), data, opts)
				if err != nil {
					return fmt.Errorf("importing %s: %w", path, err)
				}
				printOutcome(cmd, photo.ID, path)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Override capture latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Override capture longitude")
	cmd.Flags().BoolVar(&settings.Import.DetectDupes, "detect-dupes", settings.Import.DetectDupes, "Skip perceptually identical imports")

	return cmd
}

func printOutcome(cmd *cobra.Command, photoID, path string) {
	cmd.Printf("imported %s as %s\n", path, photoID)
}
