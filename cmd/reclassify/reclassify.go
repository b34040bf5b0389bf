// Package reclassify implements the reclassify subcommand.
package reclassify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkoivula/photonest/internal/app"
	"github.com/tkoivula/photonest/internal/conf"
)

// Command creates the reclassify command, which re-runs image classification
// for one photo or for the whole library.
func Command(settings *conf.Settings) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reclassify [photo-id]",
		Short: "Re-run image classification",
		Long:  `Re-run image classification for a single photo, or with --all for every photo in the library. Stored results only change when the new prediction differs.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("provide a photo id or --all")
			}

			application, err := app.New(settings)
			if err != nil {
				return err
			}
			defer application.Close()

			if all {
				failures, err := application.Orchestrator.ReclassifyAll(cmd.Context(), func(current, total int) {
					cmd.Printf("\rreclassifying %d/%d", current, total)
				})
				cmd.Println()
				if err != nil {
					return err
				}
				if failures > 0 {
					cmd.Printf("%d photos failed classification\n", failures)
				}
				return nil
			}

			result, err := application.Orchestrator.Reclassify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			switch {
			case !result.Success:
				cmd.Println("classification failed, see the photo's error")
			case result.Changed:
				cmd.Println("classification updated")
			default:
				cmd.Println("classification unchanged")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reclassify every photo in the library")

	return cmd
}
