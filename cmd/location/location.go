// Package location implements the location subcommands.
package location

import (
	"github.com/spf13/cobra"

	"github.com/tkoivula/photonest/internal/app"
	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/enrichment"
)

// Command creates the location command group for re-running the location
// stage of a photo. Which subcommand applies depends on the photo's branch:
// refresh for GPS photos, repredict for photos without GPS data.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Re-run location enrichment",
	}

	cmd.AddCommand(refreshCommand(settings), repredictCommand(settings))
	return cmd
}

func refreshCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [photo-id]",
		Short: "Re-run reverse geocoding for a photo with GPS data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rerun(cmd, settings, args[0], func(application *app.App, id string) (enrichment.RerunResult, error) {
				return application.Orchestrator.RefreshLocation(cmd.Context(), id)
			})
		},
	}
}

func repredictCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "repredict [photo-id]",
		Short: "Re-run place prediction for a photo without GPS data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rerun(cmd, settings, args[0], func(application *app.App, id string) (enrichment.RerunResult, error) {
				return application.Orchestrator.RepredictLocation(cmd.Context(), id)
			})
		},
	}
}

func rerun(cmd *cobra.Command, settings *conf.Settings, photoID string,
	op func(*app.App, string) (enrichment.RerunResult, error)) error {
	application, err := app.New(settings)
	if err != nil {
		return err
	}
	defer application.Close()

	result, err := op(application, photoID)
	if err != nil {
		return err
	}
	switch {
	case !result.Success:
		cmd.Println("location stage failed, see the photo's state")
	case result.Changed:
		cmd.Println("location updated")
	default:
		cmd.Println("location unchanged")
	}
	return nil
}
