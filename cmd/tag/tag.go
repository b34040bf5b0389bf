// Package tag implements the tag subcommands.
package tag

import (
	"github.com/spf13/cobra"

	"github.com/tkoivula/photonest/internal/app"
	"github.com/tkoivula/photonest/internal/conf"
)

// Command creates the tag command group. Tags are created lazily on first
// use and removed automatically when their last reference goes away.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage photo tags",
	}

	cmd.AddCommand(addCommand(settings), removeCommand(settings))
	return cmd
}

func addCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "add [photo-id] [tag]",
		Short: "Attach a tag to a photo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(settings)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Orchestrator.AddTag(args[0], args[1])
		},
	}
}

func removeCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [photo-id] [tag]",
		Short: "Detach a tag from a photo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(settings)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Orchestrator.RemoveTag(args[0], args[1])
		},
	}
}
