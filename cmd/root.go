package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tkoivula/photonest/cmd/importphoto"
	"github.com/tkoivula/photonest/cmd/list"
	"github.com/tkoivula/photonest/cmd/location"
	"github.com/tkoivula/photonest/cmd/reclassify"
	"github.com/tkoivula/photonest/cmd/tag"
	"github.com/tkoivula/photonest/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "photonest",
		Short: "PhotoNest photo enrichment CLI",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		importphoto.Command(settings),
		reclassify.Command(settings),
		location.Command(settings),
		tag.Command(settings),
		list.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Classifier.ModelPath, "model", settings.Classifier.ModelPath, "Path to the TFLite scene model file")
	rootCmd.PersistentFlags().Float64Var(&settings.Classifier.Sensitivity, "sensitivity", settings.Classifier.Sensitivity, "Sigmoid sensitivity value between 0.5 and 1.5")
}
