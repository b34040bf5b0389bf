// Package list implements the list subcommand.
package list

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkoivula/photonest/internal/app"
	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/datastore"
)

// Command creates the list command, which prints the library with each
// photo's enrichment results.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List photos and their enrichment results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(settings)
			if err != nil {
				return err
			}
			defer application.Close()

			photos, err := application.Store.GetAllPhotos()
			if err != nil {
				return err
			}

			for i := range photos {
				printPhoto(cmd, &photos[i])
			}
			cmd.Printf("%d photos\n", len(photos))
			return nil
		},
	}
}

func printPhoto(cmd *cobra.Command, photo *datastore.Photo) {
	label := "-"
	if photo.ClassificationLabel != nil {
		label = *photo.ClassificationLabel
	}

	location := "-"
	switch {
	case photo.LocationName != nil:
		location = *photo.LocationName
	case photo.PredictedLocation != nil:
		location = *photo.PredictedLocation + " (predicted)"
	}

	var tags []string
	for _, tag := range photo.Tags {
		tags = append(tags, tag.Name)
	}
	tagList := "-"
	if len(tags) > 0 {
		tagList = strings.Join(tags, ",")
	}

	cmd.Printf("%s  %s  %-12s  %-30s  %s\n",
		photo.ID, photo.CreatedAt.Format("2006-01-02"), label, location, tagList)
}
