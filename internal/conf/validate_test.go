package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	settings := &Settings{}
	settings.Classifier.Sensitivity = 1.0
	settings.Place.MinConfidence = 0.15
	settings.Geocoder.Provider = "nominatim"
	settings.Geocoder.Endpoint = "https://nominatim.openstreetmap.org/reverse"
	settings.Geocoder.MinInterval = time.Second
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = "photonest.db"
	return settings
}

func TestValidateSettingsAccepted(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejected(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"sensitivity too low", func(s *Settings) { s.Classifier.Sensitivity = 0.4 }},
		{"sensitivity too high", func(s *Settings) { s.Classifier.Sensitivity = 1.6 }},
		{"negative threads", func(s *Settings) { s.Classifier.Threads = -1 }},
		{"minconfidence above one", func(s *Settings) { s.Place.MinConfidence = 1.1 }},
		{"minconfidence negative", func(s *Settings) { s.Place.MinConfidence = -0.1 }},
		{"unknown provider", func(s *Settings) { s.Geocoder.Provider = "google" }},
		{"empty endpoint", func(s *Settings) { s.Geocoder.Endpoint = "" }},
		{"interval below policy minimum", func(s *Settings) { s.Geocoder.MinInterval = 500 * time.Millisecond }},
		{"no database enabled", func(s *Settings) { s.Output.SQLite.Enabled = false }},
		{"sqlite without path", func(s *Settings) { s.Output.SQLite.Path = "" }},
		{"mysql incomplete", func(s *Settings) {
			s.Output.SQLite.Enabled = false
			s.Output.MySQL.Enabled = true
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := validSettings()
			tc.mutate(settings)
			assert.Error(t, ValidateSettings(settings))
		})
	}
}
