package conf

import (
	"fmt"
	"time"
)

// ValidateSettings checks the loaded settings for configuration errors that
// would only surface later at runtime.
func ValidateSettings(settings *Settings) error {
	if err := validateClassifierSettings(&settings.Classifier); err != nil {
		return err
	}
	if err := validatePlaceSettings(&settings.Place); err != nil {
		return err
	}
	if err := validateGeocoderSettings(&settings.Geocoder); err != nil {
		return err
	}
	return validateOutputSettings(&settings.Output)
}

func validateClassifierSettings(s *ClassifierSettings) error {
	if s.Sensitivity < 0.5 || s.Sensitivity > 1.5 {
		return fmt.Errorf("classifier sensitivity must be between 0.5 and 1.5, got %.2f", s.Sensitivity)
	}
	if s.Threads < 0 {
		return fmt.Errorf("classifier threads must not be negative, got %d", s.Threads)
	}
	return nil
}

func validatePlaceSettings(s *PlaceSettings) error {
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		return fmt.Errorf("place minconfidence must be within [0,1], got %.2f", s.MinConfidence)
	}
	return nil
}

func validateGeocoderSettings(s *GeocoderSettings) error {
	if s.Provider != "nominatim" {
		return fmt.Errorf("unsupported geocoder provider: %s", s.Provider)
	}
	if s.Endpoint == "" {
		return fmt.Errorf("geocoder endpoint must not be empty")
	}
	// A gap below one second would violate the provider usage policy.
	if s.MinInterval < time.Second {
		return fmt.Errorf("geocoder mininterval must be at least 1s, got %s", s.MinInterval)
	}
	return nil
}

func validateOutputSettings(s *OutputSettings) error {
	if !s.SQLite.Enabled && !s.MySQL.Enabled {
		return fmt.Errorf("no database output enabled, enable either sqlite or mysql")
	}
	if s.SQLite.Enabled && s.SQLite.Path == "" {
		return fmt.Errorf("sqlite enabled but path is empty")
	}
	if s.MySQL.Enabled {
		if s.MySQL.Username == "" || s.MySQL.Database == "" || s.MySQL.Host == "" {
			return fmt.Errorf("mysql enabled but username, database or host is empty")
		}
	}
	return nil
}
