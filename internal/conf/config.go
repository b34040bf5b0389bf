// config.go: This file contains the configuration for the PhotoNest application.
// It defines the settings struct and functions to load and validate the settings.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// MainSettings contains application-wide settings.
type MainSettings struct {
	Name string    // name of this node, used to identify the source of photos
	Log  LogConfig // main log file configuration
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // path to log file
	Rotation RotationType // rotation type
	MaxSize  int64        // max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// ClassifierSettings contains settings for the on-device image classifier.
type ClassifierSettings struct {
	ModelPath   string  // path to an external TFLite model file, empty to use the embedded label set with a stub engine
	LabelPath   string  // path to the label file, one label per line
	Sensitivity float64 // sigmoid sensitivity, 0.5 to 1.5
	Threads     int     // number of CPU threads for inference, 0 for runtime default
}

// PlaceSettings contains settings for ML place prediction.
type PlaceSettings struct {
	MinConfidence float64 // predictions below this confidence are reported as "no prediction"
}

// GeocoderSettings contains settings for the reverse geocoding gateway.
type GeocoderSettings struct {
	Provider    string        // geocoding provider, only "nominatim" is supported
	Endpoint    string        // provider endpoint URL
	MinInterval time.Duration // minimum gap between outbound provider calls, process-wide
	CacheTTL    time.Duration // how long geocoding results are cached in memory
	Timeout     time.Duration // HTTP request timeout
}

// ImportSettings contains settings for photo import.
type ImportSettings struct {
	MediaPath     string // directory where imported image files are stored
	DetectDupes   bool   // true to skip perceptually identical imports
	DupeThreshold int    // maximum dHash Hamming distance treated as a duplicate
}

// OutputSettings contains the persistence configuration.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   // true to enable SQLite
		Path    string // path to the SQLite database file
	}
	MySQL struct {
		Enabled  bool   // true to enable MySQL
		Username string // MySQL username
		Password string // MySQL password
		Database string // MySQL database name
		Host     string // MySQL host
		Port     string // MySQL port
	}
}

// SentrySettings contains the error telemetry configuration. Telemetry is
// opt-in and disabled by default.
type SentrySettings struct {
	Enabled bool   // true to enable Sentry error reporting
	DSN     string // Sentry DSN
}

// Settings contains all configuration options for PhotoNest.
type Settings struct {
	Debug bool // true to enable debug logging

	Main       MainSettings
	Classifier ClassifierSettings
	Place      PlaceSettings
	Geocoder   GeocoderSettings
	Import     ImportSettings
	Output     OutputSettings
	Sentry     SentrySettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into the global settings instance.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// No config file found, write one with the defaults
		if path, err := createDefaultConfig(); err != nil {
			log.Printf("Config file not found, cannot create default: %v", err)
		} else {
			log.Printf("Config file not found, created %s with defaults", path)
		}
	}

	return nil
}

// Setting returns the current settings instance, loading defaults if no
// configuration has been loaded yet.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("error loading settings: %v", err)
			}
		}
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetDefaultConfigPaths returns the default config file search paths.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user directory: %w", err)
	}

	return []string{
		".",
		filepath.Join(homeDir, ".config", "photonest"),
		"/etc/photonest",
	}, nil
}

// GetBasePath expands a relative directory against the working directory and
// ensures it exists.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		log.Printf("failed to create directory %s: %v", path, err)
	}
	return path
}
