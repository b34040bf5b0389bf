package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SaveSettings writes the settings to a YAML file, creating the parent
// directory if needed.
func SaveSettings(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// createDefaultConfig writes a config file with the default values to the
// user config directory, so first-run users get a file they can edit.
// Expects viper defaults to be set already. Returns the path of the created
// file.
func createDefaultConfig() (string, error) {
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	// The user config directory, not the working directory
	configPath := filepath.Join(paths[1], "config.yaml")

	defaults := &Settings{}
	if err := viper.Unmarshal(defaults); err != nil {
		return "", fmt.Errorf("unmarshaling default settings: %w", err)
	}

	if err := SaveSettings(defaults, configPath); err != nil {
		return "", err
	}
	return configPath, nil
}
