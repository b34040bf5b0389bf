// defaults.go default values for PhotoNest configuration
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main settings
	viper.SetDefault("main.name", "PhotoNest")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/photonest.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10485760)

	// Classifier settings
	viper.SetDefault("classifier.modelpath", "")
	viper.SetDefault("classifier.labelpath", "")
	viper.SetDefault("classifier.sensitivity", 1.0)
	viper.SetDefault("classifier.threads", 0)

	// Place prediction settings
	viper.SetDefault("place.minconfidence", 0.15)

	// Geocoder settings
	viper.SetDefault("geocoder.provider", "nominatim")
	viper.SetDefault("geocoder.endpoint", "https://nominatim.openstreetmap.org/reverse")
	viper.SetDefault("geocoder.mininterval", time.Second)
	viper.SetDefault("geocoder.cachettl", 14*24*time.Hour)
	viper.SetDefault("geocoder.timeout", 10*time.Second)

	// Import settings
	viper.SetDefault("import.mediapath", "media")
	viper.SetDefault("import.detectdupes", true)
	viper.SetDefault("import.dupethreshold", 10)

	// Output settings
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "photonest.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "photonest")
	viper.SetDefault("output.mysql.database", "photonest")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	// Telemetry is opt-in
	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
