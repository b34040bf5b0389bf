// Package telemetry provides optional, opt-in error reporting to Sentry.
// Only pre-anonymized error metadata (component, category, context built by
// the errors package) is ever transmitted; telemetry is disabled by default.
package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/errors"
	"github.com/tkoivula/photonest/internal/logging"
)

var logger *slog.Logger

// sentryReporter forwards enhanced errors to Sentry.
type sentryReporter struct{}

// ReportError implements errors.TelemetryReporter.
func (r *sentryReporter) ReportError(ee *errors.EnhancedError) {
	event := sentry.NewEvent()
	event.Level = sentryLevel(ee.GetPriority())
	event.Message = ee.GetMessage()
	event.Tags = map[string]string{
		"component": ee.GetComponent(),
		"category":  ee.GetCategory(),
	}
	if ctx := ee.GetContext(); ctx != nil {
		event.Extra = ctx
	}
	sentry.CaptureEvent(event)
}

func sentryLevel(priority string) sentry.Level {
	switch priority {
	case errors.PriorityCritical:
		return sentry.LevelFatal
	case errors.PriorityHigh:
		return sentry.LevelError
	case errors.PriorityLow:
		return sentry.LevelInfo
	default:
		return sentry.LevelWarning
	}
}

// Init configures Sentry and installs the error reporter hook. It is a no-op
// when telemetry is disabled in the settings.
func Init(settings *conf.Settings) error {
	logger = logging.ForService("telemetry")

	if !settings.Sentry.Enabled {
		if logger != nil {
			logger.Debug("telemetry disabled, skipping Sentry initialization")
		}
		return nil
	}

	if settings.Sentry.DSN == "" {
		return errors.Newf("telemetry enabled but no DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		AttachStacktrace: false, // stack traces may contain file paths
		SampleRate:       1.0,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}

	errors.SetTelemetryReporter(&sentryReporter{})

	if logger != nil {
		logger.Info("telemetry initialized")
	}
	return nil
}

// Shutdown flushes pending events and removes the reporter hook.
func Shutdown(timeout time.Duration) {
	errors.SetTelemetryReporter(nil)
	sentry.Flush(timeout)
}
