// Package app wires the application components together for the CLI
// commands: persistence, the inference engines, the geocoding gateway, the
// event bus, and observability.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tkoivula/photonest/internal/classifier"
	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/datastore"
	"github.com/tkoivula/photonest/internal/enrichment"
	"github.com/tkoivula/photonest/internal/events"
	"github.com/tkoivula/photonest/internal/geocoder"
	"github.com/tkoivula/photonest/internal/logging"
	"github.com/tkoivula/photonest/internal/observability"
	"github.com/tkoivula/photonest/internal/placeclassifier"
	"github.com/tkoivula/photonest/internal/savestate"
	"github.com/tkoivula/photonest/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// App holds the wired application components.
type App struct {
	Settings     *conf.Settings
	Store        datastore.Interface
	Orchestrator *enrichment.Orchestrator
	Metrics      *observability.Metrics

	classifier *classifier.Classifier
	bus        *events.EventBus
	logger     *slog.Logger
}

// New builds the full component graph from settings. The caller owns the
// returned App and must Close it.
func New(settings *conf.Settings) (*App, error) {
	if err := conf.ValidateSettings(settings); err != nil {
		return nil, err
	}

	if err := telemetry.Init(settings); err != nil {
		return nil, err
	}

	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	store := datastore.New(settings)
	if store == nil {
		return nil, fmt.Errorf("no database output enabled")
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	bus, err := events.Initialize(nil)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	imageClassifier, err := classifier.New(settings, metrics.Classifier)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	places := placeclassifier.New(settings, imageClassifier)

	geo, err := geocoder.New(settings, store, metrics.Geocoder)
	if err != nil {
		imageClassifier.Close()
		_ = store.Close()
		return nil, err
	}

	media, err := enrichment.NewDiskStore(settings.Import.MediaPath)
	if err != nil {
		imageClassifier.Close()
		_ = store.Close()
		return nil, err
	}

	saver := savestate.New(bus)
	orchestrator := enrichment.New(settings, store, media,
		imageClassifier, places, geo, bus, saver, metrics.Enrichment)

	return &App{
		Settings:     settings,
		Store:        store,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		classifier:   imageClassifier,
		bus:          bus,
		logger:       logging.ForService("app"),
	}, nil
}

// Close releases all components in reverse wiring order.
func (a *App) Close() {
	if a.classifier != nil {
		if err := a.classifier.Close(); err != nil && a.logger != nil {
			a.logger.Warn("classifier shutdown", "error", err)
		}
	}
	if a.bus != nil {
		if err := a.bus.Shutdown(shutdownTimeout); err != nil && a.logger != nil {
			a.logger.Warn("event bus shutdown", "error", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && a.logger != nil {
			a.logger.Warn("datastore shutdown", "error", err)
		}
	}
	telemetry.Shutdown(shutdownTimeout)
}
