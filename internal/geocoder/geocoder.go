// Package geocoder resolves GPS coordinates to human-readable locations.
// All outbound provider traffic flows through a single process-wide rate
// limiter so concurrent photos cannot exceed the provider's usage policy.
package geocoder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/datastore"
	"github.com/tkoivula/photonest/internal/errors"
	"github.com/tkoivula/photonest/internal/logging"
	"github.com/tkoivula/photonest/internal/observability"
)

// Location is a resolved place. Name is the full display form, City and
// Country the structured parts.
type Location struct {
	Name    string
	City    string
	Country string
}

// Provider performs one reverse geocoding lookup. A nil Location with a nil
// error means the provider knows nothing about the coordinates, which is a
// successful outcome.
type Provider interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*Location, error)
}

// CacheStore persists geocoding results across process restarts. Implemented
// by the datastore.
type CacheStore interface {
	GetGeocodeCache(coordKey string) (*datastore.GeocodeCache, error)
	SaveGeocodeCache(entry *datastore.GeocodeCache) error
}

// Result carries a lookup outcome. Found is false when the provider had no
// data for the coordinates.
type Result struct {
	Found    bool
	Location Location
}

// Service is the reverse geocoding gateway. Lookups hit the in-memory cache,
// then the persistent cache, and only then wait on the shared limiter before
// calling the provider.
type Service struct {
	provider Provider
	limiter  *rate.Limiter
	memory   *gocache.Cache
	store    CacheStore
	metrics  *observability.GeocoderMetrics
	logger   *slog.Logger
}

var geocoderLogger *slog.Logger

func init() {
	var err error
	geocoderLogger, _, err = logging.NewFileLogger("logs/geocoder.log", "geocoder", slog.LevelInfo)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, nil)
		geocoderLogger = slog.New(fbHandler).With("service", "geocoder")
	}
}

// New creates a geocoding service using the configured provider.
func New(settings *conf.Settings, store CacheStore, metrics *observability.GeocoderMetrics) (*Service, error) {
	provider, err := newProvider(settings)
	if err != nil {
		return nil, err
	}
	return NewWithProvider(settings, provider, store, metrics), nil
}

// NewWithProvider creates a geocoding service around an existing provider.
func NewWithProvider(settings *conf.Settings, provider Provider, store CacheStore, metrics *observability.GeocoderMetrics) *Service {
	minInterval := settings.Geocoder.MinInterval
	if minInterval < time.Second {
		minInterval = time.Second
	}
	cacheTTL := settings.Geocoder.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Service{
		provider: provider,
		// Burst of one with a fixed refill interval keeps outbound calls at
		// least minInterval apart in FIFO order.
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		memory:  gocache.New(cacheTTL, 10*time.Minute),
		store:   store,
		metrics: metrics,
		logger:  geocoderLogger,
	}
}

func newProvider(settings *conf.Settings) (Provider, error) {
	switch settings.Geocoder.Provider {
	case "", "nominatim":
		return newNominatimProvider(settings), nil
	default:
		return nil, errors.Newf("geocoder: unsupported provider %q", settings.Geocoder.Provider).
			Component("geocoder").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// coordKey rounds coordinates to four decimal places, roughly eleven meters,
// so nearby lookups share cache entries.
func coordKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// ReverseGeocode resolves coordinates to a location. Cache hits return
// immediately and never consume limiter capacity.
func (s *Service) ReverseGeocode(ctx context.Context, lat, lon float64) (Result, error) {
	key := coordKey(lat, lon)

	if cached, ok := s.memory.Get(key); ok {
		s.metrics.IncrementCacheHits()
		return cached.(Result), nil
	}

	if s.store != nil {
		entry, err := s.store.GetGeocodeCache(key)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("persistent geocode cache read failed", "coord_key", key, "error", err)
			}
		} else if entry != nil {
			result := Result{
				Found: !entry.NoResult,
				Location: Location{
					Name:    entry.LocationName,
					City:    entry.City,
					Country: entry.Country,
				},
			}
			s.metrics.IncrementCacheHits()
			s.memory.SetDefault(key, result)
			return result, nil
		}
	}

	waitStart := time.Now()
	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	s.metrics.ObserveLimiterWait(time.Since(waitStart).Seconds())

	s.metrics.IncrementRequests()
	requestStart := time.Now()
	location, err := s.provider.ReverseGeocode(ctx, lat, lon)
	s.metrics.ObserveRequestDuration(time.Since(requestStart).Seconds())
	if err != nil {
		s.metrics.IncrementRequestErrors()
		return Result{}, errors.New(err).
			Component("geocoder").
			Category(errors.CategoryGeocoding).
			Context("coord_key", key).
			Build()
	}

	result := Result{}
	if location != nil {
		result = Result{Found: true, Location: *location}
	}

	s.memory.SetDefault(key, result)
	if s.store != nil {
		entry := &datastore.GeocodeCache{
			CoordKey:     key,
			LocationName: result.Location.Name,
			City:         result.Location.City,
			Country:      result.Location.Country,
			NoResult:     !result.Found,
			CachedAt:     time.Now(),
		}
		if err := s.store.SaveGeocodeCache(entry); err != nil {
			if s.logger != nil {
				s.logger.Warn("persistent geocode cache write failed", "coord_key", key, "error", err)
			}
		}
	}

	return result, nil
}
