// Package enrichment orchestrates the per-photo pipeline: import, on-device
// classification, then either reverse geocoding or ML place prediction
// depending on whether the photo carries GPS metadata. The branch is fixed
// when the photo is created and never crosses over afterwards.
package enrichment

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tkoivula/photonest/internal/classifier"
	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/datastore"
	"github.com/tkoivula/photonest/internal/errors"
	"github.com/tkoivula/photonest/internal/events"
	"github.com/tkoivula/photonest/internal/geocoder"
	"github.com/tkoivula/photonest/internal/logging"
	"github.com/tkoivula/photonest/internal/observability"
	"github.com/tkoivula/photonest/internal/placeclassifier"
	"github.com/tkoivula/photonest/internal/savestate"
)

// ImageClassifier produces the top scene prediction for raw image bytes.
type ImageClassifier interface {
	Classify(ctx context.Context, data []byte) (classifier.Result, error)
}

// PlacePredictor predicts a place category for photos without GPS data. A
// nil prediction with a nil error means no confident prediction.
type PlacePredictor interface {
	Predict(ctx context.Context, data []byte) (*placeclassifier.Prediction, error)
}

// Geocoder resolves coordinates to a location for photos with GPS data.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (geocoder.Result, error)
}

// EventSink receives pipeline state transitions. *events.EventBus satisfies it.
type EventSink interface {
	TryPublish(event events.Event) bool
}

// Orchestrator drives the enrichment pipeline against the persistence
// gateway. All mutations follow last-write-wins semantics; there is no
// per-photo locking.
type Orchestrator struct {
	settings   *conf.Settings
	store      datastore.Interface
	media      FileStore
	classifier ImageClassifier
	places     PlacePredictor
	geocoder   Geocoder
	sink       EventSink
	saver      *savestate.Publisher
	metrics    *observability.EnrichmentMetrics
	logger     *slog.Logger
}

var enrichmentLogger *slog.Logger

func init() {
	var err error
	enrichmentLogger, _, err = logging.NewFileLogger("logs/enrichment.log", "enrichment", slog.LevelInfo)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, nil)
		enrichmentLogger = slog.New(fbHandler).With("service", "enrichment")
	}
}

// New wires an orchestrator from its collaborators. sink and saver may be
// nil; events and save-state feedback are then suppressed.
func New(settings *conf.Settings, store datastore.Interface, media FileStore,
	imageClassifier ImageClassifier, places PlacePredictor, geo Geocoder,
	sink EventSink, saver *savestate.Publisher, metrics *observability.EnrichmentMetrics) *Orchestrator {
	return &Orchestrator{
		settings:   settings,
		store:      store,
		media:      media,
		classifier: imageClassifier,
		places:     places,
		geocoder:   geo,
		sink:       sink,
		saver:      saver,
		metrics:    metrics,
		logger:     enrichmentLogger,
	}
}

// ImportOptions carries caller-supplied metadata for an import. Fields left
// nil fall back to the image's embedded EXIF metadata.
type ImportOptions struct {
	FileName   string
	CapturedAt *time.Time
	Latitude   *float64
	Longitude  *float64
}

// ImportAndEnrich stores a new photo and runs the full pipeline on it. When
// duplicate detection is enabled and the image is perceptually identical to
// an existing photo, the existing photo is returned and nothing is imported.
func (o *Orchestrator) ImportAndEnrich(ctx context.Context, data []byte, opts ImportOptions) (*datastore.Photo, error) {
	if len(data) == 0 {
		return nil, errors.Newf("import: empty image data").
			Component("enrichment").
			Category(errors.CategoryValidation).
			Build()
	}

	meta := extractMetadata(data)

	hash := ""
	if o.settings.Import.DetectDupes {
		hash = perceptualHash(data)
		if hash != "" {
			if existing, found := o.findDuplicate(hash); found {
				o.metrics.IncrementDuplicates()
				if o.logger != nil {
					o.logger.Info("import skipped, duplicate of existing photo",
						"photo_id", existing.ID, "file_name", opts.FileName)
				}
				return existing, nil
			}
		}
	}

	photo := o.newPhoto(opts, meta, hash)

	if o.media != nil {
		if err := o.media.Save(photo.FileName, data); err != nil {
			return nil, errors.New(err).
				Component("enrichment").
				Category(errors.CategoryMediaStore).
				FileContext(photo.FileName, int64(len(data))).
				Build()
		}
	}

	if err := o.store.CreatePhoto(photo); err != nil {
		return nil, err
	}
	o.metrics.IncrementImports()
	o.publishStage(photo.ID, events.StageClassification, photo.ClassificationState, "")

	o.enrich(ctx, photo, data)
	return photo, nil
}

// newPhoto builds the initial record. The location branch is decided here,
// once, from the presence of GPS coordinates.
func (o *Orchestrator) newPhoto(opts ImportOptions, meta *imageMetadata, hash string) *datastore.Photo {
	photo := &datastore.Photo{
		ID:                  uuid.New().String(),
		FileName:            opts.FileName,
		CreatedAt:           time.Now(),
		ClassificationState: datastore.StatePending,
		PerceptualHash:      hash,
	}
	if photo.FileName == "" {
		photo.FileName = photo.ID + ".jpg"
	}

	switch {
	case opts.CapturedAt != nil:
		photo.CreatedAt = *opts.CapturedAt
	case meta != nil && meta.capturedAt != nil:
		photo.CreatedAt = *meta.capturedAt
	}

	switch {
	case opts.Latitude != nil && opts.Longitude != nil:
		photo.HasGPSData = true
		photo.Latitude = *opts.Latitude
		photo.Longitude = *opts.Longitude
	case meta != nil && meta.latitude != nil && meta.longitude != nil:
		photo.HasGPSData = true
		photo.Latitude = *meta.latitude
		photo.Longitude = *meta.longitude
	}

	if photo.HasGPSData {
		photo.GeocodingState = datastore.StatePending
		photo.LocationPredictionState = datastore.StateNone
	} else {
		photo.GeocodingState = datastore.StateNone
		photo.LocationPredictionState = datastore.StatePending
	}
	return photo
}

// enrich runs classification and then the photo's location branch. Stage
// failures are recorded on the photo and do not abort the remaining stages.
func (o *Orchestrator) enrich(ctx context.Context, photo *datastore.Photo, data []byte) {
	if _, err := o.runClassification(ctx, photo, data); err != nil && o.logger != nil {
		o.logger.Warn("classification failed", "photo_id", photo.ID, "error", err)
	}

	if photo.HasGPSData {
		if _, err := o.runGeocoding(ctx, photo); err != nil && o.logger != nil {
			o.logger.Warn("geocoding failed", "photo_id", photo.ID, "error", err)
		}
	} else {
		if _, err := o.runPlacePrediction(ctx, photo, data); err != nil && o.logger != nil {
			o.logger.Warn("place prediction failed", "photo_id", photo.ID, "error", err)
		}
	}
}

// persist saves the photo and mirrors the outcome to the save-state
// publisher.
func (o *Orchestrator) persist(photo *datastore.Photo) error {
	if o.saver != nil {
		o.saver.Begin()
	}
	err := o.store.SavePhoto(photo)
	if o.saver != nil {
		if err != nil {
			o.saver.Failure(err.Error())
		} else {
			o.saver.Success()
		}
	}
	return err
}

func (o *Orchestrator) publishStage(photoID string, stage events.Stage, state datastore.StageState, errMsg string) {
	if o.sink == nil {
		return
	}
	o.sink.TryPublish(events.EnrichmentEvent{
		PhotoID:   photoID,
		Stage:     stage,
		State:     string(state),
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

// findDuplicate scans stored hashes for a perceptual match and loads the
// matching photo.
func (o *Orchestrator) findDuplicate(hash string) (*datastore.Photo, bool) {
	hashes, err := o.store.GetPhotoHashes()
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("duplicate check skipped, cannot read stored hashes", "error", err)
		}
		return nil, false
	}

	threshold := o.settings.Import.DupeThreshold
	if threshold <= 0 {
		threshold = defaultDupeThreshold
	}

	id, found := matchHash(hash, hashes, threshold)
	if !found {
		return nil, false
	}
	photo, err := o.store.GetPhoto(id)
	if err != nil {
		return nil, false
	}
	return photo, true
}

// LoadMedia reads back the stored image bytes for a photo.
func (o *Orchestrator) LoadMedia(photo *datastore.Photo) ([]byte, error) {
	if o.media == nil {
		return nil, errors.Newf("no media store configured").
			Component("enrichment").
			Category(errors.CategoryMediaStore).
			Build()
	}
	return o.media.Load(photo.FileName)
}
