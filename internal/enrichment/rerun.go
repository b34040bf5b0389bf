package enrichment

import (
	"context"

	"github.com/tkoivula/photonest/internal/datastore"
	"github.com/tkoivula/photonest/internal/errors"
)

// RerunResult is the outcome of a manual stage re-run. Success mirrors the
// resulting stage state; a stage failure is not an error at this boundary,
// it is recorded on the photo. Changed is only meaningful when Success is
// true.
type RerunResult struct {
	Success bool
	Changed bool
}

// Reclassify re-runs the classification stage for one photo. The stored
// result survives a failed re-run; only the stage state and error change.
// Errors are returned for missing photos or media, never for a failed
// classification itself.
func (o *Orchestrator) Reclassify(ctx context.Context, photoID string) (RerunResult, error) {
	photo, err := o.store.GetPhoto(photoID)
	if err != nil {
		return RerunResult{}, err
	}

	data, err := o.LoadMedia(photo)
	if err != nil {
		return RerunResult{}, err
	}

	o.metrics.IncrementReruns("classification")
	changed, err := o.runClassification(ctx, photo, data)
	if err != nil {
		return RerunResult{}, nil
	}
	return RerunResult{Success: true, Changed: changed}, nil
}

// RefreshLocation re-runs reverse geocoding for a GPS-branch photo. Photos
// without usable coordinates fail fast without touching the provider.
func (o *Orchestrator) RefreshLocation(ctx context.Context, photoID string) (RerunResult, error) {
	photo, err := o.store.GetPhoto(photoID)
	if err != nil {
		return RerunResult{}, err
	}

	if !hasValidGPS(photo) {
		return RerunResult{}, errors.Newf("photo %s has no GPS data", photoID).
			Component("enrichment").
			Category(errors.CategoryValidation).
			PhotoContext(photoID).
			Build()
	}

	o.metrics.IncrementReruns("geocoding")
	changed, err := o.runGeocoding(ctx, photo)
	if err != nil {
		return RerunResult{}, nil
	}
	return RerunResult{Success: true, Changed: changed}, nil
}

// RepredictLocation re-runs ML place prediction for a no-GPS photo. Photos
// on the geocoding branch fail fast; the branch never switches.
func (o *Orchestrator) RepredictLocation(ctx context.Context, photoID string) (RerunResult, error) {
	photo, err := o.store.GetPhoto(photoID)
	if err != nil {
		return RerunResult{}, err
	}

	if photo.HasGPSData {
		return RerunResult{}, errors.Newf("photo %s has GPS data and uses geocoding", photoID).
			Component("enrichment").
			Category(errors.CategoryValidation).
			PhotoContext(photoID).
			Build()
	}

	data, err := o.LoadMedia(photo)
	if err != nil {
		return RerunResult{}, err
	}

	o.metrics.IncrementReruns("place-prediction")
	changed, err := o.runPlacePrediction(ctx, photo, data)
	if err != nil {
		return RerunResult{}, nil
	}
	return RerunResult{Success: true, Changed: changed}, nil
}

// ReclassifyAll re-runs classification across the whole library, one photo
// at a time. The progress callback, when non-nil, receives (current, total)
// after each photo. Per-photo failures are counted and do not stop the run.
func (o *Orchestrator) ReclassifyAll(ctx context.Context, progress func(current, total int)) (int, error) {
	photos, err := o.store.GetAllPhotos()
	if err != nil {
		return 0, err
	}

	total := len(photos)
	failures := 0
	for i := range photos {
		if ctx.Err() != nil {
			return failures, ctx.Err()
		}
		result, err := o.Reclassify(ctx, photos[i].ID)
		if err != nil || !result.Success {
			failures++
			if o.logger != nil {
				o.logger.Warn("bulk reclassify: photo failed",
					"photo_id", photos[i].ID, "error", err)
			}
		}
		if progress != nil {
			progress(i+1, total)
		}
	}
	return failures, nil
}

// hasValidGPS reports whether the photo carries usable coordinates. The
// 0,0 null island pair is treated as missing data.
func hasValidGPS(photo *datastore.Photo) bool {
	if !photo.HasGPSData {
		return false
	}
	return photo.Latitude != 0 || photo.Longitude != 0
}
