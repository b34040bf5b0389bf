package enrichment

import (
	"context"
	"math"

	"github.com/tkoivula/photonest/internal/datastore"
	"github.com/tkoivula/photonest/internal/events"
)

// confidenceDelta is the smallest confidence change treated as a real change
// when comparing re-run results against stored ones.
const confidenceDelta = 0.01

// runClassification executes the classification stage. On failure the stage
// state and error are recorded but previously stored label and confidence
// stay untouched. Returns whether the stored result changed.
func (o *Orchestrator) runClassification(ctx context.Context, photo *datastore.Photo, data []byte) (bool, error) {
	o.setStageProcessing(photo, events.StageClassification)

	result, err := o.classifier.Classify(ctx, data)
	if err != nil {
		msg := err.Error()
		photo.ClassificationState = datastore.StateFailed
		photo.ClassificationError = &msg
		o.metrics.IncrementStageFailures(string(events.StageClassification))
		o.finishStage(photo, events.StageClassification, msg)
		return false, err
	}

	changed := classificationChanged(photo, result.Label, result.Confidence)

	label := result.Label
	photo.ClassificationLabel = &label
	photo.ClassificationConfidence = result.Confidence
	photo.ClassificationState = datastore.StateCompleted
	photo.ClassificationError = nil
	o.finishStage(photo, events.StageClassification, "")
	return changed, nil
}

// runGeocoding executes the geocoding stage for GPS-branch photos. A
// provider "no result" completes the stage with an empty location.
func (o *Orchestrator) runGeocoding(ctx context.Context, photo *datastore.Photo) (bool, error) {
	o.setStageProcessing(photo, events.StageGeocoding)

	result, err := o.geocoder.ReverseGeocode(ctx, photo.Latitude, photo.Longitude)
	if err != nil {
		photo.GeocodingState = datastore.StateFailed
		o.metrics.IncrementStageFailures(string(events.StageGeocoding))
		o.finishStage(photo, events.StageGeocoding, err.Error())
		return false, err
	}

	var name, city, country *string
	if result.Found {
		name = stringPtr(result.Location.Name)
		city = stringPtr(result.Location.City)
		country = stringPtr(result.Location.Country)
	}

	changed := !equalStringPtr(photo.LocationName, name) ||
		!equalStringPtr(photo.City, city) ||
		!equalStringPtr(photo.Country, country)

	photo.LocationName = name
	photo.City = city
	photo.Country = country
	photo.GeocodingState = datastore.StateCompleted
	o.finishStage(photo, events.StageGeocoding, "")
	return changed, nil
}

// runPlacePrediction executes the place prediction stage for no-GPS photos.
// A prediction below the confidence floor completes the stage with no
// predicted location.
func (o *Orchestrator) runPlacePrediction(ctx context.Context, photo *datastore.Photo, data []byte) (bool, error) {
	o.setStageProcessing(photo, events.StagePlacePrediction)

	prediction, err := o.places.Predict(ctx, data)
	if err != nil {
		photo.LocationPredictionState = datastore.StateFailed
		o.metrics.IncrementStageFailures(string(events.StagePlacePrediction))
		o.finishStage(photo, events.StagePlacePrediction, err.Error())
		return false, err
	}

	var category *string
	confidence := 0.0
	if prediction != nil {
		category = stringPtr(prediction.Category)
		confidence = prediction.Confidence
	}

	changed := !equalStringPtr(photo.PredictedLocation, category) ||
		math.Abs(photo.PredictedLocationConfidence-confidence) > confidenceDelta

	photo.PredictedLocation = category
	photo.PredictedLocationConfidence = confidence
	photo.LocationPredictionState = datastore.StateCompleted
	o.finishStage(photo, events.StagePlacePrediction, "")
	return changed, nil
}

// setStageProcessing moves a stage to processing, persists, and announces
// the transition.
func (o *Orchestrator) setStageProcessing(photo *datastore.Photo, stage events.Stage) {
	switch stage {
	case events.StageClassification:
		photo.ClassificationState = datastore.StateProcessing
	case events.StageGeocoding:
		photo.GeocodingState = datastore.StateProcessing
	case events.StagePlacePrediction:
		photo.LocationPredictionState = datastore.StateProcessing
	}
	if err := o.persist(photo); err != nil && o.logger != nil {
		o.logger.Warn("cannot persist stage transition",
			"photo_id", photo.ID, "stage", stage, "error", err)
	}
	o.publishStage(photo.ID, stage, datastore.StateProcessing, "")
}

// finishStage persists the stage outcome and announces it.
func (o *Orchestrator) finishStage(photo *datastore.Photo, stage events.Stage, errMsg string) {
	if err := o.persist(photo); err != nil && o.logger != nil {
		o.logger.Warn("cannot persist stage outcome",
			"photo_id", photo.ID, "stage", stage, "error", err)
	}
	o.publishStage(photo.ID, stage, stageState(photo, stage), errMsg)
}

func stageState(photo *datastore.Photo, stage events.Stage) datastore.StageState {
	switch stage {
	case events.StageClassification:
		return photo.ClassificationState
	case events.StageGeocoding:
		return photo.GeocodingState
	case events.StagePlacePrediction:
		return photo.LocationPredictionState
	}
	return datastore.StateNone
}

// classificationChanged reports whether a new result differs from the stored
// one: a different label, or a confidence shift above the delta.
func classificationChanged(photo *datastore.Photo, label string, confidence float64) bool {
	if photo.ClassificationLabel == nil {
		return true
	}
	if *photo.ClassificationLabel != label {
		return true
	}
	return math.Abs(photo.ClassificationConfidence-confidence) > confidenceDelta
}

func stringPtr(s string) *string {
	return &s
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
