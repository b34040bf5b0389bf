// model.go this code defines the data model for the application
package datastore

import "time"

// StageState represents the lifecycle state of one enrichment stage. States
// only move forward: pending/none -> processing -> completed|failed. A manual
// re-run resets the relevant state back to processing, never to pending.
type StageState string

const (
	StateNone       StageState = "none"
	StatePending    StageState = "pending"
	StateProcessing StageState = "processing"
	StateCompleted  StageState = "completed"
	StateFailed     StageState = "failed"
)

// Photo represents a single imported photo and its enrichment results.
// Exactly one of the two location branches is ever active: photos with GPS
// data use the geocoding states, photos without use the prediction states.
// The branch is fixed at import time.
type Photo struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"` // opaque UUID, immutable
	FileName  string    `gorm:"index:idx_photos_filename"`   // reference to the stored image bytes
	CreatedAt time.Time `gorm:"index:idx_photos_createdat"`  // capture or import timestamp

	// Classification results
	ClassificationLabel      *string
	ClassificationConfidence float64
	ClassificationState      StageState `gorm:"type:varchar(12);default:pending"`
	ClassificationError      *string

	// Capture location, set once at import and immutable afterward
	HasGPSData bool `gorm:"index:idx_photos_hasgps"`
	Latitude   float64
	Longitude  float64

	// Reverse geocoding results (GPS branch)
	GeocodingState StageState `gorm:"type:varchar(12);default:none"`
	LocationName   *string
	City           *string
	Country        *string

	// Place prediction results (no-GPS branch)
	PredictedLocation           *string
	PredictedLocationConfidence float64
	LocationPredictionState     StageState `gorm:"type:varchar(12);default:none"`

	// dHash of the decoded image, used for duplicate detection at import
	PerceptualHash string `gorm:"index:idx_photos_phash"`

	Tags []Tag `gorm:"many2many:photo_tags;"`
	Note *string
}

// Tag represents a user tag. Names are unique case-insensitively; tags are
// created lazily on first use and deleted when no photo references them.
type Tag struct {
	ID     uint    `gorm:"primaryKey"`
	Name   string  `gorm:"uniqueIndex;not null"`
	Photos []Photo `gorm:"many2many:photo_tags;"`
}

// PhotoHash pairs a photo ID with its stored perceptual hash.
type PhotoHash struct {
	ID             string
	PerceptualHash string
}

// GeocodeCache persists reverse-geocoding results keyed by rounded
// coordinates so repeated lookups skip the provider and its rate limit.
type GeocodeCache struct {
	ID           uint   `gorm:"primaryKey"`
	CoordKey     string `gorm:"uniqueIndex;not null"` // "lat,lon" rounded to 4 decimals
	LocationName string
	City         string
	Country      string
	NoResult     bool // provider returned no result for these coordinates
	CachedAt     time.Time
}
