// Package events provides an asynchronous event bus that decouples the
// enrichment pipeline from UI-facing subscribers: stage transitions and
// save-state changes are published here instead of being observed as
// mutable state.
package events

import (
	"time"
)

// Event is the common interface for everything published on the bus.
type Event interface {
	// EventType returns a stable type string for routing
	EventType() string

	// GetTimestamp returns when the event occurred
	GetTimestamp() time.Time
}

// Consumer represents a subscriber that processes events.
type Consumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event Event) error
}

// Stage identifies a pipeline stage in an enrichment event.
type Stage string

const (
	StageClassification  Stage = "classification"
	StageGeocoding       Stage = "geocoding"
	StagePlacePrediction Stage = "place-prediction"
)

// EnrichmentEvent is published whenever a photo's stage state changes.
type EnrichmentEvent struct {
	PhotoID   string
	Stage     Stage
	State     string // pending, processing, completed, failed
	Error     string // non-empty only for failed transitions
	Timestamp time.Time
}

// EventType implements Event.
func (e EnrichmentEvent) EventType() string { return "enrichment" }

// GetTimestamp implements Event.
func (e EnrichmentEvent) GetTimestamp() time.Time { return e.Timestamp }

// SaveStateEvent is published by the save-state publisher on every signal
// transition. It is observability only and carries no durability guarantee.
type SaveStateEvent struct {
	State     string // idle, saving, saved, failed
	Message   string // failure message, empty otherwise
	Timestamp time.Time
}

// EventType implements Event.
func (e SaveStateEvent) EventType() string { return "save-state" }

// GetTimestamp implements Event.
func (e SaveStateEvent) GetTimestamp() time.Time { return e.Timestamp }

// BusStats contains runtime statistics for monitoring
type BusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
