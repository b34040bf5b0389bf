// Package savestate publishes transient persistence feedback. Every save
// attempt announces saving, then saved or failed, and the terminal states
// decay back to idle on their own so subscribers never latch a stale badge.
package savestate

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tkoivula/photonest/internal/events"
	"github.com/tkoivula/photonest/internal/logging"
)

// Save states in publication order.
const (
	StateIdle   = "idle"
	StateSaving = "saving"
	StateSaved  = "saved"
	StateFailed = "failed"
)

// Reset delays before a terminal state decays to idle. Failures linger a
// little longer so they are actually seen.
const (
	DefaultSavedResetDelay  = 2 * time.Second
	DefaultFailedResetDelay = 3 * time.Second
)

// Sink receives state transitions. *events.EventBus satisfies it.
type Sink interface {
	TryPublish(event events.Event) bool
}

// Publisher tracks the current save state and emits transitions to a sink.
type Publisher struct {
	mu         sync.Mutex
	state      string
	resetTimer *time.Timer

	savedDelay  time.Duration
	failedDelay time.Duration

	sink   Sink
	logger *slog.Logger
}

var saveStateLogger *slog.Logger

func init() {
	var err error
	saveStateLogger, _, err = logging.NewFileLogger("logs/savestate.log", "savestate", slog.LevelInfo)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, nil)
		saveStateLogger = slog.New(fbHandler).With("service", "savestate")
	}
}

// New creates an idle publisher with the default reset delays.
func New(sink Sink) *Publisher {
	return NewWithDelays(sink, DefaultSavedResetDelay, DefaultFailedResetDelay)
}

// NewWithDelays creates an idle publisher with explicit reset delays.
func NewWithDelays(sink Sink, savedDelay, failedDelay time.Duration) *Publisher {
	return &Publisher{
		state:       StateIdle,
		savedDelay:  savedDelay,
		failedDelay: failedDelay,
		sink:        sink,
		logger:      saveStateLogger,
	}
}

// State returns the current save state.
func (p *Publisher) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Begin marks the start of a save attempt. A new attempt cancels any pending
// decay so an earlier saved/failed state cannot reset the new one to idle.
func (p *Publisher) Begin() {
	p.transition(StateSaving, "", 0)
}

// Success marks the save attempt as completed. The saved state decays to
// idle after the configured delay.
func (p *Publisher) Success() {
	p.transition(StateSaved, "", p.savedDelay)
}

// Failure marks the save attempt as failed with a message. The failed state
// decays to idle after the configured delay.
func (p *Publisher) Failure(message string) {
	p.transition(StateFailed, message, p.failedDelay)
}

func (p *Publisher) transition(state, message string, resetAfter time.Duration) {
	p.mu.Lock()
	if p.resetTimer != nil {
		p.resetTimer.Stop()
		p.resetTimer = nil
	}
	p.state = state
	if resetAfter > 0 {
		p.resetTimer = time.AfterFunc(resetAfter, func() {
			p.resetToIdle(state)
		})
	}
	p.mu.Unlock()

	p.publish(state, message)
}

// resetToIdle decays a terminal state to idle, unless a newer attempt has
// already replaced it.
func (p *Publisher) resetToIdle(from string) {
	p.mu.Lock()
	if p.state != from {
		p.mu.Unlock()
		return
	}
	p.state = StateIdle
	p.resetTimer = nil
	p.mu.Unlock()

	p.publish(StateIdle, "")
}

func (p *Publisher) publish(state, message string) {
	if p.logger != nil {
		if state == StateFailed {
			p.logger.Warn("save failed", "message", message)
		} else {
			p.logger.Debug("save state", "state", state)
		}
	}
	if p.sink == nil {
		return
	}
	p.sink.TryPublish(events.SaveStateEvent{
		State:     state,
		Message:   message,
		Timestamp: time.Now(),
	})
}
