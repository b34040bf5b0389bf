package events

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tkoivula/photonest/internal/logging"
)

// EventBus provides asynchronous event processing with non-blocking guarantees
type EventBus struct {
	eventChan chan Event

	bufferSize int
	workers    int

	// State management
	done        chan struct{}
	wg          sync.WaitGroup
	initialized atomic.Bool
	running     atomic.Bool
	mu          sync.Mutex

	consumers []Consumer

	stats BusStats

	logger *slog.Logger
}

// Global event bus instance (lazily initialized)
var (
	globalEventBus *EventBus
	globalMutex    sync.Mutex
)

// Config holds event bus configuration
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 1024,
		Workers:    1,
	}
}

// Initialize creates or returns the global event bus instance
func Initialize(config *Config) (*EventBus, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if globalEventBus != nil {
		return globalEventBus, nil
	}

	if config == nil {
		config = DefaultConfig()
	}

	eb := &EventBus{
		eventChan:  make(chan Event, config.BufferSize),
		bufferSize: config.BufferSize,
		workers:    config.Workers,
		done:       make(chan struct{}),
		consumers:  make([]Consumer, 0),
		logger:     logging.ForService("events"),
	}
	eb.initialized.Store(true)

	globalEventBus = eb

	if eb.logger != nil {
		eb.logger.Info("event bus initialized",
			"buffer_size", config.BufferSize,
			"workers", config.Workers,
		)
	}

	return eb, nil
}

// GetEventBus returns the global event bus instance
func GetEventBus() *EventBus {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalEventBus
}

// RegisterConsumer adds a new event consumer
func (eb *EventBus) RegisterConsumer(consumer Consumer) error {
	if eb == nil {
		return fmt.Errorf("event bus not initialized")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}

	eb.consumers = append(eb.consumers, consumer)

	if eb.logger != nil {
		eb.logger.Info("registered event consumer", "consumer", consumer.Name())
	}

	// Start workers on first consumer
	if len(eb.consumers) == 1 && !eb.running.Load() {
		eb.start()
	}

	return nil
}

// TryPublish attempts to publish an event without blocking.
// Returns true if the event was accepted, false if dropped.
func (eb *EventBus) TryPublish(event Event) bool {
	if eb == nil || !eb.initialized.Load() || !eb.running.Load() {
		return false
	}

	eb.mu.Lock()
	hasConsumers := len(eb.consumers) > 0
	eb.mu.Unlock()

	if !hasConsumers {
		return false
	}

	select {
	case eb.eventChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		// Channel full, drop the event
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		if eb.logger != nil {
			eb.logger.Debug("event dropped due to full buffer", "type", event.EventType())
		}
		return false
	}
}

// start begins the worker goroutines
func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return // Already running
	}

	for i := 0; i < eb.workers; i++ {
		eb.wg.Add(1)
		go eb.worker(i)
	}
}

// worker processes events from the channel
func (eb *EventBus) worker(id int) {
	defer eb.wg.Done()

	logger := eb.logger
	if logger != nil {
		logger = logger.With("worker_id", id)
	}

	for {
		select {
		case <-eb.done:
			return
		case event, ok := <-eb.eventChan:
			if !ok {
				return
			}
			eb.processEvent(event, logger)
		}
	}
}

// processEvent sends the event to all registered consumers
func (eb *EventBus) processEvent(event Event, logger *slog.Logger) {
	eb.mu.Lock()
	consumers := make([]Consumer, len(eb.consumers))
	copy(consumers, eb.consumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		// Recovery wrapper so one panicking consumer cannot kill the worker
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
					if logger != nil {
						logger.Error("consumer panicked",
							"consumer", consumer.Name(),
							"panic", r,
							"type", event.EventType(),
						)
					}
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
				if logger != nil {
					logger.Error("consumer error",
						"consumer", consumer.Name(),
						"error", err,
						"type", event.EventType(),
					)
				}
			} else {
				atomic.AddUint64(&eb.stats.EventsProcessed, 1)
			}
		}()
	}
}

// Shutdown gracefully shuts down the event bus
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil || !eb.initialized.Load() {
		return nil
	}

	eb.running.Store(false)
	close(eb.done)

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() BusStats {
	if eb == nil {
		return BusStats{}
	}

	return BusStats{
		EventsReceived:  atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&eb.stats.ConsumerErrors),
	}
}

// ResetForTesting clears the global instance. Test use only.
func ResetForTesting() {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalEventBus = nil
}
