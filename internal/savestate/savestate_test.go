package savestate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoivula/photonest/internal/events"
)

// recordingSink captures published save-state events.
type recordingSink struct {
	mu     sync.Mutex
	states []string
}

func (r *recordingSink) TryPublish(event events.Event) bool {
	sse, ok := event.(events.SaveStateEvent)
	if !ok {
		return false
	}
	r.mu.Lock()
	r.states = append(r.states, sse.State)
	r.mu.Unlock()
	return true
}

func (r *recordingSink) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func newTestPublisher(sink Sink) *Publisher {
	return NewWithDelays(sink, 20*time.Millisecond, 30*time.Millisecond)
}

func waitForState(t *testing.T, p *Publisher, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.State() == want
	}, time.Second, time.Millisecond, "expected state %q", want)
}

func TestSuccessfulSaveLifecycle(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPublisher(sink)

	assert.Equal(t, StateIdle, p.State())

	p.Begin()
	assert.Equal(t, StateSaving, p.State())

	p.Success()
	assert.Equal(t, StateSaved, p.State())

	waitForState(t, p, StateIdle)
	assert.Equal(t, []string{StateSaving, StateSaved, StateIdle}, sink.snapshot())
}

func TestFailedSaveLifecycle(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPublisher(sink)

	p.Begin()
	p.Failure("disk full")
	assert.Equal(t, StateFailed, p.State())

	waitForState(t, p, StateIdle)
	assert.Equal(t, []string{StateSaving, StateFailed, StateIdle}, sink.snapshot())
}

func TestFailureMessagePublished(t *testing.T) {
	var got events.SaveStateEvent
	sink := sinkFunc(func(event events.Event) bool {
		if sse, ok := event.(events.SaveStateEvent); ok && sse.State == StateFailed {
			got = sse
		}
		return true
	})
	p := newTestPublisher(sink)

	p.Begin()
	p.Failure("disk full")
	assert.Equal(t, "disk full", got.Message)
}

func TestNewAttemptCancelsPendingReset(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPublisher(sink)

	p.Begin()
	p.Success()

	// A new attempt before the saved state decays must not be yanked back
	// to idle by the earlier timer.
	p.Begin()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateSaving, p.State())

	p.Success()
	waitForState(t, p, StateIdle)
}

func TestStaleResetIgnoredAfterStateChange(t *testing.T) {
	p := newTestPublisher(nil)

	p.Begin()
	p.Success()
	p.Begin()
	p.Failure("write error")

	// Only the failed timer should fire; the state goes failed then idle
	// without bouncing through any earlier decay.
	assert.Equal(t, StateFailed, p.State())
	waitForState(t, p, StateIdle)
}

func TestPublisherWithoutSink(t *testing.T) {
	p := newTestPublisher(nil)
	p.Begin()
	p.Success()
	waitForState(t, p, StateIdle)
}

// sinkFunc adapts a function to the Sink interface.
type sinkFunc func(event events.Event) bool

func (f sinkFunc) TryPublish(event events.Event) bool { return f(event) }
