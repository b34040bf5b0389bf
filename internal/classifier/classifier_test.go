package classifier

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoivula/photonest/internal/errors"
)

// stubEngine returns canned results and tracks concurrent entries into
// Predict so tests can verify the queue serializes inference.
type stubEngine struct {
	results []Result
	err     error

	mu          sync.Mutex
	calls       int
	inFlight    int32
	maxInFlight int32
	closed      bool
}

func (s *stubEngine) Predict(_ image.Image) ([]Result, error) {
	cur := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		max := atomic.LoadInt32(&s.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&s.maxInFlight, max, cur) {
			break
		}
	}

	s.mu.Lock()
	s.calls++
	results, err := s.results, s.err
	s.mu.Unlock()

	out := make([]Result, len(results))
	copy(out, results)
	return out, err
}

func (s *stubEngine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestClassifyReturnsTopResult(t *testing.T) {
	engine := &stubEngine{results: []Result{
		{Label: "forest", Confidence: 0.31},
		{Label: "mountain", Confidence: 0.87},
		{Label: "lake", Confidence: 0.12},
	}}
	c := NewWithEngine(engine, nil)
	defer c.Close()

	result, err := c.Classify(context.Background(), encodePNG(t))
	require.NoError(t, err)
	assert.Equal(t, "mountain", result.Label)
	assert.InDelta(t, 0.87, result.Confidence, 1e-9)
}

func TestClassifyAllSortedAndTrimmed(t *testing.T) {
	var results []Result
	for i := 0; i < 15; i++ {
		results = append(results, Result{Label: defaultLabels[i], Confidence: float64(i) / 20.0})
	}
	engine := &stubEngine{results: results}
	c := NewWithEngine(engine, nil)
	defer c.Close()

	got, err := c.ClassifyAll(context.Background(), encodePNG(t))
	require.NoError(t, err)
	require.Len(t, got, maxResults)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence)
	}
}

func TestClassifyInvalidImage(t *testing.T) {
	engine := &stubEngine{results: []Result{{Label: "beach", Confidence: 0.5}}}
	c := NewWithEngine(engine, nil)
	defer c.Close()

	_, err := c.Classify(context.Background(), []byte("not an image"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidImage))

	// The engine was never invoked for undecodable input
	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, 0, engine.calls)
}

func TestClassifyNoResults(t *testing.T) {
	engine := &stubEngine{}
	c := NewWithEngine(engine, nil)
	defer c.Close()

	_, err := c.Classify(context.Background(), encodePNG(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoResults))
}

func TestConcurrentCallersAreSerialized(t *testing.T) {
	engine := &stubEngine{results: []Result{{Label: "city street", Confidence: 0.6}}}
	c := NewWithEngine(engine, nil)
	defer c.Close()

	data := encodePNG(t)
	const callers = 16
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := c.Classify(context.Background(), data)
			assert.NoError(t, err)
			assert.Equal(t, "city street", result.Label)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&engine.maxInFlight))
	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, callers, engine.calls)
}

func TestRequestFulfillExactlyOnce(t *testing.T) {
	req := newRequest(nil)
	req.fulfill([]Result{{Label: "first", Confidence: 0.9}}, nil)
	req.fulfill(nil, ErrNoResults)

	out := <-req.done
	require.NoError(t, out.err)
	require.Len(t, out.results, 1)
	assert.Equal(t, "first", out.results[0].Label)

	select {
	case extra := <-req.done:
		t.Fatalf("unexpected second completion: %+v", extra)
	default:
	}
}

func TestClassifyAfterClose(t *testing.T) {
	engine := &stubEngine{results: []Result{{Label: "park", Confidence: 0.4}}}
	c := NewWithEngine(engine, nil)
	require.NoError(t, c.Close())
	assert.True(t, engine.closed)

	_, err := c.Classify(context.Background(), encodePNG(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestClassifyContextCancelled(t *testing.T) {
	engine := &stubEngine{results: []Result{{Label: "park", Confidence: 0.4}}}
	c := NewWithEngine(engine, nil)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled context can still lose the race against an idle queue, so
	// only assert when enqueueing was refused.
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if _, err := c.ClassifyImage(ctx, img); err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestCustomSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, customSigmoid(0, 1.0), 1e-9)
	assert.Greater(t, customSigmoid(2.0, 1.0), customSigmoid(1.0, 1.0))
	// Higher sensitivity steepens the curve
	assert.Greater(t, customSigmoid(1.0, 1.5), customSigmoid(1.0, 0.5))
}

func TestLoadLabelsDefaults(t *testing.T) {
	labels, err := loadLabels("")
	require.NoError(t, err)
	assert.NotEmpty(t, labels)
	assert.Contains(t, labels, "beach")
}
