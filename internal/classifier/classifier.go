// Package classifier wraps an on-device TFLite image classification model.
// All inference requests flow through a single worker goroutine so concurrent
// callers cannot overwhelm the underlying engine, and every request is
// guaranteed to complete exactly once.
package classifier

import (
	"bytes"
	"context"
	"image"
	"io"
	"log/slog"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/errors"
	"github.com/tkoivula/photonest/internal/logging"
	"github.com/tkoivula/photonest/internal/observability"
)

// Sentinel failures of the classification boundary.
var (
	// ErrInvalidImage indicates the input could not be decoded into the
	// classifier's pixel representation.
	ErrInvalidImage = errors.NewStd("classifier: invalid image")

	// ErrNoResults indicates the model returned no predictions.
	ErrNoResults = errors.NewStd("classifier: no results")

	// ErrClosed indicates the classifier has been shut down.
	ErrClosed = errors.NewStd("classifier: closed")
)

// Result is a single prediction with its confidence in [0,1].
type Result struct {
	Label      string
	Confidence float64
}

// Engine performs the actual model inference on a decoded image. It returns
// predictions in no particular order; the classifier sorts and trims them.
type Engine interface {
	Predict(img image.Image) ([]Result, error)
	Close() error
}

// Classifier serializes access to an inference engine through a dedicated
// worker queue.
type Classifier struct {
	engine  Engine
	queue   chan *request
	quit    chan struct{}
	logger  *slog.Logger
	metrics *observability.ClassifierMetrics
}

var classifierLogger *slog.Logger

func init() {
	var err error
	classifierLogger, _, err = logging.NewFileLogger("logs/classifier.log", "classifier", slog.LevelInfo)
	if err != nil {
		// Fall back to a disabled logger
		fbHandler := slog.NewJSONHandler(io.Discard, nil)
		classifierLogger = slog.New(fbHandler).With("service", "classifier")
	}
}

const defaultQueueSize = 64

// New creates a Classifier backed by a TFLite engine loaded from the
// configured model and label paths, and starts its worker.
func New(settings *conf.Settings, metrics *observability.ClassifierMetrics) (*Classifier, error) {
	engine, err := newTFLiteEngine(settings)
	if err != nil {
		return nil, err
	}
	return NewWithEngine(engine, metrics), nil
}

// NewWithEngine creates a Classifier around an existing engine and starts its
// worker. Used directly by tests and by the place classifier.
func NewWithEngine(engine Engine, metrics *observability.ClassifierMetrics) *Classifier {
	c := &Classifier{
		engine:  engine,
		queue:   make(chan *request, defaultQueueSize),
		quit:    make(chan struct{}),
		logger:  classifierLogger,
		metrics: metrics,
	}
	go c.worker()
	return c
}

// Classify decodes the image and returns the single highest-confidence
// prediction. It fails with ErrInvalidImage when the bytes cannot be decoded
// and ErrNoResults when the model yields nothing.
func (c *Classifier) Classify(ctx context.Context, data []byte) (Result, error) {
	results, err := c.ClassifyAll(ctx, data)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// ClassifyAll decodes the image and returns all predictions sorted by
// confidence in descending order, trimmed to the top ten.
func (c *Classifier) ClassifyAll(ctx context.Context, data []byte) ([]Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.metrics.IncrementInferenceErrors()
		return nil, errors.New(errors.Join(ErrInvalidImage, err)).
			Component("classifier").
			Category(errors.CategoryImageDecode).
			Build()
	}

	return c.ClassifyImage(ctx, img)
}

// ClassifyImage runs inference on an already decoded image through the
// serialized queue.
func (c *Classifier) ClassifyImage(ctx context.Context, img image.Image) ([]Result, error) {
	req := newRequest(img)

	select {
	case c.queue <- req:
		c.metrics.SetQueueDepth(len(c.queue))
	case <-c.quit:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Once enqueued the request runs to completion; there is no cancellation
	// of an in-flight inference.
	select {
	case out := <-req.done:
		if out.err != nil {
			c.metrics.IncrementInferenceErrors()
			return nil, out.err
		}
		return out.results, nil
	case <-c.quit:
		return nil, ErrClosed
	}
}

// worker drains the queue one request at a time.
func (c *Classifier) worker() {
	for {
		select {
		case <-c.quit:
			return
		case req := <-c.queue:
			c.metrics.SetQueueDepth(len(c.queue))
			c.process(req)
		}
	}
}

func (c *Classifier) process(req *request) {
	start := time.Now()
	results, err := c.engine.Predict(req.img)
	elapsed := time.Since(start)

	c.metrics.IncrementInference()
	c.metrics.ObserveInferenceDuration(elapsed.Seconds())

	if err != nil {
		req.fulfill(nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryClassification).
			Timing("inference", elapsed).
			Build())
		return
	}

	sortResults(results)
	results = trimResultsToMax(results, maxResults)

	if len(results) == 0 {
		req.fulfill(nil, ErrNoResults)
		return
	}

	if c.logger != nil {
		c.logger.Debug("inference completed",
			"top_label", results[0].Label,
			"confidence", results[0].Confidence,
			"duration_ms", elapsed.Milliseconds())
	}

	req.fulfill(results, nil)
}

// Close stops the worker and releases the engine. In-flight requests finish;
// queued requests after Close may be abandoned.
func (c *Classifier) Close() error {
	close(c.quit)
	return c.engine.Close()
}
