// Package observability provides Prometheus metrics for the enrichment
// pipeline. All recording methods are nil-safe so components can run without
// metrics wired (tests, CLI one-shots).
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the per-subsystem metric collections.
type Metrics struct {
	Classifier *ClassifierMetrics
	Geocoder   *GeocoderMetrics
	Enrichment *EnrichmentMetrics
}

// NewMetrics creates and registers all pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	classifier, err := newClassifierMetrics(reg)
	if err != nil {
		return nil, err
	}
	geocoder, err := newGeocoderMetrics(reg)
	if err != nil {
		return nil, err
	}
	enrichment, err := newEnrichmentMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Metrics{
		Classifier: classifier,
		Geocoder:   geocoder,
		Enrichment: enrichment,
	}, nil
}

// ClassifierMetrics tracks on-device inference operations.
type ClassifierMetrics struct {
	inferenceTotal    prometheus.Counter
	inferenceErrors   prometheus.Counter
	inferenceDuration prometheus.Histogram
	queueDepth        prometheus.Gauge
}

func newClassifierMetrics(reg prometheus.Registerer) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{
		inferenceTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photonest_classifier_inference_total",
			Help: "Total number of classifier inference calls",
		}),
		inferenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photonest_classifier_inference_errors_total",
			Help: "Total number of failed classifier inference calls",
		}),
		inferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photonest_classifier_inference_duration_seconds",
			Help:    "Classifier inference duration",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photonest_classifier_queue_depth",
			Help: "Number of requests waiting in the inference queue",
		}),
	}
	for _, c := range []prometheus.Collector{m.inferenceTotal, m.inferenceErrors, m.inferenceDuration, m.queueDepth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IncrementInference records a completed inference call.
func (m *ClassifierMetrics) IncrementInference() {
	if m != nil {
		m.inferenceTotal.Inc()
	}
}

// IncrementInferenceErrors records a failed inference call.
func (m *ClassifierMetrics) IncrementInferenceErrors() {
	if m != nil {
		m.inferenceErrors.Inc()
	}
}

// ObserveInferenceDuration records inference duration in seconds.
func (m *ClassifierMetrics) ObserveInferenceDuration(seconds float64) {
	if m != nil {
		m.inferenceDuration.Observe(seconds)
	}
}

// SetQueueDepth records the current inference queue depth.
func (m *ClassifierMetrics) SetQueueDepth(depth int) {
	if m != nil {
		m.queueDepth.Set(float64(depth))
	}
}

// GeocoderMetrics tracks outbound reverse-geocoding traffic.
type GeocoderMetrics struct {
	requestsTotal  prometheus.Counter
	requestErrors  prometheus.Counter
	cacheHits      prometheus.Counter
	limiterWait    prometheus.Histogram
	requestLatency prometheus.Histogram
}

func newGeocoderMetrics(reg prometheus.Registerer) (*GeocoderMetrics, error) {
	m := &GeocoderMetrics{
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photonest_geocoder_requests_total",
			Help: "Total number of outbound reverse-geocoding provider calls",
		}),
		requestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photonest_geocoder_request_errors_total",
			Help: "Total number of failed reverse-geocoding provider calls",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photonest_geocoder_cache_hits_total",
			Help: "Total number of reverse-geocoding lookups served from cache",
		}),
		limiterWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photonest_geocoder_limiter_wait_seconds",
			Help:    "Time spent waiting for the outbound rate limiter",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
		}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photonest_geocoder_request_duration_seconds",
			Help:    "Reverse-geocoding provider call duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestErrors, m.cacheHits, m.limiterWait, m.requestLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IncrementRequests records an outbound provider call.
func (m *GeocoderMetrics) IncrementRequests() {
	if m != nil {
		m.requestsTotal.Inc()
	}
}

// IncrementRequestErrors records a failed provider call.
func (m *GeocoderMetrics) IncrementRequestErrors() {
	if m != nil {
		m.requestErrors.Inc()
	}
}

// IncrementCacheHits records a lookup served from cache.
func (m *GeocoderMetrics) IncrementCacheHits() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

// ObserveLimiterWait records rate limiter wait duration in seconds.
func (m *GeocoderMetrics) ObserveLimiterWait(seconds float64) {
	if m != nil {
		m.limiterWait.Observe(seconds)
	}
}

// ObserveRequestDuration records provider call duration in seconds.
func (m *GeocoderMetrics) ObserveRequestDuration(seconds float64) {
	if m != nil {
		m.requestLatency.Observe(seconds)
	}
}

// EnrichmentMetrics tracks orchestrator operations.
type EnrichmentMetrics struct {
	imports       prometheus.Counter
	duplicates    prometheus.Counter
	reruns        *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	orphanedTags  prometheus.Counter
}

func newEnrichmentMetrics(reg prometheus.Registerer) (*EnrichmentMetrics, error) {
	m := &EnrichmentMetrics{
		imports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photonest_enrichment_imports_total",
			Help: "Total number of imported photos",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photonest_enrichment_duplicates_total",
			Help: "Total number of imports skipped as perceptual duplicates",
		}),
		reruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photonest_enrichment_reruns_total",
			Help: "Total number of manual stage re-runs",
		}, []string{"operation"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photonest_enrichment_stage_failures_total",
			Help: "Total number of stage failures by stage",
		}, []string{"stage"}),
		orphanedTags: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photonest_enrichment_orphaned_tags_deleted_total",
			Help: "Total number of orphaned tags garbage collected",
		}),
	}
	for _, c := range []prometheus.Collector{m.imports, m.duplicates, m.reruns, m.stageFailures, m.orphanedTags} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IncrementImports records a completed photo import.
func (m *EnrichmentMetrics) IncrementImports() {
	if m != nil {
		m.imports.Inc()
	}
}

// IncrementDuplicates records an import skipped as a duplicate.
func (m *EnrichmentMetrics) IncrementDuplicates() {
	if m != nil {
		m.duplicates.Inc()
	}
}

// IncrementReruns records a manual re-run by operation name.
func (m *EnrichmentMetrics) IncrementReruns(operation string) {
	if m != nil {
		m.reruns.WithLabelValues(operation).Inc()
	}
}

// IncrementStageFailures records a stage failure by stage name.
func (m *EnrichmentMetrics) IncrementStageFailures(stage string) {
	if m != nil {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

// AddOrphanedTagsDeleted records garbage collected tags.
func (m *EnrichmentMetrics) AddOrphanedTagsDeleted(count int64) {
	if m != nil && count > 0 {
		m.orphanedTags.Add(float64(count))
	}
}
