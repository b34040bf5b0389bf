package enrichment

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoivula/photonest/internal/classifier"
	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/datastore"
	"github.com/tkoivula/photonest/internal/errors"
	"github.com/tkoivula/photonest/internal/events"
	"github.com/tkoivula/photonest/internal/geocoder"
	"github.com/tkoivula/photonest/internal/placeclassifier"
)

// memoryStore is an in-memory datastore.Interface for orchestrator tests.
type memoryStore struct {
	mu        sync.Mutex
	photos    map[string]*datastore.Photo
	tags      map[uint]*datastore.Tag
	photoTags map[string]map[uint]bool
	geocache  map[string]*datastore.GeocodeCache
	nextTagID uint
	saveErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		photos:    map[string]*datastore.Photo{},
		tags:      map[uint]*datastore.Tag{},
		photoTags: map[string]map[uint]bool{},
		geocache:  map[string]*datastore.GeocodeCache{},
	}
}

func (m *memoryStore) Open() error  { return nil }
func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) CreatePhoto(photo *datastore.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *photo
	m.photos[photo.ID] = &copied
	return nil
}

func (m *memoryStore) SavePhoto(photo *datastore.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *photo
	m.photos[photo.ID] = &copied
	return nil
}

func (m *memoryStore) GetPhoto(id string) (*datastore.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	photo, ok := m.photos[id]
	if !ok {
		return nil, errors.Newf("photo %s not found", id).
			Category(errors.CategoryNotFound).
			Build()
	}
	copied := *photo
	copied.Tags = nil
	for tagID := range m.photoTags[id] {
		copied.Tags = append(copied.Tags, *m.tags[tagID])
	}
	sort.Slice(copied.Tags, func(i, j int) bool { return copied.Tags[i].ID < copied.Tags[j].ID })
	return &copied, nil
}

func (m *memoryStore) DeletePhoto(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.photos, id)
	delete(m.photoTags, id)
	return nil
}

func (m *memoryStore) GetAllPhotos() ([]datastore.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []datastore.Photo
	for _, p := range m.photos {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) GetPhotoHashes() ([]datastore.PhotoHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []datastore.PhotoHash
	for _, p := range m.photos {
		if p.PerceptualHash != "" {
			out = append(out, datastore.PhotoHash{ID: p.ID, PerceptualHash: p.PerceptualHash})
		}
	}
	return out, nil
}

func (m *memoryStore) GetOrCreateTag(name string) (*datastore.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.ValidationError("tag name must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range m.tags {
		if strings.EqualFold(tag.Name, name) {
			copied := *tag
			return &copied, nil
		}
	}
	m.nextTagID++
	tag := &datastore.Tag{ID: m.nextTagID, Name: name}
	m.tags[tag.ID] = tag
	copied := *tag
	return &copied, nil
}

func (m *memoryStore) GetTagByName(name string) (*datastore.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range m.tags {
		if strings.EqualFold(tag.Name, strings.TrimSpace(name)) {
			copied := *tag
			return &copied, nil
		}
	}
	return nil, errors.Newf("tag %q not found", name).
		Category(errors.CategoryNotFound).
		Build()
}

func (m *memoryStore) AddTagToPhoto(photoID string, tag *datastore.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.photoTags[photoID] == nil {
		m.photoTags[photoID] = map[uint]bool{}
	}
	m.photoTags[photoID][tag.ID] = true
	return nil
}

func (m *memoryStore) RemoveTagFromPhoto(photoID, tagName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tag := range m.tags {
		if strings.EqualFold(tag.Name, tagName) {
			delete(m.photoTags[photoID], id)
			return nil
		}
	}
	return errors.Newf("tag %q not found", tagName).
		Category(errors.CategoryNotFound).
		Build()
}

func (m *memoryStore) DeleteOrphanedTags() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	referenced := map[uint]bool{}
	for _, tags := range m.photoTags {
		for id := range tags {
			referenced[id] = true
		}
	}
	var deleted int64
	for id := range m.tags {
		if !referenced[id] {
			delete(m.tags, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryStore) GetGeocodeCache(coordKey string) (*datastore.GeocodeCache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.geocache[coordKey]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (m *memoryStore) SaveGeocodeCache(entry *datastore.GeocodeCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.geocache[entry.CoordKey] = &copied
	return nil
}

// memoryFiles is an in-memory FileStore.
type memoryFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemoryFiles() *memoryFiles {
	return &memoryFiles{files: map[string][]byte{}}
}

func (m *memoryFiles) Save(fileName string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[fileName] = append([]byte(nil), data...)
	return nil
}

func (m *memoryFiles) Load(fileName string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[fileName]
	if !ok {
		return nil, fmt.Errorf("media file %s not found", fileName)
	}
	return append([]byte(nil), data...), nil
}

func (m *memoryFiles) Remove(fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, fileName)
	return nil
}

// Stub collaborators.

type stubClassifier struct {
	result classifier.Result
	err    error
	calls  int
}

func (s *stubClassifier) Classify(_ context.Context, _ []byte) (classifier.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubGeocoder struct {
	result geocoder.Result
	err    error
	calls  int
}

func (s *stubGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (geocoder.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubPredictor struct {
	prediction *placeclassifier.Prediction
	err        error
	calls      int
}

func (s *stubPredictor) Predict(_ context.Context, _ []byte) (*placeclassifier.Prediction, error) {
	s.calls++
	return s.prediction, s.err
}

// recordingSink captures published enrichment events.
type recordingSink struct {
	mu     sync.Mutex
	events []events.EnrichmentEvent
}

func (r *recordingSink) TryPublish(event events.Event) bool {
	if ee, ok := event.(events.EnrichmentEvent); ok {
		r.mu.Lock()
		r.events = append(r.events, ee)
		r.mu.Unlock()
	}
	return true
}

func (r *recordingSink) statesFor(stage events.Stage) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Stage == stage {
			out = append(out, e.State)
		}
	}
	return out
}

type fixture struct {
	orchestrator *Orchestrator
	store        *memoryStore
	files        *memoryFiles
	classifier   *stubClassifier
	geocoder     *stubGeocoder
	predictor    *stubPredictor
	sink         *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	settings := &conf.Settings{}
	settings.Place.MinConfidence = 0.15

	f := &fixture{
		store: newMemoryStore(),
		files: newMemoryFiles(),
		classifier: &stubClassifier{
			result: classifier.Result{Label: "mountain", Confidence: 0.87},
		},
		geocoder: &stubGeocoder{
			result: geocoder.Result{
				Found: true,
				Location: geocoder.Location{
					Name:    "Jongno-gu, Seoul, South Korea",
					City:    "Seoul",
					Country: "South Korea",
				},
			},
		},
		predictor: &stubPredictor{
			prediction: &placeclassifier.Prediction{Category: "City", Confidence: 0.42},
		},
		sink: &recordingSink{},
	}
	f.orchestrator = New(settings, f.store, f.files,
		f.classifier, f.predictor, f.geocoder, f.sink, nil, nil)
	return f
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func floatPtr(f float64) *float64 { return &f }

func importGPSPhoto(t *testing.T, f *fixture) *datastore.Photo {
	t.Helper()
	photo, err := f.orchestrator.ImportAndEnrich(context.Background(), testImage(t), ImportOptions{
		FileName:  "seoul.png",
		Latitude:  floatPtr(37.5665),
		Longitude: floatPtr(126.9780),
	})
	require.NoError(t, err)
	return photo
}

func importPlainPhoto(t *testing.T, f *fixture) *datastore.Photo {
	t.Helper()
	photo, err := f.orchestrator.ImportAndEnrich(context.Background(), testImage(t), ImportOptions{
		FileName: "city.png",
	})
	require.NoError(t, err)
	return photo
}

func TestImportWithGPSRunsGeocodingBranch(t *testing.T) {
	f := newFixture(t)
	photo := importGPSPhoto(t, f)

	stored, err := f.store.GetPhoto(photo.ID)
	require.NoError(t, err)

	assert.Equal(t, datastore.StateCompleted, stored.ClassificationState)
	require.NotNil(t, stored.ClassificationLabel)
	assert.Equal(t, "mountain", *stored.ClassificationLabel)
	assert.InDelta(t, 0.87, stored.ClassificationConfidence, 1e-9)

	assert.True(t, stored.HasGPSData)
	assert.Equal(t, datastore.StateCompleted, stored.GeocodingState)
	require.NotNil(t, stored.City)
	assert.Equal(t, "Seoul", *stored.City)
	require.NotNil(t, stored.Country)
	assert.Equal(t, "South Korea", *stored.Country)

	// The prediction branch never ran
	assert.Equal(t, datastore.StateNone, stored.LocationPredictionState)
	assert.Nil(t, stored.PredictedLocation)
	assert.Equal(t, 0, f.predictor.calls)
	assert.Equal(t, 1, f.geocoder.calls)
}

func TestImportWithoutGPSRunsPredictionBranch(t *testing.T) {
	f := newFixture(t)
	photo := importPlainPhoto(t, f)

	stored, err := f.store.GetPhoto(photo.ID)
	require.NoError(t, err)

	assert.False(t, stored.HasGPSData)
	assert.Equal(t, datastore.StateCompleted, stored.LocationPredictionState)
	require.NotNil(t, stored.PredictedLocation)
	assert.Equal(t, "City", *stored.PredictedLocation)
	assert.InDelta(t, 0.42, stored.PredictedLocationConfidence, 1e-9)

	assert.Equal(t, datastore.StateNone, stored.GeocodingState)
	assert.Nil(t, stored.City)
	assert.Equal(t, 0, f.geocoder.calls)
	assert.Equal(t, 1, f.predictor.calls)
}

func TestImportPublishesStageTransitions(t *testing.T) {
	f := newFixture(t)
	importGPSPhoto(t, f)

	assert.Equal(t, []string{"pending", "processing", "completed"},
		f.sink.statesFor(events.StageClassification))
	assert.Equal(t, []string{"processing", "completed"},
		f.sink.statesFor(events.StageGeocoding))
}

func TestClassificationFailureRecordsErrorKeepsStoredResult(t *testing.T) {
	f := newFixture(t)
	photo := importPlainPhoto(t, f)

	// Subsequent run fails; the stored result must survive and the failure
	// is reported through the result, not as an error
	f.classifier.err = classifier.ErrNoResults
	result, err := f.orchestrator.Reclassify(context.Background(), photo.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Changed)

	stored, err := f.store.GetPhoto(photo.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StateFailed, stored.ClassificationState)
	require.NotNil(t, stored.ClassificationError)
	assert.Contains(t, *stored.ClassificationError, "no results")
	require.NotNil(t, stored.ClassificationLabel)
	assert.Equal(t, "mountain", *stored.ClassificationLabel)
	assert.InDelta(t, 0.87, stored.ClassificationConfidence, 1e-9)
}

func TestReclassifyIdempotentWhenResultUnchanged(t *testing.T) {
	f := newFixture(t)
	photo := importPlainPhoto(t, f)

	result, err := f.orchestrator.Reclassify(context.Background(), photo.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Changed)
}

func TestReclassifyChangeDetectionBoundary(t *testing.T) {
	cases := []struct {
		name       string
		confidence float64
		changed    bool
	}{
		{"delta below threshold", 0.87 + 0.01, false},
		{"delta above threshold", 0.87 + 0.011, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			photo := importPlainPhoto(t, f)

			f.classifier.result.Confidence = tc.confidence
			result, err := f.orchestrator.Reclassify(context.Background(), photo.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.changed, result.Changed)
		})
	}
}

func TestReclassifyLabelChangeDetected(t *testing.T) {
	f := newFixture(t)
	photo := importPlainPhoto(t, f)

	f.classifier.result.Label = "forest"
	result, err := f.orchestrator.Reclassify(context.Background(), photo.ID)
	require.NoError(t, err)
	assert.True(t, result.Changed)

	stored, err := f.store.GetPhoto(photo.ID)
	require.NoError(t, err)
	assert.Equal(t, "forest", *stored.ClassificationLabel)
}

func TestReclassifyClearsPreviousError(t *testing.T) {
	f := newFixture(t)
	photo := importPlainPhoto(t, f)

	f.classifier.err = classifier.ErrNoResults
	result, err := f.orchestrator.Reclassify(context.Background(), photo.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)

	f.classifier.err = nil
	result, err = f.orchestrator.Reclassify(context.Background(), photo.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored, err := f.store.GetPhoto(photo.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StateCompleted, stored.ClassificationState)
	assert.Nil(t, stored.ClassificationError)
}

func TestRefreshLocationRejectsNoGPSPhoto(t *testing.T) {
	f := newFixture(t)
	photo := importPlainPhoto(t, f)

	_, err := f.orchestrator.RefreshLocation(context.Background(), photo.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no GPS")
	assert.Equal(t, 0, f.geocoder.calls)
}

func TestRepredictLocationRejectsGPSPhoto(t *testing.T) {
	f := newFixture(t)
	photo := importGPSPhoto(t, f)

	_, err := f.orchestrator.RepredictLocation(context.Background(), photo.ID)
	require.Error(t, err)
	calls := f.predictor.calls
	assert.Equal(t, 0, calls)
}

func TestRefreshLocationChangeDetection(t *testing.T) {
	f := newFixture(t)
	photo := importGPSPhoto(t, f)

	// Same provider answer: no change
	result, err := f.orchestrator.RefreshLocation(context.Background(), photo.ID)
	require.NoError(t, err)
	assert.False(t, result.Changed)

	// Provider now reports a different city
	f.geocoder.result.Location.City = "Busan"
	result, err = f.orchestrator.RefreshLocation(context.Background(), photo.ID)
	require.NoError(t, err)
	assert.True(t, result.Changed)
}

func TestGeocodingNoResultCompletesWithEmptyLocation(t *testing.T) {
	f := newFixture(t)
	f.geocoder.result = geocoder.Result{}

	photo := importGPSPhoto(t, f)
	stored, err := f.store.GetPhoto(photo.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StateCompleted, stored.GeocodingState)
	assert.Nil(t, stored.LocationName)
	assert.Nil(t, stored.City)
	assert.Nil(t, stored.Country)
}

func TestPredictionBelowFloorCompletesWithoutLocation(t *testing.T) {
	f := newFixture(t)
	f.predictor.prediction = nil

	photo := importPlainPhoto(t, f)
	stored, err := f.store.GetPhoto(photo.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StateCompleted, stored.LocationPredictionState)
	assert.Nil(t, stored.PredictedLocation)
	assert.Zero(t, stored.PredictedLocationConfidence)
}

func TestDuplicateImportReturnsExistingPhoto(t *testing.T) {
	f := newFixture(t)
	f.orchestrator.settings.Import.DetectDupes = true

	data := testImage(t)
	first, err := f.orchestrator.ImportAndEnrich(context.Background(), data, ImportOptions{FileName: "a.png"})
	require.NoError(t, err)

	second, err := f.orchestrator.ImportAndEnrich(context.Background(), data, ImportOptions{FileName: "b.png"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	photos, err := f.store.GetAllPhotos()
	require.NoError(t, err)
	assert.Len(t, photos, 1)
}

func TestImportEmptyDataRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.ImportAndEnrich(context.Background(), nil, ImportOptions{})
	require.Error(t, err)
}

func TestAddAndRemoveTagWithCleanup(t *testing.T) {
	f := newFixture(t)
	photo := importPlainPhoto(t, f)

	require.NoError(t, f.orchestrator.AddTag(photo.ID, "nature"))
	stored, err := f.store.GetPhoto(photo.ID)
	require.NoError(t, err)
	require.Len(t, stored.Tags, 1)
	assert.Equal(t, "nature", stored.Tags[0].Name)

	// Removing the only reference deletes the tag immediately
	require.NoError(t, f.orchestrator.RemoveTag(photo.ID, "nature"))
	_, err = f.store.GetTagByName("nature")
	require.Error(t, err)
}

func TestDeletePhotoCleansTagsAndMedia(t *testing.T) {
	f := newFixture(t)
	photo := importPlainPhoto(t, f)
	other := importGPSPhoto(t, f)

	require.NoError(t, f.orchestrator.AddTag(photo.ID, "sunset"))
	require.NoError(t, f.orchestrator.AddTag(photo.ID, "shared"))
	require.NoError(t, f.orchestrator.AddTag(other.ID, "shared"))

	require.NoError(t, f.orchestrator.DeletePhoto(photo.ID))

	_, err := f.store.GetPhoto(photo.ID)
	require.Error(t, err)
	_, err = f.store.GetTagByName("sunset")
	require.Error(t, err)
	_, err = f.store.GetTagByName("shared")
	require.NoError(t, err)

	_, err = f.files.Load("city.png")
	require.Error(t, err)
}

func TestReclassifyAllReportsProgressAndFailures(t *testing.T) {
	f := newFixture(t)
	importPlainPhoto(t, f)
	time.Sleep(time.Millisecond)
	importGPSPhoto(t, f)

	var progress [][2]int
	failures, err := f.orchestrator.ReclassifyAll(context.Background(), func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})
	require.NoError(t, err)
	assert.Zero(t, failures)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)
}

func TestReclassifyAllCountsPerPhotoFailures(t *testing.T) {
	f := newFixture(t)
	importPlainPhoto(t, f)

	f.classifier.err = classifier.ErrNoResults
	failures, err := f.orchestrator.ReclassifyAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
}

func TestReclassifyAllStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	importPlainPhoto(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.orchestrator.ReclassifyAll(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHasValidGPS(t *testing.T) {
	assert.False(t, hasValidGPS(&datastore.Photo{HasGPSData: false}))
	assert.False(t, hasValidGPS(&datastore.Photo{HasGPSData: true, Latitude: 0, Longitude: 0}))
	assert.True(t, hasValidGPS(&datastore.Photo{HasGPSData: true, Latitude: 37.5, Longitude: 126.9}))
	assert.True(t, hasValidGPS(&datastore.Photo{HasGPSData: true, Latitude: 0, Longitude: 126.9}))
}
