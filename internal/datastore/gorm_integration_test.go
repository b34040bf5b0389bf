package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoivula/photonest/internal/conf"
)

// newTestStore opens a SQLite store against a temp directory.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func newTestPhoto(hasGPS bool) *Photo {
	photo := &Photo{
		ID:                  uuid.New().String(),
		FileName:            "test.jpg",
		CreatedAt:           time.Now(),
		ClassificationState: StatePending,
		HasGPSData:          hasGPS,
	}
	if hasGPS {
		photo.GeocodingState = StatePending
		photo.LocationPredictionState = StateNone
	} else {
		photo.GeocodingState = StateNone
		photo.LocationPredictionState = StateNone
	}
	return photo
}

func TestPhotoCRUD(t *testing.T) {
	store := newTestStore(t)

	photo := newTestPhoto(true)
	photo.Latitude = 37.5665
	photo.Longitude = 126.9780
	require.NoError(t, store.CreatePhoto(photo))

	got, err := store.GetPhoto(photo.ID)
	require.NoError(t, err)
	assert.Equal(t, photo.ID, got.ID)
	assert.True(t, got.HasGPSData)
	assert.InDelta(t, 37.5665, got.Latitude, 1e-9)
	assert.Equal(t, StatePending, got.ClassificationState)

	label := "mountain"
	got.ClassificationLabel = &label
	got.ClassificationConfidence = 0.87
	got.ClassificationState = StateCompleted
	require.NoError(t, store.SavePhoto(got))

	got2, err := store.GetPhoto(photo.ID)
	require.NoError(t, err)
	require.NotNil(t, got2.ClassificationLabel)
	assert.Equal(t, "mountain", *got2.ClassificationLabel)
	assert.Equal(t, StateCompleted, got2.ClassificationState)

	require.NoError(t, store.DeletePhoto(photo.ID))
	_, err = store.GetPhoto(photo.ID)
	require.Error(t, err)
}

func TestGetPhotoNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPhoto("no-such-id")
	require.Error(t, err)
}

func TestGetOrCreateTagCaseInsensitive(t *testing.T) {
	store := newTestStore(t)

	tag, err := store.GetOrCreateTag("Nature")
	require.NoError(t, err)
	assert.Equal(t, "Nature", tag.Name)

	// Same tag regardless of casing
	again, err := store.GetOrCreateTag("nature")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, again.ID)

	upper, err := store.GetOrCreateTag("NATURE")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, upper.ID)
}

func TestGetOrCreateTagEmptyName(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetOrCreateTag("  ")
	require.Error(t, err)
}

func TestDeleteOrphanedTags(t *testing.T) {
	store := newTestStore(t)

	photo1 := newTestPhoto(false)
	photo2 := newTestPhoto(false)
	require.NoError(t, store.CreatePhoto(photo1))
	require.NoError(t, store.CreatePhoto(photo2))

	nature, err := store.GetOrCreateTag("nature")
	require.NoError(t, err)
	shared, err := store.GetOrCreateTag("travel")
	require.NoError(t, err)

	require.NoError(t, store.AddTagToPhoto(photo1.ID, nature))
	require.NoError(t, store.AddTagToPhoto(photo1.ID, shared))
	require.NoError(t, store.AddTagToPhoto(photo2.ID, shared))

	// Removing the last reference to "nature" orphans it
	require.NoError(t, store.RemoveTagFromPhoto(photo1.ID, "nature"))
	deleted, err := store.DeleteOrphanedTags()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.GetTagByName("nature")
	require.Error(t, err)

	// "travel" is still referenced by both photos and survives
	tag, err := store.GetTagByName("travel")
	require.NoError(t, err)
	assert.Equal(t, shared.ID, tag.ID)
}

func TestDeletePhotoOrphansItsTags(t *testing.T) {
	store := newTestStore(t)

	photo1 := newTestPhoto(false)
	photo2 := newTestPhoto(false)
	require.NoError(t, store.CreatePhoto(photo1))
	require.NoError(t, store.CreatePhoto(photo2))

	only, err := store.GetOrCreateTag("sunset")
	require.NoError(t, err)
	shared, err := store.GetOrCreateTag("beach")
	require.NoError(t, err)

	require.NoError(t, store.AddTagToPhoto(photo1.ID, only))
	require.NoError(t, store.AddTagToPhoto(photo1.ID, shared))
	require.NoError(t, store.AddTagToPhoto(photo2.ID, shared))

	require.NoError(t, store.DeletePhoto(photo1.ID))
	deleted, err := store.DeleteOrphanedTags()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.GetTagByName("sunset")
	require.Error(t, err)
	_, err = store.GetTagByName("beach")
	require.NoError(t, err)
}

func TestGeocodeCacheRoundtrip(t *testing.T) {
	store := newTestStore(t)

	// Missing entry is not an error
	entry, err := store.GetGeocodeCache("37.5665,126.9780")
	require.NoError(t, err)
	assert.Nil(t, entry)

	cached := &GeocodeCache{
		CoordKey:     "37.5665,126.9780",
		LocationName: "Seoul, South Korea",
		City:         "Seoul",
		Country:      "South Korea",
		CachedAt:     time.Now(),
	}
	require.NoError(t, store.SaveGeocodeCache(cached))

	got, err := store.GetGeocodeCache("37.5665,126.9780")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Seoul", got.City)

	// Update path
	cached.City = "Seoul Special City"
	require.NoError(t, store.SaveGeocodeCache(cached))
	got, err = store.GetGeocodeCache("37.5665,126.9780")
	require.NoError(t, err)
	assert.Equal(t, "Seoul Special City", got.City)
}

func TestGetPhotoHashes(t *testing.T) {
	store := newTestStore(t)

	withHash := newTestPhoto(false)
	withHash.PerceptualHash = "d:00ff00ff00ff00ff"
	withoutHash := newTestPhoto(false)
	require.NoError(t, store.CreatePhoto(withHash))
	require.NoError(t, store.CreatePhoto(withoutHash))

	hashes, err := store.GetPhotoHashes()
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	assert.Equal(t, withHash.ID, hashes[0].ID)
	assert.Equal(t, "d:00ff00ff00ff00ff", hashes[0].PerceptualHash)
}
