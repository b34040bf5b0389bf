// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/errors"
)

// Interface abstracts the underlying database implementation and defines the
// operations the enrichment pipeline needs from the persistence gateway.
type Interface interface {
	Open() error
	Close() error

	CreatePhoto(photo *Photo) error
	SavePhoto(photo *Photo) error
	GetPhoto(id string) (*Photo, error)
	DeletePhoto(id string) error
	GetAllPhotos() ([]Photo, error)
	GetPhotoHashes() ([]PhotoHash, error)

	GetOrCreateTag(name string) (*Tag, error)
	GetTagByName(name string) (*Tag, error)
	AddTagToPhoto(photoID string, tag *Tag) error
	RemoveTagFromPhoto(photoID string, tagName string) error
	DeleteOrphanedTags() (int64, error)

	GetGeocodeCache(coordKey string) (*GeocodeCache, error)
	SaveGeocodeCache(entry *GeocodeCache) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// CreatePhoto inserts a new photo record with its tag associations.
func (ds *DataStore) CreatePhoto(photo *Photo) error {
	if err := ds.DB.Create(photo).Error; err != nil {
		return errors.New(fmt.Errorf("creating photo: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			PhotoContext(photo.ID).
			Build()
	}
	return nil
}

// SavePhoto persists the full state of an existing photo, including tag
// associations, as a single transaction.
func (ds *DataStore) SavePhoto(photo *Photo) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(photo).Error; err != nil {
			return fmt.Errorf("saving photo: %w", err)
		}
		if err := tx.Model(photo).Association("Tags").Replace(photo.Tags); err != nil {
			return fmt.Errorf("saving photo tags: %w", err)
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			PhotoContext(photo.ID).
			Build()
	}
	return nil
}

// GetPhoto retrieves a photo by its ID, with tags preloaded.
func (ds *DataStore) GetPhoto(id string) (*Photo, error) {
	var photo Photo
	if err := ds.DB.Preload("Tags").First(&photo, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("photo %s not found", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, errors.New(fmt.Errorf("getting photo %s: %w", id, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return &photo, nil
}

// DeletePhoto removes a photo and its tag associations. Orphaned tag cleanup
// is the caller's responsibility and runs immediately after this returns.
func (ds *DataStore) DeletePhoto(id string) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		photo := Photo{ID: id}
		if err := tx.Model(&photo).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("clearing tag associations for photo %s: %w", id, err)
		}
		if err := tx.Delete(&photo).Error; err != nil {
			return fmt.Errorf("deleting photo %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// GetAllPhotos retrieves all photos ordered by creation time.
func (ds *DataStore) GetAllPhotos() ([]Photo, error) {
	var photos []Photo
	if result := ds.DB.Preload("Tags").Order("created_at ASC").Find(&photos); result.Error != nil {
		return nil, fmt.Errorf("error getting all photos: %w", result.Error)
	}
	return photos, nil
}

// GetPhotoHashes retrieves the perceptual hashes of all photos that have one.
func (ds *DataStore) GetPhotoHashes() ([]PhotoHash, error) {
	var hashes []PhotoHash
	err := ds.DB.Model(&Photo{}).
		Select("id", "perceptual_hash").
		Where("perceptual_hash != ''").
		Scan(&hashes).Error
	if err != nil {
		return nil, fmt.Errorf("error getting photo hashes: %w", err)
	}
	return hashes, nil
}

// GetOrCreateTag looks up a tag by name case-insensitively, creating it if it
// does not exist yet. The stored name keeps the caller's casing, trimmed.
func (ds *DataStore) GetOrCreateTag(name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.ValidationError("tag name must not be empty")
	}

	var tag Tag
	err := ds.DB.Where("LOWER(name) = LOWER(?)", name).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up tag %q: %w", name, err)
	}

	tag = Tag{Name: name}
	if err := ds.DB.Create(&tag).Error; err != nil {
		return nil, fmt.Errorf("creating tag %q: %w", name, err)
	}
	return &tag, nil
}

// GetTagByName looks up a tag by name case-insensitively.
func (ds *DataStore) GetTagByName(name string) (*Tag, error) {
	var tag Tag
	err := ds.DB.Where("LOWER(name) = LOWER(?)", strings.TrimSpace(name)).First(&tag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("tag %q not found", name).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, fmt.Errorf("looking up tag %q: %w", name, err)
	}
	return &tag, nil
}

// AddTagToPhoto associates a tag with a photo.
func (ds *DataStore) AddTagToPhoto(photoID string, tag *Tag) error {
	photo := Photo{ID: photoID}
	if err := ds.DB.Model(&photo).Association("Tags").Append(tag); err != nil {
		return fmt.Errorf("adding tag %q to photo %s: %w", tag.Name, photoID, err)
	}
	return nil
}

// RemoveTagFromPhoto removes a tag association from a photo. Orphaned tag
// cleanup is the caller's responsibility.
func (ds *DataStore) RemoveTagFromPhoto(photoID, tagName string) error {
	tag, err := ds.GetTagByName(tagName)
	if err != nil {
		return err
	}
	photo := Photo{ID: photoID}
	if err := ds.DB.Model(&photo).Association("Tags").Delete(tag); err != nil {
		return fmt.Errorf("removing tag %q from photo %s: %w", tagName, photoID, err)
	}
	return nil
}

// DeleteOrphanedTags removes all tags with zero photo references and returns
// the number of deleted tags.
func (ds *DataStore) DeleteOrphanedTags() (int64, error) {
	result := ds.DB.
		Where("id NOT IN (?)", ds.DB.Table("photo_tags").Select("tag_id")).
		Delete(&Tag{})
	if result.Error != nil {
		return 0, errors.New(fmt.Errorf("deleting orphaned tags: %w", result.Error)).
			Component("datastore").
			Category(errors.CategoryTagCleanup).
			Build()
	}
	return result.RowsAffected, nil
}

// GetGeocodeCache retrieves a cached geocoding result by coordinate key.
// Returns nil without error when no entry exists.
func (ds *DataStore) GetGeocodeCache(coordKey string) (*GeocodeCache, error) {
	var entry GeocodeCache
	err := ds.DB.Where("coord_key = ?", coordKey).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting geocode cache for %s: %w", coordKey, err)
	}
	return &entry, nil
}

// SaveGeocodeCache inserts or updates a cached geocoding result.
func (ds *DataStore) SaveGeocodeCache(entry *GeocodeCache) error {
	var existing GeocodeCache
	err := ds.DB.Where("coord_key = ?", entry.CoordKey).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ds.DB.Create(entry).Error
		}
		return err
	}

	existing.LocationName = entry.LocationName
	existing.City = entry.City
	existing.Country = entry.Country
	existing.NoResult = entry.NoResult
	existing.CachedAt = entry.CachedAt
	return ds.DB.Save(&existing).Error
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Photo{}, &Tag{}, &GeocodeCache{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
