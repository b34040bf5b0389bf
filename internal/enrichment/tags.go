package enrichment

import (
	"github.com/tkoivula/photonest/internal/datastore"
)

// AddTag attaches a tag to a photo, creating the tag on first use.
func (o *Orchestrator) AddTag(photoID, tagName string) error {
	photo, err := o.store.GetPhoto(photoID)
	if err != nil {
		return err
	}

	tag, err := o.store.GetOrCreateTag(tagName)
	if err != nil {
		return err
	}
	return o.store.AddTagToPhoto(photo.ID, tag)
}

// RemoveTag detaches a tag from a photo. Tags left with no references are
// deleted immediately, so an orphaned tag is never observable between
// operations.
func (o *Orchestrator) RemoveTag(photoID, tagName string) error {
	if err := o.store.RemoveTagFromPhoto(photoID, tagName); err != nil {
		return err
	}
	return o.collectOrphanedTags()
}

// DeletePhoto removes a photo, its stored media file, and any tags orphaned
// by the removal.
func (o *Orchestrator) DeletePhoto(photoID string) error {
	photo, err := o.store.GetPhoto(photoID)
	if err != nil {
		return err
	}

	if err := o.store.DeletePhoto(photo.ID); err != nil {
		return err
	}

	if o.media != nil {
		if err := o.media.Remove(photo.FileName); err != nil && o.logger != nil {
			o.logger.Warn("cannot remove media file",
				"photo_id", photo.ID, "file_name", photo.FileName, "error", err)
		}
	}

	return o.collectOrphanedTags()
}

// GetPhoto returns a photo with its tags.
func (o *Orchestrator) GetPhoto(photoID string) (*datastore.Photo, error) {
	return o.store.GetPhoto(photoID)
}

// collectOrphanedTags runs the synchronous tag cleanup after a mutation.
func (o *Orchestrator) collectOrphanedTags() error {
	deleted, err := o.store.DeleteOrphanedTags()
	if err != nil {
		return err
	}
	if deleted > 0 {
		o.metrics.AddOrphanedTagsDeleted(deleted)
		if o.logger != nil {
			o.logger.Debug("orphaned tags removed", "count", deleted)
		}
	}
	return nil
}
