package enrichment

import (
	"bytes"
	"time"

	"github.com/bep/imagemeta"
)

// imageMetadata holds the subset of EXIF data the importer cares about.
type imageMetadata struct {
	capturedAt *time.Time
	latitude   *float64
	longitude  *float64
}

// exifTimeLayout is the EXIF DateTimeOriginal format.
const exifTimeLayout = "2006:01:02 15:04:05"

// wantedEXIFTags limits decoding to the tags the importer reads.
var wantedEXIFTags = map[string]bool{
	"DateTimeOriginal": true,
	"DateTime":         true,
	"GPSLatitude":      true,
	"GPSLongitude":     true,
	"GPSLatitudeRef":   true,
	"GPSLongitudeRef":  true,
}

// extractMetadata parses the capture timestamp and GPS position from raw
// image bytes. Returns nil when nothing usable is embedded; metadata
// problems never fail an import.
func extractMetadata(data []byte) *imageMetadata {
	if len(data) == 0 {
		return nil
	}

	meta := &imageMetadata{}
	found := false
	var latRef, lonRef string

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return wantedEXIFTags[ti.Tag]
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			switch ti.Tag {
			case "DateTimeOriginal", "DateTime":
				if meta.capturedAt != nil && ti.Tag == "DateTime" {
					return nil // DateTimeOriginal wins
				}
				if s, ok := ti.Value.(string); ok {
					if t, err := time.Parse(exifTimeLayout, s); err == nil {
						meta.capturedAt = &t
						found = true
					}
				}
			case "GPSLatitude":
				if f, ok := tagValueFloat(ti.Value); ok {
					meta.latitude = &f
					found = true
				}
			case "GPSLongitude":
				if f, ok := tagValueFloat(ti.Value); ok {
					meta.longitude = &f
					found = true
				}
			case "GPSLatitudeRef":
				if s, ok := ti.Value.(string); ok {
					latRef = s
				}
			case "GPSLongitudeRef":
				if s, ok := ti.Value.(string); ok {
					lonRef = s
				}
			}
			return nil
		},
	})
	if err != nil || !found {
		return nil
	}

	applyHemisphere(meta.latitude, latRef == "S")
	applyHemisphere(meta.longitude, lonRef == "W")

	// Partial coordinates are useless; drop them rather than invent a zero.
	if (meta.latitude == nil) != (meta.longitude == nil) {
		meta.latitude = nil
		meta.longitude = nil
	}
	return meta
}

// applyHemisphere flips the sign for southern and western references.
func applyHemisphere(value *float64, negative bool) {
	if value != nil && negative && *value > 0 {
		*value = -*value
	}
}

// tagValueFloat coerces the numeric representations EXIF decoding can
// produce into a float64.
func tagValueFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int:
		return float64(val), true
	}
	return 0, false
}
