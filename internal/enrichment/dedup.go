package enrichment

import (
	"bytes"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp"

	"github.com/tkoivula/photonest/internal/datastore"
)

// defaultDupeThreshold is the maximum dHash Hamming distance below which two
// images are considered perceptually identical.
const defaultDupeThreshold = 10

// perceptualHash computes the dHash of the image bytes in its serialized
// form. Returns an empty string when the image cannot be decoded or hashed;
// the import then proceeds without duplicate protection.
func perceptualHash(data []byte) string {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return ""
	}
	return hash.ToString()
}

// matchHash compares a serialized dHash against stored photo hashes and
// returns the first photo within the Hamming distance threshold.
func matchHash(hash string, hashes []datastore.PhotoHash, threshold int) (string, bool) {
	candidate, err := goimagehash.ImageHashFromString(hash)
	if err != nil {
		return "", false
	}
	for i := range hashes {
		stored, err := goimagehash.ImageHashFromString(hashes[i].PerceptualHash)
		if err != nil {
			continue
		}
		dist, err := candidate.Distance(stored)
		if err == nil && dist < threshold {
			return hashes[i].ID, true
		}
	}
	return "", false
}
