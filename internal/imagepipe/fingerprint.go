package imagepipe

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/corona10/goimagehash"
)

// DefaultMaxDistance is the Hamming distance over the 64-bit perceptual hash
// at which two images count as near-duplicates. 9 of 64 bits corresponds to
// the configured 85% similarity threshold.
const DefaultMaxDistance = 9

// Fingerprint computes a perceptual hash from raw image bytes. Unlike a
// URL-derived hash, this detects visually similar outputs even when the
// service returns distinct URLs.
func Fingerprint(data []byte) (*goimagehash.ImageHash, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("perception hash: %w", err)
	}
	return hash, nil
}

// FingerprintSet holds the perceptual hashes accepted for one batch. It is
// scoped per batch and guarded by a single lock because image tasks run
// concurrently and all read-then-insert against it.
type FingerprintSet struct {
	mu          sync.Mutex
	maxDistance int
	hashes      []*goimagehash.ImageHash
}

// NewFingerprintSet creates an empty set with the given conflict distance.
func NewFingerprintSet(maxDistance int) *FingerprintSet {
	if maxDistance < 0 {
		maxDistance = DefaultMaxDistance
	}
	return &FingerprintSet{maxDistance: maxDistance}
}

// TryAdd atomically checks the hash against every accepted fingerprint and
// inserts it when no conflict exists. It reports whether the hash conflicted
// with an already-accepted image.
func (s *FingerprintSet) TryAdd(hash *goimagehash.ImageHash) (conflict bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.hashes {
		distance, dErr := existing.Distance(hash)
		if dErr != nil {
			return false, fmt.Errorf("hash distance: %w", dErr)
		}
		if distance <= s.maxDistance {
			return true, nil
		}
	}
	s.hashes = append(s.hashes, hash)
	return false, nil
}

// Len returns the number of accepted fingerprints.
func (s *FingerprintSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}
