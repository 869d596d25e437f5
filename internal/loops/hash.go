package loops

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// DefaultHashSize is the side of the DCT block used for frame digests,
// giving 256-bit hashes.
const DefaultHashSize = 16

// Hasher produces a perceptual digest of a decoded frame.
type Hasher interface {
	Hash(img image.Image) (*goimagehash.ExtImageHash, error)
}

// PerceptualHasher computes DCT-based perceptual hashes of size*size bits.
type PerceptualHasher struct {
	size int
}

// NewPerceptualHasher creates a hasher for the given block size, which must
// be a power of two.
func NewPerceptualHasher(size int) (*PerceptualHasher, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("hash size must be a positive power of two, got %d", size)
	}
	return &PerceptualHasher{size: size}, nil
}

// Hash returns the perceptual hash of img.
func (h *PerceptualHasher) Hash(img image.Image) (*goimagehash.ExtImageHash, error) {
	return goimagehash.ExtPerceptionHash(img, h.size, h.size)
}

// MaxHashDifference is the reference scale that scores and the similarity
// threshold are expressed against.
func MaxHashDifference(size int) int {
	return size * size * 4
}

// FrameHash binds a digest to the frame index it was computed from.
type FrameHash struct {
	FrameIndex int
	Hash       *goimagehash.ExtImageHash
}
