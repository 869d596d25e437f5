package loops

import (
	"errors"
	"fmt"
	"sort"

	"github.com/corona10/goimagehash"
)

// ErrFrameOutOfRange is returned when a lookup falls past the last sampled frame.
var ErrFrameOutOfRange = errors.New("frame index out of range")

// HashIndex maps sampled frame indices to their digests. Lookups of
// unsampled indices resolve to the nearest sampled frame at or after them.
type HashIndex struct {
	frames []int
	hashes map[int]*goimagehash.ExtImageHash
}

// NewHashIndex creates an empty index
func NewHashIndex() *HashIndex {
	return &HashIndex{
		hashes: make(map[int]*goimagehash.ExtImageHash),
	}
}

// Add records a frame digest. Frame indices must be added in increasing
// order.
func (x *HashIndex) Add(fh FrameHash) error {
	frameIndex, h := fh.FrameIndex, fh.Hash
	if h == nil {
		return fmt.Errorf("nil hash for frame %d", frameIndex)
	}
	if n := len(x.frames); n > 0 && frameIndex <= x.frames[n-1] {
		return fmt.Errorf("frame %d added after frame %d", frameIndex, x.frames[n-1])
	}
	x.frames = append(x.frames, frameIndex)
	x.hashes[frameIndex] = h
	return nil
}

// Len returns the number of sampled frames.
func (x *HashIndex) Len() int {
	return len(x.frames)
}

// Frames returns the sampled frame indices in ascending order. The slice
// must not be modified.
func (x *HashIndex) Frames() []int {
	return x.frames
}

// Get returns the digest for frameIndex, or for the nearest sampled frame
// after it when frameIndex itself was not sampled.
func (x *HashIndex) Get(frameIndex int) (*goimagehash.ExtImageHash, error) {
	if h, ok := x.hashes[frameIndex]; ok {
		return h, nil
	}
	i := sort.SearchInts(x.frames, frameIndex)
	if i == len(x.frames) {
		return nil, fmt.Errorf("%w: %d", ErrFrameOutOfRange, frameIndex)
	}
	return x.hashes[x.frames[i]], nil
}

// Distance returns the Hamming distance between the digests of frames a and b.
func (x *HashIndex) Distance(a, b int) (int, error) {
	ha, err := x.Get(a)
	if err != nil {
		return 0, err
	}
	hb, err := x.Get(b)
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}
