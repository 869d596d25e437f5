package loops

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"
)

// progressEvery is how many decoded frames pass between progress log lines.
const progressEvery = 150

// SampleFunc observes every sampled frame after it has been hashed.
type SampleFunc func(frameIndex int, img image.Image) error

// Extractor digests a stream of decoded frames into a HashIndex, sampling
// every stride-th frame starting at frame 0.
type Extractor struct {
	logger   zerolog.Logger
	hasher   Hasher
	stride   int
	expected int
	onSample SampleFunc

	frame int
	index *HashIndex
}

// NewExtractor creates an extractor. expected is the approximate number of
// frames in the stream and only affects progress logging.
func NewExtractor(logger zerolog.Logger, hasher Hasher, stride, expected int) *Extractor {
	if stride <= 0 {
		stride = DefaultStride
	}
	return &Extractor{
		logger:   logger.With().Str("component", "extractor").Logger(),
		hasher:   hasher,
		stride:   stride,
		expected: expected,
		index:    NewHashIndex(),
	}
}

// OnSample registers fn to receive each sampled frame.
func (e *Extractor) OnSample(fn SampleFunc) {
	e.onSample = fn
}

// Visit consumes the next decoded frame.
func (e *Extractor) Visit(img image.Image) error {
	frame := e.frame
	e.frame++

	if frame%progressEvery == 0 && e.expected > 0 {
		e.logger.Info().
			Int("frame", frame).
			Float64("percent", float64(frame)/float64(e.expected)*100).
			Msg("hashing frames")
	}

	if frame%e.stride != 0 {
		return nil
	}

	h, err := e.hasher.Hash(img)
	if err != nil {
		return fmt.Errorf("failed to hash frame %d: %w", frame, err)
	}
	if err := e.index.Add(FrameHash{FrameIndex: frame, Hash: h}); err != nil {
		return err
	}

	if e.onSample != nil {
		if err := e.onSample(frame, img); err != nil {
			return err
		}
	}
	return nil
}

// Frames returns how many frames have been visited.
func (e *Extractor) Frames() int {
	return e.frame
}

// Index returns the digests collected so far.
func (e *Extractor) Index() *HashIndex {
	return e.index
}
