package loops

import (
	"errors"
	"fmt"
)

// DefaultMaxSearchSeconds caps the interval that can be searched in one run.
const DefaultMaxSearchSeconds = 600

// ErrInvalidInterval marks a search interval rejected before any work starts.
var ErrInvalidInterval = errors.New("invalid interval")

// Interval is the [Start, End] window of the source, in seconds, to search.
type Interval struct {
	Start float64
	End   float64
}

// Length returns End - Start.
func (iv Interval) Length() float64 {
	return iv.End - iv.Start
}

// Check validates the bounds that do not depend on the source duration.
func (iv Interval) Check(maxLength float64) error {
	if iv.Start < 0 {
		return fmt.Errorf("%w: start %.3fs is negative", ErrInvalidInterval, iv.Start)
	}
	if iv.End < iv.Start {
		return fmt.Errorf("%w: end %.3fs precedes start %.3fs", ErrInvalidInterval, iv.End, iv.Start)
	}
	if maxLength > 0 && iv.Length() > maxLength {
		return fmt.Errorf("%w: length %.3fs exceeds maximum of %.0fs", ErrInvalidInterval, iv.Length(), maxLength)
	}
	return nil
}

// CheckAgainst validates the interval against the probed source duration.
func (iv Interval) CheckAgainst(duration float64) error {
	if iv.Start > duration {
		return fmt.Errorf("%w: start %.3fs is past the end of the video (%.3fs)", ErrInvalidInterval, iv.Start, duration)
	}
	return nil
}
