package loops

import (
	"fmt"
	"sort"
)

// Search defaults
const (
	DefaultStride                = 5
	DefaultMinLoopFrames         = 15
	DefaultMaxLoopFrames         = 300
	DefaultMinMidFrameSimilarity = 4.0
	DefaultSimilarityRatio       = 0.75
)

// SearchOptions bounds the loop search.
type SearchOptions struct {
	Stride        int
	MinLoopFrames int
	MaxLoopFrames int

	// SimilarityThreshold is the exclusive upper bound on accepted distances.
	SimilarityThreshold float64
	// MinMidFrameSimilarity is the minimum percentage, against
	// MaxHashDifference, by which the midpoint frame must differ from the
	// start frame.
	MinMidFrameSimilarity float64
	MaxHashDifference     int
	FrameRate             float64
}

// DefaultSearchOptions returns the search settings for hashes of hashSize.
func DefaultSearchOptions(hashSize int, frameRate float64) SearchOptions {
	maxDiff := MaxHashDifference(hashSize)
	return SearchOptions{
		Stride:                DefaultStride,
		MinLoopFrames:         DefaultMinLoopFrames,
		MaxLoopFrames:         DefaultMaxLoopFrames,
		SimilarityThreshold:   DefaultSimilarityRatio * float64(maxDiff),
		MinMidFrameSimilarity: DefaultMinMidFrameSimilarity,
		MaxHashDifference:     maxDiff,
		FrameRate:             frameRate,
	}
}

func (o SearchOptions) validate() error {
	switch {
	case o.Stride <= 0:
		return fmt.Errorf("stride must be positive")
	case o.MaxHashDifference <= 0:
		return fmt.Errorf("max hash difference must be positive")
	case o.FrameRate <= 0:
		return fmt.Errorf("frame rate must be positive")
	case o.MaxLoopFrames < o.MinLoopFrames:
		return fmt.Errorf("max loop frames %d below min loop frames %d", o.MaxLoopFrames, o.MinLoopFrames)
	}
	return nil
}

// Search finds at most one loop per sampled start frame and returns them
// ranked by score, ties kept in discovery order.
func Search(index *HashIndex, opts SearchOptions) ([]*CandidateLoop, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	frames := index.Frames()
	candidates := make([]*CandidateLoop, 0)

	for i, start := range frames {
		best, err := bestEnd(index, frames[i+1:], start, opts)
		if err != nil {
			return nil, err
		}
		if best != nil {
			candidates = append(candidates, best)
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score < candidates[b].Score
	})
	return candidates, nil
}

// bestEnd scans the frames after start and returns the admissible end frame
// with the lowest distance, or nil when none qualifies.
func bestEnd(index *HashIndex, later []int, start int, opts SearchOptions) (*CandidateLoop, error) {
	startHash, err := index.Get(start)
	if err != nil {
		return nil, err
	}

	bestScore := opts.MaxHashDifference
	bestFrame := -1
	window := 0

	for _, candidate := range later {
		window += opts.Stride
		if window < opts.MinLoopFrames {
			continue
		}
		if window > opts.MaxLoopFrames {
			break
		}

		h, err := index.Get(candidate)
		if err != nil {
			return nil, err
		}
		distance, err := startHash.Distance(h)
		if err != nil {
			return nil, fmt.Errorf("failed to compare frames %d and %d: %w", start, candidate, err)
		}
		if float64(distance) >= opts.SimilarityThreshold || distance >= bestScore {
			continue
		}

		moving, err := midpointMoves(index, start, candidate, opts)
		if err != nil {
			return nil, err
		}
		if !moving {
			continue
		}

		bestScore = distance
		bestFrame = candidate
	}

	if bestFrame < 0 {
		return nil, nil
	}
	return &CandidateLoop{
		Score:      bestScore,
		StartFrame: start,
		EndFrame:   bestFrame,
		FrameRate:  opts.FrameRate,
	}, nil
}

// midpointMoves reports whether the frame halfway between start and end
// differs enough from start to rule out a static span.
func midpointMoves(index *HashIndex, start, end int, opts SearchOptions) (bool, error) {
	mid := (start + end) / 2
	distance, err := index.Distance(start, mid)
	if err != nil {
		return false, fmt.Errorf("failed to compare midpoint %d: %w", mid, err)
	}
	pct := float64(distance) / float64(opts.MaxHashDifference) * 100
	return pct >= opts.MinMidFrameSimilarity, nil
}
