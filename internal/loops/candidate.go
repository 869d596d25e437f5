package loops

import (
	"fmt"
	"math"
	"path/filepath"
)

// CandidateLoop is a start/end frame pair whose digests are close enough to
// loop. Score is the raw hash distance; lower is better.
type CandidateLoop struct {
	Score      int
	StartFrame int
	EndFrame   int
	FrameRate  float64

	// Outputs is filled in by the renderer once the candidate is encoded.
	Outputs *RenderOutputs
}

// RenderOutputs names the encoded artifacts of a candidate.
type RenderOutputs struct {
	Rank int
	GIF  string
	WebM string
	MP4  string
}

// StartTime returns the candidate start in seconds relative to the decoded stream.
func (c *CandidateLoop) StartTime() float64 {
	return float64(c.StartFrame) / c.FrameRate
}

// Duration returns the candidate length in seconds.
func (c *CandidateLoop) Duration() float64 {
	return float64(c.EndFrame-c.StartFrame) / c.FrameRate
}

// FrameLength returns the number of frames spanned by the candidate.
func (c *CandidateLoop) FrameLength() int {
	return c.EndFrame - c.StartFrame
}

// LoopRecord is the externally visible result for one rendered candidate.
type LoopRecord struct {
	Rank         int     `json:"rank" yaml:"rank"`
	Score        float64 `json:"score" yaml:"score"`
	RawScore     int     `json:"raw_score" yaml:"raw_score"`
	StartFrame   int     `json:"start_frame" yaml:"start_frame"`
	EndFrame     int     `json:"end_frame" yaml:"end_frame"`
	FrameLength  int     `json:"frame_length" yaml:"frame_length"`
	StartSeconds float64 `json:"start_seconds" yaml:"start_seconds"`
	Duration     float64 `json:"duration" yaml:"duration"`
	GIFName      string  `json:"gif_name" yaml:"gif_name"`
	WebMName     string  `json:"webm_name" yaml:"webm_name"`
	MP4Name      string  `json:"mp4_name" yaml:"mp4_name"`
	GIFLocation  string  `json:"gif_location" yaml:"gif_location"`
	WebMLocation string  `json:"webm_location" yaml:"webm_location"`
	MP4Location  string  `json:"mp4_location" yaml:"mp4_location"`
}

// NormalizeScore maps a raw distance onto [0, 1] where 1 is a perfect match,
// rounded to three decimals.
func NormalizeScore(score, maxDifference int) float64 {
	if maxDifference <= 0 {
		return 0
	}
	return math.Round((1-float64(score)/float64(maxDifference))*1000) / 1000
}

// NewLoopRecord builds the record for a rendered candidate. offset is the
// position in the source, in seconds, of the decoded stream's first frame.
func NewLoopRecord(c *CandidateLoop, maxDifference int, offset float64) (LoopRecord, error) {
	if c.Outputs == nil {
		return LoopRecord{}, fmt.Errorf("candidate %d-%d was not rendered", c.StartFrame, c.EndFrame)
	}

	locations := make([]string, 0, 3)
	for _, p := range []string{c.Outputs.GIF, c.Outputs.WebM, c.Outputs.MP4} {
		abs, err := filepath.Abs(p)
		if err != nil {
			return LoopRecord{}, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		locations = append(locations, abs)
	}

	return LoopRecord{
		Rank:         c.Outputs.Rank,
		Score:        NormalizeScore(c.Score, maxDifference),
		RawScore:     c.Score,
		StartFrame:   c.StartFrame,
		EndFrame:     c.EndFrame,
		FrameLength:  c.FrameLength(),
		StartSeconds: offset + c.StartTime(),
		Duration:     c.Duration(),
		GIFName:      filepath.Base(c.Outputs.GIF),
		WebMName:     filepath.Base(c.Outputs.WebM),
		MP4Name:      filepath.Base(c.Outputs.MP4),
		GIFLocation:  locations[0],
		WebMLocation: locations[1],
		MP4Location:  locations[2],
	}, nil
}
