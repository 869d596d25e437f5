package ffmpeg

import (
	"github.com/kikiluvv/loopifi/pkg/util"
)

// LoopEncodeOptions holds the output settings shared by every loop format.
type LoopEncodeOptions struct {
	Width       int
	GIFFPS      int
	Sound       bool
	WebMMinRate string
	WebMBitrate string
	WebMMaxRate string
	MP4Bitrate  string
}

// DefaultLoopEncodeOptions returns the standard 500px loop settings with audio kept.
func DefaultLoopEncodeOptions() LoopEncodeOptions {
	return LoopEncodeOptions{
		Width:       DefaultLoopWidth,
		GIFFPS:      DefaultGIFFPS,
		Sound:       true,
		WebMMinRate: DefaultWebMMinRate,
		WebMBitrate: DefaultWebMBitrate,
		WebMMaxRate: DefaultWebMMaxRate,
		MP4Bitrate:  DefaultMP4Bitrate,
	}
}

// LoopSegment identifies the slice of the input to encode.
type LoopSegment struct {
	Input    string
	Start    float64
	Duration float64
}

func (s LoopSegment) seek() []string {
	return []string{
		"-y",
		"-ss", util.FormatSeconds(s.Start),
		"-t", util.FormatSeconds(s.Duration),
		"-i", s.Input,
	}
}

// GIFPaletteArgs generates an optimized palette for the segment.
func GIFPaletteArgs(seg LoopSegment, palette string, opts LoopEncodeOptions) []string {
	filter := NewFilterBuilder().
		ScaleWidth(opts.Width, true).
		PaletteGen().
		Build()

	args := seg.seek()
	return append(args, "-vf", filter, palette)
}

// GIFEncodeArgs encodes the segment as a GIF using a previously generated palette.
func GIFEncodeArgs(seg LoopSegment, palette, output string, opts LoopEncodeOptions) []string {
	chain := NewFilterBuilder().
		FPS(float64(opts.GIFFPS)).
		ScaleWidth(opts.Width, true).
		Build()

	args := seg.seek()
	return append(args,
		"-i", palette,
		"-filter_complex", chain+"[x];[x][1:v]paletteuse",
		output,
	)
}

// WebMArgs encodes the segment as VP8 WEBM.
func WebMArgs(seg LoopSegment, output string, opts LoopEncodeOptions) []string {
	args := seg.seek()
	if !opts.Sound {
		args = append(args, "-an")
	}
	return append(args,
		"-minrate", opts.WebMMinRate,
		"-b:v", opts.WebMBitrate,
		"-maxrate", opts.WebMMaxRate,
		"-c:v", DefaultWebMCodec,
		"-vf", NewFilterBuilder().ScaleWidth(opts.Width, false).Build(),
		output,
	)
}

// MP4Args encodes the segment as H.264 MP4.
func MP4Args(seg LoopSegment, output string, opts LoopEncodeOptions) []string {
	args := seg.seek()
	if !opts.Sound {
		args = append(args, "-an")
	}
	return append(args,
		"-b:v", opts.MP4Bitrate,
		"-c:v", DefaultVideoCodec,
		"-vf", NewFilterBuilder().ScaleWidth(opts.Width, false).Build(),
		output,
	)
}
