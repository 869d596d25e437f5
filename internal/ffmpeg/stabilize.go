package ffmpeg

import (
	"strconv"

	"github.com/kikiluvv/loopifi/pkg/util"
)

// StabilizeOptions controls the two-pass vid.stab stabilization.
type StabilizeOptions struct {
	Threads   int
	StepSize  int
	Shakiness int
	Accuracy  int
	Zoom      int
	Smoothing int
	Unsharp   string
	Preset    string
	Tune      string
	CRF       int
}

// DefaultStabilizeOptions returns the settings used for loop sources.
func DefaultStabilizeOptions() StabilizeOptions {
	return StabilizeOptions{
		Threads:   DefaultStabilizeThreads,
		StepSize:  6,
		Shakiness: 4,
		Accuracy:  5,
		Zoom:      1,
		Smoothing: 30,
		Unsharp:   "5:5:0.8:3:3:0.4",
		Preset:    DefaultStabilizePreset,
		Tune:      DefaultStabilizeTune,
		CRF:       DefaultStabilizeCRF,
	}
}

// DetectMotionArgs returns the first pass: analyze src and write transform
// vectors to vectorFile, discarding the decoded output.
func DetectMotionArgs(src, vectorFile string, opts StabilizeOptions) []string {
	filter := NewFilterBuilder().
		VidStabDetect(opts.StepSize, opts.Shakiness, opts.Accuracy, vectorFile).
		Build()

	return []string{
		"-y",
		"-threads", strconv.Itoa(opts.Threads),
		"-i", src,
		"-vf", filter,
		"-f", "null",
		"-",
	}
}

// TransformArgs returns the second pass: apply the vectors to the
// [start, start+length) slice of src and encode it to dst.
func TransformArgs(src, vectorFile, dst string, start, length float64, opts StabilizeOptions) []string {
	filter := NewFilterBuilder().
		VidStabTransform(vectorFile, opts.Zoom, opts.Smoothing).
		Unsharp(opts.Unsharp).
		Build()

	return []string{
		"-threads", strconv.Itoa(opts.Threads),
		"-y",
		"-i", src,
		"-ss", util.FormatSeconds(start),
		"-t", util.FormatSeconds(length),
		"-vf", filter,
		"-vcodec", DefaultVideoCodec,
		"-acodec", "copy",
		"-preset", opts.Preset,
		"-tune", opts.Tune,
		"-crf", strconv.Itoa(opts.CRF),
		dst,
	}
}
