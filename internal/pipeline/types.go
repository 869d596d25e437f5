package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/kikiluvv/loopifi/internal/config"
	"github.com/kikiluvv/loopifi/internal/ffmpeg"
	"github.com/kikiluvv/loopifi/internal/loops"
)

// Runner executes a single ffmpeg invocation
type Runner interface {
	Run(ctx context.Context, opts ffmpeg.RunOptions) error
}

// Prober reads the source metadata the pipeline depends on
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ProbeFrameRate(ctx context.Context, path string) (float64, error)
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
}

// FrameReader decodes frames in presentation order
type FrameReader interface {
	ReadFrames(ctx context.Context, req ffmpeg.DecodeRequest, visit func(image.Image) error) error
}

// ProgressFunc receives a human readable status and a completion percentage
// in [0, 100]. Percentages never decrease within a run.
type ProgressFunc func(status string, percent float64)

// Progress checkpoints
const (
	progressStabilizeStart = 0
	progressStabilizeMid   = 10
	progressStabilizeEnd   = 20
	progressExtractStart   = 40
	progressSearchStart    = 60
	progressRenderStart    = 80
	progressDone           = 100
)

// Status messages reported through ProgressFunc
const (
	StatusStabilizing = "Stabilizing video..."
	StatusPreparing   = "Preparing to search..."
	StatusSearching   = "Searching for loops..."
	StatusEncoding    = "Encoding loops..."
	StatusDone        = "Done"
)

// State is a stage of a pipeline run
type State int

const (
	StateValidating State = iota
	StateStabilizing
	StateExtracting
	StateSearching
	StateRendering
	StateCleaningUp
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateStabilizing:
		return "stabilizing"
	case StateExtracting:
		return "extracting"
	case StateSearching:
		return "searching"
	case StateRendering:
		return "rendering"
	case StateCleaningUp:
		return "cleaning_up"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PipelineError reports a fatal failure after validation, tagged with the
// stage it happened in.
type PipelineError struct {
	State State
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed while %s: %v", e.State, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Options configures one pipeline run
type Options struct {
	Stabilize       bool
	Sound           bool
	MaxCandidates   int
	SampleStride    int
	MinLoopFrames   int
	MaxLoopFrames   int
	RetainTempFiles bool

	HashSize              int
	SimilarityRatio       float64
	MinMidFrameSimilarity float64
	MaxSearchSeconds      float64

	// DumpFrames writes a thumbnail of every sampled frame into the frames
	// workspace. Only useful together with RetainTempFiles.
	DumpFrames    bool
	ThumbnailSize uint

	Encode     ffmpeg.LoopEncodeOptions
	Stabilizer ffmpeg.StabilizeOptions
}

// DefaultOptions returns the standard run settings
func DefaultOptions() Options {
	return Options{
		Stabilize:             true,
		Sound:                 true,
		MaxCandidates:         5,
		SampleStride:          loops.DefaultStride,
		MinLoopFrames:         loops.DefaultMinLoopFrames,
		MaxLoopFrames:         loops.DefaultMaxLoopFrames,
		HashSize:              loops.DefaultHashSize,
		SimilarityRatio:       loops.DefaultSimilarityRatio,
		MinMidFrameSimilarity: loops.DefaultMinMidFrameSimilarity,
		MaxSearchSeconds:      loops.DefaultMaxSearchSeconds,
		ThumbnailSize:         160,
		Encode:                ffmpeg.DefaultLoopEncodeOptions(),
		Stabilizer:            ffmpeg.DefaultStabilizeOptions(),
	}
}

// OptionsFromConfig builds run options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.Stabilize = cfg.Stabilize.Enabled
	opts.Sound = cfg.Render.Sound
	opts.MaxCandidates = cfg.Search.MaxCandidates
	opts.SampleStride = cfg.Search.SampleStride
	opts.MinLoopFrames = cfg.Search.MinLoopFrames
	opts.MaxLoopFrames = cfg.Search.MaxLoopFrames
	opts.RetainTempFiles = cfg.Workspace.RetainTempFiles
	opts.HashSize = cfg.Search.HashSize
	opts.SimilarityRatio = cfg.Search.SimilarityRatio
	opts.MinMidFrameSimilarity = cfg.Search.MinMidFrameSimilarity
	opts.MaxSearchSeconds = cfg.Search.MaxSearchSeconds
	opts.DumpFrames = cfg.Workspace.DumpFrames
	opts.ThumbnailSize = cfg.Workspace.ThumbnailSize

	opts.Encode = ffmpeg.LoopEncodeOptions{
		Width:       cfg.Render.Width,
		GIFFPS:      cfg.Render.GIFFPS,
		Sound:       cfg.Render.Sound,
		WebMMinRate: cfg.Render.WebMMinRate,
		WebMBitrate: cfg.Render.WebMBitrate,
		WebMMaxRate: cfg.Render.WebMMaxRate,
		MP4Bitrate:  cfg.Render.MP4Bitrate,
	}
	opts.Stabilizer = ffmpeg.StabilizeOptions{
		Threads:   cfg.Stabilize.Threads,
		StepSize:  cfg.Stabilize.StepSize,
		Shakiness: cfg.Stabilize.Shakiness,
		Accuracy:  cfg.Stabilize.Accuracy,
		Zoom:      cfg.Stabilize.Zoom,
		Smoothing: cfg.Stabilize.Smoothing,
		Unsharp:   cfg.Stabilize.Unsharp,
		Preset:    cfg.Stabilize.Preset,
		Tune:      cfg.Stabilize.Tune,
		CRF:       cfg.Stabilize.CRF,
	}
	return opts
}

func (o Options) searchOptions(frameRate float64) loops.SearchOptions {
	s := loops.DefaultSearchOptions(o.HashSize, frameRate)
	s.Stride = o.SampleStride
	s.MinLoopFrames = o.MinLoopFrames
	s.MaxLoopFrames = o.MaxLoopFrames
	s.SimilarityThreshold = o.SimilarityRatio * float64(s.MaxHashDifference)
	s.MinMidFrameSimilarity = o.MinMidFrameSimilarity
	return s
}
