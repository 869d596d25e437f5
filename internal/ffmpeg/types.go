package ffmpeg

import (
	"io"
	"time"
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath   string
	Duration   time.Duration
	Width      int
	Height     int
	FPS        float64
	FrameCount int
	VideoCodec string
	HasAudio   bool
	AudioCodec string
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler ProgressFunc
	LogHandler      func(line string)

	// Stdout, when set, consumes the raw stdout stream instead of the
	// line-based LogHandler. Returning an error stops the process.
	Stdout func(r io.Reader) error
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)

// Options configures the executor binaries.
type Options struct {
	BinaryPath string
	ProbePath  string
	Threads    int
}

// Default encoding settings shared by the loop encoders and the stabilizer.
const (
	DefaultLoopWidth   = 500
	DefaultGIFFPS      = 25
	DefaultWebMMinRate = "1700k"
	DefaultWebMBitrate = "1800K"
	DefaultWebMMaxRate = "2000K"
	DefaultMP4Bitrate  = "1800K"
	DefaultWebMCodec   = "libvpx"
	DefaultVideoCodec  = "libx264"

	DefaultStabilizeThreads = 8
	DefaultStabilizePreset  = "fast"
	DefaultStabilizeTune    = "film"
	DefaultStabilizeCRF     = 17
)
