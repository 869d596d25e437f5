package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/loopifi/internal/config"
	"github.com/kikiluvv/loopifi/internal/ffmpeg"
	"github.com/kikiluvv/loopifi/internal/loops"
)

// Pipeline finds and renders loops in a source video
type Pipeline struct {
	logger zerolog.Logger
	runner Runner
	prober Prober
	frames FrameReader
}

// Deps are the external collaborators of a pipeline
type Deps struct {
	Runner Runner
	Prober Prober
	Frames FrameReader
}

// New creates a pipeline backed by the ffmpeg binaries named in appCfg
func New(logger zerolog.Logger, appCfg *config.Config) (*Pipeline, error) {
	exec, err := ffmpeg.New(logger, ffmpeg.Options{
		BinaryPath: appCfg.FFmpeg.BinaryPath,
		ProbePath:  appCfg.FFmpeg.ProbePath,
		Threads:    appCfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	return NewWithDeps(logger, Deps{
		Runner: exec,
		Prober: exec,
		Frames: ffmpeg.NewFrameDecoder(exec, appCfg.FFmpeg.DecodeWidth),
	}), nil
}

// NewWithDeps creates a pipeline from explicit collaborators
func NewWithDeps(logger zerolog.Logger, deps Deps) *Pipeline {
	return &Pipeline{
		logger: logger.With().Str("component", "pipeline").Logger(),
		runner: deps.Runner,
		prober: deps.Prober,
		frames: deps.Frames,
	}
}

// run carries the per-invocation state
type run struct {
	logger   zerolog.Logger
	opts     Options
	ws       *Workspace
	state    State
	progress ProgressFunc
	percent  float64

	// frame counts of the whole source and of the searched interval
	sourceFrames   int
	intervalFrames int
}

func (r *run) enter(s State) {
	r.state = s
	r.logger.Debug().Stringer("state", s).Msg("entering stage")
}

func (r *run) fail(err error) error {
	failed := r.state
	r.enter(StateFailed)
	return &PipelineError{State: failed, Err: err}
}

// report forwards progress, never letting the percentage move backwards.
func (r *run) report(status string, percent float64) {
	if percent < r.percent {
		percent = r.percent
	}
	r.percent = percent
	if r.progress != nil {
		r.progress(status, percent)
	}
}

// passProgress maps ffmpeg's frame counter onto [from, to] of the run's
// progress, with total as the frame count of a finished pass.
func (r *run) passProgress(status string, from, to float64, total int) ffmpeg.ProgressFunc {
	return func(p *ffmpeg.Progress) {
		if total <= 0 {
			return
		}
		frac := math.Min(float64(p.Frame)/float64(total), 1)
		r.report(status, from+(to-from)*frac)
	}
}

func (r *run) ffmpegLog(line string) {
	r.logger.Debug().Str("ffmpeg", line).Msg("ffmpeg output")
}

// Run searches iv of source for loops and renders the best ones.
//
// Validation failures return an error wrapping loops.ErrInvalidInterval and
// happen before any subprocess runs. Probe failures return *ffmpeg.ProbeError.
// Anything that fails afterwards is a *PipelineError. Temporary files are
// removed on every path unless opts.RetainTempFiles is set.
func (p *Pipeline) Run(ctx context.Context, source string, iv loops.Interval, opts Options, onProgress ProgressFunc) ([]loops.LoopRecord, error) {
	r := &run{
		logger:   p.logger.With().Str("source", filepath.Base(source)).Logger(),
		opts:     opts,
		progress: onProgress,
	}
	r.enter(StateValidating)

	if source == "" {
		return nil, fmt.Errorf("source path cannot be empty")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	hasher, err := loops.NewPerceptualHasher(opts.HashSize)
	if err != nil {
		return nil, err
	}
	if err := iv.Check(opts.MaxSearchSeconds); err != nil {
		return nil, err
	}

	duration, err := p.prober.ProbeDuration(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := iv.CheckAgainst(duration); err != nil {
		return nil, err
	}
	fps, err := p.prober.ProbeFrameRate(ctx, source)
	if err != nil {
		return nil, err
	}

	// stream metadata only sharpens progress estimates
	info, err := p.prober.ProbeVideo(ctx, source)
	if err != nil {
		r.logger.Debug().Err(err).Msg("stream metadata unavailable")
	}
	r.sourceFrames, r.intervalFrames = frameCounts(info, iv, duration, fps)

	event := p.logger.Info().
		Str("source", source).
		Float64("start", iv.Start).
		Float64("end", iv.End).
		Float64("duration", duration).
		Float64("fps", fps).
		Int("frames", r.sourceFrames)
	if info != nil {
		event = event.
			Str("size", fmt.Sprintf("%dx%d", info.Width, info.Height)).
			Str("video_codec", info.VideoCodec).
			Bool("has_audio", info.HasAudio)
		if info.HasAudio {
			event = event.Str("audio_codec", info.AudioCodec)
		}
	}
	event.Msg("starting loop pipeline")

	r.ws = NewWorkspace(source)
	if err := r.ws.Prepare(); err != nil {
		return nil, r.fail(err)
	}

	cleaned := false
	cleanup := func() {
		if cleaned {
			return
		}
		cleaned = true
		p.cleanup(r)
	}
	defer cleanup()

	records, err := p.process(ctx, r, hasher, iv, fps)
	cleanup()
	if err != nil {
		return nil, err
	}

	r.enter(StateDone)
	r.report(StatusDone, progressDone)

	p.logger.Info().
		Str("source", source).
		Int("loops", len(records)).
		Msg("loop pipeline complete")

	return records, nil
}

func (p *Pipeline) process(ctx context.Context, r *run, hasher loops.Hasher, iv loops.Interval, fps float64) ([]loops.LoopRecord, error) {
	// Stage 1: optional stabilization
	req := ffmpeg.DecodeRequest{Path: r.ws.Source, Trim: true, Start: iv.Start, Length: iv.Length()}
	encodeOffset := iv.Start
	if r.opts.Stabilize {
		r.enter(StateStabilizing)
		stabilized, err := p.stabilize(ctx, r, iv)
		if err != nil {
			return nil, r.fail(err)
		}
		if stabilized {
			// the stabilized copy already starts at iv.Start
			req = ffmpeg.DecodeRequest{Path: r.ws.StablePath}
			encodeOffset = 0
		}
	}

	// Stage 2: frame digests
	r.enter(StateExtracting)
	r.report(StatusPreparing, progressExtractStart)

	extractor := loops.NewExtractor(r.logger, hasher, r.opts.SampleStride, r.intervalFrames)
	if r.opts.DumpFrames {
		extractor.OnSample(func(frame int, img image.Image) error {
			return r.ws.DumpFrame(frame, img, r.opts.ThumbnailSize)
		})
	}
	if err := p.frames.ReadFrames(ctx, req, extractor.Visit); err != nil {
		return nil, r.fail(fmt.Errorf("failed to extract frames: %w", err))
	}

	r.logger.Info().
		Int("frames", extractor.Frames()).
		Int("sampled", extractor.Index().Len()).
		Msg("frame digests extracted")
	r.report(StatusPreparing, progressSearchStart)

	// Stage 3: candidate search
	r.enter(StateSearching)
	r.report(StatusSearching, progressSearchStart)

	searchOpts := r.opts.searchOptions(fps)
	ranked, err := loops.Search(extractor.Index(), searchOpts)
	if err != nil {
		return nil, r.fail(err)
	}

	r.logger.Info().Int("candidates", len(ranked)).Msg("loop search complete")
	r.report(StatusSearching, progressRenderStart)

	// Stage 4: render
	r.enter(StateRendering)
	rendered, err := p.render(ctx, r, ranked, req.Path, encodeOffset)
	if err != nil {
		return nil, r.fail(err)
	}

	records := make([]loops.LoopRecord, 0, len(rendered))
	for _, c := range rendered {
		rec, err := loops.NewLoopRecord(c, searchOpts.MaxHashDifference, iv.Start)
		if err != nil {
			return nil, r.fail(err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// frameCounts returns the frame count of the source and of iv. ffprobe's
// nb_frames wins when the container reports it; otherwise both are derived
// from duration and frame rate.
func frameCounts(info *ffmpeg.VideoInfo, iv loops.Interval, duration, fps float64) (source, interval int) {
	source = int(math.Round(duration * fps))
	if info != nil && info.FrameCount > 0 {
		source = info.FrameCount
	}

	interval = int(math.Round(iv.Length() * fps))
	remaining := source - int(math.Round(iv.Start*fps))
	if remaining < 0 {
		remaining = 0
	}
	return source, min(interval, remaining)
}

func (p *Pipeline) cleanup(r *run) {
	r.enter(StateCleaningUp)

	if r.opts.RetainTempFiles {
		r.logger.Info().
			Str("frames", r.ws.FramesDir).
			Msg("retaining temporary files")
		return
	}
	if err := r.ws.Cleanup(); err != nil {
		r.logger.Warn().Err(err).Msg("failed to remove temporary files")
	}
}

func (o Options) validate() error {
	var errs []error
	if o.MaxCandidates <= 0 {
		errs = append(errs, fmt.Errorf("max candidates must be positive"))
	}
	if o.SampleStride <= 0 {
		errs = append(errs, fmt.Errorf("sample stride must be positive"))
	}
	if o.MinLoopFrames < 0 || o.MaxLoopFrames < o.MinLoopFrames {
		errs = append(errs, fmt.Errorf("loop frame window [%d, %d] is invalid", o.MinLoopFrames, o.MaxLoopFrames))
	}
	if o.DumpFrames && o.ThumbnailSize == 0 {
		errs = append(errs, fmt.Errorf("thumbnail size must be positive when dumping frames"))
	}
	return errors.Join(errs...)
}
