package pipeline

import (
	"context"

	"github.com/kikiluvv/loopifi/internal/ffmpeg"
	"github.com/kikiluvv/loopifi/internal/loops"
)

// render encodes the top ranked candidates as GIF, WEBM and MP4. A candidate
// is returned only if all of its encodes succeeded; failed candidates are
// skipped, not replaced by lower ranked ones.
func (p *Pipeline) render(ctx context.Context, r *run, ranked []*loops.CandidateLoop, input string, offset float64) ([]*loops.CandidateLoop, error) {
	k := r.opts.MaxCandidates
	top := ranked
	if len(top) > k {
		top = top[:k]
	}

	r.report(StatusEncoding, progressRenderStart)
	step := float64(progressDone-progressRenderStart) / float64(k)

	enc := r.opts.Encode
	enc.Sound = r.opts.Sound
	palette := r.ws.Palette()

	rendered := make([]*loops.CandidateLoop, 0, len(top))
	for i, c := range top {
		rank := i + 1
		out := &loops.RenderOutputs{
			Rank: rank,
			GIF:  r.ws.Output(rank, "gif"),
			WebM: r.ws.Output(rank, "webm"),
			MP4:  r.ws.Output(rank, "mp4"),
		}
		seg := ffmpeg.LoopSegment{
			Input:    input,
			Start:    offset + c.StartTime(),
			Duration: c.Duration(),
		}

		commands := [][]string{
			ffmpeg.GIFPaletteArgs(seg, palette, enc),
			ffmpeg.GIFEncodeArgs(seg, palette, out.GIF, enc),
			ffmpeg.WebMArgs(seg, out.WebM, enc),
			ffmpeg.MP4Args(seg, out.MP4, enc),
		}

		ok := true
		for _, args := range commands {
			if err := p.runner.Run(ctx, ffmpeg.RunOptions{Args: args, LogHandler: r.ffmpegLog}); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				ok = false
				r.logger.Warn().
					Err(err).
					Int("rank", rank).
					Str("output", args[len(args)-1]).
					Msg("loop encode failed")
			}
		}

		r.report(StatusEncoding, progressRenderStart+step*float64(i+1))

		if !ok {
			continue
		}
		c.Outputs = out
		rendered = append(rendered, c)

		r.logger.Info().
			Int("rank", rank).
			Int("score", c.Score).
			Float64("start", seg.Start).
			Float64("duration", seg.Duration).
			Msg("loop rendered")
	}

	return rendered, nil
}
