package pipeline

import (
	"context"

	"github.com/kikiluvv/loopifi/internal/ffmpeg"
	"github.com/kikiluvv/loopifi/internal/loops"
	"github.com/kikiluvv/loopifi/pkg/util"
)

// stabilize renders a stabilized copy of iv to the workspace. Encoder
// failures fall back to the unstabilized source; only cancellation is returned
// as an error.
func (p *Pipeline) stabilize(ctx context.Context, r *run, iv loops.Interval) (bool, error) {
	r.report(StatusStabilizing, progressStabilizeStart)
	defer r.report(StatusStabilizing, progressStabilizeEnd)

	detect := ffmpeg.DetectMotionArgs(r.ws.Source, r.ws.VectorFile, r.opts.Stabilizer)
	if err := p.runner.Run(ctx, ffmpeg.RunOptions{
		Args:            detect,
		LogHandler:      r.ffmpegLog,
		ProgressHandler: r.passProgress(StatusStabilizing, progressStabilizeStart, progressStabilizeMid, r.sourceFrames),
	}); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		r.logger.Warn().Err(err).Msg("motion analysis failed, using unstabilized source")
		return false, nil
	}
	r.report(StatusStabilizing, progressStabilizeMid)

	transform := ffmpeg.TransformArgs(r.ws.Source, r.ws.VectorFile, r.ws.StablePath, iv.Start, iv.Length(), r.opts.Stabilizer)
	if err := p.runner.Run(ctx, ffmpeg.RunOptions{
		Args:            transform,
		LogHandler:      r.ffmpegLog,
		ProgressHandler: r.passProgress(StatusStabilizing, progressStabilizeMid, progressStabilizeEnd, r.intervalFrames),
	}); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		r.logger.Warn().Err(err).Msg("stabilization failed, using unstabilized source")
		return false, nil
	}

	if !util.FileExists(r.ws.StablePath) {
		r.logger.Warn().Str("path", r.ws.StablePath).Msg("stabilized copy missing, using unstabilized source")
		return false, nil
	}

	r.logger.Info().Str("path", r.ws.StablePath).Msg("video stabilized")
	return true, nil
}
