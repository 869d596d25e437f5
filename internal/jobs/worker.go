package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/loopifi/internal/loops"
	"github.com/kikiluvv/loopifi/internal/pipeline"
)

// LoopFinder runs the loop pipeline for one source
type LoopFinder interface {
	Run(ctx context.Context, source string, iv loops.Interval, opts pipeline.Options, onProgress pipeline.ProgressFunc) ([]loops.LoopRecord, error)
}

// Worker executes jobs and mirrors their progress into the store
type Worker struct {
	logger zerolog.Logger
	store  *Store
	finder LoopFinder
}

// NewWorker creates a worker
func NewWorker(logger zerolog.Logger, store *Store, finder LoopFinder) *Worker {
	return &Worker{
		logger: logger.With().Str("component", "jobs").Logger(),
		store:  store,
		finder: finder,
	}
}

// Process runs job to completion. The job row ends up done, and failed
// when the pipeline returned an error, regardless of how the run ends.
func (w *Worker) Process(ctx context.Context, job *Job, opts pipeline.Options) ([]loops.LoopRecord, error) {
	logger := w.logger.With().Str("job_id", job.ID).Logger()
	// status writes must land even when ctx is cancelled mid-run
	persistCtx := context.WithoutCancel(ctx)

	opts.Sound = job.Sound
	opts.Stabilize = job.Stabilize

	if err := w.store.UpdateProgress(persistCtx, job.ID, StatusLoopifying, 0); err != nil {
		return nil, fmt.Errorf("failed to start job: %w", err)
	}
	logger.Info().Str("source", job.SourcePath).Msg("job started")

	records, runErr := w.finder.Run(ctx, job.SourcePath, job.Interval(), opts, func(status string, percent float64) {
		if err := w.store.UpdateProgress(persistCtx, job.ID, status, percent); err != nil {
			logger.Warn().Err(err).Str("status", status).Msg("failed to record progress")
		}
	})

	if runErr != nil {
		logger.Error().Err(runErr).Msg("job failed")
		if err := w.store.Fail(persistCtx, job.ID, runErr); err != nil {
			logger.Warn().Err(err).Msg("failed to mark job failed")
		}
		return nil, runErr
	}

	if err := w.store.Complete(persistCtx, job.ID, records); err != nil {
		return nil, fmt.Errorf("failed to store loops: %w", err)
	}

	logger.Info().Int("loops", len(records)).Msg("job complete")
	return records, nil
}
