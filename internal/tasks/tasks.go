package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/affmigrate/internal/batch"
	"github.com/desertthunder/affmigrate/internal/progress"
	"github.com/desertthunder/affmigrate/internal/shared"
	"golang.org/x/time/rate"
)

// RunOptions configures a single run.
type RunOptions struct {
	Roles          []string   // Roles to migrate; required
	Resume         bool       // Start from the step implied by the stored migrated count
	StartStep      batch.Step // Explicit first step; overrides Resume when > 0
	StepsPerSecond float64    // Step throttle; 0 disables it
	KeepProgress   bool       // Skip Finish so the progress keys survive the run
}

// RunResult summarizes a run.
type RunResult struct {
	RunID     string        // Unique id for log correlation
	BatchID   string        // Process id
	StartStep batch.Step    // First step executed
	Steps     int           // Number of ProcessStep calls, including the final empty page
	Migrated  int64         // Migrated count when the run stopped
	Total     int64         // Candidate total from the snapshot
	Duration  time.Duration // Wall time of the run
}

// BatchRunner executes batch processes against a progress store.
type BatchRunner struct {
	store  progress.Store
	logger *log.Logger
}

// NewBatchRunner creates a BatchRunner. store must be the store the processes write to.
func NewBatchRunner(store progress.Store, logger *log.Logger) *BatchRunner {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &BatchRunner{store: store, logger: logger}
}

// ResumeStep returns the step that follows migrated items in full pages.
func ResumeStep(migrated int64) batch.Step {
	return batch.Step(migrated/batch.PageSize + 1)
}

// sendProgress sends a progress update through the channel without blocking.
func (r *BatchRunner) sendProgress(ch chan<- ProgressUpdate, update ProgressUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- update:
	default:
	}
}

// Run drives proc from its first step to completion.
//
// The result is returned alongside any error, describing the progress made before it.
// Cancellation between steps returns ctx.Err() and keeps the stored progress.
func (r *BatchRunner) Run(ctx context.Context, proc batch.Process, opts RunOptions, ch chan<- ProgressUpdate) (*RunResult, error) {
	cfg := &batch.Config{Roles: opts.Roles}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := proc.Init(cfg); err != nil {
		return nil, err
	}

	tracker := progress.NewTracker(r.store, proc.ID())
	started := time.Now()
	result := &RunResult{RunID: shared.GenerateID(), BatchID: proc.ID()}
	logger := r.logger.With("batch", proc.ID(), "run", result.RunID)

	if !proc.CanProcess(ctx) {
		return nil, fmt.Errorf("%w: cannot run %s", shared.ErrPermissionDenied, proc.ID())
	}

	if err := proc.PreFetch(ctx); err != nil {
		return nil, fmt.Errorf("prefetch failed: %w", err)
	}

	rec, err := tracker.Load(ctx)
	if err != nil {
		return nil, err
	}

	step := batch.Step(1)
	switch {
	case opts.StartStep > 0:
		step = opts.StartStep
	case opts.Resume:
		step = ResumeStep(rec.MigratedCount)
	}
	result.StartStep = step
	result.Migrated, result.Total = rec.MigratedCount, rec.TotalCount

	logger.Info("starting run", "step", step, "total", rec.TotalCount, "migrated", rec.MigratedCount)
	r.sendProgress(ch, preFetchUpdate(step, rec))

	var limiter *rate.Limiter
	if opts.StepsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.StepsPerSecond), 1)
	}

	for !step.IsDone() {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(started)
			logger.Warn("run cancelled", "step", step, "migrated", result.Migrated)
			return result, err
		}

		if !proc.CanProcess(ctx) {
			result.Duration = time.Since(started)
			return result, fmt.Errorf("%w: cannot run %s", shared.ErrPermissionDenied, proc.ID())
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				result.Duration = time.Since(started)
				return result, err
			}
		}

		next, stepErr := proc.ProcessStep(ctx, step)
		result.Steps++

		rec, err = tracker.Load(ctx)
		if err != nil {
			logger.Warn("failed to read progress", "error", err)
		} else {
			result.Migrated, result.Total = rec.MigratedCount, rec.TotalCount
		}

		if stepErr != nil {
			result.Duration = time.Since(started)
			logger.Error("step failed", "step", step, "error", stepErr)
			r.sendProgress(ch, failedUpdate(step, rec, stepErr))
			return result, fmt.Errorf("step %s: %w", step, stepErr)
		}

		r.sendProgress(ch, stepUpdate(step, rec))
		logger.Debug("step complete", "step", step, "next", next, "migrated", result.Migrated)
		step = next
	}

	if !opts.KeepProgress {
		r.sendProgress(ch, finishUpdate(result))
		if err := proc.Finish(ctx); err != nil {
			result.Duration = time.Since(started)
			return result, fmt.Errorf("finish failed: %w", err)
		}
	}

	result.Duration = time.Since(started)
	logger.Info("run complete", "steps", result.Steps, "migrated", result.Migrated, "duration", result.Duration)
	r.sendProgress(ch, doneUpdate(result))
	return result, nil
}
