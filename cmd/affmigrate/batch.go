package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/affmigrate/internal/batch"
	"github.com/desertthunder/affmigrate/internal/formatter"
	"github.com/desertthunder/affmigrate/internal/progress"
	"github.com/desertthunder/affmigrate/internal/shared"
	"github.com/desertthunder/affmigrate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// BatchPreFetch takes the exclusion snapshot and candidate count for the batch.
func (r *Runner) BatchPreFetch(ctx context.Context, cmd *cli.Command) error {
	ctx, proc, err := r.authorizedProcess(ctx, cmd)
	if err != nil {
		return err
	}

	if err := proc.PreFetch(ctx); err != nil {
		return fmt.Errorf("prefetch failed: %w", err)
	}

	rec, err := r.record(ctx, proc.ID())
	if err != nil {
		return err
	}
	return r.writePlain("✓ Snapshot taken: %d candidates, %d existing affiliates excluded\n", rec.TotalCount, len(rec.ExcludedIDs))
}

// BatchStep processes one step. Step 1 takes the snapshot first and the step that
// reports done also clears progress.
func (r *Runner) BatchStep(ctx context.Context, cmd *cli.Command) error {
	step, err := batch.ParseStep(cmd.String("step"))
	if err != nil {
		return fmt.Errorf("%w: --step: %v", shared.ErrInvalidFlag, err)
	}

	ctx, proc, err := r.authorizedProcess(ctx, cmd)
	if err != nil {
		return err
	}

	if step == 1 {
		if err := proc.PreFetch(ctx); err != nil {
			return fmt.Errorf("prefetch failed: %w", err)
		}
	}

	next, err := proc.ProcessStep(ctx, step)
	if err != nil {
		return fmt.Errorf("step %s: %w", step, err)
	}

	rec, err := r.record(ctx, proc.ID())
	if err != nil {
		return err
	}

	if next.IsDone() && step != batch.Done {
		if err := proc.Finish(ctx); err != nil {
			return fmt.Errorf("finish failed: %w", err)
		}
		r.logger.Info("batch finished", "batch", proc.ID(), "migrated", rec.MigratedCount)
	}

	return r.writePlain("Step %s: %d/%d migrated, next step %s\n", step, rec.MigratedCount, rec.TotalCount, next)
}

// BatchFinish clears the stored progress for the batch.
func (r *Runner) BatchFinish(ctx context.Context, cmd *cli.Command) error {
	ctx, proc, err := r.authorizedProcess(ctx, cmd)
	if err != nil {
		return err
	}

	if err := proc.Finish(ctx); err != nil {
		return fmt.Errorf("finish failed: %w", err)
	}
	return r.writePlain("✓ Progress cleared for %s\n", proc.ID())
}

// BatchStatus renders the stored progress without touching it.
func (r *Runner) BatchStatus(ctx context.Context, cmd *cli.Command) error {
	deps, err := r.deps(ctx)
	if err != nil {
		return err
	}

	id := cmd.String("batch")
	if _, err := r.registry.New(id, deps); err != nil {
		return err
	}

	rec, err := r.record(ctx, id)
	if err != nil {
		return err
	}

	report := formatter.NewStatusReport(id, r.roles(cmd), rec, tasks.ResumeStep(rec.MigratedCount).String())

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteReport(path, report); err != nil {
			return err
		}
		return r.writePlain("✓ Report written to %s\n", path)
	}
	return formatter.Render(r.output, cmd.String("format"), report)
}

// BatchRun runs the batch to completion, printing each progress update.
func (r *Runner) BatchRun(ctx context.Context, cmd *cli.Command) error {
	ctx, proc, err := r.process(ctx, cmd)
	if err != nil {
		return err
	}

	store, err := r.progressStore(ctx)
	if err != nil {
		return err
	}

	updates := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range updates {
			r.writePlain("[%s] %s\n", u.Phase, u.Message)
		}
	}()

	result, err := tasks.NewBatchRunner(store, r.logger).Run(ctx, proc, r.runOptions(proc, cmd), updates)
	close(updates)
	wg.Wait()

	if err != nil {
		return err
	}

	return r.writePlain("✓ %s complete: %d/%d migrated in %d steps (%s)\n",
		result.BatchID, result.Migrated, result.Total, result.Steps, result.Duration.Round(time.Millisecond))
}

func (r *Runner) runOptions(proc batch.Process, cmd *cli.Command) tasks.RunOptions {
	opts := tasks.RunOptions{
		Roles:          r.roles(cmd),
		Resume:         cmd.Bool("resume"),
		StartStep:      batch.Step(cmd.Int("start-step")),
		StepsPerSecond: cmd.Float("rate"),
		KeepProgress:   cmd.Bool("keep-progress"),
	}
	if opts.StepsPerSecond < 0 {
		opts.StepsPerSecond = r.config.Job.StepsPerSecond
	}
	r.logger.Debug("run options", "batch", proc.ID(), "roles", opts.Roles, "resume", opts.Resume, "start", opts.StartStep)
	return opts
}

func (r *Runner) authorizedProcess(ctx context.Context, cmd *cli.Command) (context.Context, batch.Process, error) {
	ctx, proc, err := r.process(ctx, cmd)
	if err != nil {
		return ctx, nil, err
	}
	if !proc.CanProcess(ctx) {
		return ctx, nil, fmt.Errorf("%w: %q cannot run %s", shared.ErrPermissionDenied, r.principal(cmd), proc.ID())
	}
	return ctx, proc, nil
}

func (r *Runner) record(ctx context.Context, batchID string) (progress.Record, error) {
	store, err := r.progressStore(ctx)
	if err != nil {
		return progress.Record{}, err
	}
	return progress.NewTracker(store, batchID).Load(ctx)
}
