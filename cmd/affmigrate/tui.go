package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/affmigrate/internal/repositories"
	"github.com/desertthunder/affmigrate/internal/shared"
	"github.com/desertthunder/affmigrate/internal/tasks"
	"github.com/desertthunder/affmigrate/internal/ui"
	"github.com/urfave/cli/v3"
)

// BatchTUI launches the interactive terminal UI for a batch run.
func (r *Runner) BatchTUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = "./tmp/affmigrate-tui.log"
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	ctx, proc, err := r.process(ctx, cmd)
	if err != nil {
		return err
	}

	store, err := r.progressStore(ctx)
	if err != nil {
		return err
	}

	roles, err := repositories.NewUserRepository(r.db).RoleCounts(ctx)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, tasks.NewBatchRunner(store, r.logger), proc, roles, r.runOptions(proc, cmd))
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if result, err := model.Result(); err != nil {
		return err
	} else if result != nil {
		return r.writePlain("✓ %s complete: %d/%d migrated\n", result.BatchID, result.Migrated, result.Total)
	}
	return nil
}
