package tasks

import (
	"fmt"

	"github.com/desertthunder/affmigrate/internal/batch"
	"github.com/desertthunder/affmigrate/internal/progress"
)

// ProgressUpdate represents a progress event during a batch run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase    Phase      // Run phase
	Step     batch.Step // Step just executed, or the next step for PreFetch
	Migrated int64      // Items migrated so far
	Total    int64      // Candidates counted at snapshot time
	Message  string     // Human-readable message for display
	Err      error      // Set on PhaseFailed
}

// Percent returns Migrated/Total in [0, 1].
func (u ProgressUpdate) Percent() float64 {
	rec := progress.Record{TotalCount: u.Total, MigratedCount: u.Migrated, HasTotal: true}
	return rec.Percent()
}

// Run phase enumeration
type Phase int

const (
	PhasePreFetch Phase = iota
	PhaseStep
	PhaseFinish
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePreFetch:
		return "prefetch"
	case PhaseStep:
		return "step"
	case PhaseFinish:
		return "finish"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return ""
	}
}

func preFetchUpdate(start batch.Step, rec progress.Record) ProgressUpdate {
	msg := fmt.Sprintf("Snapshot ready: %d candidates, %d existing affiliates skipped", rec.TotalCount, len(rec.ExcludedIDs))
	if start > 1 {
		msg = fmt.Sprintf("%s; resuming at step %s", msg, start)
	}
	return ProgressUpdate{
		Phase:    PhasePreFetch,
		Step:     start,
		Migrated: rec.MigratedCount,
		Total:    rec.TotalCount,
		Message:  msg,
	}
}

func stepUpdate(step batch.Step, rec progress.Record) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PhaseStep,
		Step:     step,
		Migrated: rec.MigratedCount,
		Total:    rec.TotalCount,
		Message:  fmt.Sprintf("[step %s] %d/%d migrated", step, rec.MigratedCount, rec.TotalCount),
	}
}

func finishUpdate(res *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PhaseFinish,
		Step:     batch.Done,
		Migrated: res.Migrated,
		Total:    res.Total,
		Message:  "Clearing progress...",
	}
}

func doneUpdate(res *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PhaseDone,
		Step:     batch.Done,
		Migrated: res.Migrated,
		Total:    res.Total,
		Message:  fmt.Sprintf("✓ Migrated %d users in %d steps", res.Migrated, res.Steps),
	}
}

func failedUpdate(step batch.Step, rec progress.Record, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PhaseFailed,
		Step:     step,
		Migrated: rec.MigratedCount,
		Total:    rec.TotalCount,
		Message:  fmt.Sprintf("✗ step %s: %v", step, err),
		Err:      err,
	}
}
