package ui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/affmigrate/internal/batch"
	"github.com/desertthunder/affmigrate/internal/models"
	"github.com/desertthunder/affmigrate/internal/shared"
	"github.com/desertthunder/affmigrate/internal/tasks"
	tu "github.com/desertthunder/affmigrate/internal/testing"
)

var testRoles = []models.RoleCount{
	{Role: "customer", Users: 4},
	{Role: "subscriber", Users: 250},
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, users int, auth batch.Authorizer, opts tasks.RunOptions) (*Model, *tu.FakeAffiliates) {
	t.Helper()

	directory := tu.NewFakeDirectory()
	directory.SeedUsers(users, "subscriber")
	affiliates := &tu.FakeAffiliates{}
	store := tu.NewRecordingStore()

	proc := batch.NewMigrateUsers(batch.Deps{
		Directory:  directory,
		Affiliates: affiliates,
		Store:      store,
		Auth:       auth,
	})
	runner := tasks.NewBatchRunner(store, shared.NewLogger(io.Discard))
	return NewModel(context.Background(), runner, proc, testRoles, opts), affiliates
}

// drive feeds cmd results back into the model until no command remains.
func drive(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 1000 {
			t.Fatal("model did not settle")
		}
		_, cmd = m.Update(cmd())
	}
}

func TestModel(t *testing.T) {
	t.Run("preselects configured roles", func(t *testing.T) {
		m, _ := newTestModel(t, 0, tu.Allow, tasks.RunOptions{Roles: []string{"subscriber"}})

		got := m.SelectedRoles()
		if len(got) != 1 || got[0] != "subscriber" {
			t.Errorf("expected [subscriber], got %v", got)
		}
		if !strings.Contains(m.View(), "[x] subscriber") {
			t.Errorf("expected subscriber to render as selected:\n%s", m.View())
		}
	})

	t.Run("toggle selects the highlighted role", func(t *testing.T) {
		m, _ := newTestModel(t, 0, tu.Allow, tasks.RunOptions{})

		m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
		if got := m.SelectedRoles(); len(got) != 1 || got[0] != "customer" {
			t.Fatalf("expected [customer], got %v", got)
		}

		m.Update(runes("x"))
		if got := m.SelectedRoles(); len(got) != 0 {
			t.Errorf("expected toggle to clear selection, got %v", got)
		}
	})

	t.Run("enter requires a role", func(t *testing.T) {
		m, _ := newTestModel(t, 0, tu.Allow, tasks.RunOptions{})

		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != RoleListView {
			t.Errorf("expected to stay on role list, got view %d", m.view)
		}
		if !strings.Contains(m.View(), "Select at least one role") {
			t.Error("expected a warning when no role is selected")
		}
	})

	t.Run("confirm and back", func(t *testing.T) {
		m, _ := newTestModel(t, 0, tu.Allow, tasks.RunOptions{Roles: []string{"subscriber"}})

		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != ConfirmView {
			t.Fatalf("expected confirm view, got %d", m.view)
		}
		if view := m.View(); !strings.Contains(view, batch.MigrateUsersID) || !strings.Contains(view, "subscriber") {
			t.Errorf("confirm view missing batch or roles:\n%s", view)
		}

		m.Update(runes("n"))
		if m.view != RoleListView {
			t.Errorf("expected n to return to role list, got %d", m.view)
		}
	})

	t.Run("quit from role list", func(t *testing.T) {
		m, _ := newTestModel(t, 0, tu.Allow, tasks.RunOptions{})

		_, cmd := m.Update(runes("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})

	t.Run("runs batch to completion", func(t *testing.T) {
		m, affiliates := newTestModel(t, 250, tu.Allow, tasks.RunOptions{Roles: []string{"subscriber"}})

		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		_, cmd := m.Update(runes("y"))
		if m.view != RunningView {
			t.Fatalf("expected running view, got %d", m.view)
		}
		drive(t, m, cmd)

		if m.view != ResultView {
			t.Fatalf("expected result view, got %d", m.view)
		}
		result, err := m.Result()
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
		if result.Migrated != 250 || result.Total != 250 {
			t.Errorf("expected 250/250 migrated, got %d/%d", result.Migrated, result.Total)
		}
		if len(affiliates.Inserted) != 250 {
			t.Errorf("expected 250 affiliates, got %d", len(affiliates.Inserted))
		}
		if !strings.Contains(m.View(), "Migrated: 250 of 250") {
			t.Errorf("result view missing counts:\n%s", m.View())
		}

		m.Update(runes("r"))
		if m.view != RoleListView {
			t.Errorf("expected r to restart at role list, got %d", m.view)
		}
		if res, _ := m.Result(); res != nil {
			t.Error("expected restart to clear the result")
		}
	})

	t.Run("denied run shows error", func(t *testing.T) {
		m, affiliates := newTestModel(t, 10, tu.Deny, tasks.RunOptions{Roles: []string{"subscriber"}})

		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		_, cmd := m.Update(runes("y"))
		drive(t, m, cmd)

		if _, err := m.Result(); !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("expected permission error, got %v", err)
		}
		if !strings.Contains(m.View(), "Run failed") {
			t.Errorf("expected failure view:\n%s", m.View())
		}
		if len(affiliates.Inserted) != 0 {
			t.Errorf("expected no inserts, got %d", len(affiliates.Inserted))
		}
	})

	t.Run("progress update renders step", func(t *testing.T) {
		m, _ := newTestModel(t, 0, tu.Allow, tasks.RunOptions{Roles: []string{"subscriber"}})
		m.view = RunningView

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{
			Phase:    tasks.PhaseStep,
			Step:     3,
			Migrated: 200,
			Total:    250,
			Message:  "page converted",
		}))

		view := m.View()
		if !strings.Contains(view, "Step 3: 200/250 migrated") {
			t.Errorf("expected step line in view:\n%s", view)
		}
		if !strings.Contains(view, "80%") {
			t.Errorf("expected progress bar at 80%%:\n%s", view)
		}
	})

	t.Run("window resize", func(t *testing.T) {
		m, _ := newTestModel(t, 0, tu.Allow, tasks.RunOptions{})

		m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
		if m.bar.Width != 92 {
			t.Errorf("expected bar width 92, got %d", m.bar.Width)
		}
	})
}
