package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/affmigrate/internal/batch"
	"github.com/desertthunder/affmigrate/internal/models"
	"github.com/desertthunder/affmigrate/internal/tasks"
)

const (
	defaultWidth  = 60
	defaultHeight = 16
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RoleListView ViewState = iota
	ConfirmView
	RunningView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	runner       *tasks.BatchRunner
	proc         batch.Process
	opts         tasks.RunOptions
	roleList     list.Model
	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	doneChan     chan runOutcome
	progress     tasks.ProgressUpdate
	result       *tasks.RunResult
	err          error
	warning      string
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI model that runs proc through runner.
//
// roles lists the roles offered for selection; the ones named in opts.Roles start selected.
func NewModel(ctx context.Context, runner *tasks.BatchRunner, proc batch.Process, roles []models.RoleCount, opts tasks.RunOptions) *Model {
	return &Model{
		ctx:      ctx,
		view:     RoleListView,
		runner:   runner,
		proc:     proc,
		opts:     opts,
		roleList: newRoleList(roles, opts.Roles),
		bar:      newProgressBar(defaultWidth - 4),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init implements [tea.Model]; nothing is fetched up front.
func (m *Model) Init() tea.Cmd {
	return nil
}

// SelectedRoles returns the roles currently checked in the role list, in list order.
func (m *Model) SelectedRoles() []string {
	var roles []string
	for _, it := range m.roleList.Items() {
		if ri, ok := it.(roleItem); ok && ri.selected {
			roles = append(roles, ri.role.Role)
		}
	}
	return roles
}

// Result returns the last run result and error, if a run has completed.
func (m *Model) Result() (*tasks.RunResult, error) {
	return m.result, m.err
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.roleList.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case RoleListView:
			return m.handleRoleListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RunningView:
			return m.handleRunningKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.progress = msg.data.(tasks.ProgressUpdate)
			return m, m.waitForProgress()
		case MsgRunComplete:
			outcome := msg.data.(runOutcome)
			m.result = outcome.result
			m.err = outcome.err
			m.view = ResultView
			m.progressChan = nil
			m.doneChan = nil
			if m.cancel != nil {
				m.cancel()
				m.cancel = nil
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RoleListView:
		return m.renderRoleList()
	case ConfirmView:
		return m.renderConfirm()
	case RunningView:
		return m.renderRunning()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleRoleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		idx := m.roleList.Index()
		if ri, ok := m.roleList.SelectedItem().(roleItem); ok {
			ri.selected = !ri.selected
			m.warning = ""
			return m, m.roleList.SetItem(idx, ri)
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if len(m.SelectedRoles()) == 0 {
			m.warning = "Select at least one role"
			return m, nil
		}
		m.warning = ""
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.roleList, cmd = m.roleList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.no):
		m.view = RoleListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = RunningView
		return m, m.startRun()
	}
	return m, nil
}

// handleRunningKeys cancels the run on quit; the view changes once the runner reports back.
func (m *Model) handleRunningKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) && m.cancel != nil {
		m.cancel()
		m.progress.Message = "Stopping after the current step..."
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = RoleListView
		m.progress = tasks.ProgressUpdate{}
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) startRun() tea.Cmd {
	opts := m.opts
	opts.Roles = m.SelectedRoles()

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progress = tasks.ProgressUpdate{Message: "Starting..."}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan runOutcome, 1)

	progressChan, doneChan := m.progressChan, m.doneChan
	go func() {
		result, err := m.runner.Run(ctx, m.proc, opts, progressChan)
		doneChan <- runOutcome{result, err}
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, doneChan := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progressChan == nil {
			return runCompleteMsg(nil, nil)
		}

		update, ok := <-progressChan
		if !ok {
			outcome := <-doneChan
			return runCompleteMsg(outcome.result, outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) helpView() string {
	return m.help.ShortHelpView(m.keys.helpFor(m.view))
}

func (m *Model) renderRoleList() string {
	out := m.roleList.View()
	if m.warning != "" {
		out += "\n" + styles.warn.Render(m.warning)
	}
	return fmt.Sprintf("%s\n\n%s", out, m.helpView())
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Run %s?", m.proc.ID()))
	info := fmt.Sprintf("\nConvert users with roles: %s\n", styles.selected.Render(strings.Join(m.SelectedRoles(), ", ")))
	switch {
	case m.opts.StartStep > 0:
		info += fmt.Sprintf("Starting at step %s\n", m.opts.StartStep)
	case m.opts.Resume:
		info += "Resuming from stored progress\n"
	}

	return fmt.Sprintf("%s\n%s\n%s", title, info, m.helpView())
}

func (m *Model) renderRunning() string {
	title := styles.title.Render(fmt.Sprintf("Running %s", m.proc.ID()))

	var phase string
	switch m.progress.Phase {
	case tasks.PhasePreFetch:
		phase = "Snapshotting candidates..."
	case tasks.PhaseStep:
		phase = fmt.Sprintf("Step %s: %d/%d migrated", m.progress.Step, m.progress.Migrated, m.progress.Total)
	case tasks.PhaseFinish:
		phase = "Clearing progress..."
	case tasks.PhaseFailed:
		phase = styles.err.Render("Step failed")
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s\n\n%s", title, m.bar.ViewAs(m.progress.Percent()), phase, styles.help.Render(m.progress.Message), m.helpView())
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Run failed: %v\n\nPress r to restart, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to restart, q to quit")
	}

	title := styles.ok.Render("✓ Migration Complete!")
	info := fmt.Sprintf(
		"\nMigrated: %d of %d users\nSteps: %d (started at %s)\nDuration: %s\nRun: %s",
		m.result.Migrated,
		m.result.Total,
		m.result.Steps,
		m.result.StartStep,
		m.result.Duration.Round(time.Millisecond),
		m.result.RunID,
	)

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, m.helpView())
}
