package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/orchestrator"
	"github.com/nhle/cyclic-tasks/internal/tasks"
)

// opTimeout bounds every store round trip started from the UI.
const opTimeout = 15 * time.Second

// pushCheckDelay is how long after the first load the reminder check runs.
const pushCheckDelay = 3 * time.Second

// cycleLoadedMsg carries the result of a reset or reminder pass.
type cycleLoadedMsg struct {
	report orchestrator.Report
	notify bool
	err    error
}

// pushCheckMsg asks for a pass with reminders enabled.
type pushCheckMsg struct{}

// changeDoneMsg carries the outcome of a value change.
type changeDoneMsg struct {
	result tasks.ChangeResult
	err    error
}

// mutationDoneMsg reports a create, edit, or delete.
type mutationDoneMsg struct {
	status string
	err    error
}

// draftParsedMsg carries a task draft parsed from free text.
type draftParsedMsg struct {
	draft model.TaskDraft
	err   error
}

// runCycle runs one pass over the user's collection. Without notify it
// only resets finished cycles.
func (m Model) runCycle(notify bool) tea.Cmd {
	runner, userID := m.runner, m.userID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		rep, err := runner.RunUser(ctx, userID, orchestrator.Options{Notify: notify})
		return cycleLoadedMsg{report: rep, notify: notify, err: err}
	}
}

func schedulePushCheck() tea.Cmd {
	return tea.Tick(pushCheckDelay, func(time.Time) tea.Msg {
		return pushCheckMsg{}
	})
}

// contribute adds delta to a counted task.
func (m Model) contribute(id string, delta float64) tea.Cmd {
	svc, userID := m.tasks, m.userID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		res, err := svc.Contribute(ctx, userID, id, delta)
		return changeDoneMsg{result: res, err: err}
	}
}

// setValue sets a task's value outright, used for done/not-done toggles.
func (m Model) setValue(id string, value float64) tea.Cmd {
	svc, userID := m.tasks, m.userID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		res, err := svc.SetValue(ctx, userID, id, value)
		return changeDoneMsg{result: res, err: err}
	}
}

func (m Model) saveDraft(id string, draft model.TaskDraft) tea.Cmd {
	svc, userID := m.tasks, m.userID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		if id == "" {
			t, err := svc.Create(ctx, userID, draft)
			return mutationDoneMsg{status: fmt.Sprintf("created %q", t.Title), err: err}
		}
		t, err := svc.Edit(ctx, userID, id, draft)
		return mutationDoneMsg{status: fmt.Sprintf("saved %q", t.Title), err: err}
	}
}

func (m Model) deleteTask(id, title string) tea.Cmd {
	svc, userID := m.tasks, m.userID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		err := svc.Delete(ctx, userID, id)
		return mutationDoneMsg{status: fmt.Sprintf("deleted %q", title), err: err}
	}
}

func (m Model) parseDraft(text string) tea.Cmd {
	parser := m.parser
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout*2)
		defer cancel()

		d, err := parser.Parse(ctx, text)
		return draftParsedMsg{draft: d, err: err}
	}
}
