package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cyclic-tasks/internal/keys"
	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/orchestrator"
	"github.com/nhle/cyclic-tasks/internal/tasks"
	"github.com/nhle/cyclic-tasks/internal/theme"
	"github.com/nhle/cyclic-tasks/internal/ui"
	"github.com/nhle/cyclic-tasks/internal/ui/taskform"
	"github.com/nhle/cyclic-tasks/internal/ui/tasklist"
)

// TaskParser turns free text into a task draft.
type TaskParser interface {
	Parse(ctx context.Context, text string) (model.TaskDraft, error)
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewForm
	ViewHelp
	ViewQuickAdd
)

// Model is the root Bubble Tea model. Every read goes through the
// orchestrator and every write through the task service, so the TUI
// shares their versioning and lease with the scheduler and the API.
type Model struct {
	userID string
	runner *orchestrator.Runner
	tasks  *tasks.Service
	parser TaskParser

	currentView ViewState
	layout      ui.Layout
	keys        *keys.KeyMap
	taskList    tasklist.Model
	form        taskform.Model
	help        help.Model
	quickAdd    textinput.Model

	views     []tasks.View
	loading   bool
	status    string
	statusErr bool
	ready     bool
}

// New creates the root model for one user. parser may be nil, which
// disables quick add.
func New(userID string, runner *orchestrator.Runner, svc *tasks.Service, parser TaskParser) Model {
	k := keys.DefaultKeyMap()

	qa := textinput.New()
	qa.Placeholder = "e.g. run 20 km every week, at most once a day"
	qa.Prompt = "describe> "
	qa.CharLimit = 500

	return Model{
		userID:      userID,
		runner:      runner,
		tasks:       svc,
		parser:      parser,
		currentView: ViewList,
		keys:        k,
		taskList:    tasklist.New(k, 80, 24),
		form:        taskform.New(80, 24),
		help:        help.New(),
		quickAdd:    qa,
		loading:     true,
	}
}

// Init resets finished cycles right away and checks reminders shortly
// after.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.runCycle(false), schedulePushCheck())
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.taskList.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.form.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.help.Width = m.layout.ContentWidth()
		m.quickAdd.Width = m.layout.ContentWidth() - 12
		// Forward to the active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case cycleLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("load failed: %v", msg.err), true)
			return m, nil
		}
		m.views = tasks.BuildViews(msg.report.Tasks, m.runner.Now())
		cmd := m.taskList.SetTasks(m.views)
		if msg.notify {
			m.setStatus(reminderStatus(msg.report), msg.report.Failures > 0)
		} else if msg.report.Resets > 0 {
			m.setStatus(fmt.Sprintf("%d cycle(s) started fresh", msg.report.Resets), false)
		}
		return m, cmd

	case pushCheckMsg:
		return m, m.runCycle(true)

	case changeDoneMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		if msg.result.Outcome == tasks.OutcomeBlocked {
			m.setStatus(fmt.Sprintf("limit reached for %q, next %s",
				msg.result.Task.Title, msg.result.Limit.NextAvailable), false)
			return m, nil
		}
		m.setStatus("", false)
		return m, m.runCycle(false)

	case mutationDoneMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		m.setStatus(msg.status, false)
		return m, m.runCycle(false)

	case draftParsedMsg:
		if msg.err != nil {
			m.currentView = ViewList
			m.setStatus(fmt.Sprintf("could not parse: %v", msg.err), true)
			return m, nil
		}
		m.currentView = ViewForm
		m.form.SetGroups(m.groups())
		return m, m.form.StartDraft(msg.draft)

	case taskform.SubmittedMsg:
		m.currentView = ViewList
		return m, m.saveDraft(msg.TaskID, msg.Draft)

	case taskform.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.currentView {
		case ViewList:
			if !m.taskList.Searching() {
				if next, cmd, handled := m.handleListKeys(msg); handled {
					return next, cmd
				}
			}
		case ViewHelp:
			if key.Matches(msg, m.keys.Help, m.keys.Back) {
				m.currentView = ViewList
			}
			return m, nil
		case ViewQuickAdd:
			return m.handleQuickAddKeys(msg)
		}
	}

	return m.updateActiveView(msg)
}

// handleListKeys processes list-view shortcuts. The boolean is false when
// the key should fall through to the list for navigation.
func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.runCycle(false), true

	case key.Matches(msg, m.keys.PushCheck):
		return m, m.runCycle(true), true

	case key.Matches(msg, m.keys.New):
		m.currentView = ViewForm
		m.form.SetGroups(m.groups())
		return m, m.form.StartCreate(), true

	case key.Matches(msg, m.keys.QuickAdd):
		if m.parser == nil {
			m.setStatus("quick add needs an Anthropic API key", true)
			return m, nil, true
		}
		m.currentView = ViewQuickAdd
		m.quickAdd.Reset()
		return m, m.quickAdd.Focus(), true
	}

	sel, ok := m.taskList.SelectedTask()
	if !ok {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Increment):
		if sel.Type == model.TaskTypeBoolean {
			return m, m.setValue(sel.ID, 1), true
		}
		return m, m.contribute(sel.ID, 1), true

	case key.Matches(msg, m.keys.Decrement):
		if sel.Type == model.TaskTypeBoolean {
			return m, m.setValue(sel.ID, 0), true
		}
		return m, m.contribute(sel.ID, -1), true

	case key.Matches(msg, m.keys.Toggle):
		if sel.Type != model.TaskTypeBoolean {
			m.setStatus("use + and - for counted tasks", false)
			return m, nil, true
		}
		return m, m.setValue(sel.ID, 1-sel.CurrentValue), true

	case key.Matches(msg, m.keys.Edit):
		m.currentView = ViewForm
		m.form.SetGroups(m.groups())
		return m, m.form.StartEdit(sel.Task), true

	case key.Matches(msg, m.keys.Delete):
		return m, m.deleteTask(sel.ID, sel.Title), true
	}

	return m, nil, false
}

func (m Model) handleQuickAddKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "enter":
		text := m.quickAdd.Value()
		m.quickAdd.Blur()
		m.setStatus("parsing...", false)
		return m, m.parseDraft(text)
	case key.Matches(msg, m.keys.Back):
		m.quickAdd.Blur()
		m.currentView = ViewList
		return m, nil
	}

	var cmd tea.Cmd
	m.quickAdd, cmd = m.quickAdd.Update(msg)
	return m, cmd
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewForm:
		m.form, cmd = m.form.Update(msg)
	case ViewQuickAdd:
		m.quickAdd, cmd = m.quickAdd.Update(msg)
	}

	return m, cmd
}

func (m *Model) setStatus(text string, isError bool) {
	m.status = text
	m.statusErr = isError
}

func (m Model) groups() []string {
	ts := make([]model.Task, len(m.views))
	for i, v := range m.views {
		ts[i] = v.Task
	}
	return tasks.Groups(ts)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Cycles · "+m.userID, m.headerStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.status, m.statusErr)

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewForm:
		return m.form.View()
	case ViewHelp:
		return lipgloss.NewStyle().Padding(1, 2).Render(m.help.FullHelpView(m.keys.FullHelp()))
	case ViewQuickAdd:
		return lipgloss.NewStyle().Padding(1, 2).Render(
			theme.HelpStyle.Render("Describe a recurring task in your own words.") + "\n\n" + m.quickAdd.View())
	default:
		return m.taskList.View()
	}
}

// headerStatus summarizes the collection for the header's right side.
func (m Model) headerStatus() string {
	if m.loading {
		return "loading"
	}
	urgent, overdue := 0, 0
	for _, v := range m.views {
		if v.Urgent {
			urgent++
		}
		if v.Overdue {
			overdue++
		}
	}
	s := fmt.Sprintf("%d tasks", len(m.views))
	if urgent > 0 {
		s += fmt.Sprintf(" · %d due soon", urgent)
	}
	if overdue > 0 {
		s += fmt.Sprintf(" · %d overdue", overdue)
	}
	return s
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewForm:
		return "enter next | shift+tab back | esc cancel"
	case ViewQuickAdd:
		return "enter parse | esc cancel"
	default:
		if f := m.taskList.FilterSummary(); f != "" {
			return f + " | / change"
		}
		return m.help.ShortHelpView(m.keys.ShortHelp())
	}
}

func reminderStatus(rep orchestrator.Report) string {
	switch {
	case rep.Failures > 0:
		return fmt.Sprintf("%d reminder(s) failed to send", rep.Failures)
	case rep.Pushes > 0:
		return fmt.Sprintf("%d reminder(s) sent", rep.Pushes)
	default:
		return ""
	}
}
