package tasklist

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cyclic-tasks/internal/keys"
	"github.com/nhle/cyclic-tasks/internal/tasks"
	"github.com/nhle/cyclic-tasks/internal/theme"
)

// Model is the task list view component. It renders views handed to it
// by the root model and never touches the store itself.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	views       []tasks.View
	query       string
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a new task list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Cycles"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "filter by title or group..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// SetTasks replaces the displayed tasks, keeping the cursor on the same
// task when it is still present.
func (m *Model) SetTasks(views []tasks.View) tea.Cmd {
	selected, _ := m.SelectedTask()
	m.views = views
	cmd := m.list.SetItems(m.filtered())
	if selected.ID != "" {
		for i, it := range m.list.Items() {
			if it.(TaskItem).View.ID == selected.ID {
				m.list.Select(i)
				break
			}
		}
	}
	return cmd
}

// SelectedTask returns the task under the cursor.
func (m Model) SelectedTask() (tasks.View, bool) {
	item, ok := m.list.SelectedItem().(TaskItem)
	if !ok {
		return tasks.View{}, false
	}
	return item.View, true
}

// Searching reports whether the filter input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Update handles messages for the task list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && m.searchMode {
		return m.handleSearchKeys(msg)
	}
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "/" {
		m.searchMode = true
		m.searchInput.SetValue(m.query)
		return m, m.searchInput.Focus()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while the filter has focus.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case msg.String() == "enter":
		m.searchMode = false
		m.query = strings.TrimSpace(m.searchInput.Value())
		m.searchInput.Blur()
		return m, m.list.SetItems(m.filtered())

	case key.Matches(msg, m.keys.Back):
		m.searchMode = false
		m.query = ""
		m.searchInput.Reset()
		m.searchInput.Blur()
		return m, m.list.SetItems(m.filtered())
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// FilterSummary describes the active filter, or "" when none is set.
func (m Model) FilterSummary() string {
	if m.query == "" {
		return ""
	}
	return "filter: " + m.query
}

func (m Model) filtered() []list.Item {
	q := strings.ToLower(m.query)
	items := make([]list.Item, 0, len(m.views))
	for _, v := range m.views {
		it := TaskItem{View: v}
		if q != "" && !strings.Contains(strings.ToLower(it.FilterValue()), q) {
			continue
		}
		items = append(items, it)
	}
	return items
}

// View renders the task list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no tasks are visible.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.query != "" {
		return style.Render("No matching tasks.\nPress / then esc to clear the filter.")
	}
	return style.Render("No recurring tasks yet.\n\nPress n to create one.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
