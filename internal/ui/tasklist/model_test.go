package tasklist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cyclic-tasks/internal/keys"
	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/ratelimit"
	"github.com/nhle/cyclic-tasks/internal/tasks"
)

var monday = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func sampleViews() []tasks.View {
	return tasks.BuildViews([]model.Task{
		{ID: "a", Title: "Run", Group: "Health", Type: model.TaskTypeNumeric,
			Frequency: model.FrequencyWeekly, TargetValue: 20, CurrentValue: 7.5, Unit: "km",
			LastUpdated: monday, SortOrder: 0},
		{ID: "b", Title: "Pay rent", Group: "Home", Type: model.TaskTypeBoolean,
			Frequency: model.FrequencyMonthly, TargetValue: 1, DeadlineDay: 5,
			LastUpdated: monday, SortOrder: 1},
		{ID: "c", Title: "Stretch", Group: "Health", Type: model.TaskTypeBoolean,
			Frequency: model.FrequencyDaily, TargetValue: 1, CurrentValue: 1,
			LastUpdated: monday, SortOrder: 2},
	}, monday)
}

func TestProgressText(t *testing.T) {
	views := sampleViews()
	assert.Equal(t, "7.5/20 km", progressText(views[0].Task))
	assert.Equal(t, "pending", progressText(views[1].Task))
	assert.Equal(t, "done", progressText(views[2].Task))
}

func TestLimitText(t *testing.T) {
	lc := &model.LimitConfig{Period: model.LimitWeekly, Count: 3}

	assert.Empty(t, limitText(ratelimit.Result{Allowed: true}, nil))
	assert.Equal(t, "1/3 this week", limitText(ratelimit.Result{Allowed: true, Count: 1, Max: 3}, lc))
	assert.Equal(t, "limit reached, next next week",
		limitText(ratelimit.Result{Count: 3, Max: 3, NextAvailable: ratelimit.NextWeek}, lc))
}

func TestSetTasksKeepsSelection(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetTasks(sampleViews())

	m.list.Select(2)
	sel, ok := m.SelectedTask()
	require.True(t, ok)
	assert.Equal(t, "c", sel.ID)

	reordered := sampleViews()
	reordered[0], reordered[2] = reordered[2], reordered[0]
	m.SetTasks(reordered)

	sel, ok = m.SelectedTask()
	require.True(t, ok)
	assert.Equal(t, "c", sel.ID)
}

func TestFilterByGroup(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetTasks(sampleViews())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	require.True(t, m.Searching())
	m.searchInput.SetValue("health")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.Searching())
	assert.Equal(t, "filter: health", m.FilterSummary())
	assert.Len(t, m.list.Items(), 2)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, m.FilterSummary())
	assert.Len(t, m.list.Items(), 3)
}

func TestRenderRowMarksOverdue(t *testing.T) {
	late := tasks.NewView(model.Task{
		ID: "x", Title: "Report", Group: "Work", Type: model.TaskTypeBoolean,
		Frequency: model.FrequencyMonthly, TargetValue: 1, DeadlineDay: 1,
		LastUpdated: monday,
	}, monday.AddDate(0, 0, 1))

	row := renderRow(late, false)
	assert.Contains(t, row, "Report")
	assert.Contains(t, row, "overdue by 4 days")
}
