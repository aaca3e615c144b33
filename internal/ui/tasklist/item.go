package tasklist

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/ratelimit"
	"github.com/nhle/cyclic-tasks/internal/tasks"
	"github.com/nhle/cyclic-tasks/internal/theme"
)

// TaskItem wraps a task view so it can be used in a bubbles/list.
type TaskItem struct {
	View tasks.View
}

// FilterValue returns the string used for filtering.
func (i TaskItem) FilterValue() string { return i.View.Title + " " + i.View.Group }

// Title returns the task title for the list.
func (i TaskItem) Title() string { return i.View.Title }

// Description returns a short summary line for the list.
func (i TaskItem) Description() string {
	parts := []string{
		string(i.View.Frequency),
		progressText(i.View.Task),
	}
	if i.View.DeadlineText != "" {
		parts = append(parts, i.View.DeadlineText)
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering task rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single task row.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TaskItem)
	if !ok {
		return
	}
	fmt.Fprint(w, renderRow(ti.View, index == m.Index()))
}

func renderRow(v tasks.View, isSelected bool) string {
	prefix := "○"
	if v.Complete {
		prefix = "✓"
	}

	freq := theme.FrequencyStyle(v.Frequency).Render(theme.FrequencyLabel(v.Frequency))
	group := theme.GroupHeaderStyle.Render("[" + v.Group + "]")

	deadline := ""
	switch {
	case v.DeadlineText == "":
	case v.Overdue:
		deadline = " " + theme.OverdueStyle.Render(v.DeadlineText)
	case v.Urgent:
		deadline = " " + theme.UrgentStyle.Render(v.DeadlineText)
	default:
		deadline = " " + theme.DeadlineStyle.Render(v.DeadlineText)
	}

	limit := ""
	if text := limitText(v.Limit, v.LimitConfig); text != "" {
		if v.Limit.Allowed {
			limit = " " + theme.DeadlineStyle.Render(text)
		} else {
			limit = " " + theme.BlockedStyle.Render(text)
		}
	}

	line := fmt.Sprintf("%s %s %s %s  %s%s%s",
		prefix, freq, group, v.Title, progressText(v.Task), deadline, limit)

	if v.Complete {
		line = theme.DimmedStyle.Render(line)
	}
	if isSelected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// progressText renders the cycle progress, e.g. "3/5 km" or "done".
func progressText(t model.Task) string {
	if t.Type == model.TaskTypeBoolean {
		if t.IsComplete() {
			return "done"
		}
		return "pending"
	}
	s := formatNumber(t.CurrentValue) + "/" + formatNumber(t.TargetValue)
	if t.Unit != "" {
		s += " " + t.Unit
	}
	return s
}

// limitText describes the contribution limit state, or "" when the task
// has none.
func limitText(r ratelimit.Result, lc *model.LimitConfig) string {
	if lc == nil || r.Max == 0 {
		return ""
	}
	if !r.Allowed {
		return "limit reached, next " + r.NextAvailable
	}
	return fmt.Sprintf("%d/%d %s", r.Count, r.Max, periodNoun(lc.Period))
}

func periodNoun(p model.LimitPeriod) string {
	switch p {
	case model.LimitWeekly:
		return "this week"
	case model.LimitMonthly:
		return "this month"
	default:
		return "today"
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
