package tasks

import (
	"fmt"
	"sort"
	"time"

	"github.com/nhle/cyclic-tasks/internal/cycle"
	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/ratelimit"
)

// urgentWithinDays marks a pending task as urgent when its deadline is
// this close.
const urgentWithinDays = 3

// View is a task decorated with its deadline and limit state at a given
// instant.
type View struct {
	model.Task

	DaysUntil    *int             `json:"daysUntil"`
	DeadlineText string           `json:"deadlineText,omitempty"`
	Urgent       bool             `json:"urgent"`
	Overdue      bool             `json:"overdue"`
	Complete     bool             `json:"complete"`
	Limit        ratelimit.Result `json:"limit"`
}

// NewView builds the view of task at now.
func NewView(task model.Task, now time.Time) View {
	v := View{
		Task:     task,
		Complete: task.IsComplete(),
		Limit:    ratelimit.Check(task, now),
	}

	days, ok := cycle.DaysUntilDeadline(task, now)
	if !ok {
		return v
	}
	v.DaysUntil = &days
	v.DeadlineText = DeadlineText(days)
	v.Urgent = !v.Complete && days >= 0 && days <= urgentWithinDays
	v.Overdue = !v.Complete && days < 0
	return v
}

// BuildViews builds views for tasks ordered by sort order.
func BuildViews(tasks []model.Task, now time.Time) []View {
	views := make([]View, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, NewView(t, now))
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].SortOrder < views[j].SortOrder
	})
	return views
}

// DeadlineText renders a deadline offset for display.
func DeadlineText(days int) string {
	switch {
	case days == 0:
		return "due today"
	case days == -1:
		return "overdue by 1 day"
	case days < 0:
		return fmt.Sprintf("overdue by %d days", -days)
	case days == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}

// Groups returns the distinct group names in tasks, sorted.
func Groups(tasks []model.Task) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tasks {
		if t.Group != "" && !seen[t.Group] {
			seen[t.Group] = true
			out = append(out, t.Group)
		}
	}
	sort.Strings(out)
	return out
}
