// Package notify decides when a task reminder is due and delivers it to
// a user's endpoint.
package notify

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/nhle/cyclic-tasks/internal/calendar"
	"github.com/nhle/cyclic-tasks/internal/cycle"
	"github.com/nhle/cyclic-tasks/internal/model"
)

// Decision is the result of evaluating a task's reminder rules.
type Decision struct {
	Fire bool

	// DaysUntil is the distance to the deadline. It is meaningful only
	// when HasDeadline is true.
	DaysUntil   int
	HasDeadline bool
}

// DueToday reports whether the decision concerns the deadline day itself.
func (d Decision) DueToday() bool {
	return d.HasDeadline && d.DaysUntil == 0
}

// ShouldNotify evaluates whether a reminder for task must fire at now.
// A reminder fires at most once per local calendar day: a task whose
// LastPushDate equals today's date never fires again until the marker is
// cleared by a reset.
func ShouldNotify(task model.Task, now time.Time) Decision {
	pc := task.PushConfig
	if pc == nil || !pc.Enabled {
		return Decision{}
	}
	if task.IsComplete() {
		return Decision{}
	}
	if pc.LastPushDate == calendar.FormatDate(now) {
		return Decision{}
	}

	days, ok := cycle.DaysUntilDeadline(task, now)
	if !ok {
		return Decision{}
	}

	d := Decision{DaysUntil: days, HasDeadline: true}
	switch {
	case days == 0 && pc.NotifyOnDueDate:
		d.Fire = true
	case days > 0 && slices.Contains(pc.AdvanceDays, days):
		d.Fire = true
	}
	return d
}

// Compose builds the reminder title and body for a firing decision.
func Compose(task model.Task, d Decision) (title, body string) {
	title = "Task reminder: " + task.Title

	if d.DueToday() {
		body = "Due today!"
	} else {
		body = fmt.Sprintf("%d days left", d.DaysUntil)
	}
	body += fmt.Sprintf(" (progress: %s/%s)",
		formatValue(task.CurrentValue), formatValue(task.TargetValue))

	return title, body
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
