// Package ratelimit bounds how many increments a task accepts within a
// calendar window, using the task's own activity log as the record.
package ratelimit

import (
	"time"

	"github.com/nhle/cyclic-tasks/internal/calendar"
	"github.com/nhle/cyclic-tasks/internal/model"
)

// Labels describing when a blocked task accepts increments again.
const (
	NextTomorrow = "tomorrow"
	NextWeek     = "next week"
	NextMonth    = "next month"
)

// Result is the outcome of a limit check.
type Result struct {
	Allowed bool `json:"allowed"`

	// Count is the number of increments already inside the window.
	Count int `json:"count"`

	// Max is the configured limit, or zero when the task is unlimited.
	Max int `json:"max"`

	// NextAvailable is set only when Allowed is false.
	NextAvailable string `json:"nextAvailable,omitempty"`
}

// Remaining returns how many more increments fit in the window.
func (r Result) Remaining() int {
	if r.Max == 0 {
		return -1
	}
	return max(r.Max-r.Count, 0)
}

// Check evaluates the task's limit at now. Windows are calendar-aligned
// in now's location: the same date for DAILY, the same ISO week for
// WEEKLY and the same month for MONTHLY.
func Check(task model.Task, now time.Time) Result {
	lc := task.LimitConfig
	if lc == nil || lc.Count <= 0 || !lc.Period.Valid() {
		return Result{Allowed: true}
	}

	inWindow := windowFunc(lc.Period)
	count := 0
	for _, ms := range task.ActivityLog {
		if inWindow(time.UnixMilli(ms), now) {
			count++
		}
	}

	res := Result{
		Allowed: count < lc.Count,
		Count:   count,
		Max:     lc.Count,
	}
	if !res.Allowed {
		res.NextAvailable = nextLabel(lc.Period)
	}
	return res
}

func windowFunc(p model.LimitPeriod) func(entry, now time.Time) bool {
	switch p {
	case model.LimitWeekly:
		return calendar.SameISOWeek
	case model.LimitMonthly:
		return calendar.SameMonth
	default:
		return calendar.SameDay
	}
}

func nextLabel(p model.LimitPeriod) string {
	switch p {
	case model.LimitWeekly:
		return NextWeek
	case model.LimitMonthly:
		return NextMonth
	default:
		return NextTomorrow
	}
}
