package cycle

import (
	"time"

	"github.com/nhle/cyclic-tasks/internal/calendar"
	"github.com/nhle/cyclic-tasks/internal/model"
)

// Default deadline anchors used when a task leaves them unset.
const (
	DefaultWeeklyDeadline  = 7 // Sunday
	DefaultMonthlyDeadline = 1
	DefaultYearlyMonth     = 1
	DefaultYearlyDay       = 1
)

// DaysUntilDeadline returns the number of calendar days from now to the
// task's deadline in the current period. The boolean is false when the
// frequency has no deadline (QUARTERLY and CUSTOM).
//
// WEEKLY wraps forward to the next occurrence of the anchor weekday.
// MONTHLY and YEARLY do not wrap, so a deadline already passed this
// period yields a negative count.
func DaysUntilDeadline(task model.Task, now time.Time) (int, bool) {
	switch task.Frequency {
	case model.FrequencyDaily:
		return 0, true

	case model.FrequencyWeekly:
		anchor := task.DeadlineDay
		if anchor < 1 || anchor > 7 {
			anchor = DefaultWeeklyDeadline
		}
		diff := anchor - calendar.ISOWeekday(now)
		if diff < 0 {
			diff += 7
		}
		return diff, true

	case model.FrequencyMonthly:
		anchor := task.DeadlineDay
		if anchor < 1 {
			anchor = DefaultMonthlyDeadline
		}
		anchor = min(anchor, calendar.DaysInMonth(now.Year(), now.Month()))
		return anchor - now.Day(), true

	case model.FrequencyYearly:
		month := task.DeadlineMonth
		if month < 1 || month > 12 {
			month = DefaultYearlyMonth
		}
		day := task.DeadlineDay
		if day < 1 {
			day = DefaultYearlyDay
		}
		day = min(day, calendar.DaysInMonth(now.Year(), time.Month(month)))
		target := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
		return calendar.DaysBetween(now, target), true
	}

	return 0, false
}
