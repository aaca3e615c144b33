// Package cycle decides when a recurring task's period has ended and
// archives it, and computes the distance to the period's deadline.
package cycle

import (
	"time"

	"github.com/nhle/cyclic-tasks/internal/calendar"
	"github.com/nhle/cyclic-tasks/internal/model"
)

// NeedsReset reports whether the cycle that started at task.LastUpdated
// has ended by now. All comparisons are made on local calendar dates in
// now's location.
//
// A LastUpdated that lies on a later date than now (clock skew between
// writers) never triggers a reset.
func NeedsReset(task model.Task, now time.Time) bool {
	last := task.LastUpdated.In(now.Location())
	days := calendar.DaysBetween(last, now)
	if days < 0 {
		return false
	}

	switch task.Frequency {
	case model.FrequencyDaily:
		return days > 0
	case model.FrequencyWeekly:
		return !calendar.SameISOWeek(last, now)
	case model.FrequencyMonthly:
		return !calendar.SameMonth(last, now)
	case model.FrequencyQuarterly:
		return last.Year() != now.Year() ||
			calendar.QuarterOf(last.Month()) != calendar.QuarterOf(now.Month())
	case model.FrequencyYearly:
		return last.Year() != now.Year()
	case model.FrequencyCustom:
		if task.CustomInterval <= 0 {
			return false
		}
		return days >= task.CustomInterval
	}
	return false
}

// Reset archives the finished cycle and starts a new one at now. The
// input is not modified; the returned task carries all five parts of the
// reset together: a history snapshot, a zero value, an empty activity
// log, LastUpdated advanced to now and a cleared push marker.
func Reset(task model.Task, now time.Time) model.Task {
	next := task.Clone()

	next.History = append(next.History, model.HistoryEntry{
		Date:      task.LastUpdated,
		Value:     task.CurrentValue,
		Completed: task.CurrentValue >= task.TargetValue,
	})
	next.CurrentValue = 0
	next.ActivityLog = []int64{}
	next.LastUpdated = now
	if next.PushConfig != nil {
		next.PushConfig.LastPushDate = ""
	}

	return next
}

// ResetIfDue applies Reset when NeedsReset holds. The boolean reports
// whether a reset happened.
func ResetIfDue(task model.Task, now time.Time) (model.Task, bool) {
	if !NeedsReset(task, now) {
		return task, false
	}
	return Reset(task, now), true
}
