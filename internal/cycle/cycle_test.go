package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cyclic-tasks/internal/model"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func newTask(freq model.Frequency, last time.Time) model.Task {
	return model.Task{
		ID:           "t1",
		Title:        "Read",
		Type:         model.TaskTypeNumeric,
		Frequency:    freq,
		TargetValue:  10,
		CurrentValue: 4,
		LastUpdated:  last,
		ActivityLog:  []int64{last.UnixMilli()},
		History:      []model.HistoryEntry{},
		PushConfig: &model.PushConfig{
			Enabled:      true,
			AdvanceDays:  []int{1},
			LastPushDate: "2024-01-01",
		},
	}
}

func TestNeedsReset(t *testing.T) {
	tests := []struct {
		name     string
		freq     model.Frequency
		interval int
		last     time.Time
		now      time.Time
		want     bool
	}{
		{"daily same day", model.FrequencyDaily, 0, date(2024, 3, 4, 1), date(2024, 3, 4, 23), false},
		{"daily next day", model.FrequencyDaily, 0, date(2024, 3, 4, 23), date(2024, 3, 5, 0), true},
		{"weekly same iso week", model.FrequencyWeekly, 0, date(2024, 3, 4, 9), date(2024, 3, 10, 22), false},
		{"weekly next monday", model.FrequencyWeekly, 0, date(2024, 3, 10, 22), date(2024, 3, 11, 0), true},
		{"weekly across new year same week", model.FrequencyWeekly, 0, date(2024, 12, 30, 9), date(2025, 1, 2, 9), false},
		{"weekly same week number next year", model.FrequencyWeekly, 0, date(2023, 1, 4, 9), date(2024, 1, 3, 9), true},
		{"monthly same month", model.FrequencyMonthly, 0, date(2024, 3, 1, 0), date(2024, 3, 31, 23), false},
		{"monthly next month", model.FrequencyMonthly, 0, date(2024, 3, 31, 23), date(2024, 4, 1, 0), true},
		{"monthly same month next year", model.FrequencyMonthly, 0, date(2023, 3, 15, 0), date(2024, 3, 15, 0), true},
		{"quarterly same quarter", model.FrequencyQuarterly, 0, date(2024, 4, 1, 0), date(2024, 6, 30, 0), false},
		{"quarterly next quarter", model.FrequencyQuarterly, 0, date(2024, 6, 30, 0), date(2024, 7, 1, 0), true},
		{"quarterly same quarter next year", model.FrequencyQuarterly, 0, date(2023, 5, 1, 0), date(2024, 5, 1, 0), true},
		{"yearly same year", model.FrequencyYearly, 0, date(2024, 1, 1, 0), date(2024, 12, 31, 0), false},
		{"yearly next year", model.FrequencyYearly, 0, date(2024, 12, 31, 23), date(2025, 1, 1, 0), true},
		{"custom before interval", model.FrequencyCustom, 7, date(2024, 3, 1, 0), date(2024, 3, 7, 23), false},
		{"custom at interval", model.FrequencyCustom, 7, date(2024, 3, 1, 23), date(2024, 3, 8, 0), true},
		{"custom without interval", model.FrequencyCustom, 0, date(2024, 3, 1, 0), date(2025, 3, 1, 0), false},
		{"last updated in the future", model.FrequencyDaily, 0, date(2024, 3, 6, 0), date(2024, 3, 5, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := newTask(tt.freq, tt.last)
			task.CustomInterval = tt.interval
			assert.Equal(t, tt.want, NeedsReset(task, tt.now))
		})
	}
}

func TestReset(t *testing.T) {
	last := date(2024, 3, 1, 8)
	now := date(2024, 3, 11, 9)
	task := newTask(model.FrequencyCustom, last)
	task.CustomInterval = 7

	got := Reset(task, now)

	require.Len(t, got.History, 1)
	assert.Equal(t, model.HistoryEntry{Date: last, Value: 4, Completed: false}, got.History[0])
	assert.Zero(t, got.CurrentValue)
	assert.Empty(t, got.ActivityLog)
	assert.NotNil(t, got.ActivityLog)
	assert.Equal(t, now, got.LastUpdated)
	assert.Empty(t, got.PushConfig.LastPushDate)

	// The input is untouched.
	assert.Empty(t, task.History)
	assert.Equal(t, 4.0, task.CurrentValue)
	assert.Len(t, task.ActivityLog, 1)
	assert.Equal(t, "2024-01-01", task.PushConfig.LastPushDate)
}

func TestResetMarksCompletedCycles(t *testing.T) {
	task := newTask(model.FrequencyDaily, date(2024, 3, 1, 8))
	task.CurrentValue = 10

	got := Reset(task, date(2024, 3, 2, 8))
	require.Len(t, got.History, 1)
	assert.True(t, got.History[0].Completed)
}

func TestResetIfDueIsIdempotent(t *testing.T) {
	task := newTask(model.FrequencyDaily, date(2024, 3, 1, 8))
	now := date(2024, 3, 2, 8)

	once, reset := ResetIfDue(task, now)
	require.True(t, reset)

	twice, reset := ResetIfDue(once, now)
	assert.False(t, reset)
	assert.Equal(t, once, twice)
	assert.Len(t, twice.History, 1)
}

func TestCustomIntervalTenDaysResetsOnce(t *testing.T) {
	task := newTask(model.FrequencyCustom, date(2024, 3, 1, 8))
	task.CustomInterval = 7
	now := date(2024, 3, 11, 8)

	got, reset := ResetIfDue(task, now)
	require.True(t, reset)
	assert.Len(t, got.History, 1)
	assert.Equal(t, now, got.LastUpdated)
}

func TestCustomIntervalLongerThanDurationRange(t *testing.T) {
	task := newTask(model.FrequencyCustom, date(1400, 1, 1, 8))
	task.CustomInterval = 200000

	assert.True(t, NeedsReset(task, date(2024, 3, 11, 8)))
}

func TestHistoryIsAppendOnly(t *testing.T) {
	task := newTask(model.FrequencyDaily, date(2024, 3, 1, 8))
	task.History = []model.HistoryEntry{{Date: date(2024, 2, 29, 8), Value: 1}}

	got := Reset(task, date(2024, 3, 2, 8))
	require.Len(t, got.History, 2)
	assert.Equal(t, task.History[0], got.History[0])
}
