package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Frequency is the recurrence period of a task's cycle.
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyYearly    Frequency = "YEARLY"
	FrequencyCustom    Frequency = "CUSTOM"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencyYearly, FrequencyCustom:
		return true
	}
	return false
}

// TaskType distinguishes done/not-done tasks from counted ones.
type TaskType string

const (
	TaskTypeBoolean TaskType = "BOOLEAN"
	TaskTypeNumeric TaskType = "NUMERIC"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	return t == TaskTypeBoolean || t == TaskTypeNumeric
}

// LimitPeriod is the window used by contribution rate limits.
type LimitPeriod string

const (
	LimitDaily   LimitPeriod = "DAILY"
	LimitWeekly  LimitPeriod = "WEEKLY"
	LimitMonthly LimitPeriod = "MONTHLY"
)

// Valid reports whether p is a supported limit window.
func (p LimitPeriod) Valid() bool {
	return p == LimitDaily || p == LimitWeekly || p == LimitMonthly
}

// NumericCap is the largest value a NUMERIC task may hold.
const NumericCap = 99999999

// DefaultGroup is assigned to tasks created without a group.
const DefaultGroup = "Default"

// ErrInvalidTask is wrapped by every task validation failure.
var ErrInvalidTask = errors.New("invalid task")

// LimitConfig caps how many increments are accepted per window.
type LimitConfig struct {
	Period LimitPeriod `json:"period" yaml:"period"`
	Count  int         `json:"count" yaml:"count"`
}

// PushConfig controls deadline reminders for a task.
type PushConfig struct {
	Enabled         bool  `json:"enabled" yaml:"enabled"`
	AdvanceDays     []int `json:"advanceDays" yaml:"advance_days"`
	NotifyOnDueDate bool  `json:"notifyOnDueDate" yaml:"notify_on_due_date"`

	// LastPushDate is the local YYYY-MM-DD date of the last delivered
	// reminder, or empty when none was delivered this cycle.
	LastPushDate string `json:"lastPushDate,omitempty" yaml:"last_push_date,omitempty"`
}

// HistoryEntry is the archived outcome of one finished cycle.
type HistoryEntry struct {
	Date      time.Time `json:"date" yaml:"date"`
	Value     float64   `json:"value" yaml:"value"`
	Completed bool      `json:"completed" yaml:"completed"`
}

// Task is a recurring goal tracked across cycles.
type Task struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Group       string `json:"group,omitempty" yaml:"group,omitempty"`
	Unit        string `json:"unit,omitempty" yaml:"unit,omitempty"`
	SortOrder   int    `json:"sortOrder" yaml:"sort_order"`

	Type           TaskType  `json:"type" yaml:"type"`
	Frequency      Frequency `json:"frequency" yaml:"frequency"`
	CustomInterval int       `json:"customInterval,omitempty" yaml:"custom_interval,omitempty"`

	TargetValue  float64 `json:"targetValue" yaml:"target_value"`
	CurrentValue float64 `json:"currentValue" yaml:"current_value"`

	// LastUpdated marks the start of the active cycle.
	LastUpdated time.Time `json:"lastUpdated" yaml:"last_updated"`

	// DeadlineDay is an ISO weekday (1-7) for WEEKLY tasks and a day of
	// month (1-31) for MONTHLY and YEARLY tasks. Zero means unset.
	DeadlineDay   int `json:"deadlineDay,omitempty" yaml:"deadline_day,omitempty"`
	DeadlineMonth int `json:"deadlineMonth,omitempty" yaml:"deadline_month,omitempty"`

	LimitConfig *LimitConfig `json:"limitConfig,omitempty" yaml:"limit_config,omitempty"`

	// ActivityLog holds epoch-millisecond timestamps of increments made
	// during the current cycle.
	ActivityLog []int64 `json:"activityLog" yaml:"activity_log"`

	PushConfig *PushConfig    `json:"pushConfig,omitempty" yaml:"push_config,omitempty"`
	History    []HistoryEntry `json:"history" yaml:"history"`
}

// MaxValue returns the upper bound for CurrentValue.
func (t Task) MaxValue() float64 {
	if t.Type == TaskTypeBoolean {
		return 1
	}
	return NumericCap
}

// Clamp bounds v to the legal value range of the task. BOOLEAN values
// are snapped to 0 or 1; anything short of 1 counts as not done.
func (t Task) Clamp(v float64) float64 {
	if t.Type == TaskTypeBoolean {
		if v >= 1 {
			return 1
		}
		return 0
	}
	if v < 0 {
		return 0
	}
	if m := t.MaxValue(); v > m {
		return m
	}
	return v
}

// IsComplete reports whether the current cycle's target is reached.
func (t Task) IsComplete() bool {
	return t.CurrentValue >= t.TargetValue
}

// Clone returns a deep copy so mutations never alias the original.
func (t Task) Clone() Task {
	c := t
	c.ActivityLog = slices.Clone(t.ActivityLog)
	c.History = slices.Clone(t.History)
	if t.LimitConfig != nil {
		lc := *t.LimitConfig
		c.LimitConfig = &lc
	}
	if t.PushConfig != nil {
		pc := *t.PushConfig
		pc.AdvanceDays = slices.Clone(t.PushConfig.AdvanceDays)
		c.PushConfig = &pc
	}
	return c
}

// Normalize fills in defaults for fields that may be missing from
// older or hand-edited documents. It never rejects a task.
func (t *Task) Normalize(now time.Time) {
	if t.ActivityLog == nil {
		t.ActivityLog = []int64{}
	}
	if t.History == nil {
		t.History = []HistoryEntry{}
	}
	if !t.Type.Valid() {
		t.Type = TaskTypeBoolean
	}
	if !t.Frequency.Valid() {
		t.Frequency = FrequencyDaily
	}
	if t.TargetValue <= 0 {
		t.TargetValue = 1
	}
	if t.LastUpdated.IsZero() {
		t.LastUpdated = now
	}
	if t.Group == "" {
		t.Group = DefaultGroup
	}
	if t.PushConfig != nil && t.PushConfig.AdvanceDays == nil {
		t.PushConfig.AdvanceDays = []int{}
	}
	t.CurrentValue = t.Clamp(t.CurrentValue)
}

// Validate checks the user-editable fields of a task.
func (t Task) Validate() error {
	var problems []string

	if strings.TrimSpace(t.Title) == "" {
		problems = append(problems, "title is required")
	}
	if !t.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown type %q", t.Type))
	}
	if !t.Frequency.Valid() {
		problems = append(problems, fmt.Sprintf("unknown frequency %q", t.Frequency))
	}
	if t.Frequency == FrequencyCustom && t.CustomInterval <= 0 {
		problems = append(problems, "custom frequency requires a positive interval")
	}
	if t.TargetValue <= 0 {
		problems = append(problems, "target value must be positive")
	}
	if t.Type == TaskTypeNumeric && t.TargetValue > NumericCap {
		problems = append(problems, fmt.Sprintf("target value exceeds %d", NumericCap))
	}

	switch t.Frequency {
	case FrequencyWeekly:
		if t.DeadlineDay < 0 || t.DeadlineDay > 7 {
			problems = append(problems, "weekly deadline day must be 1-7")
		}
	case FrequencyMonthly, FrequencyYearly:
		if t.DeadlineDay < 0 || t.DeadlineDay > 31 {
			problems = append(problems, "deadline day must be 1-31")
		}
	}
	if t.DeadlineMonth < 0 || t.DeadlineMonth > 12 {
		problems = append(problems, "deadline month must be 1-12")
	}

	if lc := t.LimitConfig; lc != nil {
		if !lc.Period.Valid() {
			problems = append(problems, fmt.Sprintf("unknown limit period %q", lc.Period))
		}
		if lc.Count <= 0 {
			problems = append(problems, "limit count must be positive")
		}
	}
	if pc := t.PushConfig; pc != nil {
		for _, d := range pc.AdvanceDays {
			if d < 1 {
				problems = append(problems, "advance days must be at least 1")
				break
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTask, strings.Join(problems, "; "))
	}
	return nil
}

// TaskDraft carries the user-editable fields for creating or editing a
// task. It is also the payload produced by the natural-language parser.
type TaskDraft struct {
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Group          string       `json:"group,omitempty"`
	Unit           string       `json:"unit,omitempty"`
	Type           TaskType     `json:"type"`
	Frequency      Frequency    `json:"frequency"`
	CustomInterval int          `json:"customInterval,omitempty"`
	TargetValue    float64      `json:"targetValue"`
	DeadlineDay    int          `json:"deadlineDay,omitempty"`
	DeadlineMonth  int          `json:"deadlineMonth,omitempty"`
	LimitConfig    *LimitConfig `json:"limitConfig,omitempty"`
	PushConfig     *PushConfig  `json:"pushConfig,omitempty"`
}

// Apply copies the draft's fields onto t, leaving cycle state alone.
func (d TaskDraft) Apply(t *Task) {
	t.Title = strings.TrimSpace(d.Title)
	t.Description = d.Description
	t.Group = d.Group
	if t.Group == "" {
		t.Group = DefaultGroup
	}
	t.Unit = d.Unit
	t.Type = d.Type
	t.Frequency = d.Frequency
	t.CustomInterval = d.CustomInterval
	t.TargetValue = d.TargetValue
	if t.Type == TaskTypeBoolean {
		t.TargetValue = 1
	}
	t.DeadlineDay = d.DeadlineDay
	t.DeadlineMonth = d.DeadlineMonth

	t.LimitConfig = nil
	if d.LimitConfig != nil {
		lc := *d.LimitConfig
		t.LimitConfig = &lc
	}

	var lastPush string
	if t.PushConfig != nil {
		lastPush = t.PushConfig.LastPushDate
	}
	t.PushConfig = nil
	if d.PushConfig != nil {
		pc := *d.PushConfig
		pc.AdvanceDays = slices.Clone(d.PushConfig.AdvanceDays)
		if pc.AdvanceDays == nil {
			pc.AdvanceDays = []int{}
		}
		pc.LastPushDate = lastPush
		t.PushConfig = &pc
	}
}
