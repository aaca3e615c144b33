package taskform

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/theme"
)

// SubmittedMsg is dispatched when the form completes. TaskID is empty
// when a new task is being created.
type SubmittedMsg struct {
	TaskID string
	Draft  model.TaskDraft
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// noLimit is the select value for "no contribution limit".
const noLimit = ""

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title         string
	description   string
	group         string
	taskType      model.TaskType
	frequency     model.Frequency
	interval      string
	target        string
	unit          string
	deadlineDay   string
	deadlineMonth string
	limitPeriod   string
	limitCount    string
	pushEnabled   bool
	advanceDays   string
	notifyOnDue   bool
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	editID string
	groups []string
	width  int
	height int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     defaultBindings(),
		width:  width,
		height: height,
	}
}

func defaultBindings() *formBindings {
	return &formBindings{
		group:     model.DefaultGroup,
		taskType:  model.TaskTypeBoolean,
		frequency: model.FrequencyDaily,
		target:    "1",
	}
}

// SetGroups sets existing group names offered as suggestions.
func (m *Model) SetGroups(groups []string) {
	m.groups = groups
}

// StartCreate initializes the form for a new task.
func (m *Model) StartCreate() tea.Cmd {
	m.editID = ""
	*m.fb = *defaultBindings()
	m.form = m.buildForm()
	return m.form.Init()
}

// StartDraft initializes a create form prefilled from a parsed draft.
func (m *Model) StartDraft(d model.TaskDraft) tea.Cmd {
	t := model.Task{}
	d.Apply(&t)
	m.editID = ""
	*m.fb = *bindingsFrom(t)
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form with an existing task's fields.
func (m *Model) StartEdit(task model.Task) tea.Cmd {
	m.editID = task.ID
	*m.fb = *bindingsFrom(task)
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		draft, err := m.fb.draft()
		if err != nil {
			// Field validators reject bad input before completion.
			return m, func() tea.Msg { return CancelMsg{} }
		}
		id := m.editID
		return m, func() tea.Msg { return SubmittedMsg{TaskID: id, Draft: draft} }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Recurring Task"
	if m.editID != "" {
		titleText = "Edit Recurring Task"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	groupInput := huh.NewInput().
		Title("Group").
		Value(&m.fb.group)
	if len(m.groups) > 0 {
		groupInput = groupInput.Suggestions(m.groups)
	}

	basics := huh.NewGroup(
		huh.NewInput().
			Title("Title").
			Placeholder("What should happen every cycle?").
			Value(&m.fb.title).
			Validate(validateRequired("Title")),
		huh.NewText().
			Title("Description").
			Placeholder("Optional details...").
			Value(&m.fb.description),
		groupInput,
	)

	cycle := huh.NewGroup(
		huh.NewSelect[model.Frequency]().
			Title("Frequency").
			Options(
				huh.NewOption("Daily", model.FrequencyDaily),
				huh.NewOption("Weekly", model.FrequencyWeekly),
				huh.NewOption("Monthly", model.FrequencyMonthly),
				huh.NewOption("Quarterly", model.FrequencyQuarterly),
				huh.NewOption("Yearly", model.FrequencyYearly),
				huh.NewOption("Every N days", model.FrequencyCustom),
			).
			Value(&m.fb.frequency),
		huh.NewInput().
			Title("Interval (days, custom only)").
			Value(&m.fb.interval).
			Validate(validateOptionalInt(1, 3650)),
		huh.NewSelect[model.TaskType]().
			Title("Type").
			Options(
				huh.NewOption("Done / not done", model.TaskTypeBoolean),
				huh.NewOption("Counted", model.TaskTypeNumeric),
			).
			Value(&m.fb.taskType),
		huh.NewInput().
			Title("Target").
			Value(&m.fb.target).
			Validate(validateTarget),
		huh.NewInput().
			Title("Unit").
			Placeholder("km, pages, sessions...").
			Value(&m.fb.unit),
		huh.NewInput().
			Title("Deadline day").
			Description("Weekday 1-7 for weekly, day of month otherwise").
			Value(&m.fb.deadlineDay).
			Validate(validateOptionalInt(1, 31)),
		huh.NewInput().
			Title("Deadline month (yearly only)").
			Value(&m.fb.deadlineMonth).
			Validate(validateOptionalInt(1, 12)),
	)

	limits := huh.NewGroup(
		huh.NewSelect[string]().
			Title("Contribution limit").
			Options(
				huh.NewOption("None", noLimit),
				huh.NewOption("Per day", string(model.LimitDaily)),
				huh.NewOption("Per week", string(model.LimitWeekly)),
				huh.NewOption("Per month", string(model.LimitMonthly)),
			).
			Value(&m.fb.limitPeriod),
		huh.NewInput().
			Title("Increments allowed per window").
			Value(&m.fb.limitCount).
			Validate(validateOptionalInt(1, 1000)),
		huh.NewConfirm().
			Title("Send reminders?").
			Value(&m.fb.pushEnabled),
		huh.NewInput().
			Title("Remind days before deadline").
			Placeholder("e.g. 1,3").
			Value(&m.fb.advanceDays).
			Validate(validateDayList),
		huh.NewConfirm().
			Title("Remind on the due date?").
			Value(&m.fb.notifyOnDue),
	)

	return huh.NewForm(basics, cycle, limits).
		WithWidth(m.formWidth()).
		WithHeight(m.formHeight())
}

// draft converts the bound field values into a task draft.
func (fb *formBindings) draft() (model.TaskDraft, error) {
	d := model.TaskDraft{
		Title:       strings.TrimSpace(fb.title),
		Description: strings.TrimSpace(fb.description),
		Group:       strings.TrimSpace(fb.group),
		Unit:        strings.TrimSpace(fb.unit),
		Type:        fb.taskType,
		Frequency:   fb.frequency,
	}

	var err error
	if d.TargetValue, err = strconv.ParseFloat(strings.TrimSpace(fb.target), 64); err != nil {
		return model.TaskDraft{}, fmt.Errorf("target: %w", err)
	}
	if d.CustomInterval, err = optionalInt(fb.interval); err != nil {
		return model.TaskDraft{}, fmt.Errorf("interval: %w", err)
	}
	if d.DeadlineDay, err = optionalInt(fb.deadlineDay); err != nil {
		return model.TaskDraft{}, fmt.Errorf("deadline day: %w", err)
	}
	if d.DeadlineMonth, err = optionalInt(fb.deadlineMonth); err != nil {
		return model.TaskDraft{}, fmt.Errorf("deadline month: %w", err)
	}

	if fb.limitPeriod != noLimit {
		count, err := optionalInt(fb.limitCount)
		if err != nil {
			return model.TaskDraft{}, fmt.Errorf("limit count: %w", err)
		}
		if count > 0 {
			d.LimitConfig = &model.LimitConfig{Period: model.LimitPeriod(fb.limitPeriod), Count: count}
		}
	}

	if fb.pushEnabled {
		days, err := parseDayList(fb.advanceDays)
		if err != nil {
			return model.TaskDraft{}, fmt.Errorf("advance days: %w", err)
		}
		d.PushConfig = &model.PushConfig{
			Enabled:         true,
			AdvanceDays:     days,
			NotifyOnDueDate: fb.notifyOnDue,
		}
	}

	return d, nil
}

// bindingsFrom fills the form fields from an existing task.
func bindingsFrom(t model.Task) *formBindings {
	fb := &formBindings{
		title:       t.Title,
		description: t.Description,
		group:       t.Group,
		taskType:    t.Type,
		frequency:   t.Frequency,
		target:      strconv.FormatFloat(t.TargetValue, 'f', -1, 64),
		unit:        t.Unit,
	}
	if t.CustomInterval > 0 {
		fb.interval = strconv.Itoa(t.CustomInterval)
	}
	if t.DeadlineDay > 0 {
		fb.deadlineDay = strconv.Itoa(t.DeadlineDay)
	}
	if t.DeadlineMonth > 0 {
		fb.deadlineMonth = strconv.Itoa(t.DeadlineMonth)
	}
	if lc := t.LimitConfig; lc != nil {
		fb.limitPeriod = string(lc.Period)
		fb.limitCount = strconv.Itoa(lc.Count)
	}
	if pc := t.PushConfig; pc != nil {
		fb.pushEnabled = pc.Enabled
		fb.notifyOnDue = pc.NotifyOnDueDate
		parts := make([]string, len(pc.AdvanceDays))
		for i, d := range pc.AdvanceDays {
			parts[i] = strconv.Itoa(d)
		}
		fb.advanceDays = strings.Join(parts, ",")
	}
	return fb
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}

func optionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseDayList(s string) ([]int, error) {
	days := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("%d is not a positive day count", n)
		}
		days = append(days, n)
	}
	return days, nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalInt(lo, hi int) func(string) error {
	return func(s string) error {
		n, err := optionalInt(s)
		if err != nil {
			return fmt.Errorf("enter a whole number")
		}
		if strings.TrimSpace(s) != "" && (n < lo || n > hi) {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

func validateTarget(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return fmt.Errorf("target must be a positive number")
	}
	if v > model.NumericCap {
		return fmt.Errorf("target must not exceed %d", model.NumericCap)
	}
	return nil
}

func validateDayList(s string) error {
	if _, err := parseDayList(s); err != nil {
		return fmt.Errorf("use positive day counts separated by commas")
	}
	return nil
}
