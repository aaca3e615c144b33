package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/notify"
	"github.com/nhle/cyclic-tasks/internal/orchestrator"
	"github.com/nhle/cyclic-tasks/internal/store"
	"github.com/nhle/cyclic-tasks/internal/tasks"
	"github.com/nhle/cyclic-tasks/internal/ui/taskform"
	"github.com/nhle/cyclic-tasks/tests/testutil"
)

// monday is 2024-03-04.
var monday = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type stubParser struct {
	draft model.TaskDraft
	err   error
}

func (p stubParser) Parse(context.Context, string) (model.TaskDraft, error) {
	return p.draft, p.err
}

type harness struct {
	store *store.SQLiteStore
	sent  *atomic.Int32
	model Model
}

func newHarness(t *testing.T, parser TaskParser, seed ...model.Task) *harness {
	t.Helper()
	ctx := context.Background()

	s := testutil.NewTestStore(t)
	require.NoError(t, s.UpsertUser(ctx, model.User{ID: "alice", WebhookURL: "https://hooks.example/{title}"}))
	_, err := s.SaveTasks(ctx, "alice", seed, 0)
	require.NoError(t, err)

	sent := &atomic.Int32{}
	d := notify.DelivererFunc(func(context.Context, string, string, string) error {
		sent.Add(1)
		return nil
	})
	clock := testutil.FixedClock(monday)
	runner := orchestrator.NewRunner(s, d, orchestrator.Config{Clock: clock}, nil)
	svc := tasks.NewService(s, tasks.Config{Clock: clock}, nil)

	m := New("alice", runner, svc, parser)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return &harness{store: s, sent: sent, model: next.(Model)}
}

// send feeds msg to the model and returns the follow-up command.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// run executes cmd and feeds its message back, one level deep.
func (h *harness) run(cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return h.send(cmd())
}

func (h *harness) load(t *testing.T) {
	t.Helper()
	h.run(h.model.runCycle(false))
	require.False(t, h.model.loading)
}

func press(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func (h *harness) stored(t *testing.T) []model.Task {
	t.Helper()
	ts, _, err := h.store.LoadTasks(context.Background(), "alice")
	require.NoError(t, err)
	return ts
}

func TestLoadResetsFinishedCycles(t *testing.T) {
	done := testutil.NumericTask("t1", model.FrequencyDaily, 2, monday.AddDate(0, 0, -1))
	done.CurrentValue = 2
	h := newHarness(t, nil, done)

	h.load(t)

	require.Len(t, h.model.views, 1)
	assert.Zero(t, h.model.views[0].CurrentValue)
	assert.Equal(t, "1 cycle(s) started fresh", h.model.status)
	assert.Zero(t, h.sent.Load())
	assert.Len(t, h.stored(t)[0].History, 1)
}

func TestPushCheckSendsOnce(t *testing.T) {
	task := testutil.NumericTask("t1", model.FrequencyDaily, 2, monday)
	task.PushConfig = &model.PushConfig{Enabled: true, NotifyOnDueDate: true}
	h := newHarness(t, nil, task)
	h.load(t)

	h.run(h.send(pushCheckMsg{}))
	assert.Equal(t, int32(1), h.sent.Load())
	assert.Equal(t, "1 reminder(s) sent", h.model.status)

	h.run(h.send(press("p")))
	assert.Equal(t, int32(1), h.sent.Load())
}

func TestIncrementAndBlockedContribution(t *testing.T) {
	task := testutil.NumericTask("t1", model.FrequencyWeekly, 5, monday)
	task.LimitConfig = &model.LimitConfig{Period: model.LimitDaily, Count: 1}
	h := newHarness(t, nil, task)
	h.load(t)

	h.run(h.send(press("+")))
	assert.Equal(t, 1.0, h.stored(t)[0].CurrentValue)

	h.run(h.send(press("+")))
	assert.Equal(t, 1.0, h.stored(t)[0].CurrentValue)
	assert.Contains(t, h.model.status, "limit reached")
	assert.False(t, h.model.statusErr)
}

func TestToggleBooleanTask(t *testing.T) {
	task := testutil.NumericTask("t1", model.FrequencyDaily, 1, monday)
	task.Type = model.TaskTypeBoolean
	h := newHarness(t, nil, task)
	h.load(t)

	h.run(h.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}))
	assert.Equal(t, 1.0, h.stored(t)[0].CurrentValue)

	h.load(t)
	h.run(h.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}))
	assert.Zero(t, h.stored(t)[0].CurrentValue)
}

func TestDeleteTask(t *testing.T) {
	h := newHarness(t, nil, testutil.NumericTask("t1", model.FrequencyDaily, 1, monday))
	h.load(t)

	h.run(h.send(press("d")))
	assert.Empty(t, h.stored(t))
	assert.Equal(t, `deleted "Task t1"`, h.model.status)
}

func TestFormSubmissionCreatesTask(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t)

	h.send(press("n"))
	require.Equal(t, ViewForm, h.model.currentView)

	h.run(h.send(taskform.SubmittedMsg{Draft: model.TaskDraft{
		Title: "Journal", Type: model.TaskTypeBoolean, Frequency: model.FrequencyDaily,
	}}))
	assert.Equal(t, ViewList, h.model.currentView)
	stored := h.stored(t)
	require.Len(t, stored, 1)
	assert.Equal(t, "Journal", stored[0].Title)
}

func TestQuickAdd(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t)
	h.send(press("a"))
	assert.True(t, h.model.statusErr)
	assert.Equal(t, ViewList, h.model.currentView)

	h = newHarness(t, stubParser{draft: model.TaskDraft{
		Title: "Water plants", Type: model.TaskTypeBoolean, Frequency: model.FrequencyWeekly,
	}})
	h.load(t)
	h.send(press("a"))
	require.Equal(t, ViewQuickAdd, h.model.currentView)
	h.run(h.send(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, ViewForm, h.model.currentView)

	h = newHarness(t, stubParser{err: errors.New("boom")})
	h.load(t)
	h.send(press("a"))
	h.run(h.send(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, ViewList, h.model.currentView)
	assert.Contains(t, h.model.status, "boom")
}

func TestHeaderStatusCountsUrgency(t *testing.T) {
	soon := testutil.NumericTask("t1", model.FrequencyDaily, 1, monday)
	h := newHarness(t, nil, soon)
	h.load(t)

	assert.Equal(t, "1 tasks · 1 due soon", h.model.headerStatus())
	assert.Contains(t, h.model.View(), "Cycles · alice")
}
