package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/notify"
	"github.com/nhle/cyclic-tasks/tests/testutil"
)

// monday is 2024-03-04, a Monday.
var monday = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type recordingDeliverer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (d *recordingDeliverer) Deliver(_ context.Context, endpoint, title, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, title)
	for marker := range d.fail {
		if strings.Contains(title, marker) {
			return errors.New("endpoint returned 500")
		}
	}
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

var _ notify.Deliverer = (*recordingDeliverer)(nil)

// remindedTask is a WEEKLY task due Thursday with reminders 1 and 3 days
// ahead, so it fires on Monday.
func remindedTask(id string, lastUpdated time.Time) model.Task {
	task := testutil.NumericTask(id, model.FrequencyWeekly, 5, lastUpdated)
	task.Title = "Gym " + id
	task.DeadlineDay = 4
	task.PushConfig = &model.PushConfig{Enabled: true, AdvanceDays: []int{1, 3}}
	return task
}

func TestEvaluateFiresOncePerDay(t *testing.T) {
	d := &recordingDeliverer{}
	p := NewPass(d, nil)
	user := model.User{ID: "alice", WebhookURL: "https://hooks.example/notify"}

	task := remindedTask("t1", monday.Add(-time.Hour))
	task.PushConfig.LastPushDate = "2024-03-03"

	res := p.Evaluate(context.Background(), Input{
		User: user, Tasks: []model.Task{task}, Now: monday, Options: Options{Notify: true},
	})
	require.Len(t, res.Deliveries, 1)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Pushes())
	assert.Equal(t, "Task reminder: Gym t1", res.Deliveries[0].Title)
	assert.Equal(t, "3 days left (progress: 0/5)", res.Deliveries[0].Body)
	assert.Equal(t, "2024-03-04", res.Tasks[0].PushConfig.LastPushDate)

	// The input is never modified.
	assert.Equal(t, "2024-03-03", task.PushConfig.LastPushDate)

	again := p.Evaluate(context.Background(), Input{
		User: user, Tasks: res.Tasks, Now: monday.Add(6 * time.Hour), Options: Options{Notify: true},
	})
	assert.Empty(t, again.Deliveries)
	assert.False(t, again.Changed)
	assert.Equal(t, 1, d.count())
}

func TestEvaluateFailedDeliveryIsNotStamped(t *testing.T) {
	d := &recordingDeliverer{fail: map[string]bool{"Gym bad": true}}
	p := NewPass(d, nil)
	user := model.User{ID: "alice", WebhookURL: "https://hooks.example/notify"}

	tasks := []model.Task{
		remindedTask("bad", monday.Add(-time.Hour)),
		remindedTask("good", monday.Add(-time.Hour)),
	}

	res := p.Evaluate(context.Background(), Input{
		User: user, Tasks: tasks, Now: monday, Options: Options{Notify: true},
	})
	require.Len(t, res.Deliveries, 2)
	assert.Equal(t, 1, res.Failures())
	assert.Equal(t, 1, res.Pushes())
	assert.Empty(t, res.Tasks[0].PushConfig.LastPushDate)
	assert.Equal(t, "2024-03-04", res.Tasks[1].PushConfig.LastPushDate)

	// The failed task is retried by a later run the same day.
	d.fail = nil
	retry := p.Evaluate(context.Background(), Input{
		User: user, Tasks: res.Tasks, Now: monday.Add(time.Hour), Options: Options{Notify: true},
	})
	require.Len(t, retry.Deliveries, 1)
	assert.Equal(t, "bad", retry.Deliveries[0].TaskID)
	assert.NoError(t, retry.Deliveries[0].Err)
}

func TestEvaluateResetThenNotifies(t *testing.T) {
	d := &recordingDeliverer{}
	p := NewPass(d, nil)
	user := model.User{ID: "alice", WebhookURL: "https://hooks.example/notify"}

	task := remindedTask("t1", monday.AddDate(0, 0, -5))
	task.CurrentValue = 5
	task.ActivityLog = []int64{monday.AddDate(0, 0, -5).UnixMilli()}
	task.PushConfig.LastPushDate = "2024-02-29"

	res := p.Evaluate(context.Background(), Input{
		User: user, Tasks: []model.Task{task}, Now: monday, Options: Options{Notify: true},
	})
	got := res.Tasks[0]
	assert.Equal(t, 1, res.Resets)
	require.Len(t, got.History, 1)
	assert.Equal(t, 5.0, got.History[0].Value)
	assert.True(t, got.History[0].Completed)
	assert.Zero(t, got.CurrentValue)
	assert.Empty(t, got.ActivityLog)
	assert.True(t, monday.Equal(got.LastUpdated))
	assert.Equal(t, "2024-03-04", got.PushConfig.LastPushDate)
	assert.Equal(t, 1, d.count())
}

func TestEvaluateWithoutNotify(t *testing.T) {
	d := &recordingDeliverer{}
	p := NewPass(d, nil)
	user := model.User{ID: "alice", WebhookURL: "https://hooks.example/notify"}

	res := p.Evaluate(context.Background(), Input{
		User: user, Tasks: []model.Task{remindedTask("t1", monday.Add(-time.Hour))}, Now: monday,
	})
	assert.False(t, res.Changed)
	assert.Empty(t, res.Deliveries)
	assert.Zero(t, d.count())
}

func TestEvaluateWithoutEndpoint(t *testing.T) {
	d := &recordingDeliverer{}
	p := NewPass(d, nil)

	res := p.Evaluate(context.Background(), Input{
		User:    model.User{ID: "alice"},
		Tasks:   []model.Task{remindedTask("t1", monday.Add(-time.Hour))},
		Now:     monday,
		Options: Options{Notify: true},
	})
	assert.False(t, res.Changed)
	assert.Zero(t, d.count())
}

func TestEvaluateReplaysDeliveredWithoutSending(t *testing.T) {
	d := &recordingDeliverer{}
	p := NewPass(d, nil)
	user := model.User{ID: "alice", WebhookURL: "https://hooks.example/notify"}

	res := p.Evaluate(context.Background(), Input{
		User:      user,
		Tasks:     []model.Task{remindedTask("t1", monday.Add(-time.Hour))},
		Now:       monday,
		Options:   Options{Notify: true},
		Delivered: map[string]bool{"t1": true},
	})
	require.Len(t, res.Deliveries, 1)
	assert.True(t, res.Deliveries[0].Replayed)
	assert.True(t, res.Changed)
	assert.Zero(t, res.Pushes())
	assert.Equal(t, "2024-03-04", res.Tasks[0].PushConfig.LastPushDate)
	assert.Zero(t, d.count())
}

func TestEvaluateSkipsEarlierFailure(t *testing.T) {
	d := &recordingDeliverer{}
	p := NewPass(d, nil)
	user := model.User{ID: "alice", WebhookURL: "https://hooks.example/notify"}

	res := p.Evaluate(context.Background(), Input{
		User:    user,
		Tasks:   []model.Task{remindedTask("t1", monday.Add(-time.Hour))},
		Now:     monday,
		Options: Options{Notify: true},
		Failed:  map[string]bool{"t1": true},
	})
	assert.Empty(t, res.Deliveries)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Tasks[0].PushConfig.LastPushDate)
	assert.Zero(t, d.count())
}

func TestEvaluateDefaultsMissingFields(t *testing.T) {
	p := NewPass(nil, nil)

	res := p.Evaluate(context.Background(), Input{
		User:  model.User{ID: "alice"},
		Tasks: []model.Task{{ID: "legacy", Title: "Old", Frequency: model.FrequencyDaily}},
		Now:   monday,
	})
	got := res.Tasks[0]
	assert.True(t, res.Changed)
	assert.NotNil(t, got.ActivityLog)
	assert.NotNil(t, got.History)
	assert.Equal(t, model.TaskTypeBoolean, got.Type)
	assert.True(t, monday.Equal(got.LastUpdated))
	assert.Zero(t, res.Resets)
}

func TestEvaluateHistoryIsAppendOnly(t *testing.T) {
	p := NewPass(nil, nil)
	task := testutil.NumericTask("t1", model.FrequencyDaily, 3, monday)
	tasks := []model.Task{task}

	prev := 0
	for day := 0; day < 10; day++ {
		now := monday.AddDate(0, 0, day).Add(time.Duration(day) * time.Hour)
		for run := 0; run < 3; run++ {
			res := p.Evaluate(context.Background(), Input{User: model.User{ID: "alice"}, Tasks: tasks, Now: now})
			tasks = res.Tasks
			assert.GreaterOrEqual(t, len(tasks[0].History), prev)
			prev = len(tasks[0].History)
		}
		tasks[0].CurrentValue = float64(day % 4)
	}
	assert.Equal(t, 9, len(tasks[0].History))
}
