package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cyclic-tasks/internal/lease"
	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/store"
	"github.com/nhle/cyclic-tasks/tests/testutil"
)

// racingStore lets another writer land just before the next saves for
// selected users.
type racingStore struct {
	store.Store

	mu    sync.Mutex
	races map[string]int
}

func (s *racingStore) SaveTasks(ctx context.Context, userID string, tasks []model.Task, expected store.Version) (store.Version, error) {
	s.mu.Lock()
	race := s.races[userID] > 0
	if race {
		s.races[userID]--
	}
	s.mu.Unlock()

	if race {
		current, v, err := s.Store.LoadTasks(ctx, userID)
		if err != nil {
			return 0, err
		}
		if _, err := s.Store.SaveTasks(ctx, userID, current, v); err != nil {
			return 0, err
		}
	}
	return s.Store.SaveTasks(ctx, userID, tasks, expected)
}

func seedUser(t *testing.T, s store.Store, userID, webhook string, tasks ...model.Task) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertUser(ctx, model.User{ID: userID, WebhookURL: webhook}))
	_, err := s.SaveTasks(ctx, userID, tasks, 0)
	require.NoError(t, err)
}

func newRunner(s store.Store, d *recordingDeliverer, cfg Config) *Runner {
	if cfg.Clock == nil {
		cfg.Clock = testutil.FixedClock(monday)
	}
	return NewRunner(s, d, cfg, nil)
}

func TestRunUserPersistsAndDoesNotRepeat(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedUser(t, s, "alice", "https://hooks.example/notify", remindedTask("t1", monday.Add(-time.Hour)))
	d := &recordingDeliverer{}
	r := newRunner(s, d, Config{})
	ctx := context.Background()

	rep, err := r.RunUser(ctx, "alice", Options{Notify: true})
	require.NoError(t, err)
	assert.True(t, rep.Changed)
	assert.Equal(t, 1, rep.Pushes)
	assert.Equal(t, store.Version(2), rep.Version)

	tasks, _, err := s.LoadTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", tasks[0].PushConfig.LastPushDate)

	rep, err = r.RunUser(ctx, "alice", Options{Notify: true})
	require.NoError(t, err)
	assert.False(t, rep.Changed)
	assert.Zero(t, rep.Pushes)
	assert.Equal(t, store.Version(2), rep.Version)
	assert.Equal(t, 1, d.count())

	sent, err := s.ListNotifications(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Delivered)
	assert.Equal(t, model.ChannelWebhook, sent[0].Channel)
}

func TestRunUserConflictDoesNotDuplicateDelivery(t *testing.T) {
	s := &racingStore{Store: testutil.NewTestStore(t), races: map[string]int{"alice": 1}}
	seedUser(t, s.Store, "alice", "https://hooks.example/notify", remindedTask("t1", monday.Add(-time.Hour)))
	d := &recordingDeliverer{}
	r := newRunner(s, d, Config{})
	ctx := context.Background()

	rep, err := r.RunUser(ctx, "alice", Options{Notify: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Attempts)
	assert.True(t, rep.Changed)
	assert.Equal(t, 1, rep.Pushes)
	assert.Equal(t, 1, d.count())

	tasks, v, err := s.LoadTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, store.Version(3), v)
	assert.Equal(t, "2024-03-04", tasks[0].PushConfig.LastPushDate)

	sent, err := s.ListNotifications(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, sent, 1)
}

func TestRunUserRetriesExhausted(t *testing.T) {
	s := &racingStore{Store: testutil.NewTestStore(t), races: map[string]int{"alice": 10}}
	seedUser(t, s.Store, "alice", "", testutil.NumericTask("t1", model.FrequencyDaily, 1, monday.AddDate(0, 0, -1)))
	r := newRunner(s, &recordingDeliverer{}, Config{})

	rep, err := r.RunUser(context.Background(), "alice", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
	assert.Equal(t, defaultMaxRetries, rep.Attempts)
	assert.False(t, rep.Changed)
}

func TestRunUserLeaseHeld(t *testing.T) {
	s := testutil.NewTestStore(t)
	locker := lease.NewStoreLocker(s)
	r := newRunner(s, &recordingDeliverer{}, Config{Locker: locker})
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "user:alice", time.Minute)
	require.NoError(t, err)

	_, err = r.RunUser(ctx, "alice", Options{})
	assert.True(t, errors.Is(err, lease.ErrHeld))

	require.NoError(t, release(ctx))
	_, err = r.RunUser(ctx, "alice", Options{})
	assert.NoError(t, err)

	// The runner gives its own lease back.
	again, err := locker.Acquire(ctx, "user:alice", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

// gateDeliverer blocks every delivery until open is closed.
type gateDeliverer struct {
	recordingDeliverer
	entered chan struct{}
	open    chan struct{}
}

func (d *gateDeliverer) Deliver(ctx context.Context, endpoint, title, body string) error {
	select {
	case d.entered <- struct{}{}:
	default:
	}
	<-d.open
	return d.recordingDeliverer.Deliver(ctx, endpoint, title, body)
}

func TestRunUserSeparateRunnersSendOnce(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedUser(t, s, "alice", "https://hooks.example/notify",
		remindedTask("t1", monday.Add(-time.Hour)),
		remindedTask("t2", monday.Add(-time.Hour)),
	)
	ctx := context.Background()

	// Each runner has its own locker, like two processes sharing the
	// database file.
	d := &gateDeliverer{entered: make(chan struct{}, 1), open: make(chan struct{})}
	first := NewRunner(s, d, Config{Locker: lease.NewStoreLocker(s), Clock: testutil.FixedClock(monday)}, nil)
	second := NewRunner(s, d, Config{Locker: lease.NewStoreLocker(s), Clock: testutil.FixedClock(monday)}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := first.RunUser(ctx, "alice", Options{Notify: true})
		done <- err
	}()
	<-d.entered

	_, err := second.RunUser(ctx, "alice", Options{Notify: true})
	assert.True(t, errors.Is(err, lease.ErrHeld))

	close(d.open)
	require.NoError(t, <-done)

	rep, err := second.RunUser(ctx, "alice", Options{Notify: true})
	require.NoError(t, err)
	assert.Zero(t, rep.Pushes)
	assert.Equal(t, 2, d.count())
}

func TestRunUserUnknownUser(t *testing.T) {
	s := testutil.NewTestStore(t)
	r := newRunner(s, &recordingDeliverer{}, Config{})

	rep, err := r.RunUser(context.Background(), "ghost", Options{Notify: true})
	require.NoError(t, err)
	assert.Empty(t, rep.Tasks)
	assert.False(t, rep.Changed)
	assert.Equal(t, store.Version(0), rep.Version)
}

func TestRunUserRecordsFailedDelivery(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedUser(t, s, "alice", "https://hooks.example/notify", remindedTask("t1", monday.Add(-time.Hour)))
	d := &recordingDeliverer{fail: map[string]bool{"Gym": true}}
	r := newRunner(s, d, Config{})
	ctx := context.Background()

	rep, err := r.RunUser(ctx, "alice", Options{Notify: true})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failures)
	assert.False(t, rep.Changed)

	sent, err := s.ListNotifications(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.False(t, sent[0].Delivered)
	assert.Contains(t, sent[0].Error, "500")
}

func TestRunUserConflictDoesNotRetryFailedDelivery(t *testing.T) {
	s := &racingStore{Store: testutil.NewTestStore(t), races: map[string]int{"alice": 1}}
	seedUser(t, s.Store, "alice", "https://hooks.example/notify",
		remindedTask("t1", monday.Add(-time.Hour)),
		remindedTask("t2", monday.Add(-time.Hour)),
	)
	d := &recordingDeliverer{fail: map[string]bool{"Gym t1": true}}
	r := newRunner(s, d, Config{})
	ctx := context.Background()

	rep, err := r.RunUser(ctx, "alice", Options{Notify: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Attempts)
	assert.Equal(t, 1, rep.Pushes)
	assert.Equal(t, 1, rep.Failures)
	assert.Equal(t, 2, d.count(), "each reminder is attempted once")

	tasks, _, err := s.LoadTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, tasks[0].PushConfig.LastPushDate)
	assert.Equal(t, "2024-03-04", tasks[1].PushConfig.LastPushDate)

	sent, err := s.ListNotifications(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, sent, 2)
}

func TestRunAllSummary(t *testing.T) {
	base := testutil.NewTestStore(t)
	s := &racingStore{Store: base, races: map[string]int{"carol": 10}}

	yesterday := monday.AddDate(0, 0, -1)
	seedUser(t, base, "alice", "https://hooks.example/notify",
		testutil.NumericTask("a1", model.FrequencyDaily, 2, yesterday),
		remindedTask("a2", monday.Add(-time.Hour)),
	)
	seedUser(t, base, "bob", "", testutil.NumericTask("b1", model.FrequencyMonthly, 2, monday.Add(-time.Hour)))
	seedUser(t, base, "carol", "", testutil.NumericTask("c1", model.FrequencyDaily, 2, yesterday))

	d := &recordingDeliverer{}
	r := newRunner(s, d, Config{Concurrency: 2})

	sum, err := r.RunAll(context.Background(), Options{Notify: true})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.ProcessedUsers)
	assert.Equal(t, 1, sum.UpdatedUsers)
	assert.Equal(t, 1, sum.Resets)
	assert.Equal(t, 1, sum.Pushes)
	assert.Equal(t, []string{"carol"}, sum.Skipped)
	assert.Contains(t, sum.Logs, `alice: reset "Task a1"`)
	assert.Contains(t, sum.Logs, `alice: reminder sent for "Gym a2"`)
}

func TestRunAllCancelled(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedUser(t, s, "alice", "")
	r := newRunner(s, &recordingDeliverer{}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RunAll(ctx, Options{})
	assert.Error(t, err)
}
