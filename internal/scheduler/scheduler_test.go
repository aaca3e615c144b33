package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cyclic-tasks/internal/orchestrator"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	opts  []orchestrator.Options
	err   error
}

func (f *fakeRunner) RunAll(_ context.Context, opts orchestrator.Options) (orchestrator.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.opts = append(f.opts, opts)
	return orchestrator.Summary{ProcessedUsers: f.calls}, f.err
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// waitRuns blocks until the scheduler has completed at least n runs.
func waitRuns(t *testing.T, s *Scheduler, n int) Status {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Status().Runs >= n
	}, 5*time.Second, 5*time.Millisecond)
	return s.Status()
}

func TestSchedulerRunsImmediatelyAndOnTrigger(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, time.Hour, nil)

	assert.False(t, s.Trigger(), "nothing to trigger before Start")

	s.Start(context.Background())
	defer s.Stop()

	first := waitRuns(t, s, 1)
	require.NoError(t, first.Error)
	assert.Equal(t, 1, first.LastSummary.ProcessedUsers)

	assert.True(t, s.Trigger())
	status := waitRuns(t, s, 2)
	assert.Equal(t, 2, status.LastSummary.ProcessedUsers)
	assert.True(t, status.Started)
	assert.False(t, status.LastRun.IsZero())

	require.Eventually(t, func() bool {
		return s.Status().State == StateIdle
	}, 5*time.Second, 5*time.Millisecond)

	for _, o := range runner.opts {
		assert.True(t, o.Notify)
	}
}

func TestSchedulerRecordsErrors(t *testing.T) {
	runner := &fakeRunner{err: errors.New("store offline")}
	s := New(runner, time.Hour, nil)

	s.Start(context.Background())
	defer s.Stop()

	status := waitRuns(t, s, 1)
	assert.Error(t, status.Error)
	assert.Equal(t, StateError, status.State)
	assert.Equal(t, "error", status.State.String())
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, time.Hour, nil)

	s.Start(context.Background())
	s.Start(context.Background())
	waitRuns(t, s, 1)

	s.Stop()
	s.Stop()
	assert.Equal(t, 1, runner.count())
	assert.False(t, s.Status().Started)
	assert.False(t, s.Trigger())
}

func TestSchedulerRestartsAfterStop(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, time.Hour, nil)

	s.Start(context.Background())
	waitRuns(t, s, 1)
	s.Stop()

	s.Start(context.Background())
	waitRuns(t, s, 2)
	s.Stop()

	assert.Equal(t, 2, runner.count())
}

func TestSchedulerStopsWithContext(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	waitRuns(t, s, 1)
	cancel()

	require.Eventually(t, func() bool {
		return !s.Status().Started
	}, 5*time.Second, 5*time.Millisecond)

	// A stopped-by-context scheduler can be started again.
	s.Start(context.Background())
	defer s.Stop()
	assert.True(t, s.Status().Started)
}
