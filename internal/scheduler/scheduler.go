// Package scheduler runs the orchestrator over all users on a fixed
// interval, with on-demand triggers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/cyclic-tasks/internal/orchestrator"
)

// CycleRunner evaluates every user's collection.
type CycleRunner interface {
	RunAll(ctx context.Context, opts orchestrator.Options) (orchestrator.Summary, error)
}

// State is the scheduler's current activity.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Status describes the loop and its most recent run.
type Status struct {
	Started     bool
	State       State
	Runs        int
	LastRun     time.Time
	LastSummary orchestrator.Summary
	Error       error
}

// passTimeout is the maximum time allowed for a single run over all users.
const passTimeout = 5 * time.Minute

const defaultInterval = time.Hour

// Scheduler triggers cycle runs in the background. It may be started
// again after Stop.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	opts     orchestrator.Options
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	status    Status
	running   bool
	triggerCh chan struct{}
	stopCh    chan struct{}
	done      chan struct{}
}

// New creates a Scheduler. Runs always send reminders.
func New(runner CycleRunner, interval time.Duration, logger *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scheduler{
		runner:    runner,
		interval:  interval,
		opts:      orchestrator.Options{Notify: true},
		logger:    logger,
		triggerCh: make(chan struct{}, 1),
	}
}

// Start runs immediately and then on every interval until ctx is done or
// Stop is called. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(ctx, s.stopCh, s.done)
}

// Stop halts the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stopCh, s.done
	close(stop)
	s.mu.Unlock()

	<-done
}

// Trigger requests an immediate run and reports whether the loop is
// running to serve it. Requests made while one is pending are merged.
func (s *Scheduler) Trigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}

	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
	return true
}

// Status returns a snapshot of the scheduler's state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Started = s.running
	return st
}

func (s *Scheduler) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	defer func() {
		// Exiting on ctx leaves the scheduler stopped; a later Start
		// launches a fresh loop.
		s.mu.Lock()
		if s.done == done {
			s.running = false
		}
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.setState(StateRunning)

	runCtx, cancel := context.WithTimeout(ctx, passTimeout)
	defer cancel()

	summary, err := s.runner.RunAll(runCtx, s.opts)

	s.mu.Lock()
	s.status.Runs++
	s.status.LastRun = time.Now()
	s.status.LastSummary = summary
	s.status.Error = err
	if err != nil {
		s.status.State = StateError
	} else {
		s.status.State = StateIdle
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Errorw("Scheduled cycle run failed", "error", err)
		return
	}
	s.logger.Debugw("Scheduled cycle run finished", "processed", summary.ProcessedUsers, "pushes", summary.Pushes)
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = state
}
