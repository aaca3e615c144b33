package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/cyclic-tasks/internal/lease"
	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/notify"
	"github.com/nhle/cyclic-tasks/internal/store"
)

// ErrRetriesExhausted is returned when every save attempt of a run lost
// the version race. Callers skip the user until the next run.
var ErrRetriesExhausted = errors.New("retries exhausted on concurrent modification")

const (
	defaultMaxRetries  = 3
	defaultConcurrency = 4
	defaultLeaseTTL    = 30 * time.Second
)

// Config holds the Runner's tunables. Zero values select defaults.
type Config struct {
	MaxRetries  int
	Concurrency int

	// Locker, when set, serializes runs for the same user on top of the
	// version check.
	Locker   lease.Locker
	LeaseTTL time.Duration

	// Clock returns the current instant in the user-facing time zone.
	Clock func() time.Time
}

// Report describes one user's run.
type Report struct {
	UserID   string
	Tasks    []model.Task
	Version  store.Version
	Changed  bool
	Attempts int
	Resets   int
	Pushes   int
	Failures int
	Events   []string
}

// Summary aggregates a run over all users.
type Summary struct {
	ProcessedUsers int      `json:"processedUsers"`
	UpdatedUsers   int      `json:"updatedUsers"`
	Resets         int      `json:"resets"`
	Pushes         int      `json:"pushes"`
	Failures       int      `json:"failures"`
	Skipped        []string `json:"skipped"`
	Logs           []string `json:"logs"`
}

// Runner loads, evaluates, and saves user collections under optimistic
// concurrency.
type Runner struct {
	store  store.Store
	pass   *Pass
	cfg    Config
	logger *zap.SugaredLogger
}

// NewRunner creates a Runner.
func NewRunner(s store.Store, d notify.Deliverer, cfg Config, logger *zap.SugaredLogger) *Runner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Runner{
		store:  s,
		pass:   NewPass(d, logger),
		cfg:    cfg,
		logger: logger,
	}
}

// Now returns the Runner's current instant.
func (r *Runner) Now() time.Time {
	return r.cfg.Clock()
}

// RunUser evaluates one user's collection and persists it when anything
// changed. A save that loses the version race is retried from a fresh
// load; reminders sent or failed in a lost attempt are not sent again.
func (r *Runner) RunUser(ctx context.Context, userID string, opts Options) (Report, error) {
	report := Report{UserID: userID}

	if r.cfg.Locker != nil {
		release, err := r.cfg.Locker.Acquire(ctx, "user:"+userID, r.cfg.LeaseTTL)
		if err != nil {
			return report, fmt.Errorf("leasing user %s: %w", userID, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warnw("Releasing user lease failed", "user", userID, "error", err)
			}
		}()
	}

	user, err := r.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		user = &model.User{ID: userID}
	} else if err != nil {
		return report, fmt.Errorf("loading user %s: %w", userID, err)
	}

	now := r.cfg.Clock()
	delivered := make(map[string]bool)
	failed := make(map[string]bool)

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		report.Attempts = attempt

		tasks, version, err := r.store.LoadTasks(ctx, userID)
		if err != nil {
			return report, fmt.Errorf("loading tasks for %s: %w", userID, err)
		}

		res := r.pass.Evaluate(ctx, Input{
			User:      *user,
			Tasks:     tasks,
			Now:       now,
			Options:   opts,
			Delivered: delivered,
			Failed:    failed,
		})
		r.audit(ctx, userID, res.Deliveries, now)
		for _, d := range res.Deliveries {
			if d.Err != nil {
				failed[d.TaskID] = true
			} else {
				delivered[d.TaskID] = true
			}
		}

		report.Pushes += res.Pushes()
		report.Failures += res.Failures()
		report.Events = append(report.Events, res.Events...)
		report.Tasks = res.Tasks
		report.Resets = res.Resets

		if !res.Changed {
			report.Version = version
			return report, nil
		}

		newVersion, err := r.store.SaveTasks(ctx, userID, res.Tasks, version)
		if errors.Is(err, store.ErrConflict) {
			r.logger.Debugw("Version conflict, retrying", "user", userID, "attempt", attempt)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("saving tasks for %s: %w", userID, err)
		}

		report.Version = newVersion
		report.Changed = true
		return report, nil
	}

	if len(delivered) > 0 {
		r.logger.Warnw("Reminders sent but not stamped", "user", userID, "tasks", len(delivered))
	}
	report.Resets = 0
	report.Tasks = nil
	return report, fmt.Errorf("user %s: %w", userID, ErrRetriesExhausted)
}

// RunAll runs every known user with bounded concurrency. Per-user
// failures are logged and reported as skipped; only cancellation of ctx
// aborts the run.
func (r *Runner) RunAll(ctx context.Context, opts Options) (Summary, error) {
	summary := Summary{Skipped: []string{}, Logs: []string{}}

	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing users: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, u := range users {
		g.Go(func() error {
			rep, err := r.RunUser(gctx, u.ID, opts)

			mu.Lock()
			defer mu.Unlock()

			summary.Pushes += rep.Pushes
			summary.Failures += rep.Failures
			for _, e := range rep.Events {
				summary.Logs = append(summary.Logs, u.ID+": "+e)
			}

			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				summary.Skipped = append(summary.Skipped, u.ID)
				summary.Logs = append(summary.Logs, fmt.Sprintf("%s: skipped: %v", u.ID, err))
				r.logger.Warnw("Skipping user", "user", u.ID, "error", err)
				return nil
			}

			summary.ProcessedUsers++
			summary.Resets += rep.Resets
			if rep.Changed {
				summary.UpdatedUsers++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	sort.Strings(summary.Skipped)
	r.logger.Infow("Cycle run complete",
		"processed", summary.ProcessedUsers,
		"updated", summary.UpdatedUsers,
		"resets", summary.Resets,
		"pushes", summary.Pushes,
		"failures", summary.Failures,
		"skipped", len(summary.Skipped),
	)
	return summary, nil
}

// audit records every delivery actually attempted. Audit failures are
// logged and never affect the run.
func (r *Runner) audit(ctx context.Context, userID string, deliveries []Delivery, now time.Time) {
	for _, d := range deliveries {
		if d.Replayed {
			continue
		}
		n := model.Notification{
			UserID:    userID,
			TaskID:    d.TaskID,
			Title:     d.Title,
			Body:      d.Body,
			Channel:   notify.ChannelOf(d.Endpoint),
			Delivered: d.Err == nil,
			CreatedAt: now,
		}
		if d.Err != nil {
			n.Error = d.Err.Error()
		}
		if err := r.store.RecordNotification(ctx, n); err != nil {
			r.logger.Warnw("Recording notification failed", "user", userID, "task", d.TaskID, "error", err)
		}
	}
}
