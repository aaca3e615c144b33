// Package tasks implements user-facing mutations of a task collection.
// Every mutation is a versioned read-modify-write that goes through the
// same store and lease as the orchestrator.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/cyclic-tasks/internal/cycle"
	"github.com/nhle/cyclic-tasks/internal/lease"
	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/ratelimit"
	"github.com/nhle/cyclic-tasks/internal/store"
)

var (
	// ErrTaskNotFound is returned when a task ID is not in the collection.
	ErrTaskNotFound = errors.New("task not found")

	// ErrConflict is returned when every attempt lost the version race.
	ErrConflict = errors.New("task collection is busy, try again")
)

// Outcome classifies a value change.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeBlocked Outcome = "blocked"
)

// ChangeResult reports a value change. A blocked change leaves the task
// exactly as it was.
type ChangeResult struct {
	Outcome Outcome          `json:"outcome"`
	Task    model.Task       `json:"task"`
	Limit   ratelimit.Result `json:"limit"`
}

const (
	defaultMaxRetries = 3
	defaultLeaseTTL   = 30 * time.Second
)

// Config holds the Service's tunables. Zero values select defaults.
type Config struct {
	MaxRetries int
	Locker     lease.Locker
	LeaseTTL   time.Duration
	Clock      func() time.Time
}

// Service mutates task collections.
type Service struct {
	store  store.Store
	cfg    Config
	logger *zap.SugaredLogger
}

// NewService creates a Service.
func NewService(s store.Store, cfg Config, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{store: s, cfg: cfg, logger: logger}
}

// List returns the user's tasks with missing fields defaulted. It does
// not reset cycles; run the orchestrator for that.
func (s *Service) List(ctx context.Context, userID string) ([]model.Task, error) {
	tasks, _, err := s.store.LoadTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.cfg.Clock()
	for i := range tasks {
		tasks[i].Normalize(now)
	}
	return tasks, nil
}

// Create validates the draft and appends a new task with a fresh cycle.
func (s *Service) Create(ctx context.Context, userID string, draft model.TaskDraft) (model.Task, error) {
	var created model.Task

	err := s.mutate(ctx, userID, func(tasks []model.Task, now time.Time) ([]model.Task, bool, error) {
		task := model.Task{
			ID:          uuid.New().String(),
			LastUpdated: now,
			ActivityLog: []int64{},
			History:     []model.HistoryEntry{},
			SortOrder:   len(tasks),
		}
		draft.Apply(&task)
		if err := task.Validate(); err != nil {
			return nil, false, err
		}
		task.Normalize(now)

		created = task
		return append(tasks, task), true, nil
	})
	if err != nil {
		return model.Task{}, err
	}

	s.logger.Infow("Task created", "user", userID, "task", created.ID, "frequency", created.Frequency)
	return created, nil
}

// Edit replaces the editable fields of a task. Changing the task type
// zeroes the current value. The cycle start is kept, so a frequency
// change is evaluated against the existing cycle on the next pass.
func (s *Service) Edit(ctx context.Context, userID, id string, draft model.TaskDraft) (model.Task, error) {
	var edited model.Task

	err := s.mutate(ctx, userID, func(tasks []model.Task, now time.Time) ([]model.Task, bool, error) {
		i, err := indexOf(tasks, id)
		if err != nil {
			return nil, false, err
		}

		task := tasks[i].Clone()
		oldType := task.Type
		draft.Apply(&task)
		if err := task.Validate(); err != nil {
			return nil, false, err
		}
		if task.Type != oldType {
			task.CurrentValue = 0
		}
		task.CurrentValue = task.Clamp(task.CurrentValue)

		tasks[i] = task
		edited = task
		return tasks, true, nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return edited, nil
}

// Contribute adds delta to the task's current value. Increments are
// subject to the task's rate limit and recorded in its activity log.
func (s *Service) Contribute(ctx context.Context, userID, id string, delta float64) (ChangeResult, error) {
	return s.changeValue(ctx, userID, id, func(current float64) float64 {
		return current + delta
	})
}

// SetValue sets the task's current value, as a checkbox toggle does for
// BOOLEAN tasks. Raising the value counts as a contribution.
func (s *Service) SetValue(ctx context.Context, userID, id string, value float64) (ChangeResult, error) {
	return s.changeValue(ctx, userID, id, func(float64) float64 {
		return value
	})
}

func (s *Service) changeValue(ctx context.Context, userID, id string, next func(float64) float64) (ChangeResult, error) {
	var result ChangeResult

	err := s.mutate(ctx, userID, func(tasks []model.Task, now time.Time) ([]model.Task, bool, error) {
		i, err := indexOf(tasks, id)
		if err != nil {
			return nil, false, err
		}

		task := tasks[i].Clone()
		task.Normalize(now)
		// A contribution always lands in the cycle that is current now.
		task, _ = cycle.ResetIfDue(task, now)

		raw := next(task.CurrentValue)
		if task.Type == model.TaskTypeBoolean && raw != math.Trunc(raw) {
			return nil, false, fmt.Errorf("%w: %q only takes whole values", model.ErrInvalidTask, task.Title)
		}
		value := task.Clamp(raw)
		increment := value > task.CurrentValue

		result.Limit = ratelimit.Check(task, now)
		if increment && !result.Limit.Allowed {
			result.Outcome = OutcomeBlocked
			result.Task = tasks[i]
			return nil, false, nil
		}

		if increment {
			task.ActivityLog = append(task.ActivityLog, now.UnixMilli())
			result.Limit = ratelimit.Check(task, now)
		}
		task.CurrentValue = value

		tasks[i] = task
		result.Outcome = OutcomeApplied
		result.Task = task
		return tasks, true, nil
	})
	if err != nil {
		return ChangeResult{}, err
	}

	if result.Outcome == OutcomeBlocked {
		s.logger.Debugw("Contribution blocked by rate limit", "user", userID, "task", id, "next", result.Limit.NextAvailable)
	}
	return result, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.mutate(ctx, userID, func(tasks []model.Task, _ time.Time) ([]model.Task, bool, error) {
		i, err := indexOf(tasks, id)
		if err != nil {
			return nil, false, err
		}
		return slices.Delete(tasks, i, i+1), true, nil
	})
}

// RenameGroup moves every task in group from to group to.
func (s *Service) RenameGroup(ctx context.Context, userID, from, to string) (int, error) {
	if to == "" {
		return 0, fmt.Errorf("%w: group name is required", model.ErrInvalidTask)
	}

	renamed := 0
	err := s.mutate(ctx, userID, func(tasks []model.Task, _ time.Time) ([]model.Task, bool, error) {
		renamed = 0
		for i := range tasks {
			if tasks[i].Group == from {
				tasks[i].Group = to
				renamed++
			}
		}
		return tasks, renamed > 0, nil
	})
	return renamed, err
}

// Replace validates and stores a whole collection, as an import does.
func (s *Service) Replace(ctx context.Context, userID string, incoming []model.Task) error {
	return s.mutate(ctx, userID, func(_ []model.Task, now time.Time) ([]model.Task, bool, error) {
		out := make([]model.Task, 0, len(incoming))
		seen := make(map[string]bool, len(incoming))
		for _, t := range incoming {
			task := t.Clone()
			if task.ID == "" {
				task.ID = uuid.New().String()
			}
			if seen[task.ID] {
				return nil, false, fmt.Errorf("%w: duplicate id %s", model.ErrInvalidTask, task.ID)
			}
			seen[task.ID] = true
			task.Normalize(now)
			if err := task.Validate(); err != nil {
				return nil, false, fmt.Errorf("task %s: %w", task.ID, err)
			}
			out = append(out, task)
		}
		return out, true, nil
	})
}

// SetWebhook stores the user's reminder endpoint. An empty endpoint
// disables reminders.
func (s *Service) SetWebhook(ctx context.Context, userID, endpoint string) (model.User, error) {
	user := model.User{ID: userID, WebhookURL: endpoint}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("saving webhook for %s: %w", userID, err)
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// mutate loads the collection, applies fn, and saves the result under
// the loaded version, retrying from a fresh load on conflict. fn may
// report that nothing needs saving.
func (s *Service) mutate(
	ctx context.Context,
	userID string,
	fn func(tasks []model.Task, now time.Time) ([]model.Task, bool, error),
) error {
	if s.cfg.Locker != nil {
		release, err := s.cfg.Locker.Acquire(ctx, "user:"+userID, s.cfg.LeaseTTL)
		if err != nil {
			return fmt.Errorf("leasing user %s: %w", userID, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warnw("Releasing user lease failed", "user", userID, "error", err)
			}
		}()
	}

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		tasks, version, err := s.store.LoadTasks(ctx, userID)
		if err != nil {
			return err
		}

		updated, save, err := fn(tasks, s.cfg.Clock())
		if err != nil {
			return err
		}
		if !save {
			return nil
		}

		_, err = s.store.SaveTasks(ctx, userID, updated, version)
		if errors.Is(err, store.ErrConflict) {
			s.logger.Debugw("Version conflict, retrying", "user", userID, "attempt", attempt)
			continue
		}
		return err
	}

	return fmt.Errorf("user %s: %w", userID, ErrConflict)
}

func indexOf(tasks []model.Task, id string) (int, error) {
	i := slices.IndexFunc(tasks, func(t model.Task) bool { return t.ID == id })
	if i < 0 {
		return -1, fmt.Errorf("%s: %w", id, ErrTaskNotFound)
	}
	return i, nil
}
