// Package orchestrator applies cycle resets and reminder delivery to a
// user's task collection. The scheduler, the HTTP API, and the TUI all
// evaluate collections through the same Pass and Runner.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/cyclic-tasks/internal/calendar"
	"github.com/nhle/cyclic-tasks/internal/cycle"
	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/notify"
)

// Options controls one evaluation of a collection.
type Options struct {
	// Notify enables the reminder step. A reset-only pass leaves it off.
	Notify bool
}

// Input is one collection to evaluate.
type Input struct {
	User  model.User
	Tasks []model.Task
	Now   time.Time

	Options

	// Delivered holds IDs of tasks whose reminder was already sent
	// earlier in the same run. They are stamped without sending again.
	Delivered map[string]bool

	// Failed holds IDs of tasks whose reminder already failed earlier in
	// the same run. They are left unstamped and not sent again.
	Failed map[string]bool
}

// Delivery is one reminder produced by a pass.
type Delivery struct {
	TaskID   string
	Endpoint string
	Title    string
	Body     string
	Err      error

	// Replayed is true when the reminder was sent by an earlier attempt
	// and only the stamp was reapplied.
	Replayed bool
}

// Result is the outcome of evaluating a collection.
type Result struct {
	Tasks      []model.Task
	Changed    bool
	Resets     int
	Deliveries []Delivery
	Events     []string
}

// Pushes counts reminders sent successfully by this pass.
func (r Result) Pushes() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err == nil && !d.Replayed {
			n++
		}
	}
	return n
}

// Failures counts reminders whose delivery failed.
func (r Result) Failures() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err != nil {
			n++
		}
	}
	return n
}

// Pass evaluates task collections. It holds no state between calls.
type Pass struct {
	deliverer notify.Deliverer
	logger    *zap.SugaredLogger
}

// NewPass creates a Pass. A nil deliverer disables reminders.
func NewPass(d notify.Deliverer, logger *zap.SugaredLogger) *Pass {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pass{deliverer: d, logger: logger}
}

// Evaluate runs every task through reset and, when enabled, reminder
// delivery. The input slice is not modified.
func (p *Pass) Evaluate(ctx context.Context, in Input) Result {
	res := Result{Tasks: make([]model.Task, 0, len(in.Tasks))}

	for _, original := range in.Tasks {
		task := original.Clone()
		if task.LastUpdated.IsZero() {
			// Persist the defaulted cycle start, otherwise it would move
			// forward on every evaluation and never reset.
			res.Changed = true
		}
		task.Normalize(in.Now)

		task, reset := cycle.ResetIfDue(task, in.Now)
		if reset {
			res.Changed = true
			res.Resets++
			res.Events = append(res.Events, fmt.Sprintf("reset %q", task.Title))
			p.logger.Debugw("Cycle reset", "user", in.User.ID, "task", task.ID, "frequency", task.Frequency)
		}

		if in.Notify {
			if d, ok := p.remind(ctx, in, &task); ok {
				res.Deliveries = append(res.Deliveries, d)
				switch {
				case d.Err != nil:
					res.Events = append(res.Events, fmt.Sprintf("reminder for %q failed: %v", task.Title, d.Err))
				case d.Replayed:
					res.Changed = true
				default:
					res.Changed = true
					res.Events = append(res.Events, fmt.Sprintf("reminder sent for %q", task.Title))
				}
			}
		}

		res.Tasks = append(res.Tasks, task)
	}

	return res
}

// remind decides and delivers one task's reminder. On success the task's
// LastPushDate is stamped with today's date.
func (p *Pass) remind(ctx context.Context, in Input, task *model.Task) (Delivery, bool) {
	endpoint := in.User.WebhookURL
	if endpoint == "" || p.deliverer == nil {
		return Delivery{}, false
	}

	decision := notify.ShouldNotify(*task, in.Now)
	if !decision.Fire {
		return Delivery{}, false
	}

	if in.Failed[task.ID] {
		return Delivery{}, false
	}

	title, body := notify.Compose(*task, decision)
	d := Delivery{TaskID: task.ID, Endpoint: endpoint, Title: title, Body: body}

	if in.Delivered[task.ID] {
		d.Replayed = true
	} else if err := p.deliverer.Deliver(ctx, endpoint, title, body); err != nil {
		d.Err = err
		p.logger.Warnw("Reminder delivery failed", "user", in.User.ID, "task", task.ID, "error", err)
		return d, true
	}

	task.PushConfig.LastPushDate = calendar.FormatDate(in.Now)
	return d, true
}
