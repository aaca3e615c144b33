package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/orchestrator"
	"github.com/nhle/cyclic-tasks/internal/tasks"
	"github.com/nhle/cyclic-tasks/internal/theme"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage recurring tasks",
	}

	cmd.AddCommand(taskAddCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskContributeCmd())
	cmd.AddCommand(taskDeleteCmd())
	cmd.AddCommand(taskRenameGroupCmd())

	return cmd
}

func taskAddCmd() *cobra.Command {
	var (
		d           model.TaskDraft
		taskType    string
		frequency   string
		limitPeriod string
		limitCount  int
		remind      []int
		remindOnDue bool
	)

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a recurring task",
		Long: `Create a recurring task.

Examples:
  cyclic task add "Stretch" --frequency DAILY
  cyclic task add "Run" --frequency WEEKLY --type NUMERIC --target 20 --unit km --deadline-day 7
  cyclic task add "Pay rent" --frequency MONTHLY --deadline-day 5 --remind 3 --remind-on-due`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			d.Title = args[0]
			d.Type = model.TaskType(strings.ToUpper(taskType))
			d.Frequency = model.Frequency(strings.ToUpper(frequency))
			if limitPeriod != "" {
				d.LimitConfig = &model.LimitConfig{
					Period: model.LimitPeriod(strings.ToUpper(limitPeriod)),
					Count:  limitCount,
				}
			}
			if len(remind) > 0 || remindOnDue {
				d.PushConfig = &model.PushConfig{
					Enabled:         true,
					AdvanceDays:     remind,
					NotifyOnDueDate: remindOnDue,
				}
			}

			t, err := e.tasks.Create(ctx, userFlag, d)
			if err != nil {
				return err
			}
			fmt.Printf("created %s %q\n", t.ID, t.Title)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&d.Description, "description", "", "details")
	f.StringVarP(&d.Group, "group", "g", "", "group name")
	f.StringVar(&d.Unit, "unit", "", "unit for counted tasks")
	f.StringVarP(&taskType, "type", "t", string(model.TaskTypeBoolean), "BOOLEAN or NUMERIC")
	f.StringVarP(&frequency, "frequency", "f", string(model.FrequencyDaily), "DAILY, WEEKLY, MONTHLY, QUARTERLY, YEARLY or CUSTOM")
	f.IntVar(&d.CustomInterval, "interval", 0, "cycle length in days for CUSTOM")
	f.Float64Var(&d.TargetValue, "target", 1, "target value per cycle")
	f.IntVar(&d.DeadlineDay, "deadline-day", 0, "weekday 1-7 (WEEKLY) or day of month")
	f.IntVar(&d.DeadlineMonth, "deadline-month", 0, "month 1-12 (YEARLY)")
	f.StringVar(&limitPeriod, "limit-period", "", "DAILY, WEEKLY or MONTHLY")
	f.IntVar(&limitCount, "limit-count", 1, "increments allowed per limit window")
	f.IntSliceVar(&remind, "remind", nil, "days before the deadline to send reminders")
	f.BoolVar(&remindOnDue, "remind-on-due", false, "send a reminder on the due date")

	return cmd
}

func taskListCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks after resetting finished cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			rep, err := e.runner.RunUser(ctx, userFlag, orchestrator.Options{})
			if err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
				Headers("ID", "GROUP", "TITLE", "FREQ", "PROGRESS", "DEADLINE", "LIMIT")

			for _, v := range tasks.BuildViews(rep.Tasks, e.runner.Now()) {
				if group != "" && !strings.EqualFold(v.Group, group) {
					continue
				}
				t.Row(shortID(v.ID), v.Group, v.Title, string(v.Frequency),
					progress(v), v.DeadlineText, limit(v))
			}
			fmt.Println(t.Render())
			return nil
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "only show this group")
	return cmd
}

func taskContributeCmd() *cobra.Command {
	var set bool

	cmd := &cobra.Command{
		Use:   "contribute <id> [amount]",
		Short: "Add progress to a task (default +1)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			amount := 1.0
			if len(args) == 2 {
				if amount, err = strconv.ParseFloat(args[1], 64); err != nil {
					return fmt.Errorf("invalid amount %q: %w", args[1], err)
				}
			}

			id, err := resolveID(ctx, e, args[0])
			if err != nil {
				return err
			}

			var res tasks.ChangeResult
			if set {
				res, err = e.tasks.SetValue(ctx, userFlag, id, amount)
			} else {
				res, err = e.tasks.Contribute(ctx, userFlag, id, amount)
			}
			if err != nil {
				return err
			}

			if res.Outcome == tasks.OutcomeBlocked {
				return fmt.Errorf("limit reached for %q, try again %s", res.Task.Title, res.Limit.NextAvailable)
			}
			fmt.Printf("%s: %s\n", res.Task.Title, progress(tasks.NewView(res.Task, e.runner.Now())))
			return nil
		},
	}

	cmd.Flags().BoolVar(&set, "set", false, "set the value instead of adding to it")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			id, err := resolveID(ctx, e, args[0])
			if err != nil {
				return err
			}
			if err := e.tasks.Delete(ctx, userFlag, id); err != nil {
				return err
			}
			fmt.Println("deleted", id)
			return nil
		},
	}
}

func taskRenameGroupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename-group <from> <to>",
		Short: "Move every task in a group to a new group name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.tasks.RenameGroup(ctx, userFlag, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("renamed %d task(s)\n", n)
			return nil
		},
	}
}

// resolveID accepts a full task ID or a unique prefix of one.
func resolveID(ctx context.Context, e *env, prefix string) (string, error) {
	list, err := e.tasks.List(ctx, userFlag)
	if err != nil {
		return "", err
	}

	var match string
	for _, t := range list {
		if t.ID == prefix {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("task id %q is ambiguous", prefix)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", tasks.ErrTaskNotFound, prefix)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func progress(v tasks.View) string {
	if v.Type == model.TaskTypeBoolean {
		if v.Complete {
			return "done"
		}
		return "pending"
	}
	s := strconv.FormatFloat(v.CurrentValue, 'f', -1, 64) + "/" + strconv.FormatFloat(v.TargetValue, 'f', -1, 64)
	if v.Unit != "" {
		s += " " + v.Unit
	}
	return s
}

func limit(v tasks.View) string {
	if v.LimitConfig == nil {
		return ""
	}
	if !v.Limit.Allowed {
		return "next " + v.Limit.NextAvailable
	}
	return fmt.Sprintf("%d/%d %s", v.Limit.Count, v.Limit.Max, strings.ToLower(string(v.LimitConfig.Period)))
}
