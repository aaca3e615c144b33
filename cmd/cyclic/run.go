package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/cyclic-tasks/internal/orchestrator"
)

func runCmd() *cobra.Command {
	var (
		all      bool
		noNotify bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reset finished cycles and send due reminders",
		Long: `Run one cycle pass. Without --all only the --user collection is
processed; with --all every known user is, which is what a cron job should
invoke.

Examples:
  cyclic run --all
  cyclic run --user alice --no-notify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			opts := orchestrator.Options{Notify: !noNotify}

			if all {
				summary, err := e.runner.RunAll(ctx, opts)
				if err != nil {
					return err
				}
				if asJSON {
					return json.NewEncoder(os.Stdout).Encode(summary)
				}
				fmt.Printf("processed %d users, updated %d, %d resets, %d reminders, %d failures\n",
					summary.ProcessedUsers, summary.UpdatedUsers, summary.Resets, summary.Pushes, summary.Failures)
				for _, line := range summary.Logs {
					fmt.Println("  " + line)
				}
				return nil
			}

			rep, err := e.runner.RunUser(ctx, userFlag, opts)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(rep)
			}
			fmt.Printf("%s: %d resets, %d reminders, %d failures (version %d)\n",
				rep.UserID, rep.Resets, rep.Pushes, rep.Failures, rep.Version)
			for _, line := range rep.Events {
				fmt.Println("  " + line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "process every user")
	cmd.Flags().BoolVar(&noNotify, "no-notify", false, "only reset cycles, send no reminders")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}
