package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func parseCmd() *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "parse <description>",
		Short: "Turn a free-text description into a task",
		Long: `Ask Claude to turn a description into a task draft. The draft is
printed as JSON; with --create it is saved for --user.

Requires ANTHROPIC_API_KEY or the keyring entry "anthropic-api-key".

Examples:
  cyclic parse "read 30 pages every week, remind me on Friday"
  cyclic parse --create "pay rent by the 5th each month"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			parser := newParser(e.cfg.AI)
			if parser == nil {
				return errors.New("no Anthropic API key configured")
			}

			draft, err := parser.Parse(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if !create {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(draft)
			}

			t, err := e.tasks.Create(ctx, userFlag, draft)
			if err != nil {
				return err
			}
			fmt.Printf("created %s %q (%s)\n", t.ID, t.Title, t.Frequency)
			return nil
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "save the parsed task")
	return cmd
}
