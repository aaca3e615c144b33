package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-webhook <url>",
		Short: "Set where reminders are delivered",
		Long: `Set the reminder endpoint for --user. An http(s) URL may contain
{title} and {body} placeholders; without {title} the reminder is appended as
query parameters. A mailto: address files reminders in the configured IMAP
folder. An empty string disables reminders.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			u, err := e.tasks.SetWebhook(ctx, userFlag, args[0])
			if err != nil {
				return err
			}
			if u.WebhookURL == "" {
				fmt.Printf("reminders disabled for %s\n", u.ID)
				return nil
			}
			fmt.Printf("reminders for %s go to %s\n", u.ID, u.WebhookURL)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "notifications",
		Short: "Show recent reminder deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			list, err := e.store.ListNotifications(ctx, userFlag, 20)
			if err != nil {
				return err
			}
			for _, n := range list {
				status := "sent"
				if !n.Delivered {
					status = "failed: " + n.Error
				}
				fmt.Printf("%s  %-8s %s  %s\n", n.CreatedAt.Format("2006-01-02 15:04"), n.Channel, n.Title, status)
			}
			return nil
		},
	})

	return cmd
}
