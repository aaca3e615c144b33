package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/cyclic-tasks/internal/model"
)

var Version = "dev"

var (
	configPath string
	userFlag   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cyclic",
		Short:         "Recurring tasks with cycle resets and deadline reminders",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", defaultUser(), "user whose tasks to act on")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tuiCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// defaultUser picks the local account name so single-user setups need no
// flag.
func defaultUser() string {
	if u := os.Getenv("CYCLIC_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
