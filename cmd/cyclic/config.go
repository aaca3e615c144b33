package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/cyclic-tasks/internal/credential"
	"github.com/nhle/cyclic-tasks/internal/model"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration and stored secrets",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}
			cfg, err := model.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := model.SaveConfig(configPath, cfg); err != nil {
				return err
			}
			fmt.Println("wrote", configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "set-secret <name>",
		Short: "Store a secret in the system keyring (value read from stdin)",
		Long: fmt.Sprintf(`Store a secret in the system keyring. Known names:
  %s, %s, %s, %s`,
			credential.KeyAnthropicAPI, credential.KeyIMAPPassword,
			credential.KeyRedisPassword, credential.KeyPostgresDSN),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !credential.Known(args[0]) {
				return fmt.Errorf("unknown secret %q", args[0])
			}
			value, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && value == "" {
				return fmt.Errorf("reading secret: %w", err)
			}
			if err := credential.Set(args[0], strings.TrimSpace(value)); err != nil {
				return err
			}
			fmt.Println("stored", args[0])
			return nil
		},
	})

	return cmd
}
