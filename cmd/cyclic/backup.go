package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/cyclic-tasks/internal/backup"
)

func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the user's tasks to a YAML backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			list, err := e.tasks.List(ctx, userFlag)
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return backup.Export(w, userFlag, list, e.runner.Now())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the user's tasks with a YAML backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			var r io.Reader = os.Stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			doc, err := backup.Import(r)
			if err != nil {
				return err
			}
			if err := e.tasks.Replace(ctx, userFlag, doc.Tasks); err != nil {
				return err
			}
			fmt.Printf("imported %d task(s) exported by %s on %s\n",
				len(doc.Tasks), doc.User, doc.ExportedAt.Format("2006-01-02"))
			return nil
		},
	}
}
