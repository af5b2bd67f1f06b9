package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stepwise/internal/fileutil"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write the task list as a JSON backup",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				data, err := sess.store.ExportTasks()
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				if len(args) == 0 || args[0] == "-" {
					_, err := cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if err := fileutil.WriteFileAtomic(args[0], data, 0o644); err != nil {
					return fmt.Errorf("write backup: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d tasks to %s\n", len(sess.store.State().Tasks), args[0])
				return nil
			})
		},
	}
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the task list with a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}
			return ctx.withSession(cmd, func(sess *session) error {
				if err := sess.store.ImportTasks(data); err != nil {
					return fmt.Errorf("import: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tasks\n", len(sess.store.State().Tasks))
				return nil
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Start over with an empty project (the API key is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("reset discards every task and to-do board; rerun with --force to confirm")
			}
			return ctx.withSession(cmd, func(sess *session) error {
				if err := sess.store.ResetProject(cmd.Context()); err != nil {
					return fmt.Errorf("reset: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Project reset")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm the reset")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the API key and clear all project data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("logout removes the API key and all project data; rerun with --force to confirm")
			}
			return ctx.withSession(cmd, func(sess *session) error {
				if err := sess.store.Logout(cmd.Context()); err != nil {
					return fmt.Errorf("logout: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm the logout")
	return cmd
}

func newKeyCommand(ctx *commandContext) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the AI service API key",
	}
	keyCmd.AddCommand(newKeySetCommand(ctx))
	keyCmd.AddCommand(newKeyCheckCommand(ctx))
	return keyCmd
}

func newKeySetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set [KEY]",
		Short: "Store an API key (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				data, err := readInput(cmd.InOrStdin(), "-")
				if err != nil {
					return fmt.Errorf("read key: %w", err)
				}
				key = string(data)
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("API key is empty")
			}
			return ctx.withSession(cmd, func(sess *session) error {
				if err := sess.store.SetAPIKey(cmd.Context(), key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "API key saved (%s)\n", maskSecret(key))
				return nil
			})
		},
	}
}

func newKeyCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the API key by listing the available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				models, err := sess.client.ValidateKey(cmd.Context())
				if err != nil {
					return fmt.Errorf("key check: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "API key valid; %d models available\n", len(models))
				for _, m := range models {
					fmt.Fprintf(out, "  %s\n", m)
				}
				return nil
			})
		},
	}
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
