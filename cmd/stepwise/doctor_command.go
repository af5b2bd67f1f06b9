package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stepwise/internal/ai"
	"stepwise/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var skipAI bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, media tools and the API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				failed := 0

				var validator preflight.KeyValidator
				if !skipAI {
					validator = sess.client
				}
				for _, line := range renderSectionHeader("environment", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
				fmt.Fprintln(out, renderStatusLine("Profile", statusInfo, sess.dbPath, colorize))
				for _, result := range preflight.RunAll(cmd.Context(), sess.cfg, validator) {
					kind := statusOK
					if !result.Passed {
						kind = statusError
						failed++
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}

				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("media tools", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, status := range preflight.CheckSystemDeps(sess.cfg) {
					if !status.Available {
						// Text projects work without ffmpeg.
						fmt.Fprintln(out, renderStatusLine(status.Name, statusWarn, status.Detail+"; screenshots unavailable", colorize))
						continue
					}
					version := preflight.ProbeToolVersion(cmd.Context(), status.Path)
					fmt.Fprintln(out, renderStatusLine(status.Name, statusOK, version.Detail(), colorize))
				}

				if failed > 0 {
					return fmt.Errorf("%d checks failed", failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipAI, "offline", false, "Skip the API key check")
	return cmd
}

var _ preflight.KeyValidator = (*ai.Client)(nil)
