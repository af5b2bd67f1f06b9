package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"stepwise/internal/config"
	"stepwise/internal/deps"
	"stepwise/internal/frames"
	"stepwise/internal/recipe"
	"stepwise/internal/store"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var transcriptPath string
	var videoPath string
	var title string
	var projectType string
	var duration string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Turn a transcript into a task list",
		Long: `Analyze sends the transcript to the AI service and replaces the current
task list with the result. When a video is given, a screenshot is captured
for every task.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			transcript, err := readInput(cmd.InOrStdin(), transcriptPath)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			if strings.TrimSpace(string(transcript)) == "" {
				return fmt.Errorf("transcript is empty")
			}

			kind := recipe.ProjectText
			if strings.TrimSpace(videoPath) != "" {
				kind = recipe.ProjectVideo
			}
			if strings.TrimSpace(projectType) != "" {
				if kind, err = recipe.ParseProjectType(projectType); err != nil {
					return err
				}
			}
			var seconds float64
			if strings.TrimSpace(duration) != "" {
				if seconds, err = parseSeconds(duration); err != nil {
					return fmt.Errorf("duration: %w", err)
				}
			}

			return ctx.withSession(cmd, func(sess *session) error {
				req := store.EngineRequest{
					Transcript:      string(transcript),
					Title:           strings.TrimSpace(title),
					ProjectType:     kind,
					DurationSeconds: seconds,
				}
				if kind == recipe.ProjectVideo && strings.TrimSpace(videoPath) != "" {
					video, err := openVideo(cmd.Context(), sess.cfg, videoPath)
					if err != nil {
						return err
					}
					req.Video = video
					if req.DurationSeconds == 0 {
						req.DurationSeconds = video.DurationSeconds()
					}
				}

				result, err := sess.store.RunEngine(cmd.Context(), req)
				deferred := req.Video == nil && errors.Is(err, frames.ErrSourceUnavailable)
				if deferred {
					// Capture waits for `stepwise frames`.
					sess.store.ClearNotice()
				} else if err != nil {
					return fmt.Errorf("analyze: %w", err)
				}
				out := cmd.OutOrStdout()
				if result.Dropped {
					fmt.Fprintln(out, "An analysis is already running; request ignored")
					return nil
				}
				fmt.Fprintf(out, "Found %d tasks\n", result.Tasks)
				switch {
				case req.Video != nil:
					printFrameResult(out, result.Frames)
				case deferred:
					fmt.Fprintln(out, "No video given; run `stepwise frames --video FILE` to capture screenshots")
				}
				fmt.Fprintln(out, renderTaskTable(sess.store.State().Tasks))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "Transcript file (use - for stdin)")
	cmd.Flags().StringVar(&videoPath, "video", "", "Source video for screenshots")
	cmd.Flags().StringVar(&title, "title", "", "Project title")
	cmd.Flags().StringVar(&projectType, "type", "", "Project type: video or text")
	cmd.Flags().StringVar(&duration, "duration", "", "Source duration in seconds or M:SS (read from the video when omitted)")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

func newFramesCommand(ctx *commandContext) *cobra.Command {
	var videoPath string
	var reset bool

	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Capture missing task screenshots from a video",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				if reset {
					if err := sess.store.ClearScreenshots(); err != nil {
						return err
					}
				}
				pending := len(sess.store.PendingScreenshots())
				out := cmd.OutOrStdout()
				if pending == 0 {
					fmt.Fprintln(out, "Every task already has a screenshot")
					return nil
				}
				video, err := openVideo(cmd.Context(), sess.cfg, videoPath)
				if err != nil {
					return err
				}
				sess.store.AttachVideo(video)
				result, err := sess.store.CaptureFrames(cmd.Context())
				if err != nil {
					return fmt.Errorf("capture frames: %w", err)
				}
				printFrameResult(out, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&videoPath, "video", "", "Source video")
	cmd.Flags().BoolVar(&reset, "reset", false, "Discard existing screenshots and capture all of them again")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}

func newTokensCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens FILE",
		Short: "Count the tokens a transcript would use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return ctx.withSession(cmd, func(sess *session) error {
				n, err := sess.client.CountTokens(cmd.Context(), string(text))
				if err != nil {
					return fmt.Errorf("count tokens: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d tokens\n", n)
				return nil
			})
		},
	}
}

func openVideo(ctx context.Context, cfg *config.Config, path string) (*frames.FFmpegVideo, error) {
	statuses := deps.CheckBinaries(deps.MediaRequirements(cfg.Frames.FFmpegBinary, cfg.Frames.FFprobeBinary))
	if missing := deps.Missing(statuses); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, m := range missing {
			names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
		}
		return nil, fmt.Errorf("screenshots need %s", strings.Join(names, ", "))
	}
	video, err := frames.OpenFFmpegVideo(ctx, path, frames.FFmpegConfig{
		FFmpegBinary:  statuses[0].Path,
		FFprobeBinary: statuses[1].Path,
	})
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	return video, nil
}

func printFrameResult(out io.Writer, result frames.Result) {
	fmt.Fprintf(out, "Captured %d of %d screenshots", result.Captured, result.Queued)
	var extra []string
	if result.Failed > 0 {
		extra = append(extra, fmt.Sprintf("%d failed", result.Failed))
	}
	if result.TimedOut > 0 {
		extra = append(extra, fmt.Sprintf("%d timed out", result.TimedOut))
	}
	if result.Remaining > 0 {
		extra = append(extra, fmt.Sprintf("%d remaining", result.Remaining))
	}
	if len(extra) > 0 {
		fmt.Fprintf(out, " (%s)", strings.Join(extra, ", "))
	}
	fmt.Fprintln(out)
}
