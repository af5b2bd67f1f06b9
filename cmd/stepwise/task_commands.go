package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stepwise/internal/recipe"
	"stepwise/internal/store"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var tree bool

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the current tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				state := sess.store.State()
				if asJSON {
					return writeJSON(cmd, state.Tasks)
				}
				out := cmd.OutOrStdout()
				if state.ProjectTitle != "" {
					for _, line := range renderSectionHeader(state.ProjectTitle, shouldColorize(out)) {
						fmt.Fprintln(out, line)
					}
				}
				if len(state.Tasks) == 0 {
					fmt.Fprintln(out, "No tasks yet; run `stepwise analyze` or `stepwise task add`")
					return nil
				}
				if tree {
					writeTaskTree(out, state.Tasks)
					return nil
				}
				fmt.Fprintln(out, renderTaskTable(state.Tasks))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&tree, "tree", false, "Show every step beneath its task")
	return cmd
}

func renderTaskTable(tasks []recipe.Task) string {
	rows := make([][]string, 0, len(tasks))
	for i, task := range tasks {
		total, done := recipe.CountSteps(task.SubSteps)
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			formatTimestamp(task.TimestampSeconds),
			task.TaskName,
			fmt.Sprintf("%d/%d", done, total),
			yesNo(task.HasScreenshot()),
			task.Description,
		})
	}
	return renderTable(
		[]string{"#", "Time", "Task", "Steps", "Shot", "Description"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func writeTaskTree(out io.Writer, tasks []recipe.Task) {
	for i, task := range tasks {
		fmt.Fprintf(out, "%d. [%s] %s\n", i+1, formatTimestamp(task.TimestampSeconds), task.TaskName)
		writeSteps(out, task.SubSteps, []int{i}, 1)
	}
}

func writeSteps(out io.Writer, steps []recipe.Step, prefix []int, depth int) {
	for i, step := range steps {
		path := append(append([]int(nil), prefix...), i)
		fmt.Fprintf(out, "%s%s %s %s\n", strings.Repeat("  ", depth), checkbox(step.IsCompleted), stepLabel(path), step.Text)
		writeSteps(out, step.SubSteps, path, depth+1)
	}
}

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Add, edit or delete tasks",
	}
	taskCmd.AddCommand(newTaskAddCommand(ctx))
	taskCmd.AddCommand(newTaskEditCommand(ctx))
	taskCmd.AddCommand(newTaskDeleteCommand(ctx))
	return taskCmd
}

func newTaskAddCommand(ctx *commandContext) *cobra.Command {
	var at string
	var description string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a task at its place in the timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var seconds float64
			if strings.TrimSpace(at) != "" {
				var err error
				if seconds, err = parseSeconds(at); err != nil {
					return err
				}
			}
			return ctx.withSession(cmd, func(sess *session) error {
				task, err := sess.store.AddTask(args[0], description, seconds)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %q at %s\n", task.TaskName, formatTimestamp(task.TimestampSeconds))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Position in seconds or M:SS")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	return cmd
}

func newTaskEditCommand(ctx *commandContext) *cobra.Command {
	var name, description, at string

	cmd := &cobra.Command{
		Use:   "edit TASK",
		Short: "Change a task's name, description or position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch store.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.TaskName = &name
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("at") {
				seconds, err := parseSeconds(at)
				if err != nil {
					return err
				}
				patch.TimestampSeconds = &seconds
			}
			if patch == (store.TaskPatch{}) {
				return fmt.Errorf("nothing to change (use --name, --description or --at)")
			}
			return ctx.withSession(cmd, func(sess *session) error {
				task, err := resolveTask(sess.store.State().Tasks, args[0])
				if err != nil {
					return err
				}
				if err := sess.store.UpdateTask(task.ID, patch); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Task updated")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New task name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVar(&at, "at", "", "New position in seconds or M:SS")
	return cmd
}

func newTaskDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete TASK",
		Aliases: []string{"rm"},
		Short:   "Delete a task and all of its steps",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				task, err := resolveTask(sess.store.State().Tasks, args[0])
				if err != nil {
					return err
				}
				if err := sess.store.DeleteTask(task.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", task.TaskName)
				return nil
			})
		},
	}
}

func newExpandCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "expand TASK [STEP]",
		Short: "Break a task or one of its steps into smaller steps",
		Long: `Expand asks the AI service for finer-grained steps. With only TASK the new
steps are added to the task; with STEP (a dotted path below the task, such as
"1" or "2.1", or a step id) they are added beneath that step.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				tasks := sess.store.State().Tasks
				var added []recipe.Step
				var target string
				if len(args) == 1 {
					task, err := resolveTask(tasks, args[0])
					if err != nil {
						return err
					}
					target = task.TaskName
					if added, err = sess.store.ExpandTask(cmd.Context(), task.ID); err != nil {
						return fmt.Errorf("expand: %w", err)
					}
				} else {
					ref := args[1]
					if _, ok := parsePath(ref); ok {
						ref = args[0] + "." + ref
					}
					_, step, err := resolveStep(tasks, ref)
					if err != nil {
						return err
					}
					target = step.Text
					if added, err = sess.store.ExpandStep(cmd.Context(), step.ID); err != nil {
						return fmt.Errorf("expand: %w", err)
					}
				}
				out := cmd.OutOrStdout()
				if len(added) == 0 {
					fmt.Fprintf(out, "No new steps for %q\n", target)
					return nil
				}
				fmt.Fprintf(out, "Added %d steps to %q\n", len(added), target)
				for _, step := range added {
					fmt.Fprintf(out, "  %s %s\n", checkbox(false), step.Text)
				}
				return nil
			})
		},
	}
}

func newStepCommand(ctx *commandContext) *cobra.Command {
	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "Work with task steps",
		Long:  `Steps are addressed by dotted path ("2.1" is the first step of task 2) or by id.`,
	}
	stepCmd.AddCommand(newStepToggleCommand(ctx))
	stepCmd.AddCommand(newStepEditCommand(ctx))
	stepCmd.AddCommand(newStepAddCommand(ctx))
	stepCmd.AddCommand(newStepDeleteCommand(ctx))
	stepCmd.AddCommand(newStepTodoCommand(ctx))
	return stepCmd
}

func newStepToggleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle STEP",
		Short: "Mark a step done or not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				_, step, err := resolveStep(sess.store.State().Tasks, args[0])
				if err != nil {
					return err
				}
				done, err := sess.store.ToggleStep(step.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", checkbox(done), step.Text)
				return nil
			})
		},
	}
}

func newStepEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit STEP TEXT",
		Short: "Replace a step's text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				_, step, err := resolveStep(sess.store.State().Tasks, args[0])
				if err != nil {
					return err
				}
				if err := sess.store.UpdateStepText(step.ID, args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Step updated")
				return nil
			})
		},
	}
}

func newStepAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add PARENT TEXT",
		Short: "Add a step beneath a task or another step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				tasks := sess.store.State().Tasks
				taskID, parentID := "", ""
				if task, err := resolveTask(tasks, args[0]); err == nil {
					taskID = task.ID
				} else {
					task, step, err := resolveStep(tasks, args[0])
					if err != nil {
						return err
					}
					taskID, parentID = task.ID, step.ID
				}
				step, err := sess.store.AddStep(taskID, parentID, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added step %q\n", step.Text)
				return nil
			})
		},
	}
}

func newStepDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete STEP",
		Aliases: []string{"rm"},
		Short:   "Delete a step and its children",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				_, step, err := resolveStep(sess.store.State().Tasks, args[0])
				if err != nil {
					return err
				}
				if err := sess.store.DeleteStep(step.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted step %q\n", step.Text)
				return nil
			})
		},
	}
}

func newStepTodoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "todo STEP",
		Short: "Copy a step and its first children onto the to-do board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				_, step, err := resolveStep(sess.store.State().Tasks, args[0])
				if err != nil {
					return err
				}
				row, err := sess.store.AddRowFromStep(step.ID)
				if err != nil {
					return err
				}
				project, _ := sess.store.State().ActiveProject()
				fmt.Fprintf(cmd.OutOrStdout(), "%q is on the %s board\n", row.Task, project.Name)
				return nil
			})
		},
	}
}

func newScoutCommand(ctx *commandContext) *cobra.Command {
	var platform string
	var history bool

	cmd := &cobra.Command{
		Use:   "scout [TOPIC]",
		Short: "Suggest searches for tutorials on a topic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				out := cmd.OutOrStdout()
				if history || len(args) == 0 {
					recent := sess.store.State().ScoutHistory
					if len(recent) == 0 {
						fmt.Fprintln(out, "No searches yet")
						return nil
					}
					for _, topic := range recent {
						fmt.Fprintln(out, topic)
					}
					return nil
				}
				queries, err := sess.store.Scout(cmd.Context(), args[0], platform)
				if err != nil {
					return fmt.Errorf("scout: %w", err)
				}
				for i, q := range queries {
					fmt.Fprintf(out, "%d. %s\n", i+1, q)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "Where to search (youtube, web, ...)")
	cmd.Flags().BoolVar(&history, "history", false, "List recent topics instead of searching")
	return cmd
}
