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

// Projects are addressed by 1-based position, id or name; rows by position
// on the active board or id.

func resolveProject(projects []recipe.TodoProject, ref string) (recipe.TodoProject, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(projects) {
			return projects[n-1], nil
		}
		return recipe.TodoProject{}, fmt.Errorf("no project #%d (there are %d)", n, len(projects))
	}
	for _, p := range projects {
		if p.ID == ref {
			return p, nil
		}
	}
	for _, p := range projects {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	return recipe.TodoProject{}, fmt.Errorf("project %q not found", ref)
}

func resolveRow(rows []recipe.TodoRow, ref string) (recipe.TodoRow, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(rows) {
			return rows[n-1], nil
		}
		return recipe.TodoRow{}, fmt.Errorf("no row #%d (there are %d)", n, len(rows))
	}
	for _, row := range rows {
		if row.ID == ref {
			return row, nil
		}
	}
	return recipe.TodoRow{}, fmt.Errorf("row %q not found", ref)
}

func newTodoCommand(ctx *commandContext) *cobra.Command {
	todoCmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage the to-do boards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				writeBoard(cmd.OutOrStdout(), sess.store.State())
				return nil
			})
		},
	}

	todoCmd.AddCommand(
		newTodoProjectsCommand(ctx),
		newTodoAddProjectCommand(ctx),
		projectCommand(ctx, "rename PROJECT NAME", "Rename a project", 2, func(s *store.Store, p recipe.TodoProject, args []string) (string, error) {
			return fmt.Sprintf("Renamed %q to %q", p.Name, strings.TrimSpace(args[0])), s.RenameProject(p.ID, args[0])
		}),
		projectCommand(ctx, "recolor PROJECT COLOR", "Change a project's colour", 2, func(s *store.Store, p recipe.TodoProject, args []string) (string, error) {
			return fmt.Sprintf("%s is now %s", p.Name, strings.TrimSpace(args[0])), s.RecolorProject(p.ID, args[0])
		}),
		projectCommand(ctx, "delete-project PROJECT", "Delete a project and its rows", 1, func(s *store.Store, p recipe.TodoProject, _ []string) (string, error) {
			return fmt.Sprintf("Deleted %s", p.Name), s.DeleteProject(p.ID)
		}),
		projectCommand(ctx, "select PROJECT", "Make a project the active board", 1, func(s *store.Store, p recipe.TodoProject, _ []string) (string, error) {
			return fmt.Sprintf("Now on %s", p.Name), s.SelectProject(p.ID)
		}),
		projectCommand(ctx, "move-project PROJECT POSITION", "Reorder the project tabs", 2, func(s *store.Store, p recipe.TodoProject, args []string) (string, error) {
			to, err := parseIndex(args[0])
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Moved %s", p.Name), s.MoveProject(p.ID, to)
		}),
		newTodoRowsCommand(ctx),
		newTodoAddCommand(ctx),
		rowCommand(ctx, "done ROW", "Toggle a row's completion", 1, func(s *store.Store, row recipe.TodoRow, _ []string) (string, error) {
			done, err := s.ToggleRow(row.ID)
			return fmt.Sprintf("%s %s", checkbox(done), row.Task), err
		}),
		rowCommand(ctx, "remove ROW", "Remove a row", 1, func(s *store.Store, row recipe.TodoRow, _ []string) (string, error) {
			return fmt.Sprintf("Removed %q", row.Task), s.DeleteRow(row.ID)
		}),
		rowCommand(ctx, "edit ROW TEXT", "Change a row's task text", 2, func(s *store.Store, row recipe.TodoRow, args []string) (string, error) {
			return "Row updated", s.UpdateRowTask(row.ID, args[0])
		}),
		rowCommand(ctx, "insert ROW TEXT", "Insert a new row below another", 2, func(s *store.Store, row recipe.TodoRow, args []string) (string, error) {
			added, err := s.InsertRowAfter(row.ID, args[0])
			return fmt.Sprintf("Added %q", added.Task), err
		}),
		rowCommand(ctx, "move ROW POSITION|bottom", "Reorder a row", 2, func(s *store.Store, row recipe.TodoRow, args []string) (string, error) {
			if strings.EqualFold(strings.TrimSpace(args[0]), "bottom") {
				return fmt.Sprintf("Moved %q to the bottom", row.Task), s.MoveRowToBottom(row.ID)
			}
			to, err := parseIndex(args[0])
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Moved %q", row.Task), s.MoveRow(row.ID, to)
		}),
		newTodoStepsCommand(ctx),
		newTodoDialsCommand(ctx),
	)
	return todoCmd
}

type projectAction func(s *store.Store, p recipe.TodoProject, rest []string) (string, error)

func projectCommand(ctx *commandContext, use, short string, nargs int, action projectAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				project, err := resolveProject(sess.store.State().TodoProjects, args[0])
				if err != nil {
					return err
				}
				msg, err := action(sess.store, project, args[1:])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
}

type rowAction func(s *store.Store, row recipe.TodoRow, rest []string) (string, error)

func rowCommand(ctx *commandContext, use, short string, nargs int, action rowAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				row, err := resolveRow(sess.store.State().TodoRows(), args[0])
				if err != nil {
					return err
				}
				msg, err := action(sess.store, row, args[1:])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
}

func newTodoProjectsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List the to-do projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				state := sess.store.State()
				if asJSON {
					return writeJSON(cmd, state.TodoProjects)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderProjectTabs(out, state.TodoProjects, state.ActiveProjectID))
				rows := make([][]string, 0, len(state.TodoProjects))
				for i, p := range state.TodoProjects {
					done := 0
					for _, row := range p.TodoRows {
						if row.IsCompleted {
							done++
						}
					}
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						p.Name,
						p.Color,
						fmt.Sprintf("%d/%d", done, len(p.TodoRows)),
						yesNo(p.ID == state.ActiveProjectID),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Project", "Colour", "Done", "Active"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newTodoAddProjectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-project [NAME]",
		Short: "Create a project and make it active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return ctx.withSession(cmd, func(sess *session) error {
				project, err := sess.store.AddProject(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", project.Name)
				return nil
			})
		},
	}
}

func newTodoRowsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "List the rows of the active board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				state := sess.store.State()
				if asJSON {
					return writeJSON(cmd, state.TodoRows())
				}
				writeBoard(cmd.OutOrStdout(), state)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func writeBoard(out io.Writer, state store.State) {
	fmt.Fprintln(out, renderProjectTabs(out, state.TodoProjects, state.ActiveProjectID))
	rows := state.TodoRows()
	if len(rows) == 0 {
		fmt.Fprintln(out, "Board is empty; add rows with `stepwise todo add`")
	} else {
		headers := []string{"#", "", "Task"}
		aligns := []columnAlignment{alignRight, alignLeft, alignLeft}
		for i := range recipe.StepsPerRow {
			headers = append(headers, fmt.Sprintf("Step %d", i+1))
			aligns = append(aligns, alignLeft)
		}
		table := make([][]string, 0, len(rows))
		for i, row := range rows {
			line := []string{strconv.Itoa(i + 1), checkbox(row.IsCompleted), row.Task}
			line = append(line, row.Steps[:]...)
			table = append(table, line)
		}
		fmt.Fprintln(out, renderTable(headers, table, aligns))
	}
	dials := state.PriorityDials()
	fmt.Fprintf(out, "Priority dials: left %d, right %d (focus %s)\n", dials.Left, dials.Right, dials.FocusedSide)
}

func newTodoAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add TASK [STEP...]",
		Short: "Add a row to the active board",
		Args:  cobra.RangeArgs(1, 1+recipe.StepsPerRow),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				row, err := sess.store.AddRow(args[0], args[1:]...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %q\n", row.Task)
				return nil
			})
		},
	}
}

func newTodoStepsCommand(ctx *commandContext) *cobra.Command {
	var cell int
	cmd := &cobra.Command{
		Use:   "steps ROW [STEP...]",
		Short: "Replace a row's step cells, or one cell with --cell",
		Args:  cobra.RangeArgs(1, 1+recipe.StepsPerRow),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(sess *session) error {
				row, err := resolveRow(sess.store.State().TodoRows(), args[0])
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("cell") {
					if len(args) != 2 {
						return fmt.Errorf("--cell takes exactly one step text")
					}
					err = sess.store.UpdateRowStep(row.ID, cell-1, args[1])
				} else {
					err = sess.store.SetRowSteps(row.ID, args[1:])
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Row updated")
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&cell, "cell", 0, "Change only this step cell (1-4)")
	return cmd
}

func newTodoDialsCommand(ctx *commandContext) *cobra.Command {
	var left, right int
	var focus string
	cmd := &cobra.Command{
		Use:   "dials",
		Short: "Show or set the active board's priority dials",
		RunE: func(cmd *cobra.Command, args []string) error {
			var side recipe.FocusedSide
			if cmd.Flags().Changed("focus") {
				var err error
				if side, err = recipe.ParseFocusedSide(focus); err != nil {
					return err
				}
			}
			return ctx.withSession(cmd, func(sess *session) error {
				dials := sess.store.State().PriorityDials()
				flags := cmd.Flags()
				if flags.Changed("left") || flags.Changed("right") || flags.Changed("focus") {
					if flags.Changed("left") {
						dials.Left = left
					}
					if flags.Changed("right") {
						dials.Right = right
					}
					if flags.Changed("focus") {
						dials.FocusedSide = side
					}
					if err := sess.store.SetPriorityDials(dials); err != nil {
						return err
					}
					dials = sess.store.State().PriorityDials()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "left %d, right %d, focus %s\n", dials.Left, dials.Right, dials.FocusedSide)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&left, "left", 0, "Left dial (0-100)")
	cmd.Flags().IntVar(&right, "right", 0, "Right dial (0-100)")
	cmd.Flags().StringVar(&focus, "focus", "", "Focused side: left, right or none")
	return cmd
}
