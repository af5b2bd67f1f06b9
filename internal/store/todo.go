package store

import (
	"slices"
	"strings"

	"stepwise/internal/recipe"
)

// AddProject creates a to-do project and selects it. An empty name gets the
// next default name; the colour always follows the project counter.
func (s *Store) AddProject(name string) (recipe.TodoProject, error) {
	var created recipe.TodoProject
	err := s.mutate(func(st *State) error {
		n := max(st.NextProjectNumber, len(st.TodoProjects)+1)
		created = recipe.NewTodoProject(n, s.now().UnixMilli(), nil)
		if name = strings.TrimSpace(name); name != "" {
			created.Name = name
		}
		st.TodoProjects = append(slices.Clone(st.TodoProjects), created)
		st.ActiveProjectID = created.ID
		st.NextProjectNumber = n + 1
		return nil
	})
	return created, err
}

// editProject applies fn to a copy of the project with the given id.
func (s *Store) editProject(id string, fn func(*recipe.TodoProject) error) error {
	return s.mutate(func(st *State) error {
		idx := st.projectIndex(id)
		if idx < 0 {
			return notFound("project", id)
		}
		project := st.TodoProjects[idx].Clone()
		if err := fn(&project); err != nil {
			return err
		}
		projects := slices.Clone(st.TodoProjects)
		projects[idx] = project
		st.TodoProjects = projects
		return nil
	})
}

// editActive applies fn to a copy of the active project.
func (s *Store) editActive(fn func(*recipe.TodoProject) error) error {
	return s.mutate(func(st *State) error {
		idx := st.activeIndex()
		if idx < 0 {
			return notFound("project", st.ActiveProjectID)
		}
		project := st.TodoProjects[idx].Clone()
		if err := fn(&project); err != nil {
			return err
		}
		projects := slices.Clone(st.TodoProjects)
		projects[idx] = project
		st.TodoProjects = projects
		return nil
	})
}

// RenameProject changes a project's name.
func (s *Store) RenameProject(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("rename project", "project name is required")
	}
	return s.editProject(id, func(p *recipe.TodoProject) error {
		p.Name = name
		return nil
	})
}

// RecolorProject changes a project's colour.
func (s *Store) RecolorProject(id, color string) error {
	color = strings.TrimSpace(color)
	if color == "" {
		return invalid("recolor project", "color is required")
	}
	return s.editProject(id, func(p *recipe.TodoProject) error {
		p.Color = color
		return nil
	})
}

// DeleteProject removes a project. The last project cannot be deleted. When
// the active project goes, the first remaining one is selected.
func (s *Store) DeleteProject(id string) error {
	return s.mutate(func(st *State) error {
		idx := st.projectIndex(id)
		if idx < 0 {
			return notFound("project", id)
		}
		if len(st.TodoProjects) <= 1 {
			return ErrLastProject
		}
		st.TodoProjects = slices.Delete(slices.Clone(st.TodoProjects), idx, idx+1)
		if st.activeIndex() < 0 {
			st.ActiveProjectID = st.TodoProjects[0].ID
		}
		return nil
	})
}

// MoveProject moves a project to position to, clamped into range.
func (s *Store) MoveProject(id string, to int) error {
	return s.mutate(func(st *State) error {
		idx := st.projectIndex(id)
		if idx < 0 {
			return notFound("project", id)
		}
		st.TodoProjects = move(st.TodoProjects, idx, to)
		return nil
	})
}

// SelectProject makes a project active.
func (s *Store) SelectProject(id string) error {
	return s.mutate(func(st *State) error {
		if st.projectIndex(id) < 0 {
			return notFound("project", id)
		}
		st.ActiveProjectID = id
		return nil
	})
}

// AddRow appends a row to the active project.
func (s *Store) AddRow(task string, steps ...string) (recipe.TodoRow, error) {
	row := recipe.NewTodoRow(task, trimAll(steps)...)
	err := s.editActive(func(p *recipe.TodoProject) error {
		p.TodoRows = append(p.TodoRows, row)
		return nil
	})
	return row, err
}

// AddRowFromStep sends a recipe step to the active board. The row takes the
// step's text and its first four children. A step already on the board is
// not added twice.
func (s *Store) AddRowFromStep(stepID string) (recipe.TodoRow, error) {
	var row recipe.TodoRow
	err := s.mutate(func(st *State) error {
		_, step := recipe.FindTaskStep(st.Tasks, stepID)
		if step == nil {
			return notFound("step", stepID)
		}
		idx := st.activeIndex()
		if idx < 0 {
			return notFound("project", st.ActiveProjectID)
		}
		project := st.TodoProjects[idx].Clone()
		for _, existing := range project.TodoRows {
			if existing.SourceStepID == stepID {
				row = existing
				return errUnchanged
			}
		}
		children := make([]string, 0, recipe.StepsPerRow)
		for _, child := range step.SubSteps {
			if len(children) == recipe.StepsPerRow {
				break
			}
			children = append(children, child.Text)
		}
		row = recipe.NewTodoRow(step.Text, children...)
		row.SourceStepID = stepID
		project.TodoRows = append(project.TodoRows, row)
		projects := slices.Clone(st.TodoProjects)
		projects[idx] = project
		st.TodoProjects = projects
		return nil
	})
	if err == errUnchanged {
		return row, nil
	}
	return row, err
}

// editRow applies fn to a row of the active project.
func (s *Store) editRow(id string, fn func(*recipe.TodoRow) error) error {
	return s.editActive(func(p *recipe.TodoProject) error {
		idx := p.RowIndex(id)
		if idx < 0 {
			return notFound("row", id)
		}
		return fn(&p.TodoRows[idx])
	})
}

// DeleteRow removes a row from the active project.
func (s *Store) DeleteRow(id string) error {
	return s.editActive(func(p *recipe.TodoProject) error {
		idx := p.RowIndex(id)
		if idx < 0 {
			return notFound("row", id)
		}
		p.TodoRows = slices.Delete(p.TodoRows, idx, idx+1)
		return nil
	})
}

// UpdateRowTask changes a row's task text.
func (s *Store) UpdateRowTask(id, task string) error {
	task = strings.TrimSpace(task)
	return s.editRow(id, func(row *recipe.TodoRow) error {
		row.Task = task
		return nil
	})
}

// UpdateRowStep changes one step cell (0 to 3) of a row.
func (s *Store) UpdateRowStep(id string, index int, text string) error {
	if index < 0 || index >= recipe.StepsPerRow {
		return invalid("update row step", "step index must be between 0 and 3")
	}
	text = strings.TrimSpace(text)
	return s.editRow(id, func(row *recipe.TodoRow) error {
		row.Steps[index] = text
		return nil
	})
}

// SetRowSteps replaces all four step cells. Shorter input is padded with
// empty cells and longer input is truncated.
func (s *Store) SetRowSteps(id string, steps []string) error {
	var cells [recipe.StepsPerRow]string
	copy(cells[:], trimAll(steps))
	return s.editRow(id, func(row *recipe.TodoRow) error {
		row.Steps = cells
		return nil
	})
}

// ToggleRow flips a row's completion and returns the new value.
func (s *Store) ToggleRow(id string) (bool, error) {
	var completed bool
	err := s.editRow(id, func(row *recipe.TodoRow) error {
		row.IsCompleted = !row.IsCompleted
		completed = row.IsCompleted
		return nil
	})
	return completed, err
}

// MoveRow moves a row to position to, clamped into range.
func (s *Store) MoveRow(id string, to int) error {
	return s.editActive(func(p *recipe.TodoProject) error {
		idx := p.RowIndex(id)
		if idx < 0 {
			return notFound("row", id)
		}
		p.TodoRows = move(p.TodoRows, idx, to)
		return nil
	})
}

// MoveRowToBottom moves a row to the end of the board.
func (s *Store) MoveRowToBottom(id string) error {
	return s.editActive(func(p *recipe.TodoProject) error {
		idx := p.RowIndex(id)
		if idx < 0 {
			return notFound("row", id)
		}
		p.TodoRows = move(p.TodoRows, idx, len(p.TodoRows)-1)
		return nil
	})
}

// InsertRowAfter adds a row directly below afterID.
func (s *Store) InsertRowAfter(afterID, task string) (recipe.TodoRow, error) {
	row := recipe.NewTodoRow(task)
	err := s.editActive(func(p *recipe.TodoProject) error {
		idx := p.RowIndex(afterID)
		if idx < 0 {
			return notFound("row", afterID)
		}
		p.TodoRows = slices.Insert(p.TodoRows, idx+1, row)
		return nil
	})
	return row, err
}

// SetPriorityDials stores the active project's dials, clamped into range.
func (s *Store) SetPriorityDials(dials recipe.PriorityDials) error {
	dials = dials.Clamp()
	return s.editActive(func(p *recipe.TodoProject) error {
		p.PriorityDials = dials
		return nil
	})
}

// move returns a copy of items with the element at from moved to to.
func move[T any](items []T, from, to int) []T {
	out := slices.Clone(items)
	to = min(max(to, 0), len(out)-1)
	if from == to {
		return out
	}
	item := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, item)
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
