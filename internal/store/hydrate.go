package store

import (
	"context"

	"stepwise/internal/logging"
	"stepwise/internal/recipe"
)

// Hydrate loads the stored profile into the store and marks it hydrated.
// Only the first call does any work; later calls return immediately. Reads
// never fail: a missing or unreadable record yields default state.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Hydrated || s.hydrating {
		s.mu.Unlock()
		return nil
	}
	s.hydrating = true
	s.mu.Unlock()

	var stored recipe.StoredProject
	var key string
	if s.adapter != nil {
		stored = s.adapter.GetProject(ctx)
		credential, err := s.adapter.Credential(ctx)
		if err != nil {
			s.logger.Warn("credential read failed", logging.Error(err))
		}
		key = credential
	}

	now := s.now().UnixMilli()
	migrated, changed := migrate(stored, now)
	if key != "" && s.assistant != nil {
		s.assistant.SetAPIKey(key)
	}

	s.mu.Lock()
	runtime := s.state
	migrated.IsProcessing = runtime.IsProcessing
	migrated.IsExtracting = runtime.IsExtracting
	migrated.Status = runtime.Status
	migrated.Notice = runtime.Notice
	migrated.APIKey = key
	migrated.Hydrated = true
	if changed {
		migrated.Revision = runtime.Revision + 1
	} else {
		migrated.Revision = runtime.Revision
	}
	s.state = migrated
	s.hydrating = false
	published := s.state
	s.mu.Unlock()

	s.logger.Info("profile hydrated",
		logging.Int("tasks", len(published.Tasks)),
		logging.Int("todo_projects", len(published.TodoProjects)),
		logging.Bool("migrated", changed),
	)
	s.notify(published)
	return nil
}

// Hydrated reports whether Hydrate has completed.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Hydrated
}

// migrate converts a stored record into state. changed reports whether the
// result differs in shape from what was stored, so it should be written back.
func migrate(stored recipe.StoredProject, now int64) (State, bool) {
	changed := false

	tasks := make([]recipe.Task, 0, len(stored.Tasks))
	for _, task := range stored.Tasks {
		if task.ID == "" || task.HasLegacyChildren() || missingStepIDs(task.SubSteps) {
			changed = true
		}
		tasks = append(tasks, recipe.Normalize(task))
	}
	if recipe.DedupeIDs(tasks) {
		changed = true
	}

	projects := recipe.CloneProjects(stored.TodoProjects)
	for i := range projects {
		if repairProject(&projects[i], i+1, now) {
			changed = true
		}
	}
	if len(projects) == 0 {
		project := recipe.NewTodoProject(1, now, nil)
		if len(stored.TodoRows) > 0 {
			project.TodoRows = append([]recipe.TodoRow(nil), stored.TodoRows...)
			for j := range project.TodoRows {
				if project.TodoRows[j].ID == "" {
					project.TodoRows[j].ID = recipe.NewID()
				}
			}
			if stored.PriorityDials != nil {
				project.PriorityDials = stored.PriorityDials.Clamp()
			}
		}
		projects = append(projects, project)
		changed = true
	}

	active := stored.ActiveProjectID
	state := State{TodoProjects: projects, ActiveProjectID: active}
	if state.activeIndex() < 0 {
		state.ActiveProjectID = projects[0].ID
		changed = true
	}

	next := max(stored.NextProjectNumber, len(projects)+1)
	if next != stored.NextProjectNumber {
		changed = true
	}

	projectType := stored.ProjectType
	if _, err := recipe.ParseProjectType(string(projectType)); err != nil {
		projectType = recipe.ProjectVideo
	}

	state.Tasks = tasks
	state.Transcript = stored.Transcript
	state.ScoutResults = stored.ScoutResults
	state.ScoutHistory = stored.ScoutHistory
	state.ProjectType = projectType
	state.ProjectTitle = stored.ProjectTitle
	state.ScoutTopic = stored.ScoutTopic
	state.ScoutPlatform = stored.ScoutPlatform
	state.NextProjectNumber = next
	state.UpdatedAt = stored.UpdatedAt
	return state, changed
}

func missingStepIDs(children []recipe.Child) bool {
	for _, child := range children {
		if child.IsLeaf() {
			continue
		}
		if child.Step().ID == "" || missingStepIDs(child.Step().SubSteps) {
			return true
		}
	}
	return false
}

// repairProject fills fields an older or hand-edited record may lack.
func repairProject(project *recipe.TodoProject, n int, now int64) bool {
	changed := false
	if project.ID == "" {
		project.ID = recipe.NewID()
		changed = true
	}
	if project.Name == "" {
		project.Name = recipe.DefaultProjectName(n)
		changed = true
	}
	if project.Color == "" {
		project.Color = recipe.ProjectColor(n)
		changed = true
	}
	if project.CreatedAt == 0 {
		project.CreatedAt = now
		changed = true
	}
	if project.PriorityDials == (recipe.PriorityDials{}) {
		project.PriorityDials = recipe.DefaultPriorityDials()
		changed = true
	} else if clamped := project.PriorityDials.Clamp(); clamped != project.PriorityDials {
		project.PriorityDials = clamped
		changed = true
	}
	for j := range project.TodoRows {
		if project.TodoRows[j].ID == "" {
			project.TodoRows[j].ID = recipe.NewID()
			changed = true
		}
	}
	return changed
}
