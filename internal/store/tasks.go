package store

import (
	"math"
	"slices"
	"strings"

	"stepwise/internal/frames"
	"stepwise/internal/logging"
	"stepwise/internal/recipe"
)

// TaskPatch lists the task fields to change; nil fields are left alone.
type TaskPatch struct {
	TaskName         *string
	Description      *string
	TimestampSeconds *float64
}

// SetTasks replaces the task list. Tasks are deep-copied, missing or
// repeated ids anywhere in the tree are replaced, and the list is sorted by
// timestamp.
func (s *Store) SetTasks(tasks []recipe.Task) error {
	next := recipe.CloneTasks(tasks)
	recipe.DedupeIDs(next)
	for i := range next {
		if next[i].TimestampSeconds < 0 || math.IsNaN(next[i].TimestampSeconds) {
			next[i].TimestampSeconds = 0
		}
	}
	recipe.SortTasks(next)
	return s.mutate(func(st *State) error {
		st.Tasks = next
		return nil
	})
}

// AddTask inserts a task at its chronological position.
func (s *Store) AddTask(name, description string, timestamp float64) (recipe.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return recipe.Task{}, invalid("add task", "task name is required")
	}
	if timestamp < 0 || math.IsNaN(timestamp) || math.IsInf(timestamp, 0) {
		return recipe.Task{}, invalid("add task", "timestamp must be a non-negative number")
	}
	task := recipe.Task{
		ID:               recipe.NewID(),
		TaskName:         name,
		TimestampSeconds: timestamp,
		Description:      strings.TrimSpace(description),
		SubSteps:         []recipe.Step{},
	}
	err := s.mutate(func(st *State) error {
		idx := recipe.InsertionIndex(st.Tasks, timestamp)
		st.Tasks = slices.Insert(slices.Clone(st.Tasks), idx, task)
		return nil
	})
	return task, err
}

// UpdateTask applies patch to the task. A new timestamp moves the task to
// its chronological position.
func (s *Store) UpdateTask(id string, patch TaskPatch) error {
	if patch.TaskName != nil && strings.TrimSpace(*patch.TaskName) == "" {
		return invalid("update task", "task name is required")
	}
	if patch.TimestampSeconds != nil && (*patch.TimestampSeconds < 0 || math.IsNaN(*patch.TimestampSeconds)) {
		return invalid("update task", "timestamp must be a non-negative number")
	}
	return s.mutate(func(st *State) error {
		idx := st.taskIndex(id)
		if idx < 0 {
			return notFound("task", id)
		}
		task := st.Tasks[idx].Clone()
		if patch.TaskName != nil {
			task.TaskName = strings.TrimSpace(*patch.TaskName)
		}
		if patch.Description != nil {
			task.Description = strings.TrimSpace(*patch.Description)
		}
		tasks := slices.Clone(st.Tasks)
		if patch.TimestampSeconds != nil && *patch.TimestampSeconds != task.TimestampSeconds {
			task.TimestampSeconds = *patch.TimestampSeconds
			tasks = slices.Delete(tasks, idx, idx+1)
			tasks = slices.Insert(tasks, recipe.InsertionIndex(tasks, task.TimestampSeconds), task)
		} else {
			tasks[idx] = task
		}
		st.Tasks = tasks
		return nil
	})
}

// DeleteTask removes a task and everything beneath it.
func (s *Store) DeleteTask(id string) error {
	return s.mutate(func(st *State) error {
		idx := st.taskIndex(id)
		if idx < 0 {
			return notFound("task", id)
		}
		st.Tasks = slices.Delete(slices.Clone(st.Tasks), idx, idx+1)
		return nil
	})
}

// editTask applies fn to a deep copy of the task and publishes it.
func (s *Store) editTask(id string, fn func(*recipe.Task) error) error {
	return s.mutate(func(st *State) error {
		idx := st.taskIndex(id)
		if idx < 0 {
			return notFound("task", id)
		}
		task := st.Tasks[idx].Clone()
		if err := fn(&task); err != nil {
			return err
		}
		tasks := slices.Clone(st.Tasks)
		tasks[idx] = task
		st.Tasks = tasks
		return nil
	})
}

// editStep finds the step at any depth in any task and applies fn to it.
func (s *Store) editStep(stepID string, fn func(*recipe.Task, *recipe.Step) error) error {
	return s.mutate(func(st *State) error {
		idx, _ := recipe.FindTaskStep(st.Tasks, stepID)
		if idx < 0 {
			return notFound("step", stepID)
		}
		task := st.Tasks[idx].Clone()
		step := recipe.FindStep(task.SubSteps, stepID)
		if err := fn(&task, step); err != nil {
			return err
		}
		tasks := slices.Clone(st.Tasks)
		tasks[idx] = task
		st.Tasks = tasks
		return nil
	})
}

// UpdateStepText changes a step's text.
func (s *Store) UpdateStepText(stepID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return invalid("update step", "step text is required")
	}
	return s.editStep(stepID, func(_ *recipe.Task, step *recipe.Step) error {
		step.Text = text
		return nil
	})
}

// ToggleStep flips a step's completion and returns the new value.
func (s *Store) ToggleStep(stepID string) (bool, error) {
	var completed bool
	err := s.editStep(stepID, func(_ *recipe.Task, step *recipe.Step) error {
		step.IsCompleted = !step.IsCompleted
		completed = step.IsCompleted
		return nil
	})
	return completed, err
}

// AddStep appends a step to a task, or beneath parentStepID when set.
func (s *Store) AddStep(taskID, parentStepID, text string) (recipe.Step, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return recipe.Step{}, invalid("add step", "step text is required")
	}
	step := recipe.NewStep(text)
	err := s.editTask(taskID, func(task *recipe.Task) error {
		if parentStepID == "" {
			task.SubSteps = append(task.SubSteps, step)
			return nil
		}
		parent := recipe.FindStep(task.SubSteps, parentStepID)
		if parent == nil {
			return notFound("step", parentStepID)
		}
		parent.SubSteps = append(parent.SubSteps, step)
		return nil
	})
	return step, err
}

// DeleteStep removes a step and its children.
func (s *Store) DeleteStep(stepID string) error {
	return s.editStep(stepID, func(task *recipe.Task, _ *recipe.Step) error {
		task.SubSteps, _ = recipe.RemoveStep(task.SubSteps, stepID)
		return nil
	})
}

// AttachSubSteps appends generated steps beneath a task, or beneath stepID
// when set. Children are always typed steps with fresh ids.
func (s *Store) AttachSubSteps(taskID, stepID string, texts []string) ([]recipe.Step, error) {
	clean := make([]string, 0, len(texts))
	for _, text := range texts {
		if text = strings.TrimSpace(text); text != "" {
			clean = append(clean, text)
		}
	}
	if len(clean) == 0 {
		return []recipe.Step{}, nil
	}
	steps := recipe.NewSteps(clean)
	err := s.editTask(taskID, func(task *recipe.Task) error {
		if stepID == "" {
			task.SubSteps = append(task.SubSteps, steps...)
			return nil
		}
		parent := recipe.FindStep(task.SubSteps, stepID)
		if parent == nil {
			return notFound("step", stepID)
		}
		parent.SubSteps = append(parent.SubSteps, steps...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return steps, nil
}

// SetTaskScreenshot stores a captured frame on a task.
func (s *Store) SetTaskScreenshot(taskID, data string) error {
	return s.editTask(taskID, func(task *recipe.Task) error {
		task.ScreenshotBase64 = data
		return nil
	})
}

// ClearScreenshots drops every captured frame so the next capture run
// starts over.
func (s *Store) ClearScreenshots() error {
	return s.mutate(func(st *State) error {
		tasks := slices.Clone(st.Tasks)
		for i := range tasks {
			tasks[i].ScreenshotBase64 = ""
		}
		st.Tasks = tasks
		return nil
	})
}

// SetTranscript replaces the source text.
func (s *Store) SetTranscript(text string) error {
	return s.mutate(func(st *State) error {
		st.Transcript = text
		return nil
	})
}

// SetProjectType switches between video and text projects.
func (s *Store) SetProjectType(projectType recipe.ProjectType) error {
	parsed, err := recipe.ParseProjectType(string(projectType))
	if err != nil {
		return invalid("set project type", err.Error())
	}
	return s.mutate(func(st *State) error {
		st.ProjectType = parsed
		return nil
	})
}

// SetProjectTitle names the project.
func (s *Store) SetProjectTitle(title string) error {
	title = strings.TrimSpace(title)
	return s.mutate(func(st *State) error {
		st.ProjectTitle = title
		return nil
	})
}

// SetScout records a search topic and its results, and remembers the topic
// at the front of the history.
func (s *Store) SetScout(topic, platform string, results []string) error {
	topic = strings.TrimSpace(topic)
	platform = strings.TrimSpace(platform)
	limit := s.scoutLimit
	return s.mutate(func(st *State) error {
		st.ScoutTopic = topic
		st.ScoutPlatform = platform
		st.ScoutResults = slices.Clone(results)
		if st.ScoutResults == nil {
			st.ScoutResults = []string{}
		}
		if topic != "" {
			st.ScoutHistory = pushHistory(st.ScoutHistory, topic, limit)
		}
		return nil
	})
}

func pushHistory(history []string, topic string, limit int) []string {
	out := make([]string, 0, min(len(history)+1, limit))
	out = append(out, topic)
	for _, entry := range history {
		if len(out) == limit {
			break
		}
		if strings.EqualFold(entry, topic) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// BeginExtraction marks a capture run as started. It fails when one is
// already running.
func (s *Store) BeginExtraction() bool {
	s.mu.Lock()
	if s.state.IsExtracting {
		s.mu.Unlock()
		return false
	}
	s.state.IsExtracting = true
	s.state.Status = StatusCapturing
	published := s.state
	s.mu.Unlock()
	s.notify(published)
	return true
}

// EndExtraction clears the capture flag.
func (s *Store) EndExtraction() {
	s.setRuntime(func(st *State) {
		st.IsExtracting = false
		if st.Status == StatusCapturing {
			st.Status = StatusIdle
		}
	})
}

// PendingScreenshots lists tasks without a screenshot, in task order.
func (s *Store) PendingScreenshots() []frames.Target {
	state := s.current()
	pending := make([]frames.Target, 0, len(state.Tasks))
	for _, task := range state.Tasks {
		if !task.HasScreenshot() {
			pending = append(pending, frames.Target{TaskID: task.ID, TimestampSeconds: task.TimestampSeconds})
		}
	}
	return pending
}

// SetScreenshot implements frames.Sink. Tasks deleted mid-run are skipped.
func (s *Store) SetScreenshot(taskID, data string) {
	if err := s.SetTaskScreenshot(taskID, data); err != nil {
		s.logger.Debug("screenshot dropped", logging.String(logging.FieldTaskID, taskID), logging.Error(err))
	}
}

var _ frames.Sink = (*Store)(nil)
