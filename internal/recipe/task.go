package recipe

import (
	"slices"
	"strings"
)

// Task is a top-level recipe item tied to a position in the source material.
type Task struct {
	ID               string  `json:"id"`
	TaskName         string  `json:"task_name"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Description      string  `json:"description"`
	ScreenshotBase64 string  `json:"screenshot_base64"`
	SubSteps         []Step  `json:"sub_steps"`
}

// Step is a recursive child node of a Task (sub-step or micro-step).
type Step struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	IsCompleted bool   `json:"isCompleted"`
	SubSteps    []Step `json:"sub_steps"`
}

// NewStep builds an incomplete step with a fresh id and no children.
func NewStep(text string) Step {
	return Step{ID: NewID(), Text: strings.TrimSpace(text), SubSteps: []Step{}}
}

// NewSteps converts generated texts into typed steps.
func NewSteps(texts []string) []Step {
	steps := make([]Step, 0, len(texts))
	for _, text := range texts {
		steps = append(steps, NewStep(text))
	}
	return steps
}

// HasScreenshot reports whether a frame has been captured for the task.
func (t Task) HasScreenshot() bool {
	return t.ScreenshotBase64 != ""
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	t.SubSteps = cloneSteps(t.SubSteps)
	return t
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	s.SubSteps = cloneSteps(s.SubSteps)
	return s
}

func cloneSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, step := range steps {
		out[i] = step.Clone()
	}
	return out
}

// CloneTasks deep-copies a task list.
func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, task := range tasks {
		out[i] = task.Clone()
	}
	return out
}

// SortTasks orders tasks ascending by timestamp. Equal timestamps keep their
// relative order.
func SortTasks(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		switch {
		case a.TimestampSeconds < b.TimestampSeconds:
			return -1
		case a.TimestampSeconds > b.TimestampSeconds:
			return 1
		default:
			return 0
		}
	})
}

// InsertionIndex returns where a task with the given timestamp belongs in an
// already sorted list, after any tasks sharing that timestamp.
func InsertionIndex(tasks []Task, timestamp float64) int {
	idx, _ := slices.BinarySearchFunc(tasks, timestamp, func(t Task, target float64) int {
		if t.TimestampSeconds <= target {
			return -1
		}
		return 1
	})
	return idx
}

// FindStep locates a step by id anywhere beneath the given steps using a
// depth-first search.
func FindStep(steps []Step, id string) *Step {
	for i := range steps {
		if steps[i].ID == id {
			return &steps[i]
		}
		if found := FindStep(steps[i].SubSteps, id); found != nil {
			return found
		}
	}
	return nil
}

// FindTaskStep locates a step by id across all tasks and returns the owning
// task index alongside it.
func FindTaskStep(tasks []Task, id string) (int, *Step) {
	for i := range tasks {
		if step := FindStep(tasks[i].SubSteps, id); step != nil {
			return i, step
		}
	}
	return -1, nil
}

// RemoveStep deletes the step with the given id at any depth.
func RemoveStep(steps []Step, id string) ([]Step, bool) {
	for i := range steps {
		if steps[i].ID == id {
			return slices.Delete(steps, i, i+1), true
		}
		if children, ok := RemoveStep(steps[i].SubSteps, id); ok {
			steps[i].SubSteps = children
			return steps, true
		}
	}
	return steps, false
}

// CountSteps returns the number of steps beneath the given steps, and how
// many of them are completed.
func CountSteps(steps []Step) (total, completed int) {
	for _, step := range steps {
		total++
		if step.IsCompleted {
			completed++
		}
		t, c := CountSteps(step.SubSteps)
		total += t
		completed += c
	}
	return total, completed
}
