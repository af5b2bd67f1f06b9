package main

import (
	"fmt"
	"strconv"
	"strings"

	"stepwise/internal/recipe"
)

// Tasks and steps are addressed either by id or by a dotted 1-based path:
// "2" is the second task, "2.1.3" its first step's third child.

func parsePath(ref string) ([]int, bool) {
	parts := strings.Split(strings.TrimSpace(ref), ".")
	path := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, false
		}
		path = append(path, n-1)
	}
	return path, len(path) > 0
}

func resolveTask(tasks []recipe.Task, ref string) (recipe.Task, error) {
	ref = strings.TrimSpace(ref)
	if path, ok := parsePath(ref); ok && len(path) == 1 {
		if path[0] < len(tasks) {
			return tasks[path[0]], nil
		}
		return recipe.Task{}, fmt.Errorf("no task #%s (there are %d)", ref, len(tasks))
	}
	for _, task := range tasks {
		if task.ID == ref {
			return task, nil
		}
	}
	return recipe.Task{}, fmt.Errorf("task %q not found", ref)
}

// resolveStep returns the owning task and the step named by ref.
func resolveStep(tasks []recipe.Task, ref string) (recipe.Task, recipe.Step, error) {
	ref = strings.TrimSpace(ref)
	if path, ok := parsePath(ref); ok {
		if len(path) < 2 {
			return recipe.Task{}, recipe.Step{}, fmt.Errorf("%q names a task, not a step", ref)
		}
		if path[0] >= len(tasks) {
			return recipe.Task{}, recipe.Step{}, fmt.Errorf("no task #%d", path[0]+1)
		}
		task := tasks[path[0]]
		steps := task.SubSteps
		var step recipe.Step
		for depth, idx := range path[1:] {
			if idx >= len(steps) {
				return recipe.Task{}, recipe.Step{}, fmt.Errorf("no step %s", stepLabel(path[:depth+2]))
			}
			step = steps[idx]
			steps = step.SubSteps
		}
		return task, step, nil
	}
	idx, step := recipe.FindTaskStep(tasks, ref)
	if step == nil {
		return recipe.Task{}, recipe.Step{}, fmt.Errorf("step %q not found", ref)
	}
	return tasks[idx], *step, nil
}

func stepLabel(path []int) string {
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = strconv.Itoa(n + 1)
	}
	return strings.Join(parts, ".")
}
