package recipe

// Normalize converts a stored task into its typed form. Leaves become steps
// with fresh ids, existing ids are kept, and every level of nesting is
// visited. Missing task or step ids are assigned.
func Normalize(stored StoredTask) Task {
	id := stored.ID
	if id == "" {
		id = NewID()
	}
	timestamp := stored.TimestampSeconds
	if timestamp < 0 {
		timestamp = 0
	}
	return Task{
		ID:               id,
		TaskName:         stored.TaskName,
		TimestampSeconds: timestamp,
		Description:      stored.Description,
		ScreenshotBase64: stored.ScreenshotBase64,
		SubSteps:         normalizeChildren(stored.SubSteps),
	}
}

// NormalizeTasks normalizes every task, preserving order.
func NormalizeTasks(stored []StoredTask) []Task {
	tasks := make([]Task, 0, len(stored))
	for _, task := range stored {
		tasks = append(tasks, Normalize(task))
	}
	return tasks
}

func normalizeChildren(children []Child) []Step {
	steps := make([]Step, 0, len(children))
	for _, child := range children {
		if child.IsLeaf() {
			steps = append(steps, Step{ID: NewID(), Text: child.Text(), SubSteps: []Step{}})
			continue
		}
		node := child.Step()
		id := node.ID
		if id == "" {
			id = NewID()
		}
		steps = append(steps, Step{
			ID:          id,
			Text:        node.Text,
			IsCompleted: node.IsCompleted,
			SubSteps:    normalizeChildren(node.SubSteps),
		})
	}
	return steps
}

// Stored converts a typed task back to its read-side shape.
func (t Task) Stored() StoredTask {
	return StoredTask{
		ID:               t.ID,
		TaskName:         t.TaskName,
		TimestampSeconds: t.TimestampSeconds,
		Description:      t.Description,
		ScreenshotBase64: t.ScreenshotBase64,
		SubSteps:         storedChildren(t.SubSteps),
	}
}

func storedChildren(steps []Step) []Child {
	if len(steps) == 0 {
		return nil
	}
	children := make([]Child, 0, len(steps))
	for _, step := range steps {
		children = append(children, Node(&StoredStep{
			ID:          step.ID,
			Text:        step.Text,
			IsCompleted: step.IsCompleted,
			SubSteps:    storedChildren(step.SubSteps),
		}))
	}
	return children
}

// AssignFreshIDs gives every task and step in the tree a new random id.
func AssignFreshIDs(tasks []Task) {
	for i := range tasks {
		tasks[i].ID = NewID()
		freshStepIDs(tasks[i].SubSteps)
	}
}

func freshStepIDs(steps []Step) {
	for i := range steps {
		steps[i].ID = NewID()
		freshStepIDs(steps[i].SubSteps)
	}
}

// DedupeIDs replaces empty ids and ids already used elsewhere in the tree,
// visiting tasks and steps depth-first in order. The first holder of an id
// keeps it. It reports whether any id changed.
func DedupeIDs(tasks []Task) bool {
	seen := make(map[string]struct{})
	changed := false
	claim := func(id *string) {
		if _, dup := seen[*id]; *id == "" || dup {
			*id = NewID()
			changed = true
		}
		seen[*id] = struct{}{}
	}
	var walk func(steps []Step)
	walk = func(steps []Step) {
		for i := range steps {
			claim(&steps[i].ID)
			walk(steps[i].SubSteps)
		}
	}
	for i := range tasks {
		claim(&tasks[i].ID)
		walk(tasks[i].SubSteps)
	}
	return changed
}
