package recipe

import (
	"fmt"
	"strings"
)

// ProjectType distinguishes video-backed projects from text-only ones.
type ProjectType string

const (
	ProjectVideo ProjectType = "video"
	ProjectText  ProjectType = "text"
)

// ParseProjectType validates a project type name.
func ParseProjectType(value string) (ProjectType, error) {
	switch pt := ProjectType(strings.ToLower(strings.TrimSpace(value))); pt {
	case ProjectVideo, ProjectText:
		return pt, nil
	default:
		return "", fmt.Errorf("project type must be video or text, got %q", value)
	}
}

// ProjectFields are the envelope fields shared by the write and read shapes.
type ProjectFields struct {
	Transcript        string        `json:"transcript,omitempty"`
	ScoutResults      []string      `json:"scoutResults,omitempty"`
	ScoutHistory      []string      `json:"scoutHistory,omitempty"`
	ProjectType       ProjectType   `json:"projectType,omitempty"`
	ProjectTitle      string        `json:"projectTitle,omitempty"`
	ScoutTopic        string        `json:"scoutTopic,omitempty"`
	ScoutPlatform     string        `json:"scoutPlatform,omitempty"`
	TodoProjects      []TodoProject `json:"todoProjects"`
	ActiveProjectID   string        `json:"activeProjectId,omitempty"`
	NextProjectNumber int           `json:"nextProjectNumber,omitempty"`
	UpdatedAt         int64         `json:"updatedAt"`
}

// Project is the persistence envelope as written: one singleton record per
// profile.
type Project struct {
	Tasks []Task `json:"tasks"`
	ProjectFields
}

// StoredProject is the persistence envelope as read. Besides typed fields it
// carries the flat to-do fields written before projects existed.
type StoredProject struct {
	Tasks []StoredTask `json:"tasks"`
	ProjectFields
	TodoRows      []TodoRow      `json:"todoRows,omitempty"`
	PriorityDials *PriorityDials `json:"priorityDials,omitempty"`
}

// IsEmpty reports whether the record carries no user data at all.
func (p StoredProject) IsEmpty() bool {
	return len(p.Tasks) == 0 &&
		len(p.TodoProjects) == 0 &&
		len(p.TodoRows) == 0 &&
		p.Transcript == "" &&
		p.ProjectTitle == "" &&
		len(p.ScoutResults) == 0 &&
		len(p.ScoutHistory) == 0
}

// Stored converts a written envelope to its read-side shape.
func (p Project) Stored() StoredProject {
	tasks := make([]StoredTask, 0, len(p.Tasks))
	for _, task := range p.Tasks {
		tasks = append(tasks, task.Stored())
	}
	return StoredProject{Tasks: tasks, ProjectFields: p.ProjectFields}
}
