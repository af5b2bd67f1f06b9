package store

import (
	"slices"

	"stepwise/internal/recipe"
	"stepwise/internal/services"
)

// Status values shown while a workflow runs.
const (
	StatusIdle      = ""
	StatusAnalyzing = "analyzing"
	StatusCapturing = "capturing"
	StatusExpanding = "expanding"
	StatusScouting  = "scouting"
)

// Reaction tells the caller how to recover from a failure.
type Reaction string

const (
	ReactionNewCredential    Reaction = "new_credential"
	ReactionTransientWarning Reaction = "transient_warning"
	ReactionHardError        Reaction = "hard_error"
	ReactionReselectSource   Reaction = "reselect_source"
	ReactionExportBackup     Reaction = "export_backup"
)

// Failure kinds raised by the store itself rather than the AI client.
const (
	KindSourceUnavailable services.Kind = "source_unavailable"
	KindPersist           services.Kind = "persist_failed"
)

// ReactionFor maps a failure kind to its recovery action.
func ReactionFor(kind services.Kind) Reaction {
	switch kind {
	case services.KindQuota, services.KindRateLimited, services.KindAuth:
		return ReactionNewCredential
	case services.KindOverloaded, services.KindNetwork, services.KindTimeout:
		return ReactionTransientWarning
	case KindSourceUnavailable:
		return ReactionReselectSource
	case KindPersist:
		return ReactionExportBackup
	default:
		return ReactionHardError
	}
}

// Notice is the most recent user-facing failure.
type Notice struct {
	Kind     services.Kind
	Reaction Reaction
	Message  string
}

// State is the full application state. Slices are never modified after they
// are published; actions replace them.
type State struct {
	Tasks             []recipe.Task
	Transcript        string
	ScoutResults      []string
	ScoutHistory      []string
	ProjectType       recipe.ProjectType
	ProjectTitle      string
	ScoutTopic        string
	ScoutPlatform     string
	TodoProjects      []recipe.TodoProject
	ActiveProjectID   string
	NextProjectNumber int
	UpdatedAt         int64

	// Runtime fields are never persisted and do not bump Revision.
	Hydrated     bool
	IsProcessing bool
	IsExtracting bool
	Status       string
	Notice       *Notice
	APIKey       string

	// Revision increases with every change to a persisted field.
	Revision uint64
}

// ActiveProject returns the selected to-do project.
func (s State) ActiveProject() (recipe.TodoProject, bool) {
	if i := s.activeIndex(); i >= 0 {
		return s.TodoProjects[i], true
	}
	return recipe.TodoProject{}, false
}

// TodoRows returns the rows of the active project.
func (s State) TodoRows() []recipe.TodoRow {
	if project, ok := s.ActiveProject(); ok {
		return project.TodoRows
	}
	return []recipe.TodoRow{}
}

// PriorityDials returns the dials of the active project.
func (s State) PriorityDials() recipe.PriorityDials {
	if project, ok := s.ActiveProject(); ok {
		return project.PriorityDials
	}
	return recipe.DefaultPriorityDials()
}

func (s State) activeIndex() int {
	return s.projectIndex(s.ActiveProjectID)
}

func (s State) projectIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.TodoProjects, func(p recipe.TodoProject) bool { return p.ID == id })
}

func (s State) taskIndex(id string) int {
	return slices.IndexFunc(s.Tasks, func(t recipe.Task) bool { return t.ID == id })
}

// Clone returns a deep copy that callers may modify freely.
func (s State) Clone() State {
	out := s
	out.Tasks = recipe.CloneTasks(s.Tasks)
	out.ScoutResults = slices.Clone(s.ScoutResults)
	out.ScoutHistory = slices.Clone(s.ScoutHistory)
	out.TodoProjects = recipe.CloneProjects(s.TodoProjects)
	if s.Notice != nil {
		notice := *s.Notice
		out.Notice = &notice
	}
	return out
}

// Project returns the persisted envelope for the state.
func (s State) Project() recipe.Project {
	tasks := recipe.CloneTasks(s.Tasks)
	projects := recipe.CloneProjects(s.TodoProjects)
	return recipe.Project{
		Tasks: tasks,
		ProjectFields: recipe.ProjectFields{
			Transcript:        s.Transcript,
			ScoutResults:      slices.Clone(s.ScoutResults),
			ScoutHistory:      slices.Clone(s.ScoutHistory),
			ProjectType:       s.ProjectType,
			ProjectTitle:      s.ProjectTitle,
			ScoutTopic:        s.ScoutTopic,
			ScoutPlatform:     s.ScoutPlatform,
			TodoProjects:      projects,
			ActiveProjectID:   s.ActiveProjectID,
			NextProjectNumber: s.NextProjectNumber,
			UpdatedAt:         s.UpdatedAt,
		},
	}
}

func defaultState(now int64) State {
	project := recipe.NewTodoProject(1, now, nil)
	return State{
		Tasks:             []recipe.Task{},
		ProjectType:       recipe.ProjectVideo,
		TodoProjects:      []recipe.TodoProject{project},
		ActiveProjectID:   project.ID,
		NextProjectNumber: 2,
	}
}
