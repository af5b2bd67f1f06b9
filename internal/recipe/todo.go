package recipe

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// StepsPerRow is the fixed number of step cells on a to-do row.
const StepsPerRow = 4

// TodoRow is one line of a to-do board. Steps always has exactly four cells;
// decoding pads shorter arrays and drops extra entries.
type TodoRow struct {
	ID           string              `json:"id"`
	Task         string              `json:"task"`
	Steps        [StepsPerRow]string `json:"steps"`
	IsCompleted  bool                `json:"isCompleted"`
	SourceStepID string              `json:"sourceStepId,omitempty"`
}

// NewTodoRow creates a row with a fresh id. Steps beyond the fourth are
// ignored.
func NewTodoRow(task string, steps ...string) TodoRow {
	row := TodoRow{ID: NewID(), Task: strings.TrimSpace(task)}
	copy(row.Steps[:], steps)
	return row
}

// FocusedSide names which priority dial currently has focus.
type FocusedSide string

const (
	FocusLeft  FocusedSide = "left"
	FocusRight FocusedSide = "right"
	FocusNone  FocusedSide = "none"
)

// ParseFocusedSide validates a side name.
func ParseFocusedSide(value string) (FocusedSide, error) {
	switch side := FocusedSide(strings.ToLower(strings.TrimSpace(value))); side {
	case FocusLeft, FocusRight, FocusNone:
		return side, nil
	default:
		return "", fmt.Errorf("focused side must be left, right, or none, got %q", value)
	}
}

// Dial bounds.
const (
	DialMin     = 0
	DialMax     = 100
	DialDefault = 50
)

// PriorityDials holds the two priority sliders of a to-do project.
type PriorityDials struct {
	Left        int         `json:"left"`
	Right       int         `json:"right"`
	FocusedSide FocusedSide `json:"focusedSide"`
}

// DefaultPriorityDials returns centred dials with no focus.
func DefaultPriorityDials() PriorityDials {
	return PriorityDials{Left: DialDefault, Right: DialDefault, FocusedSide: FocusNone}
}

// Clamp bounds both dials and repairs an unknown focus.
func (d PriorityDials) Clamp() PriorityDials {
	d.Left = clampDial(d.Left)
	d.Right = clampDial(d.Right)
	if _, err := ParseFocusedSide(string(d.FocusedSide)); err != nil {
		d.FocusedSide = FocusNone
	}
	return d
}

func clampDial(v int) int {
	return min(max(v, DialMin), DialMax)
}

// UnmarshalJSON accepts fractional dial values from older records and clamps
// them into range.
func (d *PriorityDials) UnmarshalJSON(data []byte) error {
	var aux struct {
		Left        *float64 `json:"left"`
		Right       *float64 `json:"right"`
		FocusedSide string   `json:"focusedSide"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	out := DefaultPriorityDials()
	if aux.Left != nil {
		out.Left = int(math.Round(*aux.Left))
	}
	if aux.Right != nil {
		out.Right = int(math.Round(*aux.Right))
	}
	out.FocusedSide = FocusedSide(aux.FocusedSide)
	*d = out.Clamp()
	return nil
}

// TodoProject is an independently named and coloured to-do board.
type TodoProject struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Color         string        `json:"color"`
	TodoRows      []TodoRow     `json:"todoRows"`
	PriorityDials PriorityDials `json:"priorityDials"`
	CreatedAt     int64         `json:"createdAt"`
}

var projectPalette = []string{
	"#6366f1",
	"#f59e0b",
	"#10b981",
	"#ef4444",
	"#3b82f6",
	"#ec4899",
	"#8b5cf6",
	"#14b8a6",
}

// ProjectColor returns the palette colour for the n-th project (1-based),
// cycling once the palette is exhausted.
func ProjectColor(n int) string {
	if n < 1 {
		n = 1
	}
	return projectPalette[(n-1)%len(projectPalette)]
}

// DefaultProjectName returns the default name for the n-th project.
func DefaultProjectName(n int) string {
	return fmt.Sprintf("Project %d", n)
}

// NewTodoProject builds the n-th default project.
func NewTodoProject(n int, createdAt int64, rows []TodoRow) TodoProject {
	if rows == nil {
		rows = []TodoRow{}
	}
	return TodoProject{
		ID:            NewID(),
		Name:          DefaultProjectName(n),
		Color:         ProjectColor(n),
		TodoRows:      rows,
		PriorityDials: DefaultPriorityDials(),
		CreatedAt:     createdAt,
	}
}

// Clone returns a deep copy of the project.
func (p TodoProject) Clone() TodoProject {
	p.TodoRows = append([]TodoRow(nil), p.TodoRows...)
	if p.TodoRows == nil {
		p.TodoRows = []TodoRow{}
	}
	return p
}

// CloneProjects deep-copies a project list.
func CloneProjects(projects []TodoProject) []TodoProject {
	out := make([]TodoProject, len(projects))
	for i, project := range projects {
		out[i] = project.Clone()
	}
	return out
}

// RowIndex returns the index of the row with the given id, or -1.
func (p TodoProject) RowIndex(id string) int {
	for i, row := range p.TodoRows {
		if row.ID == id {
			return i
		}
	}
	return -1
}
