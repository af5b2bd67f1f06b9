package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"stepwise/internal/recipe"
	"stepwise/internal/services"
)

var (
	// ErrMalformed marks output that is not valid JSON even after repair.
	ErrMalformed = errors.New("malformed model output")
	// ErrShape marks valid JSON that does not match the expected structure.
	ErrShape = errors.New("model output has unexpected shape")
)

// Sub-step list bounds accepted by SafeParseSubSteps.
const (
	MinSubSteps = 3
	MaxSubSteps = 8
)

// ParseError describes why model output was rejected.
type ParseError struct {
	Reason  error
	Index   int
	Field   string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason.Error())
	if e.Index >= 0 {
		fmt.Fprintf(&b, ": item %d", e.Index)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %s", e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Snippet != "" {
		fmt.Fprintf(&b, " (payload snippet: %s)", e.Snippet)
	}
	return b.String()
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// FailureKind classifies parse failures for the store's error reactions.
func (e *ParseError) FailureKind() services.Kind {
	return services.KindParse
}

func malformed(raw string, err error) *ParseError {
	return &ParseError{Reason: ErrMalformed, Index: -1, Snippet: summarizeSnippet(raw), Err: err}
}

func shapeError(index int, field, raw string, err error) *ParseError {
	return &ParseError{Reason: ErrShape, Index: index, Field: field, Snippet: summarizeSnippet(raw), Err: err}
}

type wireTask struct {
	ID               json.RawMessage `json:"id"`
	TaskName         *string         `json:"task_name"`
	TimestampSeconds *float64        `json:"timestamp_seconds"`
	Description      *string         `json:"description"`
	SubSteps         []recipe.Child  `json:"sub_steps"`
}

// SafeParseTasks repairs and validates a task list. Each item needs a string
// task_name, a non-negative numeric timestamp_seconds and a string
// description; sub_steps and id are optional. The list may also arrive
// wrapped as {"tasks": [...]}.
func SafeParseTasks(raw string) ([]recipe.StoredTask, error) {
	repaired := Repair(raw)
	items, err := decodeArray(repaired, "tasks")
	if err != nil {
		return nil, err
	}
	tasks := make([]recipe.StoredTask, 0, len(items))
	for i, item := range items {
		task, err := decodeTask(i, item, repaired)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func decodeTask(index int, item json.RawMessage, repaired string) (recipe.StoredTask, error) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return recipe.StoredTask{}, shapeError(index, "", repaired, errors.New("expected object"))
	}
	var wire wireTask
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return recipe.StoredTask{}, shapeError(index, typeErr.Field, repaired, err)
		}
		return recipe.StoredTask{}, shapeError(index, "sub_steps", repaired, err)
	}
	switch {
	case wire.TaskName == nil:
		return recipe.StoredTask{}, shapeError(index, "task_name", repaired, errors.New("required"))
	case wire.TimestampSeconds == nil:
		return recipe.StoredTask{}, shapeError(index, "timestamp_seconds", repaired, errors.New("required"))
	case *wire.TimestampSeconds < 0:
		return recipe.StoredTask{}, shapeError(index, "timestamp_seconds", repaired, fmt.Errorf("must be >= 0, got %v", *wire.TimestampSeconds))
	case wire.Description == nil:
		return recipe.StoredTask{}, shapeError(index, "description", repaired, errors.New("required"))
	}
	return recipe.StoredTask{
		ID:               stringID(wire.ID),
		TaskName:         nfc(*wire.TaskName),
		TimestampSeconds: *wire.TimestampSeconds,
		Description:      nfc(*wire.Description),
		SubSteps:         normalizeChildren(wire.SubSteps),
	}, nil
}

// stringID keeps string ids from the model and drops anything else so a
// fresh id is assigned later.
func stringID(raw json.RawMessage) string {
	var id string
	if len(raw) == 0 || json.Unmarshal(raw, &id) != nil {
		return ""
	}
	return strings.TrimSpace(id)
}

func normalizeChildren(children []recipe.Child) []recipe.Child {
	if len(children) == 0 {
		return nil
	}
	out := make([]recipe.Child, 0, len(children))
	for _, child := range children {
		if child.IsLeaf() {
			out = append(out, recipe.Leaf(nfc(child.Text())))
			continue
		}
		step := *child.Step()
		step.Text = nfc(step.Text)
		step.SubSteps = normalizeChildren(step.SubSteps)
		out = append(out, recipe.Node(&step))
	}
	return out
}

// SafeParseSubSteps returns between three and eight step texts, or an empty
// slice when the output does not fit that shape.
func SafeParseSubSteps(raw string) []string {
	steps := parseStrings(raw, "steps", "sub_steps")
	if len(steps) < MinSubSteps || len(steps) > MaxSubSteps {
		return []string{}
	}
	return steps
}

// SafeParseSearchQueries returns a non-empty list of queries, or an empty
// slice when the output does not fit that shape.
func SafeParseSearchQueries(raw string) []string {
	return parseStrings(raw, "queries")
}

func parseStrings(raw string, wrappers ...string) []string {
	items, err := decodeArray(Repair(raw), wrappers...)
	if err != nil || len(items) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var text string
		if err := json.Unmarshal(item, &text); err != nil {
			return []string{}
		}
		text = strings.TrimSpace(nfc(text))
		if text == "" {
			return []string{}
		}
		out = append(out, text)
	}
	return out
}

// decodeArray decodes a JSON array, also accepting an object whose only
// relevant field (one of wrappers) holds the array.
func decodeArray(repaired string, wrappers ...string) ([]json.RawMessage, error) {
	data := []byte(repaired)
	if !json.Valid(data) {
		var items []json.RawMessage
		err := json.Unmarshal(data, &items)
		return nil, malformed(repaired, err)
	}
	trimmed := bytes.TrimSpace(data)
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, malformed(repaired, err)
		}
		return items, nil
	case '{':
		var object map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return nil, malformed(repaired, err)
		}
		for _, key := range wrappers {
			inner, ok := object[key]
			if !ok {
				continue
			}
			var items []json.RawMessage
			if err := json.Unmarshal(inner, &items); err != nil {
				return nil, shapeError(-1, key, repaired, err)
			}
			return items, nil
		}
		return nil, shapeError(-1, "", repaired, errors.New("expected array"))
	default:
		return nil, shapeError(-1, "", repaired, errors.New("expected array"))
	}
}

func nfc(value string) string {
	return norm.NFC.String(value)
}

func summarizeSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
