package recipe

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StoredTask is the read-side shape of a Task. Its children may be legacy
// plain strings.
type StoredTask struct {
	ID               string  `json:"id,omitempty"`
	TaskName         string  `json:"task_name"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Description      string  `json:"description"`
	ScreenshotBase64 string  `json:"screenshot_base64,omitempty"`
	SubSteps         []Child `json:"sub_steps,omitempty"`
}

// StoredStep is the read-side shape of a Step.
type StoredStep struct {
	ID          string  `json:"id,omitempty"`
	Text        string  `json:"text"`
	IsCompleted bool    `json:"isCompleted,omitempty"`
	SubSteps    []Child `json:"sub_steps,omitempty"`
}

// Child is one entry of a stored sub_steps array: either a Leaf holding the
// raw text of an unmigrated step, or a Node holding a step object.
type Child struct {
	leaf string
	node *StoredStep
}

// Leaf wraps legacy step text.
func Leaf(text string) Child {
	return Child{leaf: text}
}

// Node wraps a step object.
func Node(step *StoredStep) Child {
	return Child{node: step}
}

// IsLeaf reports whether the child is legacy text.
func (c Child) IsLeaf() bool {
	return c.node == nil
}

// Text returns the step text for either variant.
func (c Child) Text() string {
	if c.node != nil {
		return c.node.Text
	}
	return c.leaf
}

// Step returns the step object, or nil for a leaf.
func (c Child) Step() *StoredStep {
	return c.node
}

// MarshalJSON encodes a leaf as a string and a node as an object.
func (c Child) MarshalJSON() ([]byte, error) {
	if c.node != nil {
		return json.Marshal(c.node)
	}
	return json.Marshal(c.leaf)
}

// UnmarshalJSON accepts either a JSON string or a step object.
func (c *Child) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("sub_steps entry: empty value")
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return fmt.Errorf("sub_steps entry: %w", err)
		}
		*c = Leaf(text)
		return nil
	case '{':
		var step StoredStep
		if err := json.Unmarshal(trimmed, &step); err != nil {
			return fmt.Errorf("sub_steps entry: %w", err)
		}
		*c = Node(&step)
		return nil
	default:
		return fmt.Errorf("sub_steps entry: expected string or object, got %s", preview(trimmed))
	}
}

func preview(data []byte) string {
	const limit = 32
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}

// HasLegacyChildren reports whether any sub_steps array beneath the task
// still holds raw strings.
func (t StoredTask) HasLegacyChildren() bool {
	return hasLeaves(t.SubSteps)
}

func hasLeaves(children []Child) bool {
	for _, child := range children {
		if child.IsLeaf() || hasLeaves(child.node.SubSteps) {
			return true
		}
	}
	return false
}
