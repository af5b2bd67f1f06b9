package recipe

import "github.com/google/uuid"

// NewID returns a fresh random identifier for tasks, steps, rows and projects.
func NewID() string {
	return uuid.NewString()
}
