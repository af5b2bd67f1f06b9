// Package recipe defines the stepwise data model: recipe tasks with their
// recursive steps, the to-do board (projects, rows, priority dials), and the
// persisted project envelope.
//
// Two families of types exist. Task and Step are the in-memory shapes every
// other package works with; their children are always typed Step values.
// StoredTask, StoredStep and Child are read-side shapes that accept older
// records whose children were plain strings. Normalize converts the latter
// into the former at the hydration boundary.
package recipe
