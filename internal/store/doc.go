// Package store is the single source of truth for a stepwise profile.
//
// A Store holds the recipe tasks, the source material they were generated
// from, scout results and the to-do boards, plus runtime flags such as
// whether an analysis or a frame capture is in progress. Every change goes
// through an action method that replaces the affected slices instead of
// editing them in place, bumps the revision for persisted fields, and then
// notifies subscribers.
//
// Hydrate loads and migrates the stored profile exactly once. A Persister
// subscribes to the store and writes debounced snapshots back through a
// storage.Adapter. RunEngine, CaptureFrames, ExpandTask, ExpandStep and Scout
// compose the AI client and the frame extractor with the store, turning their
// failures into a Notice that tells the caller how to recover.
package store
