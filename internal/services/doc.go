// Package services defines shared utilities consumed by the store workflows
// and the external integrations (AI proxy, ffmpeg, storage).
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, workflow stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures carry the
//     stage and operation that produced them.
//   - The failure Kind taxonomy used to decide how a failed AI call is
//     surfaced: prompt for a new credential, warn about a transient problem,
//     or report a hard error.
//
// Use these helpers when wiring new workflow logic so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
