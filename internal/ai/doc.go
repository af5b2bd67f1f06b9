// Package ai is the rate-limited client for the generative model.
//
// Every outbound call passes through three layers. A Pacer spaces calls at
// least min_delay apart across all callers in the process. A retry loop
// repeats rate-limited, overloaded and network failures with exponential
// backoff. A per-attempt timer turns stalled calls into ErrTimedOut.
//
// The model itself is reached through a Generator; ProxyGenerator talks to a
// local HTTP proxy that forwards to the provider. Responses are parsed with
// internal/schema before they leave this package.
package ai
