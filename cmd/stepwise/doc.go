// Package main hosts the stepwise CLI entrypoint and command graph.
//
// Every command that touches the profile runs inside a session: the config
// is loaded, the profile database is opened and locked, the store is
// hydrated and the auto-persister attached. When the command returns the
// persister is flushed and the database closed, so a command never has to
// save anything itself.
//
// Keep this package thin. Behaviour belongs in internal/store and the
// packages beneath it; commands only parse arguments, call one store
// operation and render the result.
package main
