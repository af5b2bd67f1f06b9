// Package config loads, normalizes, and validates stepwise configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// STEPWISE_API_KEY. The Config type centralizes every knob the CLI, the AI
// client, the frame extractor, and the store need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
