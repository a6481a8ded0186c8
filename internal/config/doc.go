// Package config loads, normalizes, and validates moodreel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// MOODREEL_CLASSIFIER_URL. The Config type centralizes every knob the CLI and
// the HTTP server need, so the sampling window, classifier endpoint, and
// staging directory are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
