// Package logging assembles structured slog loggers and formatting helpers used
// across moodreel commands and the upload server.
//
// It owns the configurable console, JSON, and tint handlers, centralizes level
// and output plumbing, and exposes context-aware helpers so analysis code can
// automatically tag log lines with run IDs, stages, and correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot fail.
package logging
