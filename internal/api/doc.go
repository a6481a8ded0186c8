// Package api defines the wire-format types, converters, and the shared
// analysis workflow behind the HTTP upload server and the CLI.
//
// # Key Types
//
// AnalysisResponse: transport representation of one analysis run with the
// ranked tally and per-outcome frame counters.
//
// HealthResponse: preflight results and dependency availability.
//
// AnalysisService: takes the run lock, stages uploads, runs the analyzer and
// publishes the outcome notification. Both entry points share it so the CLI
// and the server report identical results.
//
// Server: net/http handlers for POST /api/analyze, GET /api/health and the
// upload form at /.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Timestamps use
// RFC3339 with milliseconds. Percentages are rounded to one decimal place.
package api
