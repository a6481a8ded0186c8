// Package preflight provides readiness checks for the binaries, directories,
// and classifier service moodreel depends on.
//
// The server runs RunAll once at startup and the CLI "moodreel status"
// command renders the same results alongside the dependency report.
package preflight
