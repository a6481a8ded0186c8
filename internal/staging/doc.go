// Package staging accepts video files for analysis.
//
// Uploads are written into per-request directories beneath the configured
// staging directory, stale directories left behind by crashed runs are swept
// by Sweep, and RunLock serialises analyses across the CLI and the HTTP
// server with a file lock.
package staging
