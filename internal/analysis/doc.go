// Package analysis runs one video through the sample, classify, and tally
// pipeline.
//
// A run moves Idle -> Opening -> Scanning and ends Completed or Failed. The
// scan is single-threaded: each step reads a frame, classifies it when it
// falls on the sampling interval, and records the top emotion of the first
// face. Per-frame classifier failures are absorbed as skipped samples; only
// an unreadable source or a mid-scan read failure fails the run. An empty
// tally is a completed run, not a failure.
package analysis
