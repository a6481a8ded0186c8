// Package logs reads the moodreel log file for the `moodreel logs` command.
//
// Last returns the trailing lines with bounded memory and the byte offset to
// resume from. Follow polls from that offset until the context ends and starts
// over when the file is truncated or rotated.
package logs
