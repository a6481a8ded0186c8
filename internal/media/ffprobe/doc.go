// Package ffprobe runs ffprobe and exposes the video metadata the frame
// decoder needs: the primary video stream, its frame rate and a frame count
// estimate for progress reporting.
package ffprobe
