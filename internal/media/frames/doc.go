// Package frames decodes video containers into RGB frames by piping ffmpeg
// rawvideo output.
//
// Opener probes the container with ffprobe for dimensions, frame rate, and a
// frame-count estimate, then starts ffmpeg writing packed rgb24 frames to
// stdout. Each Next call reads exactly one frame. The ffmpeg process is owned
// by the Reader and is killed and reaped by Close.
package frames
