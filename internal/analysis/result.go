package analysis

import (
	"errors"
	"fmt"
	"time"

	"moodreel/internal/emotion"
	"moodreel/internal/services"
	"moodreel/internal/tally"
)

// Sample records what happened at one sampled frame.
type Sample struct {
	Index     int           `json:"index"`
	Timestamp time.Duration `json:"timestamp_ns"`
	Outcome   Outcome       `json:"outcome"`
}

// Result is the observable record of one run.
type Result struct {
	RunID         string          `json:"run_id"`
	State         State           `json:"state"`
	Path          string          `json:"path"`
	FrameRate     float64         `json:"frame_rate"`
	EffectiveRate float64         `json:"effective_rate"`
	Interval      int             `json:"interval"`
	FramesRead    int             `json:"frames_read"`
	FramesSampled int             `json:"frames_sampled"`
	FramesTallied int             `json:"frames_tallied"`
	FramesNoFace  int             `json:"frames_no_face"`
	FramesSkipped int             `json:"frames_skipped"`
	Tally         *tally.Snapshot `json:"tally,omitempty"`
	Dominant      emotion.Label   `json:"dominant,omitempty"`
	Samples       []Sample        `json:"samples,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Err           error           `json:"-"`
	ErrorMessage  string          `json:"error,omitempty"`
}

// Outcome values reported by Result.Outcome.
const (
	OutcomeCompleted = "completed"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

// Outcome summarizes the run as completed, empty, or failed.
func (r *Result) Outcome() string {
	switch {
	case r == nil || r.State == StateFailed:
		return OutcomeFailed
	case r.Tally == nil || r.Tally.Empty():
		return OutcomeEmpty
	default:
		return OutcomeCompleted
	}
}

// SourceUnavailable reports whether the run failed because the video could not be read.
func (r *Result) SourceUnavailable() bool {
	return r != nil && errors.Is(r.Err, services.ErrSourceUnavailable)
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Message is the user-facing one-line summary.
func (r *Result) Message() string {
	switch r.Outcome() {
	case OutcomeFailed:
		if r == nil {
			return "Video analysis failed."
		}
		if r.SourceUnavailable() {
			return "Could not read the video file."
		}
		if r.FailureReason != "" {
			return fmt.Sprintf("Video analysis failed: %s.", r.FailureReason)
		}
		return "Video analysis failed."
	case OutcomeEmpty:
		return "No emotions detected in video frames."
	default:
		return fmt.Sprintf("Dominant emotion: %s (%d of %d samples, %.1f%%).",
			r.Dominant, r.Tally.Count(r.Dominant), r.Tally.Total(), r.Tally.Percent(r.Dominant))
	}
}
