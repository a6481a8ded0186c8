package analysis

import (
	"errors"

	"moodreel/internal/emotion"
)

// ErrScanFailed marks a fatal error while reading frames mid-scan.
var ErrScanFailed = errors.New("scan failed")

// State is the lifecycle position of a run.
type State string

const (
	StateIdle      State = "idle"
	StateOpening   State = "opening"
	StateScanning  State = "scanning"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// OutcomeKind classifies what happened to one sampled frame.
type OutcomeKind string

const (
	OutcomeOK      OutcomeKind = "ok"
	OutcomeNoFace  OutcomeKind = "no_face"
	OutcomeSkipped OutcomeKind = "skipped"
)

// Outcome is the per-frame result. Only OutcomeOK carries a label; only
// OutcomeSkipped carries a reason.
type Outcome struct {
	Kind   OutcomeKind   `json:"kind"`
	Label  emotion.Label `json:"label,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Ok is a frame whose first face produced label.
func Ok(label emotion.Label) Outcome { return Outcome{Kind: OutcomeOK, Label: label} }

// NoFace is a frame where the classifier found nothing to score.
func NoFace() Outcome { return Outcome{Kind: OutcomeNoFace} }

// Skipped is a frame dropped because classification failed.
func Skipped(reason string) Outcome { return Outcome{Kind: OutcomeSkipped, Reason: reason} }
