package api

import (
	"math"
	"path/filepath"

	"moodreel/internal/analysis"
	"moodreel/internal/deps"
	"moodreel/internal/preflight"
)

// FromResult converts an analysis result to its API representation. file is
// the name shown to the caller, which differs from Result.Path for uploads.
func FromResult(result *analysis.Result, file string) AnalysisResponse {
	if result == nil {
		return AnalysisResponse{File: file, Outcome: analysis.OutcomeFailed, Message: "Video analysis failed.", Entries: []TallyEntry{}}
	}
	if file == "" {
		file = filepath.Base(result.Path)
	}

	dto := AnalysisResponse{
		RunID:         result.RunID,
		File:          file,
		Outcome:       result.Outcome(),
		Message:       result.Message(),
		Dominant:      string(result.Dominant),
		Entries:       []TallyEntry{},
		FrameRate:     result.FrameRate,
		Interval:      result.Interval,
		DurationMS:    result.Duration().Milliseconds(),
		FailureReason: result.FailureReason,
		Error:         result.ErrorMessage,
		Frames: FrameCounters{
			Read:    result.FramesRead,
			Sampled: result.FramesSampled,
			Tallied: result.FramesTallied,
			NoFace:  result.FramesNoFace,
			Skipped: result.FramesSkipped,
		},
	}
	if !result.StartedAt.IsZero() {
		dto.StartedAt = result.StartedAt.UTC().Format(dateTimeFormat)
	}
	if !result.FinishedAt.IsZero() {
		dto.FinishedAt = result.FinishedAt.UTC().Format(dateTimeFormat)
	}
	if result.Tally != nil {
		dto.Total = result.Tally.Total()
		for _, entry := range result.Tally.Ranked() {
			dto.Entries = append(dto.Entries, TallyEntry{
				Label:   string(entry.Label),
				Count:   entry.Count,
				Percent: roundTenth(entry.Percent),
			})
		}
	}
	return dto
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckStatus {
	out := make([]CheckStatus, 0, len(results))
	for _, r := range results {
		out = append(out, CheckStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromDependencies converts dependency statuses.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
