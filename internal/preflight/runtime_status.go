package preflight

import (
	"fmt"
	"strings"

	"moodreel/internal/config"
	"moodreel/internal/staging"
)

// StagingUsage summarises the upload directories currently on disk.
func StagingUsage(cfg *config.Config) Result {
	const name = "Staged uploads"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	uploads, err := staging.ListUploads(cfg.Paths.StagingDir)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	total := formatBytes(staging.TotalSize(uploads))
	switch len(uploads) {
	case 0:
		return Result{Name: name, Passed: true, Detail: "none"}
	case 1:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("1 upload (%s)", total)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d uploads (%s)", len(uploads), total)}
	}
}

// ClassifierSummary describes the configured classifier backend.
func ClassifierSummary(cfg *config.Config) string {
	if cfg == nil {
		return "Unknown"
	}
	c := cfg.Classifier
	parts := []string{c.Backend, strings.TrimRight(c.BaseURL, "/")}
	if c.Backend == config.BackendOllama && strings.TrimSpace(c.Model) != "" {
		parts = append(parts, "model "+c.Model)
	}
	return strings.Join(parts, " · ")
}
