package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"moodreel/internal/config"
	"moodreel/internal/deps"
	"moodreel/internal/logging"
	"moodreel/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report dependencies, directories and classifier health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			backend, err := ctx.newBackend(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer backend.Close()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			writeLines(out, statusLines(cmd.Context(), cfg, ctx.configPath, backend, colorize))
			return nil
		},
	}
}

func statusLines(ctx context.Context, cfg *config.Config, configPath string, checker preflight.HealthChecker, colorize bool) []string {
	var lines []string
	section := func(title string) {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, renderSectionHeader(title, colorize)...)
	}

	section("Configuration")
	lines = append(lines,
		renderStatusLine("Config file", statusInfo, configPath, colorize),
		renderStatusLine("Classifier", statusInfo, preflight.ClassifierSummary(cfg), colorize),
		renderStatusLine("Sampling window", statusInfo, fmt.Sprintf("%gs (fallback %g fps)", cfg.Sampling.WindowSeconds, cfg.Sampling.FallbackFrameRate), colorize),
		renderStatusLine("Notifications", statusInfo, notificationSummary(cfg), colorize),
	)

	section("Dependencies")
	for _, status := range preflight.CheckSystemDeps(cfg) {
		lines = append(lines, dependencyStatusLine(ctx, status, colorize))
	}

	section("Readiness")
	checks := []preflight.Result{
		preflight.CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		preflight.CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, 2*cfg.MaxUploadBytes()),
		preflight.CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		preflight.CheckClassifier(ctx, "Classifier", checker),
	}
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	usage := preflight.StagingUsage(cfg)
	lines = append(lines, renderStatusLine(usage.Name, statusInfo, usage.Detail, colorize))
	return lines
}

func dependencyStatusLine(ctx context.Context, status deps.Status, colorize bool) string {
	if !status.Available {
		kind := statusError
		if status.Optional {
			kind = statusWarn
		}
		return renderStatusLine(status.Name, kind, status.Detail, colorize)
	}
	detail := status.Command
	if version, err := deps.ToolVersion(ctx, status.Command); err == nil {
		detail = fmt.Sprintf("%s (%s)", version, status.Command)
	}
	return renderStatusLine(status.Name, statusOK, detail, colorize)
}

func notificationSummary(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return "disabled"
	}
	return cfg.Notifications.NtfyTopic
}

func writeLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
