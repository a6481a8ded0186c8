package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"moodreel/internal/analysis"
	"moodreel/internal/api"
	"moodreel/internal/config"
	"moodreel/internal/staging"
)

const histogramWidth = 30

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var window float64

	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Report the dominant facial emotion in a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("window") {
				if window <= 0 {
					return fmt.Errorf("--window must be positive, got %v", window)
				}
				cfg.Sampling.WindowSeconds = window
			}

			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			if err := staging.AcceptExtension(path, cfg.Server.AllowedExtensions); err != nil {
				return err
			}

			logger, err := ctx.logger("")
			if err != nil {
				return err
			}
			rt, err := ctx.buildRuntime(logger, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, runErr := rt.service.AnalyzeFile(runCtx, path)
			if result == nil {
				return runErr
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(cmd, api.FromResult(result, "")); err != nil {
					return err
				}
			} else {
				renderAnalysis(out, result, shouldColorize(out))
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the result as JSON")
	cmd.Flags().Float64Var(&window, "window", 0, "Seconds of video between sampled frames (default from config)")
	return cmd
}

func renderAnalysis(out io.Writer, result *analysis.Result, colorize bool) {
	dto := api.FromResult(result, "")
	fmt.Fprintf(out, "File: %s\n", dto.File)
	if result.Outcome() == analysis.OutcomeFailed {
		fmt.Fprintln(out, renderStatusLine("Result", statusError, result.Message(), colorize))
		return
	}

	fmt.Fprintf(out, "Sampled %d of %d frames (every %d frames at %.2f fps)\n",
		dto.Frames.Sampled, dto.Frames.Read, dto.Interval, result.EffectiveRate)
	if dto.Frames.NoFace > 0 || dto.Frames.Skipped > 0 {
		fmt.Fprintf(out, "No face: %d, skipped: %d\n", dto.Frames.NoFace, dto.Frames.Skipped)
	}
	if result.Outcome() == analysis.OutcomeEmpty {
		fmt.Fprintln(out, renderStatusLine("Result", statusWarn, result.Message(), colorize))
		return
	}

	fmt.Fprintln(out, renderHistogram(dto, colorize))
	fmt.Fprintln(out, renderStatusLine("Result", statusOK, result.Message(), colorize))
}

func renderHistogram(dto api.AnalysisResponse, colorize bool) string {
	title := cases.Title(language.English)
	rows := make([][]string, 0, len(dto.Entries))
	for _, entry := range dto.Entries {
		bar := histogramBar(entry.Percent, histogramWidth)
		if colorize && entry.Label == dto.Dominant {
			bar = statusOK.colors().Sprint(bar)
		}
		rows = append(rows, []string{
			title.String(entry.Label),
			fmt.Sprintf("%d", entry.Count),
			fmt.Sprintf("%.1f%%", entry.Percent),
			bar,
		})
	}
	return renderTable(
		[]string{"Emotion", "Frames", "Percent", ""},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
		[]string{"Total", fmt.Sprintf("%d", dto.Total), "", ""},
	)
}

func histogramBar(percent float64, width int) string {
	if percent <= 0 || width <= 0 {
		return ""
	}
	cells := int(math.Round(percent / 100 * float64(width)))
	if cells < 1 {
		cells = 1
	}
	if cells > width {
		cells = width
	}
	return strings.Repeat("█", cells)
}
