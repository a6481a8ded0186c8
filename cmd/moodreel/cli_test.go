package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"moodreel/internal/analysis"
	"moodreel/internal/api"
	"moodreel/internal/classifier"
	"moodreel/internal/config"
	"moodreel/internal/emotion"
	"moodreel/internal/notifications"
	"moodreel/internal/sampler"
	"moodreel/internal/services"
)

type stubSource struct {
	frames int
	pos    int
}

func (s *stubSource) FrameRate() float64 { return 30 }

func (s *stubSource) Next(context.Context) (image.Image, error) {
	if s.pos >= s.frames {
		return nil, io.EOF
	}
	s.pos++
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func (s *stubSource) Close() error { return nil }

type stubBackend struct {
	labels []emotion.Label
	calls  int
	health error
}

func (b *stubBackend) Classify(context.Context, image.Image) ([]emotion.Face, error) {
	label := b.labels[b.calls%len(b.labels)]
	b.calls++
	if label == "" {
		return nil, nil
	}
	return []emotion.Face{{Scores: emotion.Scores{{Label: label, Value: 0.9}}}}, nil
}

func (b *stubBackend) HealthCheck(context.Context) error { return b.health }

func (b *stubBackend) Close() error { return nil }

type cliEnv struct {
	ctx        *commandContext
	configPath string
	baseDir    string
	backend    *stubBackend
}

func setupCLIEnv(t *testing.T, frames int, labels ...emotion.Label) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("MOODREEL_CLASSIFIER_URL", "")
	t.Setenv("MOODREEL_NTFY_TOPIC", "")

	configPath := filepath.Join(base, "config.toml")
	content := "[paths]\n" +
		"staging_dir = \"" + filepath.Join(base, "staging") + "\"\n" +
		"log_dir = \"" + filepath.Join(base, "logs") + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	backend := &stubBackend{labels: labels}
	ctx := newCommandContext()
	ctx.newBackend = func(*config.Config, *slog.Logger) (classifier.Backend, error) { return backend, nil }
	ctx.newOpener = func(*config.Config, *slog.Logger) analysis.Opener {
		return analysis.OpenerFunc(func(_ context.Context, path string) (sampler.Source, error) {
			if strings.Contains(path, "unreadable") {
				return nil, errors.New("moov atom not found")
			}
			return &stubSource{frames: frames}, nil
		})
	}
	ctx.newNotifier = func(*config.Config) notifications.Service { return notifications.NewService(nil) }
	return &cliEnv{ctx: ctx, configPath: configPath, baseDir: base, backend: backend}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := buildRootCommand(e.ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommandPrintsHistogram(t *testing.T) {
	env := setupCLIEnv(t, 180, emotion.Happy, emotion.Sad, emotion.Happy)

	out, err := env.run(t, "analyze", filepath.Join(env.baseDir, "party.mp4"))
	if err != nil {
		t.Fatalf("analyze returned error: %v\n%s", err, out)
	}
	for _, want := range []string{"File: party.mp4", "Happy", "Sad", "66.7%", "Dominant emotion: happy (2 of 3 samples, 66.7%)."} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("output to a buffer should not be colourised:\n%s", out)
	}
}

func TestAnalyzeCommandJSON(t *testing.T) {
	env := setupCLIEnv(t, 120, emotion.Surprise)

	out, err := env.run(t, "analyze", "--json", filepath.Join(env.baseDir, "clip.mov"))
	if err != nil {
		t.Fatalf("analyze returned error: %v", err)
	}
	var resp api.AnalysisResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode JSON: %v\n%s", err, out)
	}
	if resp.Outcome != analysis.OutcomeCompleted || resp.Dominant != "surprise" || resp.Total != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAnalyzeCommandWindowOverride(t *testing.T) {
	env := setupCLIEnv(t, 120, emotion.Neutral)

	out, err := env.run(t, "analyze", "--json", "--window", "1", filepath.Join(env.baseDir, "clip.mp4"))
	if err != nil {
		t.Fatalf("analyze returned error: %v", err)
	}
	var resp api.AnalysisResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp.Interval != 30 || resp.Frames.Sampled != 4 {
		t.Fatalf("expected interval 30 with 4 samples, got %d and %d", resp.Interval, resp.Frames.Sampled)
	}

	if _, err := env.run(t, "analyze", "--window", "0", "clip.mp4"); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestAnalyzeCommandEmpty(t *testing.T) {
	env := setupCLIEnv(t, 120, "")

	out, err := env.run(t, "analyze", filepath.Join(env.baseDir, "empty.avi"))
	if err != nil {
		t.Fatalf("empty result should not fail: %v", err)
	}
	if !strings.Contains(out, "No emotions detected in video frames.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "Emotion") {
		t.Fatalf("empty result should not print a table:\n%s", out)
	}
}

func TestAnalyzeCommandUnreadable(t *testing.T) {
	env := setupCLIEnv(t, 120, emotion.Happy)

	out, err := env.run(t, "analyze", filepath.Join(env.baseDir, "unreadable.mp4"))
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable error, got %v", err)
	}
	if !strings.Contains(out, "Could not read the video file.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestAnalyzeCommandRejectsExtension(t *testing.T) {
	env := setupCLIEnv(t, 120, emotion.Happy)
	if _, err := env.run(t, "analyze", "notes.txt"); err == nil || !strings.Contains(err.Error(), "unsupported video extension") {
		t.Fatalf("expected extension error, got %v", err)
	}
	if env.backend.calls != 0 {
		t.Fatalf("classifier should not be called, got %d calls", env.backend.calls)
	}
}

func TestHistogramBar(t *testing.T) {
	tests := []struct {
		percent float64
		want    int
	}{
		{0, 0},
		{0.5, 1},
		{50, 15},
		{100, 30},
		{150, 30},
	}
	for _, tt := range tests {
		if got := len([]rune(histogramBar(tt.percent, histogramWidth))); got != tt.want {
			t.Fatalf("histogramBar(%v) has %d cells, want %d", tt.percent, got, tt.want)
		}
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLIEnv(t, 0, emotion.Happy)
	target := filepath.Join(env.baseDir, "generated", "config.toml")

	out, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target path in output, got %q", out)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}

	out, err = env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := setupCLIEnv(t, 0, emotion.Happy)
	t.Setenv("MOODREEL_CLASSIFIER_API_KEY", "s3cret-key")

	out, err := env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "s3cret-key") {
		t.Fatalf("api key leaked:\n%s", out)
	}
	for _, want := range []string{"# " + env.configPath, "********", "staging_dir"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestTestNotifyDisabled(t *testing.T) {
	env := setupCLIEnv(t, 0, emotion.Happy)
	out, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "Notifications disabled") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLIEnv(t, 0, emotion.Happy)
	env.backend.health = errors.New("connection refused")

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"== Configuration ==", "== Dependencies ==", "Staging directory:", "[ERROR] connection refused", "Staged uploads:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in status output:\n%s", want, out)
		}
	}
}

func TestLogsCommandShowsTrailingLines(t *testing.T) {
	env := setupCLIEnv(t, 30)
	logDir := filepath.Join(env.baseDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "first\nsecond\nthird\n"
	if err := os.WriteFile(filepath.Join(logDir, "moodreel.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, err := env.run(t, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs returned error: %v", err)
	}
	if out != "second\nthird\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
