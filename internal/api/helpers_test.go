package api

import (
	"context"
	"sync"
	"time"

	"moodreel/internal/analysis"
	"moodreel/internal/emotion"
	"moodreel/internal/services"
	"moodreel/internal/tally"
)

type analyzerFunc func(ctx context.Context, path string) (*analysis.Result, error)

func (f analyzerFunc) Analyze(ctx context.Context, path string) (*analysis.Result, error) {
	return f(ctx, path)
}

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func completedResult(path string, labels ...emotion.Label) *analysis.Result {
	agg := tally.NewAggregator()
	for _, l := range labels {
		agg.Record(l)
	}
	snap := agg.Finalize()
	dominant, _ := snap.Dominant()
	return &analysis.Result{
		RunID:         "run-1",
		State:         analysis.StateCompleted,
		Path:          path,
		FrameRate:     30,
		Interval:      60,
		FramesRead:    len(labels) * 60,
		FramesSampled: len(labels),
		FramesTallied: len(labels),
		Tally:         &snap,
		Dominant:      dominant,
		StartedAt:     testStart,
		FinishedAt:    testStart.Add(1500 * time.Millisecond),
	}
}

func unreadableResult(path string) (*analysis.Result, error) {
	err := services.Wrap(services.ErrSourceUnavailable, "opening", "open", path, nil)
	return &analysis.Result{
		RunID:         "run-2",
		State:         analysis.StateFailed,
		Path:          path,
		StartedAt:     testStart,
		FinishedAt:    testStart,
		Err:           err,
		ErrorMessage:  err.Error(),
		FailureReason: services.FailureReason(err),
	}, err
}

type notification struct {
	kind     string
	file     string
	dominant string
	count    int
	samples  int
	err      string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (r *recordingNotifier) add(n notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, n)
	return nil
}

func (r *recordingNotifier) NotifyAnalysisCompleted(_ context.Context, file, dominant string, count, samples int) error {
	return r.add(notification{kind: "completed", file: file, dominant: dominant, count: count, samples: samples})
}

func (r *recordingNotifier) NotifyNoEmotions(_ context.Context, file string) error {
	return r.add(notification{kind: "empty", file: file})
}

func (r *recordingNotifier) NotifyAnalysisFailed(_ context.Context, file string, err error) error {
	return r.add(notification{kind: "failed", file: file, err: err.Error()})
}

func (r *recordingNotifier) TestNotification(context.Context) error {
	return r.add(notification{kind: "test"})
}

func (r *recordingNotifier) snapshot() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.calls...)
}
