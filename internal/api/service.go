package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"

	"moodreel/internal/analysis"
	"moodreel/internal/logging"
	"moodreel/internal/notifications"
	"moodreel/internal/staging"
)

// Analyzer runs one analysis of a video on disk.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (*analysis.Result, error)
}

// AnalysisService serialises analyses behind the run lock and publishes each
// outcome.
type AnalysisService struct {
	area     *staging.Area
	lock     *staging.RunLock
	analyzer Analyzer
	notifier notifications.Service
	logger   *slog.Logger
}

// NewAnalysisService wires the collaborators. A nil notifier disables
// notifications.
func NewAnalysisService(area *staging.Area, lock *staging.RunLock, analyzer Analyzer, notifier notifications.Service, logger *slog.Logger) *AnalysisService {
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &AnalysisService{
		area:     area,
		lock:     lock,
		analyzer: analyzer,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "analysis-service"),
	}
}

// Accept validates an incoming filename without touching the lock.
func (s *AnalysisService) Accept(name string) error {
	if s.area == nil {
		return nil
	}
	return s.area.Accept(name)
}

// AnalyzeFile analyses a video already on disk. It returns staging.ErrBusy
// without a result when another analysis holds the lock.
func (s *AnalysisService) AnalyzeFile(ctx context.Context, path string) (*analysis.Result, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	return s.run(ctx, path, filepath.Base(path))
}

// AnalyzeUpload stages r under name, analyses it, and removes the staged copy.
func (s *AnalysisService) AnalyzeUpload(ctx context.Context, r io.Reader, name string) (*analysis.Result, error) {
	if err := s.Accept(name); err != nil {
		return nil, err
	}
	if s.area == nil {
		return nil, errors.New("upload staging is not configured")
	}
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	staged, err := s.area.Stage(r, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := staged.Cleanup(); cerr != nil {
			logging.WarnWithContext(s.logger, "staged upload cleanup failed", "staging_cleanup_failed",
				logging.String("path", staged.Dir),
				logging.Error(cerr),
				logging.String(logging.FieldErrorHint, "remove the directory manually or wait for stale cleanup"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
	}()
	s.logger.Info("upload staged",
		logging.String("file", name),
		logging.String("path", staged.Path),
		logging.Int64("bytes", staged.Size),
	)
	return s.run(ctx, staged.Path, name)
}

func (s *AnalysisService) run(ctx context.Context, path, display string) (*analysis.Result, error) {
	result, err := s.analyzer.Analyze(ctx, path)
	s.notify(context.WithoutCancel(ctx), display, result)
	return result, err
}

func (s *AnalysisService) acquire() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.TryAcquire()
}

func (s *AnalysisService) release() {
	if s.lock == nil {
		return
	}
	if err := s.lock.Release(); err != nil {
		s.logger.Warn("run lock release failed", logging.Error(err))
	}
}

func (s *AnalysisService) notify(ctx context.Context, file string, result *analysis.Result) {
	if result == nil {
		return
	}
	var err error
	switch result.Outcome() {
	case analysis.OutcomeFailed:
		reason := result.FailureReason
		if reason == "" {
			reason = result.Message()
		}
		err = s.notifier.NotifyAnalysisFailed(ctx, file, errors.New(reason))
	case analysis.OutcomeEmpty:
		err = s.notifier.NotifyNoEmotions(ctx, file)
	default:
		err = s.notifier.NotifyAnalysisCompleted(ctx, file, string(result.Dominant),
			result.Tally.Count(result.Dominant), result.Tally.Total())
	}
	if err != nil {
		logging.WarnWithContext(s.logger, "outcome notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "analysis outcome not pushed"),
		)
	}
}
