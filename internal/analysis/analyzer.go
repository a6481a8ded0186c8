package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"moodreel/internal/emotion"
	"moodreel/internal/logging"
	"moodreel/internal/sampler"
	"moodreel/internal/services"
	"moodreel/internal/tally"
)

// Opener opens a video for sequential frame reads.
type Opener interface {
	Open(ctx context.Context, path string) (sampler.Source, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (sampler.Source, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, path string) (sampler.Source, error) {
	return f(ctx, path)
}

// Options tune an Analyzer.
type Options struct {
	Policy sampler.Policy

	// KeepSamples records a per-sample timeline on the Result.
	KeepSamples bool

	// ProgressBucket is the percent step between progress logs. Default: 10
	ProgressBucket float64

	Now      func() time.Time
	NewRunID func() string
}

// Analyzer runs videos through a classifier. The classifier is owned by the
// caller and is not closed by the Analyzer.
type Analyzer struct {
	opener     Opener
	classifier emotion.Classifier
	logger     *slog.Logger
	opts       Options
}

// New constructs an Analyzer.
func New(opener Opener, classifier emotion.Classifier, logger *slog.Logger, opts Options) *Analyzer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = func() string { return uuid.NewString() }
	}
	if opts.ProgressBucket <= 0 {
		opts.ProgressBucket = 10
	}
	return &Analyzer{
		opener:     opener,
		classifier: classifier,
		logger:     logging.NewComponentLogger(logger, "analysis"),
		opts:       opts,
	}
}

// Analyze runs one analysis of path. The returned Result is never nil. err is
// non-nil exactly when the run ends in StateFailed.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*Result, error) {
	result := &Result{
		RunID:     a.opts.NewRunID(),
		State:     StateIdle,
		Path:      path,
		StartedAt: a.opts.Now(),
	}
	ctx = services.WithRunID(ctx, result.RunID)

	if a.opener == nil || a.classifier == nil {
		err := services.Wrap(services.ErrConfiguration, string(StateIdle), "analyze", "opener and classifier are required", nil)
		return a.fail(ctx, result, err), err
	}

	result.State = StateOpening
	openCtx := services.WithStage(ctx, string(StateOpening))
	logger := logging.WithContext(openCtx, a.logger)
	logger.Info("opening video", logging.String("path", path))

	src, err := a.opener.Open(openCtx, path)
	if err != nil {
		if !errors.Is(err, services.ErrSourceUnavailable) {
			err = services.Wrap(services.ErrSourceUnavailable, string(StateOpening), "open", path, err)
		}
		return a.fail(openCtx, result, err), err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			closeCtx := services.WithStage(ctx, string(result.State))
			logging.WarnWithContext(logging.WithContext(closeCtx, a.logger), "video source close failed", "source_close_failed",
				logging.Error(cerr),
				logging.String(logging.FieldImpact, "decoder process may linger"),
			)
		}
	}()

	result.State = StateScanning
	scanCtx := services.WithStage(ctx, string(StateScanning))
	if err := a.scan(scanCtx, src, result); err != nil {
		return a.fail(scanCtx, result, err), err
	}

	result.State = StateCompleted
	result.FinishedAt = a.opts.Now()
	completeLogger := logging.WithContext(scanCtx, a.logger)
	if result.Tally.Empty() {
		completeLogger.Info("analysis completed without detections",
			logging.String(logging.FieldEventType, "analysis_empty"),
			logging.Int("frames_sampled", result.FramesSampled),
			logging.Duration("elapsed", result.Duration()),
		)
	} else {
		completeLogger.Info("analysis completed",
			logging.String(logging.FieldEventType, "analysis_completed"),
			logging.String("dominant", string(result.Dominant)),
			logging.Int("frames_tallied", result.FramesTallied),
			logging.Int("frames_sampled", result.FramesSampled),
			logging.Duration("elapsed", result.Duration()),
		)
	}
	return result, nil
}

func (a *Analyzer) scan(ctx context.Context, src sampler.Source, result *Result) error {
	logger := logging.WithContext(ctx, a.logger)
	s := sampler.New(src, a.opts.Policy)
	result.FrameRate = src.FrameRate()
	result.EffectiveRate = s.EffectiveRate()
	result.Interval = s.Interval()

	decision := "container"
	if result.FrameRate != result.EffectiveRate {
		decision = "fallback"
	}
	logger.Info("sampling interval selected", logging.Args(append(
		logging.DecisionAttrs("frame_rate", decision, fmt.Sprintf("%.3f fps reported", result.FrameRate)),
		logging.Float64("effective_rate", result.EffectiveRate),
		logging.Int("interval_frames", result.Interval),
	)...)...)

	estimate := 0
	if counter, ok := src.(sampler.FrameCounter); ok {
		estimate = counter.FrameEstimate()
	}
	progress := logging.NewProgressThrottle(a.opts.ProgressBucket)

	agg := tally.NewAggregator()
	defer func() {
		result.FramesRead = s.Read()
		result.FramesSampled = s.Sampled()
	}()

	for {
		frame, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %w", ErrScanFailed, ctxErr)
			}
			return services.Wrap(ErrScanFailed, string(StateScanning), "read frame", fmt.Sprintf("after frame %d", s.Read()), err)
		}

		outcome, err := a.classify(ctx, frame)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrScanFailed, err)
		}
		switch outcome.Kind {
		case OutcomeOK:
			agg.Record(outcome.Label)
			result.FramesTallied++
		case OutcomeNoFace:
			result.FramesNoFace++
		case OutcomeSkipped:
			result.FramesSkipped++
			logging.WarnWithContext(logger, "frame classification failed; skipping sample", "frame_classification_failed",
				logging.Int(logging.FieldFrameIndex, frame.Index),
				logging.Duration("timestamp", frame.Timestamp),
				logging.String("reason", outcome.Reason),
				logging.String(logging.FieldErrorHint, "check classifier service health"),
				logging.String(logging.FieldImpact, "sample excluded from tally"),
			)
		}
		if a.opts.KeepSamples {
			result.Samples = append(result.Samples, Sample{Index: frame.Index, Timestamp: frame.Timestamp, Outcome: outcome})
		}
		logger.Debug("frame sampled",
			logging.Int(logging.FieldFrameIndex, frame.Index),
			logging.String("outcome", string(outcome.Kind)),
			logging.String("label", string(outcome.Label)),
		)

		if estimate > 0 {
			percent := float64(s.Read()) / float64(estimate) * 100
			if progress.Crossed(percent) {
				logger.Info("scan progress",
					logging.Float64("percent", percentRound(percent)),
					logging.Int("frames_read", s.Read()),
					logging.Int("frame_estimate", estimate),
				)
			}
		}
	}

	snap := agg.Finalize()
	result.Tally = &snap
	if dominant, ok := snap.Dominant(); ok {
		result.Dominant = dominant
	}
	return nil
}

// classify maps a classifier call onto a per-frame Outcome. It only returns
// an error when ctx ended during the call.
func (a *Analyzer) classify(ctx context.Context, frame sampler.Frame) (Outcome, error) {
	faces, err := a.classifier.Classify(ctx, frame.Image)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		return Skipped(skipReason(err)), nil
	}
	label, ok := emotion.TopOfFirstFace(faces)
	if !ok {
		return NoFace(), nil
	}
	return Ok(label), nil
}

func (a *Analyzer) fail(ctx context.Context, result *Result, err error) *Result {
	result.State = StateFailed
	result.Err = err
	result.ErrorMessage = err.Error()
	result.FailureReason = services.FailureReason(err)
	result.Tally = nil
	result.Dominant = ""
	result.FinishedAt = a.opts.Now()
	logging.ErrorWithContext(logging.WithContext(ctx, a.logger), "analysis failed", "analysis_failed",
		logging.Error(err),
		logging.String("reason", result.FailureReason),
		logging.String(logging.FieldErrorHint, failureHint(err)),
	)
	return result
}

func skipReason(err error) string {
	msg := strings.TrimSpace(err.Error())
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrSourceUnavailable):
		return "confirm the file is a readable mp4, avi, or mov video and that ffmpeg is installed"
	case errors.Is(err, context.Canceled):
		return "run was interrupted; start a new analysis"
	case errors.Is(err, ErrScanFailed):
		return "the video may be truncated or corrupt"
	default:
		return "check logs for details"
	}
}

func percentRound(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
