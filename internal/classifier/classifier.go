// Package classifier builds the configured emotion classifier backend.
//
// The composition root calls New once, shares the handle across runs, and
// closes it on shutdown. Nothing here caches handles between calls.
package classifier

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"moodreel/internal/config"
	"moodreel/internal/emotion"
	"moodreel/internal/logging"
	"moodreel/internal/services"
	"moodreel/internal/services/fer"
	"moodreel/internal/services/frameenc"
	"moodreel/internal/services/ollama"
	"moodreel/internal/services/retry"
)

// Backend is a classifier that can also report its own health.
type Backend interface {
	emotion.Classifier
	HealthCheck(ctx context.Context) error
}

// New returns the backend selected by cfg.Classifier.Backend.
func New(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "classifier", "build", "config required", nil)
	}
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.Classifier.RetryAttempts
	encoding := frameenc.Options{MaxSide: cfg.Classifier.MaxImageSide}

	var backend Backend
	switch cfg.Classifier.Backend {
	case config.BackendFER:
		backend = fer.NewClient(fer.Config{
			BaseURL:        cfg.Classifier.BaseURL,
			APIKey:         cfg.Classifier.APIKey,
			TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
			Encoding:       encoding,
		}, fer.WithRetryPolicy(policy))
	case config.BackendOllama:
		backend = ollama.NewClient(ollama.Config{
			BaseURL:        cfg.Classifier.BaseURL,
			Model:          cfg.Classifier.Model,
			APIKey:         cfg.Classifier.APIKey,
			TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
			Encoding:       encoding,
		}, ollama.WithRetryPolicy(policy))
	default:
		return nil, services.Wrap(services.ErrConfiguration, "classifier", "build", fmt.Sprintf("unsupported backend %q", cfg.Classifier.Backend), nil)
	}

	component := logging.NewComponentLogger(logger, "classifier")
	component.Debug("classifier backend ready",
		logging.String("backend", cfg.Classifier.Backend),
		logging.String("base_url", cfg.Classifier.BaseURL),
		logging.String("model", cfg.Classifier.Model),
	)
	return &logged{Backend: backend, logger: component}, nil
}

// logged adds per-call debug timing around a backend.
type logged struct {
	Backend
	logger *slog.Logger
}

func (l *logged) Classify(ctx context.Context, frame image.Image) ([]emotion.Face, error) {
	start := time.Now()
	faces, err := l.Backend.Classify(ctx, frame)
	logger := logging.WithContext(ctx, l.logger)
	if err != nil {
		logger.Debug("classify failed", logging.Duration("elapsed", time.Since(start)), logging.Error(err))
		return nil, err
	}
	logger.Debug("classify succeeded",
		logging.Duration("elapsed", time.Since(start)),
		logging.Int("faces", len(faces)),
	)
	return faces, nil
}
