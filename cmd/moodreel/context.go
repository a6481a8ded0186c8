package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"moodreel/internal/analysis"
	"moodreel/internal/api"
	"moodreel/internal/classifier"
	"moodreel/internal/config"
	"moodreel/internal/logging"
	"moodreel/internal/media/frames"
	"moodreel/internal/notifications"
	"moodreel/internal/sampler"
	"moodreel/internal/staging"
)

type commandContext struct {
	configFlag string
	verbose    bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	// Collaborator factories, replaced in tests.
	newBackend  func(*config.Config, *slog.Logger) (classifier.Backend, error)
	newOpener   func(*config.Config, *slog.Logger) analysis.Opener
	newNotifier func(*config.Config) notifications.Service
}

func newCommandContext() *commandContext {
	return &commandContext{
		newBackend: classifier.New,
		newOpener: func(cfg *config.Config, logger *slog.Logger) analysis.Opener {
			return frames.NewOpener(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger)
		},
		newNotifier: notifications.NewService,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// logger builds a file logger that also writes to console when requested or
// when --verbose is set.
func (c *commandContext) logger(console string) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if console == "" && c.verbose {
		console = "stderr"
	}
	return logging.NewFromConfig(cfg, console)
}

// runtime holds the long-lived collaborators of one command invocation.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  classifier.Backend
	service  *api.AnalysisService
	notifier notifications.Service
}

func (r *runtime) Close() error {
	if r == nil || r.backend == nil {
		return nil
	}
	return r.backend.Close()
}

func (c *commandContext) buildRuntime(logger *slog.Logger, area *staging.Area) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	backend, err := c.newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	analyzer := analysis.New(c.newOpener(cfg, logger), backend, logger, analysis.Options{
		Policy: sampler.Policy{
			WindowSeconds: cfg.Sampling.WindowSeconds,
			FallbackRate:  cfg.Sampling.FallbackFrameRate,
		},
	})
	notifier := c.newNotifier(cfg)
	return &runtime{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		notifier: notifier,
		service:  api.NewAnalysisService(area, staging.NewRunLock(cfg.Paths.StagingDir), analyzer, notifier, logger),
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
