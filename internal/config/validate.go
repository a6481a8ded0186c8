package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSampling(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSampling() error {
	if !isPositiveFinite(c.Sampling.WindowSeconds) {
		return errors.New("sampling.window_seconds must be positive")
	}
	if !isPositiveFinite(c.Sampling.FallbackFrameRate) {
		return errors.New("sampling.fallback_frame_rate must be positive")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	switch c.Classifier.Backend {
	case BackendFER, BackendOllama:
	default:
		return fmt.Errorf("classifier.backend: unsupported value %q (want %q or %q)", c.Classifier.Backend, BackendFER, BackendOllama)
	}
	parsed, err := url.Parse(c.Classifier.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("classifier.base_url must be an absolute URL, got %q", c.Classifier.BaseURL)
	}
	if c.Classifier.Backend == BackendOllama && strings.TrimSpace(c.Classifier.Model) == "" {
		return errors.New("classifier.model must be set when classifier.backend is ollama")
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		return errors.New("classifier.timeout_seconds must be positive")
	}
	if c.Classifier.MaxImageSide < 0 {
		return errors.New("classifier.max_image_side must not be negative")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.MaxUploadMiB <= 0 {
		return errors.New("server.max_upload_mib must be positive")
	}
	if len(c.Server.AllowedExtensions) == 0 {
		return errors.New("server.allowed_extensions must include at least one extension")
	}
	if c.Server.StaleUploadHours <= 0 {
		return errors.New("server.stale_upload_hours must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "tint":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func isPositiveFinite(value float64) bool {
	return value > 0 && !math.IsInf(value, 0) && !math.IsNaN(value)
}
