package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeClassifier()
	c.normalizeMedia()
	c.normalizeServer()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeClassifier() {
	c.Classifier.Backend = strings.ToLower(strings.TrimSpace(c.Classifier.Backend))
	if c.Classifier.Backend == "" {
		c.Classifier.Backend = defaultClassifierBackend
	}
	if value, ok := lookupEnv("MOODREEL_CLASSIFIER_URL"); ok {
		c.Classifier.BaseURL = value
	}
	if value, ok := lookupEnv("MOODREEL_CLASSIFIER_API_KEY"); ok {
		c.Classifier.APIKey = value
	}
	c.Classifier.BaseURL = strings.TrimRight(strings.TrimSpace(c.Classifier.BaseURL), "/")
	c.Classifier.Model = strings.TrimSpace(c.Classifier.Model)
	c.Classifier.APIKey = strings.TrimSpace(c.Classifier.APIKey)
	switch c.Classifier.Backend {
	case BackendOllama:
		// The FER default makes no sense for Ollama, so swap it.
		if c.Classifier.BaseURL == "" || c.Classifier.BaseURL == defaultFERBaseURL {
			c.Classifier.BaseURL = defaultOllamaBaseURL
		}
		if c.Classifier.Model == "" {
			c.Classifier.Model = defaultOllamaModel
		}
	case BackendFER:
		if c.Classifier.BaseURL == "" {
			c.Classifier.BaseURL = defaultFERBaseURL
		}
	}
	if c.Classifier.RetryAttempts <= 0 {
		c.Classifier.RetryAttempts = 1
	}
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
}

func (c *Config) normalizeServer() {
	seen := make(map[string]struct{}, len(c.Server.AllowedExtensions))
	exts := make([]string, 0, len(c.Server.AllowedExtensions))
	for _, ext := range c.Server.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	c.Server.AllowedExtensions = exts
}

func (c *Config) normalizeNotifications() {
	if value, ok := lookupEnv("MOODREEL_NTFY_TOPIC"); ok {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// lookupEnv returns a trimmed, non-empty environment value.
func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
