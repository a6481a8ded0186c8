package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// Sampling controls how often frames are handed to the classifier.
type Sampling struct {
	// WindowSeconds is the spacing between sampled frames. Default: 2
	WindowSeconds float64 `toml:"window_seconds"`
	// FallbackFrameRate replaces a zero or invalid container frame rate. Default: 30
	FallbackFrameRate float64 `toml:"fallback_frame_rate"`
}

// Classifier contains settings for the external facial-emotion classifier.
type Classifier struct {
	Backend        string `toml:"backend"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	// MaxImageSide bounds the longest edge of uploaded frames. Default: 960
	MaxImageSide int `toml:"max_image_side"`
}

// Media contains the external binaries used to read video containers.
type Media struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Server contains configuration for the upload API.
type Server struct {
	MaxUploadMiB      int      `toml:"max_upload_mib"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	StaleUploadHours  int      `toml:"stale_upload_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for moodreel.
//
// Configuration sections by subsystem:
//   - Paths: staging and log directories, API bind address
//   - Sampling: sampling window and frame-rate fallback
//   - Classifier: facial-emotion classifier backend and endpoint
//   - Media: ffmpeg/ffprobe binaries
//   - Server: upload limits and accepted extensions
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sampling      Sampling      `toml:"sampling"`
	Classifier    Classifier    `toml:"classifier"`
	Media         Media         `toml:"media"`
	Server        Server        `toml:"server"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load resolves the config path, decodes it over Default(), normalizes and
// validates the result. It also reports the resolved path and whether a file
// was found there. Unknown keys are rejected so typos do not silently fall
// back to defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config: unknown keys:\n%s", strict.String())
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("moodreel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI and server write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated sample configuration to path. An existing
// file is left untouched and reported as fs.ErrExist unless overwrite is set.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	if _, err := io.WriteString(file, sampleConfig); err != nil {
		file.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return file.Close()
}

const redactedValue = "********"

// Redacted returns a copy with credentials masked, for display.
func (c Config) Redacted() Config {
	if c.Classifier.APIKey != "" {
		c.Classifier.APIKey = redactedValue
	}
	if c.Server.AllowedExtensions != nil {
		c.Server.AllowedExtensions = append([]string(nil), c.Server.AllowedExtensions...)
	}
	return c
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	encoder := toml.NewEncoder(w)
	encoder.SetIndentTables(true)
	return encoder.Encode(c)
}

// ClassifierTimeout returns the per-request classifier timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	if c.Classifier.TimeoutSeconds <= 0 {
		return time.Duration(defaultClassifierTimeout) * time.Second
	}
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMiB) << 20
}

// StaleUploadAge returns how old an abandoned staging directory must be before cleanup.
func (c *Config) StaleUploadAge() time.Duration {
	return time.Duration(c.Server.StaleUploadHours) * time.Hour
}

// FFprobeBinary returns the configured ffprobe binary, defaulting to the PATH lookup name.
func (c *Config) FFprobeBinary() string {
	if value := strings.TrimSpace(c.Media.FFprobeBinary); value != "" {
		return value
	}
	return defaultFFprobeBinary
}

// FFmpegBinary returns the configured ffmpeg binary, defaulting to the PATH lookup name.
func (c *Config) FFmpegBinary() string {
	if value := strings.TrimSpace(c.Media.FFmpegBinary); value != "" {
		return value
	}
	return defaultFFmpegBinary
}
