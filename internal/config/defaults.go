package config

const (
	defaultConfigPath           = "~/.config/moodreel/config.toml"
	defaultStagingDir           = "~/.local/share/moodreel/uploads"
	defaultLogDir               = "~/.local/share/moodreel/logs"
	defaultAPIBind              = "127.0.0.1:8501"
	defaultWindowSeconds        = 2
	defaultFallbackFrameRate    = 30
	defaultClassifierBackend    = BackendFER
	defaultFERBaseURL           = "http://127.0.0.1:5005"
	defaultOllamaBaseURL        = "http://127.0.0.1:11434"
	defaultOllamaModel          = "llama3.2-vision:11b"
	defaultClassifierTimeout    = 30
	defaultClassifierRetries    = 3
	defaultMaxImageSide         = 960
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultMaxUploadMiB         = 200
	defaultStaleUploadHours     = 24
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Supported classifier backends.
const (
	BackendFER    = "fer"
	BackendOllama = "ollama"
)

// DefaultAllowedExtensions lists the container formats accepted for analysis.
var DefaultAllowedExtensions = []string{"mp4", "avi", "mov"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Sampling: Sampling{
			WindowSeconds:     defaultWindowSeconds,
			FallbackFrameRate: defaultFallbackFrameRate,
		},
		Classifier: Classifier{
			Backend:        defaultClassifierBackend,
			BaseURL:        defaultFERBaseURL,
			TimeoutSeconds: defaultClassifierTimeout,
			RetryAttempts:  defaultClassifierRetries,
			MaxImageSide:   defaultMaxImageSide,
		},
		Media: Media{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Server: Server{
			MaxUploadMiB:      defaultMaxUploadMiB,
			AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
			StaleUploadHours:  defaultStaleUploadHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
