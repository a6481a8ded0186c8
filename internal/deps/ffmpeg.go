package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// MediaRequirements lists the binaries the frame reader shells out to.
func MediaRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     defaultIfEmpty(ffmpegBinary, "ffmpeg"),
			Description: "Required for frame decoding",
		},
		{
			Name:        "FFprobe",
			Command:     defaultIfEmpty(ffprobeBinary, "ffprobe"),
			Description: "Required for stream inspection",
		},
	}
}

// ToolVersion runs "<binary> -version" and returns the first line of output,
// e.g. "ffmpeg version 6.1.1".
func ToolVersion(ctx context.Context, binary string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return "", fmt.Errorf("version probe: binary not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if idx := strings.Index(line, " Copyright"); idx > 0 {
			line = line[:idx]
		}
		return line, nil
	}
	return "", fmt.Errorf("%s -version: empty output", binary)
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
