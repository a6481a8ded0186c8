package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// probeEntries limits ffprobe output to what frame decoding needs.
const probeEntries = "stream=index,codec_name,codec_type,width,height,avg_frame_rate,r_frame_rate,nb_frames,duration:" +
	"stream_disposition=attached_pic:format=duration,format_name"

// Result is the subset of ffprobe output describing a video file.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes one stream of the container.
type Stream struct {
	Index        int         `json:"index"`
	CodecName    string      `json:"codec_name"`
	CodecType    string      `json:"codec_type"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	AvgFrameRate string      `json:"avg_frame_rate"`
	RFrameRate   string      `json:"r_frame_rate"`
	NBFrames     string      `json:"nb_frames"`
	Duration     string      `json:"duration"`
	Disposition  Disposition `json:"disposition"`
}

// Disposition flags the stream roles ffprobe reports.
type Disposition struct {
	AttachedPic int `json:"attached_pic"`
}

// Format is container-level metadata.
type Format struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Inspect runs ffprobe against path and decodes its JSON report.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error", "-hide_banner",
		"-show_entries", probeEntries,
		"-of", "json",
		"--", path,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Video returns the first decodable video stream. Cover art and streams
// without dimensions are skipped.
func (r Result) Video() (Stream, bool) {
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		if stream.Disposition.AttachedPic != 0 || stream.Width <= 0 || stream.Height <= 0 {
			continue
		}
		return stream, true
	}
	return Stream{}, false
}

// Duration is the container duration in seconds; 0 means unknown.
func (r Result) Duration() float64 {
	return positive(parseFloat(r.Format.Duration))
}

// FrameRate returns frames per second, preferring avg_frame_rate over
// r_frame_rate; 0 means unknown.
func (s Stream) FrameRate() float64 {
	if rate := parseRational(s.AvgFrameRate); rate > 0 {
		return rate
	}
	return parseRational(s.RFrameRate)
}

// FrameCount returns nb_frames when the container records it, otherwise an
// estimate from the stream duration (or fallbackSeconds when the stream has
// none) and the frame rate. 0 means unknown.
func (s Stream) FrameCount(fallbackSeconds float64) int {
	if n := positive(parseFloat(s.NBFrames)); n > 0 {
		return int(n)
	}
	seconds := positive(parseFloat(s.Duration))
	if seconds == 0 {
		seconds = positive(fallbackSeconds)
	}
	if rate := s.FrameRate(); seconds > 0 && rate > 0 {
		return int(math.Round(seconds * rate))
	}
	return 0
}

// parseRational parses "num/den" or a plain number. Zero denominators and
// unparsable input give 0.
func parseRational(value string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(value), "/")
	if !found {
		return positive(parseFloat(num))
	}
	d := parseFloat(den)
	if d == 0 || math.IsNaN(d) {
		return 0
	}
	return positive(parseFloat(num) / d)
}

func parseFloat(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return parsed
}

// positive maps NaN, infinities and non-positive values to 0.
func positive(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	return v
}
