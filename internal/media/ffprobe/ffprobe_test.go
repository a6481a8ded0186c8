package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStreamFrameRate(t *testing.T) {
	tests := []struct {
		name   string
		stream Stream
		want   float64
	}{
		{"avg rational", Stream{AvgFrameRate: "30/1", RFrameRate: "60/1"}, 30},
		{"ntsc", Stream{AvgFrameRate: "30000/1001"}, 30000.0 / 1001.0},
		{"avg zero falls back to r", Stream{AvgFrameRate: "0/0", RFrameRate: "25/1"}, 25},
		{"plain number", Stream{AvgFrameRate: "24"}, 24},
		{"missing", Stream{}, 0},
		{"garbage", Stream{AvgFrameRate: "fast", RFrameRate: "1/x"}, 0},
		{"negative", Stream{AvgFrameRate: "-30/1"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stream.FrameRate(); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("FrameRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStreamFrameCount(t *testing.T) {
	if got := (Stream{NBFrames: "300", Duration: "1", AvgFrameRate: "30/1"}).FrameCount(0); got != 300 {
		t.Fatalf("expected nb_frames to win, got %d", got)
	}
	if got := (Stream{Duration: "10.0", AvgFrameRate: "30/1"}).FrameCount(0); got != 300 {
		t.Fatalf("expected estimate from stream duration, got %d", got)
	}
	if got := (Stream{AvgFrameRate: "25/1"}).FrameCount(4); got != 100 {
		t.Fatalf("expected estimate from container duration, got %d", got)
	}
	if got := (Stream{NBFrames: "N/A"}).FrameCount(0); got != 0 {
		t.Fatalf("expected unknown count, got %d", got)
	}
}

func TestResultVideoSkipsCoverArt(t *testing.T) {
	result := Result{Streams: []Stream{
		{Index: 0, CodecType: "audio"},
		{Index: 1, CodecType: "video", CodecName: "mjpeg", Width: 600, Height: 600, Disposition: Disposition{AttachedPic: 1}},
		{Index: 2, CodecType: "video", CodecName: "h264"},
		{Index: 3, CodecType: "video", Width: 640, Height: 360},
	}}
	stream, ok := result.Video()
	if !ok || stream.Index != 3 {
		t.Fatalf("expected stream 3, got %+v ok=%v", stream, ok)
	}
	if _, ok := (Result{Streams: []Stream{{CodecType: "audio"}}}).Video(); ok {
		t.Fatal("expected no video for audio-only result")
	}
}

func TestResultDuration(t *testing.T) {
	if got := (Result{Format: Format{Duration: "12.5"}}).Duration(); got != 12.5 {
		t.Fatalf("Duration() = %v, want 12.5", got)
	}
	if got := (Result{Format: Format{Duration: "bad"}}).Duration(); got != 0 {
		t.Fatalf("Duration() for garbage = %v, want 0", got)
	}
}

func TestInspectDecodesStubOutput(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n" +
		`{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":320,"height":240,"avg_frame_rate":"30/1","nb_frames":"90"}],"format":{"duration":"3.0","format_name":"mov,mp4"}}` +
		"\nJSON\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	result, err := Inspect(context.Background(), stub, filepath.Join(dir, "clip.mp4"))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	stream, ok := result.Video()
	if !ok || stream.FrameRate() != 30 || stream.FrameCount(result.Duration()) != 90 {
		t.Fatalf("unexpected probe result %+v", result)
	}
}

func TestInspectReportsStderr(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	_, err := Inspect(context.Background(), stub, filepath.Join(dir, "clip.mp4"))
	if err == nil || !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

