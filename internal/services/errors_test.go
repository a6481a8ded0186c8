package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"moodreel/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "opening", "ffprobe", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"opening", "ffprobe", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFailureReasonMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"source", services.Wrap(services.ErrSourceUnavailable, "opening", "ffprobe", "", errors.New("no such file")), "could not read the video file"},
		{"config", services.Wrap(services.ErrConfiguration, "classifier", "build", "", nil), "configuration problem"},
		{"timeout", services.Wrap(services.ErrTimeout, "scanning", "", "", nil), "timed out"},
		{"canceled", fmt.Errorf("scan: %w", context.Canceled), "analysis canceled"},
		{"deadline", context.DeadlineExceeded, "timed out"},
		{"other", errors.New("boom"), "analysis failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.FailureReason(tt.err); got != tt.want {
				t.Fatalf("FailureReason() = %q, want %q", got, tt.want)
			}
		})
	}
}
