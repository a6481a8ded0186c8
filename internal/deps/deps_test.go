package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present", "#!/bin/sh\nexit 0\n")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
	if !results[2].Optional {
		t.Fatal("optional flag should carry through")
	}
}

func TestCheckBinariesResolvesFromPath(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := writeStub(t, binDir, "ffmpeg", "#!/bin/sh\nexit 0\n")
	t.Setenv("PATH", binDir)

	results := CheckBinaries(MediaRequirements("", ""))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Command != ffmpeg {
		t.Fatalf("expected ffmpeg resolved to %q, got %#v", ffmpeg, results[0])
	}
	if results[1].Available {
		t.Fatalf("ffprobe should be missing, got %#v", results[1])
	}
}

func TestToolVersion(t *testing.T) {
	stub := writeStub(t, t.TempDir(), "ffmpeg",
		"#!/bin/sh\necho 'ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers'\necho 'built with gcc'\n")

	version, err := ToolVersion(context.Background(), stub)
	if err != nil {
		t.Fatalf("ToolVersion: %v", err)
	}
	if version != "ffmpeg version 6.1.1" {
		t.Fatalf("version = %q", version)
	}
}

func TestToolVersionFailures(t *testing.T) {
	if _, err := ToolVersion(context.Background(), ""); err == nil {
		t.Fatal("expected error for blank binary")
	}
	failing := writeStub(t, t.TempDir(), "ffprobe", "#!/bin/sh\nexit 3\n")
	if _, err := ToolVersion(context.Background(), failing); err == nil {
		t.Fatal("expected error for failing binary")
	}
}
