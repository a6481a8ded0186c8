package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"moodreel/internal/logging"
)

func makeUpload(t *testing.T, root, name string, age time.Duration, size int) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", name, err)
	}
	if size > 0 {
		if err := os.WriteFile(filepath.Join(dir, "clip.mp4"), make([]byte, size), 0o644); err != nil {
			t.Fatalf("write clip: %v", err)
		}
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(dir, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return dir
}

func TestSweepRemovesOnlyStaleUploads(t *testing.T) {
	root := t.TempDir()
	old := makeUpload(t, root, "old", 3*time.Hour, 100)
	older := makeUpload(t, root, "older", 5*time.Hour, 50)
	recent := makeUpload(t, root, "recent", time.Minute, 10)

	result := Sweep(context.Background(), root, time.Hour, logging.NewNop())

	if len(result.Removed) != 2 || result.Removed[0].Path != older || result.Removed[1].Path != old {
		t.Fatalf("unexpected removals: %+v", result.Removed)
	}
	if result.Reclaimed != 150 {
		t.Fatalf("Reclaimed = %d, want 150", result.Reclaimed)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failed)
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatal("recent upload should survive")
	}
}

func TestSweepKeepsLockFile(t *testing.T) {
	root := t.TempDir()
	lockPath := filepath.Join(root, lockFileName)
	if err := os.WriteFile(lockPath, nil, 0o644); err != nil {
		t.Fatalf("create lock file: %v", err)
	}
	stamp := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(lockPath, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if result := Sweep(context.Background(), root, time.Hour, nil); len(result.Removed) != 0 {
		t.Fatalf("expected no removals, got %+v", result.Removed)
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Fatal("lock file should not be removed")
	}
}

func TestSweepDisabledOrMissing(t *testing.T) {
	root := t.TempDir()
	makeUpload(t, root, "upload", 48*time.Hour, 1)

	if result := Sweep(context.Background(), root, 0, nil); len(result.Removed) != 0 {
		t.Fatalf("zero max age should disable sweep, removed %+v", result.Removed)
	}
	for _, dir := range []string{"", filepath.Join(root, "absent")} {
		result := Sweep(context.Background(), dir, time.Hour, nil)
		if len(result.Removed) != 0 || len(result.Failed) != 0 {
			t.Fatalf("expected empty result for %q, got %+v", dir, result)
		}
	}
}

func TestSweepStopsWhenCanceled(t *testing.T) {
	root := t.TempDir()
	stale := makeUpload(t, root, "stale", 2*time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if result := Sweep(ctx, root, time.Hour, nil); len(result.Removed) != 0 {
		t.Fatalf("canceled sweep removed %+v", result.Removed)
	}
	if _, err := os.Stat(stale); err != nil {
		t.Fatal("upload should survive a canceled sweep")
	}
}

func TestListUploadsOrderAndSize(t *testing.T) {
	root := t.TempDir()
	makeUpload(t, root, "b", time.Minute, 100)
	makeUpload(t, root, "a", time.Hour, 20)
	if err := os.WriteFile(filepath.Join(root, lockFileName), nil, 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	uploads, err := ListUploads(root)
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if len(uploads) != 2 || uploads[0].Name != "a" || uploads[1].Name != "b" {
		t.Fatalf("unexpected uploads: %+v", uploads)
	}
	if uploads[1].Size != 100 || TotalSize(uploads) != 120 {
		t.Fatalf("unexpected sizes: %+v", uploads)
	}
}

func TestListUploadsMissingDir(t *testing.T) {
	for _, dir := range []string{"", "   ", filepath.Join(t.TempDir(), "absent")} {
		uploads, err := ListUploads(dir)
		if err != nil || uploads != nil {
			t.Fatalf("ListUploads(%q) = %v, %v", dir, uploads, err)
		}
	}
}
