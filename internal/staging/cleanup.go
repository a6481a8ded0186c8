package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"moodreel/internal/logging"
)

// Upload is one per-request directory in the staging area.
type Upload struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListUploads returns the upload directories under dir, oldest first. Loose
// files such as the run lock are ignored. A missing dir yields no uploads.
func ListUploads(dir string) ([]Upload, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var uploads []Upload
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		path := filepath.Join(dir, entry.Name())
		uploads = append(uploads, Upload{
			Name:    entry.Name(),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    treeSize(path),
		})
	}
	slices.SortFunc(uploads, func(a, b Upload) int { return a.ModTime.Compare(b.ModTime) })
	return uploads, nil
}

// SweepResult reports what Sweep removed.
type SweepResult struct {
	Removed   []Upload
	Reclaimed int64
	Failed    map[string]error
}

// Sweep deletes uploads whose modification time is older than maxAge. A
// non-positive maxAge disables it. It stops early when ctx ends.
func Sweep(ctx context.Context, dir string, maxAge time.Duration, logger *slog.Logger) SweepResult {
	var result SweepResult
	if maxAge <= 0 {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	uploads, err := ListUploads(dir)
	if err != nil {
		result.Failed = map[string]error{dir: err}
		logging.WarnWithContext(logger, "staging directory unreadable", "staging_cleanup_failed",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale uploads not reclaimed"),
		)
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, upload := range uploads {
		if ctx.Err() != nil || !upload.ModTime.Before(cutoff) {
			// Sorted oldest first, so nothing later is stale either.
			break
		}
		if err := os.RemoveAll(upload.Path); err != nil {
			if result.Failed == nil {
				result.Failed = make(map[string]error)
			}
			result.Failed[upload.Path] = err
			logging.WarnWithContext(logger, "failed to remove stale upload", "staging_cleanup_failed",
				logging.String("path", upload.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, upload)
		result.Reclaimed += upload.Size
	}

	if len(result.Removed) > 0 {
		logger.Info("stale uploads removed",
			logging.String(logging.FieldEventType, "staging_cleanup"),
			logging.Int("removed", len(result.Removed)),
			logging.Int64("reclaimed_bytes", result.Reclaimed),
			logging.Duration("max_age", maxAge),
		)
	}
	return result
}

// TotalSize sums the sizes of uploads.
func TotalSize(uploads []Upload) int64 {
	var total int64
	for _, upload := range uploads {
		total += upload.Size
	}
	return total
}

func treeSize(root string) int64 {
	var size int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}

