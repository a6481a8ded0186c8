package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"moodreel/internal/services"
)

var (
	// ErrUnsupportedExtension reports a file whose extension is not accepted.
	ErrUnsupportedExtension = fmt.Errorf("%w: unsupported video extension", services.ErrValidation)
	// ErrTooLarge reports an upload that exceeded the configured size cap.
	ErrTooLarge = fmt.Errorf("%w: upload exceeds size limit", services.ErrValidation)
)

// AcceptExtension reports whether name carries one of the allowed extensions.
// Comparison ignores case and an optional leading dot on the allowed entries.
func AcceptExtension(name string, allowed []string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(name)), "."))
	if ext == "" {
		return fmt.Errorf("%w: %q has no extension", ErrUnsupportedExtension, name)
	}
	for _, candidate := range allowed {
		if strings.ToLower(strings.TrimPrefix(strings.TrimSpace(candidate), ".")) == ext {
			return nil
		}
	}
	return fmt.Errorf("%w: .%s (allowed: %s)", ErrUnsupportedExtension, ext, strings.Join(allowed, ", "))
}

// Area writes incoming files into the staging directory.
type Area struct {
	dir      string
	maxBytes int64
	allowed  []string
}

// NewArea returns an Area rooted at dir. A non-positive maxBytes disables the
// size cap and an empty allowed list accepts any extension.
func NewArea(dir string, maxBytes int64, allowed []string) *Area {
	return &Area{dir: dir, maxBytes: maxBytes, allowed: allowed}
}

// Dir returns the staging root.
func (a *Area) Dir() string { return a.dir }

// Accept validates the extension of name against the configured list.
func (a *Area) Accept(name string) error {
	if len(a.allowed) == 0 {
		return nil
	}
	return AcceptExtension(name, a.allowed)
}

// Staged is a file written into its own upload directory.
type Staged struct {
	Path string
	Dir  string
	Name string
	Size int64
}

// Cleanup removes the upload directory and everything in it.
func (s *Staged) Cleanup() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("remove staged upload: %w", err)
	}
	return nil
}

// Stage copies r into <dir>/<uuid>/<sanitized name>. On any failure the
// partially written directory is removed before returning.
func (a *Area) Stage(r io.Reader, name string) (*Staged, error) {
	if r == nil {
		return nil, services.Wrap(services.ErrValidation, "staging", "stage upload", "no content", nil)
	}
	if err := a.Accept(name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "staging", "stage upload", "staging_dir is not set", nil)
	}

	uploadDir := filepath.Join(a.dir, uuid.NewString())
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	staged := &Staged{Dir: uploadDir, Name: SanitizeName(name)}
	staged.Path = filepath.Join(uploadDir, staged.Name)

	n, err := a.copyLimited(staged.Path, r)
	if err != nil {
		_ = staged.Cleanup()
		return nil, err
	}
	staged.Size = n
	return staged, nil
}

func (a *Area) copyLimited(path string, r io.Reader) (int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create staged file: %w", err)
	}

	src := r
	if a.maxBytes > 0 {
		src = io.LimitReader(r, a.maxBytes+1)
	}
	n, copyErr := io.Copy(file, src)
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		return n, fmt.Errorf("write staged file: %w", copyErr)
	case closeErr != nil:
		return n, fmt.Errorf("close staged file: %w", closeErr)
	case a.maxBytes > 0 && n > a.maxBytes:
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, a.maxBytes)
	case n == 0:
		return n, services.Wrap(services.ErrValidation, "staging", "stage upload", "upload is empty", nil)
	}
	return n, nil
}

// SanitizeName reduces name to a safe base filename, keeping its extension.
func SanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	ext := filepath.Ext(base)
	stem := strings.Trim(safeChars(strings.TrimSuffix(base, ext)), "._")
	if stem == "" {
		stem = "upload"
	}
	return stem + strings.ToLower(safeChars(ext))
}

func safeChars(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
