package staging

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrBusy reports that another analysis holds the run lock.
var ErrBusy = errors.New("another analysis is already running")

const lockFileName = "moodreel.lock"

// RunLock serialises analyses across processes sharing a staging directory.
type RunLock struct {
	path string
	lock *flock.Flock

	mu   sync.Mutex
	held bool
}

// NewRunLock returns a lock backed by a file in dir.
func NewRunLock(dir string) *RunLock {
	path := filepath.Join(dir, lockFileName)
	return &RunLock{path: path, lock: flock.New(path)}
}

// Path returns the lock file location.
func (l *RunLock) Path() string { return l.path }

// TryAcquire takes the lock without blocking. It returns ErrBusy when the
// lock is held by this handle or by another process.
func (l *RunLock) TryAcquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return ErrBusy
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrBusy
	}
	l.held = true
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *RunLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	l.held = false
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
