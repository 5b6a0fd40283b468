package disc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrDriveBusy is returned when another process already holds the drive lock.
var ErrDriveBusy = errors.New("drive is in use by another securerip process")

// DriveLock serializes access to one optical drive across processes. Trials on
// the same drive must never overlap.
type DriveLock struct {
	path string
	lock *flock.Flock
}

// NewDriveLock returns a lock file for device inside dir.
func NewDriveLock(dir, device string) *DriveLock {
	name := strings.Trim(strings.ReplaceAll(strings.TrimSpace(device), string(os.PathSeparator), "_"), "_")
	if name == "" {
		name = "default"
	}
	path := filepath.Join(dir, "drive-"+name+".lock")
	return &DriveLock{path: path, lock: flock.New(path)}
}

// Path returns the lock file location.
func (l *DriveLock) Path() string {
	return l.path
}

// Acquire takes the lock without blocking.
func (l *DriveLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire drive lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrDriveBusy, l.path)
	}
	return nil
}

// Release drops the lock. It is safe to call when the lock is not held.
func (l *DriveLock) Release() error {
	if !l.lock.Locked() {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release drive lock: %w", err)
	}
	return nil
}
