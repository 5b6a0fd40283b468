package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"securerip/internal/logging"
)

// Guard checks free space on the filesystem holding a directory.
type Guard struct {
	dir     string
	reserve int64
	logger  *slog.Logger
	statfs  func(path string, buf *unix.Statfs_t) error
}

// NewGuard returns a guard for dir that keeps reserve bytes untouched.
func NewGuard(dir string, reserve int64, logger *slog.Logger) *Guard {
	return &Guard{
		dir:     dir,
		reserve: reserve,
		logger:  logging.NewComponentLogger(logger, "storage"),
		statfs:  unix.Statfs,
	}
}

// FreeBytes returns the bytes available to unprivileged users.
func (g *Guard) FreeBytes() (int64, error) {
	path := g.existingAncestor()
	var st unix.Statfs_t
	if err := g.statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

// HasFreeSpace reports whether bytes more can be written. Errors are logged
// and treated as enough space so a broken statfs never blocks a rip.
func (g *Guard) HasFreeSpace(bytes int64) bool {
	free, err := g.FreeBytes()
	if err != nil {
		logging.WarnWithContext(g.logger, "free space check failed", "storage_check_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "rip continues without a free space check"),
		)
		return true
	}
	ok := free-g.reserve >= bytes
	if !ok {
		g.logger.Warn("not enough free space",
			logging.String("dir", g.dir),
			logging.Int64("free_bytes", free),
			logging.Int64("needed_bytes", bytes),
			logging.String(logging.FieldEventType, "storage_exhausted"),
		)
	}
	return ok
}

// existingAncestor walks up to the nearest directory that exists so the
// check works before the work directory is created.
func (g *Guard) existingAncestor() string {
	path := filepath.Clean(g.dir)
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
