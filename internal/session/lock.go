// Package session serializes access to a crate workspace so concurrent
// invocations cannot interleave toolchain runs and archive rewrites.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// LockFileName is the advisory lock file kept at the workspace root. The
// file persists between sessions; only the flock on it matters.
const LockFileName = ".tiler-build.lock"

// ErrBusy reports that another process holds the workspace lock.
var ErrBusy = errors.New("workspace is locked by another build session")

// Lock is an exclusive hold on a workspace, identified by a fresh session
// id for log correlation.
type Lock struct {
	ID uuid.UUID

	file *os.File
}

// Acquire takes the workspace lock without blocking and records the holder's
// pid and session id in the lock file for diagnostics. It returns ErrBusy
// when another process already holds the lock.
func Acquire(workspace string) (*Lock, error) {
	path := filepath.Join(workspace, LockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session lock: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, path)
		}
		return nil, fmt.Errorf("lock session file: %w", err)
	}

	id := uuid.New()
	record := strconv.Itoa(os.Getpid()) + " " + id.String() + "\n"
	if err := f.Truncate(0); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("reset session lock: %w", err)
	}
	if _, err := f.WriteAt([]byte(record), 0); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("record session holder: %w", err)
	}

	return &Lock{ID: id, file: f}, nil
}

// Release drops the lock. The lock file stays behind so later sessions can
// reuse it. Releasing an already released lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil

	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		f.Close()
		return fmt.Errorf("unlock session file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close session lock: %w", err)
	}
	return nil
}
