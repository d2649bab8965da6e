// Package lockfile provides advisory file locking for the workspace store.
//
// Writers serialize through an exclusive flock on the store's .lock file,
// polling until a timeout. The coordinator holds the same lock for its whole
// lifetime, so stray single-mode writers fail fast instead of racing it.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrBusy reports that another process currently holds the lock.
var ErrBusy = errors.New("lock held by another process")

// ErrTimeout reports that the lock could not be acquired before the deadline.
var ErrTimeout = errors.New("timed out waiting for lock")

// PollInterval is how often Acquire retries a busy lock.
const PollInterval = 100 * time.Millisecond

// Lock is a held advisory lock. Release it exactly once.
type Lock struct {
	path string
	f    *os.File
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Acquire takes an exclusive lock on path, retrying every PollInterval until
// timeout elapses. Returns ErrTimeout (wrapped) when the deadline passes.
func Acquire(path string, timeout time.Duration) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err = flockExclusive(f)
		if err == nil {
			return &Lock{path: path, f: f}, nil
		}
		if !errors.Is(err, ErrBusy) {
			f.Close()
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, fmt.Errorf("lock %s: %w", path, ErrTimeout)
		}
		time.Sleep(PollInterval)
	}
}

// TryAcquire takes the lock without waiting. Returns ErrBusy (wrapped) when
// another process holds it.
func TryAcquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := flockExclusive(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return &Lock{path: path, f: f}, nil
}

// Release drops the lock and closes the underlying file.
func (l *Lock) Release() error {
	if l.f == nil {
		return nil
	}
	unlockErr := flockUnlock(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}

// IsProcessRunning reports whether a process with the given pid is alive.
// Used to tell a live coordinator from a crashed one that left its pid
// file behind.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false // pid 0 would signal our own process group
	}
	return isProcessRunning(pid)
}
