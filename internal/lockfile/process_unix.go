//go:build unix

package lockfile

import (
	"errors"
	"syscall"
)

// isProcessRunning checks if a process with the given PID is running.
// EPERM means the process exists but belongs to another user.
func isProcessRunning(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
