package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"claudia/internal/errs"
)

// Sentinel is the .parallel-mode file. Its presence switches clients to
// parallel mode; started_at is informational only.
type Sentinel struct {
	Port        int       `json:"port"`
	MainSession string    `json:"main_session"`
	StartedAt   time.Time `json:"started_at"`
}

// SentinelPath returns the .parallel-mode file path.
func (s *Store) SentinelPath() string { return filepath.Join(s.dir, modeFile) }

// PIDPath returns the coordinator.pid file path.
func (s *Store) PIDPath() string { return filepath.Join(s.dir, pidFile) }

// WriteSentinel publishes the coordinator's address for clients.
func (s *Store) WriteSentinel(sn Sentinel) error {
	data, err := json.MarshalIndent(sn, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindInternal, "encode parallel-mode sentinel", err)
	}
	if err := writeFileAtomic(s.SentinelPath(), append(data, '\n')); err != nil {
		return errs.Wrap(errs.KindInternal, "write parallel-mode sentinel", err)
	}
	return nil
}

// ReadSentinel reads .parallel-mode. A missing file reports NotFound, which
// callers treat as single mode.
func (s *Store) ReadSentinel() (*Sentinel, error) {
	data, err := os.ReadFile(s.SentinelPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.NotFoundf("no parallel-mode sentinel")
		}
		return nil, errs.Wrap(errs.KindInternal, "read parallel-mode sentinel", err)
	}
	var sn Sentinel
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, errs.Internalf("parse parallel-mode sentinel: %v", err)
	}
	return &sn, nil
}

// WritePID records the coordinator's process id next to the sentinel.
func (s *Store) WritePID(pid int) error {
	if err := writeFileAtomic(s.PIDPath(), []byte(strconv.Itoa(pid)+"\n")); err != nil {
		return errs.Wrap(errs.KindInternal, "write coordinator pid", err)
	}
	return nil
}

// ReadPID returns the recorded coordinator process id, or NotFound.
func (s *Store) ReadPID() (int, error) {
	data, err := os.ReadFile(s.PIDPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, errs.NotFoundf("no coordinator pid file")
		}
		return 0, errs.Wrap(errs.KindInternal, "read coordinator pid", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errs.Internalf("parse coordinator pid: %v", err)
	}
	return pid, nil
}

// ClearRuntimeFiles removes the sentinel and pid files. Missing files are
// fine: this runs on graceful shutdown and again when a client cleans up
// after a dead coordinator.
func (s *Store) ClearRuntimeFiles() error {
	var firstErr error
	for _, p := range []string{s.SentinelPath(), s.PIDPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
