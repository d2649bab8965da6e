package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"

	"claudia/internal/errs"
	"claudia/internal/types"
)

// appendArchive adds archived task records to the archive log. Restores
// never rewrite the log; a restored task simply reappears in tasks.json.
func (s *Store) appendArchive(tasks []*types.Task) error {
	f, err := os.OpenFile(s.archivePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "open archive log", err)
	}
	defer f.Close()
	for _, t := range tasks {
		line, err := json.Marshal(t)
		if err != nil {
			return errs.Wrap(errs.KindInternal, "encode archive record", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return errs.Wrap(errs.KindInternal, "append archive record", err)
		}
	}
	return nil
}

func (s *Store) readArchive() ([]*types.Task, error) {
	f, err := os.Open(s.archivePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindInternal, "open archive log", err)
	}
	defer f.Close()

	var tasks []*types.Task
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var t types.Task
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			slog.Warn("skipping unreadable archive record", "line", lineNo, "error", err)
			continue
		}
		t.SetDefaults()
		tasks = append(tasks, &t)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "read archive log", err)
	}
	return tasks, nil
}

// Archived returns archive records newest first. A limit of zero or less
// returns everything.
func (s *Store) Archived(limit int) ([]*types.Task, error) {
	tasks, err := s.readArchive()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(tasks)-1; i < j; i, j = i+1, j-1 {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	}
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// FindArchived returns the newest archive record with the given id. A task
// archived more than once resolves to its latest copy.
func (s *Store) FindArchived(id string) (*types.Task, error) {
	tasks, err := s.readArchive()
	if err != nil {
		return nil, err
	}
	for i := len(tasks) - 1; i >= 0; i-- {
		if tasks[i].ID == id {
			return tasks[i], nil
		}
	}
	return nil, errs.NotFoundf("task %s not found in archive", id)
}
