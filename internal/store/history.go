package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"claudia/internal/errs"
	"claudia/internal/types"
)

// maxLineBytes bounds a single log line. Undo pre-images of a forced delete
// carry whole subtask trees, so the ceiling is generous.
const maxLineBytes = 10 * 1024 * 1024

// AppendEvents writes history records as single JSON lines. Append order is
// the total order of committed mutations.
func (s *Store) AppendEvents(events []*types.Event) error {
	if len(events) == 0 {
		return nil
	}
	f, err := os.OpenFile(s.historyPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "open history log", err)
	}
	defer f.Close()
	for _, ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			return errs.Wrap(errs.KindInternal, "encode history record", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return errs.Wrap(errs.KindInternal, "append history record", err)
		}
	}
	return nil
}

// History reads the full event log in append order. The position in the
// returned slice is the index an action_undone record points back at, so
// unreadable lines fail the whole read rather than silently shifting
// positions.
func (s *Store) History() ([]*types.Event, error) {
	f, err := os.Open(s.historyPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindInternal, "open history log", err)
	}
	defer f.Close()

	var events []*types.Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev types.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, errs.Internalf("history line %d unreadable: %v", lineNo, err)
		}
		events = append(events, &ev)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "read history log", err)
	}
	return events, nil
}

// LastUndoable finds the most recent event that can still be reversed: one
// that carries a pre-image and that no later action_undone record points
// at. The index is -1 when nothing qualifies.
func LastUndoable(events []*types.Event) (int, *types.Event) {
	undone := make(map[int]bool)
	for _, ev := range events {
		if ev.Kind == types.EventActionUndone && ev.UndoneIndex != nil {
			undone[*ev.UndoneIndex] = true
		}
	}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if undone[i] || !ev.Kind.Undoable() || ev.Undo == nil {
			continue
		}
		return i, ev
	}
	return -1, nil
}
