// Package state holds the in-memory picture of a workspace and implements
// every mutation the coordination core supports.
//
// Both execution modes drive the same operations: single mode loads a State,
// applies one operation and persists it inside a store transaction; parallel
// mode keeps one long-lived State behind the coordinator's mutex. Keeping the
// mutations in one place is what makes the two modes indistinguishable to
// callers.
package state

import (
	"fmt"
	"time"

	"claudia/internal/errs"
	"claudia/internal/types"
)

// SchemaVersion is the tasks.json format this build reads and writes.
// Version 1 predates subtasks, timers and archival and is not migrated.
const SchemaVersion = 2

// State is the complete mutable picture of one workspace.
type State struct {
	Version   int
	NextID    int
	Tasks     []*types.Task
	Sessions  map[string]*types.Session
	Templates []*types.Template

	byID           map[string]*types.Task
	pending        []*types.Event
	pendingArchive []*types.Task
	templatesDirty bool
	now            func() time.Time
}

// New returns an empty workspace at the current schema version.
func New() *State {
	s := &State{
		Version:  SchemaVersion,
		NextID:   1,
		Sessions: make(map[string]*types.Session),
		byID:     make(map[string]*types.Task),
		now:      func() time.Time { return time.Now().UTC() },
	}
	return s
}

// SetClock overrides the time source. Tests use this to get stable
// timestamps; production code never calls it.
func (s *State) SetClock(fn func() time.Time) {
	s.now = fn
}

// Reindex rebuilds the id index after direct manipulation of Tasks, such as
// loading from disk.
func (s *State) Reindex() {
	s.byID = make(map[string]*types.Task, len(s.Tasks))
	for _, t := range s.Tasks {
		s.byID[t.ID] = t
	}
}

// Task returns the live task with the given id.
func (s *State) Task(id string) (*types.Task, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// TasksByStatus returns live tasks filtered by status, in backlog order.
// An empty status returns everything.
func (s *State) TasksByStatus(status types.Status) []*types.Task {
	out := make([]*types.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

func (s *State) task(id string) (*types.Task, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, errs.NotFoundf("task %s not found", id)
	}
	return t, nil
}

func (s *State) session(id string) (*types.Session, error) {
	sess, ok := s.Sessions[id]
	if !ok {
		return nil, errs.NotFoundf("session %s not found", id)
	}
	return sess, nil
}

func (s *State) insertTask(t *types.Task) {
	s.Tasks = append(s.Tasks, t)
	s.byID[t.ID] = t
}

func (s *State) removeTask(id string) {
	for i, t := range s.Tasks {
		if t.ID == id {
			s.Tasks = append(s.Tasks[:i], s.Tasks[i+1:]...)
			break
		}
	}
	delete(s.byID, id)
}

// logEvent queues a history record for the committing layer to append.
func (s *State) logEvent(ev *types.Event) {
	s.pending = append(s.pending, ev)
}

// DrainEvents hands queued history records to the committing layer and
// clears the queue.
func (s *State) DrainEvents() []*types.Event {
	ev := s.pending
	s.pending = nil
	return ev
}

// DrainArchived hands tasks queued for the archive log to the committing
// layer and clears the queue.
func (s *State) DrainArchived() []*types.Task {
	a := s.pendingArchive
	s.pendingArchive = nil
	return a
}

// TemplatesDirty reports whether a template mutation needs persisting.
func (s *State) TemplatesDirty() bool { return s.templatesDirty }

// ClearTemplatesDirty resets the template dirty flag after a flush.
func (s *State) ClearTemplatesDirty() { s.templatesDirty = false }

// allocateID hands out the next task id and advances the counter.
func (s *State) allocateID() string {
	id := types.FormatTaskID(s.NextID)
	s.NextID++
	return id
}

// bumpNextID keeps the counter strictly above every numeric task id. Used
// when a task re-enters the backlog from the archive.
func (s *State) bumpNextID(id string) {
	if n, ok := types.TaskIDNum(id); ok && n >= s.NextID {
		s.NextID = n + 1
	}
}

// Validate checks workspace-wide invariants. It runs after every mutation
// in single mode and on every load; a violation aborts the transaction
// before anything reaches disk.
func (s *State) Validate() error {
	seen := make(map[string]bool, len(s.Tasks))
	for _, t := range s.Tasks {
		if seen[t.ID] {
			return errs.Internalf("duplicate task id %s", t.ID)
		}
		seen[t.ID] = true
		if n, ok := types.TaskIDNum(t.ID); ok && n >= s.NextID {
			return errs.Internalf("next_id %d not above task id %s", s.NextID, t.ID)
		}
		if err := t.Validate(); err != nil {
			return errs.Wrap(errs.KindConflict, fmt.Sprintf("task %s invalid", t.ID), err)
		}
	}

	// Parent and subtask links must agree wherever both ends are live.
	for _, t := range s.Tasks {
		if t.ParentID != "" {
			if parent, ok := s.byID[t.ParentID]; ok && !contains(parent.Subtasks, t.ID) {
				return errs.Internalf("parent %s does not list subtask %s", t.ParentID, t.ID)
			}
		}
		for _, sub := range t.Subtasks {
			if child, ok := s.byID[sub]; ok && child.ParentID != t.ID {
				return errs.Internalf("subtask %s does not point back to parent %s", sub, t.ID)
			}
		}
	}

	if cycle := s.findBlockedByCycle(); cycle != "" {
		return errs.Conflictf("blocked_by cycle through %s", cycle)
	}

	for id, sess := range s.Sessions {
		if err := sess.Validate(); err != nil {
			return errs.Wrap(errs.KindConflict, fmt.Sprintf("session %s invalid", id), err)
		}
	}
	return nil
}

// findBlockedByCycle returns the id of a task on a blocked_by cycle, or ""
// when the live dependency graph is acyclic. References to missing tasks
// are ignored.
func (s *State) findBlockedByCycle() string {
	const (
		visiting = 1
		done     = 2
	)
	mark := make(map[string]int, len(s.Tasks))

	var visit func(id string) string
	visit = func(id string) string {
		switch mark[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		mark[id] = visiting
		if t, ok := s.byID[id]; ok {
			for _, dep := range t.BlockedBy {
				if _, live := s.byID[dep]; !live {
					continue
				}
				if hit := visit(dep); hit != "" {
					return hit
				}
			}
		}
		mark[id] = done
		return ""
	}

	for _, t := range s.Tasks {
		if hit := visit(t.ID); hit != "" {
			return hit
		}
	}
	return ""
}

// wouldCycle reports whether giving the task these blockers would create a
// dependency cycle.
func (s *State) wouldCycle(taskID string, blockedBy []string) bool {
	// Walk from the proposed blockers; reaching taskID closes a loop.
	seen := make(map[string]bool)
	stack := append([]string(nil), blockedBy...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == taskID {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if t, ok := s.byID[id]; ok {
			stack = append(stack, t.BlockedBy...)
		}
	}
	return false
}

// RepairSessions drops working_on pointers that no longer match a claimed
// task. Runs on load; a crashed writer can leave the registry ahead of the
// backlog.
func (s *State) RepairSessions() {
	for _, sess := range s.Sessions {
		if sess.WorkingOn == "" {
			continue
		}
		t, ok := s.byID[sess.WorkingOn]
		if !ok || t.Assignee != sess.SessionID || t.Status != types.StatusInProgress {
			sess.WorkingOn = ""
		}
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
