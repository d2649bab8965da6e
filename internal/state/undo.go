package state

import (
	"claudia/internal/errs"
	"claudia/internal/types"
)

// UndoResult describes what an undo restored.
type UndoResult struct {
	UndoneEvent types.EventKind `json:"undone_event"`
	TaskID      string          `json:"task_id"`
	Task        *types.Task     `json:"task,omitempty"`
	Restored    []string        `json:"restored,omitempty"` // ids brought back by undoing a delete
}

// ApplyUndo reverses the mutation recorded at history index by restoring
// its pre-images, then appends the compensating record. The forward
// operation's note disappears with the rest of the post-image.
func (s *State) ApplyUndo(ev *types.Event, index int, sessionID string) (*UndoResult, error) {
	if ev.Undo == nil || !ev.Kind.Undoable() {
		return nil, errs.Conflictf("event %s is not reversible", ev.Kind)
	}
	hint := ev.Undo
	if hint.Task == nil {
		return nil, errs.Conflictf("event %s carries no restorable state", ev.Kind)
	}

	now := s.now()
	res := &UndoResult{UndoneEvent: ev.Kind, TaskID: hint.Task.ID}

	switch ev.Kind {
	case types.EventTaskCompleted, types.EventTaskEdited, types.EventTaskReopened:
		if _, ok := s.byID[hint.Task.ID]; !ok {
			return nil, errs.Conflictf("cannot undo %s: task %s no longer exists", ev.Kind, hint.Task.ID)
		}
		res.Task = s.replaceTask(hint.Task.Clone())

	case types.EventTaskDeleted:
		if _, exists := s.byID[hint.Task.ID]; exists {
			return nil, errs.Conflictf("cannot undo delete: task %s already exists", hint.Task.ID)
		}
		for _, child := range hint.Cascade {
			if _, exists := s.byID[child.ID]; exists {
				return nil, errs.Conflictf("cannot undo delete: task %s already exists", child.ID)
			}
		}

		restored := hint.Task.Clone()
		s.insertTask(restored)
		res.Task = restored
		res.Restored = append(res.Restored, restored.ID)
		for _, child := range hint.Cascade {
			c := child.Clone()
			s.insertTask(c)
			res.Restored = append(res.Restored, c.ID)
		}
		if restored.ParentID != "" {
			if parent, ok := s.byID[restored.ParentID]; ok {
				if hint.Parent != nil {
					s.replaceTask(hint.Parent.Clone())
				} else if !contains(parent.Subtasks, restored.ID) {
					parent.Subtasks = append(parent.Subtasks, restored.ID)
				}
			} else {
				restored.ParentID = ""
				restored.IsSubtask = false
			}
		}
	}

	s.reclaimWorkingOn(res.Task)

	comp := types.NewEvent(now, types.EventActionUndone, sessionID)
	comp.OriginalEvent = ev.Kind
	comp.TaskID = res.TaskID
	comp.UndoneIndex = &index
	s.logEvent(comp)
	return res, nil
}

// replaceTask swaps the live task with the same id for the given one,
// keeping its backlog position.
func (s *State) replaceTask(t *types.Task) *types.Task {
	for i, cur := range s.Tasks {
		if cur.ID == t.ID {
			s.Tasks[i] = t
			s.byID[t.ID] = t
			return t
		}
	}
	s.insertTask(t)
	return t
}

// reclaimWorkingOn points the claimant's registry entry back at a task
// whose restored pre-image holds a claim.
func (s *State) reclaimWorkingOn(t *types.Task) {
	if t == nil || t.Assignee == "" {
		return
	}
	if sess, ok := s.Sessions[t.Assignee]; ok && sess.WorkingOn == "" {
		sess.WorkingOn = t.ID
	}
}
