package state

import (
	"fmt"
	"time"

	"claudia/internal/types"
)

// ArchiveCandidates returns done tasks whose last update is older than the
// cutoff, in backlog order. Used for dry runs and by ArchiveTasks itself.
func (s *State) ArchiveCandidates(cutoff time.Time) []*types.Task {
	var out []*types.Task
	for _, t := range s.Tasks {
		if t.Status == types.StatusDone && t.UpdatedAt.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// ArchiveTasks moves old done tasks out of the live backlog. Archived
// copies are queued for the archive log; daysOld only annotates the history
// record.
func (s *State) ArchiveTasks(cutoff time.Time, daysOld int, sessionID string) ([]*types.Task, error) {
	candidates := s.ArchiveCandidates(cutoff)
	if len(candidates) == 0 {
		return nil, nil
	}

	now := s.now()
	archived := make([]*types.Task, 0, len(candidates))
	for _, t := range candidates {
		record := t.Clone()
		record.ArchivedAt = &now
		s.pendingArchive = append(s.pendingArchive, record)
		s.removeTask(t.ID)
		archived = append(archived, record)
	}

	ev := types.NewEvent(now, types.EventTasksArchived, sessionID)
	ev.Count = len(archived)
	ev.DaysOld = daysOld
	s.logEvent(ev)
	return archived, nil
}

// RestoreTask returns an archived task to the live backlog as open work.
// The archive log keeps its record; only the live file changes. If the
// original id has been handed out again since archival the task comes back
// under a fresh id rather than refusing.
func (s *State) RestoreTask(archived *types.Task, sessionID string) (*types.Task, error) {
	now := s.now()
	t := archived.Clone()
	t.Status = types.StatusOpen
	t.Assignee = ""
	t.ArchivedAt = nil

	note := "Restored from archive"
	if _, taken := s.byID[t.ID]; taken {
		oldID := t.ID
		t.ID = s.allocateID()
		note = fmt.Sprintf("Restored from archive (was %s)", oldID)
	}
	t.AddNote(now, sessionID, note)
	t.UpdatedAt = now

	s.insertTask(t)
	s.bumpNextID(t.ID)

	// Re-link a surviving parent; the subtask reference may have been
	// dropped or the parent itself archived in the meantime.
	if t.ParentID != "" {
		if parent, ok := s.byID[t.ParentID]; ok {
			if !contains(parent.Subtasks, t.ID) {
				parent.Subtasks = append(parent.Subtasks, t.ID)
				parent.UpdatedAt = now
			}
		} else {
			t.ParentID = ""
			t.IsSubtask = false
		}
	}

	ev := types.NewEvent(now, types.EventTaskRestored, sessionID)
	ev.TaskID = t.ID
	ev.Title = t.Title
	s.logEvent(ev)
	return t, nil
}
