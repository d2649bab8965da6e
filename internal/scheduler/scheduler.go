// Package scheduler implements task selection for claiming sessions.
//
// Selection is deterministic: given the same backlog and session it always
// returns the same task. The package touches no clock and no I/O, so both
// execution modes share it verbatim.
package scheduler

import (
	"sort"

	"claudia/internal/types"
)

// OrphanRef records a blocked_by reference that names no live task. Orphaned
// references count as satisfied; callers surface them as warnings.
type OrphanRef struct {
	TaskID    string
	BlockerID string
}

// Decision is the outcome of one selection pass.
type Decision struct {
	Task    *types.Task // nil when nothing is claimable
	Orphans []OrphanRef
}

// Ready reports whether the task can be claimed right now: open, unassigned,
// and every blocker done or missing. Missing blockers are returned so the
// caller can warn about them.
func Ready(t *types.Task, byID map[string]*types.Task) (bool, []string) {
	if t.Status != types.StatusOpen || t.Assignee != "" {
		return false, nil
	}
	ready := true
	var missing []string
	// Scan the whole list even once blocked, so every orphaned
	// reference gets reported.
	for _, dep := range t.BlockedBy {
		blocker, ok := byID[dep]
		if !ok {
			missing = append(missing, dep)
			continue
		}
		if blocker.Status != types.StatusDone {
			ready = false
		}
	}
	return ready, missing
}

// ReadyTasks returns every claimable task in backlog order.
func ReadyTasks(tasks []*types.Task) []*types.Task {
	byID := index(tasks)
	var out []*types.Task
	for _, t := range tasks {
		if ok, _ := Ready(t, byID); ok {
			out = append(out, t)
		}
	}
	return out
}

type candidate struct {
	task     *types.Task
	affinity int
}

// Next picks the task the session should claim, or none. Candidates are
// ordered by label affinity (descending), then priority (ascending, 0 is
// most urgent), then creation time, then id. A session already holding
// maxConcurrent claims gets nothing regardless of backlog.
func Next(tasks []*types.Task, session *types.Session, preferred []string, maxConcurrent int) Decision {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	labels := make(map[string]bool, len(session.Labels)+len(preferred))
	for _, l := range session.Labels {
		labels[l] = true
	}
	for _, l := range preferred {
		labels[l] = true
	}

	byID := index(tasks)

	var (
		candidates []candidate
		orphans    []OrphanRef
		owned      int
	)
	for _, t := range tasks {
		if t.Status == types.StatusInProgress && t.Assignee == session.SessionID {
			owned++
		}
		ok, missing := Ready(t, byID)
		for _, dep := range missing {
			orphans = append(orphans, OrphanRef{TaskID: t.ID, BlockerID: dep})
		}
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{task: t, affinity: affinity(t, labels)})
	}

	if owned >= maxConcurrent || len(candidates) == 0 {
		return Decision{Orphans: orphans}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.affinity != b.affinity {
			return a.affinity > b.affinity
		}
		if a.task.Priority != b.task.Priority {
			return a.task.Priority < b.task.Priority
		}
		if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
			return a.task.CreatedAt.Before(b.task.CreatedAt)
		}
		return a.task.ID < b.task.ID
	})

	return Decision{Task: candidates[0].task, Orphans: orphans}
}

func affinity(t *types.Task, labels map[string]bool) int {
	n := 0
	for _, l := range t.Labels {
		if labels[l] {
			n++
		}
	}
	return n
}

func index(tasks []*types.Task) map[string]*types.Task {
	byID := make(map[string]*types.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return byID
}
