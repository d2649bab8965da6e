package state

import (
	"sort"
	"time"

	"claudia/internal/scheduler"
	"claudia/internal/types"
)

// SessionStatus is one session's row in a status report.
type SessionStatus struct {
	SessionID     string          `json:"session_id"`
	Role          types.Role      `json:"role"`
	Context       string          `json:"context,omitempty"`
	Labels        []string        `json:"labels,omitempty"`
	Branch        string          `json:"branch,omitempty"`
	WorkingOn     string          `json:"working_on,omitempty"`
	LastHeartbeat time.Time       `json:"last_heartbeat"`
	HeartbeatAge  float64         `json:"heartbeat_age_seconds"`
	Staleness     types.Staleness `json:"staleness"`
}

// BranchedTask names a completed task that carries a branch.
type BranchedTask struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Branch string `json:"branch"`
}

// StatusReport is the workspace overview returned by GET /status and the
// single-mode status command. Both modes produce the same shape.
type StatusReport struct {
	Mode                  string               `json:"mode"`
	TotalTasks            int                  `json:"total_tasks"`
	TasksByStatus         map[types.Status]int `json:"tasks_by_status"`
	ReadyTasks            int                  `json:"ready_tasks"`
	ActiveSessions        int                  `json:"active_sessions"`
	Sessions              []SessionStatus      `json:"sessions"`
	CompletedWithBranches []BranchedTask       `json:"completed_with_branches,omitempty"`
}

// Status summarizes the workspace at the given instant. Mode names the
// execution mode serving the report.
func (s *State) Status(now time.Time, mode string) *StatusReport {
	r := &StatusReport{
		Mode:           mode,
		TotalTasks:     len(s.Tasks),
		TasksByStatus:  make(map[types.Status]int),
		ReadyTasks:     len(scheduler.ReadyTasks(s.Tasks)),
		ActiveSessions: len(s.Sessions),
	}
	for _, st := range types.ValidStatuses() {
		r.TasksByStatus[st] = 0
	}
	for _, t := range s.Tasks {
		r.TasksByStatus[t.Status]++
		if t.Status == types.StatusDone && t.Branch != "" {
			r.CompletedWithBranches = append(r.CompletedWithBranches, BranchedTask{
				ID: t.ID, Title: t.Title, Branch: t.Branch,
			})
		}
	}

	for _, sess := range s.Sessions {
		r.Sessions = append(r.Sessions, SessionStatus{
			SessionID:     sess.SessionID,
			Role:          sess.Role,
			Context:       sess.Context,
			Labels:        append([]string(nil), sess.Labels...),
			Branch:        sess.Branch,
			WorkingOn:     sess.WorkingOn,
			LastHeartbeat: sess.LastHeartbeat,
			HeartbeatAge:  sess.HeartbeatAge(now).Seconds(),
			Staleness:     sess.StalenessAt(now),
		})
	}
	// Main sessions first, then workers by id.
	sort.Slice(r.Sessions, func(i, j int) bool {
		a, b := r.Sessions[i], r.Sessions[j]
		if (a.Role == types.RoleMain) != (b.Role == types.RoleMain) {
			return a.Role == types.RoleMain
		}
		return a.SessionID < b.SessionID
	})
	return r
}

// SummaryTask is one completed task inside a branch group.
type SummaryTask struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Notes []string `json:"notes,omitempty"` // last few note texts
}

// Summary groups completed work by branch for merge planning.
type Summary struct {
	TotalCompleted  int                      `json:"total_completed"`
	Branches        map[string][]SummaryTask `json:"branches"`
	BranchesToMerge []string                 `json:"branches_to_merge"`
}

// summaryNoteCount bounds how many trailing notes each summary entry keeps.
const summaryNoteCount = 3

// ParallelSummary reports completed tasks grouped by branch. Tasks completed
// without a branch fall under main; branches other than main are listed as
// merge candidates in sorted order.
func (s *State) ParallelSummary() *Summary {
	sum := &Summary{Branches: make(map[string][]SummaryTask)}
	for _, t := range s.Tasks {
		if t.Status != types.StatusDone {
			continue
		}
		sum.TotalCompleted++
		branch := t.Branch
		if branch == "" {
			branch = "main"
		}
		entry := SummaryTask{ID: t.ID, Title: t.Title}
		start := len(t.Notes) - summaryNoteCount
		if start < 0 {
			start = 0
		}
		for _, n := range t.Notes[start:] {
			entry.Notes = append(entry.Notes, n.Text)
		}
		sum.Branches[branch] = append(sum.Branches[branch], entry)
	}
	for branch := range sum.Branches {
		if branch != "main" {
			sum.BranchesToMerge = append(sum.BranchesToMerge, branch)
		}
	}
	sort.Strings(sum.BranchesToMerge)
	return sum
}

// Progress counts a parent's completed subtasks.
type Progress struct {
	ParentID string  `json:"parent_id"`
	Total    int     `json:"total"`
	Done     int     `json:"done"`
	Percent  float64 `json:"percentage"`
}

// SubtaskProgress reports completion across a parent's live subtasks. A task
// with no subtasks counts as fully complete.
func (s *State) SubtaskProgress(parentID string) (*Progress, error) {
	parent, err := s.task(parentID)
	if err != nil {
		return nil, err
	}
	p := &Progress{ParentID: parent.ID}
	for _, id := range parent.Subtasks {
		child, ok := s.byID[id]
		if !ok {
			continue
		}
		p.Total++
		if child.Status == types.StatusDone {
			p.Done++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Done) / float64(p.Total) * 100
	} else {
		p.Percent = 100
	}
	return p, nil
}
