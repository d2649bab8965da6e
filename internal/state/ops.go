package state

import (
	"fmt"
	"log/slog"
	"strings"

	"claudia/internal/errs"
	"claudia/internal/scheduler"
	"claudia/internal/types"
)

// CreateTaskArgs carries the fields of a task creation request. The json
// tags double as the wire shape of POST /task/create.
type CreateTaskArgs struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Branch      string   `json:"branch,omitempty"`
	BlockedBy   []string `json:"blocked_by,omitempty"`
	SessionID   string   `json:"session_id,omitempty"`
}

// CreateTask adds a task to the backlog and returns it.
func (s *State) CreateTask(args CreateTaskArgs) (*types.Task, error) {
	if strings.TrimSpace(args.Title) == "" {
		return nil, errs.InvalidArgumentf("title is required")
	}
	priority := types.DefaultPriority
	if args.Priority != nil {
		priority = *args.Priority
	}
	if priority < 0 || priority > 3 {
		return nil, errs.InvalidArgumentf("priority must be between 0 and 3 (got %d)", priority)
	}
	for _, dep := range args.BlockedBy {
		if _, ok := s.byID[dep]; !ok {
			return nil, errs.InvalidArgumentf("blocked_by references unknown task %s", dep)
		}
	}

	now := s.now()
	t := &types.Task{
		ID:          s.allocateID(),
		Title:       args.Title,
		Description: args.Description,
		Status:      types.StatusOpen,
		Priority:    priority,
		Labels:      append([]string(nil), args.Labels...),
		BlockedBy:   append([]string(nil), args.BlockedBy...),
		Branch:      args.Branch,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.AddNote(now, args.SessionID, "Created task")
	if err := t.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, "invalid task", err)
	}
	s.insertTask(t)

	ev := types.NewEvent(now, types.EventTaskCreated, args.SessionID)
	ev.TaskID = t.ID
	ev.Title = t.Title
	s.logEvent(ev)
	return t, nil
}

// CreateSubtaskArgs carries the fields of POST /task/subtask.
type CreateSubtaskArgs struct {
	ParentID    string `json:"parent_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// CreateSubtask adds a child task under an existing parent. The child
// inherits the parent's priority, labels and branch.
func (s *State) CreateSubtask(args CreateSubtaskArgs) (*types.Task, error) {
	parent, err := s.task(args.ParentID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Title) == "" {
		return nil, errs.InvalidArgumentf("title is required")
	}

	now := s.now()
	t := &types.Task{
		ID:          s.allocateID(),
		Title:       args.Title,
		Description: args.Description,
		Status:      types.StatusOpen,
		Priority:    parent.Priority,
		Labels:      append([]string(nil), parent.Labels...),
		Branch:      parent.Branch,
		ParentID:    parent.ID,
		IsSubtask:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.AddNote(now, args.SessionID, fmt.Sprintf("Created as subtask of %s", parent.ID))
	if err := t.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, "invalid subtask", err)
	}
	s.insertTask(t)
	parent.Subtasks = append(parent.Subtasks, t.ID)
	parent.UpdatedAt = now

	ev := types.NewEvent(now, types.EventSubtaskCreated, args.SessionID)
	ev.TaskID = t.ID
	ev.ParentID = parent.ID
	ev.Title = t.Title
	s.logEvent(ev)
	return t, nil
}

// RequestTask picks and claims the best ready task for the session, or
// returns nil when nothing is claimable. Orphaned blocked_by references
// found during selection are logged as warnings.
func (s *State) RequestTask(sessionID string, preferred []string, maxConcurrent int) (*types.Task, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	d := scheduler.Next(s.Tasks, sess, preferred, maxConcurrent)
	for _, o := range d.Orphans {
		slog.Warn("blocked_by references missing task, treating as satisfied",
			"task_id", o.TaskID, "blocker_id", o.BlockerID)
	}
	if d.Task == nil {
		return nil, nil
	}

	now := s.now()
	t := d.Task
	t.Status = types.StatusInProgress
	t.Assignee = sessionID
	t.UpdatedAt = now
	t.AddNote(now, sessionID, "Claimed task")
	sess.WorkingOn = t.ID

	ev := types.NewEvent(now, types.EventTaskClaimed, sessionID)
	ev.TaskID = t.ID
	s.logEvent(ev)
	return t, nil
}

// CompleteTaskArgs carries the fields of POST /task/complete.
type CompleteTaskArgs struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id,omitempty"`
	Note      string `json:"note,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Force     bool   `json:"force,omitempty"`

	// Bulk marks records written by bulk operations.
	Bulk bool `json:"-"`
	// AutoCompleteParents cascades completion to a parent whose subtasks
	// are all done. Off unless enabled in config.
	AutoCompleteParents bool `json:"-"`
}

// CompleteTask marks a task done, releasing its claim.
func (s *State) CompleteTask(args CompleteTaskArgs) (*types.Task, error) {
	t, err := s.task(args.TaskID)
	if err != nil {
		return nil, err
	}
	if t.Status == types.StatusDone {
		return nil, errs.Conflictf("task %s is already done", t.ID)
	}
	if t.Assignee != "" && t.Assignee != args.SessionID && !args.Force {
		return nil, errs.Conflictf("task %s is claimed by %s (use force to override)", t.ID, t.Assignee)
	}
	if open := s.incompleteSubtasks(t); len(open) > 0 && !args.Force {
		return nil, errs.Conflictf("task %s has %d incomplete subtasks (use force to override)", t.ID, len(open))
	}

	now := s.now()
	hint := &types.UndoHint{Task: t.Clone()}
	claimant := t.Assignee

	t.Status = types.StatusDone
	t.Assignee = ""
	if args.Branch != "" {
		t.Branch = args.Branch
	}
	if args.Note != "" {
		t.AddNote(now, args.SessionID, "Completed: "+args.Note)
	}
	t.UpdatedAt = now
	s.releaseWorkingOn(claimant, t.ID)

	ev := types.NewEvent(now, types.EventTaskCompleted, args.SessionID)
	ev.TaskID = t.ID
	ev.Note = args.Note
	ev.Bulk = args.Bulk
	ev.Undo = hint
	s.logEvent(ev)

	if args.AutoCompleteParents {
		s.maybeCompleteParent(t, args.SessionID)
	}
	return t, nil
}

// maybeCompleteParent closes a parent once its last open subtask finishes.
// The parent completion is its own mutation with its own history record.
func (s *State) maybeCompleteParent(t *types.Task, sessionID string) {
	if t.ParentID == "" {
		return
	}
	parent, ok := s.byID[t.ParentID]
	if !ok || parent.Status == types.StatusDone {
		return
	}
	if len(s.incompleteSubtasks(parent)) > 0 {
		return
	}
	if parent.Assignee != "" && parent.Assignee != sessionID {
		return
	}

	now := s.now()
	hint := &types.UndoHint{Task: parent.Clone()}
	claimant := parent.Assignee
	parent.Status = types.StatusDone
	parent.Assignee = ""
	parent.AddNote(now, sessionID, "Completed: all subtasks done")
	parent.UpdatedAt = now
	s.releaseWorkingOn(claimant, parent.ID)

	ev := types.NewEvent(now, types.EventTaskCompleted, sessionID)
	ev.TaskID = parent.ID
	ev.Reason = "auto"
	ev.Undo = hint
	s.logEvent(ev)

	s.maybeCompleteParent(parent, sessionID)
}

func (s *State) incompleteSubtasks(t *types.Task) []string {
	var open []string
	for _, id := range t.Subtasks {
		if child, ok := s.byID[id]; ok && child.Status != types.StatusDone {
			open = append(open, id)
		}
	}
	return open
}

func (s *State) releaseWorkingOn(sessionID, taskID string) {
	if sessionID == "" {
		return
	}
	if sess, ok := s.Sessions[sessionID]; ok && sess.WorkingOn == taskID {
		sess.WorkingOn = ""
	}
}

// ReopenTaskArgs carries the fields of POST /task/reopen.
type ReopenTaskArgs struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id,omitempty"`
	Note      string `json:"note,omitempty"`

	Bulk bool `json:"-"`
}

// ReopenTask returns a done task to the open pool.
func (s *State) ReopenTask(args ReopenTaskArgs) (*types.Task, error) {
	t, err := s.task(args.TaskID)
	if err != nil {
		return nil, err
	}
	if t.Status != types.StatusDone {
		return nil, errs.Conflictf("task %s is %s, only done tasks can be reopened", t.ID, t.Status)
	}

	now := s.now()
	hint := &types.UndoHint{Task: t.Clone()}

	t.Status = types.StatusOpen
	t.Assignee = ""
	// The branch belonged to the completion; only history keeps it.
	t.Branch = ""
	text := "Reopened"
	if args.Note != "" {
		text += ": " + args.Note
	}
	t.AddNote(now, args.SessionID, text)
	t.UpdatedAt = now

	ev := types.NewEvent(now, types.EventTaskReopened, args.SessionID)
	ev.TaskID = t.ID
	ev.Note = args.Note
	ev.Bulk = args.Bulk
	ev.Undo = hint
	s.logEvent(ev)
	return t, nil
}

// EditTaskArgs carries the fields of POST /task/edit. Nil pointers leave
// the field untouched.
type EditTaskArgs struct {
	TaskID      string        `json:"task_id"`
	SessionID   string        `json:"session_id,omitempty"`
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Priority    *int          `json:"priority,omitempty"`
	Labels      *[]string     `json:"labels,omitempty"`
	Status      *types.Status `json:"status,omitempty"`
	BlockedBy   *[]string     `json:"blocked_by,omitempty"`
	Branch      *string       `json:"branch,omitempty"`
}

// EditTask updates task fields in place. Status edits can only move a task
// between open and blocked; claiming and completing have their own
// operations.
func (s *State) EditTask(args EditTaskArgs) (*types.Task, error) {
	t, err := s.task(args.TaskID)
	if err != nil {
		return nil, err
	}

	if args.Title == nil && args.Description == nil && args.Priority == nil &&
		args.Labels == nil && args.Status == nil && args.BlockedBy == nil && args.Branch == nil {
		return nil, errs.InvalidArgumentf("nothing to edit")
	}
	if args.Title != nil && strings.TrimSpace(*args.Title) == "" {
		return nil, errs.InvalidArgumentf("title cannot be empty")
	}
	if args.Priority != nil && (*args.Priority < 0 || *args.Priority > 3) {
		return nil, errs.InvalidArgumentf("priority must be between 0 and 3 (got %d)", *args.Priority)
	}
	if args.Status != nil {
		if *args.Status != types.StatusOpen && *args.Status != types.StatusBlocked {
			return nil, errs.InvalidArgumentf("status can only be edited to open or blocked")
		}
		if t.Status == types.StatusInProgress {
			return nil, errs.Conflictf("task %s is claimed, release it before changing status", t.ID)
		}
		if t.Status == types.StatusDone {
			return nil, errs.Conflictf("task %s is done, reopen it instead", t.ID)
		}
	}
	if args.BlockedBy != nil {
		for _, dep := range *args.BlockedBy {
			if dep == t.ID {
				return nil, errs.Conflictf("task %s cannot block itself", t.ID)
			}
			if _, ok := s.byID[dep]; !ok {
				return nil, errs.InvalidArgumentf("blocked_by references unknown task %s", dep)
			}
		}
		if s.wouldCycle(t.ID, *args.BlockedBy) {
			return nil, errs.Conflictf("blocked_by would create a cycle through %s", t.ID)
		}
	}

	now := s.now()
	hint := &types.UndoHint{Task: t.Clone()}

	var changes []string
	if args.Title != nil && *args.Title != t.Title {
		t.Title = *args.Title
		changes = append(changes, "title")
	}
	if args.Description != nil && *args.Description != t.Description {
		t.Description = *args.Description
		changes = append(changes, "description")
	}
	if args.Priority != nil && *args.Priority != t.Priority {
		t.Priority = *args.Priority
		changes = append(changes, fmt.Sprintf("priority to P%d", t.Priority))
	}
	if args.Labels != nil {
		t.Labels = append([]string(nil), (*args.Labels)...)
		changes = append(changes, fmt.Sprintf("labels to [%s]", strings.Join(t.Labels, " ")))
	}
	if args.Status != nil && *args.Status != t.Status {
		t.Status = *args.Status
		changes = append(changes, fmt.Sprintf("status to %s", t.Status))
	}
	if args.BlockedBy != nil {
		t.BlockedBy = append([]string(nil), (*args.BlockedBy)...)
		changes = append(changes, fmt.Sprintf("blocked_by to [%s]", strings.Join(t.BlockedBy, " ")))
	}
	if args.Branch != nil && *args.Branch != t.Branch {
		t.Branch = *args.Branch
		changes = append(changes, fmt.Sprintf("branch to %s", t.Branch))
	}

	if len(changes) == 0 {
		// Every requested field already had the requested value.
		return t, nil
	}

	t.AddNote(now, args.SessionID, "Edited: "+strings.Join(changes, ", "))
	t.UpdatedAt = now

	ev := types.NewEvent(now, types.EventTaskEdited, args.SessionID)
	ev.TaskID = t.ID
	ev.Changes = changes
	ev.Undo = hint
	s.logEvent(ev)
	return t, nil
}

// DeleteTask removes a task. Tasks with live subtasks require force, which
// cascades the delete to every child. Returns the ids removed.
func (s *State) DeleteTask(id, sessionID string, force bool) ([]string, error) {
	t, err := s.task(id)
	if err != nil {
		return nil, err
	}

	var children []*types.Task
	for _, sub := range t.Subtasks {
		if child, ok := s.byID[sub]; ok {
			children = append(children, child)
		}
	}
	if len(children) > 0 && !force {
		return nil, errs.Conflictf("task %s has %d subtasks (use force to delete them too)", t.ID, len(children))
	}

	now := s.now()
	hint := &types.UndoHint{Task: t.Clone()}
	for _, child := range children {
		hint.Cascade = append(hint.Cascade, child.Clone())
	}

	var parent *types.Task
	if t.ParentID != "" {
		if p, ok := s.byID[t.ParentID]; ok {
			parent = p
			hint.Parent = p.Clone()
		}
	}

	deleted := []string{t.ID}
	s.releaseWorkingOn(t.Assignee, t.ID)
	s.removeTask(t.ID)
	for _, child := range children {
		s.releaseWorkingOn(child.Assignee, child.ID)
		s.removeTask(child.ID)
		deleted = append(deleted, child.ID)
	}
	if parent != nil {
		parent.Subtasks = remove(parent.Subtasks, t.ID)
		parent.UpdatedAt = now
	}

	ev := types.NewEvent(now, types.EventTaskDeleted, sessionID)
	ev.TaskID = t.ID
	ev.Title = t.Title
	ev.Count = len(deleted)
	ev.Undo = hint
	s.logEvent(ev)
	return deleted, nil
}

// AddNoteArgs carries the fields of POST /task/note.
type AddNoteArgs struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id,omitempty"`
	Note      string `json:"note"`
}

// AddNote appends a note to a task.
func (s *State) AddNote(args AddNoteArgs) (*types.Task, error) {
	t, err := s.task(args.TaskID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Note) == "" {
		return nil, errs.InvalidArgumentf("note text is required")
	}

	now := s.now()
	t.AddNote(now, args.SessionID, args.Note)
	t.UpdatedAt = now

	ev := types.NewEvent(now, types.EventNoteAdded, args.SessionID)
	ev.TaskID = t.ID
	ev.Note = args.Note
	s.logEvent(ev)
	return t, nil
}

// BulkFailure records one task a bulk operation could not process.
type BulkFailure struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// BulkResult summarizes a bulk operation.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed,omitempty"`
}

// BulkComplete completes several tasks, continuing past individual
// failures. Each completed task gets its own history record marked bulk.
func (s *State) BulkComplete(ids []string, args CompleteTaskArgs) *BulkResult {
	res := &BulkResult{}
	for _, id := range ids {
		a := args
		a.TaskID = id
		a.Bulk = true
		if _, err := s.CompleteTask(a); err != nil {
			res.Failed = append(res.Failed, BulkFailure{TaskID: id, Error: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res
}

// BulkReopen reopens several tasks, continuing past individual failures.
func (s *State) BulkReopen(ids []string, args ReopenTaskArgs) *BulkResult {
	res := &BulkResult{}
	for _, id := range ids {
		a := args
		a.TaskID = id
		a.Bulk = true
		if _, err := s.ReopenTask(a); err != nil {
			res.Failed = append(res.Failed, BulkFailure{TaskID: id, Error: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res
}
