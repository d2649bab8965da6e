package types

import "time"

// EventKind names one kind of history record.
type EventKind string

// History event kinds. Every committed mutation appends exactly one record
// with one of these kinds.
const (
	EventTaskCreated    EventKind = "task_created"
	EventTaskClaimed    EventKind = "task_claimed"
	EventTaskCompleted  EventKind = "task_completed"
	EventTaskReopened   EventKind = "task_reopened"
	EventTaskEdited     EventKind = "task_edited"
	EventTaskDeleted    EventKind = "task_deleted"
	EventNoteAdded      EventKind = "note_added"
	EventSubtaskCreated EventKind = "subtask_created"
	EventTimerStarted   EventKind = "timer_started"
	EventTimerStopped   EventKind = "timer_stopped"
	EventTimerPaused    EventKind = "timer_paused"
	EventSessionStarted EventKind = "session_registered"
	EventSessionEnded   EventKind = "session_ended"
	EventTasksArchived  EventKind = "tasks_archived"
	EventTaskRestored   EventKind = "task_restored"
	EventTemplateSaved  EventKind = "template_created"
	EventTemplateErased EventKind = "template_deleted"
	EventActionUndone   EventKind = "action_undone"
)

// Event is one append-only history record. Records are written as single
// JSON lines to history.jsonl and never rewritten.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Kind       EventKind `json:"event"`
	SessionID  string    `json:"session_id,omitempty"`
	TaskID     string    `json:"task_id,omitempty"`
	ParentID   string    `json:"parent_id,omitempty"`
	TemplateID string    `json:"template_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Note       string    `json:"note,omitempty"`
	Changes    []string  `json:"changes,omitempty"`
	Released   []string  `json:"released,omitempty"` // task ids returned to open by a session end
	Bulk       bool      `json:"bulk,omitempty"`
	Count      int       `json:"count,omitempty"`
	DaysOld    int       `json:"days_old,omitempty"`
	Elapsed    float64   `json:"elapsed_seconds,omitempty"`
	Reason     string    `json:"reason,omitempty"`

	// Undo bookkeeping. Undoable events carry the pre-image of what they
	// changed; an action_undone record points back at the line it reversed.
	Undo          *UndoHint `json:"undo_data,omitempty"`
	OriginalEvent EventKind `json:"original_event,omitempty"`
	UndoneIndex   *int      `json:"undone_index,omitempty"`
}

// UndoHint captures the full pre-images needed to reverse one mutation.
// Restoring the pre-image verbatim makes undo an exact inverse, including
// removal of any note the forward operation appended.
type UndoHint struct {
	Task    *Task   `json:"task,omitempty"`    // the mutated task as it was before
	Cascade []*Task `json:"cascade,omitempty"` // subtasks removed by a forced delete
	Parent  *Task   `json:"parent,omitempty"`  // parent whose subtask list the delete touched
}

// Undoable reports whether records of this kind can be reversed.
func (k EventKind) Undoable() bool {
	switch k {
	case EventTaskCompleted, EventTaskDeleted, EventTaskEdited, EventTaskReopened:
		return true
	}
	return false
}

// NewEvent stamps a history record of the given kind.
func NewEvent(ts time.Time, kind EventKind, sessionID string) *Event {
	return &Event{Timestamp: ts, Kind: kind, SessionID: sessionID}
}
