// Package types defines core data structures for the claudia coordination core.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultPriority is assigned to new tasks that do not specify one.
const DefaultPriority = 2

// MaxNotesPerTask bounds the notes list on a task. When the list is full the
// oldest note is dropped on append.
const MaxNotesPerTask = 50

// Task represents a unit of work in the shared backlog.
type Task struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Status       Status        `json:"status"`
	Priority     int           `json:"priority"` // No omitempty: 0 is valid (critical)
	Labels       []string      `json:"labels,omitempty"`
	Assignee     string        `json:"assignee,omitempty"` // session_id of the claimant, empty when unclaimed
	BlockedBy    []string      `json:"blocked_by,omitempty"`
	Branch       string        `json:"branch,omitempty"`
	ParentID     string        `json:"parent_id,omitempty"`
	IsSubtask    bool          `json:"is_subtask,omitempty"`
	Subtasks     []string      `json:"subtasks,omitempty"`
	Notes        []Note        `json:"notes,omitempty"`
	TimeTracking *TimeTracking `json:"time_tracking,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	ArchivedAt   *time.Time    `json:"archived_at,omitempty"` // set only on archive records
}

// Note is a timestamped annotation on a task.
type Note struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Text      string    `json:"note"`
}

// TimeTracking carries the accumulated timer state for a task.
// A running timer has started_at set; elapsed time folds into
// total_seconds when the timer stops or pauses.
type TimeTracking struct {
	TotalSeconds float64    `json:"total_seconds"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	IsRunning    bool       `json:"is_running,omitempty"`
	IsPaused     bool       `json:"is_paused,omitempty"`
}

// Validate checks that the task's fields hold legal values and that its
// internal invariants are consistent.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if len(t.Title) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if t.Priority < 0 || t.Priority > 3 {
		return fmt.Errorf("priority must be between 0 and 3 (got %d)", t.Priority)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	// Enforce assignee invariant: assigned if and only if in progress
	if t.Status == StatusInProgress && t.Assignee == "" {
		return fmt.Errorf("in_progress tasks must have an assignee")
	}
	if t.Status != StatusInProgress && t.Assignee != "" {
		return fmt.Errorf("%s tasks cannot have an assignee", t.Status)
	}
	if t.IsSubtask && t.ParentID == "" {
		return fmt.Errorf("subtasks must have a parent_id")
	}
	if !t.IsSubtask && t.ParentID != "" {
		return fmt.Errorf("tasks with a parent_id must be marked is_subtask")
	}
	if tt := t.TimeTracking; tt != nil {
		if tt.TotalSeconds < 0 {
			return fmt.Errorf("total_seconds cannot be negative")
		}
		if tt.IsRunning && tt.StartedAt == nil {
			return fmt.Errorf("running timers must have started_at")
		}
		if tt.IsRunning && tt.IsPaused {
			return fmt.Errorf("timer cannot be both running and paused")
		}
	}
	return nil
}

// SetDefaults applies default values for fields omitted during load.
// Priority 0 is a valid value, so the creation default of 2 applies only
// to new tasks, never to loaded records.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.ParentID != "" {
		t.IsSubtask = true
	}
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.Labels = append([]string(nil), t.Labels...)
	c.BlockedBy = append([]string(nil), t.BlockedBy...)
	c.Subtasks = append([]string(nil), t.Subtasks...)
	c.Notes = append([]Note(nil), t.Notes...)
	if t.TimeTracking != nil {
		tt := *t.TimeTracking
		if t.TimeTracking.StartedAt != nil {
			at := *t.TimeTracking.StartedAt
			tt.StartedAt = &at
		}
		c.TimeTracking = &tt
	}
	if t.ArchivedAt != nil {
		at := *t.ArchivedAt
		c.ArchivedAt = &at
	}
	return &c
}

// AddNote appends a note, dropping the oldest entry when the list is full.
func (t *Task) AddNote(ts time.Time, sessionID, text string) {
	t.Notes = append(t.Notes, Note{Timestamp: ts, SessionID: sessionID, Text: text})
	if len(t.Notes) > MaxNotesPerTask {
		t.Notes = t.Notes[len(t.Notes)-MaxNotesPerTask:]
	}
}

// HasLabel reports whether the task carries the given label.
func (t *Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Status represents the current state of a task
type Status string

// Task status constants
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone, StatusBlocked:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the task lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusDone
}

// ValidStatuses returns all recognized status values.
func ValidStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusDone, StatusBlocked}
}

// Role identifies how a session participates in the workspace.
type Role string

// Session role constants
const (
	RoleMain   Role = "main"
	RoleWorker Role = "worker"
)

// IsValid checks if the role value is valid
func (r Role) IsValid() bool {
	return r == RoleMain || r == RoleWorker
}

// Session represents a registered interactive session.
type Session struct {
	SessionID     string    `json:"session_id"`
	Role          Role      `json:"role"`
	Context       string    `json:"context,omitempty"`
	Labels        []string  `json:"labels,omitempty"`
	Branch        string    `json:"branch,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	WorkingOn     string    `json:"working_on,omitempty"` // id of the claimed task, empty when idle
}

// Validate checks that the session's fields hold legal values.
func (s *Session) Validate() error {
	if s.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if !s.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", s.Role)
	}
	return nil
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Labels = append([]string(nil), s.Labels...)
	return &c
}

// HeartbeatAge returns how long ago the session last checked in.
func (s *Session) HeartbeatAge(now time.Time) time.Duration {
	return now.Sub(s.LastHeartbeat)
}

// Staleness thresholds for session heartbeats.
const (
	StaleWarnAfter   = 60 * time.Second
	StaleDangerAfter = 120 * time.Second
)

// Staleness classifies a heartbeat age for display purposes.
type Staleness string

// Staleness levels
const (
	StalenessOK     Staleness = "ok"
	StalenessWarn   Staleness = "warn"
	StalenessDanger Staleness = "danger"
)

// StalenessAt classifies the session's heartbeat age at the given instant.
func (s *Session) StalenessAt(now time.Time) Staleness {
	age := s.HeartbeatAge(now)
	switch {
	case age >= StaleDangerAfter:
		return StalenessDanger
	case age >= StaleWarnAfter:
		return StalenessWarn
	}
	return StalenessOK
}

// Template is a reusable blueprint for a parent task with subtasks.
type Template struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	DefaultPriority int               `json:"default_priority"`
	DefaultLabels   []string          `json:"default_labels,omitempty"`
	Subtasks        []TemplateSubtask `json:"subtasks,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// TemplateSubtask is one subtask entry within a template.
type TemplateSubtask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Validate checks that the template's fields hold legal values.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if t.DefaultPriority < 0 || t.DefaultPriority > 3 {
		return fmt.Errorf("default_priority must be between 0 and 3 (got %d)", t.DefaultPriority)
	}
	for i, st := range t.Subtasks {
		if st.Title == "" {
			return fmt.Errorf("subtask %d: title is required", i)
		}
	}
	return nil
}

// Task ids are numbered task-001, task-002, ... from the workspace counter.
// The zero padding keeps lexical and numeric order aligned for the first
// thousand tasks.

// FormatTaskID renders a counter value as a task id.
func FormatTaskID(n int) string {
	return fmt.Sprintf("task-%03d", n)
}

// FormatTemplateID renders a counter value as a template id.
func FormatTemplateID(n int) string {
	return fmt.Sprintf("template-%03d", n)
}

// TaskIDNum extracts the numeric suffix of a task id. The second return is
// false for ids that do not follow the task-NNN form.
func TaskIDNum(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "task-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
