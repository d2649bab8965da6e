package state

import (
	"testing"
	"time"

	"claudia/internal/errs"
	"claudia/internal/types"
)

// fakeClock drives State timestamps deterministically in tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testState(t *testing.T) (*State, *fakeClock) {
	t.Helper()
	s := New()
	clock := newFakeClock()
	s.SetClock(clock.Now)
	return s, clock
}

func mustCreate(t *testing.T, s *State, args CreateTaskArgs) *types.Task {
	t.Helper()
	task, err := s.CreateTask(args)
	if err != nil {
		t.Fatalf("CreateTask(%q) failed: %v", args.Title, err)
	}
	return task
}

func mustRegister(t *testing.T, s *State, id string, labels ...string) *types.Session {
	t.Helper()
	sess, err := s.RegisterSession(RegisterSessionArgs{SessionID: id, Role: types.RoleWorker, Labels: labels})
	if err != nil {
		t.Fatalf("RegisterSession(%s) failed: %v", id, err)
	}
	return sess
}

func TestValidateCatchesDuplicateIDs(t *testing.T) {
	s, _ := testState(t)
	mustCreate(t, s, CreateTaskArgs{Title: "one"})
	dup := s.Tasks[0].Clone()
	s.Tasks = append(s.Tasks, dup)
	s.Reindex()

	if err := s.Validate(); err == nil {
		t.Error("Validate accepted duplicate task ids")
	}
}

func TestValidateCatchesCounterBehindIDs(t *testing.T) {
	s, _ := testState(t)
	mustCreate(t, s, CreateTaskArgs{Title: "one"})
	s.NextID = 1

	if err := s.Validate(); err == nil {
		t.Error("Validate accepted next_id at or below an existing id")
	}
}

func TestValidateCatchesBrokenParentLink(t *testing.T) {
	s, _ := testState(t)
	parent := mustCreate(t, s, CreateTaskArgs{Title: "parent"})
	sub, err := s.CreateSubtask(CreateSubtaskArgs{ParentID: parent.ID, Title: "child"})
	if err != nil {
		t.Fatal(err)
	}

	parent.Subtasks = nil
	if err := s.Validate(); err == nil {
		t.Error("Validate accepted parent that dropped its subtask link")
	}

	parent.Subtasks = []string{sub.ID}
	sub.ParentID = ""
	sub.IsSubtask = false
	if err := s.Validate(); err == nil {
		t.Error("Validate accepted subtask that dropped its parent link")
	}
}

func TestValidateCatchesBlockedByCycle(t *testing.T) {
	s, _ := testState(t)
	a := mustCreate(t, s, CreateTaskArgs{Title: "a"})
	b := mustCreate(t, s, CreateTaskArgs{Title: "b"})
	a.BlockedBy = []string{b.ID}
	b.BlockedBy = []string{a.ID}

	err := s.Validate()
	if err == nil {
		t.Fatal("Validate accepted a blocked_by cycle")
	}
	if errs.KindOf(err) != errs.KindConflict {
		t.Errorf("cycle error kind = %v, want conflict", errs.KindOf(err))
	}
}

func TestValidateToleratesOrphanReferences(t *testing.T) {
	s, _ := testState(t)
	a := mustCreate(t, s, CreateTaskArgs{Title: "a"})
	a.BlockedBy = []string{"task-099"}
	a.Subtasks = []string{"task-098"}

	if err := s.Validate(); err != nil {
		t.Errorf("Validate rejected orphan references: %v", err)
	}
}

func TestRepairSessionsClearsDanglingClaims(t *testing.T) {
	s, _ := testState(t)
	mustRegister(t, s, "s1")
	mustCreate(t, s, CreateTaskArgs{Title: "work"})
	task, err := s.RequestTask("s1", nil, 1)
	if err != nil || task == nil {
		t.Fatalf("RequestTask = %v, %v", task, err)
	}

	// Another writer completed the task out from under the registry.
	task.Status = types.StatusDone
	task.Assignee = ""
	s.RepairSessions()

	if got := s.Sessions["s1"].WorkingOn; got != "" {
		t.Errorf("WorkingOn = %q after repair, want empty", got)
	}
}

func TestDrainEventsClearsQueue(t *testing.T) {
	s, _ := testState(t)
	mustCreate(t, s, CreateTaskArgs{Title: "one"})
	mustCreate(t, s, CreateTaskArgs{Title: "two"})

	events := s.DrainEvents()
	if len(events) != 2 {
		t.Fatalf("DrainEvents returned %d events, want 2", len(events))
	}
	if again := s.DrainEvents(); len(again) != 0 {
		t.Errorf("second DrainEvents returned %d events, want 0", len(again))
	}
}

func TestBumpNextID(t *testing.T) {
	s, _ := testState(t)
	s.bumpNextID("task-041")
	if s.NextID != 42 {
		t.Errorf("NextID = %d, want 42", s.NextID)
	}
	s.bumpNextID("task-007")
	if s.NextID != 42 {
		t.Errorf("NextID = %d after lower id, want 42", s.NextID)
	}
	s.bumpNextID("not-a-task-id")
	if s.NextID != 42 {
		t.Errorf("NextID = %d after junk id, want 42", s.NextID)
	}
}
