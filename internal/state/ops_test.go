package state

import (
	"testing"
	"time"

	"claudia/internal/errs"
	"claudia/internal/types"
)

func intp(v int) *int { return &v }

func strp(v string) *string { return &v }

func statusp(v types.Status) *types.Status { return &v }

func TestCreateTask(t *testing.T) {
	s, clock := testState(t)
	task := mustCreate(t, s, CreateTaskArgs{Title: "Build parser", SessionID: "s1"})

	if task.ID != "task-001" {
		t.Errorf("ID = %q, want task-001", task.ID)
	}
	if task.Status != types.StatusOpen {
		t.Errorf("Status = %q, want open", task.Status)
	}
	if task.Priority != types.DefaultPriority {
		t.Errorf("Priority = %d, want default %d", task.Priority, types.DefaultPriority)
	}
	if !task.CreatedAt.Equal(clock.Now()) {
		t.Errorf("CreatedAt = %v, want clock time", task.CreatedAt)
	}
	if len(task.Notes) != 1 || task.Notes[0].Text != "Created task" {
		t.Errorf("Notes = %v, want the creation note", task.Notes)
	}
	if s.NextID != 2 {
		t.Errorf("NextID = %d, want 2", s.NextID)
	}

	events := s.DrainEvents()
	if len(events) != 1 || events[0].Kind != types.EventTaskCreated {
		t.Fatalf("events = %v, want one task_created", events)
	}
	if events[0].TaskID != "task-001" || events[0].Title != "Build parser" {
		t.Errorf("event payload = %+v", events[0])
	}

	second := mustCreate(t, s, CreateTaskArgs{Title: "Second"})
	if second.ID != "task-002" {
		t.Errorf("second ID = %q, want task-002", second.ID)
	}
}

func TestCreateTaskRejectsBadInput(t *testing.T) {
	s, _ := testState(t)

	if _, err := s.CreateTask(CreateTaskArgs{Title: "  "}); !errs.Is(err, errs.KindInvalidArgument) {
		t.Errorf("blank title error = %v, want invalid_argument", err)
	}
	if _, err := s.CreateTask(CreateTaskArgs{Title: "x", Priority: intp(9)}); !errs.Is(err, errs.KindInvalidArgument) {
		t.Errorf("bad priority error = %v, want invalid_argument", err)
	}
	if _, err := s.CreateTask(CreateTaskArgs{Title: "x", BlockedBy: []string{"task-404"}}); !errs.Is(err, errs.KindInvalidArgument) {
		t.Errorf("unknown blocker error = %v, want invalid_argument", err)
	}
}

func TestCreateSubtaskInherits(t *testing.T) {
	s, _ := testState(t)
	parent := mustCreate(t, s, CreateTaskArgs{
		Title:    "Parent",
		Priority: intp(1),
		Labels:   []string{"backend"},
		Branch:   "feat-x",
	})
	s.DrainEvents()

	sub, err := s.CreateSubtask(CreateSubtaskArgs{ParentID: parent.ID, Title: "Child", SessionID: "s1"})
	if err != nil {
		t.Fatalf("CreateSubtask failed: %v", err)
	}
	if sub.Priority != 1 || sub.Branch != "feat-x" || !sub.HasLabel("backend") {
		t.Errorf("subtask did not inherit parent fields: %+v", sub)
	}
	if !sub.IsSubtask || sub.ParentID != parent.ID {
		t.Errorf("subtask linkage wrong: %+v", sub)
	}
	if len(parent.Subtasks) != 1 || parent.Subtasks[0] != sub.ID {
		t.Errorf("parent.Subtasks = %v, want [%s]", parent.Subtasks, sub.ID)
	}

	events := s.DrainEvents()
	if len(events) != 1 || events[0].Kind != types.EventSubtaskCreated || events[0].ParentID != parent.ID {
		t.Errorf("events = %+v, want one subtask_created", events)
	}

	if _, err := s.CreateSubtask(CreateSubtaskArgs{ParentID: "task-404", Title: "x"}); !errs.Is(err, errs.KindNotFound) {
		t.Errorf("unknown parent error = %v, want not_found", err)
	}
}

func TestRequestTaskClaims(t *testing.T) {
	s, _ := testState(t)
	mustRegister(t, s, "s1", "backend")
	mustCreate(t, s, CreateTaskArgs{Title: "General", Priority: intp(0)})
	labeled := mustCreate(t, s, CreateTaskArgs{Title: "Backend work", Labels: []string{"backend"}})
	s.DrainEvents()

	task, err := s.RequestTask("s1", nil, 1)
	if err != nil {
		t.Fatalf("RequestTask failed: %v", err)
	}
	if task == nil || task.ID != labeled.ID {
		t.Fatalf("claimed %v, want %s (label affinity wins)", task, labeled.ID)
	}
	if task.Status != types.StatusInProgress || task.Assignee != "s1" {
		t.Errorf("claimed task state = %s/%s", task.Status, task.Assignee)
	}
	if got := s.Sessions["s1"].WorkingOn; got != task.ID {
		t.Errorf("WorkingOn = %q, want %s", got, task.ID)
	}

	events := s.DrainEvents()
	if len(events) != 1 || events[0].Kind != types.EventTaskClaimed {
		t.Fatalf("events = %+v, want one task_claimed", events)
	}

	// Holding a claim blocks a second one at the default budget.
	again, err := s.RequestTask("s1", nil, 1)
	if err != nil {
		t.Fatalf("second RequestTask failed: %v", err)
	}
	if again != nil {
		t.Errorf("second claim = %v, want nil", again)
	}
}

func TestRequestTaskUnknownSession(t *testing.T) {
	s, _ := testState(t)
	mustCreate(t, s, CreateTaskArgs{Title: "work"})
	if _, err := s.RequestTask("ghost", nil, 1); !errs.Is(err, errs.KindNotFound) {
		t.Errorf("RequestTask(ghost) = %v, want not_found", err)
	}
}

func TestRequestTaskEmptyBacklog(t *testing.T) {
	s, _ := testState(t)
	mustRegister(t, s, "s1")
	task, err := s.RequestTask("s1", nil, 1)
	if err != nil {
		t.Fatalf("RequestTask failed: %v", err)
	}
	if task != nil {
		t.Errorf("RequestTask on empty backlog = %v, want nil", task)
	}
	if events := s.DrainEvents(); len(events) != 1 {
		// Registration only; a nil claim appends nothing.
		t.Errorf("events = %+v, want only the registration record", events)
	}
}

func TestCompleteTask(t *testing.T) {
	s, clock := testState(t)
	mustRegister(t, s, "s1")
	mustCreate(t, s, CreateTaskArgs{Title: "work"})
	claimed, _ := s.RequestTask("s1", nil, 1)
	s.DrainEvents()
	clock.Advance(time.Minute)

	done, err := s.CompleteTask(CompleteTaskArgs{
		TaskID: claimed.ID, SessionID: "s1", Note: "all green", Branch: "feat-y",
	})
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if done.Status != types.StatusDone || done.Assignee != "" {
		t.Errorf("completed state = %s/%q", done.Status, done.Assignee)
	}
	if done.Branch != "feat-y" {
		t.Errorf("Branch = %q, want feat-y", done.Branch)
	}
	last := done.Notes[len(done.Notes)-1]
	if last.Text != "Completed: all green" {
		t.Errorf("last note = %q", last.Text)
	}
	if got := s.Sessions["s1"].WorkingOn; got != "" {
		t.Errorf("WorkingOn = %q after complete, want empty", got)
	}

	events := s.DrainEvents()
	if len(events) != 1 || events[0].Kind != types.EventTaskCompleted {
		t.Fatalf("events = %+v, want one task_completed", events)
	}
	if events[0].Undo == nil || events[0].Undo.Task == nil {
		t.Fatal("completion event carries no pre-image")
	}
	if pre := events[0].Undo.Task; pre.Status != types.StatusInProgress || pre.Assignee != "s1" {
		t.Errorf("pre-image = %s/%s, want in_progress/s1", pre.Status, pre.Assignee)
	}
}

func TestCompleteTaskConflicts(t *testing.T) {
	s, _ := testState(t)
	mustRegister(t, s, "s1")
	mustRegister(t, s, "s2")
	mustCreate(t, s, CreateTaskArgs{Title: "work"})
	claimed, _ := s.RequestTask("s1", nil, 1)

	// Another session cannot complete a held task without force.
	_, err := s.CompleteTask(CompleteTaskArgs{TaskID: claimed.ID, SessionID: "s2"})
	if !errs.Is(err, errs.KindConflict) {
		t.Errorf("foreign complete = %v, want conflict", err)
	}

	// Force overrides ownership.
	if _, err := s.CompleteTask(CompleteTaskArgs{TaskID: claimed.ID, SessionID: "s2", Force: true}); err != nil {
		t.Errorf("forced complete failed: %v", err)
	}

	// Completing done work is a conflict, not a silent no-op.
	_, err = s.CompleteTask(CompleteTaskArgs{TaskID: claimed.ID, SessionID: "s1"})
	if !errs.Is(err, errs.KindConflict) {
		t.Errorf("double complete = %v, want conflict", err)
	}

	if _, err := s.CompleteTask(CompleteTaskArgs{TaskID: "task-404"}); !errs.Is(err, errs.KindNotFound) {
		t.Errorf("missing task = %v, want not_found", err)
	}
}

func TestCompleteTaskBlocksOnOpenSubtasks(t *testing.T) {
	s, _ := testState(t)
	parent := mustCreate(t, s, CreateTaskArgs{Title: "parent"})
	sub, _ := s.CreateSubtask(CreateSubtaskArgs{ParentID: parent.ID, Title: "child"})

	_, err := s.CompleteTask(CompleteTaskArgs{TaskID: parent.ID, SessionID: "s1"})
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("complete with open subtasks = %v, want conflict", err)
	}

	if _, err := s.CompleteTask(CompleteTaskArgs{TaskID: sub.ID, SessionID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CompleteTask(CompleteTaskArgs{TaskID: parent.ID, SessionID: "s1"}); err != nil {
		t.Errorf("complete after subtasks done = %v, want nil", err)
	}
}

func TestCompleteTaskAutoCompletesParent(t *testing.T) {
	s, _ := testState(t)
	parent := mustCreate(t, s, CreateTaskArgs{Title: "parent"})
	a, _ := s.CreateSubtask(CreateSubtaskArgs{ParentID: parent.ID, Title: "a"})
	b, _ := s.CreateSubtask(CreateSubtaskArgs{ParentID: parent.ID, Title: "b"})
	s.DrainEvents()

	if _, err := s.CompleteTask(CompleteTaskArgs{TaskID: a.ID, SessionID: "s1", AutoCompleteParents: true}); err != nil {
		t.Fatal(err)
	}
	if parent.Status == types.StatusDone {
		t.Fatal("parent completed while a subtask is still open")
	}
	if _, err := s.CompleteTask(CompleteTaskArgs{TaskID: b.ID, SessionID: "s1", AutoCompleteParents: true}); err != nil {
		t.Fatal(err)
	}
	if parent.Status != types.StatusDone {
		t.Fatal("parent not auto-completed after last subtask")
	}

	events := s.DrainEvents()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (two subtasks + parent)", len(events))
	}
	parentEvent := events[2]
	if parentEvent.TaskID != parent.ID || parentEvent.Reason != "auto" {
		t.Errorf("parent event = %+v, want auto completion of %s", parentEvent, parent.ID)
	}
}

func TestCompleteTaskNoAutoCompleteByDefault(t *testing.T) {
	s, _ := testState(t)
	parent := mustCreate(t, s, CreateTaskArgs{Title: "parent"})
	a, _ := s.CreateSubtask(CreateSubtaskArgs{ParentID: parent.ID, Title: "a"})

	if _, err := s.CompleteTask(CompleteTaskArgs{TaskID: a.ID, SessionID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if parent.Status == types.StatusDone {
		t.Error("parent auto-completed without the toggle")
	}
}

func TestReopenTask(t *testing.T) {
	s, _ := testState(t)
	task := mustCreate(t, s, CreateTaskArgs{Title: "work"})
	if _, err := s.ReopenTask(ReopenTaskArgs{TaskID: task.ID}); !errs.Is(err, errs.KindConflict) {
		t.Errorf("reopen open task = %v, want conflict", err)
	}

	if _, err := s.CompleteTask(CompleteTaskArgs{TaskID: task.ID, SessionID: "s1", Branch: "feat-rework"}); err != nil {
		t.Fatal(err)
	}
	s.DrainEvents()

	reopened, err := s.ReopenTask(ReopenTaskArgs{TaskID: task.ID, SessionID: "s1", Note: "needs rework"})
	if err != nil {
		t.Fatalf("ReopenTask failed: %v", err)
	}
	if reopened.Status != types.StatusOpen {
		t.Errorf("Status = %q, want open", reopened.Status)
	}
	if reopened.Assignee != "" || reopened.Branch != "" {
		t.Errorf("assignee = %q, branch = %q, want both cleared", reopened.Assignee, reopened.Branch)
	}
	last := reopened.Notes[len(reopened.Notes)-1]
	if last.Text != "Reopened: needs rework" {
		t.Errorf("last note = %q", last.Text)
	}

	events := s.DrainEvents()
	if len(events) != 1 || events[0].Kind != types.EventTaskReopened || events[0].Undo == nil {
		t.Fatalf("events = %+v, want one task_reopened with pre-image", events)
	}
	if events[0].Undo.Task.Branch != "feat-rework" {
		t.Errorf("pre-image branch = %q, want feat-rework", events[0].Undo.Task.Branch)
	}
}

func TestEditTask(t *testing.T) {
	s, _ := testState(t)
	task := mustCreate(t, s, CreateTaskArgs{Title: "Old title"})
	blocker := mustCreate(t, s, CreateTaskArgs{Title: "Blocker"})
	s.DrainEvents()

	edited, err := s.EditTask(EditTaskArgs{
		TaskID:    task.ID,
		SessionID: "s1",
		Title:     strp("New title"),
		Priority:  intp(0),
		Labels:    &[]string{"urgent"},
		BlockedBy: &[]string{blocker.ID},
	})
	if err != nil {
		t.Fatalf("EditTask failed: %v", err)
	}
	if edited.Title != "New title" || edited.Priority != 0 || !edited.HasLabel("urgent") {
		t.Errorf("edit not applied: %+v", edited)
	}
	if len(edited.BlockedBy) != 1 || edited.BlockedBy[0] != blocker.ID {
		t.Errorf("BlockedBy = %v", edited.BlockedBy)
	}

	events := s.DrainEvents()
	if len(events) != 1 || events[0].Kind != types.EventTaskEdited {
		t.Fatalf("events = %+v, want one task_edited", events)
	}
	if len(events[0].Changes) != 4 {
		t.Errorf("Changes = %v, want 4 entries", events[0].Changes)
	}
	if events[0].Undo == nil || events[0].Undo.Task.Title != "Old title" {
		t.Error("edit event pre-image missing or wrong")
	}
}

func TestEditTaskValidation(t *testing.T) {
	s, _ := testState(t)
	task := mustCreate(t, s, CreateTaskArgs{Title: "work"})
	other := mustCreate(t, s, CreateTaskArgs{Title: "other", BlockedBy: []string{task.ID}})

	tests := []struct {
		name string
		args EditTaskArgs
		kind errs.Kind
	}{
		{"missing task", EditTaskArgs{TaskID: "task-404", Title: strp("x")}, errs.KindNotFound},
		{"nothing to edit", EditTaskArgs{TaskID: task.ID}, errs.KindInvalidArgument},
		{"empty title", EditTaskArgs{TaskID: task.ID, Title: strp(" ")}, errs.KindInvalidArgument},
		{"bad priority", EditTaskArgs{TaskID: task.ID, Priority: intp(5)}, errs.KindInvalidArgument},
		{"status to done", EditTaskArgs{TaskID: task.ID, Status: statusp(types.StatusDone)}, errs.KindInvalidArgument},
		{"self block", EditTaskArgs{TaskID: task.ID, BlockedBy: &[]string{task.ID}}, errs.KindConflict},
		{"unknown blocker", EditTaskArgs{TaskID: task.ID, BlockedBy: &[]string{"task-404"}}, errs.KindInvalidArgument},
		{"cycle", EditTaskArgs{TaskID: task.ID, BlockedBy: &[]string{other.ID}}, errs.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.EditTask(tt.args)
			if !errs.Is(err, tt.kind) {
				t.Errorf("EditTask = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestEditTaskStatusTransitions(t *testing.T) {
	s, _ := testState(t)
	mustRegister(t, s, "s1")
	task := mustCreate(t, s, CreateTaskArgs{Title: "work"})

	// open -> blocked -> open is the manual path.
	if _, err := s.EditTask(EditTaskArgs{TaskID: task.ID, Status: statusp(types.StatusBlocked)}); err != nil {
		t.Fatalf("block failed: %v", err)
	}
	if task.Status != types.StatusBlocked {
		t.Fatalf("Status = %q, want blocked", task.Status)
	}
	if _, err := s.EditTask(EditTaskArgs{TaskID: task.ID, Status: statusp(types.StatusOpen)}); err != nil {
		t.Fatalf("unblock failed: %v", err)
	}

	// A claimed task's status is off limits to edit.
	claimed, _ := s.RequestTask("s1", nil, 1)
	_, err := s.EditTask(EditTaskArgs{TaskID: claimed.ID, Status: statusp(types.StatusBlocked)})
	if !errs.Is(err, errs.KindConflict) {
		t.Errorf("edit status of claimed task = %v, want conflict", err)
	}
}

func TestDeleteTask(t *testing.T) {
	s, _ := testState(t)
	task := mustCreate(t, s, CreateTaskArgs{Title: "work"})
	s.DrainEvents()

	deleted, err := s.DeleteTask(task.ID, "s1", false)
	if err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != task.ID {
		t.Errorf("deleted = %v", deleted)
	}
	if _, ok := s.Task(task.ID); ok {
		t.Error("task still live after delete")
	}

	events := s.DrainEvents()
	if len(events) != 1 || events[0].Kind != types.EventTaskDeleted {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Undo == nil || events[0].Undo.Task == nil {
		t.Error("delete event carries no pre-image")
	}

	if _, err := s.DeleteTask("task-404", "s1", false); !errs.Is(err, errs.KindNotFound) {
		t.Errorf("delete missing = %v, want not_found", err)
	}
}

func TestDeleteTaskCascade(t *testing.T) {
	s, _ := testState(t)
	parent := mustCreate(t, s, CreateTaskArgs{Title: "parent"})
	a, _ := s.CreateSubtask(CreateSubtaskArgs{ParentID: parent.ID, Title: "a"})
	b, _ := s.CreateSubtask(CreateSubtaskArgs{ParentID: parent.ID, Title: "b"})
	s.DrainEvents()

	if _, err := s.DeleteTask(parent.ID, "s1", false); !errs.Is(err, errs.KindConflict) {
		t.Fatalf("delete with subtasks = %v, want conflict", err)
	}

	deleted, err := s.DeleteTask(parent.ID, "s1", true)
	if err != nil {
		t.Fatalf("forced delete failed: %v", err)
	}
	if len(deleted) != 3 {
		t.Errorf("deleted = %v, want parent and both children", deleted)
	}
	for _, id := range []string{parent.ID, a.ID, b.ID} {
		if _, ok := s.Task(id); ok {
			t.Errorf("%s still live after cascade", id)
		}
	}

	events := s.DrainEvents()
	if len(events) != 1 {
		t.Fatalf("cascade delete logged %d events, want 1", len(events))
	}
	if got := len(events[0].Undo.Cascade); got != 2 {
		t.Errorf("cascade pre-images = %d, want 2", got)
	}
}

func TestDeleteSubtaskDetachesFromParent(t *testing.T) {
	s, _ := testState(t)
	parent := mustCreate(t, s, CreateTaskArgs{Title: "parent"})
	sub, _ := s.CreateSubtask(CreateSubtaskArgs{ParentID: parent.ID, Title: "child"})

	if _, err := s.DeleteTask(sub.ID, "s1", false); err != nil {
		t.Fatalf("delete subtask failed: %v", err)
	}
	if contains(parent.Subtasks, sub.ID) {
		t.Error("parent still lists the deleted subtask")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate after subtask delete: %v", err)
	}
}

func TestDeleteClaimedTaskClearsWorkingOn(t *testing.T) {
	s, _ := testState(t)
	mustRegister(t, s, "s1")
	mustCreate(t, s, CreateTaskArgs{Title: "work"})
	task, _ := s.RequestTask("s1", nil, 1)

	if _, err := s.DeleteTask(task.ID, "s1", false); err != nil {
		t.Fatal(err)
	}
	if got := s.Sessions["s1"].WorkingOn; got != "" {
		t.Errorf("WorkingOn = %q, want empty", got)
	}
}

func TestAddNote(t *testing.T) {
	s, _ := testState(t)
	task := mustCreate(t, s, CreateTaskArgs{Title: "work"})
	s.DrainEvents()

	noted, err := s.AddNote(AddNoteArgs{TaskID: task.ID, SessionID: "s1", Note: "checkpoint"})
	if err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}
	last := noted.Notes[len(noted.Notes)-1]
	if last.Text != "checkpoint" || last.SessionID != "s1" {
		t.Errorf("last note = %+v", last)
	}

	events := s.DrainEvents()
	if len(events) != 1 || events[0].Kind != types.EventNoteAdded {
		t.Fatalf("events = %+v, want one note_added", events)
	}

	if _, err := s.AddNote(AddNoteArgs{TaskID: task.ID, Note: "  "}); !errs.Is(err, errs.KindInvalidArgument) {
		t.Errorf("blank note = %v, want invalid_argument", err)
	}
	if _, err := s.AddNote(AddNoteArgs{TaskID: "task-404", Note: "x"}); !errs.Is(err, errs.KindNotFound) {
		t.Errorf("missing task = %v, want not_found", err)
	}
}

func TestBulkComplete(t *testing.T) {
	s, _ := testState(t)
	a := mustCreate(t, s, CreateTaskArgs{Title: "a"})
	b := mustCreate(t, s, CreateTaskArgs{Title: "b"})
	if _, err := s.CompleteTask(CompleteTaskArgs{TaskID: b.ID, SessionID: "s1"}); err != nil {
		t.Fatal(err)
	}
	s.DrainEvents()

	res := s.BulkComplete([]string{a.ID, b.ID, "task-404"}, CompleteTaskArgs{SessionID: "s1", Note: "sweep"})
	if len(res.Succeeded) != 1 || res.Succeeded[0] != a.ID {
		t.Errorf("Succeeded = %v, want [%s]", res.Succeeded, a.ID)
	}
	if len(res.Failed) != 2 {
		t.Errorf("Failed = %v, want already-done and missing entries", res.Failed)
	}

	events := s.DrainEvents()
	if len(events) != 1 || !events[0].Bulk {
		t.Fatalf("events = %+v, want one bulk-tagged completion", events)
	}
}

func TestBulkReopen(t *testing.T) {
	s, _ := testState(t)
	a := mustCreate(t, s, CreateTaskArgs{Title: "a"})
	b := mustCreate(t, s, CreateTaskArgs{Title: "b"})
	for _, id := range []string{a.ID, b.ID} {
		if _, err := s.CompleteTask(CompleteTaskArgs{TaskID: id, SessionID: "s1"}); err != nil {
			t.Fatal(err)
		}
	}
	s.DrainEvents()

	res := s.BulkReopen([]string{a.ID, b.ID}, ReopenTaskArgs{SessionID: "s1"})
	if len(res.Succeeded) != 2 || len(res.Failed) != 0 {
		t.Errorf("result = %+v, want both reopened", res)
	}
	if a.Status != types.StatusOpen || b.Status != types.StatusOpen {
		t.Error("tasks not reopened")
	}
	events := s.DrainEvents()
	if len(events) != 2 || !events[0].Bulk || !events[1].Bulk {
		t.Errorf("events = %+v, want two bulk-tagged reopens", events)
	}
}
