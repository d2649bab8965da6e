package scheduler

import (
	"testing"
	"time"

	"claudia/internal/types"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func task(id string, mutate ...func(*types.Task)) *types.Task {
	n, _ := types.TaskIDNum(id)
	t := &types.Task{
		ID:        id,
		Title:     "Task " + id,
		Status:    types.StatusOpen,
		Priority:  2,
		CreatedAt: t0.Add(time.Duration(n) * time.Minute),
		UpdatedAt: t0.Add(time.Duration(n) * time.Minute),
	}
	for _, m := range mutate {
		m(t)
	}
	return t
}

func session(id string, labels ...string) *types.Session {
	return &types.Session{
		SessionID:     id,
		Role:          types.RoleWorker,
		Labels:        labels,
		StartedAt:     t0,
		LastHeartbeat: t0,
	}
}

func TestReady(t *testing.T) {
	blocker := task("task-001", func(t *types.Task) { t.Status = types.StatusDone })
	open := task("task-002")
	blocked := task("task-003", func(t *types.Task) { t.BlockedBy = []string{"task-002"} })
	unblocked := task("task-004", func(t *types.Task) { t.BlockedBy = []string{"task-001"} })
	orphaned := task("task-005", func(t *types.Task) { t.BlockedBy = []string{"task-099"} })
	claimed := task("task-006", func(t *types.Task) {
		t.Status = types.StatusInProgress
		t.Assignee = "s1"
	})
	parked := task("task-007", func(t *types.Task) { t.Status = types.StatusBlocked })
	gated := task("task-008", func(t *types.Task) { t.BlockedBy = []string{"task-002", "task-098"} })

	all := []*types.Task{blocker, open, blocked, unblocked, orphaned, claimed, parked, gated}
	byID := map[string]*types.Task{}
	for _, tk := range all {
		byID[tk.ID] = tk
	}

	tests := []struct {
		name        string
		task        *types.Task
		wantReady   bool
		wantMissing int
	}{
		{"done task not ready", blocker, false, 0},
		{"open unblocked ready", open, true, 0},
		{"open blocker not done", blocked, false, 0},
		{"blocker done", unblocked, true, 0},
		{"orphan blocker satisfied", orphaned, true, 1},
		{"claimed not ready", claimed, false, 0},
		{"manually blocked not ready", parked, false, 0},
		{"orphan after live blocker still reported", gated, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready, missing := Ready(tt.task, byID)
			if ready != tt.wantReady {
				t.Errorf("Ready(%s) = %v, want %v", tt.task.ID, ready, tt.wantReady)
			}
			if len(missing) != tt.wantMissing {
				t.Errorf("missing = %v, want %d entries", missing, tt.wantMissing)
			}
		})
	}
}

func TestNextPrefersLabelAffinity(t *testing.T) {
	// A lower-priority task matching the session's labels wins over a
	// higher-priority task that matches nothing.
	urgent := task("task-001", func(t *types.Task) { t.Priority = 0 })
	matching := task("task-002", func(t *types.Task) {
		t.Priority = 2
		t.Labels = []string{"backend"}
	})

	d := Next([]*types.Task{urgent, matching}, session("s1", "backend"), nil, 1)
	if d.Task == nil || d.Task.ID != "task-002" {
		t.Fatalf("Next picked %v, want task-002", d.Task)
	}
}

func TestNextPreferredLabelsExtendSessionLabels(t *testing.T) {
	a := task("task-001", func(t *types.Task) { t.Labels = []string{"frontend"} })
	b := task("task-002", func(t *types.Task) { t.Labels = []string{"backend"} })

	// Session has no labels; the per-call preference decides.
	d := Next([]*types.Task{a, b}, session("s1"), []string{"backend"}, 1)
	if d.Task == nil || d.Task.ID != "task-002" {
		t.Fatalf("Next picked %v, want task-002", d.Task)
	}
}

func TestNextPriorityBreaksAffinityTies(t *testing.T) {
	low := task("task-001", func(t *types.Task) { t.Priority = 3 })
	high := task("task-002", func(t *types.Task) { t.Priority = 1 })

	d := Next([]*types.Task{low, high}, session("s1"), nil, 1)
	if d.Task == nil || d.Task.ID != "task-002" {
		t.Fatalf("Next picked %v, want task-002", d.Task)
	}
}

func TestNextOldestFirstOnEqualPriority(t *testing.T) {
	older := task("task-001")
	newer := task("task-002")

	d := Next([]*types.Task{newer, older}, session("s1"), nil, 1)
	if d.Task == nil || d.Task.ID != "task-001" {
		t.Fatalf("Next picked %v, want task-001", d.Task)
	}
}

func TestNextIDBreaksCreationTies(t *testing.T) {
	a := task("task-002")
	b := task("task-001")
	b.CreatedAt = a.CreatedAt

	d := Next([]*types.Task{a, b}, session("s1"), nil, 1)
	if d.Task == nil || d.Task.ID != "task-001" {
		t.Fatalf("Next picked %v, want task-001", d.Task)
	}
}

func TestNextDeterministic(t *testing.T) {
	tasks := []*types.Task{
		task("task-003", func(t *types.Task) { t.Labels = []string{"infra"} }),
		task("task-001", func(t *types.Task) { t.Priority = 1 }),
		task("task-002", func(t *types.Task) { t.Priority = 1 }),
	}
	s := session("s1", "infra")

	first := Next(tasks, s, nil, 1)
	for i := 0; i < 10; i++ {
		again := Next(tasks, s, nil, 1)
		if again.Task == nil || again.Task.ID != first.Task.ID {
			t.Fatalf("selection changed between runs: %v vs %v", again.Task, first.Task)
		}
	}
}

func TestNextRespectsMaxConcurrent(t *testing.T) {
	held := task("task-001", func(t *types.Task) {
		t.Status = types.StatusInProgress
		t.Assignee = "s1"
	})
	available := task("task-002")

	d := Next([]*types.Task{held, available}, session("s1"), nil, 1)
	if d.Task != nil {
		t.Fatalf("Next = %v, want nil while session holds a claim", d.Task)
	}

	// Another session is unaffected.
	d = Next([]*types.Task{held, available}, session("s2"), nil, 1)
	if d.Task == nil || d.Task.ID != "task-002" {
		t.Fatalf("Next for second session = %v, want task-002", d.Task)
	}

	// A larger budget frees the first session.
	d = Next([]*types.Task{held, available}, session("s1"), nil, 2)
	if d.Task == nil || d.Task.ID != "task-002" {
		t.Fatalf("Next with budget 2 = %v, want task-002", d.Task)
	}
}

func TestNextReportsOrphans(t *testing.T) {
	orphaned := task("task-001", func(t *types.Task) { t.BlockedBy = []string{"task-404"} })

	d := Next([]*types.Task{orphaned}, session("s1"), nil, 1)
	if d.Task == nil || d.Task.ID != "task-001" {
		t.Fatalf("Next = %v, want task-001 (orphan blocker counts as satisfied)", d.Task)
	}
	if len(d.Orphans) != 1 || d.Orphans[0].BlockerID != "task-404" {
		t.Fatalf("Orphans = %v, want one ref to task-404", d.Orphans)
	}
}

func TestNextEmptyBacklog(t *testing.T) {
	d := Next(nil, session("s1"), nil, 1)
	if d.Task != nil {
		t.Fatalf("Next on empty backlog = %v, want nil", d.Task)
	}
}

func TestReadyTasks(t *testing.T) {
	tasks := []*types.Task{
		task("task-001"),
		task("task-002", func(t *types.Task) { t.Status = types.StatusDone }),
		task("task-003", func(t *types.Task) { t.BlockedBy = []string{"task-001"} }),
	}
	ready := ReadyTasks(tasks)
	if len(ready) != 1 || ready[0].ID != "task-001" {
		t.Fatalf("ReadyTasks = %v, want [task-001]", ready)
	}
}
