package coordinator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claudia/internal/config"
	"claudia/internal/state"
	"claudia/internal/store"
	"claudia/internal/types"
)

type fixture struct {
	srv   *Server
	store *store.Store
	url   string
}

func testSettings() config.Settings {
	return config.Settings{
		MaxConcurrent:    1,
		LockTimeout:      2 * time.Second,
		CleanupThreshold: 180 * time.Second,
		CleanupInterval:  30 * time.Second,
		FlushInterval:    time.Second,
	}
}

// newFixture serves the coordinator routes from an httptest server without
// the run loop, so handler behavior is observable one request at a time.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testSettings()
	sto, err := store.Open(t.TempDir(), cfg.LockTimeout)
	require.NoError(t, err)
	srv := New(sto, cfg, "main-1")
	srv.st, err = sto.Load()
	require.NoError(t, err)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return &fixture{srv: srv, store: sto, url: ts.URL}
}

func (f *fixture) post(t *testing.T, path string, body, out any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.url+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.url + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *fixture) register(t *testing.T, id string) {
	t.Helper()
	code := f.post(t, "/session/register", map[string]any{"session_id": id}, nil)
	require.Equal(t, http.StatusOK, code)
}

func (f *fixture) create(t *testing.T, body map[string]any) *types.Task {
	t.Helper()
	var task types.Task
	code := f.post(t, "/task/create", body, &task)
	require.Equal(t, http.StatusOK, code)
	return &task
}

type errBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type taskEnvelope struct {
	Task *types.Task `json:"task"`
}

type taskList struct {
	Tasks []*types.Task `json:"tasks"`
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.register(t, "w1")

	created := f.create(t, map[string]any{
		"title":    "ship the gadget",
		"priority": 1,
		"labels":   []string{"backend"},
	})
	assert.Equal(t, "task-001", created.ID)
	assert.Equal(t, types.StatusOpen, created.Status)

	var claimed taskEnvelope
	code := f.post(t, "/task/request", map[string]any{
		"session_id":       "w1",
		"preferred_labels": []string{"backend"},
	}, &claimed)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, claimed.Task)
	assert.Equal(t, created.ID, claimed.Task.ID)
	assert.Equal(t, types.StatusInProgress, claimed.Task.Status)
	assert.Equal(t, "w1", claimed.Task.Assignee)

	var completed types.Task
	code = f.post(t, "/task/complete", map[string]any{
		"task_id":    created.ID,
		"session_id": "w1",
		"note":       "done and pushed",
		"branch":     "feat-gadget",
	}, &completed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, types.StatusDone, completed.Status)
	assert.Equal(t, "feat-gadget", completed.Branch)

	var report state.StatusReport
	code = f.get(t, "/status", &report)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "parallel", report.Mode)
	assert.Equal(t, 1, report.TotalTasks)
	assert.Equal(t, 1, report.TasksByStatus[types.StatusDone])
	assert.Equal(t, 1, report.ActiveSessions)

	var sum state.Summary
	code = f.get(t, "/parallel-summary", &sum)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, sum.TotalCompleted)
	assert.Equal(t, []string{"feat-gadget"}, sum.BranchesToMerge)
}

func TestRequestWithEmptyBacklog(t *testing.T) {
	f := newFixture(t)
	f.register(t, "w1")

	var env taskEnvelope
	code := f.post(t, "/task/request", map[string]any{"session_id": "w1"}, &env)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, env.Task)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	var e errBody
	code := f.post(t, "/task/create", map[string]any{"description": "no title"}, &e)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_argument", e.Kind)
	assert.Contains(t, e.Error, "title")

	resp, err := http.Get(f.url + "/task/create")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestTasksFilter(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, map[string]any{"title": "first"})
	f.create(t, map[string]any{"title": "second"})
	code := f.post(t, "/task/complete", map[string]any{
		"task_id": first.ID, "session_id": "w1",
	}, nil)
	require.Equal(t, http.StatusOK, code)

	var all taskList
	require.Equal(t, http.StatusOK, f.get(t, "/tasks", &all))
	assert.Len(t, all.Tasks, 2)

	var done taskList
	require.Equal(t, http.StatusOK, f.get(t, "/tasks?status=done", &done))
	require.Len(t, done.Tasks, 1)
	assert.Equal(t, first.ID, done.Tasks[0].ID)

	var e errBody
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/tasks?status=bogus", &e))
	assert.Equal(t, "invalid_argument", e.Kind)
}

func TestSessionEndReleasesClaim(t *testing.T) {
	f := newFixture(t)
	f.register(t, "w1")
	task := f.create(t, map[string]any{"title": "claimable"})

	var env taskEnvelope
	require.Equal(t, http.StatusOK,
		f.post(t, "/task/request", map[string]any{"session_id": "w1"}, &env))
	require.NotNil(t, env.Task)

	require.Equal(t, http.StatusOK,
		f.post(t, "/session/end", map[string]any{"session_id": "w1"}, nil))

	var open taskList
	require.Equal(t, http.StatusOK, f.get(t, "/tasks?status=open", &open))
	require.Len(t, open.Tasks, 1)
	assert.Equal(t, task.ID, open.Tasks[0].ID)
	assert.Empty(t, open.Tasks[0].Assignee)

	var report state.StatusReport
	require.Equal(t, http.StatusOK, f.get(t, "/status", &report))
	assert.Zero(t, report.ActiveSessions)
}

func TestSessionEndCanKeepClaim(t *testing.T) {
	f := newFixture(t)
	f.register(t, "w1")
	f.create(t, map[string]any{"title": "handed off"})

	var env taskEnvelope
	require.Equal(t, http.StatusOK,
		f.post(t, "/task/request", map[string]any{"session_id": "w1"}, &env))
	require.NotNil(t, env.Task)

	require.Equal(t, http.StatusOK,
		f.post(t, "/session/end", map[string]any{"session_id": "w1", "release": false}, nil))

	var busy taskList
	require.Equal(t, http.StatusOK, f.get(t, "/tasks?status=in_progress", &busy))
	assert.Len(t, busy.Tasks, 1)
}

func TestHeartbeatUnknownSession(t *testing.T) {
	f := newFixture(t)

	var e errBody
	code := f.post(t, "/session/heartbeat", map[string]any{"session_id": "ghost"}, &e)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", e.Kind)
}

func TestBulkCompleteOverHTTP(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, map[string]any{"title": "a"})
	b := f.create(t, map[string]any{"title": "b"})

	var res state.BulkResult
	code := f.post(t, "/task/bulk-complete", map[string]any{
		"task_ids":   []string{a.ID, b.ID, "task-404"},
		"session_id": "w1",
		"note":       "sweep",
	}, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{a.ID, b.ID}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "task-404", res.Failed[0].TaskID)
}

func TestBulkReopenOverHTTP(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, map[string]any{"title": "a"})
	require.Equal(t, http.StatusOK,
		f.post(t, "/task/complete", map[string]any{"task_id": a.ID, "session_id": "w1"}, nil))

	var res state.BulkResult
	code := f.post(t, "/task/bulk-reopen", map[string]any{
		"task_ids": []string{a.ID},
	}, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{a.ID}, res.Succeeded)

	var open taskList
	require.Equal(t, http.StatusOK, f.get(t, "/tasks?status=open", &open))
	assert.Len(t, open.Tasks, 1)
}

func TestDeleteRequiresForceForSubtasks(t *testing.T) {
	f := newFixture(t)
	parent := f.create(t, map[string]any{"title": "parent"})

	var child types.Task
	require.Equal(t, http.StatusOK, f.post(t, "/subtask/create", map[string]any{
		"parent_id": parent.ID, "title": "child",
	}, &child))
	assert.Equal(t, parent.ID, child.ParentID)

	var e errBody
	code := f.post(t, "/task/delete", map[string]any{"task_id": parent.ID}, &e)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", e.Kind)

	var res struct {
		OK      bool     `json:"ok"`
		Deleted []string `json:"deleted"`
	}
	code = f.post(t, "/task/delete", map[string]any{"task_id": parent.ID, "force": true}, &res)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.OK)
	assert.ElementsMatch(t, []string{parent.ID, child.ID}, res.Deleted)
}

func TestCreateWithParentRoutesToSubtask(t *testing.T) {
	f := newFixture(t)
	parent := f.create(t, map[string]any{"title": "parent"})
	sub := f.create(t, map[string]any{"title": "via create", "parent_id": parent.ID})
	assert.Equal(t, parent.ID, sub.ParentID)

	var progress state.Progress
	code := f.get(t, "/subtask/progress?parent_id="+parent.ID, &progress)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, progress.Total)
	assert.Zero(t, progress.Done)
}

func TestSubtaskProgressEndpoint(t *testing.T) {
	f := newFixture(t)
	parent := f.create(t, map[string]any{"title": "parent"})
	var a types.Task
	require.Equal(t, http.StatusOK, f.post(t, "/subtask/create",
		map[string]any{"parent_id": parent.ID, "title": "a"}, &a))
	require.Equal(t, http.StatusOK, f.post(t, "/subtask/create",
		map[string]any{"parent_id": parent.ID, "title": "b"}, nil))
	require.Equal(t, http.StatusOK, f.post(t, "/task/complete",
		map[string]any{"task_id": a.ID, "session_id": "w1"}, nil))

	var progress state.Progress
	require.Equal(t, http.StatusOK,
		f.get(t, "/subtask/progress?parent_id="+parent.ID, &progress))
	assert.Equal(t, 2, progress.Total)
	assert.Equal(t, 1, progress.Done)
	assert.Equal(t, float64(50), progress.Percent)

	var e errBody
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/subtask/progress", &e))
	assert.Equal(t, http.StatusNotFound,
		f.get(t, "/subtask/progress?parent_id=task-404", &e))
}

func TestEditAndReopen(t *testing.T) {
	f := newFixture(t)
	task := f.create(t, map[string]any{"title": "draft"})

	var edited types.Task
	code := f.post(t, "/task/edit", map[string]any{
		"task_id": task.ID, "title": "polished", "priority": 0,
	}, &edited)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "polished", edited.Title)
	assert.Equal(t, 0, edited.Priority)

	require.Equal(t, http.StatusOK,
		f.post(t, "/task/complete", map[string]any{
			"task_id": task.ID, "session_id": "w1", "branch": "feat-polish",
		}, nil))

	var reopened types.Task
	code = f.post(t, "/task/reopen", map[string]any{"task_id": task.ID, "note": "regressed"}, &reopened)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, types.StatusOpen, reopened.Status)
	assert.Empty(t, reopened.Assignee)
	assert.Empty(t, reopened.Branch, "reopen should strip the completion's branch")
}

func TestNoteEndpoint(t *testing.T) {
	f := newFixture(t)
	task := f.create(t, map[string]any{"title": "noted"})

	var ok map[string]bool
	code := f.post(t, "/task/note", map[string]any{
		"task_id": task.ID, "session_id": "w1", "note": "observed a flake",
	}, &ok)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, ok["ok"])

	var all taskList
	require.Equal(t, http.StatusOK, f.get(t, "/tasks", &all))
	require.Len(t, all.Tasks, 1)
	notes := all.Tasks[0].Notes
	require.NotEmpty(t, notes)
	assert.Equal(t, "observed a flake", notes[len(notes)-1].Text)
}

// History records land on disk at mutation time; tasks.json waits for the
// flush loop.
func TestHistoryAppendsSynchronously(t *testing.T) {
	f := newFixture(t)
	f.create(t, map[string]any{"title": "logged"})

	events, err := f.store.History()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventTaskCreated, events[0].Kind)

	fresh, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, fresh.Tasks, "backlog should not be flushed yet")

	require.NoError(t, f.srv.flush())
	fresh, err = f.store.Load()
	require.NoError(t, err)
	assert.Len(t, fresh.Tasks, 1)
}

func TestMalformedBody(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Post(f.url+"/task/create", "application/json",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var e errBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "invalid_argument", e.Kind)
}
