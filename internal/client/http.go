package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"claudia/internal/errs"
	"claudia/internal/state"
	"claudia/internal/types"
)

const (
	defaultRequestTimeout = 5 * time.Second
	requestAttempts       = 5
)

// httpBackend talks to a running coordinator on loopback. Transport
// failures are retried with jittered exponential backoff; any answer the
// coordinator actually gives, including errors, is final.
type httpBackend struct {
	base   string
	client *http.Client
}

func newHTTPBackend(port int, timeout time.Duration) *httpBackend {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &httpBackend{
		base:   fmt.Sprintf("http://127.0.0.1:%d", port),
		client: &http.Client{Timeout: timeout},
	}
}

func (b *httpBackend) Mode() string { return ModeParallel }

// retryPolicy returns the schedule for one request. BackOff values are
// stateful, so every request gets a fresh one.
func retryPolicy() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.RandomizationFactor = 0.25
	bo.Multiplier = 2
	bo.MaxInterval = 8 * time.Second
	return backoff.WithMaxRetries(bo, requestAttempts-1)
}

// do sends one request, retrying while the coordinator is unreachable.
// A response from the coordinator, success or error, stops the retries.
func (b *httpBackend) do(method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.KindInternal, "encode request", err)
		}
	}

	attempt := func() error {
		req, err := http.NewRequest(method, b.base+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(errs.Wrap(errs.KindInternal, "build request", err))
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return errs.Wrap(errs.KindUnavailable, "coordinator unreachable", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.Wrap(errs.KindUnavailable, "read coordinator response", err)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(decodeError(resp.StatusCode, data))
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(errs.Wrap(errs.KindInternal, "decode coordinator response", err))
			}
		}
		return nil
	}
	return backoff.Retry(attempt, retryPolicy())
}

// decodeError rebuilds a typed error from the coordinator's error body,
// falling back to the HTTP status when the body carries no kind.
func decodeError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		if e.Kind != "" {
			return errs.New(errs.ParseKind(e.Kind), e.Error)
		}
		return errs.New(errs.KindForStatus(status), e.Error)
	}
	return errs.Newf(errs.KindForStatus(status), "coordinator returned status %d", status)
}

func (b *httpBackend) Register(args state.RegisterSessionArgs) (*types.Session, error) {
	var sess types.Session
	if err := b.do(http.MethodPost, "/session/register", args, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (b *httpBackend) Heartbeat(sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	return b.do(http.MethodPost, "/session/heartbeat", body, nil)
}

func (b *httpBackend) End(sessionID string, release bool) error {
	body := struct {
		SessionID string `json:"session_id"`
		Release   bool   `json:"release"`
	}{sessionID, release}
	return b.do(http.MethodPost, "/session/end", body, nil)
}

func (b *httpBackend) Status() (*state.StatusReport, error) {
	var report state.StatusReport
	if err := b.do(http.MethodGet, "/status", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (b *httpBackend) Tasks(status types.Status) ([]*types.Task, error) {
	path := "/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out struct {
		Tasks []*types.Task `json:"tasks"`
	}
	if err := b.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (b *httpBackend) ParallelSummary() (*state.Summary, error) {
	var sum state.Summary
	if err := b.do(http.MethodGet, "/parallel-summary", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (b *httpBackend) SubtaskProgress(parentID string) (*state.Progress, error) {
	var p state.Progress
	path := "/subtask/progress?parent_id=" + url.QueryEscape(parentID)
	if err := b.do(http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *httpBackend) CreateTask(args state.CreateTaskArgs) (*types.Task, error) {
	var t types.Task
	if err := b.do(http.MethodPost, "/task/create", args, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (b *httpBackend) CreateSubtask(args state.CreateSubtaskArgs) (*types.Task, error) {
	var t types.Task
	if err := b.do(http.MethodPost, "/subtask/create", args, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (b *httpBackend) RequestTask(sessionID string, preferred []string) (*types.Task, error) {
	body := struct {
		SessionID string   `json:"session_id"`
		Preferred []string `json:"preferred_labels,omitempty"`
	}{sessionID, preferred}
	var out struct {
		Task *types.Task `json:"task"`
	}
	if err := b.do(http.MethodPost, "/task/request", body, &out); err != nil {
		return nil, err
	}
	return out.Task, nil
}

func (b *httpBackend) CompleteTask(args state.CompleteTaskArgs) (*types.Task, error) {
	var t types.Task
	if err := b.do(http.MethodPost, "/task/complete", args, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (b *httpBackend) ReopenTask(args state.ReopenTaskArgs) (*types.Task, error) {
	var t types.Task
	if err := b.do(http.MethodPost, "/task/reopen", args, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (b *httpBackend) EditTask(args state.EditTaskArgs) (*types.Task, error) {
	var t types.Task
	if err := b.do(http.MethodPost, "/task/edit", args, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (b *httpBackend) DeleteTask(id, sessionID string, force bool) ([]string, error) {
	body := struct {
		TaskID    string `json:"task_id"`
		SessionID string `json:"session_id,omitempty"`
		Force     bool   `json:"force,omitempty"`
	}{id, sessionID, force}
	var out struct {
		Deleted []string `json:"deleted"`
	}
	if err := b.do(http.MethodPost, "/task/delete", body, &out); err != nil {
		return nil, err
	}
	return out.Deleted, nil
}

func (b *httpBackend) AddNote(args state.AddNoteArgs) error {
	return b.do(http.MethodPost, "/task/note", args, nil)
}

func (b *httpBackend) BulkComplete(ids []string, args state.CompleteTaskArgs) (*state.BulkResult, error) {
	body := struct {
		TaskIDs []string `json:"task_ids"`
		state.CompleteTaskArgs
	}{ids, args}
	var res state.BulkResult
	if err := b.do(http.MethodPost, "/task/bulk-complete", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *httpBackend) BulkReopen(ids []string, args state.ReopenTaskArgs) (*state.BulkResult, error) {
	body := struct {
		TaskIDs []string `json:"task_ids"`
		state.ReopenTaskArgs
	}{ids, args}
	var res state.BulkResult
	if err := b.do(http.MethodPost, "/task/bulk-reopen", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
