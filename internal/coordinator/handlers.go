package coordinator

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"claudia/internal/errs"
	"claudia/internal/state"
	"claudia/internal/types"
)

// maxBodyBytes caps request bodies well above any realistic payload.
const maxBodyBytes = 1 << 20

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, http.MethodGet, "/status", s.handleStatus)
	s.handle(mux, http.MethodGet, "/tasks", s.handleTasks)
	s.handle(mux, http.MethodGet, "/parallel-summary", s.handleParallelSummary)
	s.handle(mux, http.MethodGet, "/subtask/progress", s.handleSubtaskProgress)
	s.handle(mux, http.MethodPost, "/session/register", s.handleSessionRegister)
	s.handle(mux, http.MethodPost, "/session/heartbeat", s.handleSessionHeartbeat)
	s.handle(mux, http.MethodPost, "/session/end", s.handleSessionEnd)
	s.handle(mux, http.MethodPost, "/task/create", s.handleTaskCreate)
	s.handle(mux, http.MethodPost, "/task/request", s.handleTaskRequest)
	s.handle(mux, http.MethodPost, "/task/complete", s.handleTaskComplete)
	s.handle(mux, http.MethodPost, "/task/reopen", s.handleTaskReopen)
	s.handle(mux, http.MethodPost, "/task/edit", s.handleTaskEdit)
	s.handle(mux, http.MethodPost, "/task/delete", s.handleTaskDelete)
	s.handle(mux, http.MethodPost, "/task/note", s.handleTaskNote)
	s.handle(mux, http.MethodPost, "/task/bulk-complete", s.handleBulkComplete)
	s.handle(mux, http.MethodPost, "/task/bulk-reopen", s.handleBulkReopen)
	s.handle(mux, http.MethodPost, "/subtask/create", s.handleSubtaskCreate)
	return mux
}

// handle registers a route with a method guard and a request counter.
func (s *Server) handle(mux *http.ServeMux, verb, route string, h http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != verb {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.Requests.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("route", route),
			attribute.Int("status", rec.status),
		))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errs.InvalidArgumentf("read request body: %v", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errs.InvalidArgumentf("malformed request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps the error kind to an HTTP status and ships both the
// message and the kind so clients can rebuild the error on their side.
func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	writeJSON(w, errs.HTTPStatus(kind), map[string]string{
		"error": err.Error(),
		"kind":  kind.String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	report := s.st.Status(time.Now(), "parallel")
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	var status types.Status
	if v := r.URL.Query().Get("status"); v != "" {
		status = types.Status(v)
		if !status.IsValid() {
			writeError(w, errs.InvalidArgumentf("unknown status %q", v))
			return
		}
	}

	s.mu.Lock()
	src := s.st.Tasks
	if status != "" {
		src = s.st.TasksByStatus(status)
	}
	tasks := make([]*types.Task, len(src))
	for i, t := range src {
		tasks[i] = t.Clone()
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleParallelSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sum := s.st.ParallelSummary()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSubtaskProgress(w http.ResponseWriter, r *http.Request) {
	parentID := r.URL.Query().Get("parent_id")
	if parentID == "" {
		writeError(w, errs.InvalidArgumentf("parent_id is required"))
		return
	}
	s.mu.Lock()
	progress, err := s.st.SubtaskProgress(parentID)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleSessionRegister(w http.ResponseWriter, r *http.Request) {
	var args state.RegisterSessionArgs
	if err := decode(r, &args); err != nil {
		writeError(w, err)
		return
	}
	var sess *types.Session
	err := s.mutate(func(st *state.State) error {
		registered, err := st.RegisterSession(args)
		if err != nil {
			return err
		}
		sess = registered.Clone()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := s.mutate(func(st *state.State) error {
		_, err := st.Heartbeat(req.SessionID)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Release   *bool  `json:"release,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	release := req.Release == nil || *req.Release

	var empty bool
	err := s.mutate(func(st *state.State) error {
		if _, err := st.EndSession(req.SessionID, release); err != nil {
			return err
		}
		empty = len(st.Sessions) == 0
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	s.maybeAutoShutdown(empty)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		state.CreateTaskArgs
		ParentID string `json:"parent_id,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var task *types.Task
	err := s.mutate(func(st *state.State) error {
		var created *types.Task
		var err error
		if req.ParentID != "" {
			created, err = st.CreateSubtask(state.CreateSubtaskArgs{
				ParentID:    req.ParentID,
				Title:       req.Title,
				Description: req.Description,
				SessionID:   req.SessionID,
			})
		} else {
			created, err = st.CreateTask(req.CreateTaskArgs)
		}
		if err != nil {
			return err
		}
		task = created.Clone()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string   `json:"session_id"`
		Preferred []string `json:"preferred_labels,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	var task *types.Task
	err := s.mutate(func(st *state.State) error {
		claimed, err := st.RequestTask(req.SessionID, req.Preferred, s.cfg.MaxConcurrent)
		if err != nil {
			return err
		}
		if claimed != nil {
			task = claimed.Clone()
		}
		return nil
	})
	s.metrics.ClaimLatency.Record(r.Context(),
		float64(time.Since(start))/float64(time.Millisecond),
		metric.WithAttributes(attribute.Bool("claimed", task != nil)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*types.Task{"task": task})
}

func (s *Server) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	var args state.CompleteTaskArgs
	if err := decode(r, &args); err != nil {
		writeError(w, err)
		return
	}
	args.AutoCompleteParents = s.cfg.AutoCompleteParents

	var task *types.Task
	err := s.mutate(func(st *state.State) error {
		completed, err := st.CompleteTask(args)
		if err != nil {
			return err
		}
		task = completed.Clone()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskReopen(w http.ResponseWriter, r *http.Request) {
	var args state.ReopenTaskArgs
	if err := decode(r, &args); err != nil {
		writeError(w, err)
		return
	}
	var task *types.Task
	err := s.mutate(func(st *state.State) error {
		reopened, err := st.ReopenTask(args)
		if err != nil {
			return err
		}
		task = reopened.Clone()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskEdit(w http.ResponseWriter, r *http.Request) {
	var args state.EditTaskArgs
	if err := decode(r, &args); err != nil {
		writeError(w, err)
		return
	}
	var task *types.Task
	err := s.mutate(func(st *state.State) error {
		edited, err := st.EditTask(args)
		if err != nil {
			return err
		}
		task = edited.Clone()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID    string `json:"task_id"`
		SessionID string `json:"session_id,omitempty"`
		Force     bool   `json:"force,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var deleted []string
	err := s.mutate(func(st *state.State) error {
		ids, err := st.DeleteTask(req.TaskID, req.SessionID, req.Force)
		if err != nil {
			return err
		}
		deleted = ids
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": deleted})
}

func (s *Server) handleTaskNote(w http.ResponseWriter, r *http.Request) {
	var args state.AddNoteArgs
	if err := decode(r, &args); err != nil {
		writeError(w, err)
		return
	}
	err := s.mutate(func(st *state.State) error {
		_, err := st.AddNote(args)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleBulkComplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskIDs []string `json:"task_ids"`
		state.CompleteTaskArgs
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.TaskIDs) == 0 {
		writeError(w, errs.InvalidArgumentf("task_ids is required"))
		return
	}
	req.AutoCompleteParents = s.cfg.AutoCompleteParents

	var result *state.BulkResult
	err := s.mutate(func(st *state.State) error {
		result = st.BulkComplete(req.TaskIDs, req.CompleteTaskArgs)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkReopen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskIDs []string `json:"task_ids"`
		state.ReopenTaskArgs
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.TaskIDs) == 0 {
		writeError(w, errs.InvalidArgumentf("task_ids is required"))
		return
	}
	var result *state.BulkResult
	err := s.mutate(func(st *state.State) error {
		result = st.BulkReopen(req.TaskIDs, req.ReopenTaskArgs)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSubtaskCreate(w http.ResponseWriter, r *http.Request) {
	var args state.CreateSubtaskArgs
	if err := decode(r, &args); err != nil {
		writeError(w, err)
		return
	}
	var task *types.Task
	err := s.mutate(func(st *state.State) error {
		created, err := st.CreateSubtask(args)
		if err != nil {
			return err
		}
		task = created.Clone()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
