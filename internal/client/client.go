// Package client is the agent-side entry point. An Agent speaks to the
// shared backlog through a Backend chosen at construction: direct file
// transactions when the agent has the state directory to itself, HTTP to
// the coordinator when a live sentinel says parallel mode is on.
//
// The backend is picked once, not per call. The only mid-flight switch is
// the fallback from parallel to single when the coordinator stops
// answering and its sentinel turns out to be gone.
package client

import (
	"time"

	"claudia/internal/config"
	"claudia/internal/errs"
	"claudia/internal/idgen"
	"claudia/internal/lockfile"
	"claudia/internal/state"
	"claudia/internal/store"
	"claudia/internal/types"
)

// Execution modes, as reported in status output.
const (
	ModeSingle   = "single"
	ModeParallel = "parallel"
)

// Backend is the set of operations available in both modes. Direct and
// HTTP implementations must be observationally identical so callers never
// branch on mode.
type Backend interface {
	Mode() string

	Register(args state.RegisterSessionArgs) (*types.Session, error)
	Heartbeat(sessionID string) error
	End(sessionID string, release bool) error

	Status() (*state.StatusReport, error)
	Tasks(status types.Status) ([]*types.Task, error)
	ParallelSummary() (*state.Summary, error)
	SubtaskProgress(parentID string) (*state.Progress, error)

	CreateTask(args state.CreateTaskArgs) (*types.Task, error)
	CreateSubtask(args state.CreateSubtaskArgs) (*types.Task, error)
	RequestTask(sessionID string, preferred []string) (*types.Task, error)
	CompleteTask(args state.CompleteTaskArgs) (*types.Task, error)
	ReopenTask(args state.ReopenTaskArgs) (*types.Task, error)
	EditTask(args state.EditTaskArgs) (*types.Task, error)
	DeleteTask(id, sessionID string, force bool) ([]string, error)
	AddNote(args state.AddNoteArgs) error
	BulkComplete(ids []string, args state.CompleteTaskArgs) (*state.BulkResult, error)
	BulkReopen(ids []string, args state.ReopenTaskArgs) (*state.BulkResult, error)
}

// Detect reports the execution mode of a state directory. Parallel mode
// needs both a sentinel and a live coordinator process behind it; a
// sentinel whose process is dead is reported as stale so callers can
// offer cleanup instead of silently ignoring it.
func Detect(sto *store.Store) (mode string, sn *store.Sentinel, stale bool) {
	sn, err := sto.ReadSentinel()
	if err != nil {
		return ModeSingle, nil, false
	}
	pid, err := sto.ReadPID()
	if err != nil || !lockfile.IsProcessRunning(pid) {
		return ModeSingle, sn, true
	}
	return ModeParallel, sn, false
}

// Options identify the agent behind an Agent. A missing SessionID gets a
// generated one; a missing Role defaults to worker.
type Options struct {
	SessionID string
	Role      types.Role
	Context   string
	Labels    []string
	Branch    string
}

// Agent wraps a Backend with the caller's session identity and the
// operations that only exist in single mode.
type Agent struct {
	store *store.Store
	cfg   config.Settings
	opts  Options

	backend       Backend
	staleSentinel bool
}

// New opens the state directory and binds to whichever mode it is in.
func New(cfg config.Settings, opts Options) (*Agent, error) {
	sto, err := store.Open(cfg.StateDir, cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	if opts.SessionID == "" {
		opts.SessionID = idgen.NewSessionID()
	}
	if opts.Role == "" {
		opts.Role = types.RoleWorker
	}
	a := &Agent{store: sto, cfg: cfg, opts: opts}
	a.refresh()
	return a, nil
}

func (a *Agent) refresh() {
	mode, sn, stale := Detect(a.store)
	a.staleSentinel = stale
	if mode == ModeParallel {
		a.backend = newHTTPBackend(sn.Port, a.cfg.RequestTimeout)
	} else {
		a.backend = newDirectBackend(a.store, a.cfg)
	}
}

// SessionID returns the identity this agent acts under.
func (a *Agent) SessionID() string { return a.opts.SessionID }

// Mode returns the mode of the active backend.
func (a *Agent) Mode() string { return a.backend.Mode() }

// Store exposes the underlying state directory for read-only use such as
// watching files for dashboard refresh.
func (a *Agent) Store() *store.Store { return a.store }

// StaleSentinel reports whether the state directory carries a sentinel
// left behind by a dead coordinator.
func (a *Agent) StaleSentinel() bool { return a.staleSentinel }

// run executes op against the active backend. When a parallel backend
// reports the coordinator unreachable, the mode is checked once more; if
// the sentinel is gone the op runs again directly.
func (a *Agent) run(op func(Backend) error) error {
	err := op(a.backend)
	if err == nil || !errs.Is(err, errs.KindUnavailable) {
		return err
	}
	if a.backend.Mode() != ModeParallel {
		return err
	}
	a.refresh()
	if a.backend.Mode() != ModeSingle {
		return err
	}
	return op(a.backend)
}

func (a *Agent) requireSingle(op string) error {
	if a.backend.Mode() == ModeParallel {
		return errs.Conflictf("%s is only available in single mode; stop the coordinator first", op)
	}
	return nil
}

// Register announces this session to the backlog. Registering an already
// known session refreshes it in place.
func (a *Agent) Register() (*types.Session, error) {
	var sess *types.Session
	err := a.run(func(b Backend) error {
		var err error
		sess, err = b.Register(state.RegisterSessionArgs{
			SessionID: a.opts.SessionID,
			Role:      a.opts.Role,
			Context:   a.opts.Context,
			Labels:    a.opts.Labels,
			Branch:    a.opts.Branch,
		})
		return err
	})
	return sess, err
}

// Heartbeat refreshes this session's liveness stamp.
func (a *Agent) Heartbeat() error {
	return a.run(func(b Backend) error { return b.Heartbeat(a.opts.SessionID) })
}

// End deregisters this session. With release set, tasks the session was
// working on return to the open pool.
func (a *Agent) End(release bool) error {
	return a.run(func(b Backend) error { return b.End(a.opts.SessionID, release) })
}

// Status reports backlog and session counts.
func (a *Agent) Status() (*state.StatusReport, error) {
	var report *state.StatusReport
	err := a.run(func(b Backend) error {
		var err error
		report, err = b.Status()
		return err
	})
	return report, err
}

// Tasks lists the backlog, optionally narrowed to one status.
func (a *Agent) Tasks(status types.Status) ([]*types.Task, error) {
	var tasks []*types.Task
	err := a.run(func(b Backend) error {
		var err error
		tasks, err = b.Tasks(status)
		return err
	})
	return tasks, err
}

// Task looks up a single task by id.
func (a *Agent) Task(id string) (*types.Task, error) {
	tasks, err := a.Tasks("")
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, errs.NotFoundf("task %s not found", id)
}

// ParallelSummary reports per-session completions and branches pending
// merge.
func (a *Agent) ParallelSummary() (*state.Summary, error) {
	var sum *state.Summary
	err := a.run(func(b Backend) error {
		var err error
		sum, err = b.ParallelSummary()
		return err
	})
	return sum, err
}

// SubtaskProgress reports completion of a parent's subtasks.
func (a *Agent) SubtaskProgress(parentID string) (*state.Progress, error) {
	var p *state.Progress
	err := a.run(func(b Backend) error {
		var err error
		p, err = b.SubtaskProgress(parentID)
		return err
	})
	return p, err
}

// CreateTask adds a task to the backlog under this session's name.
func (a *Agent) CreateTask(args state.CreateTaskArgs) (*types.Task, error) {
	args.SessionID = a.opts.SessionID
	var t *types.Task
	err := a.run(func(b Backend) error {
		var err error
		t, err = b.CreateTask(args)
		return err
	})
	return t, err
}

// CreateSubtask adds a child task under an existing parent.
func (a *Agent) CreateSubtask(args state.CreateSubtaskArgs) (*types.Task, error) {
	args.SessionID = a.opts.SessionID
	var t *types.Task
	err := a.run(func(b Backend) error {
		var err error
		t, err = b.CreateSubtask(args)
		return err
	})
	return t, err
}

// RequestTask claims the best open task for this session. A nil task with
// a nil error means the backlog has nothing claimable.
func (a *Agent) RequestTask(preferred []string) (*types.Task, error) {
	var t *types.Task
	err := a.run(func(b Backend) error {
		var err error
		t, err = b.RequestTask(a.opts.SessionID, preferred)
		return err
	})
	return t, err
}

// CompleteTask marks a task done.
func (a *Agent) CompleteTask(args state.CompleteTaskArgs) (*types.Task, error) {
	args.SessionID = a.opts.SessionID
	var t *types.Task
	err := a.run(func(b Backend) error {
		var err error
		t, err = b.CompleteTask(args)
		return err
	})
	return t, err
}

// ReopenTask returns a done task to the open pool.
func (a *Agent) ReopenTask(args state.ReopenTaskArgs) (*types.Task, error) {
	args.SessionID = a.opts.SessionID
	var t *types.Task
	err := a.run(func(b Backend) error {
		var err error
		t, err = b.ReopenTask(args)
		return err
	})
	return t, err
}

// EditTask updates task fields in place.
func (a *Agent) EditTask(args state.EditTaskArgs) (*types.Task, error) {
	args.SessionID = a.opts.SessionID
	var t *types.Task
	err := a.run(func(b Backend) error {
		var err error
		t, err = b.EditTask(args)
		return err
	})
	return t, err
}

// DeleteTask removes a task. Deleting a parent with subtasks requires
// force and returns every removed id.
func (a *Agent) DeleteTask(id string, force bool) ([]string, error) {
	var deleted []string
	err := a.run(func(b Backend) error {
		var err error
		deleted, err = b.DeleteTask(id, a.opts.SessionID, force)
		return err
	})
	return deleted, err
}

// AddNote appends a note to a task.
func (a *Agent) AddNote(taskID, note string) error {
	return a.run(func(b Backend) error {
		return b.AddNote(state.AddNoteArgs{
			TaskID:    taskID,
			SessionID: a.opts.SessionID,
			Note:      note,
		})
	})
}

// BulkComplete completes several tasks, continuing past individual
// failures.
func (a *Agent) BulkComplete(ids []string, args state.CompleteTaskArgs) (*state.BulkResult, error) {
	args.SessionID = a.opts.SessionID
	var res *state.BulkResult
	err := a.run(func(b Backend) error {
		var err error
		res, err = b.BulkComplete(ids, args)
		return err
	})
	return res, err
}

// BulkReopen reopens several tasks, continuing past individual failures.
func (a *Agent) BulkReopen(ids []string, args state.ReopenTaskArgs) (*state.BulkResult, error) {
	args.SessionID = a.opts.SessionID
	var res *state.BulkResult
	err := a.run(func(b Backend) error {
		var err error
		res, err = b.BulkReopen(ids, args)
		return err
	})
	return res, err
}

// Undo reverses the most recent reversible mutation in history.
func (a *Agent) Undo() (*state.UndoResult, error) {
	if err := a.requireSingle("undo"); err != nil {
		return nil, err
	}
	var res *state.UndoResult
	err := a.store.Transaction(func(st *state.State) error {
		events, err := a.store.History()
		if err != nil {
			return err
		}
		idx, ev := store.LastUndoable(events)
		if ev == nil {
			return errs.New(errs.KindConflict, "nothing to undo")
		}
		res, err = st.ApplyUndo(ev, idx, a.opts.SessionID)
		return err
	})
	return res, err
}

// StartTimer begins tracking time against a task.
func (a *Agent) StartTimer(taskID string) (*types.Task, error) {
	return a.timerOp("timer start", func(st *state.State) (*types.Task, error) {
		return st.StartTimer(taskID, a.opts.SessionID)
	})
}

// StopTimer stops tracking and folds the elapsed time into the task.
func (a *Agent) StopTimer(taskID string) (*types.Task, error) {
	return a.timerOp("timer stop", func(st *state.State) (*types.Task, error) {
		return st.StopTimer(taskID, a.opts.SessionID)
	})
}

// PauseTimer suspends a running timer without losing elapsed time.
func (a *Agent) PauseTimer(taskID string) (*types.Task, error) {
	return a.timerOp("timer pause", func(st *state.State) (*types.Task, error) {
		return st.PauseTimer(taskID, a.opts.SessionID)
	})
}

func (a *Agent) timerOp(name string, fn func(*state.State) (*types.Task, error)) (*types.Task, error) {
	if err := a.requireSingle(name); err != nil {
		return nil, err
	}
	var t *types.Task
	err := a.store.Transaction(func(st *state.State) error {
		var err error
		t, err = fn(st)
		return err
	})
	return t, err
}

// SaveTemplate stores a reusable task shape, replacing any previous
// template with the same id.
func (a *Agent) SaveTemplate(tpl *types.Template) (*types.Template, error) {
	if err := a.requireSingle("template import"); err != nil {
		return nil, err
	}
	var saved *types.Template
	err := a.store.Transaction(func(st *state.State) error {
		var err error
		saved, err = st.SaveTemplate(tpl, a.opts.SessionID)
		return err
	})
	return saved, err
}

// DeleteTemplate removes a stored template.
func (a *Agent) DeleteTemplate(id string) error {
	if err := a.requireSingle("template delete"); err != nil {
		return err
	}
	return a.store.Transaction(func(st *state.State) error {
		return st.DeleteTemplate(id, a.opts.SessionID)
	})
}

// Templates lists stored templates.
func (a *Agent) Templates() ([]*types.Template, error) {
	if err := a.requireSingle("template list"); err != nil {
		return nil, err
	}
	st, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	return st.Templates, nil
}

// InstantiateTemplate expands a template into a parent task with
// subtasks.
func (a *Agent) InstantiateTemplate(args state.InstantiateTemplateArgs) (*types.Task, error) {
	if err := a.requireSingle("template instantiate"); err != nil {
		return nil, err
	}
	args.SessionID = a.opts.SessionID
	var t *types.Task
	err := a.store.Transaction(func(st *state.State) error {
		var err error
		t, err = st.InstantiateTemplate(args)
		return err
	})
	return t, err
}

// ArchiveOlderThan moves done tasks finished before cutoff out of the
// backlog and returns what was archived.
func (a *Agent) ArchiveOlderThan(cutoff time.Time, daysOld int) ([]*types.Task, error) {
	if err := a.requireSingle("archive"); err != nil {
		return nil, err
	}
	var archived []*types.Task
	err := a.store.Transaction(func(st *state.State) error {
		var err error
		archived, err = st.ArchiveTasks(cutoff, daysOld, a.opts.SessionID)
		return err
	})
	return archived, err
}

// Archived lists archived tasks, most recent first.
func (a *Agent) Archived(limit int) ([]*types.Task, error) {
	if err := a.requireSingle("archive list"); err != nil {
		return nil, err
	}
	return a.store.Archived(limit)
}

// RestoreFromArchive brings an archived task back into the backlog.
func (a *Agent) RestoreFromArchive(id string) (*types.Task, error) {
	if err := a.requireSingle("archive restore"); err != nil {
		return nil, err
	}
	archived, err := a.store.FindArchived(id)
	if err != nil {
		return nil, err
	}
	var t *types.Task
	err = a.store.Transaction(func(st *state.State) error {
		restored, err := st.RestoreTask(archived, a.opts.SessionID)
		if err != nil {
			return err
		}
		t = restored
		return nil
	})
	return t, err
}

// Cleanup releases sessions whose last heartbeat is older than the
// configured threshold and returns the released session ids. In parallel
// mode the coordinator does this on its own schedule.
func (a *Agent) Cleanup() ([]string, error) {
	if err := a.requireSingle("cleanup"); err != nil {
		return nil, err
	}
	var stale []string
	err := a.store.Transaction(func(st *state.State) error {
		stale = st.CleanupStale(a.cfg.CleanupThreshold)
		return nil
	})
	return stale, err
}
