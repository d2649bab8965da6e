package client

import (
	"time"

	"claudia/internal/config"
	"claudia/internal/state"
	"claudia/internal/store"
	"claudia/internal/types"
)

// directBackend runs every operation as a locked file transaction. Reads
// load a fresh snapshot without taking the lock.
type directBackend struct {
	store *store.Store
	cfg   config.Settings
}

func newDirectBackend(sto *store.Store, cfg config.Settings) *directBackend {
	return &directBackend{store: sto, cfg: cfg}
}

func (b *directBackend) Mode() string { return ModeSingle }

func (b *directBackend) Register(args state.RegisterSessionArgs) (*types.Session, error) {
	var sess *types.Session
	err := b.store.Transaction(func(st *state.State) error {
		var err error
		sess, err = st.RegisterSession(args)
		return err
	})
	return sess, err
}

func (b *directBackend) Heartbeat(sessionID string) error {
	return b.store.Transaction(func(st *state.State) error {
		_, err := st.Heartbeat(sessionID)
		return err
	})
}

func (b *directBackend) End(sessionID string, release bool) error {
	return b.store.Transaction(func(st *state.State) error {
		_, err := st.EndSession(sessionID, release)
		return err
	})
}

func (b *directBackend) Status() (*state.StatusReport, error) {
	st, err := b.store.Load()
	if err != nil {
		return nil, err
	}
	return st.Status(time.Now(), ModeSingle), nil
}

func (b *directBackend) Tasks(status types.Status) ([]*types.Task, error) {
	st, err := b.store.Load()
	if err != nil {
		return nil, err
	}
	if status == "" {
		return st.Tasks, nil
	}
	return st.TasksByStatus(status), nil
}

func (b *directBackend) ParallelSummary() (*state.Summary, error) {
	st, err := b.store.Load()
	if err != nil {
		return nil, err
	}
	return st.ParallelSummary(), nil
}

func (b *directBackend) SubtaskProgress(parentID string) (*state.Progress, error) {
	st, err := b.store.Load()
	if err != nil {
		return nil, err
	}
	return st.SubtaskProgress(parentID)
}

func (b *directBackend) CreateTask(args state.CreateTaskArgs) (*types.Task, error) {
	var t *types.Task
	err := b.store.Transaction(func(st *state.State) error {
		var err error
		t, err = st.CreateTask(args)
		return err
	})
	return t, err
}

func (b *directBackend) CreateSubtask(args state.CreateSubtaskArgs) (*types.Task, error) {
	var t *types.Task
	err := b.store.Transaction(func(st *state.State) error {
		var err error
		t, err = st.CreateSubtask(args)
		return err
	})
	return t, err
}

func (b *directBackend) RequestTask(sessionID string, preferred []string) (*types.Task, error) {
	var t *types.Task
	err := b.store.Transaction(func(st *state.State) error {
		var err error
		t, err = st.RequestTask(sessionID, preferred, b.cfg.MaxConcurrent)
		return err
	})
	return t, err
}

func (b *directBackend) CompleteTask(args state.CompleteTaskArgs) (*types.Task, error) {
	args.AutoCompleteParents = b.cfg.AutoCompleteParents
	var t *types.Task
	err := b.store.Transaction(func(st *state.State) error {
		var err error
		t, err = st.CompleteTask(args)
		return err
	})
	return t, err
}

func (b *directBackend) ReopenTask(args state.ReopenTaskArgs) (*types.Task, error) {
	var t *types.Task
	err := b.store.Transaction(func(st *state.State) error {
		var err error
		t, err = st.ReopenTask(args)
		return err
	})
	return t, err
}

func (b *directBackend) EditTask(args state.EditTaskArgs) (*types.Task, error) {
	var t *types.Task
	err := b.store.Transaction(func(st *state.State) error {
		var err error
		t, err = st.EditTask(args)
		return err
	})
	return t, err
}

func (b *directBackend) DeleteTask(id, sessionID string, force bool) ([]string, error) {
	var deleted []string
	err := b.store.Transaction(func(st *state.State) error {
		var err error
		deleted, err = st.DeleteTask(id, sessionID, force)
		return err
	})
	return deleted, err
}

func (b *directBackend) AddNote(args state.AddNoteArgs) error {
	return b.store.Transaction(func(st *state.State) error {
		_, err := st.AddNote(args)
		return err
	})
}

func (b *directBackend) BulkComplete(ids []string, args state.CompleteTaskArgs) (*state.BulkResult, error) {
	args.AutoCompleteParents = b.cfg.AutoCompleteParents
	var res *state.BulkResult
	err := b.store.Transaction(func(st *state.State) error {
		res = st.BulkComplete(ids, args)
		return nil
	})
	return res, err
}

func (b *directBackend) BulkReopen(ids []string, args state.ReopenTaskArgs) (*state.BulkResult, error) {
	var res *state.BulkResult
	err := b.store.Transaction(func(st *state.State) error {
		res = st.BulkReopen(ids, args)
		return nil
	})
	return res, err
}
