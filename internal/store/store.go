// Package store gives the workspace durable form: one state directory
// holding the task backlog, per-session registry files, saved templates and
// the append-only history and archive logs.
//
// Two access patterns share the layout. Single mode wraps every mutation in
// Transaction, which holds the advisory lock for the full load-mutate-persist
// cycle. The coordinator instead takes the lock once for its lifetime and
// drives Load and Persist directly.
package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"claudia/internal/errs"
	"claudia/internal/lockfile"
	"claudia/internal/state"
	"claudia/internal/types"
)

// File names inside the state directory.
const (
	tasksFile     = "tasks.json"
	templatesFile = "templates.json"
	historyFile   = "history.jsonl"
	archiveFile   = "archive.jsonl"
	sessionsDir   = "sessions"
	lockFile      = ".lock"
	modeFile      = ".parallel-mode"
	pidFile       = "coordinator.pid"
)

// templatesVersion is the templates.json format in use.
const templatesVersion = 1

// tasksDoc is the on-disk shape of tasks.json.
type tasksDoc struct {
	Version int           `json:"version"`
	NextID  int           `json:"next_id"`
	Tasks   []*types.Task `json:"tasks"`
}

// templatesDoc is the on-disk shape of templates.json.
type templatesDoc struct {
	Version   int               `json:"version"`
	Templates []*types.Template `json:"templates"`
}

// Store is durable custody of one state directory.
type Store struct {
	dir         string
	lockTimeout time.Duration
}

// Open ensures the state directory layout exists and returns a Store over it.
func Open(dir string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, sessionsDir), 0755); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "create state directory", err)
	}
	return &Store{dir: dir, lockTimeout: lockTimeout}, nil
}

// Dir returns the state directory path.
func (s *Store) Dir() string { return s.dir }

// LockPath returns the advisory lock file guarding transactions.
func (s *Store) LockPath() string { return filepath.Join(s.dir, lockFile) }

func (s *Store) tasksPath() string     { return filepath.Join(s.dir, tasksFile) }
func (s *Store) templatesPath() string { return filepath.Join(s.dir, templatesFile) }
func (s *Store) historyPath() string   { return filepath.Join(s.dir, historyFile) }
func (s *Store) archivePath() string   { return filepath.Join(s.dir, archiveFile) }

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.dir, sessionsDir, id+".json")
}

// Transaction runs fn with exclusive custody of the workspace: lock, load,
// mutate, validate, persist. Any error from fn or from validation aborts
// with the on-disk state untouched.
func (s *Store) Transaction(fn func(*state.State) error) error {
	lock, err := lockfile.Acquire(s.LockPath(), s.lockTimeout)
	if err != nil {
		if errors.Is(err, lockfile.ErrTimeout) {
			return errs.LockTimeoutf("state directory locked for more than %s", s.lockTimeout)
		}
		return errs.Wrap(errs.KindInternal, "acquire state lock", err)
	}
	defer lock.Release()

	st, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	if err := st.Validate(); err != nil {
		return err
	}
	return s.Persist(st)
}

// Load reads a full snapshot. Atomic renames guarantee that a lock-free
// reader sees either the pre- or post-state of any concurrent commit, so
// read-only callers may use this without the lock; writers call it under
// Transaction or while holding the lock themselves.
func (s *Store) Load() (*state.State, error) {
	st := state.New()
	if err := s.loadTasks(st); err != nil {
		return nil, err
	}
	st.Reindex()
	if err := s.loadSessions(st); err != nil {
		return nil, err
	}
	if err := s.loadTemplates(st); err != nil {
		return nil, err
	}
	st.RepairSessions()
	return st, nil
}

// Persist writes the snapshot back to disk. The caller must hold the state
// lock. tasks.json commits first; archive and history lines follow, so the
// logs never lead the backlog.
func (s *Store) Persist(st *state.State) error {
	if err := s.saveTasks(st); err != nil {
		return err
	}
	if err := s.syncSessions(st); err != nil {
		return err
	}
	if st.TemplatesDirty() {
		if err := s.saveTemplates(st); err != nil {
			return err
		}
		st.ClearTemplatesDirty()
	}
	if archived := st.DrainArchived(); len(archived) > 0 {
		if err := s.appendArchive(archived); err != nil {
			return err
		}
	}
	return s.AppendEvents(st.DrainEvents())
}

func (s *Store) loadTasks(st *state.State) error {
	data, err := os.ReadFile(s.tasksPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // fresh workspace
		}
		return errs.Wrap(errs.KindInternal, "read tasks.json", err)
	}
	var doc tasksDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return errs.Internalf("parse tasks.json: %v", err)
	}
	if doc.Version != state.SchemaVersion {
		return errs.Internalf("tasks.json is schema version %d, this build reads version %d", doc.Version, state.SchemaVersion)
	}
	for _, t := range doc.Tasks {
		t.SetDefaults()
	}
	st.Tasks = doc.Tasks
	st.NextID = doc.NextID
	if st.NextID < 1 {
		st.NextID = 1
	}
	return nil
}

func (s *Store) saveTasks(st *state.State) error {
	doc := tasksDoc{Version: state.SchemaVersion, NextID: st.NextID, Tasks: st.Tasks}
	if doc.Tasks == nil {
		doc.Tasks = []*types.Task{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindInternal, "encode tasks.json", err)
	}
	if err := writeFileAtomic(s.tasksPath(), append(data, '\n')); err != nil {
		return errs.Wrap(errs.KindInternal, "write tasks.json", err)
	}
	return nil
}

func (s *Store) loadSessions(st *state.State) error {
	dir := filepath.Join(s.dir, sessionsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errs.Wrap(errs.KindInternal, "scan sessions directory", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return errs.Wrap(errs.KindInternal, "read session file "+name, err)
		}
		var sess types.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			slog.Warn("skipping unreadable session file", "file", name, "error", err)
			continue
		}
		if sess.SessionID == "" {
			sess.SessionID = strings.TrimSuffix(name, ".json")
		}
		if sess.Role == "" {
			sess.Role = types.RoleWorker
		}
		st.Sessions[sess.SessionID] = &sess
	}
	return nil
}

// syncSessions makes the sessions directory mirror the registry: one file
// per live session, files for ended sessions removed.
func (s *Store) syncSessions(st *state.State) error {
	dir := filepath.Join(s.dir, sessionsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrap(errs.KindInternal, "create sessions directory", err)
	}
	for id, sess := range st.Sessions {
		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			return errs.Wrap(errs.KindInternal, "encode session "+id, err)
		}
		if err := writeFileAtomic(s.sessionPath(id), append(data, '\n')); err != nil {
			return errs.Wrap(errs.KindInternal, "write session "+id, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "scan sessions directory", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, live := st.Sessions[strings.TrimSuffix(name, ".json")]; live {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errs.Wrap(errs.KindInternal, "remove session file "+name, err)
		}
	}
	return nil
}

func (s *Store) loadTemplates(st *state.State) error {
	data, err := os.ReadFile(s.templatesPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errs.Wrap(errs.KindInternal, "read templates.json", err)
	}
	var doc templatesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return errs.Internalf("parse templates.json: %v", err)
	}
	if doc.Version > templatesVersion {
		return errs.Internalf("templates.json is format version %d, this build reads version %d", doc.Version, templatesVersion)
	}
	st.Templates = doc.Templates
	return nil
}

func (s *Store) saveTemplates(st *state.State) error {
	doc := templatesDoc{Version: templatesVersion, Templates: st.Templates}
	if doc.Templates == nil {
		doc.Templates = []*types.Template{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindInternal, "encode templates.json", err)
	}
	if err := writeFileAtomic(s.templatesPath(), append(data, '\n')); err != nil {
		return errs.Wrap(errs.KindInternal, "write templates.json", err)
	}
	return nil
}

// writeFileAtomic replaces path through a temp file in the same directory,
// so a concurrent reader sees the old or the new content, never a torn
// write.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp) // no-op once renamed
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	_ = f.Sync() // best effort; the rename below is the commit point
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
