// Package coordinator serves the parallel-mode HTTP API. A single process
// holds the state directory lock for its whole lifetime, keeps the backlog
// in memory, and serializes every mutation behind one mutex. History
// records append synchronously at mutation time; tasks.json and the
// session files flush on a timer, at most once per flush interval.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"claudia/internal/config"
	"claudia/internal/errs"
	"claudia/internal/lockfile"
	"claudia/internal/state"
	"claudia/internal/store"
	"claudia/internal/telemetry"
)

// shutdownGrace bounds how long in-flight requests may drain on shutdown.
const shutdownGrace = 5 * time.Second

// Server is the coordinator process. Construct with New, then call Run;
// Run blocks until the context is cancelled or the server fails.
type Server struct {
	store    *store.Store
	cfg      config.Settings
	main     string
	notifier *Notifier
	metrics  *telemetry.CoordinatorMetrics

	mu    sync.Mutex
	st    *state.State
	dirty bool

	httpServer *http.Server
	listener   net.Listener
	stop       context.CancelFunc
}

// New builds a coordinator over the given store. mainSession is recorded
// in the sentinel file so clients know which session spawned the run.
func New(st *store.Store, cfg config.Settings, mainSession string) *Server {
	return &Server{
		store:    st,
		cfg:      cfg,
		main:     mainSession,
		notifier: NewNotifier(),
		metrics:  telemetry.NewCoordinatorMetrics(),
		stop:     func() {},
	}
}

// Notifier exposes the state-change feed for in-process observers.
func (s *Server) Notifier() *Notifier { return s.notifier }

// Run acquires the state directory lock, loads the backlog, writes the
// runtime files and serves until ctx is cancelled. On a graceful stop the
// final state is flushed and the sentinel and pid files are removed.
func (s *Server) Run(ctx context.Context) error {
	lock, err := lockfile.TryAcquire(s.store.LockPath())
	if err != nil {
		return errs.Wrap(errs.KindConflict, "state directory already in use", err)
	}
	defer func() { _ = lock.Release() }()

	st, err := s.store.Load()
	if err != nil {
		return err
	}
	s.st = st

	s.httpServer = &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.listener, err = net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.cfg.Port))
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "bind coordinator port", err)
	}

	port := s.listener.Addr().(*net.TCPAddr).Port
	if err := s.store.WritePID(os.Getpid()); err != nil {
		_ = s.listener.Close()
		return err
	}
	sentinel := store.Sentinel{Port: port, MainSession: s.main, StartedAt: time.Now()}
	if err := s.store.WriteSentinel(sentinel); err != nil {
		_ = s.listener.Close()
		_ = s.store.ClearRuntimeFiles()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.stop = cancel

	slog.Info("coordinator listening",
		"addr", s.listener.Addr().String(),
		"state_dir", s.store.Dir(),
		"main_session", s.main)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return s.flushLoop(gctx) })
	g.Go(func() error { return s.cleanupLoop(gctx) })
	err = g.Wait()

	if ferr := s.flush(); ferr != nil && err == nil {
		err = ferr
	}
	if cerr := s.store.ClearRuntimeFiles(); cerr != nil && err == nil {
		err = cerr
	}
	slog.Info("coordinator stopped")
	return err
}

// flushLoop persists dirty in-memory state once per flush interval.
func (s *Server) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.flush(); err != nil {
				slog.Error("flush failed", "error", err)
			}
		}
	}
}

func (s *Server) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := s.store.Persist(s.st); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// cleanupLoop ends sessions whose heartbeat lapsed past the threshold.
func (s *Server) cleanupLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *Server) runCleanup() {
	s.mu.Lock()
	stale := s.st.CleanupStale(s.cfg.CleanupThreshold)
	var err error
	if len(stale) > 0 {
		err = s.commitLocked()
	}
	empty := len(s.st.Sessions) == 0
	s.mu.Unlock()

	if err != nil {
		slog.Error("cleanup commit failed", "error", err)
	}
	if len(stale) > 0 {
		slog.Info("cleaned up stale sessions", "sessions", stale)
		s.maybeAutoShutdown(empty)
	}
}

// mutate runs op under the state mutex and commits its history records.
// The backlog stays dirty until the next flush tick.
func (s *Server) mutate(op func(*state.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := op(s.st); err != nil {
		return err
	}
	return s.commitLocked()
}

// commitLocked records a completed mutation: history lines append now,
// everything else waits for the flush loop. Callers hold s.mu.
func (s *Server) commitLocked() error {
	if err := s.store.AppendEvents(s.st.DrainEvents()); err != nil {
		return err
	}
	s.dirty = true
	s.notifier.Notify()
	return nil
}

// maybeAutoShutdown begins a graceful stop when the last session is gone
// and the auto_shutdown setting is on.
func (s *Server) maybeAutoShutdown(empty bool) {
	if !s.cfg.AutoShutdown || !empty {
		return
	}
	slog.Info("last session ended, shutting down")
	s.stop()
}
