package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"claudia/internal/config"
	"claudia/internal/errs"
	"claudia/internal/lockfile"
	"claudia/internal/state"
	"claudia/internal/store"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type liveCoordinator struct {
	srv  *Server
	sto  *store.Store
	base string
	stop context.CancelFunc
	done chan error
}

// startCoordinator runs a real coordinator and waits until its sentinel
// names a port that answers /status.
func startCoordinator(t *testing.T, cfg config.Settings) *liveCoordinator {
	t.Helper()
	sto, err := store.Open(t.TempDir(), cfg.LockTimeout)
	if err != nil {
		t.Fatal(err)
	}
	srv := New(sto, cfg, "main-1")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lc := &liveCoordinator{srv: srv, sto: sto, stop: cancel, done: make(chan error, 1)}
	go func() { lc.done <- srv.Run(ctx) }()

	waitFor(t, "coordinator to come up", func() bool {
		sn, err := sto.ReadSentinel()
		if err != nil {
			return false
		}
		lc.base = fmt.Sprintf("http://127.0.0.1:%d", sn.Port)
		resp, err := http.Get(lc.base + "/status")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})
	return lc
}

func (lc *liveCoordinator) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-lc.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop")
		return nil
	}
}

func postTo(t *testing.T, base, path string, body map[string]any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(base+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func getTo(t *testing.T, base, path string, out any) int {
	t.Helper()
	resp, err := http.Get(base + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe()

	if v := n.Notify(); v != 1 {
		t.Fatalf("first version = %d, want 1", v)
	}
	select {
	case got := <-ch:
		if got != 1 {
			t.Errorf("received version %d, want 1", got)
		}
	default:
		t.Fatal("no notification delivered")
	}

	// A stalled subscriber drops versions instead of blocking the sender.
	for i := 0; i < subscriberBuffer+10; i++ {
		n.Notify()
	}
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", got, subscriberBuffer)
	}
	if v := n.Version(); v != uint64(subscriberBuffer+11) {
		t.Errorf("Version = %d, want %d", v, subscriberBuffer+11)
	}

	cancel()
	n.Notify()
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered after cancel = %d, want %d", got, subscriberBuffer)
	}
}

func TestNotifierSeesMutations(t *testing.T) {
	f := newFixture(t)
	ch, cancel := f.srv.Notifier().Subscribe()
	defer cancel()

	f.create(t, map[string]any{"title": "observed"})

	select {
	case v := <-ch:
		if v == 0 {
			t.Errorf("version = %d, want > 0", v)
		}
	default:
		t.Fatal("mutation did not notify subscribers")
	}
}

func TestRunLifecycle(t *testing.T) {
	cfg := testSettings()
	cfg.FlushInterval = 20 * time.Millisecond
	lc := startCoordinator(t, cfg)

	sn, err := lc.sto.ReadSentinel()
	if err != nil {
		t.Fatal(err)
	}
	if sn.MainSession != "main-1" || sn.Port == 0 {
		t.Errorf("sentinel = %+v", sn)
	}
	pid, err := lc.sto.ReadPID()
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid file = %d, want %d", pid, os.Getpid())
	}

	if code := postTo(t, lc.base, "/task/create", map[string]any{"title": "persisted"}); code != http.StatusOK {
		t.Fatalf("create over live server = %d", code)
	}
	waitFor(t, "flush to disk", func() bool {
		st, err := lc.sto.Load()
		return err == nil && len(st.Tasks) == 1
	})

	lc.stop()
	if err := lc.wait(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if _, err := lc.sto.ReadSentinel(); !errs.Is(err, errs.KindNotFound) {
		t.Errorf("sentinel after stop: %v, want not_found", err)
	}
	if _, err := lc.sto.ReadPID(); !errs.Is(err, errs.KindNotFound) {
		t.Errorf("pid file after stop: %v, want not_found", err)
	}
	lock, err := lockfile.TryAcquire(lc.sto.LockPath())
	if err != nil {
		t.Fatalf("lock still held after stop: %v", err)
	}
	_ = lock.Release()
}

func TestRunRefusesSecondCoordinator(t *testing.T) {
	cfg := testSettings()
	sto, err := store.Open(t.TempDir(), cfg.LockTimeout)
	if err != nil {
		t.Fatal(err)
	}
	lock, err := lockfile.TryAcquire(sto.LockPath())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lock.Release() }()

	err = New(sto, cfg, "main-2").Run(context.Background())
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("Run with held lock = %v, want conflict", err)
	}
}

func TestRunRejectsCorruptStore(t *testing.T) {
	cfg := testSettings()
	dir := t.TempDir()
	sto, err := store.Open(dir, cfg.LockTimeout)
	if err != nil {
		t.Fatal(err)
	}
	old := []byte(`{"version": 1, "next_id": 1, "tasks": []}` + "\n")
	if err := os.WriteFile(filepath.Join(dir, "tasks.json"), old, 0644); err != nil {
		t.Fatal(err)
	}

	err = New(sto, cfg, "main-1").Run(context.Background())
	if !errs.Is(err, errs.KindInternal) {
		t.Fatalf("Run over old schema = %v, want internal", err)
	}
}

func TestAutoShutdownOnLastSessionEnd(t *testing.T) {
	cfg := testSettings()
	cfg.AutoShutdown = true
	lc := startCoordinator(t, cfg)

	if code := postTo(t, lc.base, "/session/register", map[string]any{"session_id": "w1"}); code != http.StatusOK {
		t.Fatalf("register = %d", code)
	}
	if code := postTo(t, lc.base, "/session/end", map[string]any{"session_id": "w1"}); code != http.StatusOK {
		t.Fatalf("end = %d", code)
	}

	if err := lc.wait(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if _, err := lc.sto.ReadSentinel(); !errs.Is(err, errs.KindNotFound) {
		t.Errorf("sentinel after auto-shutdown: %v, want not_found", err)
	}
}

func TestCleanupReleasesStaleSessions(t *testing.T) {
	cfg := testSettings()
	cfg.CleanupInterval = 20 * time.Millisecond
	cfg.CleanupThreshold = 150 * time.Millisecond
	lc := startCoordinator(t, cfg)

	if code := postTo(t, lc.base, "/session/register", map[string]any{"session_id": "w1"}); code != http.StatusOK {
		t.Fatalf("register = %d", code)
	}
	if code := postTo(t, lc.base, "/task/create", map[string]any{"title": "abandoned"}); code != http.StatusOK {
		t.Fatalf("create = %d", code)
	}
	if code := postTo(t, lc.base, "/task/request", map[string]any{"session_id": "w1"}); code != http.StatusOK {
		t.Fatalf("request = %d", code)
	}

	// No heartbeats arrive, so the cleanup loop must end the session.
	waitFor(t, "stale session cleanup", func() bool {
		var report state.StatusReport
		return getTo(t, lc.base, "/status", &report) == http.StatusOK && report.ActiveSessions == 0
	})

	var open struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	if code := getTo(t, lc.base, "/tasks?status=open", &open); code != http.StatusOK {
		t.Fatalf("tasks = %d", code)
	}
	if len(open.Tasks) != 1 {
		t.Errorf("open tasks after cleanup = %d, want 1 (claim released)", len(open.Tasks))
	}
}
