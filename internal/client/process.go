package client

import (
	"context"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"claudia/internal/errs"
	"claudia/internal/lockfile"
	"claudia/internal/store"
	"claudia/internal/types"
)

const (
	startPollAttempts = 10
	startPollDelay    = 500 * time.Millisecond
	stopPollAttempts  = 4
	stopPollDelay     = 500 * time.Millisecond
)

// StartParallel spawns a detached coordinator for this state directory
// and waits for it to answer. The calling session is re-registered
// through the coordinator as the main session. Starting when a
// coordinator is already up returns its sentinel unchanged.
func (a *Agent) StartParallel(ctx context.Context) (*store.Sentinel, error) {
	if a.backend.Mode() == ModeParallel {
		if sn, err := a.store.ReadSentinel(); err == nil {
			return sn, nil
		}
	}
	if a.staleSentinel {
		if err := a.CleanStaleSentinel(); err != nil {
			return nil, err
		}
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "locate executable", err)
	}
	cmd := exec.Command(exe, "coordinator", "run",
		"--state-dir", a.store.Dir(),
		"--main-session", a.opts.SessionID)
	detachProcess(cmd)
	if err := cmd.Start(); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "spawn coordinator", err)
	}
	// The coordinator outlives this process; let it run unreaped.
	_ = cmd.Process.Release()

	sn, err := a.waitForCoordinator(ctx)
	if err != nil {
		_ = a.store.ClearRuntimeFiles()
		return nil, err
	}

	a.refresh()
	a.opts.Role = types.RoleMain
	if _, err := a.Register(); err != nil {
		return nil, err
	}
	return sn, nil
}

// waitForCoordinator polls for the sentinel and a listening port.
func (a *Agent) waitForCoordinator(ctx context.Context) (*store.Sentinel, error) {
	for i := 0; i < startPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.KindUnavailable, "waiting for coordinator", ctx.Err())
		case <-time.After(startPollDelay):
		}
		sn, err := a.store.ReadSentinel()
		if err != nil {
			continue
		}
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(sn.Port))
		conn, err := net.DialTimeout("tcp", addr, startPollDelay)
		if err != nil {
			continue
		}
		conn.Close()
		return sn, nil
	}
	return nil, errs.Unavailablef("coordinator did not come up within %s",
		time.Duration(startPollAttempts)*startPollDelay)
}

// StopParallel shuts the coordinator down, escalating from the polite
// stop signal to a kill if it lingers, then clears whatever runtime
// files a forced kill left behind.
func (a *Agent) StopParallel() error {
	pid, err := a.store.ReadPID()
	if err == nil && lockfile.IsProcessRunning(pid) {
		if proc, ferr := os.FindProcess(pid); ferr == nil {
			_ = sendStopSignal(proc)
			for i := 0; i < stopPollAttempts; i++ {
				time.Sleep(stopPollDelay)
				if !lockfile.IsProcessRunning(pid) {
					break
				}
			}
			if lockfile.IsProcessRunning(pid) {
				_ = proc.Kill()
			}
		}
	}
	if err := a.store.ClearRuntimeFiles(); err != nil {
		return err
	}
	a.refresh()
	return nil
}

// CleanStaleSentinel removes runtime files left behind by a coordinator
// that died without cleaning up.
func (a *Agent) CleanStaleSentinel() error {
	if !a.staleSentinel {
		return nil
	}
	if err := a.store.ClearRuntimeFiles(); err != nil {
		return err
	}
	a.refresh()
	return nil
}
