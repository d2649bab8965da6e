//go:build !windows

package client

import (
	"os"
	"os/exec"
	"syscall"
)

// detachProcess puts the coordinator in its own session so signals aimed
// at the agent's terminal never reach it.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func sendStopSignal(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
