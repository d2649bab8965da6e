//go:build windows

package client

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// detachProcess starts the coordinator in its own process group with no
// console window. The separate group is what makes CTRL_BREAK delivery
// in sendStopSignal target only the coordinator.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}

// sendStopSignal asks the coordinator to shut down. SIGTERM is not a
// thing on Windows; CTRL_BREAK_EVENT reaches the coordinator's group and
// surfaces as os.Interrupt in its signal handler.
func sendStopSignal(p *os.Process) error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(p.Pid))
}
