//go:build !windows

package tactile

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// setupProcessGroup configures the command to run in its own process group.
// This allows killing all child processes when the parent is terminated.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// platformKiller signals the whole process group.
type platformKiller struct{}

func (platformKiller) Name() string { return "process-group" }

func (platformKiller) KillTree(pid int) error {
	pgid, err := syscall.Getpgid(pid)
	if err == nil && pgid > 0 {
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && !isNoSuchProcess(err) {
			// If SIGKILL to group fails, try SIGTERM first
			_ = syscall.Kill(-pgid, syscall.SIGTERM)
		}
	}

	// Also kill the main process directly as a fallback
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !isNoSuchProcess(err) {
		return err
	}
	return nil
}

// signalGroup is a best-effort SIGKILL to the group led by pid.
func signalGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}

// signalName reports the terminating signal, if any.
func signalName(state *os.ProcessState) string {
	if state == nil {
		return ""
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return ws.Signal().String()
}

// resourceUsage extracts CPU accounting on Unix systems.
func resourceUsage(state *os.ProcessState) *ResourceUsage {
	if state == nil {
		return nil
	}
	rusage, ok := state.SysUsage().(*syscall.Rusage)
	if !ok || rusage == nil {
		return nil
	}
	return &ResourceUsage{
		UserTime:   time.Duration(rusage.Utime.Nano()),
		SystemTime: time.Duration(rusage.Stime.Nano()),
	}
}
