//go:build windows

package tactile

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// setupProcessGroup starts the child in a new console process group so
// console control events do not propagate back to spectral.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
	// Hide window for console processes
	cmd.SysProcAttr.HideWindow = true
}

// platformKiller uses taskkill to terminate the process tree.
type platformKiller struct{}

func (platformKiller) Name() string { return "taskkill" }

func (platformKiller) KillTree(pid int) error {
	killCmd := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid))
	killCmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if err := killCmd.Run(); err != nil {
		// Fall back to direct kill
		p, ferr := os.FindProcess(pid)
		if ferr != nil {
			return err
		}
		return p.Kill()
	}
	return nil
}

// signalGroup has no group signal on windows; taskkill /T covers the tree.
func signalGroup(pid int) {}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}

func signalName(state *os.ProcessState) string { return "" }

func resourceUsage(state *os.ProcessState) *ResourceUsage { return nil }
