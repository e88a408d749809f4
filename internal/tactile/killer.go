package tactile

import (
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"

	"spectral/internal/logging"
)

// TreeKiller terminates a process and all of its descendants.
type TreeKiller interface {
	KillTree(pid int) error
	Name() string
}

// ProbeTreeKiller picks the introspection killer when the process table can
// be read on this host, otherwise the platform command fallback.
func ProbeTreeKiller() TreeKiller {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if _, err = self.Ppid(); err == nil {
			logging.ProcessDebug("tree killer: introspection")
			return introspectionKiller{}
		}
	}
	logging.ProcessWarn("process introspection unavailable (%v), using platform fallback", err)
	return platformKiller{}
}

// introspectionKiller enumerates descendants through the process table and
// kills them leaves first, then the root.
type introspectionKiller struct{}

func (introspectionKiller) Name() string { return "introspection" }

func (introspectionKiller) KillTree(pid int) error {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		// Already gone; still sweep the group for orphans.
		signalGroup(pid)
		return nil
	}

	descendants := collectDescendants(root)

	var errs []error
	for i := len(descendants) - 1; i >= 0; i-- {
		if err := descendants[i].Kill(); err != nil && !isGone(err) {
			errs = append(errs, fmt.Errorf("kill pid %d: %w", descendants[i].Pid, err))
		}
	}
	if err := root.Kill(); err != nil && !isGone(err) {
		errs = append(errs, fmt.Errorf("kill pid %d: %w", pid, err))
	}

	// Children reparented before the snapshot are still in the group.
	signalGroup(pid)

	return errors.Join(errs...)
}

// collectDescendants returns the tree below p in breadth-first order.
func collectDescendants(p *process.Process) []*process.Process {
	var out []*process.Process
	queue := []*process.Process{p}
	seen := map[int32]bool{p.Pid: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children, err := cur.Children()
		if err != nil {
			continue
		}
		for _, c := range children {
			if seen[c.Pid] {
				continue
			}
			seen[c.Pid] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

func isGone(err error) bool {
	return errors.Is(err, process.ErrorProcessNotRunning) || errors.Is(err, os.ErrProcessDone) || isNoSuchProcess(err)
}
