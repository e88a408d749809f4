// Package tactile runs subprocesses for spectral: one process group per
// invocation, a hard wall-clock timeout, live line streaming and a
// process-tree kill when the budget runs out.
package tactile

import (
	"strings"
	"time"
)

// =============================================================================
// COMMAND SPEC
// =============================================================================

// Stream identifies which pipe a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Line is one line of live output, without its trailing newline.
type Line struct {
	Text   string
	Stream Stream
}

// Spec describes a single subprocess invocation.
type Spec struct {
	// Command is argv; Command[0] is resolved through PATH.
	Command []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Timeout is the hard wall-clock budget. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Stdin, when non-nil, is joined with newlines, written once and the
	// pipe closed. Nil leaves stdin attached to the null device.
	Stdin []string

	// LogFile receives the live output. Empty disables the live log.
	LogFile string

	// Env is appended to the parent environment.
	Env []string
}

// DefaultTimeout applies when Spec.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// DefaultMaxOutput caps each captured stream.
const DefaultMaxOutput = 10 * 1024 * 1024

func (s Spec) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return s.Timeout
}

func (s Spec) stdinPayload() string {
	return strings.Join(s.Stdin, "\n") + "\n"
}

// =============================================================================
// PROCESS RESULT
// =============================================================================

// ProcessResult is the immutable outcome of one invocation.
type ProcessResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration

	// Signal names the terminating signal, empty when the process exited.
	Signal string

	// Truncated is set when either stream exceeded the output cap.
	Truncated bool

	// Usage is nil on platforms without rusage.
	Usage *ResourceUsage
}

// TimeoutExitCode is the sentinel exit code for a killed-on-timeout run.
const TimeoutExitCode = -1

// Succeeded reports a clean, in-budget zero exit.
func (r ProcessResult) Succeeded() bool {
	return !r.TimedOut && r.ExitCode == 0
}

// Combined returns stdout followed by stderr.
func (r ProcessResult) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	if strings.HasSuffix(r.Stdout, "\n") {
		return r.Stdout + r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// ResourceUsage holds CPU accounting for a finished process.
type ResourceUsage struct {
	UserTime   time.Duration
	SystemTime time.Duration
}
