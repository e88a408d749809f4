// Package monitor executes plan steps and reports their output line by line
// while the process is still running, so failures surface before exit.
package monitor

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spectral/internal/injector"
	"spectral/internal/logging"
	"spectral/internal/tactile"
	"spectral/internal/tactile/python"
	"spectral/internal/types"
)

// OutputLine is one line of step output.
type OutputLine struct {
	Text    string
	Stream  tactile.Stream
	IsError bool
	// Diagnostic is set on lines the monitor produces itself rather than
	// reads from the process.
	Diagnostic string
}

// Monitor runs steps through the process controller.
type Monitor struct {
	ctrl      *tactile.Controller
	toolchain *python.Toolchain
	tempDir   string
	logDir    string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithTempDir sets where step scripts are written. Defaults to os.TempDir.
func WithTempDir(dir string) Option {
	return func(m *Monitor) { m.tempDir = dir }
}

// WithLogDir enables a live log per step execution.
func WithLogDir(dir string) Option {
	return func(m *Monitor) { m.logDir = dir }
}

// New creates a monitor.
func New(ctrl *tactile.Controller, toolchain *python.Toolchain, opts ...Option) *Monitor {
	m := &Monitor{ctrl: ctrl, toolchain: toolchain}
	for _, opt := range opts {
		opt(m)
	}
	logging.Monitor("Execution monitor initialized (python=%s)", toolchain.Interpreter())
	return m
}

// ExecuteStep returns the output of one execution of step. Each range over
// the sequence runs the step again; breaking out early kills the process and
// removes any temporary script.
func (m *Monitor) ExecuteStep(ctx context.Context, step *types.Step) iter.Seq[OutputLine] {
	return func(yield func(OutputLine) bool) {
		timeout := step.EffectiveTimeout()
		logging.Monitor("Executing step %d: %s", step.Number, step.Description)

		switch {
		case strings.TrimSpace(step.Code) != "":
			m.runCode(ctx, step, timeout, yield)
		case len(step.Command) > 0:
			m.stream(ctx, tactile.Spec{
				Command: step.Command,
				Timeout: timeout,
				LogFile: m.logFile(step),
			}, yield)
		default:
			msg := fmt.Sprintf("Step %d has no code or command to execute", step.Number)
			logging.Get(logging.CategoryMonitor).Error("%s", msg)
			yield(OutputLine{Text: msg, Stream: tactile.StreamStderr, IsError: true, Diagnostic: msg})
		}
	}
}

func (m *Monitor) runCode(ctx context.Context, step *types.Step, timeout time.Duration, yield func(OutputLine) bool) {
	code := injector.InjectPrompts(step.Code)

	f, err := os.CreateTemp(m.tempDir, fmt.Sprintf("spectral-step%d-*.py", step.Number))
	if err != nil {
		msg := fmt.Sprintf("Error: failed to write step script: %v", err)
		yield(OutputLine{Text: msg, Stream: tactile.StreamStderr, IsError: true, Diagnostic: msg})
		return
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.MonitorWarn("failed to remove %s: %v", path, err)
		}
	}()

	_, werr := f.WriteString(code)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		msg := fmt.Sprintf("Error: failed to write step script: %v", werr)
		yield(OutputLine{Text: msg, Stream: tactile.StreamStderr, IsError: true, Diagnostic: msg})
		return
	}

	spec := tactile.Spec{
		Command: m.toolchain.ScriptCommand(path),
		Dir:     filepath.Dir(path),
		Timeout: timeout,
		LogFile: m.logFile(step),
	}
	if injector.CountInputCalls(code) > 0 {
		spec.Stdin = SyntheticInputs(injector.Prompts(code))
		logging.MonitorDebug("step %d is interactive, feeding %d synthetic input(s)", step.Number, len(spec.Stdin))
	}
	m.stream(ctx, spec, yield)
}

func (m *Monitor) stream(ctx context.Context, spec tactile.Spec, yield func(OutputLine) bool) {
	p, err := m.ctrl.Start(ctx, spec)
	if err != nil {
		msg := "Error: " + err.Error()
		yield(OutputLine{Text: msg, Stream: tactile.StreamStderr, IsError: true, Diagnostic: msg})
		return
	}
	defer func() {
		p.Stop()
		p.Wait()
	}()

	sawError := false
	for l := range p.Lines() {
		ol := OutputLine{
			Text:    l.Text,
			Stream:  l.Stream,
			IsError: l.Stream == tactile.StreamStderr || IsErrorLine(l.Text),
		}
		if ol.IsError {
			sawError = true
			logging.MonitorDebug("%s: %s", l.Stream, l.Text)
		}
		if !yield(ol) {
			return
		}
	}

	res := p.Wait()
	switch {
	case res.TimedOut:
		msg := fmt.Sprintf("Timeout after %s", spec.Timeout)
		logging.MonitorWarn("%s", msg)
		yield(OutputLine{Text: msg, Stream: tactile.StreamStderr, IsError: true, Diagnostic: msg})
	case res.ExitCode != 0 && !sawError:
		msg := fmt.Sprintf("Process exited with code %d", res.ExitCode)
		logging.MonitorWarn("%s", msg)
		yield(OutputLine{Text: msg, Stream: tactile.StreamStderr, IsError: true, Diagnostic: msg})
	default:
		logging.Monitor("Process exited with code %d", res.ExitCode)
	}
}

func (m *Monitor) logFile(step *types.Step) string {
	if m.logDir == "" {
		return ""
	}
	return filepath.Join(m.logDir, fmt.Sprintf("step_%d_%d.log", step.Number, time.Now().UnixNano()))
}
