package tactile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spectral/internal/logging"
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller spawns subprocesses with a hard timeout and kills the whole
// process tree when the budget is exceeded.
type Controller struct {
	killer    TreeKiller
	maxOutput int64
	logDir    string
}

// Option configures a Controller.
type Option func(*Controller)

// WithTreeKiller overrides the probed tree killer.
func WithTreeKiller(k TreeKiller) Option {
	return func(c *Controller) { c.killer = k }
}

// WithMaxOutput caps each captured stream.
func WithMaxOutput(n int64) Option {
	return func(c *Controller) { c.maxOutput = n }
}

// WithLogDir gives Run and RunWithStdin a default live log location.
func WithLogDir(dir string) Option {
	return func(c *Controller) { c.logDir = dir }
}

// NewController creates a controller. The tree killer is selected by
// capability probing unless overridden.
func NewController(opts ...Option) *Controller {
	c := &Controller{maxOutput: DefaultMaxOutput}
	for _, opt := range opts {
		opt(c)
	}
	if c.killer == nil {
		c.killer = ProbeTreeKiller()
	}
	logging.Process("Controller initialized (tree killer: %s)", c.killer.Name())
	return c
}

// Killer returns the active tree killer.
func (c *Controller) Killer() TreeKiller { return c.killer }

// Run executes command in dir under timeout and captures its output.
func (c *Controller) Run(ctx context.Context, command []string, dir string, timeout time.Duration) ProcessResult {
	return c.Exec(ctx, Spec{Command: command, Dir: dir, Timeout: timeout, LogFile: c.defaultLogFile(command)})
}

// RunWithStdin is Run with a newline-joined payload written to stdin, which
// is closed before output is read.
func (c *Controller) RunWithStdin(ctx context.Context, command []string, stdin []string, dir string, timeout time.Duration) ProcessResult {
	if stdin == nil {
		stdin = []string{}
	}
	return c.Exec(ctx, Spec{Command: command, Dir: dir, Timeout: timeout, Stdin: stdin, LogFile: c.defaultLogFile(command)})
}

// Exec runs spec to completion, discarding the live line stream.
// Start failures are folded into the result; Exec never returns an error.
func (c *Controller) Exec(ctx context.Context, spec Spec) ProcessResult {
	p, err := c.Start(ctx, spec)
	if err != nil {
		logging.ProcessError("failed to start %v: %v", spec.Command, err)
		return ProcessResult{ExitCode: -1, Stderr: err.Error()}
	}
	for range p.Lines() {
	}
	return p.Wait()
}

func (c *Controller) defaultLogFile(command []string) string {
	if c.logDir == "" || len(command) == 0 {
		return ""
	}
	name := fmt.Sprintf("%s-%d.log", filepath.Base(command[0]), time.Now().UnixNano())
	return filepath.Join(c.logDir, name)
}

// =============================================================================
// PROCESS
// =============================================================================

// Process is a running subprocess. Lines must be drained (or Stop called)
// for the process to be reaped.
type Process struct {
	spec    Spec
	cmd     *exec.Cmd
	killer  TreeKiller
	lines   chan Line
	done    chan struct{}
	abandon chan struct{}
	stopped sync.Once
	start   time.Time
	result  ProcessResult

	stdout *limitedBuffer
	stderr *limitedBuffer

	logMu sync.Mutex
	log   *os.File
}

// Start spawns spec and returns immediately. Output is delivered on Lines;
// Wait blocks for the final result.
func (c *Controller) Start(ctx context.Context, spec Spec) (*Process, error) {
	if len(spec.Command) == 0 {
		return nil, errors.New("empty command")
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	setupProcessGroup(cmd)

	if spec.Stdin != nil {
		cmd.Stdin = strings.NewReader(spec.stdinPayload())
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	p := &Process{
		spec:    spec,
		cmd:     cmd,
		killer:  c.killer,
		lines:   make(chan Line, 256),
		done:    make(chan struct{}),
		abandon: make(chan struct{}),
		stdout:  newLimitedBuffer(c.maxOutput),
		stderr:  newLimitedBuffer(c.maxOutput),
	}

	if spec.LogFile != "" {
		if err := p.openLog(); err != nil {
			logging.ProcessWarn("live log disabled: %v", err)
		}
	}

	logging.Process("Running subprocess: %s (dir=%q, timeout=%s)", strings.Join(spec.Command, " "), spec.Dir, spec.timeout())
	p.start = time.Now()
	if err := cmd.Start(); err != nil {
		p.closeLog()
		return nil, fmt.Errorf("start %s: %w", spec.Command[0], err)
	}

	go p.supervise(ctx, stdoutPipe, stderrPipe)
	return p, nil
}

// Lines delivers output as it is produced. Closed when both pipes are drained.
func (p *Process) Lines() <-chan Line { return p.lines }

// Pid returns the OS process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Wait blocks until the process has exited and its output is drained.
func (p *Process) Wait() ProcessResult {
	<-p.done
	return p.result
}

// Stop kills the tree and stops line delivery. Safe to call repeatedly and
// after exit.
func (p *Process) Stop() {
	p.stopped.Do(func() {
		close(p.abandon)
		select {
		case <-p.done:
		default:
			p.kill("stopped by caller")
		}
	})
}

func (p *Process) supervise(ctx context.Context, stdout, stderr io.ReadCloser) {
	defer close(p.done)

	execCtx, cancel := context.WithTimeout(ctx, p.spec.timeout())
	defer cancel()

	var timedOut bool
	exited := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-execCtx.Done():
			if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
				timedOut = true
				p.kill(fmt.Sprintf("timeout after %s", p.spec.timeout()))
			} else {
				p.kill("context cancelled")
			}
		case <-exited:
		}
	}()

	var g errgroup.Group
	g.Go(func() error { return p.pump(stdout, StreamStdout, p.stdout) })
	g.Go(func() error { return p.pump(stderr, StreamStderr, p.stderr) })
	if err := g.Wait(); err != nil {
		logging.ProcessWarn("error reading process output: %v", err)
	}

	waitErr := p.cmd.Wait()
	close(exited)
	<-watchDone
	close(p.lines)

	duration := time.Since(p.start)
	res := ProcessResult{
		Stdout:    p.stdout.String(),
		Stderr:    p.stderr.String(),
		Duration:  duration,
		TimedOut:  timedOut,
		Truncated: p.stdout.Truncated() || p.stderr.Truncated(),
		Signal:    signalName(p.cmd.ProcessState),
		Usage:     resourceUsage(p.cmd.ProcessState),
	}

	var exitErr *exec.ExitError
	switch {
	case timedOut:
		res.ExitCode = TimeoutExitCode
		logging.ProcessWarn("Process timed out after %s", p.spec.timeout())
	case waitErr == nil:
		res.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		if res.Stderr != "" && !strings.HasSuffix(res.Stderr, "\n") {
			res.Stderr += "\n"
		}
		res.Stderr += waitErr.Error()
	}

	p.writeLog(fmt.Sprintf("\n%s\nExit code: %d (timed out: %v, duration: %s)\n",
		strings.Repeat("=", 50), res.ExitCode, res.TimedOut, duration.Round(time.Millisecond)))
	p.closeLog()

	logging.Process("Process completed in %s with exit code %d", duration.Round(time.Millisecond), res.ExitCode)
	p.result = res
}

// pump copies one pipe into its buffer, the live log and the line channel.
// The read blocks on the pipe; no polling loop is involved.
func (p *Process) pump(r io.Reader, stream Stream, buf *limitedBuffer) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		text, err := br.ReadString('\n')
		if len(text) > 0 {
			_, _ = buf.Write([]byte(text))
			if stream == StreamStderr {
				p.writeLog("[stderr] " + text)
			} else {
				p.writeLog(text)
			}
			p.deliver(Line{Text: strings.TrimRight(text, "\r\n"), Stream: stream})
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (p *Process) deliver(l Line) {
	select {
	case p.lines <- l:
	case <-p.abandon:
	}
}

func (p *Process) kill(reason string) {
	pid := p.cmd.Process.Pid
	logging.ProcessWarn("Killing process tree %d: %s", pid, reason)
	if err := p.killer.KillTree(pid); err != nil {
		logging.ProcessError("tree kill via %s failed for pid %d: %v", p.killer.Name(), pid, err)
		if _, ok := p.killer.(platformKiller); !ok {
			if err := (platformKiller{}).KillTree(pid); err != nil {
				logging.ProcessError("platform fallback kill failed for pid %d: %v", pid, err)
			}
		}
	}
}

// =============================================================================
// LIVE LOG
// =============================================================================

func (p *Process) openLog() error {
	if err := os.MkdirAll(filepath.Dir(p.spec.LogFile), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(p.spec.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	p.log = f
	fmt.Fprintf(f, "Command: %s\n", strings.Join(p.spec.Command, " "))
	fmt.Fprintf(f, "Working directory: %s\n", p.spec.Dir)
	fmt.Fprintf(f, "Started at: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f, "%s\n\n", strings.Repeat("=", 50))
	return nil
}

func (p *Process) writeLog(s string) {
	p.logMu.Lock()
	defer p.logMu.Unlock()
	if p.log == nil {
		return
	}
	_, _ = p.log.WriteString(s)
}

func (p *Process) closeLog() {
	p.logMu.Lock()
	defer p.logMu.Unlock()
	if p.log != nil {
		_ = p.log.Close()
		p.log = nil
	}
}
