// Package python locates the Python interpreter and pytest used by the
// sandbox and runs them through the tactile controller.
package python

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"spectral/internal/logging"
	"spectral/internal/tactile"
)

// Config selects the interpreter and test runner.
type Config struct {
	Interpreter string        `yaml:"interpreter"`
	Pytest      []string      `yaml:"pytest"`
	TestTimeout time.Duration `yaml:"test_timeout"`
}

// DefaultConfig returns sensible defaults for most hosts.
func DefaultConfig() Config {
	return Config{
		Interpreter: "python3",
		Pytest:      []string{"python3", "-m", "pytest"},
		TestTimeout: 60 * time.Second,
	}
}

// TestResult holds the result of a pytest invocation.
type TestResult struct {
	Passed       bool          `json:"passed"`
	Duration     time.Duration `json:"duration"`
	Output       string        `json:"output"`
	Summary      string        `json:"summary"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ExitCode     int           `json:"exit_code"`
	TimedOut     bool          `json:"timed_out"`
}

// Toolchain runs Python programs and test suites.
type Toolchain struct {
	config Config
	ctrl   *tactile.Controller
}

// NewToolchain creates a toolchain. Empty fields fall back to defaults.
func NewToolchain(cfg Config, ctrl *tactile.Controller) *Toolchain {
	def := DefaultConfig()
	if cfg.Interpreter == "" {
		cfg.Interpreter = def.Interpreter
	}
	if len(cfg.Pytest) == 0 {
		cfg.Pytest = []string{cfg.Interpreter, "-m", "pytest"}
	}
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = def.TestTimeout
	}
	return &Toolchain{config: cfg, ctrl: ctrl}
}

// Interpreter returns the configured interpreter name.
func (t *Toolchain) Interpreter() string { return t.config.Interpreter }

// Available reports whether the interpreter resolves on PATH.
func (t *Toolchain) Available() bool {
	_, err := exec.LookPath(t.config.Interpreter)
	return err == nil
}

// ScriptCommand returns argv for running a script unbuffered, so output
// reaches the monitor line by line.
func (t *Toolchain) ScriptCommand(path string) []string {
	return []string{t.config.Interpreter, "-u", path}
}

// DefaultCompileTimeout bounds one Compile call.
const DefaultCompileTimeout = 10 * time.Second

// compileScript compiles argv[1] in memory, so no __pycache__ is written.
// A rejected source prints "line:offset:message" and exits 1.
const compileScript = `import sys
path = sys.argv[1]
try:
    with open(path, encoding="utf-8") as f:
        compile(f.read(), path, "exec")
except SyntaxError as e:
    print("%s:%s:%s" % (e.lineno or 0, e.offset or 0, e.msg))
    sys.exit(1)
`

// CompileError is a syntax error reported by the interpreter's compiler.
type CompileError struct {
	Line   int
	Column int
	Msg    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// Compile asks the interpreter to compile path without running it. A
// *CompileError means the source was rejected; any other error means the
// interpreter itself could not give an answer.
func (t *Toolchain) Compile(ctx context.Context, path string) error {
	res := t.ctrl.Exec(ctx, tactile.Spec{
		Command: []string{t.config.Interpreter, "-c", compileScript, path},
		Timeout: DefaultCompileTimeout,
	})
	switch {
	case res.Succeeded():
		return nil
	case res.TimedOut:
		return errors.New("compile check timed out")
	case res.ExitCode == 1:
		if ce := parseCompileError(res.Stdout); ce != nil {
			return ce
		}
	}
	return fmt.Errorf("compile check failed with exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
}

func parseCompileError(out string) *CompileError {
	line := strings.TrimSpace(out)
	if i := strings.LastIndexByte(line, '\n'); i >= 0 {
		line = line[i+1:]
	}
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		return nil
	}
	ln, err1 := strconv.Atoi(parts[0])
	col, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nil
	}
	return &CompileError{Line: ln, Column: col, Msg: parts[2]}
}

// RunPytest runs pytest -v --tb=short in dir against args.
func (t *Toolchain) RunPytest(ctx context.Context, dir, logFile string, args ...string) *TestResult {
	command := append(append([]string{}, t.config.Pytest...), "-v", "--tb=short")
	command = append(command, args...)
	logging.Process("Running pytest: %v", command)

	res := t.ctrl.Exec(ctx, tactile.Spec{
		Command: command,
		Dir:     dir,
		Timeout: t.config.TestTimeout,
		LogFile: logFile,
	})

	out := res.Combined()
	tr := &TestResult{
		Passed:   res.Succeeded(),
		Duration: res.Duration,
		Output:   out,
		Summary:  SummarizePytest(out),
		ExitCode: res.ExitCode,
		TimedOut: res.TimedOut,
	}
	if !tr.Passed {
		tr.ErrorMessage = extractPytestError(out)
	}

	logging.Process("Test completed: passed=%v, duration=%s", tr.Passed, tr.Duration.Round(time.Millisecond))
	return tr
}

var summaryMarkers = []string{"FAILED", "ERROR", "PASSED", "collected", "test session", "::"}

// SummarizePytest keeps the lines of pytest output a human scans for.
func SummarizePytest(output string) string {
	var kept []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		for _, m := range summaryMarkers {
			if strings.Contains(line, m) {
				kept = append(kept, line)
				break
			}
		}
	}
	if len(kept) == 0 {
		return "No test output available"
	}
	return strings.Join(kept, "\n")
}

// extractPytestError extracts a concise error message from pytest output.
func extractPytestError(output string) string {
	lines := strings.Split(output, "\n")
	for _, line := range lines {
		if strings.Contains(line, "AssertionError") ||
			strings.Contains(line, "Error:") ||
			strings.Contains(line, "FAILED") {
			return strings.TrimSpace(line)
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return strings.TrimSpace(lines[i])
		}
	}
	return "unknown error"
}
