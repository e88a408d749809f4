// Package sandbox owns isolated run directories and the verification
// pipeline that gates generated programs: syntax, GUI safety, tests and a
// timed smoke run.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spectral/internal/logging"
	"spectral/internal/tactile"
	"spectral/internal/tactile/python"
	"spectral/internal/world"
)

// ErrUnknownRun is returned when a run directory does not exist.
var ErrUnknownRun = errors.New("unknown sandbox run")

const (
	codeDir  = "code"
	testsDir = "tests"
	logsDir  = "logs"
)

// DefaultSmokeTimeout bounds the smoke run when no timeout is configured.
const DefaultSmokeTimeout = 5 * time.Second

// Config configures a Manager.
type Config struct {
	BaseDir      string
	SmokeTimeout time.Duration
}

// Manager creates and verifies sandbox runs under a base directory.
type Manager struct {
	baseDir      string
	smokeTimeout time.Duration
	ctrl         *tactile.Controller
	toolchain    *python.Toolchain

	mu   sync.Mutex
	runs map[string]*Run
}

// NewManager creates a manager. The base directory is created lazily.
func NewManager(cfg Config, ctrl *tactile.Controller, toolchain *python.Toolchain) *Manager {
	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Join(os.TempDir(), "spectral-runs")
	}
	if cfg.SmokeTimeout <= 0 {
		cfg.SmokeTimeout = DefaultSmokeTimeout
	}
	logging.Sandbox("Sandbox manager initialized, base_dir: %s", cfg.BaseDir)
	return &Manager{
		baseDir:      cfg.BaseDir,
		smokeTimeout: cfg.SmokeTimeout,
		ctrl:         ctrl,
		toolchain:    toolchain,
		runs:         make(map[string]*Run),
	}
}

// BaseDir returns the directory holding all runs.
func (m *Manager) BaseDir() string { return m.baseDir }

// =============================================================================
// RUN DIRECTORIES
// =============================================================================

// NewRunID returns a short random run identifier.
func NewRunID() string {
	return "run-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

var runIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ErrInvalidRunID is returned for ids that could name a path outside the
// base directory.
var ErrInvalidRunID = errors.New("invalid run id")

func validRunID(runID string) error {
	if !runIDRe.MatchString(runID) {
		return fmt.Errorf("%w %q", ErrInvalidRunID, runID)
	}
	return nil
}

// CreateRun creates <base>/<run-id>/{code,tests,logs} with a fresh id.
func (m *Manager) CreateRun() (string, error) {
	return m.CreateRunWithID(NewRunID())
}

// CreateRunWithID is CreateRun with a caller-chosen id.
func (m *Manager) CreateRunWithID(runID string) (string, error) {
	if err := validRunID(runID); err != nil {
		return "", err
	}
	dir := m.RunPath(runID)
	for _, sub := range []string{codeDir, testsDir, logsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return "", fmt.Errorf("create run %s: %w", runID, err)
		}
	}

	m.mu.Lock()
	m.runs[runID] = newRun(runID, dir)
	m.mu.Unlock()

	logging.Sandbox("Created sandbox run: %s at %s", runID, dir)
	return runID, nil
}

// StepLogsRun is the pseudo-run whose logs directory collects the live logs
// of planned step executions, so `tail steps` follows them like any run.
const StepLogsRun = "steps"

// StepLogDir returns the directory for planned step logs.
func (m *Manager) StepLogDir() string {
	return filepath.Join(m.RunPath(StepLogsRun), logsDir)
}

// RunPath returns the directory of runID, whether or not it exists. Callers
// that touch the filesystem validate runID first.
func (m *Manager) RunPath(runID string) string {
	return filepath.Join(m.baseDir, runID)
}

// Run returns the lifecycle object of a run. Runs created by another
// process are adopted in the created state.
func (m *Manager) Run(runID string) (*Run, error) {
	if err := validRunID(runID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[runID]; ok {
		return r, nil
	}
	dir := m.RunPath(runID)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	r := newRun(runID, dir)
	m.runs[runID] = r
	return r, nil
}

// ListRuns returns the ids of run directories on disk, sorted.
func (m *Manager) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// CleanupRun removes a run directory. Removing a missing run is not an
// error; an id that is not a run name is, and nothing is removed.
func (m *Manager) CleanupRun(runID string) error {
	if runID == "" {
		return nil
	}
	if err := validRunID(runID); err != nil {
		logging.SandboxWarn("Refusing to clean up %q: %v", runID, err)
		return err
	}
	m.mu.Lock()
	delete(m.runs, runID)
	m.mu.Unlock()

	if err := os.RemoveAll(m.RunPath(runID)); err != nil {
		logging.SandboxWarn("Failed to clean up sandbox run %s: %v", runID, err)
		return fmt.Errorf("cleanup %s: %w", runID, err)
	}
	logging.Sandbox("Cleaned up sandbox run: %s", runID)
	return nil
}

func (m *Manager) writeFile(runID, sub, filename, text string) (string, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	if err := validRunID(runID); err != nil {
		return "", err
	}
	dir := filepath.Join(m.RunPath(runID), sub)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		logging.SandboxError("Failed to write %s: %v", path, err)
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	logging.SandboxDebug("Wrote %s file: %s", sub, path)
	return path, nil
}

// WriteCode writes a program into the run's code directory.
func (m *Manager) WriteCode(runID, filename, code string) (string, error) {
	return m.writeFile(runID, codeDir, filename, code)
}

// WriteTest writes a test file into the run's tests directory.
func (m *Manager) WriteTest(runID, filename, text string) (string, error) {
	return m.writeFile(runID, testsDir, filename, text)
}

// =============================================================================
// GATES
// =============================================================================

// CheckSyntax parses path without executing it. tree-sitter catches
// malformed source with a precise position; the interpreter's compiler then
// rejects what the grammar accepts but Python does not (Python 2 print,
// return outside a function, syntax newer than the interpreter). The message
// names the first error's line and column.
func (m *Manager) CheckSyntax(ctx context.Context, runID, path string) (bool, string) {
	logging.Sandbox("Running syntax check on %s (run %s)", path, runID)
	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Sprintf("Syntax check error: %v", err)
	}
	src, err := world.ParsePython(ctx, content)
	if err != nil {
		return false, fmt.Sprintf("Syntax check error: %v", err)
	}
	issues := src.SyntaxErrors()
	src.Close()

	if len(issues) > 0 {
		msg := fmt.Sprintf("Syntax Error in %s: %s", filepath.Base(path), issues[0])
		logging.SandboxWarn("Syntax check failed: %s", msg)
		return false, msg
	}

	if !m.toolchain.Available() {
		logging.SandboxWarn("Interpreter %s not found, syntax check used the parser only", m.toolchain.Interpreter())
		return true, ""
	}
	if err := m.toolchain.Compile(ctx, path); err != nil {
		var ce *python.CompileError
		if errors.As(err, &ce) {
			msg := fmt.Sprintf("Syntax Error in %s: %s", filepath.Base(path), ce)
			logging.SandboxWarn("Syntax check failed: %s", msg)
			return false, msg
		}
		logging.SandboxError("Compile check on %s failed: %v", path, err)
		return false, fmt.Sprintf("Syntax check error: %v", err)
	}
	logging.SandboxDebug("Syntax check passed")
	return true, ""
}

// TestFiles lists test_*.py files in dir.
func TestFiles(dir string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, "test_*.py"))
	sort.Strings(matches)
	return matches
}

// RunTests runs pytest over testDir, logging to logs/pytest.log.
func (m *Manager) RunTests(ctx context.Context, runID, testDir string) (bool, string) {
	if err := validRunID(runID); err != nil {
		return false, err.Error()
	}
	logging.Sandbox("Running tests in %s", testDir)
	logFile := filepath.Join(m.RunPath(runID), logsDir, "pytest.log")
	res := m.toolchain.RunPytest(ctx, m.RunPath(runID), logFile, testDir)
	if !res.Passed {
		logging.SandboxWarn("Tests failed with exit code %d", res.ExitCode)
	}
	return res.Passed, res.Summary
}

// RunSmokeTest executes path under timeout, feeding stdin when non-nil.
func (m *Manager) RunSmokeTest(ctx context.Context, runID, path string, timeout time.Duration, stdin []string) tactile.ProcessResult {
	if err := validRunID(runID); err != nil {
		return tactile.ProcessResult{ExitCode: -1, Stderr: err.Error()}
	}
	if timeout <= 0 {
		timeout = m.smokeTimeout
	}
	logging.Sandbox("Running smoke test on %s (timeout %s)", path, timeout)
	res := m.ctrl.Exec(ctx, tactile.Spec{
		Command: m.toolchain.ScriptCommand(path),
		Dir:     m.RunPath(runID),
		Timeout: timeout,
		Stdin:   stdin,
		LogFile: filepath.Join(m.RunPath(runID), logsDir, "smoke_test.log"),
	})
	logging.Sandbox("Smoke test completed with exit code %d", res.ExitCode)
	return res
}
