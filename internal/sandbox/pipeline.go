package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spectral/internal/injector"
	"spectral/internal/logging"
	"spectral/internal/monitor"
	"spectral/internal/tactile"
)

// Status is the outcome of a verification pipeline.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusSyntaxError Status = "syntax_error"
	StatusRuntime     Status = "runtime_error"
	StatusTimeout     Status = "timeout"
	StatusGUIBlocked  Status = "gui_blocked"
	StatusError       Status = "error"
)

// Gate names, in pipeline order.
const (
	GateSyntax    = "syntax"
	GateGUISafety = "gui_safety"
	GateTests     = "tests"
	GateSmoke     = "smoke"
)

// Gate is one checkpoint outcome. Skipped gates were not applicable.
type Gate struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Result is the outcome of ExecuteVerificationPipeline.
type Result struct {
	RunID        string
	Status       Status
	CodePath     string
	TestPaths    []string
	Stdout       string
	Stderr       string
	ExitCode     int
	TestSummary  string
	ErrorMessage string
	Gates        []Gate
	Duration     time.Duration
}

// Gate returns the named gate.
func (r *Result) Gate(name string) (Gate, bool) {
	for _, g := range r.Gates {
		if g.Name == name {
			return g, true
		}
	}
	return Gate{}, false
}

// GatePassed reports whether the named gate ran and passed.
func (r *Result) GatePassed(name string) bool {
	g, ok := r.Gate(name)
	return ok && g.Passed
}

// Succeeded reports a success status.
func (r *Result) Succeeded() bool { return r.Status == StatusSuccess }

func (r *Result) setGate(name string, passed, skipped bool) {
	for i := range r.Gates {
		if r.Gates[i].Name == name {
			r.Gates[i].Passed = passed
			r.Gates[i].Skipped = skipped
			return
		}
	}
}

func (r *Result) fail(status Status, msg string) *Result {
	r.Status = status
	r.ErrorMessage = msg
	if r.Stderr == "" {
		r.Stderr = msg
	}
	if r.ExitCode == 0 {
		r.ExitCode = -1
	}
	return r
}

// PipelineOption adjusts one pipeline execution.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	stdin        []string
	basicTest    bool
	smokeTimeout time.Duration
}

// WithStdin feeds the smoke run these lines instead of synthetic inputs.
func WithStdin(lines []string) PipelineOption {
	return func(o *pipelineOptions) { o.stdin = lines }
}

// WithBasicTest writes an import-and-compile test before the test gate.
func WithBasicTest() PipelineOption {
	return func(o *pipelineOptions) { o.basicTest = true }
}

// WithSmokeTimeout overrides the manager's smoke timeout.
func WithSmokeTimeout(d time.Duration) PipelineOption {
	return func(o *pipelineOptions) { o.smokeTimeout = d }
}

// ExecuteVerificationPipeline writes code into the run and drives it through
// the gates: syntax, GUI safety, then tests when tests/ holds test_*.py
// files or a smoke run otherwise. isGUI overrides toolkit detection. Metadata
// is saved to logs/run_metadata.json.
func (m *Manager) ExecuteVerificationPipeline(ctx context.Context, runID, code, filename string, isGUI *bool, opts ...PipelineOption) *Result {
	start := time.Now()
	o := pipelineOptions{smokeTimeout: m.smokeTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if filename == "" {
		filename = "main.py"
	}

	res := &Result{
		RunID:  runID,
		Status: StatusSuccess,
		Gates: []Gate{
			{Name: GateSyntax},
			{Name: GateGUISafety},
			{Name: GateTests},
			{Name: GateSmoke},
		},
	}
	log := logging.Get(logging.CategorySandbox).WithRunID(runID)
	log.Info("Starting verification pipeline")

	run, err := m.Run(runID)
	if err != nil {
		res.Duration = time.Since(start)
		return res.fail(StatusError, fmt.Sprintf("Pipeline error: %v", err))
	}
	if err := enterTesting(run); err != nil {
		res.Duration = time.Since(start)
		return res.fail(StatusError, fmt.Sprintf("Pipeline error: %v", err))
	}

	defer func() {
		res.Duration = time.Since(start)
		final := StatePassed
		if !res.Succeeded() {
			final = StateFailed
		}
		if err := run.Advance(final); err != nil {
			log.Warn("state transition failed: %v", err)
		}
		if err := m.SaveRunMetadata(runID, res); err != nil {
			log.Warn("failed to save run metadata: %v", err)
		}
		log.Info("Verification pipeline finished: %s in %s", res.Status, res.Duration.Round(time.Millisecond))
	}()

	codePath, err := m.WriteCode(runID, filename, code)
	if err != nil {
		return res.fail(StatusError, fmt.Sprintf("Pipeline error: %v", err))
	}
	res.CodePath = codePath

	// Gate 1: syntax
	ok, msg := m.CheckSyntax(ctx, runID, codePath)
	res.setGate(GateSyntax, ok, false)
	if !ok {
		return res.fail(StatusSyntaxError, msg)
	}

	// Gate 2: GUI contract
	gui := IsGUIProgram(code)
	if isGUI != nil {
		gui = *isGUI
	}
	if gui {
		if !HasDualModeEntry(ctx, code) {
			res.setGate(GateGUISafety, false, false)
			return res.fail(StatusGUIBlocked, fmt.Sprintf(
				"GUI program has no test-safe entry: define one of %s with a test_mode parameter",
				strings.Join(DualModeEntryNames, ", ")))
		}
	} else if sig, found := DetectBlockingGUICall(code); found {
		res.setGate(GateGUISafety, false, false)
		return res.fail(StatusGUIBlocked, fmt.Sprintf("GUI mainloop() detected in CLI program (%s)", sig))
	}
	res.setGate(GateGUISafety, true, false)

	if o.basicTest {
		stem := strings.TrimSuffix(filename, filepath.Ext(filename))
		if _, err := m.WriteTest(runID, "test_"+stem+".py", GenerateBasicTest(filename)); err != nil {
			return res.fail(StatusError, fmt.Sprintf("Pipeline error: %v", err))
		}
	}

	// Gate 3: tests, or a smoke run when there are none
	testDir := filepath.Join(m.RunPath(runID), testsDir)
	res.TestPaths = TestFiles(testDir)
	if len(res.TestPaths) > 0 {
		res.setGate(GateSmoke, false, true)
		return m.testGate(ctx, runID, testDir, res)
	}
	res.setGate(GateTests, false, true)

	if gui {
		return m.guiImportGate(ctx, runID, codePath, o.smokeTimeout, res)
	}

	stdin := o.stdin
	if stdin == nil && injector.CountInputCalls(code) > 0 {
		stdin = monitor.SyntheticInputs(injector.Prompts(code))
	}
	return m.smokeGate(m.RunSmokeTest(ctx, runID, codePath, o.smokeTimeout, stdin), o.smokeTimeout, res)
}

// enterTesting walks a fresh run through generating into testing.
func enterTesting(run *Run) error {
	if run.State() == StateCreated {
		if err := run.Advance(StateGenerating); err != nil {
			return err
		}
	}
	return run.Advance(StateTesting)
}

func (m *Manager) testGate(ctx context.Context, runID, testDir string, res *Result) *Result {
	logFile := filepath.Join(m.RunPath(runID), logsDir, "pytest.log")
	tr := m.toolchain.RunPytest(ctx, m.RunPath(runID), logFile, testDir)
	res.TestSummary = tr.Summary
	res.Stdout = tr.Output
	res.ExitCode = tr.ExitCode
	res.setGate(GateTests, tr.Passed, false)
	switch {
	case tr.Passed:
		return res
	case tr.TimedOut:
		return res.fail(StatusTimeout, "Tests timed out")
	default:
		return res.fail(StatusRuntime, "Tests failed: "+tr.Summary)
	}
}

func (m *Manager) smokeGate(pr tactile.ProcessResult, timeout time.Duration, res *Result) *Result {
	res.Stdout = pr.Stdout
	res.Stderr = pr.Stderr
	res.ExitCode = pr.ExitCode
	res.setGate(GateSmoke, pr.Succeeded(), false)
	switch {
	case pr.TimedOut:
		return res.fail(StatusTimeout, fmt.Sprintf("Smoke test timed out after %s", timeout))
	case pr.ExitCode != 0:
		return res.fail(StatusRuntime, "Smoke test failed: "+strings.TrimSpace(pr.Stderr))
	}
	return res
}

const importHarness = `import importlib.util
import sys

spec = importlib.util.spec_from_file_location("spectral_gui_target", sys.argv[1])
module = importlib.util.module_from_spec(spec)
spec.loader.exec_module(module)
print("import ok")
`

// guiImportGate loads a GUI program as a module, so its __main__ block and
// event loop never run.
func (m *Manager) guiImportGate(ctx context.Context, runID, codePath string, timeout time.Duration, res *Result) *Result {
	harness := filepath.Join(m.RunPath(runID), "import_check.py")
	if err := os.WriteFile(harness, []byte(importHarness), 0644); err != nil {
		return res.fail(StatusError, fmt.Sprintf("Pipeline error: %v", err))
	}
	pr := m.ctrl.Exec(ctx, tactile.Spec{
		Command: append(m.toolchain.ScriptCommand(harness), codePath),
		Dir:     m.RunPath(runID),
		Timeout: timeout,
		LogFile: filepath.Join(m.RunPath(runID), logsDir, "smoke_test.log"),
	})
	return m.smokeGate(pr, timeout, res)
}
