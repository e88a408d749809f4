package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"spectral/internal/articulation"
	"spectral/internal/events"
	"spectral/internal/injector"
	"spectral/internal/logging"
	"spectral/internal/sandbox"
	"spectral/internal/types"
)

var guiWords = []string{"gui", "window", "tkinter", "desktop app", "button", "pyqt", "pygame", "kivy"}

// WantsGUI reports whether request asks for a graphical program.
func WantsGUI(request string) bool {
	lower := strings.ToLower(request)
	for _, w := range guiWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// direct generates one program, verifies it in the sandbox and streams a
// final execution. Failed attempts are diagnosed and regenerated until the
// attempt budget is spent. It reports whether the program ran cleanly.
func (o *Orchestrator) direct(ctx context.Context, request string, out *progress) bool {
	gui := WantsGUI(request)
	step := types.NewStep(1, request)
	step.MaxRetries = o.maxAttempts

	var lastErr, lastOutput string
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if out.stopped || ctx.Err() != nil {
			return false
		}

		var (
			code string
			err  error
		)
		if attempt == 1 || step.Code == "" {
			out.say("📝 Generating code... (attempt %d/%d)", attempt, o.maxAttempts)
			code, err = o.generate(ctx, 1, articulation.DirectCodePrompt(request, gui))
		} else {
			out.say("📝 Fixing code...")
			code, err = o.fix(ctx, step, attempt-2, lastErr, lastOutput, out)
		}
		if err != nil {
			logging.OrchestratorWarn("direct attempt %d: %v", attempt, err)
			out.say("❌ Error: %v", err)
			continue
		}
		step.Code = code

		if n := injector.CountInputCalls(code); n > 0 {
			out.say("🔍 Detected %d input() call(s)", n)
		}

		res, runID := o.verify(ctx, 1, code, gui)
		out.say("🧪 Verification: %s", gateSummary(res))
		if !res.Succeeded() {
			out.say("❌ Verification failed: %s: %s", res.Status, res.ErrorMessage)
			lastErr = res.ErrorMessage
			lastOutput = res.Stdout + res.Stderr
			o.release(runID)
			continue
		}

		if gui || sandbox.IsGUIProgram(code) {
			out.say("✅ GUI program verified (%s)", res.CodePath)
			out.say("   Run it with: python %s", res.CodePath)
			_ = step.SetStatus(types.StepCompleted)
			return true
		}
		o.release(runID)

		out.say("▶️ Executing script...")
		_ = step.SetStatus(types.StepRunning)
		var full, errOut strings.Builder
		failed := false
		for line := range o.Monitor.ExecuteStep(ctx, step) {
			full.WriteString(line.Text + "\n")
			if line.IsError {
				failed = true
				errOut.WriteString(line.Text + "\n")
			}
			out.say("%s", line.Text)
			if out.stopped {
				return false
			}
		}
		if !failed {
			_ = step.SetStatus(types.StepCompleted)
			out.say("✅ Execution complete")
			return true
		}
		out.say("❌ Script failed (attempt %d/%d)", attempt, o.maxAttempts)
		lastErr = errOut.String()
		lastOutput = full.String()
		_ = step.SetStatus(types.StepRetrying)
	}
	_ = step.SetStatus(types.StepFailed)
	out.say("❌ Max retries (%d) exceeded, aborting", o.maxAttempts)
	return false
}

func (o *Orchestrator) verify(ctx context.Context, step int, code string, gui bool) (*sandbox.Result, string) {
	runID, err := o.Sandbox.CreateRun()
	if err != nil {
		return &sandbox.Result{Status: sandbox.StatusError, ErrorMessage: err.Error()}, ""
	}
	var isGUI *bool
	if gui {
		isGUI = &gui
	}
	res := o.Sandbox.ExecuteVerificationPipeline(ctx, runID, code, "main.py", isGUI)
	o.Bus.Publish(events.Event{
		Type:    events.VerificationComplete,
		Step:    step,
		Message: string(res.Status),
		Data:    map[string]any{"run_id": runID, "status": string(res.Status), "passed": res.Succeeded()},
	})
	return res, runID
}

func (o *Orchestrator) release(runID string) {
	if o.keepRuns || runID == "" {
		return
	}
	if err := o.Sandbox.CleanupRun(runID); err != nil {
		logging.OrchestratorWarn("cleanup run %s: %v", runID, err)
	}
}

func gateSummary(res *sandbox.Result) string {
	if len(res.Gates) == 0 {
		return string(res.Status)
	}
	parts := make([]string, 0, len(res.Gates))
	for _, g := range res.Gates {
		mark := "✗"
		switch {
		case g.Skipped:
			mark = "-"
		case g.Passed:
			mark = "✓"
		}
		parts = append(parts, fmt.Sprintf("%s %s", mark, g.Name))
	}
	return strings.Join(parts, ", ")
}
