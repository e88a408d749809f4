package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"spectral/internal/articulation"
	"spectral/internal/events"
	"spectral/internal/logging"
	"spectral/internal/monitor"
	"spectral/internal/sandbox"
	"spectral/internal/types"
	"spectral/internal/world"
)

// planOutcome is what executePlan reports back to Process. verification is
// empty when no final pass ran.
type planOutcome struct {
	completed    int
	verification sandbox.Status
}

// executePlan runs steps in order. When every step completes, the last
// program the plan produced goes through the sandbox gates once more.
func (o *Orchestrator) executePlan(ctx context.Context, request string, steps []*types.Step, out *progress) planOutcome {
	logging.Orchestrator("Executing in PLANNING mode (%d steps)", len(steps))
	out.say("▶️ Starting execution...")
	out.say("")

	completed := make(map[int]bool, len(steps))
	for _, step := range steps {
		if out.stopped {
			return planOutcome{completed: len(completed)}
		}
		if err := ctx.Err(); err != nil {
			out.say("❌ Error: %v", err)
			break
		}

		out.say("▶️ Step %d/%d: %s", step.Number, len(steps), step.Description)
		o.Bus.Emit(events.StepStarted, step.Number, step.Description)

		o.runStep(ctx, request, step, completed, out)
		if step.Status() == types.StepCompleted {
			completed[step.Number] = true
			o.Bus.Emit(events.StepCompleted, step.Number, step.Description)
			continue
		}
		if out.stopped {
			return planOutcome{completed: len(completed)}
		}
		o.Bus.Emit(events.StepFailed, step.Number, step.Description)
		out.say("   ⚠️  Aborting execution due to failed step")
		break
	}

	outcome := planOutcome{completed: len(completed)}
	if len(completed) == len(steps) && !out.stopped {
		if step := finalProgram(steps); step != nil {
			outcome.verification = o.finalVerify(ctx, step, out)
		}
	}

	out.say("")
	out.say("✅ Execution complete")
	out.say("   Completed: %d/%d steps", len(completed), len(steps))
	if outcome.verification != "" {
		out.say("   Verification: %s", outcome.verification)
	}
	logging.Orchestrator("Plan finished: %d/%d steps completed, verification %q", len(completed), len(steps), outcome.verification)
	return outcome
}

// finalProgram returns the last step that carries Python code.
func finalProgram(steps []*types.Step) *types.Step {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Code != "" && steps[i].Status() == types.StepCompleted {
			return steps[i]
		}
	}
	return nil
}

func (o *Orchestrator) finalVerify(ctx context.Context, step *types.Step, out *progress) sandbox.Status {
	if o.Sandbox == nil {
		return ""
	}
	out.say("")
	out.say("🧪 Final verification of step %d...", step.Number)
	res, runID := o.verify(ctx, step.Number, step.Code, false)
	defer o.release(runID)

	out.say("   %s", gateSummary(res))
	if !res.Succeeded() {
		out.say("   ❌ Final verification failed: %s: %s", res.Status, res.ErrorMessage)
	}
	return res.Status
}

func (o *Orchestrator) runStep(ctx context.Context, request string, step *types.Step, completed map[int]bool, out *progress) {
	var missing []int
	for _, dep := range step.Dependencies {
		if !completed[dep] {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		out.say("   ❌ Step %d depends on incomplete step(s) %v", step.Number, missing)
		_ = step.SetStatus(types.StepFailed)
		return
	}

	if step.Code == "" && len(step.Command) == 0 {
		if !step.IsCodeExecution {
			out.say("   ℹ️  Informational step, nothing to execute")
			_ = step.SetStatus(types.StepCompleted)
			return
		}
		out.say("   Generating code...")
		code, err := o.generate(ctx, step.Number, articulation.StepCodePrompt(step.Description, request))
		if err != nil {
			out.say("   ❌ Step failed: %v", err)
			_ = step.SetStatus(types.StepFailed)
			return
		}
		step.Code = code
		out.say("   ✓ Code generated")
	}

	attempts := step.Attempts()
	for attempt := 0; attempt < attempts; attempt++ {
		_ = step.SetStatus(types.StepRunning)

		var full, errOut strings.Builder
		errorDetected := false
		for line := range o.Monitor.ExecuteStep(ctx, step) {
			full.WriteString(line.Text + "\n")
			if line.IsError {
				errorDetected = true
				errOut.WriteString(line.Text + "\n")
			}
			out.say("   %s", line.Text)
			if out.stopped {
				return
			}
		}

		if !errorDetected {
			if ok, msg := validateStep(ctx, step, full.String()); !ok {
				errorDetected = true
				errOut.WriteString("ValidationError: " + msg + "\n")
				out.say("   ❌ %s", msg)
			}
		}
		if !errorDetected {
			_ = step.SetStatus(types.StepCompleted)
			out.say("   ✓ Step completed successfully")
			out.say("")
			return
		}

		if attempt == attempts-1 {
			_ = step.SetStatus(types.StepFailed)
			out.say("   ❌ Step %d failed after %d attempts", step.Number, attempts)
			out.say("")
			return
		}

		out.say("   ❌ Error detected in step %d", step.Number)
		fixed, err := o.fix(ctx, step, attempt, errOut.String(), full.String(), out)
		if err != nil {
			logging.OrchestratorWarn("fix for step %d failed: %v", step.Number, err)
			out.say("   ❌ Exception: %v", err)
			out.say("   ▶️ Retrying...")
			out.say("")
			continue
		}
		step.Code = fixed
		_ = step.SetStatus(types.StepRetrying)
		o.Bus.Emit(events.StepRetrying, step.Number, fmt.Sprintf("attempt %d of %d", attempt+2, attempts))
		out.say("   ▶️ Retrying step %d...", step.Number)
		out.say("")
	}
}

// validateStep applies the step's validation method to a clean run.
func validateStep(ctx context.Context, step *types.Step, output string) (bool, string) {
	switch step.Validation {
	case types.ValidateOutputPattern:
		return monitor.ValidateOutput(output, step.ExpectedOutputPattern)
	case types.ValidateSyntaxCheck:
		if step.Code == "" {
			return true, ""
		}
		src, err := world.ParsePython(ctx, []byte(step.Code))
		if err != nil {
			return false, fmt.Sprintf("Syntax check error: %v", err)
		}
		defer src.Close()
		if issues := src.SyntaxErrors(); len(issues) > 0 {
			return false, "Syntax Error: " + issues[0].String()
		}
	case types.ValidateFileExists:
		path := step.ExpectedOutputPattern
		if path == "" {
			return true, ""
		}
		if _, err := os.Stat(path); err != nil {
			return false, fmt.Sprintf("Expected file not found: %s", path)
		}
	}
	return true, ""
}
