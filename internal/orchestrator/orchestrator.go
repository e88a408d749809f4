// Package orchestrator is the top-level control loop: it routes a request,
// then drives either a single verified generation (direct mode) or a planned
// sequence of steps with diagnosis and retry (planning mode).
package orchestrator

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"spectral/internal/articulation"
	"spectral/internal/events"
	"spectral/internal/fixing"
	"spectral/internal/logging"
	"spectral/internal/monitor"
	"spectral/internal/perception"
	"spectral/internal/planner"
	"spectral/internal/sandbox"
	"spectral/internal/types"
)

// Components are the collaborators the orchestrator drives. Bus may be nil.
type Components struct {
	Generator types.Generator
	Router    *perception.Router
	Planner   *planner.Planner
	Monitor   *monitor.Monitor
	Fixer     *fixing.Engine
	Sandbox   *sandbox.Manager
	Bus       *events.Bus
}

// Orchestrator coordinates routing, generation, execution and fixing.
type Orchestrator struct {
	Components

	directConfidence float64
	maxAttempts      int
	keepRuns         bool
	reporter         func(Report)
}

// Report summarizes one Process call. Verification is the final sandbox
// status of a planning run, empty when no program was verified.
type Report struct {
	Request        string
	Mode           types.ExecutionMode
	Confidence     float64
	StepsCompleted int
	StepsTotal     int
	Verification   sandbox.Status
	Succeeded      bool
	Duration       time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDirectConfidence sets the router confidence needed for direct mode.
func WithDirectConfidence(c float64) Option {
	return func(o *Orchestrator) { o.directConfidence = c }
}

// WithMaxAttempts bounds generation attempts in direct mode.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithKeepRuns leaves sandbox run directories in place.
func WithKeepRuns(keep bool) Option {
	return func(o *Orchestrator) { o.keepRuns = keep }
}

// WithReporter registers fn to receive a Report when Process finishes,
// including when the consumer stops early.
func WithReporter(fn func(Report)) Option {
	return func(o *Orchestrator) { o.reporter = fn }
}

// New creates an orchestrator.
func New(c Components, opts ...Option) *Orchestrator {
	o := &Orchestrator{Components: c, directConfidence: 0.6, maxAttempts: types.DefaultStepMaxRetries}
	for _, opt := range opts {
		opt(o)
	}
	if o.Router == nil {
		o.Router = perception.NewRouter()
	}
	logging.Orchestrator("DualExecutionOrchestrator initialized")
	return o
}

// Mode returns the mode Process would use for request. Research modes run
// through planning.
func (o *Orchestrator) Mode(request string) (types.ExecutionMode, float64) {
	mode, conf := o.Router.Classify(request)
	if mode == types.ModeDirect && conf >= o.directConfidence {
		return types.ModeDirect, conf
	}
	return types.ModePlanning, conf
}

// Process handles request and yields human-readable progress lines. Breaking
// out of the loop stops any running step.
func (o *Orchestrator) Process(ctx context.Context, request string) iter.Seq[string] {
	return func(yield func(string) bool) {
		logging.Orchestrator("Processing request: %s", request)
		out := &progress{yield: yield}

		mode, conf := o.Mode(request)
		report := Report{Request: request, Mode: mode, Confidence: conf}
		start := time.Now()
		defer func() {
			report.Duration = time.Since(start)
			if o.reporter != nil {
				o.reporter(report)
			}
		}()

		if mode == types.ModeDirect {
			logging.Orchestrator("Using DIRECT execution mode (confidence %.2f)", conf)
			report.StepsTotal = 1
			if o.direct(ctx, request, out) {
				report.StepsCompleted = 1
				report.Succeeded = true
			}
			return
		}
		logging.Orchestrator("Using PLANNING execution mode (confidence %.2f)", conf)
		out.say("📋 Planning steps...")
		steps := o.Planner.Breakdown(ctx, request)
		out.say("  Created %d step(s)", len(steps))
		for _, s := range steps {
			out.say("  Step %d: %s", s.Number, s.Description)
		}
		out.say("")
		outcome := o.executePlan(ctx, request, steps, out)
		report.StepsCompleted = outcome.completed
		report.StepsTotal = len(steps)
		report.Verification = outcome.verification
		report.Succeeded = report.StepsCompleted == report.StepsTotal &&
			(outcome.verification == "" || outcome.verification == sandbox.StatusSuccess)
	}
}

// ExecutePlan runs already planned steps in order.
func (o *Orchestrator) ExecutePlan(ctx context.Context, request string, steps []*types.Step) iter.Seq[string] {
	return func(yield func(string) bool) {
		o.executePlan(ctx, request, steps, &progress{yield: yield})
	}
}

// progress wraps the consumer's yield. Once the consumer stops, further
// messages are dropped and stopped reports true.
type progress struct {
	yield   func(string) bool
	stopped bool
}

func (p *progress) say(format string, args ...any) {
	if p.stopped {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if !p.yield(msg) {
		p.stopped = true
	}
}

// =============================================================================
// GENERATION
// =============================================================================

// generate asks the collaborator for code, streaming chunks to the bus when
// the backend supports it, and returns the cleaned result.
func (o *Orchestrator) generate(ctx context.Context, step int, prompt string) (string, error) {
	o.Bus.Emit(events.GenerationStart, step, "Generating code")

	var raw string
	var err error
	if sg, ok := o.Generator.(types.StreamingGenerator); ok {
		var sb strings.Builder
		for chunk, cerr := range sg.GenerateStream(ctx, prompt) {
			if cerr != nil {
				err = cerr
				break
			}
			sb.WriteString(chunk)
			o.Bus.Publish(events.Event{Type: events.CodeChunk, Step: step, Data: map[string]any{"chunk": chunk}})
		}
		raw = sb.String()
	} else {
		raw, err = o.Generator.Generate(ctx, prompt)
	}
	if err != nil {
		o.Bus.Emit(events.GenerationError, step, err.Error())
		return "", fmt.Errorf("generate code: %w", err)
	}

	code, err := articulation.CleanCode(raw)
	if err != nil {
		o.Bus.Emit(events.GenerationError, step, err.Error())
		return "", err
	}
	for _, issue := range articulation.DetectCodeIssues(ctx, code) {
		logging.OrchestratorDebug("generated code issue: %s", issue)
	}
	o.Bus.Publish(events.Event{
		Type:    events.GenerationComplete,
		Step:    step,
		Message: fmt.Sprintf("Generated %d characters", len(code)),
		Data:    map[string]any{"code": code},
	})
	return code, nil
}

// fix diagnoses a failure and returns cleaned replacement code.
func (o *Orchestrator) fix(ctx context.Context, step *types.Step, attempt int, errOutput, fullOutput string, out *progress) (string, error) {
	kind, detail := monitor.ClassifyError(errOutput)
	out.say("   Error type: %s", kind)
	out.say("   Diagnosing failure...")
	diag := o.Fixer.Diagnose(ctx, step, kind, detail, fullOutput)
	out.say("   Root cause: %s", diag.RootCause)
	out.say("   🔧 Fixing: %s", diag.SuggestedFix)

	out.say("   Applying fix...")
	fixed, err := o.Fixer.GenerateFix(ctx, step, diag, attempt)
	if err != nil {
		return "", err
	}
	return articulation.CleanCode(fixed)
}
