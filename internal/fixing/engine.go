// Package fixing diagnoses a failed step with the text-generation service,
// asks it for corrected code and re-executes only that step.
package fixing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"spectral/internal/articulation"
	"spectral/internal/events"
	"spectral/internal/logging"
	"spectral/internal/tactile"
	"spectral/internal/tactile/python"
	"spectral/internal/types"
)

// Engine diagnoses failures and retries steps with generated fixes.
type Engine struct {
	gen       types.Generator
	ctrl      *tactile.Controller
	toolchain *python.Toolchain
	bus       *events.Bus
	tempDir   string
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus publishes diagnoses and fixes as progress events.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithTempDir sets where fix scripts are written.
func WithTempDir(dir string) Option {
	return func(e *Engine) { e.tempDir = dir }
}

// NewEngine creates a fix engine.
func NewEngine(gen types.Generator, ctrl *tactile.Controller, toolchain *python.Toolchain, opts ...Option) *Engine {
	e := &Engine{gen: gen, ctrl: ctrl, toolchain: toolchain}
	for _, opt := range opts {
		opt(e)
	}
	logging.Fixer("AdaptiveFixEngine initialized")
	return e
}

// =============================================================================
// DIAGNOSIS
// =============================================================================

// Parsed is a diagnosis together with how it was obtained. Ok is false when
// the reply could not be decoded and the diagnosis is a fallback.
type Parsed struct {
	Diagnosis types.Diagnosis
	Ok        bool
	Method    articulation.ParseMethod
}

// Diagnose asks the collaborator why step failed. It never returns an
// error: generation or parse failures degrade to a manual, low-confidence
// diagnosis.
func (e *Engine) Diagnose(ctx context.Context, step *types.Step, kind, detail, output string) types.Diagnosis {
	return e.DiagnoseParsed(ctx, step, kind, detail, output).Diagnosis
}

// DiagnoseParsed is Diagnose with the parse outcome exposed.
func (e *Engine) DiagnoseParsed(ctx context.Context, step *types.Step, kind, detail, output string) Parsed {
	logging.Fixer("Diagnosing failure for step %d: %s", step.Number, kind)
	timer := logging.StartTimer(logging.CategoryFixer, "diagnosis")
	defer timer.Stop()

	reply, err := e.gen.Generate(ctx, DiagnosisPrompt(step, kind, detail, output))
	var p Parsed
	if err != nil {
		logging.Get(logging.CategoryFixer).Error("Failed to diagnose failure: %v", err)
		p = Parsed{Diagnosis: types.Diagnosis{
			ErrorKind:    kind,
			ErrorDetail:  detail,
			RootCause:    fmt.Sprintf("Unable to diagnose: %v", err),
			SuggestedFix: "Manual intervention required",
			Strategy:     types.FixManual,
			Confidence:   0.3,
		}}
	} else {
		p = ParseDiagnosis(reply, kind, detail)
	}

	logging.Fixer("Diagnosis complete: %s", p.Diagnosis.RootCause)
	e.bus.Publish(events.Event{
		Type:    events.Diagnosis,
		Step:    step.Number,
		Message: fmt.Sprintf("Diagnosis: %s", p.Diagnosis.RootCause),
		Data: map[string]any{
			"error_type":    kind,
			"suggested_fix": p.Diagnosis.SuggestedFix,
			"fix_strategy":  string(p.Diagnosis.Strategy),
			"confidence":    p.Diagnosis.Confidence,
			"parsed":        p.Ok,
		},
	})
	return p
}

type diagnosisReply struct {
	RootCause    *string `json:"root_cause"`
	SuggestedFix *string `json:"suggested_fix"`
	FixStrategy  *string `json:"fix_strategy"`
	Confidence   any     `json:"confidence"`
}

// ParseDiagnosis decodes a diagnosis reply. Missing fields take defaults; an
// undecodable reply yields a fallback carrying the first 200 characters of
// the reply as the suggested fix.
func ParseDiagnosis(reply, kind, detail string) Parsed {
	fallback := Parsed{Diagnosis: types.Diagnosis{
		ErrorKind:    kind,
		ErrorDetail:  detail,
		RootCause:    "Failed to parse diagnosis",
		SuggestedFix: truncate(reply, 200),
		Strategy:     types.FixManual,
		Confidence:   0.4,
	}}

	var r diagnosisReply
	method, err := articulation.DecodeJSON(reply, &r)
	if err != nil {
		logging.FixerWarn("Failed to parse diagnosis response: %v", err)
		return fallback
	}
	confidence, err := parseConfidence(r.Confidence)
	if err != nil {
		logging.FixerWarn("Failed to parse diagnosis confidence: %v", err)
		return fallback
	}

	d := types.Diagnosis{
		ErrorKind:    kind,
		ErrorDetail:  detail,
		RootCause:    orDefault(r.RootCause, "Unknown"),
		SuggestedFix: orDefault(r.SuggestedFix, "No suggestion"),
		Strategy:     types.ParseFixStrategy(orDefault(r.FixStrategy, string(types.FixManual))),
		Confidence:   types.ClampConfidence(confidence),
	}
	return Parsed{Diagnosis: d, Ok: true, Method: method}
}

func parseConfidence(v any) (float64, error) {
	switch c := v.(type) {
	case nil:
		return 0.5, nil
	case float64:
		return c, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(c), 64)
	}
	return 0, fmt.Errorf("confidence has unexpected type %T", v)
}

func orDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// =============================================================================
// FIX GENERATION
// =============================================================================

// GenerateFix asks for corrected code. retry is the zero-based attempt that
// failed. The reply is returned raw; callers clean it before execution.
func (e *Engine) GenerateFix(ctx context.Context, step *types.Step, diag types.Diagnosis, retry int) (string, error) {
	logging.Fixer("Generating fix for step %d (attempt %d)", step.Number, retry+1)

	fixed, err := e.gen.Generate(ctx, FixPrompt(step, diag, retry))
	if err != nil {
		logging.Get(logging.CategoryFixer).Error("Failed to generate fix: %v", err)
		return "", fmt.Errorf("generate fix for step %d: %w", step.Number, err)
	}
	logging.FixerDebug("Generated fix length: %d characters", len(fixed))
	e.bus.Publish(events.Event{
		Type:    events.StepRetrying,
		Step:    step.Number,
		Message: fmt.Sprintf("Fix generated for step %d (attempt %d)", step.Number, retry+1),
		Data:    map[string]any{"fixed_code": fixed},
	})
	return fixed, nil
}

// RetryWithFix runs fixed once under the step's timeout. Success is judged by
// exit code alone. The returned error describes the failure; it is nil on
// success. The temporary script is removed on every path.
func (e *Engine) RetryWithFix(ctx context.Context, step *types.Step, fixed string, maxRetries int) (bool, string, error) {
	logging.Fixer("Retrying step %d with fix (budget %d)", step.Number, maxRetries)

	f, err := os.CreateTemp(e.tempDir, fmt.Sprintf("spectral-fix%d-*.py", step.Number))
	if err != nil {
		return false, "", fmt.Errorf("retry failed with exception: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.FixerWarn("failed to remove %s: %v", path, err)
		}
	}()

	_, werr := f.WriteString(fixed)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return false, "", fmt.Errorf("retry failed with exception: %w", werr)
	}

	timeout := step.EffectiveTimeout()
	res := e.ctrl.Exec(ctx, tactile.Spec{
		Command: e.toolchain.ScriptCommand(path),
		Dir:     filepath.Dir(path),
		Timeout: timeout,
	})

	switch {
	case res.TimedOut:
		msg := fmt.Sprintf("retry timed out after %d seconds", int(timeout/time.Second))
		logging.Get(logging.CategoryFixer).Error("%s", msg)
		return false, "", errors.New(msg)
	case res.ExitCode == 0:
		logging.Fixer("Retry successful for step %d", step.Number)
		return true, res.Stdout + res.Stderr, nil
	}

	output := res.Stdout + res.Stderr
	logging.FixerWarn("Retry failed for step %d: %s", step.Number, truncate(output, 200))
	return false, output, errors.New(strings.TrimSpace(output))
}
