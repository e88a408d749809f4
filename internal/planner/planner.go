// Package planner breaks a request into ordered, independently retryable
// steps.
package planner

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"spectral/internal/articulation"
	"spectral/internal/logging"
	"spectral/internal/types"
)

// complexityIndicators are matched as substrings of the lowercased request.
var complexityIndicators = []string{
	"with", "and", "then", "also", "including", "plus", "multi",
	"step", "phase", "stage", "pipeline", "workflow",
	"error handling", "logging", "testing", "validation",
	"database", "api", "web", "server", "client",
}

// IsComplex reports whether request warrants a decomposition call: at least
// two complexity indicators or more than ten words.
func IsComplex(request string) bool {
	lower := strings.ToLower(request)
	count := 0
	for _, ind := range complexityIndicators {
		if strings.Contains(lower, ind) {
			count++
		}
	}
	return count >= 2 || len(strings.Fields(request)) > 10
}

// Planner turns requests into step lists.
type Planner struct {
	gen        types.Generator
	timeout    time.Duration
	maxRetries int
}

// Option configures a Planner.
type Option func(*Planner)

// WithDefaults sets the budgets given to steps that do not specify their own.
func WithDefaults(timeout time.Duration, maxRetries int) Option {
	return func(p *Planner) {
		if timeout > 0 {
			p.timeout = timeout
		}
		if maxRetries > 0 {
			p.maxRetries = maxRetries
		}
	}
}

// New creates a planner backed by gen.
func New(gen types.Generator, opts ...Option) *Planner {
	p := &Planner{gen: gen, timeout: types.DefaultStepTimeout, maxRetries: types.DefaultStepMaxRetries}
	for _, opt := range opts {
		opt(p)
	}
	logging.Planner("CodeStepBreakdown initialized")
	return p
}

// Breakdown returns at least one step for request. Simple requests become a
// single step without consulting the collaborator; any generation or parse
// failure also collapses to that single step.
func (p *Planner) Breakdown(ctx context.Context, request string) []*types.Step {
	logging.Planner("Breaking down request: %s", request)

	if !IsComplex(request) {
		logging.Planner("Request appears simple, returning single step")
		return p.single(request)
	}

	reply, err := p.gen.Generate(ctx, BreakdownPrompt(request))
	if err != nil {
		logging.Get(logging.CategoryPlanner).Error("Failed to breakdown request: %v", err)
		return p.single(request)
	}
	steps, err := p.parse(reply)
	if err != nil {
		logging.PlannerWarn("Failed to parse breakdown, using single step: %v", err)
		return p.single(request)
	}

	steps = ValidateSteps(steps)
	logging.Planner("Created %d steps", len(steps))
	return steps
}

func (p *Planner) single(request string) []*types.Step {
	s := types.NewStep(1, request)
	s.Timeout = p.timeout
	s.MaxRetries = p.maxRetries
	return []*types.Step{s}
}

// =============================================================================
// PARSING
// =============================================================================

var errNoSteps = errors.New("breakdown contained no steps")

type rawPlan struct {
	Steps []rawStep `json:"steps"`
}

type rawStep struct {
	StepNumber            any     `json:"step_number"`
	Description           string  `json:"description"`
	CodeNeeded            *bool   `json:"code_needed"`
	IsCodeExecution       *bool   `json:"is_code_execution"`
	ValidationMethod      string  `json:"validation_method"`
	ExpectedOutputPattern *string `json:"expected_output_pattern"`
	Dependencies          []any   `json:"dependencies"`
	TimeoutSeconds        any     `json:"timeout_seconds"`
	MaxRetries            any     `json:"max_retries"`
}

func (p *Planner) parse(reply string) ([]*types.Step, error) {
	var plan rawPlan
	method, err := articulation.DecodeJSON(reply, &plan)
	if err != nil {
		return nil, err
	}
	logging.PlannerDebug("breakdown decoded via %s", method)
	if len(plan.Steps) == 0 {
		return nil, errNoSteps
	}

	steps := make([]*types.Step, 0, len(plan.Steps))
	for i, rs := range plan.Steps {
		num, ok := asInt(rs.StepNumber)
		if !ok {
			num = i + 1
		}
		s := types.NewStep(num, strings.TrimSpace(rs.Description))
		if rs.IsCodeExecution != nil {
			s.IsCodeExecution = *rs.IsCodeExecution
		}
		s.Validation = types.ParseValidationMethod(rs.ValidationMethod)
		if rs.ExpectedOutputPattern != nil {
			s.ExpectedOutputPattern = *rs.ExpectedOutputPattern
		}
		for _, d := range rs.Dependencies {
			if dep, ok := asInt(d); ok {
				s.Dependencies = append(s.Dependencies, dep)
			} else {
				logging.PlannerWarn("Ignoring non-numeric dependency %v in step %d", d, num)
			}
		}
		s.Timeout = p.timeout
		if secs, ok := asFloat(rs.TimeoutSeconds); ok && secs > 0 {
			s.Timeout = time.Duration(secs * float64(time.Second))
		}
		s.MaxRetries = p.maxRetries
		if n, ok := asInt(rs.MaxRetries); ok && n > 0 {
			s.MaxRetries = n
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// ValidateSteps renumbers steps 1..N in list order and drops every
// dependency that is out of range or not strictly earlier than its step.
func ValidateSteps(steps []*types.Step) []*types.Step {
	for i, s := range steps {
		s.Number = i + 1
	}
	for _, s := range steps {
		valid := s.Dependencies[:0]
		for _, dep := range s.Dependencies {
			if dep >= 1 && dep <= len(steps) && dep < s.Number {
				valid = append(valid, dep)
			} else {
				logging.PlannerWarn("Invalid dependency %d in step %d", dep, s.Number)
			}
		}
		if len(valid) == 0 {
			valid = nil
		}
		s.Dependencies = valid
	}
	return steps
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
