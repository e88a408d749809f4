package types

import (
	"fmt"
	"time"
)

// StepStatus is the lifecycle state of a Step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepRetrying  StepStatus = "retrying"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed
}

// ValidationMethod says how a step's success is judged.
type ValidationMethod string

const (
	ValidateOutputPattern ValidationMethod = "output_pattern"
	ValidateFileExists    ValidationMethod = "file_exists"
	ValidateSyntaxCheck   ValidationMethod = "syntax_check"
	ValidateManual        ValidationMethod = "manual"
)

// ParseValidationMethod accepts the wire names, including the hyphenated
// forms, and defaults to output_pattern.
func ParseValidationMethod(s string) ValidationMethod {
	switch s {
	case "file_exists", "file-exists":
		return ValidateFileExists
	case "syntax_check", "syntax-check":
		return ValidateSyntaxCheck
	case "manual":
		return ValidateManual
	}
	return ValidateOutputPattern
}

// Step defaults.
const (
	DefaultStepTimeout    = 30 * time.Second
	DefaultStepMaxRetries = 3
)

// Step is one independently retryable unit of work in a plan.
type Step struct {
	Number                int
	Description           string
	Code                  string
	Command               []string
	Dependencies          []int
	IsCodeExecution       bool
	Validation            ValidationMethod
	ExpectedOutputPattern string
	MaxRetries            int
	Timeout               time.Duration

	status StepStatus
}

// NewStep returns a pending code step with default budgets.
func NewStep(number int, description string) *Step {
	return &Step{
		Number:          number,
		Description:     description,
		IsCodeExecution: true,
		Validation:      ValidateOutputPattern,
		MaxRetries:      DefaultStepMaxRetries,
		Timeout:         DefaultStepTimeout,
		status:          StepPending,
	}
}

// Status returns the current status. The zero value reads as pending.
func (s *Step) Status() StepStatus {
	if s.status == "" {
		return StepPending
	}
	return s.status
}

// SetStatus is the only mutation point for a step's status.
func (s *Step) SetStatus(next StepStatus) error {
	cur := s.Status()
	if cur.IsTerminal() {
		return fmt.Errorf("step %d: cannot move from %s to %s", s.Number, cur, next)
	}
	s.status = next
	return nil
}

// Attempts returns the effective retry budget.
func (s *Step) Attempts() int {
	if s.MaxRetries < 1 {
		return 1
	}
	return s.MaxRetries
}

// EffectiveTimeout returns the per-attempt timeout.
func (s *Step) EffectiveTimeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultStepTimeout
	}
	return s.Timeout
}
