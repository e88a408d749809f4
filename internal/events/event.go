// Package events carries progress from the execution pipeline to whoever is
// watching: the CLI, tests, or a future front end.
package events

import "time"

// Type names one kind of progress event.
type Type string

const (
	GenerationStart      Type = "generation_start"
	CodeChunk            Type = "code_chunk"
	GenerationComplete   Type = "generation_complete"
	GenerationError      Type = "generation_error"
	StepStarted          Type = "step_started"
	StepCompleted        Type = "step_completed"
	StepFailed           Type = "step_failed"
	StepRetrying         Type = "step_retrying"
	Diagnosis            Type = "diagnosis"
	VerificationComplete Type = "verification_complete"
)

// Event is one progress notification. ID is assigned by the bus and grows
// monotonically.
type Event struct {
	ID        uint64
	Type      Type
	Timestamp time.Time

	// Step is the 1-based step number, zero outside planned execution.
	Step    int
	Message string
	Data    map[string]any
}
