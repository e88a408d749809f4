package types

// ExecutionMode is the router's verdict for a request.
type ExecutionMode string

const (
	ModeDirect         ExecutionMode = "direct"
	ModePlanning       ExecutionMode = "planning"
	ModeResearch       ExecutionMode = "research"
	ModeResearchAndAct ExecutionMode = "research_and_act"
)
