package logging

import "time"

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

// BootWarn logs warning to the boot category
func BootWarn(format string, args ...interface{}) { Get(CategoryBoot).Warn(format, args...) }

// Process logs to the process category
func Process(format string, args ...interface{}) { Get(CategoryProcess).Info(format, args...) }

// ProcessDebug logs debug to the process category
func ProcessDebug(format string, args ...interface{}) { Get(CategoryProcess).Debug(format, args...) }

// ProcessWarn logs warning to the process category
func ProcessWarn(format string, args ...interface{}) { Get(CategoryProcess).Warn(format, args...) }

// ProcessError logs error to the process category
func ProcessError(format string, args ...interface{}) { Get(CategoryProcess).Error(format, args...) }

// Monitor logs to the monitor category
func Monitor(format string, args ...interface{}) { Get(CategoryMonitor).Info(format, args...) }

// MonitorDebug logs debug to the monitor category
func MonitorDebug(format string, args ...interface{}) { Get(CategoryMonitor).Debug(format, args...) }

// MonitorWarn logs warning to the monitor category
func MonitorWarn(format string, args ...interface{}) { Get(CategoryMonitor).Warn(format, args...) }

// Injector logs to the injector category
func Injector(format string, args ...interface{}) { Get(CategoryInjector).Info(format, args...) }

// InjectorDebug logs debug to the injector category
func InjectorDebug(format string, args ...interface{}) { Get(CategoryInjector).Debug(format, args...) }

// Sandbox logs to the sandbox category
func Sandbox(format string, args ...interface{}) { Get(CategorySandbox).Info(format, args...) }

// SandboxDebug logs debug to the sandbox category
func SandboxDebug(format string, args ...interface{}) { Get(CategorySandbox).Debug(format, args...) }

// SandboxWarn logs warning to the sandbox category
func SandboxWarn(format string, args ...interface{}) { Get(CategorySandbox).Warn(format, args...) }

// SandboxError logs error to the sandbox category
func SandboxError(format string, args ...interface{}) { Get(CategorySandbox).Error(format, args...) }

// Fixer logs to the fixer category
func Fixer(format string, args ...interface{}) { Get(CategoryFixer).Info(format, args...) }

// FixerDebug logs debug to the fixer category
func FixerDebug(format string, args ...interface{}) { Get(CategoryFixer).Debug(format, args...) }

// FixerWarn logs warning to the fixer category
func FixerWarn(format string, args ...interface{}) { Get(CategoryFixer).Warn(format, args...) }

// Planner logs to the planner category
func Planner(format string, args ...interface{}) { Get(CategoryPlanner).Info(format, args...) }

// PlannerDebug logs debug to the planner category
func PlannerDebug(format string, args ...interface{}) { Get(CategoryPlanner).Debug(format, args...) }

// PlannerWarn logs warning to the planner category
func PlannerWarn(format string, args ...interface{}) { Get(CategoryPlanner).Warn(format, args...) }

// Router logs to the router category
func Router(format string, args ...interface{}) { Get(CategoryRouter).Info(format, args...) }

// RouterDebug logs debug to the router category
func RouterDebug(format string, args ...interface{}) { Get(CategoryRouter).Debug(format, args...) }

// Orchestrator logs to the orchestrator category
func Orchestrator(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Info(format, args...)
}

// OrchestratorDebug logs debug to the orchestrator category
func OrchestratorDebug(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Debug(format, args...)
}

// OrchestratorWarn logs warning to the orchestrator category
func OrchestratorWarn(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Warn(format, args...)
}

// LLM logs to the llm category
func LLM(format string, args ...interface{}) { Get(CategoryLLM).Info(format, args...) }

// LLMDebug logs debug to the llm category
func LLMDebug(format string, args ...interface{}) { Get(CategoryLLM).Debug(format, args...) }

// LLMError logs error to the llm category
func LLMError(format string, args ...interface{}) { Get(CategoryLLM).Error(format, args...) }

// World logs to the world category
func World(format string, args ...interface{}) { Get(CategoryWorld).Info(format, args...) }

// WorldDebug logs debug to the world category
func WorldDebug(format string, args ...interface{}) { Get(CategoryWorld).Debug(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer tracks operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
