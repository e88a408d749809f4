// Package logging provides config-driven categorized logging for spectral.
// Each category gets its own zap logger; when a log directory is configured
// the category writes to <log_dir>/<date>_<category>.log, otherwise to stderr.
// Logging is silent unless Initialize has been called with DebugMode set.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // Boot/initialization
	CategoryProcess      Category = "process"      // Process controller, tree kills
	CategoryMonitor      Category = "monitor"      // Live output classification
	CategoryInjector     Category = "injector"     // input() prompt rewriting
	CategorySandbox      Category = "sandbox"      // Run directories and gates
	CategoryFixer        Category = "fixer"        // Diagnosis and fix generation
	CategoryPlanner      Category = "planner"      // Step breakdown
	CategoryRouter       Category = "router"       // Execution mode routing
	CategoryOrchestrator Category = "orchestrator" // Dual-mode control loop
	CategoryLLM          Category = "llm"          // Text-generation backends
	CategoryEvents       Category = "events"       // Event bus
	CategoryWorld        Category = "world"        // Python source parsing
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
	// LogDir is where category files go. Empty means stderr.
	LogDir string
}

// Logger is a printf-style wrapper around a category's zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	opts      Options
	optsMu    sync.RWMutex
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Initialize configures logging. Safe to call more than once; existing
// category loggers are flushed and rebuilt lazily.
func Initialize(o Options) error {
	CloseAll()

	optsMu.Lock()
	opts = o
	optsMu.Unlock()

	if err := level.UnmarshalText([]byte(levelOrDefault(o.Level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}

	if !o.DebugMode {
		return nil
	}

	if o.LogDir != "" {
		if err := os.MkdirAll(o.LogDir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}

	boot := Get(CategoryBoot)
	boot.Info("=== spectral logging initialized ===")
	boot.Info("Logs directory: %s", o.LogDir)
	boot.Info("Log level: %s", level.Level())
	if len(o.Categories) == 0 {
		boot.Info("All categories enabled (no category filter)")
	}
	return nil
}

func levelOrDefault(l string) string {
	switch l {
	case "":
		return "info"
	case "warning":
		return "warn"
	}
	return l
}

// IsDebugMode returns whether logging is enabled at all
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	z, err := buildZap(category)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not build %s logger: %v\n", category, err)
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}
	l := &Logger{category: category, sugar: z.Sugar()}
	loggers[category] = l
	return l
}

func buildZap(category Category) (*zap.Logger, error) {
	optsMu.RLock()
	o := opts
	optsMu.RUnlock()

	var cfg zap.Config
	if o.JSONFormat {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
	}
	cfg.Level = level
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if o.LogDir != "" {
		name := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
		cfg.OutputPaths = []string{filepath.Join(o.LogDir, name)}
	} else {
		cfg.OutputPaths = []string{"stderr"}
	}
	cfg.ErrorOutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return z.With(zap.String("category", string(category))), nil
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a child logger carrying structured key/value fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// WithRunID tags every entry with a sandbox run identifier.
func (l *Logger) WithRunID(runID string) *Logger {
	return l.With("run_id", runID)
}

// CloseAll flushes all category loggers (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		_ = l.sugar.Sync()
	}
	loggers = make(map[Category]*Logger)
}
