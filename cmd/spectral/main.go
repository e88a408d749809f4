package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"spectral/internal/config"
	"spectral/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	// Logger
	logger = zap.NewNop()

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "spectral",
	Short: "spectral - generate, verify and run Python programs",
	Long: `spectral turns a natural-language request into a Python program, checks it
in an isolated sandbox run and executes it while watching its output.

Simple requests are generated and verified in one pass. Larger requests are
broken into steps; a failing step is diagnosed, fixed and retried before the
plan moves on.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, _ = os.Getwd()
		}
		path := configPath
		if path == "" {
			path = resolvePath(config.DefaultConfigPath)
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(cfg.Logging.Options(workspace)); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logger.Debug("Configuration loaded", zap.String("path", path), zap.String("provider", cfg.LLM.Provider))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/"+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	runCmd.Flags().BoolVar(&showCode, "show-code", false, "Print generated code as it is produced")
	runCmd.Flags().BoolVar(&keepRuns, "keep", false, "Keep sandbox run directories")

	verifyCmd.Flags().BoolVar(&verifyGUI, "gui", false, "Treat the program as a GUI program")
	verifyCmd.Flags().BoolVar(&verifyCLI, "cli", false, "Treat the program as a command-line program")
	verifyCmd.Flags().BoolVar(&keepRuns, "keep", false, "Keep the sandbox run directory")
	verifyCmd.Flags().BoolVar(&withBasicTest, "with-basic-test", false, "Generate an import-and-compile test")
	verifyCmd.Flags().StringSliceVar(&stdinLines, "stdin", nil, "Input lines for the smoke run")
	verifyCmd.MarkFlagsMutuallyExclusive("gui", "cli")

	injectCmd.Flags().BoolVar(&countOnly, "count", false, "Only report how many input() calls were found")

	diagnoseCmd.Flags().BoolVar(&applyFix, "fix", false, "Generate a fix and re-run it")

	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "Remove every run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(tailCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
