package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"spectral/internal/sandbox"
)

var (
	verifyGUI     bool
	verifyCLI     bool
	withBasicTest bool
	stdinLines    []string
	cleanupAll    bool
)

// verifyCmd runs an existing program through the verification gates
var verifyCmd = &cobra.Command{
	Use:   "verify [file.py]",
	Short: "Run a Python file through the sandbox verification gates",
	Long: `Copies the file into a fresh sandbox run and checks it gate by gate:
syntax, GUI safety, then its tests (when the run has any) or a timed smoke
run. GUI programs must expose a dual-mode entry such as
create_app(test_mode=False) and are only imported, never shown.`,
	Args: cobra.ExactArgs(1),
	RunE: verifyFile,
}

// cleanupCmd removes sandbox runs
var cleanupCmd = &cobra.Command{
	Use:   "cleanup [run-id...]",
	Short: "Remove sandbox runs",
	RunE:  cleanupRuns,
}

// tailCmd follows the live logs of a run
var tailCmd = &cobra.Command{
	Use:   "tail [run-id]",
	Short: "Follow the logs of a sandbox run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a := newApp()
		defer a.close()
		err := a.sandbox.Follow(ctx, args[0], cmd.OutOrStdout())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func verifyFile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	a := newApp()
	defer a.close()
	runID, err := a.sandbox.CreateRun()
	if err != nil {
		return err
	}

	var isGUI *bool
	switch {
	case verifyGUI:
		isGUI = &verifyGUI
	case verifyCLI:
		gui := false
		isGUI = &gui
	}
	var opts []sandbox.PipelineOption
	if withBasicTest {
		opts = append(opts, sandbox.WithBasicTest())
	}
	if len(stdinLines) > 0 {
		opts = append(opts, sandbox.WithStdin(stdinLines))
	}

	res := a.sandbox.ExecuteVerificationPipeline(ctx, runID, string(src), filepath.Base(args[0]), isGUI, opts...)
	logger.Info("Verification finished", zap.String("run", runID), zap.String("status", string(res.Status)))

	p := newPrinter(cmd.OutOrStdout())
	printResult(p, res)

	if keepRuns || cfg.Sandbox.KeepRuns {
		p.muted("run kept at " + a.sandbox.RunPath(runID))
	} else if err := a.sandbox.CleanupRun(runID); err != nil {
		logger.Warn("Cleanup failed", zap.String("run", runID), zap.Error(err))
	}

	if !res.Succeeded() {
		return fmt.Errorf("verification failed: %s", res.Status)
	}
	return nil
}

func printResult(p *printer, res *sandbox.Result) {
	p.title("run " + res.RunID)
	for _, g := range res.Gates {
		switch {
		case g.Skipped:
			p.muted("  - " + g.Name + " (skipped)")
		case g.Passed:
			p.ok("  ✓ " + g.Name)
		default:
			p.fail("  ✗ " + g.Name)
		}
	}
	if res.TestSummary != "" {
		p.muted(res.TestSummary)
	}
	if res.Stdout != "" {
		p.line("%s", res.Stdout)
	}
	if res.Succeeded() {
		p.ok(fmt.Sprintf("status: %s (%s)", res.Status, res.Duration.Round(time.Millisecond)))
		return
	}
	p.fail(fmt.Sprintf("status: %s", res.Status))
	if res.ErrorMessage != "" {
		p.line("%s", res.ErrorMessage)
	}
}

func cleanupRuns(cmd *cobra.Command, args []string) error {
	if !cleanupAll && len(args) == 0 {
		return errors.New("name at least one run or pass --all")
	}

	a := newApp()
	defer a.close()
	ids := args
	if cleanupAll {
		all, err := a.sandbox.ListRuns()
		if err != nil {
			return err
		}
		ids = all
	}

	p := newPrinter(cmd.OutOrStdout())
	removed := 0
	for _, id := range ids {
		if err := a.sandbox.CleanupRun(id); err != nil {
			p.fail(fmt.Sprintf("%s: %v", id, err))
			continue
		}
		removed++
	}
	p.ok(fmt.Sprintf("Removed %d run(s)", removed))
	return nil
}
