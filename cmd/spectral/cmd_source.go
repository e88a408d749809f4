package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"spectral/internal/articulation"
	"spectral/internal/injector"
	"spectral/internal/monitor"
	"spectral/internal/types"
)

var (
	countOnly bool
	applyFix  bool
)

// injectCmd shows a program with descriptive input() prompts
var injectCmd = &cobra.Command{
	Use:   "inject [file.py]",
	Short: "Print a program with prompts injected into bare input() calls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		p := newPrinter(cmd.OutOrStdout())
		source := string(src)
		if countOnly {
			p.line("%d input() call(s), existing prompts: %v", injector.CountInputCalls(source), injector.HasExistingPrompts(source))
			return nil
		}
		p.code(injector.InjectPrompts(source))
		return nil
	},
}

// diagnoseCmd runs a program once and explains its failure
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [file.py]",
	Short: "Run a Python file and diagnose its failure",
	Long: `Executes the file once while watching its output. When it fails, the
error is classified and the collaborator is asked for a root cause and a fix.
With --fix the suggested fix is generated and executed.`,
	Args: cobra.ExactArgs(1),
	RunE: diagnoseFile,
}

func diagnoseFile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	a := newApp()
	defer a.close()
	p := newPrinter(cmd.OutOrStdout())

	step := types.NewStep(1, "run "+args[0])
	step.Code = string(src)
	step.Timeout = cfg.GetExecutionTimeout()

	var full, errOut strings.Builder
	for line := range a.monitor().ExecuteStep(ctx, step) {
		full.WriteString(line.Text + "\n")
		if line.IsError {
			errOut.WriteString(line.Text + "\n")
		}
		p.progress("   " + line.Text)
	}
	if errOut.Len() == 0 {
		p.ok("✓ No failure detected")
		return nil
	}

	kind, detail := monitor.ClassifyError(errOut.String())
	p.fail("Error type: " + kind)

	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	fixer := a.fixer(client)
	parsed := fixer.DiagnoseParsed(ctx, step, kind, detail, full.String())
	d := parsed.Diagnosis
	logger.Info("Diagnosis", zap.String("kind", kind), zap.Bool("parsed", parsed.Ok), zap.Float64("confidence", d.Confidence))

	p.markdown(fmt.Sprintf("## Diagnosis\n\n- **Error:** %s\n- **Root cause:** %s\n- **Suggested fix:** %s\n- **Strategy:** %s (confidence %.2f)\n",
		kind, d.RootCause, d.SuggestedFix, d.Strategy, d.Confidence))
	if !applyFix {
		return nil
	}

	reply, err := fixer.GenerateFix(ctx, step, d, 0)
	if err != nil {
		return err
	}
	fixed, err := articulation.CleanCode(reply)
	if err != nil {
		return err
	}
	p.title("Fixed code")
	p.code(fixed)

	ok, output, err := fixer.RetryWithFix(ctx, step, fixed, cfg.Execution.MaxRetries)
	if output != "" {
		p.line("%s", strings.TrimRight(output, "\n"))
	}
	if !ok {
		return fmt.Errorf("fix did not succeed: %w", err)
	}
	p.ok("✓ Fix succeeded")
	return nil
}
