package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"spectral/internal/events"
	"spectral/internal/orchestrator"
	"spectral/internal/perception"
)

var (
	showCode bool
	keepRuns bool
)

// runCmd routes and executes one request
var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Generate, verify and execute a request",
	Long: `Routes the request, then either generates one program, verifies it in a
sandbox run and executes it (direct mode), or breaks the request into steps
and executes them in order with diagnosis and retry (planning mode).

Example:
  spectral run write a script that prints the first 10 primes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

// classifyCmd prints the routing decision
var classifyCmd = &cobra.Command{
	Use:   "classify [request]",
	Short: "Show how a request would be routed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		request := joinArgs(args)
		router := perception.NewRouter()
		mode, conf := router.Classify(request)
		s := router.Score(request)

		p := newPrinter(cmd.OutOrStdout())
		p.title(fmt.Sprintf("mode: %s (confidence %.2f)", mode, conf))
		p.muted(fmt.Sprintf("scores: direct=%.2f planning=%.2f research=%.2f", s.Direct, s.Planning, s.Research))
		return nil
	},
}

// planCmd prints the step breakdown without executing it
var planCmd = &cobra.Command{
	Use:   "plan [request]",
	Short: "Break a request into executable steps",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a := newApp()
		defer a.close()
		client, err := a.client(ctx)
		if err != nil {
			return err
		}

		request := joinArgs(args)
		steps := a.planner(client).Breakdown(ctx, request)

		var md strings.Builder
		fmt.Fprintf(&md, "# Plan: %s\n\n%d step(s)\n\n", request, len(steps))
		for _, s := range steps {
			fmt.Fprintf(&md, "%d. **%s**\n", s.Number, s.Description)
			if len(s.Dependencies) > 0 {
				fmt.Fprintf(&md, "   - depends on %v\n", s.Dependencies)
			}
			if len(s.Command) > 0 {
				fmt.Fprintf(&md, "   - command: `%s`\n", strings.Join(s.Command, " "))
			}
			fmt.Fprintf(&md, "   - validation: %s, timeout %s, %d attempt(s)\n", s.Validation, s.EffectiveTimeout(), s.Attempts())
		}
		newPrinter(cmd.OutOrStdout()).markdown(md.String())
		return nil
	},
}

func runRequest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	request := joinArgs(args)
	logger.Info("Processing request", zap.String("input", request))

	a := newApp()
	client, err := a.client(ctx)
	if err != nil {
		a.close()
		return err
	}
	logger.Debug("Using collaborator", zap.String("name", client.Name()))

	p := newPrinter(cmd.OutOrStdout())
	ch, unsubscribe := a.bus.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range ch {
			logger.Debug("event", zap.String("type", string(e.Type)), zap.Int("step", e.Step), zap.String("message", e.Message))
			if showCode && e.Type == events.GenerationComplete {
				if code, ok := e.Data["code"].(string); ok {
					p.code(code)
				}
			}
		}
	}()

	var report orchestrator.Report
	record := orchestrator.WithReporter(func(r orchestrator.Report) {
		report = r
		logger.Info("Request finished",
			zap.String("mode", string(r.Mode)),
			zap.Int("completed", r.StepsCompleted),
			zap.Int("total", r.StepsTotal),
			zap.String("verification", string(r.Verification)),
			zap.Duration("duration", r.Duration))
	})

	for line := range a.orchestrator(client, record).Process(ctx, request) {
		p.progress(line)
	}

	unsubscribe()
	wg.Wait()
	a.close()

	if stats := a.bus.Stats(); stats.Dropped > 0 {
		logger.Warn("Events dropped", zap.Uint64("dropped", stats.Dropped))
	}
	if !report.Succeeded {
		return errors.New("request did not complete")
	}
	return nil
}
