package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"spectral/internal/events"
	"spectral/internal/fixing"
	"spectral/internal/monitor"
	"spectral/internal/orchestrator"
	"spectral/internal/perception"
	"spectral/internal/planner"
	"spectral/internal/sandbox"
	"spectral/internal/tactile"
	"spectral/internal/tactile/python"
	"spectral/internal/types"
)

// app holds the components shared by the commands.
type app struct {
	ctrl      *tactile.Controller
	toolchain *python.Toolchain
	sandbox   *sandbox.Manager
	bus       *events.Bus
}

func newApp() *app {
	ctrl := tactile.NewController()
	tc := python.NewToolchain(python.Config{
		Interpreter: cfg.Sandbox.Python,
		Pytest:      cfg.Sandbox.Pytest,
		TestTimeout: cfg.GetTestTimeout(),
	}, ctrl)
	return &app{
		ctrl:      ctrl,
		toolchain: tc,
		sandbox: sandbox.NewManager(sandbox.Config{
			BaseDir:      resolvePath(cfg.Sandbox.BaseDir),
			SmokeTimeout: cfg.GetSmokeTimeout(),
		}, ctrl, tc),
		bus: events.NewBus(events.DefaultBuffer),
	}
}

func (a *app) close() { a.bus.Close() }

func (a *app) client(ctx context.Context) (perception.Client, error) {
	return perception.NewClient(ctx, cfg.LLM, cfg.GetLLMTimeout())
}

func (a *app) monitor() *monitor.Monitor {
	return monitor.New(a.ctrl, a.toolchain, monitor.WithLogDir(a.sandbox.StepLogDir()))
}

func (a *app) fixer(gen types.Generator) *fixing.Engine {
	return fixing.NewEngine(gen, a.ctrl, a.toolchain, fixing.WithBus(a.bus))
}

func (a *app) planner(gen types.Generator) *planner.Planner {
	return planner.New(gen, planner.WithDefaults(cfg.GetExecutionTimeout(), cfg.Execution.MaxRetries))
}

func (a *app) orchestrator(gen types.Generator, extra ...orchestrator.Option) *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithDirectConfidence(cfg.Execution.DirectConfidence),
		orchestrator.WithMaxAttempts(cfg.Execution.MaxRetries),
		orchestrator.WithKeepRuns(keepRuns || cfg.Sandbox.KeepRuns),
	}
	return orchestrator.New(orchestrator.Components{
		Generator: gen,
		Planner:   a.planner(gen),
		Monitor:   a.monitor(),
		Fixer:     a.fixer(gen),
		Sandbox:   a.sandbox,
		Bus:       a.bus,
	}, append(opts, extra...)...)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// resolvePath makes p absolute relative to the workspace.
func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
