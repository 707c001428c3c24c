package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aristath/agentgraph/internal/backend"
	"github.com/aristath/agentgraph/internal/config"
	"github.com/aristath/agentgraph/internal/events"
	"github.com/aristath/agentgraph/internal/logging"
	"github.com/aristath/agentgraph/internal/orchestrator"
	"github.com/aristath/agentgraph/internal/view"
)

var (
	bold = color.New(color.Bold).SprintFunc()
	red  = color.New(color.FgRed, color.Bold).SprintFunc()
	dim  = color.New(color.Faint).SprintFunc()
)

// errUsage ends the command after usage has been printed.
var errUsage = errors.New("no goal given")

// backendFactory creates the completion backend for a loaded config.
type backendFactory func(cfg *config.Config, pm *backend.ProcessManager, logger *zap.Logger) (backend.Backend, error)

// app holds the process-wide collaborators of the CLI.
type app struct {
	stdout      io.Writer
	stderr      io.Writer
	globalPath  string
	projectPath string
	newBackend  backendFactory
	pm          *backend.ProcessManager

	flagTree       bool
	flagConfig     string
	flagBackend    string
	flagModel      string
	flagLogLevel   string
	flagIterations int
	flagSaveConfig string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		newBackend: defaultBackend,
		pm:         backend.NewProcessManager(),
	}
	if globalPath, err := config.GlobalPath(); err == nil {
		a.globalPath = globalPath
	}
	a.projectPath = config.ProjectPath()

	// Kill subprocess adapters on Ctrl+C or SIGTERM
	go func() {
		<-ctx.Done()
		_ = a.pm.KillAll()
	}()

	os.Exit(a.execute(ctx, os.Args[1:]))
}

// defaultBackend builds the configured adapter behind retry and circuit
// breaking.
func defaultBackend(cfg *config.Config, pm *backend.ProcessManager, logger *zap.Logger) (backend.Backend, error) {
	b, err := backend.New(cfg.BackendConfig(), pm)
	if err != nil {
		return nil, err
	}
	if !cfg.Retry.Enabled {
		return b, nil
	}
	return backend.NewResilient(b, cfg.RetryConfig(), cfg.BreakerConfig(), logger.Named("backend")), nil
}

// execute runs the root command and returns the process exit code.
func (a *app) execute(ctx context.Context, args []string) int {
	if args == nil {
		args = []string{} // cobra falls back to os.Args on nil
	}
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(a.stderr, "%s %v\n", red("Error:"), err)
		}
		return 1
	}
	return 0
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentgraph [flags] <goal...>",
		Short: "Answer a goal with a coordinator and a team of generated worker agents",
		Long: `agentgraph asks a coordinator model to define specialized workers for a goal,
plans subtasks with dependencies, runs them in dependency order, aggregates
the results and refines the answer until the coordinator accepts it.`,
		Example:       `  agentgraph "Explain quantum computing to a beginner"`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.run,
	}

	flags := cmd.Flags()
	flags.BoolVar(&a.flagTree, "tree", false, "Print the task graph before the answer")
	flags.StringVar(&a.flagConfig, "config", "", "Project config file (default .agentgraph/config.yaml)")
	flags.StringVar(&a.flagBackend, "backend", "", "Backend type: ollama, anthropic, bedrock, claude, goose or codex")
	flags.StringVar(&a.flagModel, "model", "", "Model for the coordinator and for workers")
	flags.StringVar(&a.flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.IntVar(&a.flagIterations, "max-iterations", 0, "Refinement iterations (default from config)")
	flags.StringVar(&a.flagSaveConfig, "save-config", "", "Write the effective config to this path and exit")
	flags.SetInterspersed(false)

	return cmd
}

// loadConfig loads the config files and applies flag overrides.
func (a *app) loadConfig() (*config.Config, error) {
	projectPath := a.projectPath
	if a.flagConfig != "" {
		projectPath = a.flagConfig
	}

	cfg, err := config.Load(a.globalPath, projectPath)
	if err != nil {
		return nil, err
	}

	if a.flagBackend != "" {
		cfg.Backend.Type = a.flagBackend
	}
	if a.flagModel != "" {
		cfg.Models.Coordinator = a.flagModel
		cfg.Models.Worker = a.flagModel
	}
	if a.flagLogLevel != "" {
		cfg.Log.Level = a.flagLogLevel
	}
	if a.flagIterations > 0 {
		cfg.Loop.MaxIterations = a.flagIterations
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) run(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if a.flagSaveConfig != "" {
		if err := config.Save(cfg, a.flagSaveConfig); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Saved config to %s\n", bold(a.flagSaveConfig))
		return nil
	}

	goal := strings.TrimSpace(strings.Join(args, " "))
	if goal == "" {
		a.printUsage(cmd)
		return errUsage
	}

	logger, err := logging.NewWithWriter(cfg.LoggingConfig(), a.stderr)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	b, err := a.newBackend(cfg, a.pm, logger)
	if err != nil {
		return fmt.Errorf("creating backend: %w", err)
	}
	defer b.Close()

	bus := events.NewBus()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		narrate(bus.SubscribeAll(256), logger.Named("progress"))
	}()

	logger.Info("multi-agent orchestrator",
		zap.String("backend", cfg.Backend.Type),
		zap.String("coordinator_model", cfg.Models.Coordinator),
		zap.String("worker_model", cfg.Models.Worker))

	runner := orchestrator.NewRunner(b, cfg.RunnerConfig(), bus, logger.Named("orchestrator"))
	res := runner.Run(cmd.Context(), goal)

	bus.Close()
	wg.Wait()

	if a.flagTree && res.Graph != nil {
		fmt.Fprint(a.stdout, view.TaskTree(res.Graph))
	}
	fmt.Fprint(a.stdout, view.Answer(res.Answer))
	return nil
}

func (a *app) printUsage(cmd *cobra.Command) {
	fmt.Fprintf(a.stdout, "%s agentgraph '<your question or task>'\n", bold("Usage:"))
	fmt.Fprintf(a.stdout, "%s agentgraph 'Explain quantum computing to a beginner'\n", bold("Example:"))
	fmt.Fprintf(a.stdout, "\n%s\n", dim("Flags:"))
	fmt.Fprint(a.stdout, cmd.Flags().FlagUsages())
}

// narrate logs bus events at debug level until the bus closes.
func narrate(ch <-chan events.Event, logger *zap.Logger) {
	for ev := range ch {
		switch e := ev.(type) {
		case events.TaskStartedEvent:
			logger.Debug("task started", zap.String("task_id", e.ID), zap.String("worker", e.Worker))
		case events.TaskCompletedEvent:
			logger.Debug("task completed", zap.String("task_id", e.ID), zap.String("worker", e.Worker), zap.Duration("duration", e.Duration))
		case events.TaskFailedEvent:
			logger.Debug("task failed", zap.String("task_id", e.ID), zap.String("worker", e.Worker), zap.Error(e.Err))
		case events.GraphProgressEvent:
			logger.Debug("graph progress",
				zap.Int("round", e.Round),
				zap.Int("done", e.Done),
				zap.Int("failed", e.Failed),
				zap.Int("pending", e.Pending),
				zap.Int("total", e.Total))
		case events.IterationStartedEvent:
			logger.Debug("iteration started", zap.Int("iteration", e.Iteration), zap.Int("max_iterations", e.MaxIterations))
		case events.IterationEvaluatedEvent:
			logger.Debug("iteration evaluated", zap.Int("iteration", e.Iteration), zap.Bool("satisfactory", e.Satisfactory))
		}
	}
}
