// Package orchestrator runs the refinement loop: define workers, plan,
// execute, aggregate and evaluate until the coordinator is satisfied or the
// iteration cap is reached.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aristath/agentgraph/internal/agent"
	"github.com/aristath/agentgraph/internal/backend"
	"github.com/aristath/agentgraph/internal/coordinator"
	"github.com/aristath/agentgraph/internal/errs"
	"github.com/aristath/agentgraph/internal/events"
	"github.com/aristath/agentgraph/internal/scheduler"
	"github.com/aristath/agentgraph/internal/structured"
	"github.com/aristath/agentgraph/internal/util"
)

// Config configures the refinement loop.
type Config struct {
	MaxIterations    int    // Refinement iterations (default 5)
	CoordinatorModel string // Model for the coordinator
	WorkerModel      string // Default model for workers that name none
	Scheduler        scheduler.Config
	Coordinator      coordinator.Config
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:    5,
		CoordinatorModel: "gpt-oss",
		WorkerModel:      "gpt-oss",
		Scheduler:        scheduler.DefaultConfig(),
		Coordinator:      coordinator.DefaultConfig(),
	}
}

// Result is the outcome of a Run. Answer is always set.
type Result struct {
	Answer       string
	Iterations   int                    // Iterations started
	Satisfactory bool                   // Coordinator accepted the answer
	Degraded     bool                   // A stage failed; Answer is a fallback
	Err          error                  // Stage failure behind a degraded result
	Evaluation   coordinator.Evaluation // Verdict on the last evaluated answer
	Graph        *scheduler.Graph       // Task graph of the last executed iteration
}

// Runner drives the refinement loop.
type Runner struct {
	cfg    Config
	coord  *coordinator.Coordinator
	sched  *scheduler.Scheduler
	bus    *events.Bus
	logger *zap.Logger
}

// NewRunner creates a runner over b. bus may be nil.
func NewRunner(b backend.Backend, cfg Config, bus *events.Bus, logger *zap.Logger) *Runner {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.CoordinatorModel == "" {
		cfg.CoordinatorModel = def.CoordinatorModel
	}
	if cfg.WorkerModel == "" {
		cfg.WorkerModel = def.WorkerModel
	}
	if cfg.Scheduler.PreviewLength <= 0 {
		cfg.Scheduler.PreviewLength = def.Scheduler.PreviewLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := structured.NewClient(b, logger.Named("structured"))
	return &Runner{
		cfg:    cfg,
		coord:  coordinator.New(client, agent.Coordinator(cfg.CoordinatorModel), cfg.Coordinator, logger.Named("coordinator")),
		sched:  scheduler.New(b, cfg.Scheduler, bus, logger.Named("scheduler")),
		bus:    bus,
		logger: logger,
	}
}

// Run works on goal until an answer is accepted or MaxIterations is reached.
// It never fails: stage errors degrade to the previous iteration's answer,
// or to a diagnostic message when there is none.
func (r *Runner) Run(ctx context.Context, goal string) Result {
	r.logger.Info("starting orchestration", zap.String("goal", goal))

	root := scheduler.NewTask("", goal, agent.CoordinatorName, nil)
	var res Result
	var prev *coordinator.Feedback

	for iteration := 1; iteration <= r.cfg.MaxIterations; iteration++ {
		log := r.logger.With(zap.Int("iteration", iteration))
		log.Info("iteration started", zap.Int("max_iterations", r.cfg.MaxIterations))
		r.bus.Publish(events.IterationStartedEvent{
			Iteration:     iteration,
			MaxIterations: r.cfg.MaxIterations,
			Timestamp:     time.Now(),
		})
		res.Iterations = iteration

		// Only the root survives between iterations
		root.Status = scheduler.TaskPending
		root.Output = ""
		root.Summary = ""

		specs, err := r.coord.DefineWorkers(ctx, goal, prev)
		if err != nil {
			log.Error("worker definition failed", zap.Error(err))
			return r.degrade(res, prev, "define workers", err)
		}

		reg := r.buildRegistry(log, specs)

		g := scheduler.NewGraph(root)
		subtasks, err := r.coord.PlanSubtasks(ctx, g, reg)
		if err != nil {
			log.Error("planning failed", zap.Error(err))
			return r.degrade(res, prev, "plan tasks", err)
		}
		log.Info("planned subtasks", zap.Int("count", len(subtasks)))

		report, err := r.sched.Run(ctx, g, reg)
		if err != nil {
			log.Error("execution interrupted", zap.Error(err))
		}
		log.Info("execution finished",
			zap.Stringer("outcome", report.Outcome),
			zap.Int("rounds", report.Rounds),
			zap.Int("done", report.Counts.Done),
			zap.Int("failed", report.Counts.Failed),
			zap.Int("blocked", len(report.Blocked)))

		answer, err := r.coord.Aggregate(ctx, g)
		if err != nil {
			log.Error("aggregation failed", zap.Error(err))
			return r.degrade(res, prev, "aggregate results", err)
		}
		_ = g.Complete(root.ID, answer, util.Preview(answer, r.cfg.Scheduler.PreviewLength))

		res.Answer = answer
		res.Graph = g

		eval := r.coord.Evaluate(ctx, goal, answer)
		res.Evaluation = eval
		r.bus.Publish(events.IterationEvaluatedEvent{
			Iteration:    iteration,
			Satisfactory: eval.Satisfactory,
			Reasoning:    eval.Reasoning,
			Improvements: eval.Improvements,
			Timestamp:    time.Now(),
		})

		if eval.Satisfactory {
			res.Satisfactory = true
			log.Info("result satisfactory", zap.String("reasoning", eval.Reasoning))
			return res
		}

		log.Info("result needs improvement",
			zap.String("reasoning", eval.Reasoning),
			zap.String("improvements", eval.Improvements))

		prev = &coordinator.Feedback{
			Iteration:    iteration,
			Result:       answer,
			Improvements: eval.Improvements,
		}
	}

	r.logger.Warn("reached max iterations, returning current result",
		zap.Int("max_iterations", r.cfg.MaxIterations))
	return res
}

// buildRegistry creates this iteration's registry from the defined workers.
// Specs that cannot become descriptors are logged and skipped.
func (r *Runner) buildRegistry(log *zap.Logger, specs []agent.Spec) *agent.Registry {
	reg := agent.NewRegistry(r.coord.Descriptor())
	for _, spec := range specs {
		d, err := agent.FromSpec(spec, r.cfg.WorkerModel)
		if err == nil {
			err = reg.Register(d)
		}
		if err != nil {
			log.Error("failed to create agent", zap.String("name", spec.Name), zap.Error(err))
			continue
		}
		role := d.Role
		if role == "" {
			role = "No role specified"
		}
		log.Info("created agent", zap.String("name", d.Name), zap.String("role", role))
	}
	if reg.Len() == 0 {
		log.Warn("no usable workers defined, every subtask will fail")
	}
	return reg
}

// degrade ends the loop after a failed stage.
func (r *Runner) degrade(res Result, prev *coordinator.Feedback, stage string, err error) Result {
	res.Degraded = true
	res.Err = err

	cause := errs.KindUnknown
	for _, kind := range []errs.Kind{errs.KindTransport, errs.KindMalformedOutput} {
		if errs.IsKind(err, kind) {
			cause = kind
			break
		}
	}
	r.logger.Warn("stage failed, degrading result",
		zap.String("stage", stage),
		zap.Stringer("kind", errs.KindOf(err)),
		zap.Stringer("cause", cause),
		zap.Bool("has_previous", prev != nil))

	if prev != nil {
		res.Answer = prev.Result
		return res
	}
	res.Answer = coordinator.StageError(stage, err)
	return res
}
