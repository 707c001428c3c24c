// Package scheduler holds the per-iteration task graph and drives ready tasks
// through their assigned workers until no further progress is possible.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/agentgraph/internal/agent"
	"github.com/aristath/agentgraph/internal/backend"
	"github.com/aristath/agentgraph/internal/errs"
	"github.com/aristath/agentgraph/internal/events"
	"github.com/aristath/agentgraph/internal/util"
)

// Outcome describes why a Run stopped.
type Outcome int

const (
	OutcomeCompleted  Outcome = iota // nothing pending or running
	OutcomeDeadlocked                // pending tasks can never become ready
	OutcomeRoundLimit                // MaxRounds reached with work left
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeDeadlocked:
		return "deadlocked"
	case OutcomeRoundLimit:
		return "round limit"
	default:
		return "unknown"
	}
}

// Report summarizes a Run. Deadlocks and round limits are reported here, not
// as errors.
type Report struct {
	Outcome Outcome
	Rounds  int
	Blocked []string // IDs of tasks left pending
	Cycle   bool     // Deadlock involves a dependency cycle
	Counts  Counts
}

// Config configures the scheduler.
type Config struct {
	MaxRounds     int // Scheduling rounds per Run (default 50)
	Concurrency   int // Max tasks executing at once (default 4)
	PreviewLength int // Bound on summaries and dependency context (default 300)
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		MaxRounds:     50,
		Concurrency:   4,
		PreviewLength: 300,
	}
}

// Scheduler executes ready tasks of a Graph through a completion backend.
type Scheduler struct {
	backend backend.Backend
	cfg     Config
	bus     *events.Bus
	logger  *zap.Logger
}

// New creates a scheduler. bus may be nil.
func New(b backend.Backend, cfg Config, bus *events.Bus, logger *zap.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = def.PreviewLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		backend: b,
		cfg:     cfg,
		bus:     bus,
		logger:  logger,
	}
}

// Run executes rounds until no task is ready. Each round computes the ready
// set, fails tasks whose worker is not registered and runs the rest
// concurrently. Task failures are recorded in the graph; the returned error
// is non-nil only when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, g *Graph, reg *agent.Registry) (Report, error) {
	var report Report

	for report.Rounds < s.cfg.MaxRounds {
		if err := ctx.Err(); err != nil {
			report.Counts = g.Counts(agent.CoordinatorName)
			return report, err
		}

		ready := g.Ready(agent.CoordinatorName)
		if len(ready) == 0 {
			return s.finish(g, report, OutcomeCompleted), nil
		}
		report.Rounds++

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(s.cfg.Concurrency)

		for _, task := range ready {
			worker, ok := reg.Resolve(task.Worker)
			if !ok {
				s.failUnknownWorker(g, task)
				continue
			}

			t := task
			eg.Go(func() error {
				s.executeTask(egCtx, g, t, worker)
				return nil // Task status is in the graph, not the return value
			})
		}

		_ = eg.Wait()
		s.publishProgress(g, report.Rounds)
	}

	if len(g.Ready(agent.CoordinatorName)) == 0 && len(g.Blocked(agent.CoordinatorName)) == 0 {
		return s.finish(g, report, OutcomeCompleted), nil
	}

	s.logger.Warn("scheduling round limit reached", zap.Int("rounds", report.Rounds))
	report.Outcome = OutcomeRoundLimit
	report.Counts = g.Counts(agent.CoordinatorName)
	for _, t := range g.Tasks() {
		if t.Status == TaskPending && t.Worker != agent.CoordinatorName {
			report.Blocked = append(report.Blocked, t.ID)
		}
	}
	return report, nil
}

// finish classifies a run whose ready set is empty.
func (s *Scheduler) finish(g *Graph, report Report, outcome Outcome) Report {
	blocked := g.Blocked(agent.CoordinatorName)
	report.Counts = g.Counts(agent.CoordinatorName)

	if len(blocked) == 0 {
		report.Outcome = outcome
		s.logger.Info("all tasks completed",
			zap.Int("done", report.Counts.Done),
			zap.Int("failed", report.Counts.Failed))
		return report
	}

	report.Outcome = OutcomeDeadlocked
	for _, t := range blocked {
		report.Blocked = append(report.Blocked, t.ID)
	}
	s.logger.Warn("no ready tasks but work remains",
		zap.Int("running", report.Counts.Running),
		zap.Int("pending", len(blocked)))

	// Otherwise the blocked tasks wait on failed or missing dependencies
	if _, err := g.Order(); err != nil {
		report.Cycle = true
		s.logger.Warn("blocked tasks form a dependency cycle",
			zap.Strings("blocked", report.Blocked),
			zap.Error(err))
	}
	return report
}

func (s *Scheduler) failUnknownWorker(g *Graph, task *Task) {
	err := errs.Errorf(errs.KindUnknownWorker, "schedule", "unknown agent: %s", task.Worker)
	s.logger.Error("unknown agent",
		zap.String("task_id", util.ShortID(task.ID)),
		zap.String("worker", task.Worker))

	if ferr := g.Fail(task.ID, fmt.Sprintf("Unknown agent: %s", task.Worker)); ferr != nil {
		s.logger.Debug("could not mark task failed", zap.Error(ferr))
		return
	}
	s.bus.Publish(events.TaskFailedEvent{
		ID:        task.ID,
		Worker:    task.Worker,
		Err:       err,
		Timestamp: time.Now(),
	})
}

// executeTask runs one task through its worker. Only the goroutine that wins
// Start writes the task's result.
func (s *Scheduler) executeTask(ctx context.Context, g *Graph, task *Task, worker agent.Descriptor) {
	if !g.Start(task.ID) {
		return
	}

	log := s.logger.With(
		zap.String("task_id", util.ShortID(task.ID)),
		zap.String("worker", worker.Name))
	log.Info("agent executing task")

	start := time.Now()
	s.bus.Publish(events.TaskStartedEvent{
		ID:          task.ID,
		Worker:      worker.Name,
		Description: task.Description,
		Timestamp:   start,
	})

	resp, err := s.backend.Send(ctx, backend.Request{
		Model: worker.Model,
		Messages: []backend.Message{
			backend.System(worker.Prompt),
			backend.User(BuildContext(g, task, s.cfg.PreviewLength)),
		},
	})
	if err != nil {
		err = errs.New(errs.KindTransport, "execute task", err)
		_ = g.Fail(task.ID, fmt.Sprintf("Error: %v", err))
		log.Error("task failed", zap.Error(err))
		s.bus.Publish(events.TaskFailedEvent{
			ID:        task.ID,
			Worker:    worker.Name,
			Err:       err,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})
		return
	}

	summary := util.Preview(resp.Content, s.cfg.PreviewLength)
	if err := g.Complete(task.ID, resp.Content, summary); err != nil {
		log.Error("failed to record task result", zap.Error(err))
		return
	}

	log.Info("task completed successfully")
	s.bus.Publish(events.TaskCompletedEvent{
		ID:        task.ID,
		Worker:    worker.Name,
		Summary:   summary,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
}

func (s *Scheduler) publishProgress(g *Graph, round int) {
	c := g.Counts(agent.CoordinatorName)
	s.logger.Debug("scheduling round finished",
		zap.Int("round", round),
		zap.Int("done", c.Done),
		zap.Int("failed", c.Failed),
		zap.Int("pending", c.Pending))
	s.bus.Publish(events.GraphProgressEvent{
		Round:     round,
		Total:     c.Total,
		Done:      c.Done,
		Running:   c.Running,
		Failed:    c.Failed,
		Pending:   c.Pending,
		Timestamp: time.Now(),
	})
}

// BuildContext renders the user turn for task: its description followed by
// a bounded preview of every dependency that is DONE.
func BuildContext(g *Graph, task *Task, previewLength int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Description)

	if len(task.DependsOn) == 0 {
		return b.String()
	}

	b.WriteString("\nDependencies (previous task results):")
	for _, depID := range task.DependsOn {
		dep, ok := g.Get(depID)
		if !ok || dep.Status != TaskDone {
			continue
		}
		fmt.Fprintf(&b, "\n\n- %s\n  Result: %s", dep.Description, util.Preview(dep.Digest(), previewLength))
	}
	return b.String()
}
