// Package coordinator implements the coordinator's four protocol steps:
// defining workers, planning subtasks, aggregating results and evaluating
// the aggregate.
package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/aristath/agentgraph/internal/agent"
	"github.com/aristath/agentgraph/internal/backend"
	"github.com/aristath/agentgraph/internal/errs"
	"github.com/aristath/agentgraph/internal/scheduler"
	"github.com/aristath/agentgraph/internal/structured"
	"github.com/aristath/agentgraph/internal/util"
)

// NoResultsMessage is the aggregate when no subtask reached DONE.
const NoResultsMessage = "No subtasks completed successfully."

// EvaluationFailedReasoning is reported when evaluation fails and the result
// is accepted anyway.
const EvaluationFailedReasoning = "Evaluation failed, accepting result"

const noReasoning = "No reasoning provided"

// Config configures the coordinator.
type Config struct {
	MaxWorkers             int // Worker definitions kept per iteration (default 5)
	AggregatePreviewLength int // Bound on each subtask result in the aggregate prompt and on the previous result (default 500)
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:             5,
		AggregatePreviewLength: 500,
	}
}

// Feedback carries the outcome of an unsatisfactory iteration into the next
// worker definition.
type Feedback struct {
	Iteration    int
	Result       string
	Improvements string
}

// Evaluation is the coordinator's verdict on an aggregate.
type Evaluation struct {
	Satisfactory bool
	Reasoning    string
	Improvements string
	Failed       bool // evaluation call failed and the result was accepted
}

// Coordinator runs protocol steps as the coordinator descriptor.
type Coordinator struct {
	client *structured.Client
	self   agent.Descriptor
	cfg    Config
	logger *zap.Logger
}

// New creates a Coordinator.
func New(client *structured.Client, self agent.Descriptor, cfg Config, logger *zap.Logger) *Coordinator {
	def := DefaultConfig()
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.AggregatePreviewLength <= 0 {
		cfg.AggregatePreviewLength = def.AggregatePreviewLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{client: client, self: self, cfg: cfg, logger: logger}
}

// Descriptor returns the coordinator's descriptor.
func (c *Coordinator) Descriptor() agent.Descriptor {
	return c.self
}

func (c *Coordinator) messages(user string) []backend.Message {
	return []backend.Message{backend.System(c.self.Prompt), backend.User(user)}
}

// DefineWorkers asks for the workers best suited to goal. prev is nil on the
// first iteration. At most MaxWorkers specs are returned, in response order.
func (c *Coordinator) DefineWorkers(ctx context.Context, goal string, prev *Feedback) ([]agent.Spec, error) {
	c.logger.Info("coordinator defining worker agents")

	prompt := defineWorkersPrompt(goal, prev, c.cfg.MaxWorkers, c.cfg.AggregatePreviewLength)
	result, err := c.client.Call(ctx, c.self.Model, c.messages(prompt))
	if err != nil {
		return nil, errs.New(errs.KindCoordinatorStage, "define workers", err)
	}
	if !result.IsObject() {
		return nil, errs.New(errs.KindCoordinatorStage, "define workers",
			errs.Errorf(errs.KindMalformedOutput, "parse workers", "expected a JSON object"))
	}

	entries := result.Get("workers").Array()
	if len(entries) > c.cfg.MaxWorkers {
		c.logger.Warn("coordinator defined too many workers, truncating",
			zap.Int("defined", len(entries)),
			zap.Int("limit", c.cfg.MaxWorkers))
		entries = entries[:c.cfg.MaxWorkers]
	}

	specs := make([]agent.Spec, 0, len(entries))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		spec := parseSpec(entry)
		specs = append(specs, spec)
		names = append(names, spec.Name)
	}

	c.logger.Info("defined workers", zap.Int("count", len(specs)), zap.Strings("names", names))
	return specs, nil
}

// parseSpec reads one worker definition. The prompt may be given as
// system_prompt or prompt.
func parseSpec(entry gjson.Result) agent.Spec {
	prompt := entry.Get("system_prompt")
	if !prompt.Exists() {
		prompt = entry.Get("prompt")
	}
	return agent.Spec{
		Name:   entry.Get("name").String(),
		Role:   entry.Get("role").String(),
		Prompt: prompt.String(),
		Model:  entry.Get("model").String(),
	}
}

// PlanSubtasks asks for subtasks of the graph's root, assigns each a fresh id
// and adds them to g in response order.
//
// A depends_on entry that is an integer index of an earlier subtask resolves
// to that subtask's id. A string naming a task already in g is kept. Anything
// else is dropped.
func (c *Coordinator) PlanSubtasks(ctx context.Context, g *scheduler.Graph, reg *agent.Registry) ([]*scheduler.Task, error) {
	root := g.Root()
	c.logger.Info("coordinator planning subtasks", zap.String("root_id", util.ShortID(root.ID)))

	result, err := c.client.Call(ctx, c.self.Model, c.messages(planPrompt(root, reg.Workers())))
	if err != nil {
		return nil, errs.New(errs.KindCoordinatorStage, "plan subtasks", err)
	}

	tasks, err := c.buildPlan(result, g, root.ID)
	if err != nil {
		return nil, errs.New(errs.KindCoordinatorStage, "plan subtasks", err)
	}

	for _, t := range tasks {
		if err := g.Add(t); err != nil {
			return nil, errs.New(errs.KindCoordinatorStage, "plan subtasks", err)
		}
		c.logger.Info("created subtask", zap.Stringer("task", t))
	}
	return tasks, nil
}

func (c *Coordinator) buildPlan(result gjson.Result, g *scheduler.Graph, rootID string) ([]*scheduler.Task, error) {
	if !result.IsObject() {
		return nil, errs.Errorf(errs.KindMalformedOutput, "parse plan", "expected a JSON object")
	}

	entries := result.Get("subtasks").Array()
	tasks := make([]*scheduler.Task, 0, len(entries))

	for idx, entry := range entries {
		description := entry.Get("description").String()
		worker := entry.Get("assigned_agent").String()
		if worker == "" {
			worker = entry.Get("assigned_worker").String()
		}
		if description == "" || worker == "" {
			return nil, errs.Errorf(errs.KindMalformedOutput, "parse plan",
				"subtask %d is missing description or assigned_agent", idx)
		}

		var deps []string
		for _, dep := range entry.Get("depends_on").Array() {
			if id, ok := resolveDependency(dep, tasks, g); ok {
				deps = append(deps, id)
				continue
			}
			c.logger.Debug("dropping unresolved dependency",
				zap.Int("subtask", idx),
				zap.String("reference", dep.Raw),
				zap.Error(errs.Errorf(errs.KindDependencyUnresolved, "resolve dependency", "%s", dep.Raw)))
		}

		tasks = append(tasks, scheduler.NewTask(rootID, description, worker, deps))
	}
	return tasks, nil
}

// resolveDependency maps one depends_on entry to a task id. earlier holds the
// subtasks already created by this plan.
func resolveDependency(dep gjson.Result, earlier []*scheduler.Task, g *scheduler.Graph) (string, bool) {
	switch dep.Type {
	case gjson.Number:
		// Only integer literals are indexes; 1.0 and 1e0 are not
		if strings.ContainsAny(dep.Raw, ".eE") {
			return "", false
		}
		idx := dep.Int()
		if float64(idx) != dep.Num || idx < 0 || idx >= int64(len(earlier)) {
			return "", false
		}
		return earlier[idx].ID, true
	case gjson.String:
		if id := dep.String(); g.Has(id) {
			return id, true
		}
	}
	return "", false
}

// Evaluate judges whether answer satisfies goal. Any failure is treated as
// satisfactory so the loop ends with the answer it has.
func (c *Coordinator) Evaluate(ctx context.Context, goal, answer string) Evaluation {
	c.logger.Info("coordinator evaluating result quality")

	result, err := c.client.Call(ctx, c.self.Model, c.messages(evaluatePrompt(goal, answer)))
	if err == nil && !result.IsObject() {
		err = errs.Errorf(errs.KindMalformedOutput, "parse evaluation", "expected a JSON object")
	}
	if err != nil {
		c.logger.Error("failed to evaluate result",
			zap.Error(errs.New(errs.KindEvaluation, "evaluate", err)))
		return Evaluation{Satisfactory: true, Reasoning: EvaluationFailedReasoning, Failed: true}
	}

	eval := Evaluation{
		Satisfactory: result.Get("satisfactory").Bool(),
		Reasoning:    noReasoning,
		Improvements: result.Get("improvements_needed").String(),
	}
	if r := result.Get("reasoning"); r.Exists() {
		eval.Reasoning = r.String()
	}

	c.logger.Info("evaluation", zap.Bool("satisfactory", eval.Satisfactory))
	c.logger.Debug("evaluation reasoning", zap.String("reasoning", eval.Reasoning))
	return eval
}

// Aggregate synthesizes the DONE children of the root into a final answer.
// Without any DONE child it returns NoResultsMessage and makes no call.
func (c *Coordinator) Aggregate(ctx context.Context, g *scheduler.Graph) (string, error) {
	root := g.Root()

	var done []*scheduler.Task
	for _, t := range g.Children(root.ID) {
		if t.Status == scheduler.TaskDone {
			done = append(done, t)
		}
	}
	if len(done) == 0 {
		return NoResultsMessage, nil
	}

	c.logger.Info("coordinator aggregating subtask results", zap.Int("count", len(done)))

	prompt := aggregatePrompt(root.Description, done, c.cfg.AggregatePreviewLength)
	answer, err := c.client.Complete(ctx, c.self.Model, c.messages(prompt))
	if err != nil {
		return "", errs.New(errs.KindCoordinatorStage, "aggregate", err)
	}
	return answer, nil
}

// StageError formats the final answer for a coordinator stage that failed
// before any result existed.
func StageError(stage string, err error) string {
	return fmt.Sprintf("Failed to %s: %v", stage, err)
}
