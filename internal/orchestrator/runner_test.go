package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/agentgraph/internal/backend"
	"github.com/aristath/agentgraph/internal/backend/backendtest"
	"github.com/aristath/agentgraph/internal/coordinator"
	"github.com/aristath/agentgraph/internal/errs"
	"github.com/aristath/agentgraph/internal/events"
	"github.com/aristath/agentgraph/internal/scheduler"
)

// script answers coordinator requests by kind and echoes worker tasks.
// Each field may be replaced to inject failures.
type script struct {
	mu         sync.Mutex
	iteration  int
	aggregates []string

	define    func(iteration int) (string, error)
	plan      func(iteration int) (string, error)
	aggregate func(iteration int, prompt string) (string, error)
	evaluate  func(iteration int) (string, error)
}

func newScript() *script {
	return &script{
		define: func(int) (string, error) {
			return `{"workers": [
				{"name": "researcher", "role": "Finds facts", "system_prompt": "You research."},
				{"name": "writer", "role": "Writes", "system_prompt": "You write."}
			]}`, nil
		},
		plan: func(int) (string, error) {
			return `{"subtasks": [
				{"description": "Research topic X", "assigned_agent": "researcher", "depends_on": []},
				{"description": "Draft summary of X", "assigned_agent": "writer", "depends_on": []}
			]}`, nil
		},
		aggregate: func(iteration int, prompt string) (string, error) {
			return fmt.Sprintf("iteration %d answer\n%s", iteration, prompt), nil
		},
		evaluate: func(int) (string, error) {
			return `{"satisfactory": true, "reasoning": "complete"}`, nil
		},
	}
}

func (s *script) handle(req backend.Request) (string, error) {
	user := backendtest.LastUserMessage(req)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case strings.HasPrefix(user, "WORKER DEFINITION REQUEST"):
		s.iteration++
		return s.define(s.iteration)
	case strings.HasPrefix(user, "PLANNING REQUEST"):
		return s.plan(s.iteration)
	case strings.HasPrefix(user, "AGGREGATION REQUEST"):
		answer, err := s.aggregate(s.iteration, user)
		if err == nil {
			s.aggregates = append(s.aggregates, answer)
		}
		return answer, err
	case strings.HasPrefix(user, "EVALUATION REQUEST"):
		return s.evaluate(s.iteration)
	default:
		return "worker output for " + strings.SplitN(user, "\n", 2)[0], nil
	}
}

func newTestRunner(s *script, bus *events.Bus) (*Runner, *backendtest.Fake) {
	fake := backendtest.New(s.handle)
	return NewRunner(fake, DefaultConfig(), bus, nil), fake
}

func TestRun_SatisfiedFirstIteration(t *testing.T) {
	s := newScript()
	r, _ := newTestRunner(s, nil)

	res := r.Run(context.Background(), "Summarize topic X")

	assert.True(t, res.Satisfactory)
	assert.False(t, res.Degraded)
	assert.Equal(t, 1, res.Iterations)
	assert.Contains(t, res.Answer, "iteration 1 answer")
	assert.Contains(t, res.Answer, "Research topic X")
	assert.Contains(t, res.Answer, "Draft summary of X")
	assert.Equal(t, "complete", res.Evaluation.Reasoning)

	require.NotNil(t, res.Graph)
	root := res.Graph.Root()
	assert.Equal(t, scheduler.TaskDone, root.Status)
	assert.Equal(t, res.Answer, root.Output)

	children := res.Graph.Children(root.ID)
	require.Len(t, children, 2)
	for _, c := range children {
		assert.Equal(t, scheduler.TaskDone, c.Status)
	}
}

func TestRun_StopsAtIterationCap(t *testing.T) {
	for _, lastSatisfied := range []bool{false, true} {
		t.Run(fmt.Sprintf("last_satisfied=%v", lastSatisfied), func(t *testing.T) {
			s := newScript()
			s.evaluate = func(iteration int) (string, error) {
				if iteration == 5 && lastSatisfied {
					return `{"satisfactory": true, "reasoning": "finally"}`, nil
				}
				return fmt.Sprintf(`{"satisfactory": false, "reasoning": "weak", "improvements_needed": "fix %d"}`, iteration), nil
			}
			r, _ := newTestRunner(s, nil)

			res := r.Run(context.Background(), "goal")

			assert.Equal(t, 5, res.Iterations)
			assert.Equal(t, lastSatisfied, res.Satisfactory)
			assert.False(t, res.Degraded)
			require.Len(t, s.aggregates, 5)
			assert.Equal(t, s.aggregates[4], res.Answer)
			assert.True(t, strings.HasPrefix(res.Answer, "iteration 5 answer"))
		})
	}
}

func TestRun_FeedbackReachesNextIteration(t *testing.T) {
	s := newScript()
	s.evaluate = func(iteration int) (string, error) {
		if iteration == 1 {
			return `{"satisfactory": false, "reasoning": "thin", "improvements_needed": "cite sources"}`, nil
		}
		return `{"satisfactory": true}`, nil
	}
	r, fake := newTestRunner(s, nil)

	res := r.Run(context.Background(), "goal")
	require.Equal(t, 2, res.Iterations)

	var defineCalls []string
	for _, call := range fake.Calls() {
		if user := backendtest.LastUserMessage(call); strings.HasPrefix(user, "WORKER DEFINITION REQUEST") {
			defineCalls = append(defineCalls, user)
		}
	}
	require.Len(t, defineCalls, 2)
	assert.NotContains(t, defineCalls[0], "cite sources")
	assert.Contains(t, defineCalls[1], "cite sources")
	assert.Contains(t, defineCalls[1], "iteration 1 answer")
}

func TestRun_SubtasksDiscardedBetweenIterations(t *testing.T) {
	s := newScript()
	s.evaluate = func(iteration int) (string, error) {
		return fmt.Sprintf(`{"satisfactory": %v}`, iteration == 2), nil
	}
	r, _ := newTestRunner(s, nil)

	res := r.Run(context.Background(), "goal")
	require.Equal(t, 2, res.Iterations)

	// Root plus the second plan's two subtasks only
	assert.Len(t, res.Graph.Tasks(), 3)
}

func TestRun_StageFailureWithoutPriorResult(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *script)
		want   string
		kind   errs.Kind
	}{
		{
			name:   "define workers",
			mutate: func(s *script) { s.define = func(int) (string, error) { return "", errors.New("offline") } },
			want:   "Failed to define workers: ",
			kind:   errs.KindTransport,
		},
		{
			name:   "plan",
			mutate: func(s *script) { s.plan = func(int) (string, error) { return "not json", nil } },
			want:   "Failed to plan tasks: ",
			kind:   errs.KindMalformedOutput,
		},
		{
			name: "aggregate",
			mutate: func(s *script) {
				s.aggregate = func(int, string) (string, error) { return "", errors.New("offline") }
			},
			want: "Failed to aggregate results: ",
			kind: errs.KindTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScript()
			tt.mutate(s)
			r, _ := newTestRunner(s, nil)

			res := r.Run(context.Background(), "goal")

			assert.True(t, res.Degraded)
			assert.False(t, res.Satisfactory)
			assert.True(t, strings.HasPrefix(res.Answer, tt.want), "got %q", res.Answer)
			require.Error(t, res.Err)
			assert.Equal(t, errs.KindCoordinatorStage, errs.KindOf(res.Err))
			assert.True(t, errs.IsKind(res.Err, tt.kind), "err %v", res.Err)
		})
	}
}

func TestNewRunner_DefaultsPreviewLength(t *testing.T) {
	s := newScript()
	long := strings.Repeat("x", 1000)
	s.aggregate = func(int, string) (string, error) { return long, nil }
	fake := backendtest.New(s.handle)

	cfg := DefaultConfig()
	cfg.Scheduler = scheduler.Config{}
	res := NewRunner(fake, cfg, nil, nil).Run(context.Background(), "goal")

	require.NotNil(t, res.Graph)
	root := res.Graph.Root()
	assert.Equal(t, long, root.Output)
	assert.LessOrEqual(t, utf8.RuneCountInString(root.Summary), scheduler.DefaultConfig().PreviewLength)
	assert.True(t, strings.HasSuffix(root.Summary, "..."), "got %q", root.Summary)
}

func TestRun_StageFailureReturnsPreviousResult(t *testing.T) {
	s := newScript()
	s.evaluate = func(int) (string, error) {
		return `{"satisfactory": false, "improvements_needed": "more"}`, nil
	}
	s.plan = func(iteration int) (string, error) {
		if iteration == 2 {
			return "", errors.New("offline")
		}
		return `{"subtasks": [{"description": "only step", "assigned_agent": "researcher"}]}`, nil
	}
	r, _ := newTestRunner(s, nil)

	res := r.Run(context.Background(), "goal")

	assert.True(t, res.Degraded)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, s.aggregates, 1)
	assert.Equal(t, s.aggregates[0], res.Answer)
}

func TestRun_EvaluationFailureAcceptsResult(t *testing.T) {
	s := newScript()
	s.evaluate = func(int) (string, error) { return "", errors.New("evaluator down") }
	r, _ := newTestRunner(s, nil)

	res := r.Run(context.Background(), "goal")

	assert.Equal(t, 1, res.Iterations)
	assert.True(t, res.Satisfactory)
	assert.True(t, res.Evaluation.Failed)
	assert.Equal(t, coordinator.EvaluationFailedReasoning, res.Evaluation.Reasoning)
	assert.Contains(t, res.Answer, "iteration 1 answer")
}

func TestRun_NoCompletedSubtasks(t *testing.T) {
	s := newScript()
	s.plan = func(int) (string, error) {
		return `{"subtasks": [
			{"description": "orphan", "assigned_agent": "ghost"},
			{"description": "after orphan", "assigned_agent": "researcher", "depends_on": [0]}
		]}`, nil
	}
	r, fake := newTestRunner(s, nil)

	res := r.Run(context.Background(), "goal")

	assert.Equal(t, coordinator.NoResultsMessage, res.Answer)
	for _, call := range fake.Calls() {
		assert.False(t, strings.HasPrefix(backendtest.LastUserMessage(call), "AGGREGATION REQUEST"))
	}
}

func TestRun_BlockedTasksExcludedFromAggregate(t *testing.T) {
	s := newScript()
	s.plan = func(int) (string, error) {
		return `{"subtasks": [
			{"description": "independent step", "assigned_agent": "researcher"},
			{"description": "orphan step", "assigned_agent": "ghost"},
			{"description": "after orphan", "assigned_agent": "writer", "depends_on": [1]}
		]}`, nil
	}
	r, _ := newTestRunner(s, nil)

	res := r.Run(context.Background(), "goal")

	assert.Contains(t, res.Answer, "independent step")
	assert.NotContains(t, res.Answer, "orphan step")
	assert.NotContains(t, res.Answer, "after orphan")

	var blocked *scheduler.Task
	for _, task := range res.Graph.Tasks() {
		if task.Description == "after orphan" {
			blocked = task
		}
	}
	require.NotNil(t, blocked)
	assert.Equal(t, scheduler.TaskPending, blocked.Status)
}

func TestRun_InvalidWorkerSpecsSkipped(t *testing.T) {
	s := newScript()
	s.define = func(int) (string, error) {
		return `{"workers": [
			{"name": "coordinator", "system_prompt": "hijack"},
			{"name": "", "system_prompt": "anonymous"},
			{"name": "researcher", "system_prompt": "You research."}
		]}`, nil
	}
	s.plan = func(int) (string, error) {
		return `{"subtasks": [{"description": "dig", "assigned_agent": "researcher"}]}`, nil
	}
	r, fake := newTestRunner(s, nil)

	res := r.Run(context.Background(), "goal")
	require.True(t, res.Satisfactory)

	for _, call := range fake.Calls() {
		if strings.HasPrefix(backendtest.LastUserMessage(call), "PLANNING REQUEST") {
			assert.NotContains(t, backendtest.LastUserMessage(call), "hijack")
		}
		if strings.HasPrefix(backendtest.LastUserMessage(call), "Task: dig") {
			assert.Equal(t, "You research.", call.Messages[0].Content)
		}
	}
}

func TestRun_PublishesIterationEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	loop := bus.Subscribe(events.TopicLoop, 16)

	s := newScript()
	r, _ := newTestRunner(s, bus)
	r.Run(context.Background(), "goal")

	require.Len(t, loop, 2)
	started := (<-loop).(events.IterationStartedEvent)
	assert.Equal(t, 1, started.Iteration)
	assert.Equal(t, 5, started.MaxIterations)
	evaluated := (<-loop).(events.IterationEvaluatedEvent)
	assert.True(t, evaluated.Satisfactory)
}
