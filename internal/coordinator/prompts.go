package coordinator

import (
	"fmt"
	"strings"

	"github.com/aristath/agentgraph/internal/agent"
	"github.com/aristath/agentgraph/internal/scheduler"
	"github.com/aristath/agentgraph/internal/util"
)

const defineWorkersFormat = `

Analyze this goal and define 1-%d specialized worker agents that would be most effective.
Each worker should have a unique expertise area relevant to the task.

Output JSON ONLY in this format:
{
  "workers": [
    {
      "name": "descriptive_name",
      "role": "Brief role description",
      "system_prompt": "Detailed system prompt with expertise, responsibilities, and style guidelines"
    }
  ]
}`

const planFormat = `

Create a plan by breaking this goal into subtasks. Assign each subtask to an appropriate worker.
You can create task dependencies using the "depends_on" field: list the zero-based index of an
earlier subtask in this plan, or the ID of an existing task.

Output JSON ONLY in this format:
{
  "subtasks": [
    {
      "description": "task description",
      "assigned_agent": "research_worker",
      "depends_on": []
    }
  ]
}`

const evaluateFormat = `

Evaluate whether this result fully and adequately satisfies the user's original goal.
Be critical and thorough. Consider:
- Does it fully address all aspects of the request?
- Is it sufficiently detailed and accurate?
- Is the quality high enough?
- Are there any gaps or weaknesses?

Output JSON ONLY in this format:
{
  "satisfactory": true/false,
  "reasoning": "Detailed explanation",
  "improvements_needed": "Specific areas to improve (if not satisfactory)"
}`

const aggregateFormat = `
Synthesize these results into a final, coherent answer in markdown format.
Provide a clear, complete response to the user's original goal.`

func defineWorkersPrompt(goal string, prev *Feedback, maxWorkers, previewLength int) string {
	var b strings.Builder
	b.WriteString("WORKER DEFINITION REQUEST\n\n")
	fmt.Fprintf(&b, "User's goal: %s\n", goal)

	if prev != nil && prev.Result != "" {
		fmt.Fprintf(&b, "\n\nThis is iteration %d. Previous attempt did not fully satisfy the user's needs.\n\n", prev.Iteration+1)
		fmt.Fprintf(&b, "Previous result:\n%s\n\n", util.Preview(prev.Result, previewLength))
		fmt.Fprintf(&b, "Feedback on what needs improvement:\n%s\n", prev.Improvements)
	}

	fmt.Fprintf(&b, defineWorkersFormat, maxWorkers)
	return b.String()
}

func planPrompt(root *scheduler.Task, workers []agent.Descriptor) string {
	lines := make([]string, 0, len(workers))
	for _, w := range workers {
		lines = append(lines, fmt.Sprintf("- %s: %s", w.Name, w.Blurb()))
	}

	var b strings.Builder
	b.WriteString("PLANNING REQUEST\n\n")
	fmt.Fprintf(&b, "User's goal: %s\n\n", root.Description)
	fmt.Fprintf(&b, "Root task ID: %s\n\n", root.ID)
	fmt.Fprintf(&b, "Available worker agents:\n%s\n", strings.Join(lines, "\n"))
	b.WriteString(planFormat)
	return b.String()
}

func evaluatePrompt(goal, answer string) string {
	return fmt.Sprintf("EVALUATION REQUEST\n\nOriginal user goal: %s\n\nCurrent result:\n%s\n%s", goal, answer, evaluateFormat)
}

func aggregatePrompt(goal string, done []*scheduler.Task, previewLength int) string {
	var b strings.Builder
	b.WriteString("AGGREGATION REQUEST\n\n")
	fmt.Fprintf(&b, "Original user goal: %s\n\n", goal)
	b.WriteString("Completed subtask results:\n\n")
	for _, t := range done {
		fmt.Fprintf(&b, "Task: %s\nResult: %s\n\n", t.Description, util.Preview(t.Digest(), previewLength))
	}
	b.WriteString(aggregateFormat)
	return b.String()
}
