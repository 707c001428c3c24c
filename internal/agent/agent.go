// Package agent holds worker descriptors and the per-iteration registry that
// resolves worker names for the scheduler.
package agent

import (
	"fmt"
	"strings"
)

// CoordinatorName is the reserved name of the coordinator descriptor.
const CoordinatorName = "coordinator"

// roleMarker separates a worker prompt's summary from its detailed instructions.
const roleMarker = "Your role:"

// blurbLength bounds the prompt excerpt used when a worker has no role text.
const blurbLength = 100

// CoordinatorPrompt instructs the coordinator on all four protocol steps and
// their response formats.
const CoordinatorPrompt = `You are a Coordinator Agent in a multi-agent system.

Your responsibilities:
1. WORKER DEFINITION: Analyze the user's request and define specialized worker agents (up to 5) that would be most useful.
2. PLANNING: Break down complex user requests into subtasks for your defined workers.
3. EVALUATION: Assess if results adequately satisfy the user's original request.
4. AGGREGATION: Synthesize results from workers into a final coherent answer.

You have the ability to dynamically create specialized worker agents with custom capabilities.
Each worker should have a clear role, expertise area, and purpose.

When defining workers, output JSON ONLY in this format:
{
  "workers": [
    {
      "name": "descriptive_name_here",
      "role": "Brief description of role",
      "system_prompt": "Detailed instructions for this worker including expertise, responsibilities, and output style"
    }
  ]
}

When planning subtasks, output JSON ONLY in this format:
{
  "subtasks": [
    {
      "description": "Clear task description",
      "assigned_agent": "worker_name",
      "depends_on": []
    }
  ]
}

When evaluating results, output JSON ONLY in this format:
{
  "satisfactory": true/false,
  "reasoning": "Explanation of why result does or doesn't meet user's needs",
  "improvements_needed": "Specific areas that need work (if not satisfactory)"
}

When aggregating, produce a clear markdown-formatted final answer.`

// Descriptor is an immutable worker definition: a name, the instructions sent
// as the system turn and the model that runs them.
type Descriptor struct {
	Name   string
	Role   string
	Prompt string
	Model  string
}

// Spec is a worker definition as produced by the coordinator. Model may be
// empty, in which case the registry's default worker model applies.
type Spec struct {
	Name   string
	Role   string
	Prompt string
	Model  string
}

// Coordinator returns the fixed coordinator descriptor running on model.
func Coordinator(model string) Descriptor {
	return Descriptor{
		Name:   CoordinatorName,
		Role:   "Plans, evaluates and aggregates worker results",
		Prompt: CoordinatorPrompt,
		Model:  model,
	}
}

// FromSpec builds a worker descriptor from a coordinator-provided spec.
func FromSpec(spec Spec, defaultModel string) (Descriptor, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return Descriptor{}, fmt.Errorf("worker spec has no name")
	}
	if name == CoordinatorName {
		return Descriptor{}, fmt.Errorf("worker name %q is reserved", CoordinatorName)
	}
	if strings.TrimSpace(spec.Prompt) == "" {
		return Descriptor{}, fmt.Errorf("worker %q has no prompt", name)
	}

	model := spec.Model
	if model == "" {
		model = defaultModel
	}

	return Descriptor{
		Name:   name,
		Role:   strings.TrimSpace(spec.Role),
		Prompt: spec.Prompt,
		Model:  model,
	}, nil
}

// Blurb is the short description shown to the planner: the role when set,
// else the prompt text before "Your role:", else the first 100 characters of
// the prompt.
func (d Descriptor) Blurb() string {
	if d.Role != "" {
		return d.Role
	}
	if before, _, found := strings.Cut(d.Prompt, roleMarker); found {
		return strings.TrimSpace(before)
	}
	runes := []rune(d.Prompt)
	if len(runes) > blurbLength {
		return string(runes[:blurbLength])
	}
	return d.Prompt
}
