package scheduler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/aristath/agentgraph/internal/util"
)

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending TaskStatus = iota // Waiting for dependencies
	TaskRunning                   // Currently executing
	TaskDone                      // Finished successfully
	TaskFailed                    // Finished with error
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "PENDING"
	case TaskRunning:
		return "RUNNING"
	case TaskDone:
		return "DONE"
	case TaskFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

const descriptionPreview = 50

// Task is one node of the task graph.
type Task struct {
	ID          string // Generated at creation, never reused
	ParentID    string // Empty for the root goal
	Description string
	Worker      string // Name of the assigned worker
	Status      TaskStatus
	DependsOn   []string // Task IDs this task depends on
	Output      string   // Full worker response, or a diagnostic on failure
	Summary     string   // Bounded digest of Output used as dependency context
}

// NewTask creates a pending task with a fresh id.
func NewTask(parentID, description, worker string, dependsOn []string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		ParentID:    parentID,
		Description: description,
		Worker:      worker,
		Status:      TaskPending,
		DependsOn:   dependsOn,
	}
}

// IsRoot reports whether t is the root goal.
func (t *Task) IsRoot() bool {
	return t.ParentID == ""
}

// Digest returns the summary, falling back to the output, then "No output".
func (t *Task) Digest() string {
	if t.Summary != "" {
		return t.Summary
	}
	if t.Output != "" {
		return t.Output
	}
	return "No output"
}

func (t *Task) String() string {
	return fmt.Sprintf("Task(%s, %s, %s, '%s')",
		util.ShortID(t.ID), t.Worker, t.Status, util.Shorten(t.Description, descriptionPreview))
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	return &cp
}
