package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Topic() string
}

// Topic constants
const (
	TopicTask  = "task"
	TopicGraph = "graph"
	TopicLoop  = "loop"
)

// Event type constants
const (
	EventTypeTaskStarted        = "task.started"
	EventTypeTaskCompleted      = "task.completed"
	EventTypeTaskFailed         = "task.failed"
	EventTypeGraphProgress      = "graph.progress"
	EventTypeIterationStarted   = "loop.iteration_started"
	EventTypeIterationEvaluated = "loop.iteration_evaluated"
)

// TaskStartedEvent is published when a worker begins a task.
type TaskStartedEvent struct {
	ID          string
	Worker      string
	Description string
	Timestamp   time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) Topic() string     { return TopicTask }

// TaskCompletedEvent is published when a task reaches DONE.
type TaskCompletedEvent struct {
	ID        string
	Worker    string
	Summary   string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) Topic() string     { return TopicTask }

// TaskFailedEvent is published when a task reaches FAILED.
type TaskFailedEvent struct {
	ID        string
	Worker    string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) Topic() string     { return TopicTask }

// GraphProgressEvent is published after every scheduling round.
type GraphProgressEvent struct {
	Round     int
	Total     int
	Done      int
	Running   int
	Failed    int
	Pending   int
	Timestamp time.Time
}

func (e GraphProgressEvent) EventType() string { return EventTypeGraphProgress }
func (e GraphProgressEvent) Topic() string     { return TopicGraph }

// IterationStartedEvent is published at the start of a refinement iteration.
type IterationStartedEvent struct {
	Iteration     int
	MaxIterations int
	Timestamp     time.Time
}

func (e IterationStartedEvent) EventType() string { return EventTypeIterationStarted }
func (e IterationStartedEvent) Topic() string     { return TopicLoop }

// IterationEvaluatedEvent carries the coordinator's verdict on an iteration.
type IterationEvaluatedEvent struct {
	Iteration    int
	Satisfactory bool
	Reasoning    string
	Improvements string
	Timestamp    time.Time
}

func (e IterationEvaluatedEvent) EventType() string { return EventTypeIterationEvaluated }
func (e IterationEvaluatedEvent) Topic() string     { return TopicLoop }
