package pipeline

import (
	"context"
	"time"
)

// RunState represents the current state of a pipeline run
type RunState string

const (
	RunStateStarted   RunState = "started"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// StepState represents the state of an individual step
type StepState string

const (
	StepStatePending   StepState = "pending"
	StepStateRunning   StepState = "running"
	StepStateCompleted StepState = "completed"
	StepStateFailed    StepState = "failed"
	StepStateSkipped   StepState = "skipped"
)

// RunID uniquely identifies a pipeline run
type RunID string

// StepID identifies a step within a definition
type StepID string

// Data is the state shared by the steps of one run
type Data map[string]interface{}

// String returns the value stored under key, or "" when absent or not a string
func (d Data) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// StepResult represents the result of a step execution.
// Skip stops the run successfully without executing the remaining steps.
type StepResult struct {
	Data  interface{}
	Error error
	Skip  bool
}

// Step is a single unit of work in a pipeline
type Step interface {
	ID() StepID
	Execute(ctx context.Context, data Data) StepResult
}

// StepFunc adapts a function to the Step interface
type StepFunc struct {
	Name StepID
	Fn   func(ctx context.Context, data Data) StepResult
}

func (s StepFunc) ID() StepID { return s.Name }

func (s StepFunc) Execute(ctx context.Context, data Data) StepResult {
	return s.Fn(ctx, data)
}

// Definition is an ordered list of steps sharing one deadline
type Definition struct {
	Name    string
	Steps   []Step
	Timeout time.Duration
}

// Run records one execution of a definition
type Run struct {
	ID          RunID           `json:"id"`
	Definition  string          `json:"definition"`
	State       RunState        `json:"state"`
	Steps       []StepExecution `json:"steps"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// StepExecution represents the execution state of a step
type StepExecution struct {
	ID          StepID      `json:"id"`
	State       StepState   `json:"state"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
	Result      interface{} `json:"result,omitempty"`
}

// Event represents an event in the run lifecycle
type Event struct {
	RunID     RunID       `json:"run_id"`
	StepID    StepID      `json:"step_id,omitempty"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Event types
const (
	EventRunStarted    = "run_started"
	EventRunCompleted  = "run_completed"
	EventRunFailed     = "run_failed"
	EventStepStarted   = "step_started"
	EventStepCompleted = "step_completed"
	EventStepFailed    = "step_failed"
)
