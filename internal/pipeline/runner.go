package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 30 * time.Second
	defaultMaxRuns = 50
)

// Runner executes pipeline definitions step by step and keeps a bounded
// history of recent runs
type Runner struct {
	logger    *zap.Logger
	runs      map[RunID]*Run
	order     []RunID
	maxRuns   int
	eventChan chan Event
	mu        sync.RWMutex
}

// NewRunner creates a new pipeline runner
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{
		logger:    logger,
		runs:      make(map[RunID]*Run),
		maxRuns:   defaultMaxRuns,
		eventChan: make(chan Event, 100),
	}
}

// Run executes def synchronously. Steps run in order until one fails or
// asks to skip the rest. The whole run shares def.Timeout.
func (r *Runner) Run(ctx context.Context, def Definition, data Data) (RunID, error) {
	if len(def.Steps) == 0 {
		return "", fmt.Errorf("pipeline %s has no steps", def.Name)
	}
	if data == nil {
		data = Data{}
	}

	runID := RunID(uuid.NewString())
	stepExecs := make([]StepExecution, len(def.Steps))
	for i, step := range def.Steps {
		stepExecs[i] = StepExecution{ID: step.ID(), State: StepStatePending}
	}

	r.store(&Run{
		ID:         runID,
		Definition: def.Name,
		State:      RunStateStarted,
		Steps:      stepExecs,
		StartedAt:  time.Now(),
	})
	r.emitEvent(Event{RunID: runID, Type: EventRunStarted, Timestamp: time.Now()})

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.update(runID, func(run *Run) { run.State = RunStateRunning })

	for i, step := range def.Steps {
		skip, err := r.executeStep(ctx, runID, i, step, data)
		if err != nil {
			r.failRun(runID, step.ID(), err)
			return runID, fmt.Errorf("step %s: %w", step.ID(), err)
		}
		if skip {
			r.skipRemaining(runID, i+1)
			break
		}
	}

	r.completeRun(runID)
	return runID, nil
}

func (r *Runner) executeStep(ctx context.Context, runID RunID, index int, step Step, data Data) (bool, error) {
	now := time.Now()
	r.update(runID, func(run *Run) {
		run.Steps[index].State = StepStateRunning
		run.Steps[index].StartedAt = &now
	})
	r.emitEvent(Event{RunID: runID, StepID: step.ID(), Type: EventStepStarted, Timestamp: now})

	if err := ctx.Err(); err != nil {
		r.markStepFailed(runID, index, step.ID(), err)
		return false, err
	}

	result := step.Execute(ctx, data)
	done := time.Now()

	if result.Error != nil {
		r.markStepFailed(runID, index, step.ID(), result.Error)
		return false, result.Error
	}

	r.update(runID, func(run *Run) {
		run.Steps[index].State = StepStateCompleted
		run.Steps[index].CompletedAt = &done
		run.Steps[index].Result = result.Data
	})
	r.emitEvent(Event{RunID: runID, StepID: step.ID(), Type: EventStepCompleted, Timestamp: done, Data: result.Data})

	r.logger.Debug("Step completed",
		zap.String("runID", string(runID)),
		zap.String("stepID", string(step.ID())),
		zap.Bool("skip", result.Skip))

	return result.Skip, nil
}

func (r *Runner) markStepFailed(runID RunID, index int, stepID StepID, err error) {
	done := time.Now()
	r.update(runID, func(run *Run) {
		run.Steps[index].State = StepStateFailed
		run.Steps[index].CompletedAt = &done
		run.Steps[index].Error = err.Error()
	})
	r.emitEvent(Event{RunID: runID, StepID: stepID, Type: EventStepFailed, Timestamp: done, Data: err.Error()})
}

func (r *Runner) skipRemaining(runID RunID, from int) {
	r.update(runID, func(run *Run) {
		for i := from; i < len(run.Steps); i++ {
			run.Steps[i].State = StepStateSkipped
		}
	})
}

func (r *Runner) failRun(runID RunID, stepID StepID, err error) {
	now := time.Now()
	r.update(runID, func(run *Run) {
		run.State = RunStateFailed
		run.CompletedAt = &now
		run.Error = err.Error()
	})
	r.emitEvent(Event{RunID: runID, StepID: stepID, Type: EventRunFailed, Timestamp: now, Data: err.Error()})

	fields := []zap.Field{
		zap.String("runID", string(runID)),
		zap.String("stepID", string(stepID)),
		zap.Error(err),
	}
	if errors.Is(err, context.DeadlineExceeded) {
		r.logger.Warn("Pipeline timed out", fields...)
		return
	}
	r.logger.Error("Pipeline step failed", fields...)
}

func (r *Runner) completeRun(runID RunID) {
	now := time.Now()
	r.update(runID, func(run *Run) {
		run.State = RunStateCompleted
		run.CompletedAt = &now
	})
	r.emitEvent(Event{RunID: runID, Type: EventRunCompleted, Timestamp: now})
	r.logger.Debug("Pipeline completed", zap.String("runID", string(runID)))
}

// Get returns a copy of a recorded run
func (r *Runner) Get(runID RunID) (Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, exists := r.runs[runID]
	if !exists {
		return Run{}, false
	}
	out := *run
	out.Steps = append([]StepExecution(nil), run.Steps...)
	return out, true
}

func (r *Runner) store(run *Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	r.order = append(r.order, run.ID)
	for len(r.order) > r.maxRuns {
		delete(r.runs, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *Runner) update(runID RunID, fn func(run *Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, exists := r.runs[runID]; exists {
		fn(run)
	}
}

func (r *Runner) emitEvent(event Event) {
	select {
	case r.eventChan <- event:
	default:
		r.logger.Debug("Event channel full, dropping event", zap.String("type", event.Type))
	}
}

// Events returns the channel of run lifecycle events
func (r *Runner) Events() <-chan Event {
	return r.eventChan
}
