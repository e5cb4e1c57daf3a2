package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager runs saga definitions step by step and compensates completed steps
// in reverse order when one fails.
type Manager struct {
	logger *zap.Logger
}

// NewManager creates a new saga manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Run executes def to completion on the calling goroutine. The returned
// instance is always non-nil; the error is the one reported by the failed step.
func (m *Manager) Run(ctx context.Context, def SagaDefinition, data SagaData) (*SagaInstance, error) {
	if data == nil {
		data = SagaData{}
	}

	steps := def.Steps()
	instance := &SagaInstance{
		ID:         SagaID(fmt.Sprintf("%s_%s", def.ID(), uuid.NewString())),
		Definition: def.ID(),
		State:      SagaStateStarted,
		Data:       data,
		Steps:      make([]StepExecution, len(steps)),
		StartedAt:  time.Now(),
	}
	for i, step := range steps {
		instance.Steps[i] = StepExecution{ID: step.ID(), State: StepStatePending}
	}

	logger := m.logger.With(zap.String("sagaID", string(instance.ID)))
	logger.Debug("Saga started", zap.String("definition", def.ID()))

	if timeout := def.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	instance.State = SagaStateRunning
	lastCompletedStep := -1

	for i, step := range steps {
		if err := m.executeStep(ctx, instance, i, step); err != nil {
			logger.Error("Step failed",
				zap.String("stepID", string(step.ID())),
				zap.Error(err))

			instance.Error = err.Error()
			m.compensate(ctx, logger, instance, steps, lastCompletedStep)
			return instance, err
		}
		lastCompletedStep = i
	}

	now := time.Now()
	instance.State = SagaStateCompleted
	instance.CompletedAt = &now

	logger.Debug("Saga completed", zap.Duration("elapsed", now.Sub(instance.StartedAt)))
	return instance, nil
}

func (m *Manager) executeStep(ctx context.Context, instance *SagaInstance, stepIndex int, step Step) error {
	exec := &instance.Steps[stepIndex]
	now := time.Now()
	exec.State = StepStateRunning
	exec.StartedAt = &now

	if err := ctx.Err(); err != nil {
		exec.State = StepStateFailed
		exec.Error = err.Error()
		return fmt.Errorf("step %s not started: %w", step.ID(), err)
	}

	result := step.Execute(ctx, instance.Data)

	completed := time.Now()
	exec.CompletedAt = &completed

	if !result.Success {
		err := result.Error
		if err == nil {
			err = fmt.Errorf("step %s failed", step.ID())
		}
		exec.State = StepStateFailed
		exec.Error = err.Error()
		return err
	}

	exec.State = StepStateCompleted
	exec.Result = result.Data
	return nil
}

// compensate runs compensation for completed steps in reverse order
func (m *Manager) compensate(ctx context.Context, logger *zap.Logger, instance *SagaInstance, steps []Step, lastCompletedStep int) {
	// compensation must still run when the saga deadline is what failed it
	ctx = context.WithoutCancel(ctx)

	for i := lastCompletedStep; i >= 0; i-- {
		step := steps[i]
		if err := step.Compensate(ctx, instance.Data); err != nil {
			logger.Warn("Compensation failed",
				zap.String("stepID", string(step.ID())),
				zap.Error(err))
			continue
		}
		instance.Steps[i].State = StepStateCompensated
	}

	now := time.Now()
	instance.CompletedAt = &now
	if lastCompletedStep >= 0 {
		instance.State = SagaStateCompensated
	} else {
		instance.State = SagaStateFailed
	}

	logger.Info("Saga compensated", zap.Int("compensatedSteps", lastCompletedStep+1))
}
