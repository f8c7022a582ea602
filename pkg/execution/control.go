package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/models"
)

// ErrExecutionBusy is returned when a control operation loses the lock to a
// concurrent advance. Callers should retry.
var ErrExecutionBusy = errors.New("execution is currently being advanced")

// ErrInvalidTransition is returned when a control operation does not apply to
// the execution's current status.
var ErrInvalidTransition = errors.New("invalid execution status transition")

// Pause suspends a running or waiting execution. The interrupted status is
// remembered so Resume can restore it; a paused waiting execution keeps its
// resume time but is skipped by the scheduler.
func (e *Engine) Pause(ctx context.Context, executionID string) (*models.Execution, error) {
	return e.controlled(ctx, executionID, func(execution *models.Execution) error {
		switch execution.Status {
		case models.ExecutionStatusRunning, models.ExecutionStatusWaiting:
		default:
			return fmt.Errorf("%w: cannot pause execution in status %q", ErrInvalidTransition, execution.Status)
		}

		execution.PausedFrom = execution.Status
		execution.Status = models.ExecutionStatusPaused

		e.publish(ctx, execution, events.ExecutionPaused{
			BaseEvent:   e.baseEvent(events.ExecutionPausedEvent, execution.OrganizationID),
			ExecutionID: execution.ID,
			FlowID:      execution.FlowID,
		})

		return nil
	})
}

// Resume restores a paused execution to the status the pause interrupted. An
// execution resumed into running is advanced immediately.
func (e *Engine) Resume(ctx context.Context, executionID string) (*models.Execution, error) {
	execution, err := e.controlled(ctx, executionID, func(execution *models.Execution) error {
		if execution.Status != models.ExecutionStatusPaused {
			return fmt.Errorf("%w: cannot resume execution in status %q", ErrInvalidTransition, execution.Status)
		}

		restored := execution.PausedFrom
		if restored == "" {
			restored = models.ExecutionStatusRunning
		}

		execution.Status = restored
		execution.PausedFrom = ""

		e.publish(ctx, execution, events.ExecutionResumed{
			BaseEvent:   e.baseEvent(events.ExecutionResumedEvent, execution.OrganizationID),
			ExecutionID: execution.ID,
			FlowID:      execution.FlowID,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	if execution.Status == models.ExecutionStatusRunning {
		if err := e.Advance(ctx, executionID); err != nil {
			return execution, err
		}

		return e.persistence.ExecutionByID(ctx, executionID)
	}

	return execution, nil
}

// Cancel moves any non-terminal execution to the cancelled status. Cancelled
// is terminal; the execution can never be resumed or advanced again.
func (e *Engine) Cancel(ctx context.Context, executionID string) (*models.Execution, error) {
	return e.controlled(ctx, executionID, func(execution *models.Execution) error {
		if execution.IsTerminal() {
			return fmt.Errorf("%w: cannot cancel execution in status %q", ErrInvalidTransition, execution.Status)
		}

		now := e.now()
		execution.Status = models.ExecutionStatusCancelled
		execution.CompletedAt = &now
		execution.NextExecutionAt = nil
		execution.PausedFrom = ""

		e.publish(ctx, execution, events.ExecutionCancelled{
			BaseEvent:   e.baseEvent(events.ExecutionCancelledEvent, execution.OrganizationID),
			ExecutionID: execution.ID,
			FlowID:      execution.FlowID,
		})

		return nil
	})
}

// CancelByFlow cancels every live execution of the flow. Used when a flow is
// deleted; executions must not keep running against a graph that no longer
// exists.
func (e *Engine) CancelByFlow(ctx context.Context, flowID string) (int, error) {
	executions, err := e.persistence.ExecutionsByFlow(ctx, flowID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch executions for flow %s: %w", flowID, err)
	}

	cancelled := 0

	for _, execution := range executions {
		if execution.IsTerminal() {
			continue
		}

		if _, err := e.Cancel(ctx, execution.ID); err != nil {
			return cancelled, fmt.Errorf("failed to cancel execution %s: %w", execution.ID, err)
		}

		cancelled++
	}

	return cancelled, nil
}

// controlled runs a status mutation under the execution lock and persists the
// result, so control operations never interleave with an in-flight advance.
func (e *Engine) controlled(
	ctx context.Context,
	executionID string,
	mutate func(*models.Execution) error,
) (*models.Execution, error) {
	release, acquired, err := e.locker.Acquire(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock execution %s: %w", executionID, err)
	}

	if !acquired {
		return nil, ErrExecutionBusy
	}
	defer release()

	execution, err := e.persistence.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch execution %s: %w", executionID, err)
	}

	if err := mutate(execution); err != nil {
		return nil, err
	}

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution %s: %w", executionID, err)
	}

	return execution, nil
}
