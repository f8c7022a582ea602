// Package execution implements the flow execution state machine: advancing
// executions node by node, evaluating conditions, suspending on waits and
// publishing lifecycle events.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/otelhelper"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/leadflow/leadflow/pkg/registry"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 2 * time.Second
)

// Engine advances executions through their flow graphs. Every transition is
// persisted before the engine moves on, so a crash between nodes resumes at
// the last saved position and an action runs at most once more than recorded.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	bus         eventbus.EventBus
	locker      Locker
	tracer      trace.Tracer
	logger      *slog.Logger

	maxAttempts    int
	initialBackoff time.Duration

	now func() time.Time
}

func NewEngine(
	persistence persistence.Persistence,
	registry *registry.Registry,
	bus eventbus.EventBus,
	locker Locker,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence:    persistence,
		registry:       registry,
		bus:            bus,
		locker:         locker,
		tracer:         otel.Tracer("execution_engine"),
		logger:         logger.With("module", "execution_engine"),
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		now:            time.Now,
	}
}

// StartExecution creates and advances an execution of the flow for the lead.
// Only active flows may start real executions; test runs bypass the status
// gate but are marked so action handlers and metrics can tell them apart.
func (e *Engine) StartExecution(
	ctx context.Context,
	flow *models.Flow,
	leadID string,
	data map[string]any,
	createdBy string,
) (*models.Execution, error) {
	isTest, _ := data["isTest"].(bool)
	if flow.Status != models.FlowStatusActive && !isTest {
		return nil, fmt.Errorf("flow %s is not active", flow.ID)
	}

	trigger := flow.TriggerNode()
	if trigger == nil {
		return nil, fmt.Errorf("flow %s has no trigger node", flow.ID)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate execution id: %w", err)
	}

	execution := &models.Execution{
		ID:             id.String(),
		FlowID:         flow.ID,
		LeadID:         leadID,
		OrganizationID: flow.OrganizationID,
		Status:         models.ExecutionStatusRunning,
		CurrentNodeID:  trigger.ID,
		ExecutionData:  data,
		StartedAt:      e.now(),
		CreatedBy:      createdBy,
	}

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	e.publish(ctx, execution, events.ExecutionStarted{
		BaseEvent:   e.baseEvent(events.ExecutionStartedEvent, execution.OrganizationID),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		LeadID:      execution.LeadID,
	})

	if err := e.Advance(ctx, execution.ID); err != nil {
		return execution, err
	}

	return e.persistence.ExecutionByID(ctx, execution.ID)
}

// Advance moves the execution forward until it suspends on a wait, reaches a
// terminal status or fails. Concurrent calls for the same execution are
// serialized by the locker; the loser returns without touching anything.
func (e *Engine) Advance(ctx context.Context, executionID string) error {
	release, acquired, err := e.locker.Acquire(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to lock execution %s: %w", executionID, err)
	}

	if !acquired {
		e.logger.Debug("Execution already being advanced elsewhere", "execution_id", executionID)

		return nil
	}
	defer release()

	execution, err := e.persistence.ExecutionByID(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to fetch execution %s: %w", executionID, err)
	}

	if execution.IsTerminal() || execution.Status == models.ExecutionStatusPaused {
		return nil
	}

	flow, err := e.persistence.FlowByID(ctx, execution.FlowID)
	if err != nil {
		return fmt.Errorf("failed to fetch flow %s: %w", execution.FlowID, err)
	}

	lead, err := e.persistence.LeadByID(ctx, execution.LeadID)
	if err != nil {
		return fmt.Errorf("failed to fetch lead %s: %w", execution.LeadID, err)
	}

	logger := e.logger.With(
		"execution_id", execution.ID,
		"flow_id", flow.ID,
		"lead_id", lead.ID,
	)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.advance",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.FlowIDKey, flow.ID),
		attribute.String(otelhelper.LeadIDKey, lead.ID),
	)
	defer span.End()

	graph := models.NewGraph(flow)

	for {
		node := graph.Node(execution.CurrentNodeID)
		if node == nil {
			return e.fail(ctx, execution, execution.CurrentNodeID,
				fmt.Errorf("current node %s no longer exists in flow", execution.CurrentNodeID), logger)
		}

		span.AddEvent("node_transition", trace.WithAttributes(
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
		))
		logger.Info("Advancing execution", "node_id", node.ID, "node_type", node.Type)

		switch node.Type {
		case models.NodeTypeTrigger:
			next, ok := graph.Next(node.ID)
			if !ok {
				return e.complete(ctx, execution, logger)
			}

			execution.CurrentNodeID = next

		case models.NodeTypeAction:
			if err := e.executeAction(ctx, node, execution, lead, logger); err != nil {
				return e.fail(ctx, execution, node.ID, err, logger)
			}

			next, ok := graph.Next(node.ID)
			if !ok {
				return e.complete(ctx, execution, logger)
			}

			execution.CurrentNodeID = next

		case models.NodeTypeCondition:
			if node.Condition == nil {
				return e.fail(ctx, execution, node.ID,
					fmt.Errorf("condition node %s has no config", node.ID), logger)
			}

			handle := models.HandleNo
			if EvaluateCondition(node.Condition, lead) {
				handle = models.HandleYes
			}

			next, ok := graph.Branch(node.ID, handle)
			if !ok {
				logger.Info("Condition branch not connected, completing", "node_id", node.ID, "branch", handle)

				return e.complete(ctx, execution, logger)
			}

			logger.Info("Condition evaluated", "node_id", node.ID, "branch", handle)
			execution.CurrentNodeID = next

		case models.NodeTypeWait:
			if node.Wait == nil {
				return e.fail(ctx, execution, node.ID,
					fmt.Errorf("wait node %s has no config", node.ID), logger)
			}

			proceed, err := e.stepWait(ctx, node, execution, lead, logger)
			if err != nil {
				return e.fail(ctx, execution, node.ID, err, logger)
			}

			if !proceed {
				return nil
			}

			next, ok := graph.Next(node.ID)
			if !ok {
				return e.complete(ctx, execution, logger)
			}

			execution.CurrentNodeID = next

		case models.NodeTypeEnd:
			return e.complete(ctx, execution, logger)

		default:
			return e.fail(ctx, execution, node.ID,
				fmt.Errorf("unknown node type %q", node.Type), logger)
		}

		if err := e.persistence.SaveExecution(ctx, execution); err != nil {
			return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
		}
	}
}

// stepWait handles a wait node in both directions: a running execution
// arriving at the node suspends, a waiting execution re-checked by the
// scheduler either resumes (proceed=true) or stays suspended.
func (e *Engine) stepWait(
	ctx context.Context,
	node *models.Node,
	execution *models.Execution,
	lead *models.Lead,
	logger *slog.Logger,
) (bool, error) {
	cfg := node.Wait

	if execution.Status == models.ExecutionStatusWaiting {
		switch cfg.Type {
		case models.WaitUntilField:
			condition := &models.ConditionConfig{
				Field:    cfg.Field,
				Operator: cfg.Operator,
				Value:    cfg.Value,
			}
			if !EvaluateCondition(condition, lead) {
				return false, nil
			}
		default:
			if execution.NextExecutionAt != nil && e.now().Before(*execution.NextExecutionAt) {
				return false, nil
			}
		}

		logger.Info("Wait satisfied, resuming", "node_id", node.ID, "wait_type", cfg.Type)
		execution.Status = models.ExecutionStatusRunning
		execution.NextExecutionAt = nil

		return true, nil
	}

	resumeAt, err := e.waitResumeAt(cfg)
	if err != nil {
		return false, err
	}

	execution.Status = models.ExecutionStatusWaiting
	execution.NextExecutionAt = resumeAt

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return false, fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	logger.Info("Execution suspended on wait", "node_id", node.ID, "wait_type", cfg.Type, "next_execution_at", resumeAt)

	e.publish(ctx, execution, events.ExecutionWaiting{
		BaseEvent:       e.baseEvent(events.ExecutionWaitingEvent, execution.OrganizationID),
		ExecutionID:     execution.ID,
		FlowID:          execution.FlowID,
		NodeID:          node.ID,
		NextExecutionAt: resumeAt,
	})

	return false, nil
}

// waitResumeAt computes when a wait becomes due. until_field waits have no
// fixed resume time; the scheduler re-checks them every tick.
func (e *Engine) waitResumeAt(cfg *models.WaitConfig) (*time.Time, error) {
	switch cfg.Type {
	case models.WaitDelay:
		var unit time.Duration

		switch cfg.DelayUnit {
		case models.DelayUnitMinutes:
			unit = time.Minute
		case models.DelayUnitHours:
			unit = time.Hour
		case models.DelayUnitDays:
			unit = 24 * time.Hour
		default:
			return nil, fmt.Errorf("unknown delay unit %q", cfg.DelayUnit)
		}

		at := e.now().Add(time.Duration(cfg.DelayValue) * unit)

		return &at, nil
	case models.WaitUntilDate:
		at, err := time.Parse(time.RFC3339, cfg.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid wait date %q: %w", cfg.Date, err)
		}

		return &at, nil
	case models.WaitUntilField:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown wait type %q", cfg.Type)
	}
}

// executeAction runs the node's action handler with bounded retry and
// exponential backoff. The handler mutates the lead through its own store;
// the in-memory lead stays current for downstream conditions.
func (e *Engine) executeAction(
	ctx context.Context,
	node *models.Node,
	execution *models.Execution,
	lead *models.Lead,
	logger *slog.Logger,
) error {
	if node.Action == nil {
		return fmt.Errorf("action node %s has no config", node.ID)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.action",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.ActionTypeKey, string(node.Action.Type)),
	)
	defer span.End()

	action, err := e.registry.CreateAction(*node.Action)
	if err != nil {
		return fmt.Errorf("failed to create action %q: %w", node.Action.Type, err)
	}

	actx := protocol.ActionContext{
		Execution: execution,
		Lead:      lead,
		Logger:    logger.With("node_id", node.ID, "action_type", node.Action.Type),
	}

	backoff := e.initialBackoff

	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		lastErr = action.Execute(ctx, actx)
		if lastErr == nil {
			return nil
		}

		logger.Warn("Action attempt failed",
			"node_id", node.ID,
			"action_type", node.Action.Type,
			"attempt", attempt,
			"error", lastErr,
		)

		if attempt == e.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	err = fmt.Errorf("action %q failed after %d attempts: %w", node.Action.Type, e.maxAttempts, lastErr)
	otelhelper.SetError(span, err)

	return err
}

func (e *Engine) complete(ctx context.Context, execution *models.Execution, logger *slog.Logger) error {
	now := e.now()
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &now
	execution.NextExecutionAt = nil

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	logger.Info("Execution completed", "duration", now.Sub(execution.StartedAt))

	e.publish(ctx, execution, events.ExecutionCompleted{
		BaseEvent:   e.baseEvent(events.ExecutionCompletedEvent, execution.OrganizationID),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		Duration:    now.Sub(execution.StartedAt),
	})

	return nil
}

func (e *Engine) fail(
	ctx context.Context,
	execution *models.Execution,
	nodeID string,
	cause error,
	logger *slog.Logger,
) error {
	otelhelper.SetError(trace.SpanFromContext(ctx), cause,
		attribute.String(otelhelper.NodeIDKey, nodeID))

	now := e.now()
	execution.Status = models.ExecutionStatusError
	execution.ErrorMessage = cause.Error()
	execution.CompletedAt = &now
	execution.NextExecutionAt = nil

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	logger.Error("Execution failed", "node_id", nodeID, "error", cause)

	e.publish(ctx, execution, events.ExecutionFailed{
		BaseEvent:   e.baseEvent(events.ExecutionFailedEvent, execution.OrganizationID),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		NodeID:      nodeID,
		Error:       cause.Error(),
	})

	return nil
}

func (e *Engine) baseEvent(eventType events.EventType, organizationID string) events.BaseEvent {
	id := ""
	if e.bus != nil {
		id = e.bus.GenerateID()
	}

	return events.BaseEvent{
		ID:             id,
		Type:           eventType,
		Timestamp:      e.now(),
		OrganizationID: organizationID,
	}
}

func (e *Engine) publish(ctx context.Context, execution *models.Execution, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, execution.ID, event); err != nil {
		e.logger.Warn("Failed to publish execution event",
			"execution_id", execution.ID,
			"event_type", event.GetType(),
			"error", err,
		)
	}
}
