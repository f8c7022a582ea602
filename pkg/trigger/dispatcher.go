package trigger

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/execution"
	"github.com/leadflow/leadflow/pkg/otelhelper"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// Dispatcher consumes lead domain events and starts executions for the flows
// they fire. Delivery is at-least-once; a redelivered event is dropped when a
// live execution with the same event key already exists.
type Dispatcher struct {
	persistence persistence.Persistence
	matcher     *Matcher
	engine      *execution.Engine
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewDispatcher(
	persistence persistence.Persistence,
	matcher *Matcher,
	engine *execution.Engine,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		persistence: persistence,
		matcher:     matcher,
		engine:      engine,
		tracer:      otel.Tracer("trigger_dispatcher"),
		logger:      logger.With("module", "trigger_dispatcher"),
	}
}

// Register subscribes the dispatcher to every lead event type on the bus.
func (d *Dispatcher) Register(bus eventbus.EventSubscriber) error {
	leadEvents := []events.EventType{
		events.LeadCreatedEvent,
		events.LeadTagAddedEvent,
		events.LeadTagRemovedEvent,
		events.LeadStageChangedEvent,
		events.LeadFieldChangedEvent,
		events.CalendarEventEvent,
		events.LeadReturnDateEvent,
		events.LastMessageSentEvent,
	}

	for _, eventType := range leadEvents {
		if err := bus.Handle(eventType, d.handle); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	return nil
}

func (d *Dispatcher) handle(ctx context.Context, raw any) error {
	event, ok := raw.(events.LeadEvent)
	if !ok {
		if ptr, isPtr := raw.(*events.LeadEvent); isPtr {
			event = *ptr
		} else {
			return fmt.Errorf("unexpected event payload %T", raw)
		}
	}

	return d.Dispatch(ctx, event)
}

// Dispatch matches the event against active flows and starts one execution
// per match, skipping flows that already have a live execution for this
// event.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.LeadEvent) error {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "trigger_dispatcher.dispatch",
		attribute.String(otelhelper.EventIDKey, event.ID),
		attribute.String(otelhelper.TriggerTypeKey, string(event.Type)),
		attribute.String(otelhelper.LeadIDKey, event.LeadID),
	)
	defer span.End()

	flows, err := d.persistence.ActiveFlows(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to fetch active flows: %w", err)
	}

	matched := d.matcher.Match(event, flows)
	eventKey := event.Key()

	for _, flow := range matched {
		if flow.OrganizationID != event.OrganizationID {
			continue
		}

		live, err := d.persistence.LiveExecution(ctx, flow.ID, event.LeadID, eventKey)
		if err != nil {
			otelhelper.SetError(span, err, attribute.String(otelhelper.FlowIDKey, flow.ID))

			return fmt.Errorf("failed to check live executions for flow %s: %w", flow.ID, err)
		}

		if live != nil {
			d.logger.Debug("Skipping duplicate trigger firing",
				"flow_id", flow.ID,
				"lead_id", event.LeadID,
				"event_key", eventKey,
			)

			continue
		}

		data := map[string]any{
			"trigger_event_key": eventKey,
			"trigger_type":      string(event.Type),
		}

		started, err := d.engine.StartExecution(ctx, flow, event.LeadID, data, "trigger")
		if err != nil {
			otelhelper.SetError(span, err, attribute.String(otelhelper.FlowIDKey, flow.ID))
			d.logger.Error("Failed to start execution",
				"flow_id", flow.ID,
				"lead_id", event.LeadID,
				"error", err,
			)

			continue
		}

		d.logger.Info("Started execution from trigger",
			"execution_id", started.ID,
			"flow_id", flow.ID,
			"lead_id", event.LeadID,
			"event_type", event.Type,
		)
	}

	return nil
}
