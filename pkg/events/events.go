// Package events defines event types and structures for lead and execution
// lifecycle notifications.
package events

import (
	"fmt"
	"time"
)

type EventType string

// Kafka topics.
const LeadTopic = "leadflow.leads"           // Lead domain events emitted by the CRM
const ExecutionTopic = "leadflow.executions" // Execution lifecycle events emitted by the engine

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Lead domain events.
	LeadCreatedEvent      EventType = "lead.created"
	LeadTagAddedEvent     EventType = "lead.tag.added"
	LeadTagRemovedEvent   EventType = "lead.tag.removed"
	LeadStageChangedEvent EventType = "lead.stage.changed"
	LeadFieldChangedEvent EventType = "lead.field.changed"
	CalendarEventEvent    EventType = "calendar.event"
	LeadReturnDateEvent   EventType = "lead.return_date"
	LastMessageSentEvent  EventType = "lead.last_message_sent"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionWaitingEvent   EventType = "execution.waiting"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"
)

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	OrganizationID string         `json:"organization_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// LeadEvent is a domain event about a lead, consumed by trigger matching.
// TagID, StageID, Field and Value are populated per Type.
type LeadEvent struct {
	BaseEvent

	LeadID  string `json:"lead_id"`
	TagID   string `json:"tag_id,omitempty"`
	StageID string `json:"stage_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
}

func (e LeadEvent) GetType() EventType {
	return e.Type
}

// Key returns the identity of this event instance, used for best-effort
// trigger dedupe: the same logical event yields the same key.
func (e LeadEvent) Key() string {
	switch e.Type {
	case LeadTagAddedEvent, LeadTagRemovedEvent:
		return fmt.Sprintf("%s:%s:%s", e.Type, e.LeadID, e.TagID)
	case LeadStageChangedEvent:
		return fmt.Sprintf("%s:%s:%s", e.Type, e.LeadID, e.StageID)
	case LeadFieldChangedEvent:
		return fmt.Sprintf("%s:%s:%s=%s", e.Type, e.LeadID, e.Field, e.Value)
	default:
		return fmt.Sprintf("%s:%s", e.Type, e.LeadID)
	}
}

// ExecutionStarted is published when trigger matching creates an execution.
type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	LeadID      string `json:"lead_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// ExecutionWaiting is published when an execution suspends on a wait node.
type ExecutionWaiting struct {
	BaseEvent

	ExecutionID     string     `json:"execution_id"`
	FlowID          string     `json:"flow_id"`
	NodeID          string     `json:"node_id"`
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`
}

func (e ExecutionWaiting) GetType() EventType {
	return ExecutionWaitingEvent
}

// ExecutionCompleted is published when an execution reaches a terminal node.
type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	FlowID      string        `json:"flow_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionFailed is published when an execution enters the error status.
type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	NodeID      string `json:"node_id"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// ExecutionCancelled is published when an operator cancels an execution.
type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// ExecutionPaused is published when an operator pauses an execution.
type ExecutionPaused struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

// ExecutionResumed is published when an operator resumes a paused execution.
type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}
