package models

import "time"

// ExecutionStatus defines the possible states of a flow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusError     ExecutionStatus = "error"
)

// Execution is one run of a flow against one lead. There is exactly one
// current position per execution; NextExecutionAt is set if and only if the
// status is waiting.
type Execution struct {
	ID             string          `json:"id"`
	FlowID         string          `json:"flow_id"`
	LeadID         string          `json:"lead_id"`
	OrganizationID string          `json:"organization_id"`
	Status         ExecutionStatus `json:"status"`
	CurrentNodeID  string          `json:"current_node_id"`
	ExecutionData  map[string]any  `json:"execution_data,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`

	// PausedFrom remembers the status an operator pause interrupted, so
	// resume can restore running vs waiting.
	PausedFrom ExecutionStatus `json:"paused_from,omitempty"`

	StartedAt       time.Time  `json:"started_at"`
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedBy       string     `json:"created_by,omitempty"`
}

// IsTerminal reports whether the execution can never advance again.
func (e *Execution) IsTerminal() bool {
	switch e.Status {
	case ExecutionStatusCompleted, ExecutionStatusCancelled, ExecutionStatusError:
		return true
	default:
		return false
	}
}

// IsTest reports whether this execution was created by the manual test-run
// entry point.
func (e *Execution) IsTest() bool {
	isTest, _ := e.ExecutionData["isTest"].(bool)

	return isTest
}

// TriggerEventKey returns the identity of the event that started this
// execution, used for best-effort trigger dedupe.
func (e *Execution) TriggerEventKey() string {
	key, _ := e.ExecutionData["trigger_event_key"].(string)

	return key
}
