// Package models defines the core domain models for node-based lead automation flows.
package models

import "time"

// FlowStatus represents the lifecycle state of a flow.
type FlowStatus string

const (
	FlowStatusDraft  FlowStatus = "draft"  // Editable, not executable
	FlowStatusActive FlowStatus = "active" // Executable; must have passed validation
	FlowStatusPaused FlowStatus = "paused" // Temporarily not executable, editable
)

// Flow represents a named automation definition expressed as a directed
// graph of trigger/action/wait/condition/end nodes.
type Flow struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"            validate:"required,min=3"`
	Description    string     `json:"description"`
	OrganizationID string     `json:"organization_id" validate:"required"`
	Status         FlowStatus `json:"status"          validate:"required"`
	Nodes          []*Node    `json:"nodes"`
	Edges          []*Edge    `json:"edges"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// TriggerNode returns the flow's trigger node, or nil when the graph has
// none. Graphs with zero or multiple triggers are rejected by validation,
// but callers must not assume a validated graph.
func (f *Flow) TriggerNode() *Node {
	for _, node := range f.Nodes {
		if node.Type == NodeTypeTrigger {
			return node
		}
	}

	return nil
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}
