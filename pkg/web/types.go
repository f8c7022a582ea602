// Package web provides the REST API for flow management and execution
// monitoring.
package web

import "github.com/leadflow/leadflow/pkg/models"

// CreateFlowRequest is the request body for creating a flow. The graph may
// be empty; nodes are added by the editor afterwards.
type CreateFlowRequest struct {
	Name           string         `json:"name"            validate:"required,min=3"`
	Description    string         `json:"description"`
	OrganizationID string         `json:"organization_id" validate:"required"`
	CreatedBy      string         `json:"created_by"`
	Nodes          []*models.Node `json:"nodes"`
	Edges          []*models.Edge `json:"edges"`
}

// UpdateFlowRequest replaces the flow's editable attributes and graph.
// Status is not editable here; the activate and pause endpoints own it.
type UpdateFlowRequest struct {
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Nodes       []*models.Node `json:"nodes"`
	Edges       []*models.Edge `json:"edges"`
}

// DuplicateFlowRequest is the request body for duplicating a flow.
type DuplicateFlowRequest struct {
	CreatedBy string `json:"created_by"`
}

// TestRunRequest starts a test execution of a flow against a lead.
type TestRunRequest struct {
	LeadID    string `json:"lead_id"    validate:"required"`
	CreatedBy string `json:"created_by"`
}
