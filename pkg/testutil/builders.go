// Package testutil provides test data builders shared across packages.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/leadflow/pkg/models"
)

// CreateTestFlow creates an active flow with default values that can be
// overridden.
func CreateTestFlow(overrides ...func(*models.Flow)) *models.Flow {
	now := time.Now().UTC()
	flow := &models.Flow{
		ID:             uuid.New().String(),
		Name:           "Fluxo de teste",
		OrganizationID: "org-1",
		Status:         models.FlowStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, override := range overrides {
		override(flow)
	}

	return flow
}

// WithStatus sets the flow status.
func WithStatus(status models.FlowStatus) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Status = status
	}
}

// WithGraph sets the flow's nodes and edges.
func WithGraph(nodes []*models.Node, edges []*models.Edge) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Nodes = nodes
		f.Edges = edges
	}
}

// TriggerNode builds a trigger node for the given trigger config.
func TriggerNode(id string, cfg models.TriggerConfig) *models.Node {
	return &models.Node{
		ID:      id,
		Type:    models.NodeTypeTrigger,
		Label:   "Gatilho",
		Trigger: &cfg,
	}
}

// ActionNode builds an action node for the given action config.
func ActionNode(id string, cfg models.ActionConfig) *models.Node {
	return &models.Node{
		ID:     id,
		Type:   models.NodeTypeAction,
		Label:  "Ação",
		Action: &cfg,
	}
}

// WaitNode builds a wait node for the given wait config.
func WaitNode(id string, cfg models.WaitConfig) *models.Node {
	return &models.Node{
		ID:    id,
		Type:  models.NodeTypeWait,
		Label: "Aguardar",
		Wait:  &cfg,
	}
}

// ConditionNode builds a condition node for the given condition config.
func ConditionNode(id string, cfg models.ConditionConfig) *models.Node {
	return &models.Node{
		ID:        id,
		Type:      models.NodeTypeCondition,
		Label:     "Condição",
		Condition: &cfg,
	}
}

// EndNode builds an end node.
func EndNode(id string) *models.Node {
	return &models.Node{
		ID:    id,
		Type:  models.NodeTypeEnd,
		Label: "Fim",
	}
}

// Edge connects two nodes.
func Edge(source, target string) *models.Edge {
	return &models.Edge{
		ID:     uuid.New().String(),
		Source: source,
		Target: target,
	}
}

// BranchEdge connects a condition node's branch to a target.
func BranchEdge(source, handle, target string) *models.Edge {
	return &models.Edge{
		ID:           uuid.New().String(),
		Source:       source,
		Target:       target,
		SourceHandle: handle,
	}
}

// CreateTestLead creates a lead with default values that can be overridden.
func CreateTestLead(overrides ...func(*models.Lead)) *models.Lead {
	now := time.Now().UTC()
	lead := &models.Lead{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Name:           "Carlos Silva",
		Phone:          "+5511999990000",
		Fields:         map[string]string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, override := range overrides {
		override(lead)
	}

	return lead
}

// WithTags sets the lead's tags.
func WithTags(tagIDs ...string) func(*models.Lead) {
	return func(l *models.Lead) {
		l.TagIDs = tagIDs
	}
}

// WithFields sets the lead's custom fields.
func WithFields(fields map[string]string) func(*models.Lead) {
	return func(l *models.Lead) {
		l.Fields = fields
	}
}

// WithStage sets the lead's stage.
func WithStage(stageID string) func(*models.Lead) {
	return func(l *models.Lead) {
		l.StageID = stageID
	}
}
