// Package flow provides the flow lifecycle service: CRUD, duplication,
// activation gating and cascading deletion.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/leadflow/pkg/execution"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/validation"
)

// ErrValidationFailed is returned by Activate when the flow's graph has
// validation errors. The full Result travels alongside in ActivationError.
var ErrValidationFailed = errors.New("flow validation failed")

// ErrFlowActive is returned by Update when the flow is active. Active graphs
// passed validation at activation and stay frozen until paused, so running
// executions never see a half-edited flow.
var ErrFlowActive = errors.New("flow is active; pause it before editing")

// ActivationError carries the validation result of a rejected activation so
// the editor can show every problem at once.
type ActivationError struct {
	Result validation.Result
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("flow validation failed with %d errors", len(e.Result.Errors))
}

func (e *ActivationError) Unwrap() error {
	return ErrValidationFailed
}

// Service owns flow lifecycle operations. Executions are touched only
// through the engine, never directly.
type Service struct {
	persistence persistence.Persistence
	engine      *execution.Engine
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(persistence persistence.Persistence, engine *execution.Engine, logger *slog.Logger) *Service {
	return &Service{
		persistence: persistence,
		engine:      engine,
		logger:      logger.With("module", "flow_service"),
		now:         time.Now,
	}
}

// Create saves a new flow. Flows are always born as drafts; activation is a
// separate, validation-gated step.
func (s *Service) Create(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate flow id: %w", err)
	}

	now := s.now()
	flow.ID = id.String()
	flow.Status = models.FlowStatusDraft
	flow.CreatedAt = now
	flow.UpdatedAt = now

	if err := s.persistence.SaveFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	s.logger.Info("Created flow", "flow_id", flow.ID, "name", flow.Name)

	return flow, nil
}

// Update replaces the flow's editable attributes and graph. Only draft and
// paused flows are editable; the status itself is not editable here, as
// Activate, Pause and Reactivate own status changes.
func (s *Service) Update(ctx context.Context, id string, updated *models.Flow) (*models.Flow, error) {
	flow, err := s.persistence.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if flow.Status == models.FlowStatusActive {
		return nil, ErrFlowActive
	}

	flow.Name = updated.Name
	flow.Description = updated.Description
	flow.Nodes = updated.Nodes
	flow.Edges = updated.Edges
	flow.UpdatedAt = s.now()

	if err := s.persistence.SaveFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return flow, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Flow, error) {
	return s.persistence.FlowByID(ctx, id)
}

func (s *Service) List(ctx context.Context, organizationID string) ([]*models.Flow, error) {
	return s.persistence.Flows(ctx, organizationID)
}

// Validate runs graph validation without changing anything. The editor calls
// this on every save to surface problems early.
func (s *Service) Validate(ctx context.Context, id string) (validation.Result, error) {
	flow, err := s.persistence.FlowByID(ctx, id)
	if err != nil {
		return validation.Result{}, err
	}

	return validation.ValidateFlow(flow), nil
}

// Activate validates the flow and, only when the graph has no errors, moves
// it to active. Warnings do not block activation.
func (s *Service) Activate(ctx context.Context, id string) (*models.Flow, error) {
	flow, err := s.persistence.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := validation.ValidateFlow(flow)
	if !result.IsValid {
		s.logger.Info("Rejected flow activation",
			"flow_id", flow.ID,
			"errors", len(result.Errors),
		)

		return nil, &ActivationError{Result: result}
	}

	flow.Status = models.FlowStatusActive
	flow.UpdatedAt = s.now()

	if err := s.persistence.SaveFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	s.logger.Info("Activated flow", "flow_id", flow.ID, "warnings", len(result.Warnings))

	return flow, nil
}

// Pause moves an active flow to paused. Triggers stop firing; live
// executions keep running.
func (s *Service) Pause(ctx context.Context, id string) (*models.Flow, error) {
	return s.setStatus(ctx, id, models.FlowStatusActive, models.FlowStatusPaused)
}

// Reactivate moves a paused flow back to active. The graph was validated at
// activation and paused flows are editable, so validation runs again.
func (s *Service) Reactivate(ctx context.Context, id string) (*models.Flow, error) {
	flow, err := s.persistence.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if flow.Status != models.FlowStatusPaused {
		return nil, fmt.Errorf("flow %s is not paused", id)
	}

	result := validation.ValidateFlow(flow)
	if !result.IsValid {
		return nil, &ActivationError{Result: result}
	}

	flow.Status = models.FlowStatusActive
	flow.UpdatedAt = s.now()

	if err := s.persistence.SaveFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return flow, nil
}

// Duplicate deep-copies the flow under a new id. The copy is always a draft
// regardless of the source's status, so it never starts executing untouched.
func (s *Service) Duplicate(ctx context.Context, id string, createdBy string) (*models.Flow, error) {
	original, err := s.persistence.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate flow id: %w", err)
	}

	now := s.now()
	copied := &models.Flow{
		ID:             newID.String(),
		Name:           original.Name + " (cópia)",
		Description:    original.Description,
		OrganizationID: original.OrganizationID,
		Status:         models.FlowStatusDraft,
		Nodes:          copyNodes(original.Nodes),
		Edges:          copyEdges(original.Edges),
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.persistence.SaveFlow(ctx, copied); err != nil {
		return nil, fmt.Errorf("failed to save duplicated flow: %w", err)
	}

	s.logger.Info("Duplicated flow", "source_flow_id", id, "flow_id", copied.ID)

	return copied, nil
}

// Delete soft-deletes the flow and cancels every live execution. Executions
// must not keep advancing against a deleted graph.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.persistence.FlowByID(ctx, id); err != nil {
		return err
	}

	cancelled, err := s.engine.CancelByFlow(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to cancel executions of flow %s: %w", id, err)
	}

	if err := s.persistence.DeleteFlow(ctx, id); err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}

	s.logger.Info("Deleted flow", "flow_id", id, "cancelled_executions", cancelled)

	return nil
}

// TestRun starts a test execution of the flow against a lead, bypassing the
// active-status gate. Test executions are marked and excluded from metrics.
func (s *Service) TestRun(ctx context.Context, id, leadID, createdBy string) (*models.Execution, error) {
	flow, err := s.persistence.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := validation.ValidateFlow(flow)
	if !result.IsValid {
		return nil, &ActivationError{Result: result}
	}

	data := map[string]any{
		"isTest":            true,
		"trigger_event_key": "test:" + uuid.New().String(),
	}

	return s.engine.StartExecution(ctx, flow, leadID, data, createdBy)
}

func (s *Service) setStatus(ctx context.Context, id string, from, to models.FlowStatus) (*models.Flow, error) {
	flow, err := s.persistence.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if flow.Status != from {
		return nil, fmt.Errorf("flow %s is not %s", id, from)
	}

	flow.Status = to
	flow.UpdatedAt = s.now()

	if err := s.persistence.SaveFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return flow, nil
}

func copyNodes(nodes []*models.Node) []*models.Node {
	copied := make([]*models.Node, len(nodes))

	for i, node := range nodes {
		n := *node

		if node.Trigger != nil {
			cfg := *node.Trigger
			n.Trigger = &cfg
		}

		if node.Action != nil {
			cfg := *node.Action
			n.Action = &cfg
		}

		if node.Wait != nil {
			cfg := *node.Wait
			n.Wait = &cfg
		}

		if node.Condition != nil {
			cfg := *node.Condition
			n.Condition = &cfg
		}

		copied[i] = &n
	}

	return copied
}

func copyEdges(edges []*models.Edge) []*models.Edge {
	copied := make([]*models.Edge, len(edges))

	for i, edge := range edges {
		e := *edge
		copied[i] = &e
	}

	return copied
}
