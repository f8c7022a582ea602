// Package persistence provides the data storage abstraction for flows,
// executions and leads.
package persistence

import (
	"context"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
)

type Persistence interface {
	// Flows.
	Flows(ctx context.Context, organizationID string) ([]*models.Flow, error)
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	ActiveFlows(ctx context.Context) ([]*models.Flow, error)
	SaveFlow(ctx context.Context, flow *models.Flow) error
	DeleteFlow(ctx context.Context, id string) error

	// Executions.
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	ExecutionsByFlow(ctx context.Context, flowID string) ([]*models.Execution, error)
	ExecutionsByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error)
	// DueExecutions returns waiting executions whose next_execution_at is at
	// or before now, plus waiting executions with no fixed resume time
	// (until_field waits, re-checked every tick).
	DueExecutions(ctx context.Context, now time.Time) ([]*models.Execution, error)
	// LiveExecution returns a non-terminal execution of the flow for the
	// lead with the given trigger event key, or nil. Used for best-effort
	// trigger dedupe.
	LiveExecution(ctx context.Context, flowID, leadID, eventKey string) (*models.Execution, error)
	SaveExecution(ctx context.Context, execution *models.Execution) error

	// Leads.
	LeadByID(ctx context.Context, id string) (*models.Lead, error)
	Leads(ctx context.Context, organizationID string) ([]*models.Lead, error)
	SaveLead(ctx context.Context, lead *models.Lead) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
