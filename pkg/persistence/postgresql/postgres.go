// Package postgresql provides the PostgreSQL persistence implementation for
// flows, executions and leads.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	flowRepo      *FlowRepository
	executionRepo *ExecutionRepository
	leadRepo      *LeadRepository
}

// NewPersistence connects, runs migrations and returns the persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		flowRepo:      NewFlowRepository(database, logger),
		executionRepo: NewExecutionRepository(database, logger),
		leadRepo:      NewLeadRepository(database, logger),
	}, nil
}

func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Flows(ctx context.Context, organizationID string) ([]*models.Flow, error) {
	return p.flowRepo.GetAll(ctx, organizationID)
}

func (p *Persistence) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	return p.flowRepo.GetByID(ctx, id)
}

func (p *Persistence) ActiveFlows(ctx context.Context) ([]*models.Flow, error) {
	return p.flowRepo.GetActive(ctx)
}

func (p *Persistence) SaveFlow(ctx context.Context, flow *models.Flow) error {
	return p.flowRepo.Save(ctx, flow)
}

func (p *Persistence) DeleteFlow(ctx context.Context, id string) error {
	return p.flowRepo.Delete(ctx, id)
}

func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	return p.executionRepo.GetByID(ctx, id)
}

func (p *Persistence) ExecutionsByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	return p.executionRepo.GetByFlow(ctx, flowID)
}

func (p *Persistence) ExecutionsByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	return p.executionRepo.GetByStatus(ctx, status)
}

func (p *Persistence) DueExecutions(ctx context.Context, now time.Time) ([]*models.Execution, error) {
	return p.executionRepo.GetDue(ctx, now)
}

func (p *Persistence) LiveExecution(ctx context.Context, flowID, leadID, eventKey string) (*models.Execution, error) {
	return p.executionRepo.GetLive(ctx, flowID, leadID, eventKey)
}

func (p *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	return p.executionRepo.Save(ctx, execution)
}

func (p *Persistence) LeadByID(ctx context.Context, id string) (*models.Lead, error) {
	return p.leadRepo.GetByID(ctx, id)
}

func (p *Persistence) Leads(ctx context.Context, organizationID string) ([]*models.Lead, error) {
	return p.leadRepo.GetAll(ctx, organizationID)
}

func (p *Persistence) SaveLead(ctx context.Context, lead *models.Lead) error {
	return p.leadRepo.Save(ctx, lead)
}
