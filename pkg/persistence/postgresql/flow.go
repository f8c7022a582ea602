package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// FlowRepository handles flow-related database operations. The node and edge
// lists are stored as JSONB documents; the engine always loads a flow whole.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

const flowColumns = `
	id
  , name
  , description
  , organization_id
  , status
  , nodes
  , edges
  , created_by
  , created_at
  , updated_at
  , deleted_at
`

func (r *FlowRepository) GetAll(ctx context.Context, organizationID string) ([]*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM flows
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer r.closeRows(ctx, rows)

	return r.collect(rows)
}

func (r *FlowRepository) GetActive(ctx context.Context) ([]*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM flows
		WHERE status = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, models.FlowStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active flows: %w", err)
	}
	defer r.closeRows(ctx, rows)

	return r.collect(rows)
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM flows
		WHERE id = $1 AND deleted_at IS NULL
	`

	flow, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.FlowError{Op: "FlowByID", FlowID: id, Err: persistence.ErrFlowNotFound}
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	nodes, err := json.Marshal(flow.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal flow nodes: %w", err)
	}

	edges, err := json.Marshal(flow.Edges)
	if err != nil {
		return fmt.Errorf("failed to marshal flow edges: %w", err)
	}

	query := `
		INSERT INTO flows (
			id, name, description, organization_id, status, nodes, edges,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID,
		flow.Name,
		flow.Description,
		flow.OrganizationID,
		flow.Status,
		nodes,
		edges,
		flow.CreatedBy,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}

	return nil
}

// Delete soft-deletes the flow. Executions reference flows by foreign key,
// so rows are never removed.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE flows SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}

	if affected == 0 {
		return &persistence.FlowError{Op: "DeleteFlow", FlowID: id, Err: persistence.ErrFlowNotFound}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *FlowRepository) scan(row rowScanner) (*models.Flow, error) {
	var (
		flow         models.Flow
		nodes, edges []byte
		createdBy    sql.NullString
	)

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.Description,
		&flow.OrganizationID,
		&flow.Status,
		&nodes,
		&edges,
		&createdBy,
		&flow.CreatedAt,
		&flow.UpdatedAt,
		&flow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	flow.CreatedBy = createdBy.String

	if err := json.Unmarshal(nodes, &flow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow nodes: %w", err)
	}

	if err := json.Unmarshal(edges, &flow.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow edges: %w", err)
	}

	return &flow, nil
}

func (r *FlowRepository) collect(rows *sql.Rows) ([]*models.Flow, error) {
	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

func (r *FlowRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
