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

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , flow_id
  , lead_id
  , organization_id
  , status
  , current_node_id
  , execution_data
  , error_message
  , paused_from
  , started_at
  , next_execution_at
  , completed_at
  , created_by
`

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.ExecutionError{
				Op:          "ExecutionByID",
				ExecutionID: id,
				Err:         persistence.ErrExecutionNotFound,
			}
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) GetByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE flow_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer r.closeRows(ctx, rows)

	return r.collect(rows)
}

func (r *ExecutionRepository) GetByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions by status: %w", err)
	}
	defer r.closeRows(ctx, rows)

	return r.collect(rows)
}

// GetDue returns waiting executions that are ready for a resume check: past
// their resume time, or without one (until_field waits, re-checked on every
// sweep).
func (r *ExecutionRepository) GetDue(ctx context.Context, now time.Time) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status = $1
		  AND (next_execution_at IS NULL OR next_execution_at <= $2)
		ORDER BY next_execution_at ASC NULLS LAST
	`

	rows, err := r.db.QueryContext(ctx, query, models.ExecutionStatusWaiting, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due executions: %w", err)
	}
	defer r.closeRows(ctx, rows)

	return r.collect(rows)
}

// GetLive returns a non-terminal execution of the flow for the lead started
// by the given trigger event, or nil.
func (r *ExecutionRepository) GetLive(ctx context.Context, flowID, leadID, eventKey string) (*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE flow_id = $1
		  AND lead_id = $2
		  AND execution_data->>'trigger_event_key' = $3
		  AND status NOT IN ($4, $5, $6)
		LIMIT 1
	`

	execution, err := r.scan(r.db.QueryRowContext(ctx, query,
		flowID,
		leadID,
		eventKey,
		models.ExecutionStatusCompleted,
		models.ExecutionStatusCancelled,
		models.ExecutionStatusError,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan live execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	data, err := json.Marshal(execution.ExecutionData)
	if err != nil {
		return fmt.Errorf("failed to marshal execution data: %w", err)
	}

	query := `
		INSERT INTO executions (
			id, flow_id, lead_id, organization_id, status, current_node_id,
			execution_data, error_message, paused_from, started_at,
			next_execution_at, completed_at, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node_id = EXCLUDED.current_node_id,
			execution_data = EXCLUDED.execution_data,
			error_message = EXCLUDED.error_message,
			paused_from = EXCLUDED.paused_from,
			next_execution_at = EXCLUDED.next_execution_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.FlowID,
		execution.LeadID,
		execution.OrganizationID,
		execution.Status,
		execution.CurrentNodeID,
		data,
		nullString(execution.ErrorMessage),
		nullString(string(execution.PausedFrom)),
		execution.StartedAt,
		execution.NextExecutionAt,
		execution.CompletedAt,
		nullString(execution.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) scan(row rowScanner) (*models.Execution, error) {
	var (
		execution    models.Execution
		data         []byte
		errorMessage sql.NullString
		pausedFrom   sql.NullString
		createdBy    sql.NullString
	)

	err := row.Scan(
		&execution.ID,
		&execution.FlowID,
		&execution.LeadID,
		&execution.OrganizationID,
		&execution.Status,
		&execution.CurrentNodeID,
		&data,
		&errorMessage,
		&pausedFrom,
		&execution.StartedAt,
		&execution.NextExecutionAt,
		&execution.CompletedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}

	execution.ErrorMessage = errorMessage.String
	execution.PausedFrom = models.ExecutionStatus(pausedFrom.String)
	execution.CreatedBy = createdBy.String

	if len(data) > 0 {
		if err := json.Unmarshal(data, &execution.ExecutionData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution data: %w", err)
		}
	}

	return &execution, nil
}

func (r *ExecutionRepository) collect(rows *sql.Rows) ([]*models.Execution, error) {
	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
