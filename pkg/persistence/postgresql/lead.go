package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// LeadRepository handles lead-related database operations. Tags, fields,
// notes and reminders are JSONB documents; the engine always loads a lead
// whole.
type LeadRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLeadRepository(db *sql.DB, logger *slog.Logger) *LeadRepository {
	return &LeadRepository{db: db, logger: logger}
}

const leadColumns = `
	id
  , organization_id
  , name
  , phone
  , stage_id
  , tag_ids
  , fields
  , notes
  , reminders
  , created_at
  , updated_at
`

func (r *LeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lead %s: %w", id, persistence.ErrLeadNotFound)
		}

		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}

	return lead, nil
}

func (r *LeadRepository) GetAll(ctx context.Context, organizationID string) ([]*models.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	leads := make([]*models.Lead, 0)

	for rows.Next() {
		lead, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}

		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	return leads, nil
}

func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	tagIDs, err := json.Marshal(lead.TagIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal lead tags: %w", err)
	}

	fields, err := json.Marshal(lead.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal lead fields: %w", err)
	}

	notes, err := json.Marshal(lead.Notes)
	if err != nil {
		return fmt.Errorf("failed to marshal lead notes: %w", err)
	}

	reminders, err := json.Marshal(lead.Reminders)
	if err != nil {
		return fmt.Errorf("failed to marshal lead reminders: %w", err)
	}

	query := `
		INSERT INTO leads (
			id, organization_id, name, phone, stage_id, tag_ids, fields,
			notes, reminders, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			stage_id = EXCLUDED.stage_id,
			tag_ids = EXCLUDED.tag_ids,
			fields = EXCLUDED.fields,
			notes = EXCLUDED.notes,
			reminders = EXCLUDED.reminders,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		lead.ID,
		lead.OrganizationID,
		lead.Name,
		nullString(lead.Phone),
		nullString(lead.StageID),
		tagIDs,
		fields,
		notes,
		reminders,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	return nil
}

func (r *LeadRepository) scan(row rowScanner) (*models.Lead, error) {
	var (
		lead                             models.Lead
		phone, stageID                   sql.NullString
		tagIDs, fields, notes, reminders []byte
	)

	err := row.Scan(
		&lead.ID,
		&lead.OrganizationID,
		&lead.Name,
		&phone,
		&stageID,
		&tagIDs,
		&fields,
		&notes,
		&reminders,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.Phone = phone.String
	lead.StageID = stageID.String

	if err := json.Unmarshal(tagIDs, &lead.TagIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead tags: %w", err)
	}

	if err := json.Unmarshal(fields, &lead.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead fields: %w", err)
	}

	if err := json.Unmarshal(notes, &lead.Notes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead notes: %w", err)
	}

	if err := json.Unmarshal(reminders, &lead.Reminders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead reminders: %w", err)
	}

	return &lead, nil
}
