// Package reminder provides the create_reminder action handler.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/leadflow/leadflow/pkg/registry"
)

// Store is the write side of lead persistence this handler needs.
type Store interface {
	SaveLead(ctx context.Context, lead *models.Lead) error
}

// Action attaches a dated follow-up reminder to the lead.
type Action struct {
	store       Store
	title       string
	description string
	dueAt       time.Time
}

func NewAction(store Store, cfg models.ActionConfig) (*Action, error) {
	if cfg.Title == "" {
		return nil, errors.New("create_reminder requires title")
	}

	dueAt, err := time.Parse(time.RFC3339, cfg.ReminderDate)
	if err != nil {
		return nil, fmt.Errorf("create_reminder has invalid reminder_date: %w", err)
	}

	return &Action{
		store:       store,
		title:       cfg.Title,
		description: cfg.Description,
		dueAt:       dueAt,
	}, nil
}

func (a *Action) Execute(ctx context.Context, actx protocol.ActionContext) error {
	actx.Lead.Reminders = append(actx.Lead.Reminders, models.Reminder{
		ID:          uuid.New().String(),
		Title:       a.title,
		Description: a.description,
		DueAt:       a.dueAt,
		CreatedAt:   time.Now().UTC(),
	})
	actx.Lead.UpdatedAt = time.Now().UTC()

	return a.store.SaveLead(ctx, actx.Lead)
}

func Schema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionCreateReminder,
		Name:        "Criar lembrete",
		Description: "Cria um lembrete de acompanhamento para o lead",
		Config: map[string]any{
			"type":     "object",
			"required": []string{"title", "reminder_date"},
			"properties": map[string]any{
				"title":         map[string]any{"type": "string", "minLength": 1},
				"description":   map[string]any{"type": "string"},
				"reminder_date": map[string]any{"type": "string", "format": "date-time"},
			},
		},
	}
}
