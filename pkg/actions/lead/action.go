// Package lead provides the action handlers that mutate the lead record:
// tags, pipeline stage, fields, notes and follow-up templates.
package lead

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

// Store is the write side of lead persistence these handlers need.
type Store interface {
	SaveLead(ctx context.Context, lead *models.Lead) error
}

// AddTagAction attaches a tag to the lead. Attaching an already-present tag
// is a no-op, keeping the action safe under retry.
type AddTagAction struct {
	store Store
	tagID string
}

func NewAddTagAction(store Store, cfg models.ActionConfig) (*AddTagAction, error) {
	if cfg.TagID == "" {
		return nil, errors.New("add_tag requires tag_id")
	}

	return &AddTagAction{store: store, tagID: cfg.TagID}, nil
}

func (a *AddTagAction) Execute(ctx context.Context, actx protocol.ActionContext) error {
	if actx.Lead.HasTag(a.tagID) {
		return nil
	}

	actx.Lead.TagIDs = append(actx.Lead.TagIDs, a.tagID)
	actx.Lead.UpdatedAt = time.Now().UTC()

	return a.store.SaveLead(ctx, actx.Lead)
}

// RemoveTagAction detaches a tag from the lead.
type RemoveTagAction struct {
	store Store
	tagID string
}

func NewRemoveTagAction(store Store, cfg models.ActionConfig) (*RemoveTagAction, error) {
	if cfg.TagID == "" {
		return nil, errors.New("remove_tag requires tag_id")
	}

	return &RemoveTagAction{store: store, tagID: cfg.TagID}, nil
}

func (a *RemoveTagAction) Execute(ctx context.Context, actx protocol.ActionContext) error {
	tags := actx.Lead.TagIDs[:0]

	for _, id := range actx.Lead.TagIDs {
		if id != a.tagID {
			tags = append(tags, id)
		}
	}

	actx.Lead.TagIDs = tags
	actx.Lead.UpdatedAt = time.Now().UTC()

	return a.store.SaveLead(ctx, actx.Lead)
}

// MoveStageAction moves the lead to another pipeline stage.
type MoveStageAction struct {
	store   Store
	stageID string
}

func NewMoveStageAction(store Store, cfg models.ActionConfig) (*MoveStageAction, error) {
	if cfg.StageID == "" {
		return nil, errors.New("move_stage requires stage_id")
	}

	return &MoveStageAction{store: store, stageID: cfg.StageID}, nil
}

func (a *MoveStageAction) Execute(ctx context.Context, actx protocol.ActionContext) error {
	actx.Lead.StageID = a.stageID
	actx.Lead.UpdatedAt = time.Now().UTC()

	return a.store.SaveLead(ctx, actx.Lead)
}

// UpdateFieldAction writes a named field on the lead.
type UpdateFieldAction struct {
	store Store
	field string
	value string
}

func NewUpdateFieldAction(store Store, cfg models.ActionConfig) (*UpdateFieldAction, error) {
	if cfg.Field == "" {
		return nil, errors.New("update_field requires field")
	}

	return &UpdateFieldAction{store: store, field: cfg.Field, value: cfg.Value}, nil
}

func (a *UpdateFieldAction) Execute(ctx context.Context, actx protocol.ActionContext) error {
	if actx.Lead.Fields == nil {
		actx.Lead.Fields = make(map[string]string)
	}

	actx.Lead.Fields[a.field] = a.value
	actx.Lead.UpdatedAt = time.Now().UTC()

	return a.store.SaveLead(ctx, actx.Lead)
}

// NewUpdateValueAction writes the lead's deal value. It is the update_field
// action fixed on the well-known "value" field.
func NewUpdateValueAction(store Store, cfg models.ActionConfig) (*UpdateFieldAction, error) {
	if cfg.Value == "" {
		return nil, errors.New("update_value requires value")
	}

	return &UpdateFieldAction{store: store, field: "value", value: cfg.Value}, nil
}

// AddNoteAction appends a note to the lead's timeline.
type AddNoteAction struct {
	store   Store
	content string
}

func NewAddNoteAction(store Store, cfg models.ActionConfig) (*AddNoteAction, error) {
	if cfg.Content == "" {
		return nil, errors.New("add_note requires content")
	}

	return &AddNoteAction{store: store, content: cfg.Content}, nil
}

func (a *AddNoteAction) Execute(ctx context.Context, actx protocol.ActionContext) error {
	actx.Lead.Notes = append(actx.Lead.Notes, models.LeadNote{
		ID:        uuid.New().String(),
		Content:   a.content,
		CreatedBy: actx.Execution.CreatedBy,
		CreatedAt: time.Now().UTC(),
	})
	actx.Lead.UpdatedAt = time.Now().UTC()

	return a.store.SaveLead(ctx, actx.Lead)
}

// ApplyTemplateAction marks a follow-up template as applied to the lead. The
// template's own scheduled messages are materialized by the follow-up
// subsystem, which watches this marker.
type ApplyTemplateAction struct {
	store      Store
	templateID string
}

func NewApplyTemplateAction(store Store, cfg models.ActionConfig) (*ApplyTemplateAction, error) {
	if cfg.TemplateID == "" {
		return nil, errors.New("apply_template requires template_id")
	}

	return &ApplyTemplateAction{store: store, templateID: cfg.TemplateID}, nil
}

func (a *ApplyTemplateAction) Execute(ctx context.Context, actx protocol.ActionContext) error {
	if actx.Lead.Fields == nil {
		actx.Lead.Fields = make(map[string]string)
	}

	actx.Lead.Fields["applied_template_id"] = a.templateID
	actx.Lead.Notes = append(actx.Lead.Notes, models.LeadNote{
		ID:        uuid.New().String(),
		Content:   fmt.Sprintf("Modelo de acompanhamento %s aplicado", a.templateID),
		CreatedAt: time.Now().UTC(),
	})
	actx.Lead.UpdatedAt = time.Now().UTC()

	return a.store.SaveLead(ctx, actx.Lead)
}

func AddTagSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionAddTag,
		Name:        "Adicionar etiqueta",
		Description: "Anexa uma etiqueta ao lead",
		Config: map[string]any{
			"type":     "object",
			"required": []string{"tag_id"},
			"properties": map[string]any{
				"tag_id": map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}

func RemoveTagSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionRemoveTag,
		Name:        "Remover etiqueta",
		Description: "Remove uma etiqueta do lead",
		Config: map[string]any{
			"type":     "object",
			"required": []string{"tag_id"},
			"properties": map[string]any{
				"tag_id": map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}

func MoveStageSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionMoveStage,
		Name:        "Mover etapa",
		Description: "Move o lead para outra etapa do funil",
		Config: map[string]any{
			"type":     "object",
			"required": []string{"stage_id"},
			"properties": map[string]any{
				"stage_id": map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}

func UpdateFieldSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionUpdateField,
		Name:        "Atualizar campo",
		Description: "Atualiza um campo do lead",
		Config: map[string]any{
			"type":     "object",
			"required": []string{"field"},
			"properties": map[string]any{
				"field": map[string]any{"type": "string", "minLength": 1},
				"value": map[string]any{"type": "string"},
			},
		},
	}
}

func UpdateValueSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionUpdateValue,
		Name:        "Atualizar valor",
		Description: "Atualiza o valor de negociação do lead",
		Config: map[string]any{
			"type":     "object",
			"required": []string{"value"},
			"properties": map[string]any{
				"value": map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}

func AddNoteSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionAddNote,
		Name:        "Adicionar nota",
		Description: "Registra uma nota na linha do tempo do lead",
		Config: map[string]any{
			"type":     "object",
			"required": []string{"content"},
			"properties": map[string]any{
				"content": map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}

func ApplyTemplateSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionApplyTemplate,
		Name:        "Aplicar modelo",
		Description: "Aplica um modelo de acompanhamento ao lead",
		Config: map[string]any{
			"type":     "object",
			"required": []string{"template_id"},
			"properties": map[string]any{
				"template_id": map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}
