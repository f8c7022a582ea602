package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/leadflow/leadflow/pkg/registry"
)

var ErrLeadWithoutPhone = errors.New("lead has no phone number")

// SendMessageAction sends a rendered text message to the execution's lead.
type SendMessageAction struct {
	client     *Client
	instanceID string
	message    string
}

func NewSendMessageAction(client *Client, cfg models.ActionConfig) (*SendMessageAction, error) {
	if cfg.InstanceID == "" {
		return nil, errors.New("send_whatsapp requires instance_id")
	}

	if cfg.Message == "" {
		return nil, errors.New("send_whatsapp requires message")
	}

	return &SendMessageAction{
		client:     client,
		instanceID: cfg.InstanceID,
		message:    cfg.Message,
	}, nil
}

func (a *SendMessageAction) Execute(ctx context.Context, actx protocol.ActionContext) error {
	if actx.Lead.Phone == "" {
		return fmt.Errorf("cannot send message to lead %s: %w", actx.Lead.ID, ErrLeadWithoutPhone)
	}

	text := Render(a.message, actx.Lead)

	actx.Logger.Info("Sending WhatsApp message", "instance_id", a.instanceID, "lead_id", actx.Lead.ID)

	return a.client.SendText(ctx, a.instanceID, actx.Lead.Phone, text)
}

// SendTemplateAction sends a pre-approved template to the execution's lead.
type SendTemplateAction struct {
	client     *Client
	instanceID string
	templateID string
}

func NewSendTemplateAction(client *Client, cfg models.ActionConfig) (*SendTemplateAction, error) {
	if cfg.InstanceID == "" || cfg.TemplateID == "" {
		return nil, errors.New("send_whatsapp_template requires instance_id and template_id")
	}

	return &SendTemplateAction{
		client:     client,
		instanceID: cfg.InstanceID,
		templateID: cfg.TemplateID,
	}, nil
}

func (a *SendTemplateAction) Execute(ctx context.Context, actx protocol.ActionContext) error {
	if actx.Lead.Phone == "" {
		return fmt.Errorf("cannot send template to lead %s: %w", actx.Lead.ID, ErrLeadWithoutPhone)
	}

	return a.client.SendTemplate(ctx, a.instanceID, actx.Lead.Phone, a.templateID)
}

// Render substitutes {{field}} placeholders in a message with the lead's
// field values. Unknown placeholders are left untouched.
func Render(message string, lead *models.Lead) string {
	result := message

	replace := func(name, value string) {
		result = strings.ReplaceAll(result, "{{"+name+"}}", value)
	}

	replace("name", lead.Name)
	replace("phone", lead.Phone)

	for name, value := range lead.Fields {
		replace(name, value)
	}

	return result
}

func SendMessageSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionSendWhatsApp,
		Name:        "Enviar WhatsApp",
		Description: "Envia uma mensagem de texto para o lead",
		Config: map[string]any{
			"type":     "object",
			"required": []string{"instance_id", "message"},
			"properties": map[string]any{
				"instance_id": map[string]any{"type": "string", "minLength": 1},
				"message":     map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}

func SendTemplateSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionSendWhatsAppTemplate,
		Name:        "Enviar modelo de WhatsApp",
		Description: "Envia um modelo pré-aprovado para o lead",
		Config: map[string]any{
			"type":     "object",
			"required": []string{"instance_id", "template_id"},
			"properties": map[string]any{
				"instance_id": map[string]any{"type": "string", "minLength": 1},
				"template_id": map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}
