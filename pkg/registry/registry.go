// Package registry maps action types to their handler factories and config
// schemas.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// ActionSchema describes an action type to the editor and carries the JSON
// schema its config must satisfy.
type ActionSchema struct {
	Type        models.ActionType `json:"type"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Config      map[string]any    `json:"config_schema"`
}

type registeredAction struct {
	schema  *ActionSchema
	factory protocol.ActionFactory
}

type Registry struct {
	logger  *slog.Logger
	actions map[models.ActionType]registeredAction
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger.With("module", "registry"),
		actions: make(map[models.ActionType]registeredAction),
	}
}

func (r *Registry) RegisterAction(schema *ActionSchema, factory protocol.ActionFactory) {
	r.actions[schema.Type] = registeredAction{schema: schema, factory: factory}
}

// CreateAction validates the config against the registered schema and builds
// the handler. Unknown action types are an error; the validator should have
// caught them, but the engine must defend against flows edited after
// activation.
func (r *Registry) CreateAction(cfg models.ActionConfig) (protocol.Action, error) {
	registered, ok := r.actions[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("action type %q not registered", cfg.Type)
	}

	if err := r.validateConfig(registered.schema, cfg); err != nil {
		return nil, err
	}

	return registered.factory(cfg)
}

// ActionSchemas returns all registered schemas, for the editor's palette.
func (r *Registry) ActionSchemas() []*ActionSchema {
	schemas := make([]*ActionSchema, 0, len(r.actions))
	for _, registered := range r.actions {
		schemas = append(schemas, registered.schema)
	}

	return schemas
}

func (r *Registry) HealthCheck() (string, bool) {
	if len(r.actions) == 0 {
		return "no action handlers registered", false
	}

	return fmt.Sprintf("%d action handlers registered", len(r.actions)), true
}

func (r *Registry) validateConfig(schema *ActionSchema, cfg models.ActionConfig) error {
	if schema.Config == nil {
		return nil
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal action config: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema.Config),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to validate action config: %w", err)
	}

	if !result.Valid() {
		for _, desc := range result.Errors() {
			r.logger.Warn("Invalid action config", "action_type", cfg.Type, "error", desc.String())
		}

		return fmt.Errorf("action config for %q does not satisfy its schema", cfg.Type)
	}

	return nil
}
