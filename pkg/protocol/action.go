// Package protocol defines the interfaces and contracts for pluggable action
// handlers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/leadflow/leadflow/pkg/models"
)

// ActionContext carries the execution-scoped state an action handler may
// read. Handlers mutate leads through their own stores, never through the
// engine.
type ActionContext struct {
	Execution *models.Execution
	Lead      *models.Lead
	Logger    *slog.Logger
}

// Action performs one external side effect for an action node. Execute is
// potentially slow blocking I/O; the engine holds no locks on unrelated
// executions while it runs.
type Action interface {
	Execute(ctx context.Context, actx ActionContext) error
}

// ActionFactory builds an action handler from a node's action config. The
// config has already been validated against the action's JSON schema.
type ActionFactory func(cfg models.ActionConfig) (Action, error)
