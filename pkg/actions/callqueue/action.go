// Package callqueue provides the add_to_call_queue and remove_from_call_queue
// action handlers, backed by a Redis sorted set per organization.
package callqueue

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/leadflow/leadflow/pkg/registry"
)

// Priority buckets; lower score is dequeued first. Within a bucket leads
// keep insertion order via the enqueue timestamp.
var priorityScore = map[string]float64{
	"high":   1,
	"medium": 2,
	"low":    3,
}

func queueKey(organizationID string) string {
	return "leadflow:callqueue:" + organizationID
}

// AddAction enqueues the lead for a call.
type AddAction struct {
	client   redis.UniversalClient
	priority string
	notes    string
}

func NewAddAction(client redis.UniversalClient, cfg models.ActionConfig) (*AddAction, error) {
	priority := cfg.Priority
	if priority == "" {
		priority = "medium"
	}

	if _, ok := priorityScore[priority]; !ok {
		return nil, fmt.Errorf("unknown call queue priority: %q", priority)
	}

	return &AddAction{client: client, priority: priority, notes: cfg.Notes}, nil
}

func (a *AddAction) Execute(ctx context.Context, actx protocol.ActionContext) error {
	// Fractional part keeps FIFO order inside a priority bucket.
	score := priorityScore[a.priority] + float64(time.Now().UnixMilli())/1e16

	err := a.client.ZAdd(ctx, queueKey(actx.Lead.OrganizationID), redis.Z{
		Score:  score,
		Member: actx.Lead.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue lead %s for call: %w", actx.Lead.ID, err)
	}

	if a.notes != "" {
		err = a.client.HSet(ctx, queueKey(actx.Lead.OrganizationID)+":notes", actx.Lead.ID, a.notes).Err()
		if err != nil {
			return fmt.Errorf("failed to store call notes for lead %s: %w", actx.Lead.ID, err)
		}
	}

	return nil
}

// RemoveAction dequeues the lead. Removing an absent lead is a no-op.
type RemoveAction struct {
	client redis.UniversalClient
}

func NewRemoveAction(client redis.UniversalClient, _ models.ActionConfig) (*RemoveAction, error) {
	return &RemoveAction{client: client}, nil
}

func (a *RemoveAction) Execute(ctx context.Context, actx protocol.ActionContext) error {
	key := queueKey(actx.Lead.OrganizationID)

	if err := a.client.ZRem(ctx, key, actx.Lead.ID).Err(); err != nil {
		return fmt.Errorf("failed to dequeue lead %s: %w", actx.Lead.ID, err)
	}

	if err := a.client.HDel(ctx, key+":notes", actx.Lead.ID).Err(); err != nil {
		return fmt.Errorf("failed to drop call notes for lead %s: %w", actx.Lead.ID, err)
	}

	return nil
}

func AddSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionAddToCallQueue,
		Name:        "Adicionar à fila de ligações",
		Description: "Coloca o lead na fila de ligações da organização",
		Config: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"priority": map[string]any{"type": "string", "enum": []string{"high", "medium", "low", ""}},
				"notes":    map[string]any{"type": "string"},
			},
		},
	}
}

func RemoveSchema() *registry.ActionSchema {
	return &registry.ActionSchema{
		Type:        models.ActionRemoveFromCallQueue,
		Name:        "Remover da fila de ligações",
		Description: "Retira o lead da fila de ligações da organização",
		Config:      map[string]any{"type": "object"},
	}
}
