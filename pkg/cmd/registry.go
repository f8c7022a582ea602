// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"log/slog"
	"os"

	redis "github.com/redis/go-redis/v9"

	"github.com/leadflow/leadflow/pkg/actions/callqueue"
	"github.com/leadflow/leadflow/pkg/actions/lead"
	"github.com/leadflow/leadflow/pkg/actions/reminder"
	"github.com/leadflow/leadflow/pkg/actions/whatsapp"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/leadflow/leadflow/pkg/registry"
)

// NewRegistry builds the action registry with every native action handler.
// The WhatsApp client reads its endpoint and key from the environment; lead
// mutations go through the persistence layer.
func NewRegistry(
	logger *slog.Logger,
	store persistence.Persistence,
	redisClient redis.UniversalClient,
) *registry.Registry {
	reg := registry.NewRegistry(logger)

	whatsappClient := whatsapp.NewClient(
		os.Getenv("WHATSAPP_API_URL"),
		os.Getenv("WHATSAPP_API_KEY"),
	)

	reg.RegisterAction(whatsapp.SendMessageSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return whatsapp.NewSendMessageAction(whatsappClient, cfg)
	})
	reg.RegisterAction(whatsapp.SendTemplateSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return whatsapp.NewSendTemplateAction(whatsappClient, cfg)
	})

	reg.RegisterAction(lead.AddTagSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return lead.NewAddTagAction(store, cfg)
	})
	reg.RegisterAction(lead.RemoveTagSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return lead.NewRemoveTagAction(store, cfg)
	})
	reg.RegisterAction(lead.MoveStageSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return lead.NewMoveStageAction(store, cfg)
	})
	reg.RegisterAction(lead.UpdateFieldSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return lead.NewUpdateFieldAction(store, cfg)
	})
	reg.RegisterAction(lead.UpdateValueSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return lead.NewUpdateValueAction(store, cfg)
	})
	reg.RegisterAction(lead.AddNoteSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return lead.NewAddNoteAction(store, cfg)
	})
	reg.RegisterAction(lead.ApplyTemplateSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return lead.NewApplyTemplateAction(store, cfg)
	})

	reg.RegisterAction(callqueue.AddSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return callqueue.NewAddAction(redisClient, cfg)
	})
	reg.RegisterAction(callqueue.RemoveSchema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return callqueue.NewRemoveAction(redisClient, cfg)
	})

	reg.RegisterAction(reminder.Schema(), func(cfg models.ActionConfig) (protocol.Action, error) {
		return reminder.NewAction(store, cfg)
	})

	return reg
}

// NewRedisClient builds the redis client shared by the call queue actions
// and the distributed execution locker.
func NewRedisClient(redisURL string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return redis.NewClient(opts), nil
}
