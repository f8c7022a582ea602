package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/leadflow/leadflow/pkg/channels/gochannel"
	"github.com/leadflow/leadflow/pkg/channels/kafka"
	"github.com/leadflow/leadflow/pkg/eventbus"
)

// NewEventBus builds an event bus for one topic. Kafka in production,
// gochannel for local development; each topic gets its own bus instance.
func NewEventBus(provider, serviceName, topic string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		brokers, err := kafka.BrokersFromEnv()
		if err != nil {
			return nil, err
		}

		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName, brokers)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, topic), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create gochannel pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, topic), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
