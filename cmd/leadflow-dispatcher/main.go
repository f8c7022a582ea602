// Package main provides the LeadFlow dispatcher: it consumes lead domain
// events and starts executions for the flows they trigger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/leadflow/leadflow/pkg/cmd"
	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/execution"
	"github.com/leadflow/leadflow/pkg/log"
	"github.com/leadflow/leadflow/pkg/otelhelper"
	"github.com/leadflow/leadflow/pkg/trigger"
)

func main() {
	command := &cli.Command{
		Name:                  "leadflow-dispatcher",
		Usage:                 "Start the LeadFlow trigger dispatcher service",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dispatcher-id",
				Aliases: []string{"id"},
				Usage:   "Custom dispatcher ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("DISPATCHER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for execution locks and the call queue",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	dispatcherID := command.String("dispatcher-id")
	if dispatcherID == "" {
		dispatcherID = fmt.Sprintf("dispatcher-%s", uuid.New().String()[:8])
	}

	logger := log.WithModule("leadflow-dispatcher").With("dispatcher_id", dispatcherID)
	logger.Info("Initializing LeadFlow dispatcher")

	if _, err := otelhelper.NewTracer(ctx, "leadflow-dispatcher"); err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", "error", err)
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}
	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	provider := command.String("event-bus")

	leadBus, err := cmd.NewEventBus(provider, "leadflow-dispatcher", events.LeadTopic, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := leadBus.Close(); err != nil {
			logger.Error("Failed to close lead event bus", "error", err)
		}
	}()

	executionBus, err := cmd.NewEventBus(provider, "leadflow-dispatcher", events.ExecutionTopic, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := executionBus.Close(); err != nil {
			logger.Error("Failed to close execution event bus", "error", err)
		}
	}()

	var locker execution.Locker = execution.NewMemoryLocker()

	var registry = cmd.NewRegistry(logger, persistence, nil)

	if redisURL := command.String("redis-url"); redisURL != "" {
		redisClient, err := cmd.NewRedisClient(redisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		locker = execution.NewRedisLocker(redisClient, logger)
		registry = cmd.NewRegistry(logger, persistence, redisClient)
	}

	engine := execution.NewEngine(persistence, registry, executionBus, locker, logger)
	matcher := trigger.NewMatcher(logger)
	dispatcher := trigger.NewDispatcher(persistence, matcher, engine, logger)

	if err := dispatcher.Register(leadBus); err != nil {
		return err
	}

	if err := leadBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to lead events: %w", err)
	}

	logger.Info("Dispatcher started, consuming lead events")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-stop:
	}

	logger.Info("Dispatcher shutting down")

	return nil
}
