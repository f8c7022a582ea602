// Package main provides the LeadFlow scheduler: it resumes due waits and
// fires date-based triggers.
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
	"github.com/leadflow/leadflow/pkg/scheduler"
	"github.com/leadflow/leadflow/pkg/trigger"
)

func main() {
	command := &cli.Command{
		Name:                  "leadflow-scheduler",
		Usage:                 "Start the LeadFlow scheduler service",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler-id",
				Aliases: []string{"id"},
				Usage:   "Custom scheduler ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULER_ID"),
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

	schedulerID := command.String("scheduler-id")
	if schedulerID == "" {
		schedulerID = fmt.Sprintf("scheduler-%s", uuid.New().String()[:8])
	}

	logger := log.WithModule("leadflow-scheduler").With("scheduler_id", schedulerID)
	logger.Info("Initializing LeadFlow scheduler")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}
	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	executionBus, err := cmd.NewEventBus(command.String("event-bus"), "leadflow-scheduler", events.ExecutionTopic, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := executionBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
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

	sched := scheduler.NewScheduler(persistence, engine, matcher, logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-stop:
	}

	sched.Stop()

	return nil
}
