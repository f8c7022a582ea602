// Package scheduler drives time-based progress: resuming due waits and
// firing date-based triggers.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leadflow/leadflow/pkg/execution"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/trigger"
)

const (
	// sweepSpec controls how often waiting executions are re-checked. It
	// bounds the resume latency of delay and until_date waits and the
	// polling interval of until_field waits.
	sweepSpec = "@every 1m"

	// dateScanSpec fires once a day, early morning in the org's market.
	dateScanSpec = "0 6 * * *"
)

// Scheduler owns the two periodic jobs of the engine: the wait sweep and the
// daily date-trigger scan. Safe to run on multiple instances when the engine
// uses a distributed locker.
type Scheduler struct {
	persistence persistence.Persistence
	engine      *execution.Engine
	matcher     *trigger.Matcher
	logger      *slog.Logger
	cron        *cron.Cron
	now         func() time.Time
}

func NewScheduler(
	persistence persistence.Persistence,
	engine *execution.Engine,
	matcher *trigger.Matcher,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		persistence: persistence,
		engine:      engine,
		matcher:     matcher,
		logger:      logger.With("module", "scheduler"),
		cron:        cron.New(),
		now:         time.Now,
	}
}

// Start registers the jobs and starts the cron loop. Jobs run with the given
// context until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(sweepSpec, func() {
		if err := s.SweepDueExecutions(ctx); err != nil {
			s.logger.Error("Wait sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule wait sweep: %w", err)
	}

	if _, err := s.cron.AddFunc(dateScanSpec, func() {
		if err := s.ScanDateTriggers(ctx); err != nil {
			s.logger.Error("Date trigger scan failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule date trigger scan: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "sweep", sweepSpec, "date_scan", dateScanSpec)

	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Scheduler stopped")
}

// SweepDueExecutions advances every waiting execution whose resume time has
// arrived, plus until_field waits, which are re-checked on every sweep.
func (s *Scheduler) SweepDueExecutions(ctx context.Context) error {
	due, err := s.persistence.DueExecutions(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to fetch due executions: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	s.logger.Debug("Sweeping due executions", "count", len(due))

	for _, execution := range due {
		if err := s.engine.Advance(ctx, execution.ID); err != nil {
			s.logger.Error("Failed to advance due execution",
				"execution_id", execution.ID,
				"error", err,
			)
		}
	}

	return nil
}

// ScanDateTriggers fires date_trigger, relative_date and lead_return_date
// triggers for every lead they match today. Each trigger fires at most once
// per lead per day; redundant scans are deduped by the date key.
func (s *Scheduler) ScanDateTriggers(ctx context.Context) error {
	flows, err := s.persistence.ActiveFlows(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch active flows: %w", err)
	}

	now := s.now()
	started := 0

	for _, flow := range flows {
		node := flow.TriggerNode()
		if node == nil || node.Trigger == nil || !isDateTrigger(node.Trigger.Type) {
			continue
		}

		leads, err := s.persistence.Leads(ctx, flow.OrganizationID)
		if err != nil {
			return fmt.Errorf("failed to fetch leads for organization %s: %w", flow.OrganizationID, err)
		}

		for _, lead := range leads {
			if !s.matcher.MatchDate(now, node.Trigger, lead) {
				continue
			}

			eventKey := trigger.DateKey(node.Trigger, lead.ID, now)

			live, err := s.persistence.LiveExecution(ctx, flow.ID, lead.ID, eventKey)
			if err != nil {
				return fmt.Errorf("failed to check live executions for flow %s: %w", flow.ID, err)
			}

			if live != nil {
				continue
			}

			data := map[string]any{
				"trigger_event_key": eventKey,
				"trigger_type":      string(node.Trigger.Type),
			}

			if _, err := s.engine.StartExecution(ctx, flow, lead.ID, data, "scheduler"); err != nil {
				s.logger.Error("Failed to start date-triggered execution",
					"flow_id", flow.ID,
					"lead_id", lead.ID,
					"error", err,
				)

				continue
			}

			started++
		}
	}

	s.logger.Info("Date trigger scan finished", "flows", len(flows), "executions_started", started)

	return nil
}

func isDateTrigger(t models.TriggerType) bool {
	switch t {
	case models.TriggerDate, models.TriggerRelativeDate, models.TriggerLeadReturnDate:
		return true
	default:
		return false
	}
}
