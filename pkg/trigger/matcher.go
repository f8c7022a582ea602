// Package trigger matches lead domain events and calendar dates against the
// trigger nodes of active flows, and starts executions for the matches.
package trigger

import (
	"log/slog"
	"time"

	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/models"
)

// Matcher decides which active flows a lead event or a date tick fires.
type Matcher struct {
	logger *slog.Logger
}

func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// Match returns the active flows whose trigger node fires for the event.
// Draft and paused flows never match; date-based triggers are handled by
// MatchDate, not by events.
func (m *Matcher) Match(event events.LeadEvent, flows []*models.Flow) []*models.Flow {
	var matched []*models.Flow

	for _, flow := range flows {
		if flow.Status != models.FlowStatusActive {
			continue
		}

		trigger := flow.TriggerNode()
		if trigger == nil || trigger.Trigger == nil {
			continue
		}

		if m.matches(event, trigger.Trigger) {
			m.logger.Debug("Flow trigger matched event",
				"flow_id", flow.ID,
				"trigger_type", trigger.Trigger.Type,
				"event_type", event.Type,
			)

			matched = append(matched, flow)
		}
	}

	m.logger.Info("Matched lead event against flows",
		"event_type", event.Type,
		"lead_id", event.LeadID,
		"flows_checked", len(flows),
		"matches", len(matched),
	)

	return matched
}

func (m *Matcher) matches(event events.LeadEvent, cfg *models.TriggerConfig) bool {
	switch cfg.Type {
	case models.TriggerLeadCreated:
		return event.Type == events.LeadCreatedEvent
	case models.TriggerTagAdded:
		return event.Type == events.LeadTagAddedEvent && event.TagID == cfg.TagID
	case models.TriggerTagRemoved:
		return event.Type == events.LeadTagRemovedEvent && event.TagID == cfg.TagID
	case models.TriggerStageChanged:
		// StageID unset means any stage change.
		if event.Type != events.LeadStageChangedEvent {
			return false
		}

		return cfg.StageID == "" || event.StageID == cfg.StageID
	case models.TriggerFieldChanged:
		if event.Type != events.LeadFieldChangedEvent || event.Field != cfg.Field {
			return false
		}

		return cfg.Value == "" || event.Value == cfg.Value
	case models.TriggerGoogleCalendarEvent:
		return event.Type == events.CalendarEventEvent
	case models.TriggerLastMessageSent:
		return event.Type == events.LastMessageSentEvent
	case models.TriggerLeadReturnDate:
		// Also fired by the daily date scan; the event form covers CRMs that
		// emit it directly.
		return event.Type == events.LeadReturnDateEvent
	default:
		return false
	}
}

// MatchDate reports whether a date-based trigger fires for the lead on the
// given day. Called by the scheduler's daily scan.
func (m *Matcher) MatchDate(now time.Time, cfg *models.TriggerConfig, lead *models.Lead) bool {
	switch cfg.Type {
	case models.TriggerDate:
		target, err := time.Parse(time.RFC3339, cfg.Date)
		if err != nil {
			m.logger.Warn("Invalid date trigger config", "date", cfg.Date, "error", err)

			return false
		}

		// One-shot: fires on the first daily scan at or after the configured
		// moment. Scans more than a day later stay quiet so a completed
		// execution is not restarted.
		return !now.Before(target) && now.Sub(target) < 24*time.Hour
	case models.TriggerRelativeDate:
		value, ok := lead.Field(cfg.Field)
		if !ok {
			return false
		}

		target, err := parseLeadDate(value)
		if err != nil {
			return false
		}

		return sameDay(now, target.AddDate(0, 0, -cfg.DaysBefore))
	case models.TriggerLeadReturnDate:
		value, ok := lead.Field("return_date")
		if !ok {
			return false
		}

		target, err := parseLeadDate(value)
		if err != nil {
			return false
		}

		return sameDay(now, target)
	default:
		return false
	}
}

// DateKey returns the dedupe identity of a date-trigger firing: the same
// trigger fires at most once per lead per day.
func DateKey(cfg *models.TriggerConfig, leadID string, now time.Time) string {
	return string(cfg.Type) + ":" + leadID + ":" + now.Format("2006-01-02")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()

	return ay == by && am == bm && ad == bd
}

// parseLeadDate accepts the formats leads carry in custom date fields.
func parseLeadDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	return time.Parse("2006-01-02", value)
}
