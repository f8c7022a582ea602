package trigger

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/testutil"
)

func testMatcher() *Matcher {
	return NewMatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func triggerFlow(cfg models.TriggerConfig, overrides ...func(*models.Flow)) *models.Flow {
	overrides = append([]func(*models.Flow){testutil.WithGraph(
		[]*models.Node{
			testutil.TriggerNode("t", cfg),
			testutil.EndNode("e"),
		},
		[]*models.Edge{testutil.Edge("t", "e")},
	)}, overrides...)

	return testutil.CreateTestFlow(overrides...)
}

func leadEvent(eventType events.EventType, mutate ...func(*events.LeadEvent)) events.LeadEvent {
	event := events.LeadEvent{
		BaseEvent: events.BaseEvent{
			ID:             "event-1",
			Type:           eventType,
			Timestamp:      time.Now(),
			OrganizationID: "org-1",
		},
		LeadID: "lead-1",
	}

	for _, m := range mutate {
		m(&event)
	}

	return event
}

func TestMatchLeadCreated(t *testing.T) {
	matcher := testMatcher()
	flow := triggerFlow(models.TriggerConfig{Type: models.TriggerLeadCreated})

	matched := matcher.Match(leadEvent(events.LeadCreatedEvent), []*models.Flow{flow})

	assert.Equal(t, []*models.Flow{flow}, matched)
}

func TestMatchSkipsInactiveFlows(t *testing.T) {
	matcher := testMatcher()
	event := leadEvent(events.LeadCreatedEvent)

	draft := triggerFlow(models.TriggerConfig{Type: models.TriggerLeadCreated}, testutil.WithStatus(models.FlowStatusDraft))
	paused := triggerFlow(models.TriggerConfig{Type: models.TriggerLeadCreated}, testutil.WithStatus(models.FlowStatusPaused))

	assert.Empty(t, matcher.Match(event, []*models.Flow{draft, paused}))
}

func TestMatchTagTriggers(t *testing.T) {
	matcher := testMatcher()
	flow := triggerFlow(models.TriggerConfig{Type: models.TriggerTagAdded, TagID: "tag-vip"})

	matched := matcher.Match(leadEvent(events.LeadTagAddedEvent, func(e *events.LeadEvent) {
		e.TagID = "tag-vip"
	}), []*models.Flow{flow})
	assert.Len(t, matched, 1)

	// A different tag must not fire the flow.
	matched = matcher.Match(leadEvent(events.LeadTagAddedEvent, func(e *events.LeadEvent) {
		e.TagID = "tag-cold"
	}), []*models.Flow{flow})
	assert.Empty(t, matched)

	// Tag removal is a distinct trigger type.
	matched = matcher.Match(leadEvent(events.LeadTagRemovedEvent, func(e *events.LeadEvent) {
		e.TagID = "tag-vip"
	}), []*models.Flow{flow})
	assert.Empty(t, matched)
}

func TestMatchStageChanged(t *testing.T) {
	matcher := testMatcher()
	flow := triggerFlow(models.TriggerConfig{Type: models.TriggerStageChanged, StageID: "stage-won"})

	matched := matcher.Match(leadEvent(events.LeadStageChangedEvent, func(e *events.LeadEvent) {
		e.StageID = "stage-won"
	}), []*models.Flow{flow})
	assert.Len(t, matched, 1)

	matched = matcher.Match(leadEvent(events.LeadStageChangedEvent, func(e *events.LeadEvent) {
		e.StageID = "stage-lost"
	}), []*models.Flow{flow})
	assert.Empty(t, matched)
}

func TestMatchStageChangedAnyStage(t *testing.T) {
	matcher := testMatcher()

	// StageID left unset matches a move to any stage.
	anyStage := triggerFlow(models.TriggerConfig{Type: models.TriggerStageChanged})

	matched := matcher.Match(leadEvent(events.LeadStageChangedEvent, func(e *events.LeadEvent) {
		e.StageID = "stage-won"
	}), []*models.Flow{anyStage})
	assert.Len(t, matched, 1)

	assert.Empty(t, matcher.Match(leadEvent(events.LeadCreatedEvent), []*models.Flow{anyStage}))
}

func TestMatchFieldChanged(t *testing.T) {
	matcher := testMatcher()

	anyValue := triggerFlow(models.TriggerConfig{Type: models.TriggerFieldChanged, Field: "city"})
	exactValue := triggerFlow(models.TriggerConfig{Type: models.TriggerFieldChanged, Field: "city", Value: "Recife"})

	event := leadEvent(events.LeadFieldChangedEvent, func(e *events.LeadEvent) {
		e.Field = "city"
		e.Value = "São Paulo"
	})

	assert.Len(t, matcher.Match(event, []*models.Flow{anyValue}), 1)
	assert.Empty(t, matcher.Match(event, []*models.Flow{exactValue}))

	event.Value = "Recife"
	assert.Len(t, matcher.Match(event, []*models.Flow{exactValue}), 1)
}

func TestMatchDateTriggersIgnoreEvents(t *testing.T) {
	matcher := testMatcher()

	dated := triggerFlow(models.TriggerConfig{Type: models.TriggerDate, Date: "2026-08-31T00:00:00Z"})
	relative := triggerFlow(models.TriggerConfig{Type: models.TriggerRelativeDate, Field: "renewal_date", DaysBefore: 3})

	assert.Empty(t, matcher.Match(leadEvent(events.LeadCreatedEvent), []*models.Flow{dated, relative}))
}

func TestMatchDate(t *testing.T) {
	matcher := testMatcher()
	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)

	contact := testutil.CreateTestLead(testutil.WithFields(map[string]string{
		"renewal_date": "2026-09-03",
		"return_date":  "2026-08-31T14:00:00Z",
		"garbage":      "not a date",
	}))

	tests := []struct {
		name string
		cfg  models.TriggerConfig
		want bool
	}{
		{"date reached", models.TriggerConfig{Type: models.TriggerDate, Date: "2026-08-31T05:00:00Z"}, true},
		{"date later today not yet reached", models.TriggerConfig{Type: models.TriggerDate, Date: "2026-08-31T18:00:00Z"}, false},
		{"date yesterday evening", models.TriggerConfig{Type: models.TriggerDate, Date: "2026-08-30T18:00:00Z"}, true},
		{"date long past", models.TriggerConfig{Type: models.TriggerDate, Date: "2026-08-29T06:00:00Z"}, false},
		{"date future day", models.TriggerConfig{Type: models.TriggerDate, Date: "2026-09-01T00:00:00Z"}, false},
		{"date invalid", models.TriggerConfig{Type: models.TriggerDate, Date: "31/08/2026"}, false},
		{"relative 3 days before", models.TriggerConfig{Type: models.TriggerRelativeDate, Field: "renewal_date", DaysBefore: 3}, true},
		{"relative wrong offset", models.TriggerConfig{Type: models.TriggerRelativeDate, Field: "renewal_date", DaysBefore: 1}, false},
		{"relative missing field", models.TriggerConfig{Type: models.TriggerRelativeDate, Field: "contract_end", DaysBefore: 3}, false},
		{"relative unparseable field", models.TriggerConfig{Type: models.TriggerRelativeDate, Field: "garbage", DaysBefore: 3}, false},
		{"return date today", models.TriggerConfig{Type: models.TriggerLeadReturnDate}, true},
		{"event trigger never date-fires", models.TriggerConfig{Type: models.TriggerLeadCreated}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matcher.MatchDate(now, &tt.cfg, contact))
		})
	}
}

func TestDateKey(t *testing.T) {
	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)
	cfg := &models.TriggerConfig{Type: models.TriggerRelativeDate}

	key := DateKey(cfg, "lead-1", now)

	assert.Equal(t, "relative_date:lead-1:2026-08-31", key)
	// Same trigger, same lead, same day: the key is stable for dedupe.
	assert.Equal(t, key, DateKey(cfg, "lead-1", now.Add(10*time.Hour)))
}
