package trigger

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/execution"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/persistence/file"
	"github.com/leadflow/leadflow/pkg/registry"
	"github.com/leadflow/leadflow/pkg/testutil"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, persistence.Persistence) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := execution.NewEngine(store, registry.NewRegistry(logger), nil, execution.NewMemoryLocker(), logger)

	return NewDispatcher(store, NewMatcher(logger), engine, logger), store
}

func waitingFlow() *models.Flow {
	return testutil.CreateTestFlow(testutil.WithGraph(
		[]*models.Node{
			testutil.TriggerNode("t", models.TriggerConfig{Type: models.TriggerTagAdded, TagID: "tag-vip"}),
			testutil.WaitNode("w", models.WaitConfig{Type: models.WaitDelay, DelayValue: 1, DelayUnit: models.DelayUnitDays}),
			testutil.EndNode("e"),
		},
		[]*models.Edge{testutil.Edge("t", "w"), testutil.Edge("w", "e")},
	))
}

func TestDispatchStartsExecution(t *testing.T) {
	dispatcher, store := newTestDispatcher(t)

	flow := waitingFlow()
	contact := testutil.CreateTestLead()
	require.NoError(t, store.SaveFlow(t.Context(), flow))
	require.NoError(t, store.SaveLead(t.Context(), contact))

	event := events.LeadEvent{
		BaseEvent: events.BaseEvent{Type: events.LeadTagAddedEvent, OrganizationID: "org-1"},
		LeadID:    contact.ID,
		TagID:     "tag-vip",
	}

	require.NoError(t, dispatcher.Dispatch(t.Context(), event))

	executions, err := store.ExecutionsByFlow(t.Context(), flow.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusWaiting, executions[0].Status)
	assert.Equal(t, event.Key(), executions[0].TriggerEventKey())
	assert.Equal(t, "trigger", executions[0].CreatedBy)
}

func TestDispatchDropsRedeliveredEvent(t *testing.T) {
	dispatcher, store := newTestDispatcher(t)

	flow := waitingFlow()
	contact := testutil.CreateTestLead()
	require.NoError(t, store.SaveFlow(t.Context(), flow))
	require.NoError(t, store.SaveLead(t.Context(), contact))

	event := events.LeadEvent{
		BaseEvent: events.BaseEvent{Type: events.LeadTagAddedEvent, OrganizationID: "org-1"},
		LeadID:    contact.ID,
		TagID:     "tag-vip",
	}

	require.NoError(t, dispatcher.Dispatch(t.Context(), event))
	require.NoError(t, dispatcher.Dispatch(t.Context(), event))

	executions, err := store.ExecutionsByFlow(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestDispatchSkipsOtherOrganizations(t *testing.T) {
	dispatcher, store := newTestDispatcher(t)

	flow := waitingFlow()
	contact := testutil.CreateTestLead()
	require.NoError(t, store.SaveFlow(t.Context(), flow))
	require.NoError(t, store.SaveLead(t.Context(), contact))

	event := events.LeadEvent{
		BaseEvent: events.BaseEvent{Type: events.LeadTagAddedEvent, OrganizationID: "org-2"},
		LeadID:    contact.ID,
		TagID:     "tag-vip",
	}

	require.NoError(t, dispatcher.Dispatch(t.Context(), event))

	executions, err := store.ExecutionsByFlow(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.Empty(t, executions)
}
