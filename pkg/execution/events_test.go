package execution

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/mocks"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/testutil"
)

func publishedTypes(bus *mocks.MockEventBus) []events.EventType {
	var types []events.EventType

	for _, call := range bus.Calls {
		if call.Method != "Publish" {
			continue
		}

		event := call.Arguments.Get(2).(eventbus.Event)
		types = append(types, event.GetType())
	}

	return types
}

func TestStartExecutionPublishesLifecycleEvents(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	bus := &mocks.MockEventBus{}
	bus.On("GenerateID").Return("evt-1")
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	engine.bus = bus

	flow := testutil.CreateTestFlow(testutil.WithGraph(
		[]*models.Node{
			testutil.TriggerNode("t", models.TriggerConfig{Type: models.TriggerLeadCreated}),
			testutil.ActionNode("a", models.ActionConfig{Type: models.ActionAddTag, TagID: "tag-novo"}),
			testutil.EndNode("e"),
		},
		[]*models.Edge{testutil.Edge("t", "a"), testutil.Edge("a", "e")},
	))
	contact := testutil.CreateTestLead()
	saveFixtures(t, store, flow, contact)

	execution, err := engine.StartExecution(t.Context(), flow, contact.ID, nil, "trigger")
	require.NoError(t, err)

	bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.MatchedBy(func(event eventbus.Event) bool {
		started, ok := event.(events.ExecutionStarted)

		return ok && started.FlowID == flow.ID && started.LeadID == contact.ID
	}))
	assert.Equal(t,
		[]events.EventType{events.ExecutionStartedEvent, events.ExecutionCompletedEvent},
		publishedTypes(bus),
	)
}

func TestWaitSuspensionPublishesWaitingEvent(t *testing.T) {
	engine, store, clock := newTestEngine(t)

	bus := &mocks.MockEventBus{}
	bus.On("GenerateID").Return("evt-1")
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	engine.bus = bus

	flow := testutil.CreateTestFlow(testutil.WithGraph(
		[]*models.Node{
			testutil.TriggerNode("t", models.TriggerConfig{Type: models.TriggerLeadCreated}),
			testutil.WaitNode("w", models.WaitConfig{Type: models.WaitDelay, DelayValue: 2, DelayUnit: models.DelayUnitHours}),
			testutil.EndNode("e"),
		},
		[]*models.Edge{testutil.Edge("t", "w"), testutil.Edge("w", "e")},
	))
	contact := testutil.CreateTestLead()
	saveFixtures(t, store, flow, contact)

	_, err := engine.StartExecution(t.Context(), flow, contact.ID, nil, "trigger")
	require.NoError(t, err)

	wantResume := clock.Now().Add(2 * time.Hour)
	bus.AssertCalled(t, "Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(event eventbus.Event) bool {
		waiting, ok := event.(events.ExecutionWaiting)

		return ok && waiting.NodeID == "w" && waiting.NextExecutionAt != nil && waiting.NextExecutionAt.Equal(wantResume)
	}))
}

func TestCancelPublishesCancelledEvent(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	bus := &mocks.MockEventBus{}
	bus.On("GenerateID").Return("evt-1")
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	engine.bus = bus

	execution := startWaitingExecution(t, engine, store)

	_, err := engine.Cancel(t.Context(), execution.ID)
	require.NoError(t, err)

	bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.MatchedBy(func(event eventbus.Event) bool {
		_, ok := event.(events.ExecutionCancelled)

		return ok
	}))
}

func TestPublishFailureDoesNotFailExecution(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	bus := &mocks.MockEventBus{}
	bus.On("GenerateID").Return("evt-1")
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	engine.bus = bus

	flow := testutil.CreateTestFlow(testutil.WithGraph(
		[]*models.Node{
			testutil.TriggerNode("t", models.TriggerConfig{Type: models.TriggerLeadCreated}),
			testutil.EndNode("e"),
		},
		[]*models.Edge{testutil.Edge("t", "e")},
	))
	contact := testutil.CreateTestLead()
	saveFixtures(t, store, flow, contact)

	execution, err := engine.StartExecution(t.Context(), flow, contact.ID, nil, "trigger")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}
