package scheduler

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/pkg/execution"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/persistence/file"
	"github.com/leadflow/leadflow/pkg/registry"
	"github.com/leadflow/leadflow/pkg/testutil"
	"github.com/leadflow/leadflow/pkg/trigger"
)

func newTestScheduler(t *testing.T, now time.Time) (*Scheduler, *execution.Engine, persistence.Persistence) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := execution.NewEngine(store, registry.NewRegistry(logger), nil, execution.NewMemoryLocker(), logger)

	scheduler := NewScheduler(store, engine, trigger.NewMatcher(logger), logger)
	scheduler.now = func() time.Time { return now }

	return scheduler, engine, store
}

func TestSweepDueExecutions(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	scheduler, engine, store := newTestScheduler(t, now)

	flow := testutil.CreateTestFlow(testutil.WithGraph(
		[]*models.Node{
			testutil.TriggerNode("t", models.TriggerConfig{Type: models.TriggerLeadCreated}),
			testutil.WaitNode("w", models.WaitConfig{Type: models.WaitUntilDate, Date: "2020-01-01T08:00:00Z"}),
			testutil.EndNode("e"),
		},
		[]*models.Edge{testutil.Edge("t", "w"), testutil.Edge("w", "e")},
	))
	contact := testutil.CreateTestLead()
	require.NoError(t, store.SaveFlow(t.Context(), flow))
	require.NoError(t, store.SaveLead(t.Context(), contact))

	due, err := engine.StartExecution(t.Context(), flow, contact.ID, nil, "trigger")
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaiting, due.Status)

	require.NoError(t, scheduler.SweepDueExecutions(t.Context()))

	swept, err := store.ExecutionByID(t.Context(), due.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, swept.Status)
}

func TestSweepLeavesFutureWaitsAlone(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	scheduler, engine, store := newTestScheduler(t, now)

	flow := testutil.CreateTestFlow(testutil.WithGraph(
		[]*models.Node{
			testutil.TriggerNode("t", models.TriggerConfig{Type: models.TriggerLeadCreated}),
			testutil.WaitNode("w", models.WaitConfig{Type: models.WaitUntilDate, Date: "2099-01-01T08:00:00Z"}),
			testutil.EndNode("e"),
		},
		[]*models.Edge{testutil.Edge("t", "w"), testutil.Edge("w", "e")},
	))
	contact := testutil.CreateTestLead()
	require.NoError(t, store.SaveFlow(t.Context(), flow))
	require.NoError(t, store.SaveLead(t.Context(), contact))

	future, err := engine.StartExecution(t.Context(), flow, contact.ID, nil, "trigger")
	require.NoError(t, err)

	require.NoError(t, scheduler.SweepDueExecutions(t.Context()))

	fetched, err := store.ExecutionByID(t.Context(), future.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, fetched.Status)
}

func TestScanDateTriggersFiresOncePerDay(t *testing.T) {
	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)
	scheduler, _, store := newTestScheduler(t, now)

	flow := testutil.CreateTestFlow(testutil.WithGraph(
		[]*models.Node{
			testutil.TriggerNode("t", models.TriggerConfig{
				Type:       models.TriggerRelativeDate,
				Field:      "renewal_date",
				DaysBefore: 3,
			}),
			testutil.WaitNode("w", models.WaitConfig{Type: models.WaitDelay, DelayValue: 1, DelayUnit: models.DelayUnitDays}),
			testutil.EndNode("e"),
		},
		[]*models.Edge{testutil.Edge("t", "w"), testutil.Edge("w", "e")},
	))
	matching := testutil.CreateTestLead(testutil.WithFields(map[string]string{"renewal_date": "2026-09-03"}))
	other := testutil.CreateTestLead(testutil.WithFields(map[string]string{"renewal_date": "2026-12-01"}))
	other.ID = "lead-2"

	require.NoError(t, store.SaveFlow(t.Context(), flow))
	require.NoError(t, store.SaveLead(t.Context(), matching))
	require.NoError(t, store.SaveLead(t.Context(), other))

	require.NoError(t, scheduler.ScanDateTriggers(t.Context()))

	executions, err := store.ExecutionsByFlow(t.Context(), flow.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, matching.ID, executions[0].LeadID)
	assert.Equal(t, "scheduler", executions[0].CreatedBy)

	// A redundant scan the same day is deduped by the date key.
	require.NoError(t, scheduler.ScanDateTriggers(t.Context()))

	executions, err = store.ExecutionsByFlow(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestScanSkipsEventTriggerFlows(t *testing.T) {
	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)
	scheduler, _, store := newTestScheduler(t, now)

	flow := testutil.CreateTestFlow(testutil.WithGraph(
		[]*models.Node{
			testutil.TriggerNode("t", models.TriggerConfig{Type: models.TriggerLeadCreated}),
			testutil.EndNode("e"),
		},
		[]*models.Edge{testutil.Edge("t", "e")},
	))
	contact := testutil.CreateTestLead()
	require.NoError(t, store.SaveFlow(t.Context(), flow))
	require.NoError(t, store.SaveLead(t.Context(), contact))

	require.NoError(t, scheduler.ScanDateTriggers(t.Context()))

	executions, err := store.ExecutionsByFlow(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.Empty(t, executions)
}
