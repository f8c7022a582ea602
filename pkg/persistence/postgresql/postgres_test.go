package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/persistence/postgresql"
	"github.com/leadflow/leadflow/pkg/testutil"
)

var postgresContainer *postgres.PostgresContainer

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"executions", "leads", "flows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("leadflow_test"),
			postgres.WithUsername("leadflow"),
			postgres.WithPassword("leadflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDB(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDB(ctx, t, databaseURL)
		require.NoError(t, store.Close(ctx))
		cancel()
	})

	return store, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, db.Close())
	}()

	var exists bool

	for _, table := range []string{"flows", "executions", "leads", "schema_migrations"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	assert.NoError(t, store.HealthCheck(ctx))
}

func TestNewPersistence_SaveAndRetrieveFlow(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	flow := testutil.CreateTestFlow(testutil.WithGraph(
		[]*models.Node{
			testutil.TriggerNode("t", models.TriggerConfig{Type: models.TriggerTagAdded, TagID: "tag-vip"}),
			testutil.WaitNode("w", models.WaitConfig{Type: models.WaitDelay, DelayValue: 2, DelayUnit: models.DelayUnitHours}),
			testutil.EndNode("e"),
		},
		[]*models.Edge{testutil.Edge("t", "w"), testutil.Edge("w", "e")},
	))

	require.NoError(t, store.SaveFlow(ctx, flow))

	retrieved, err := store.FlowByID(ctx, flow.ID)
	require.NoError(t, err)

	assert.Equal(t, flow.Name, retrieved.Name)
	assert.Equal(t, flow.Status, retrieved.Status)
	require.Len(t, retrieved.Nodes, 3)
	require.NotNil(t, retrieved.Nodes[0].Trigger)
	assert.Equal(t, "tag-vip", retrieved.Nodes[0].Trigger.TagID)
	require.NotNil(t, retrieved.Nodes[1].Wait)
	assert.Equal(t, models.DelayUnitHours, retrieved.Nodes[1].Wait.DelayUnit)
	assert.Len(t, retrieved.Edges, 2)

	// Save again with changes: upsert, not duplicate.
	flow.Name = "Fluxo atualizado"
	require.NoError(t, store.SaveFlow(ctx, flow))

	retrieved, err = store.FlowByID(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fluxo atualizado", retrieved.Name)

	flows, err := store.Flows(ctx, flow.OrganizationID)
	require.NoError(t, err)
	assert.Len(t, flows, 1)

	_, err = store.FlowByID(ctx, uuid.NewString())
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestNewPersistence_DeleteFlowIsSoft(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	flow := testutil.CreateTestFlow()
	require.NoError(t, store.SaveFlow(ctx, flow))
	require.NoError(t, store.DeleteFlow(ctx, flow.ID))

	_, err := store.FlowByID(ctx, flow.ID)
	assert.True(t, persistence.IsFlowNotFound(err))

	active, err := store.ActiveFlows(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestNewPersistence_Executions(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	flow := testutil.CreateTestFlow()
	require.NoError(t, store.SaveFlow(ctx, flow))

	now := time.Now().UTC().Truncate(time.Microsecond)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := &models.Execution{
		ID:              uuid.NewString(),
		FlowID:          flow.ID,
		LeadID:          "lead-1",
		OrganizationID:  flow.OrganizationID,
		Status:          models.ExecutionStatusWaiting,
		CurrentNodeID:   "w",
		NextExecutionAt: &past,
		StartedAt:       past,
		ExecutionData:   map[string]any{"trigger_event_key": "lead.created:lead-1"},
	}
	polled := &models.Execution{
		ID:             uuid.NewString(),
		FlowID:         flow.ID,
		LeadID:         "lead-2",
		OrganizationID: flow.OrganizationID,
		Status:         models.ExecutionStatusWaiting,
		CurrentNodeID:  "w",
		StartedAt:      now,
	}
	notDue := &models.Execution{
		ID:              uuid.NewString(),
		FlowID:          flow.ID,
		LeadID:          "lead-3",
		OrganizationID:  flow.OrganizationID,
		Status:          models.ExecutionStatusWaiting,
		CurrentNodeID:   "w",
		NextExecutionAt: &future,
		StartedAt:       now,
	}

	for _, execution := range []*models.Execution{due, polled, notDue} {
		require.NoError(t, store.SaveExecution(ctx, execution))
	}

	dueNow, err := store.DueExecutions(ctx, now)
	require.NoError(t, err)
	require.Len(t, dueNow, 2)

	byFlow, err := store.ExecutionsByFlow(ctx, flow.ID)
	require.NoError(t, err)
	assert.Len(t, byFlow, 3)

	live, err := store.LiveExecution(ctx, flow.ID, "lead-1", "lead.created:lead-1")
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, due.ID, live.ID)

	// Terminal executions are not live.
	completedAt := now
	due.Status = models.ExecutionStatusCompleted
	due.CompletedAt = &completedAt
	require.NoError(t, store.SaveExecution(ctx, due))

	live, err = store.LiveExecution(ctx, flow.ID, "lead-1", "lead.created:lead-1")
	require.NoError(t, err)
	assert.Nil(t, live)

	retrieved, err := store.ExecutionByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, retrieved.Status)
	assert.Equal(t, "lead.created:lead-1", retrieved.TriggerEventKey())

	_, err = store.ExecutionByID(ctx, uuid.NewString())
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestNewPersistence_Leads(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	contact := testutil.CreateTestLead(
		testutil.WithTags("tag-vip"),
		testutil.WithFields(map[string]string{"renewal_date": "2026-09-03"}),
	)
	require.NoError(t, store.SaveLead(ctx, contact))

	retrieved, err := store.LeadByID(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, contact.Name, retrieved.Name)
	assert.True(t, retrieved.HasTag("tag-vip"))
	assert.Equal(t, "2026-09-03", retrieved.Fields["renewal_date"])

	leads, err := store.Leads(ctx, contact.OrganizationID)
	require.NoError(t, err)
	assert.Len(t, leads, 1)

	_, err = store.LeadByID(ctx, uuid.NewString())
	assert.True(t, persistence.IsLeadNotFound(err))
}
