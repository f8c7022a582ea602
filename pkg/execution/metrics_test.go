package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/leadflow/leadflow/pkg/models"
)

func terminalExecution(flowID string, status models.ExecutionStatus, duration time.Duration) *models.Execution {
	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	completed := started.Add(duration)

	return &models.Execution{
		ID:          "exec-" + flowID + "-" + string(status),
		FlowID:      flowID,
		Status:      status,
		StartedAt:   started,
		CompletedAt: &completed,
	}
}

func TestComputeMetrics(t *testing.T) {
	executions := []*models.Execution{
		terminalExecution("flow-1", models.ExecutionStatusCompleted, 10*time.Minute),
		terminalExecution("flow-1", models.ExecutionStatusCompleted, 30*time.Minute),
		terminalExecution("flow-1", models.ExecutionStatusError, time.Minute),
		terminalExecution("flow-1", models.ExecutionStatusCancelled, time.Minute),
		{ID: "exec-live", FlowID: "flow-1", Status: models.ExecutionStatusWaiting},
	}

	metrics := Compute(executions)

	assert.Equal(t, 5, metrics.Total)
	assert.Equal(t, 2, metrics.ByStatus[models.ExecutionStatusCompleted])
	assert.Equal(t, 1, metrics.ByStatus[models.ExecutionStatusWaiting])
	assert.InDelta(t, 0.5, metrics.CompletionRate, 0.0001)
	assert.Equal(t, 20*time.Minute, metrics.AverageDuration)
}

func TestComputeMetricsExcludesTestRuns(t *testing.T) {
	executions := []*models.Execution{
		terminalExecution("flow-1", models.ExecutionStatusCompleted, time.Minute),
		{
			ID:            "exec-test",
			FlowID:        "flow-1",
			Status:        models.ExecutionStatusError,
			ExecutionData: map[string]any{"isTest": true},
		},
	}

	metrics := Compute(executions)

	assert.Equal(t, 1, metrics.Total)
	assert.InDelta(t, 1.0, metrics.CompletionRate, 0.0001)
}

func TestComputeMetricsEmpty(t *testing.T) {
	metrics := Compute(nil)

	assert.Zero(t, metrics.Total)
	assert.Zero(t, metrics.CompletionRate)
	assert.Zero(t, metrics.AverageDuration)
}

func TestTopFlows(t *testing.T) {
	executions := []*models.Execution{
		{ID: "1", FlowID: "flow-b", Status: models.ExecutionStatusCompleted},
		{ID: "2", FlowID: "flow-b", Status: models.ExecutionStatusCompleted},
		{ID: "3", FlowID: "flow-a", Status: models.ExecutionStatusRunning},
		{ID: "4", FlowID: "flow-c", Status: models.ExecutionStatusCompleted},
		{ID: "5", FlowID: "flow-c", Status: models.ExecutionStatusError},
		{ID: "6", FlowID: "flow-d", Status: models.ExecutionStatusCompleted, ExecutionData: map[string]any{"isTest": true}},
	}

	ranking := TopFlows(executions, 2)

	// flow-b and flow-c tie on two executions each; ties break by flow id.
	assert.Equal(t, []FlowActivity{
		{FlowID: "flow-b", Executions: 2},
		{FlowID: "flow-c", Executions: 2},
	}, ranking)
}

func TestTopFlowsUnlimited(t *testing.T) {
	executions := []*models.Execution{
		{ID: "1", FlowID: "flow-a", Status: models.ExecutionStatusCompleted},
		{ID: "2", FlowID: "flow-b", Status: models.ExecutionStatusCompleted},
	}

	assert.Len(t, TopFlows(executions, 0), 2)
}
