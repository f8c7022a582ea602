package execution

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
)

// Metrics summarizes a set of executions for the monitoring endpoints.
type Metrics struct {
	Total    int                            `json:"total"`
	ByStatus map[models.ExecutionStatus]int `json:"by_status"`

	// CompletionRate is completed over all terminal executions. Zero when
	// nothing has terminated yet.
	CompletionRate float64 `json:"completion_rate"`

	// AverageDuration covers completed executions only.
	AverageDuration time.Duration `json:"average_duration"`
}

// FlowActivity ranks a flow by how many executions it has started.
type FlowActivity struct {
	FlowID     string `json:"flow_id"`
	Executions int    `json:"executions"`
}

// Compute aggregates metrics over the given executions. Test runs are
// excluded; they would skew completion rates for flows that are still being
// edited.
func Compute(executions []*models.Execution) Metrics {
	metrics := Metrics{
		ByStatus: make(map[models.ExecutionStatus]int),
	}

	var (
		terminal      int
		completed     int
		totalDuration time.Duration
	)

	for _, execution := range executions {
		if execution.IsTest() {
			continue
		}

		metrics.Total++
		metrics.ByStatus[execution.Status]++

		if !execution.IsTerminal() {
			continue
		}

		terminal++

		if execution.Status == models.ExecutionStatusCompleted {
			completed++

			if execution.CompletedAt != nil {
				totalDuration += execution.CompletedAt.Sub(execution.StartedAt)
			}
		}
	}

	if terminal > 0 {
		metrics.CompletionRate = float64(completed) / float64(terminal)
	}

	if completed > 0 {
		metrics.AverageDuration = totalDuration / time.Duration(completed)
	}

	return metrics
}

// TopFlows returns the n flows with the most executions, busiest first. Ties
// break by flow id so the ranking is stable.
func TopFlows(executions []*models.Execution, n int) []FlowActivity {
	counts := make(map[string]int)

	for _, execution := range executions {
		if execution.IsTest() {
			continue
		}

		counts[execution.FlowID]++
	}

	ranking := make([]FlowActivity, 0, len(counts))
	for flowID, count := range counts {
		ranking = append(ranking, FlowActivity{FlowID: flowID, Executions: count})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Executions != ranking[j].Executions {
			return ranking[i].Executions > ranking[j].Executions
		}

		return ranking[i].FlowID < ranking[j].FlowID
	})

	if n > 0 && len(ranking) > n {
		ranking = ranking[:n]
	}

	return ranking
}

// FlowMetrics computes metrics for a single flow's executions.
func (e *Engine) FlowMetrics(ctx context.Context, flowID string) (Metrics, error) {
	executions, err := e.persistence.ExecutionsByFlow(ctx, flowID)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to fetch executions for flow %s: %w", flowID, err)
	}

	return Compute(executions), nil
}
