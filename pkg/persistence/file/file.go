// Package file provides a file-based persistence implementation, used for
// local development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
)

// Persistence stores each entity as a JSON file under a per-kind directory.
// All operations are serialized; this implementation trades throughput for
// simplicity.
type Persistence struct {
	root string
	mu   sync.Mutex
}

func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	for _, dir := range []string{"flows", "executions", "leads"} {
		if err := os.MkdirAll(filepath.Join(cleanRoot, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	return &Persistence{root: cleanRoot}, nil
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Flows.

func (fp *Persistence) Flows(_ context.Context, organizationID string) ([]*models.Flow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	all, err := readAll[models.Flow](fp.dir("flows"))
	if err != nil {
		return nil, err
	}

	flows := make([]*models.Flow, 0)

	for _, flow := range all {
		if flow.OrganizationID == organizationID && flow.DeletedAt == nil {
			flows = append(flows, flow)
		}
	}

	sortByCreated(flows, func(f *models.Flow) time.Time { return f.CreatedAt })

	return flows, nil
}

func (fp *Persistence) FlowByID(_ context.Context, id string) (*models.Flow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	flow, err := readOne[models.Flow](fp.path("flows", id))
	if err != nil || flow == nil || flow.DeletedAt != nil {
		return nil, &persistence.FlowError{Op: "FlowByID", FlowID: id, Err: persistence.ErrFlowNotFound}
	}

	return flow, nil
}

func (fp *Persistence) ActiveFlows(_ context.Context) ([]*models.Flow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	all, err := readAll[models.Flow](fp.dir("flows"))
	if err != nil {
		return nil, err
	}

	flows := make([]*models.Flow, 0)

	for _, flow := range all {
		if flow.Status == models.FlowStatusActive && flow.DeletedAt == nil {
			flows = append(flows, flow)
		}
	}

	sortByCreated(flows, func(f *models.Flow) time.Time { return f.CreatedAt })

	return flows, nil
}

func (fp *Persistence) SaveFlow(_ context.Context, flow *models.Flow) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return writeOne(fp.path("flows", flow.ID), flow)
}

func (fp *Persistence) DeleteFlow(_ context.Context, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	flow, err := readOne[models.Flow](fp.path("flows", id))
	if err != nil || flow == nil || flow.DeletedAt != nil {
		return &persistence.FlowError{Op: "DeleteFlow", FlowID: id, Err: persistence.ErrFlowNotFound}
	}

	now := time.Now().UTC()
	flow.DeletedAt = &now

	return writeOne(fp.path("flows", id), flow)
}

// Executions.

func (fp *Persistence) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	execution, err := readOne[models.Execution](fp.path("executions", id))
	if err != nil || execution == nil {
		return nil, &persistence.ExecutionError{
			Op:          "ExecutionByID",
			ExecutionID: id,
			Err:         persistence.ErrExecutionNotFound,
		}
	}

	return execution, nil
}

func (fp *Persistence) ExecutionsByFlow(_ context.Context, flowID string) ([]*models.Execution, error) {
	return fp.filterExecutions(func(e *models.Execution) bool {
		return e.FlowID == flowID
	})
}

func (fp *Persistence) ExecutionsByStatus(_ context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	return fp.filterExecutions(func(e *models.Execution) bool {
		return e.Status == status
	})
}

func (fp *Persistence) DueExecutions(_ context.Context, now time.Time) ([]*models.Execution, error) {
	return fp.filterExecutions(func(e *models.Execution) bool {
		if e.Status != models.ExecutionStatusWaiting {
			return false
		}

		return e.NextExecutionAt == nil || !e.NextExecutionAt.After(now)
	})
}

func (fp *Persistence) LiveExecution(_ context.Context, flowID, leadID, eventKey string) (*models.Execution, error) {
	live, err := fp.filterExecutions(func(e *models.Execution) bool {
		return e.FlowID == flowID && e.LeadID == leadID &&
			e.TriggerEventKey() == eventKey && !e.IsTerminal()
	})
	if err != nil {
		return nil, err
	}

	if len(live) == 0 {
		return nil, nil
	}

	return live[0], nil
}

func (fp *Persistence) SaveExecution(_ context.Context, execution *models.Execution) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return writeOne(fp.path("executions", execution.ID), execution)
}

// Leads.

func (fp *Persistence) LeadByID(_ context.Context, id string) (*models.Lead, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	lead, err := readOne[models.Lead](fp.path("leads", id))
	if err != nil || lead == nil {
		return nil, fmt.Errorf("lead %s: %w", id, persistence.ErrLeadNotFound)
	}

	return lead, nil
}

func (fp *Persistence) Leads(_ context.Context, organizationID string) ([]*models.Lead, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	all, err := readAll[models.Lead](fp.dir("leads"))
	if err != nil {
		return nil, err
	}

	leads := make([]*models.Lead, 0)

	for _, lead := range all {
		if lead.OrganizationID == organizationID {
			leads = append(leads, lead)
		}
	}

	sortByCreated(leads, func(l *models.Lead) time.Time { return l.CreatedAt })

	return leads, nil
}

func (fp *Persistence) SaveLead(_ context.Context, lead *models.Lead) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return writeOne(fp.path("leads", lead.ID), lead)
}

func (fp *Persistence) filterExecutions(keep func(*models.Execution) bool) ([]*models.Execution, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	all, err := readAll[models.Execution](fp.dir("executions"))
	if err != nil {
		return nil, err
	}

	executions := make([]*models.Execution, 0)

	for _, execution := range all {
		if keep(execution) {
			executions = append(executions, execution)
		}
	}

	sortByCreated(executions, func(e *models.Execution) time.Time { return e.StartedAt })

	return executions, nil
}

func (fp *Persistence) dir(kind string) string {
	return filepath.Join(fp.root, kind)
}

func (fp *Persistence) path(kind, id string) string {
	return filepath.Join(fp.root, kind, id+".json")
}

func readOne[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return &entity, nil
}

func readAll[T any](dir string) ([]*T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	entities := make([]*T, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		entity, err := readOne[T](filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		if entity != nil {
			entities = append(entities, entity)
		}
	}

	return entities, nil
}

func writeOne(path string, entity any) error {
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func sortByCreated[T any](items []*T, createdAt func(*T) time.Time) {
	sort.Slice(items, func(i, j int) bool {
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}
