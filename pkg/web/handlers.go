package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/leadflow/leadflow/pkg/execution"
	"github.com/leadflow/leadflow/pkg/flow"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/registry"
)

type APIHandlers struct {
	flowService *flow.Service
	engine      *execution.Engine
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validator.Validate
}

func NewAPIHandlers(
	flowService *flow.Service,
	engine *execution.Engine,
	persistence persistence.Persistence,
	registry *registry.Registry,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowService: flowService,
		engine:      engine,
		persistence: persistence,
		registry:    registry,
		validator:   validator,
	}
}

// RegisterRoutes mounts every endpoint on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	flows := app.Group("/flows")
	flows.Get("/", h.GetFlows)
	flows.Post("/", h.CreateFlow)
	flows.Get("/:id", h.GetFlow)
	flows.Put("/:id", h.UpdateFlow)
	flows.Delete("/:id", h.DeleteFlow)
	flows.Post("/:id/validate", h.ValidateFlow)
	flows.Post("/:id/activate", h.ActivateFlow)
	flows.Post("/:id/pause", h.PauseFlow)
	flows.Post("/:id/duplicate", h.DuplicateFlow)
	flows.Post("/:id/test-run", h.TestRunFlow)
	flows.Get("/:id/executions", h.GetFlowExecutions)
	flows.Get("/:id/metrics", h.GetFlowMetrics)

	executions := app.Group("/executions")
	executions.Get("/:id", h.GetExecution)
	executions.Post("/:id/pause", h.PauseExecution)
	executions.Post("/:id/resume", h.ResumeExecution)
	executions.Post("/:id/cancel", h.CancelExecution)

	app.Get("/metrics/top-flows", h.GetTopFlows)
	app.Get("/actions/schemas", h.GetActionSchemas)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOK := h.registry.HealthCheck()

	repositoryCheck := "ok"
	repOK := true

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		repositoryCheck = err.Error()
		repOK = false
	}

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOK && repOK {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return badRequest(c, "organization_id query parameter is required")
	}

	flows, err := h.flowService.List(c.Context(), organizationID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"flows": flows})
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.flowService.Create(c.Context(), &models.Flow{
		Name:           req.Name,
		Description:    req.Description,
		OrganizationID: req.OrganizationID,
		CreatedBy:      req.CreatedBy,
		Nodes:          req.Nodes,
		Edges:          req.Edges,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	found, err := h.flowService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.flowService.Update(c.Context(), id, &models.Flow{
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	if err := h.flowService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ValidateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	result, err := h.flowService.Validate(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ActivateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	activated, err := h.flowService.Activate(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activated)
}

func (h *APIHandlers) PauseFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	paused, err := h.flowService.Pause(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(paused)
}

func (h *APIHandlers) DuplicateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req DuplicateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	copied, err := h.flowService.Duplicate(c.Context(), id, req.CreatedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(copied)
}

func (h *APIHandlers) TestRunFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req TestRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	started, err := h.flowService.TestRun(c.Context(), id, req.LeadID, req.CreatedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(started)
}

func (h *APIHandlers) GetFlowExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	executions, err := h.persistence.ExecutionsByFlow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if status := c.Query("status"); status != "" {
		filtered := executions[:0]

		for _, e := range executions {
			if e.Status == models.ExecutionStatus(status) {
				filtered = append(filtered, e)
			}
		}

		executions = filtered
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) GetFlowMetrics(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	metrics, err := h.engine.FlowMetrics(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(metrics)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	found, err := h.persistence.ExecutionByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) PauseExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	paused, err := h.engine.Pause(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(paused)
}

func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	resumed, err := h.engine.Resume(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(resumed)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	cancelled, err := h.engine.Cancel(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(cancelled)
}

// GetTopFlows aggregates execution counts across the organization's flows.
func (h *APIHandlers) GetTopFlows(c fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return badRequest(c, "organization_id query parameter is required")
	}

	limit := 10
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return badRequest(c, "limit must be a positive integer")
		}

		limit = parsed
	}

	flows, err := h.persistence.Flows(c.Context(), organizationID)
	if err != nil {
		return handleServiceError(c, err)
	}

	var all []*models.Execution

	for _, f := range flows {
		executions, err := h.persistence.ExecutionsByFlow(c.Context(), f.ID)
		if err != nil {
			return handleServiceError(c, err)
		}

		all = append(all, executions...)
	}

	return c.JSON(fiber.Map{"top_flows": execution.TopFlows(all, limit)})
}

func (h *APIHandlers) GetActionSchemas(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"actions": h.registry.ActionSchemas()})
}
