package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/leadflow/leadflow/pkg/execution"
	"github.com/leadflow/leadflow/pkg/flow"
	"github.com/leadflow/leadflow/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service and persistence errors to RFC 7807
// problem responses. Activation rejections carry the full validation result
// so the editor can show every error at once.
func handleServiceError(c fiber.Ctx, err error) error {
	var activationErr *flow.ActivationError

	switch {
	case errors.As(err, &activationErr):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("flow_validation_failed").
			WithDetail(activationErr.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"type":     problem.Type,
			"title":    problem.Title,
			"status":   problem.Status,
			"detail":   problem.Detail,
			"instance": problem.Instance,
			"errors":   activationErr.Result.Errors,
			"warnings": activationErr.Result.Warnings,
		})

	case errors.Is(err, flow.ErrFlowActive):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("flow_active").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, execution.ErrInvalidTransition):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("invalid_transition").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, execution.ErrExecutionBusy):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("execution_busy").
			WithDetail("execution is being advanced, retry shortly")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsFlowNotFound(err):
		return notFound(c, "flow not found")

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution not found")

	case persistence.IsLeadNotFound(err):
		return notFound(c, "lead not found")

	default:
		return internalError(c, err)
	}
}
