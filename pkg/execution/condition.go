package execution

import (
	"strconv"
	"strings"

	"github.com/leadflow/leadflow/pkg/models"
)

// EvaluateCondition applies a condition config to the lead's current record.
// The same semantics back condition nodes and until_field waits.
func EvaluateCondition(cfg *models.ConditionConfig, lead *models.Lead) bool {
	switch cfg.Kind() {
	case models.ConditionKindTag:
		return evaluateMembership(cfg.Operator, lead.HasTag(cfg.TagID))
	case models.ConditionKindStage:
		return evaluateMembership(cfg.Operator, lead.StageID == cfg.StageID)
	default:
		value, present := lead.Field(cfg.Field)

		return evaluateField(cfg.Operator, value, present, cfg.Value)
	}
}

// evaluateMembership maps operators onto a boolean membership test (tag
// attached, stage matches). Ordering operators have no meaning here and
// evaluate to false.
func evaluateMembership(op models.Operator, member bool) bool {
	switch op {
	case models.OperatorEquals, models.OperatorExists, models.OperatorContains:
		return member
	case models.OperatorNotEquals, models.OperatorNotExists, models.OperatorNotContains:
		return !member
	default:
		return false
	}
}

func evaluateField(op models.Operator, actual string, present bool, expected string) bool {
	switch op {
	case models.OperatorEquals:
		return actual == expected
	case models.OperatorNotEquals:
		return actual != expected
	case models.OperatorGreaterThan:
		a, b, ok := parseNumbers(actual, expected)

		return ok && a > b
	case models.OperatorLessThan:
		a, b, ok := parseNumbers(actual, expected)

		return ok && a < b
	case models.OperatorContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	case models.OperatorNotContains:
		return !strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	case models.OperatorExists:
		return present && actual != ""
	case models.OperatorNotExists:
		return !present || actual == ""
	default:
		return false
	}
}

// parseNumbers parses both sides for ordering comparison. Non-numeric values
// fail the comparison rather than erroring.
func parseNumbers(actual, expected string) (float64, float64, bool) {
	a, errA := strconv.ParseFloat(strings.TrimSpace(actual), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(expected), 64)

	return a, b, errA == nil && errB == nil
}
