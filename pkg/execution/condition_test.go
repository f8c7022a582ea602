package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/testutil"
)

func TestEvaluateConditionFieldOperators(t *testing.T) {
	lead := testutil.CreateTestLead(testutil.WithFields(map[string]string{
		"company_size": "50",
		"city":         "São Paulo",
		"empty":        "",
	}))

	tests := []struct {
		name string
		cfg  models.ConditionConfig
		want bool
	}{
		{"equals match", models.ConditionConfig{Field: "city", Operator: models.OperatorEquals, Value: "São Paulo"}, true},
		{"equals mismatch", models.ConditionConfig{Field: "city", Operator: models.OperatorEquals, Value: "Recife"}, false},
		{"not_equals", models.ConditionConfig{Field: "city", Operator: models.OperatorNotEquals, Value: "Recife"}, true},
		{"greater_than numeric", models.ConditionConfig{Field: "company_size", Operator: models.OperatorGreaterThan, Value: "30"}, true},
		{"greater_than false", models.ConditionConfig{Field: "company_size", Operator: models.OperatorGreaterThan, Value: "100"}, false},
		{"less_than", models.ConditionConfig{Field: "company_size", Operator: models.OperatorLessThan, Value: "100"}, true},
		{"greater_than non-numeric", models.ConditionConfig{Field: "city", Operator: models.OperatorGreaterThan, Value: "10"}, false},
		{"contains case-insensitive", models.ConditionConfig{Field: "name", Operator: models.OperatorContains, Value: "silva"}, true},
		{"not_contains", models.ConditionConfig{Field: "name", Operator: models.OperatorNotContains, Value: "pereira"}, true},
		{"exists", models.ConditionConfig{Field: "company_size", Operator: models.OperatorExists}, true},
		{"exists empty value", models.ConditionConfig{Field: "empty", Operator: models.OperatorExists}, false},
		{"not_exists missing field", models.ConditionConfig{Field: "website", Operator: models.OperatorNotExists}, true},
		{"not_exists present field", models.ConditionConfig{Field: "company_size", Operator: models.OperatorNotExists}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCondition(&tt.cfg, lead))
		})
	}
}

func TestEvaluateConditionCoreFields(t *testing.T) {
	lead := testutil.CreateTestLead()

	assert.True(t, EvaluateCondition(&models.ConditionConfig{
		Field: "name", Operator: models.OperatorContains, Value: "carlos",
	}, lead))
	assert.True(t, EvaluateCondition(&models.ConditionConfig{
		Field: "phone", Operator: models.OperatorExists,
	}, lead))
}

func TestEvaluateConditionTag(t *testing.T) {
	lead := testutil.CreateTestLead(testutil.WithTags("tag-vip"))

	tests := []struct {
		name string
		cfg  models.ConditionConfig
		want bool
	}{
		{"exists attached", models.ConditionConfig{TagID: "tag-vip", Operator: models.OperatorExists}, true},
		{"equals attached", models.ConditionConfig{TagID: "tag-vip", Operator: models.OperatorEquals}, true},
		{"exists missing", models.ConditionConfig{TagID: "tag-cold", Operator: models.OperatorExists}, false},
		{"not_exists missing", models.ConditionConfig{TagID: "tag-cold", Operator: models.OperatorNotExists}, true},
		{"ordering operator on tag", models.ConditionConfig{TagID: "tag-vip", Operator: models.OperatorGreaterThan}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCondition(&tt.cfg, lead))
		})
	}
}

func TestEvaluateConditionStage(t *testing.T) {
	lead := testutil.CreateTestLead(testutil.WithStage("stage-negotiation"))

	assert.True(t, EvaluateCondition(&models.ConditionConfig{
		StageID: "stage-negotiation", Operator: models.OperatorEquals,
	}, lead))
	assert.False(t, EvaluateCondition(&models.ConditionConfig{
		StageID: "stage-won", Operator: models.OperatorEquals,
	}, lead))
	assert.True(t, EvaluateCondition(&models.ConditionConfig{
		StageID: "stage-won", Operator: models.OperatorNotEquals,
	}, lead))
}
