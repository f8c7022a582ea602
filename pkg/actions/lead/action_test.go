package lead

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence/file"
	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/leadflow/leadflow/pkg/testutil"
)

func actionContext(t *testing.T, contact *models.Lead) (protocol.ActionContext, *file.Persistence) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.SaveLead(t.Context(), contact))

	return protocol.ActionContext{
		Execution: &models.Execution{ID: "exec-1", CreatedBy: "trigger"},
		Lead:      contact,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, store
}

func TestAddTagActionIsIdempotent(t *testing.T) {
	contact := testutil.CreateTestLead()
	actx, store := actionContext(t, contact)

	action, err := NewAddTagAction(store, models.ActionConfig{Type: models.ActionAddTag, TagID: "tag-vip"})
	require.NoError(t, err)

	require.NoError(t, action.Execute(t.Context(), actx))
	require.NoError(t, action.Execute(t.Context(), actx))

	saved, err := store.LeadByID(t.Context(), contact.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tag-vip"}, saved.TagIDs)
}

func TestAddTagActionRequiresTag(t *testing.T) {
	_, err := NewAddTagAction(nil, models.ActionConfig{Type: models.ActionAddTag})

	assert.Error(t, err)
}

func TestRemoveTagAction(t *testing.T) {
	contact := testutil.CreateTestLead(testutil.WithTags("tag-vip", "tag-cold"))
	actx, store := actionContext(t, contact)

	action, err := NewRemoveTagAction(store, models.ActionConfig{Type: models.ActionRemoveTag, TagID: "tag-cold"})
	require.NoError(t, err)

	require.NoError(t, action.Execute(t.Context(), actx))

	saved, err := store.LeadByID(t.Context(), contact.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tag-vip"}, saved.TagIDs)

	// Removing an absent tag is a no-op.
	require.NoError(t, action.Execute(t.Context(), actx))
}

func TestMoveStageAction(t *testing.T) {
	contact := testutil.CreateTestLead(testutil.WithStage("stage-new"))
	actx, store := actionContext(t, contact)

	action, err := NewMoveStageAction(store, models.ActionConfig{Type: models.ActionMoveStage, StageID: "stage-won"})
	require.NoError(t, err)

	require.NoError(t, action.Execute(t.Context(), actx))

	saved, err := store.LeadByID(t.Context(), contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "stage-won", saved.StageID)
}

func TestUpdateFieldAction(t *testing.T) {
	contact := testutil.CreateTestLead()
	contact.Fields = nil
	actx, store := actionContext(t, contact)

	action, err := NewUpdateFieldAction(store, models.ActionConfig{
		Type:  models.ActionUpdateField,
		Field: "city",
		Value: "Recife",
	})
	require.NoError(t, err)

	require.NoError(t, action.Execute(t.Context(), actx))

	saved, err := store.LeadByID(t.Context(), contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "Recife", saved.Fields["city"])
}

func TestUpdateValueActionWritesValueField(t *testing.T) {
	contact := testutil.CreateTestLead()
	actx, store := actionContext(t, contact)

	action, err := NewUpdateValueAction(store, models.ActionConfig{Type: models.ActionUpdateValue, Value: "1500"})
	require.NoError(t, err)

	require.NoError(t, action.Execute(t.Context(), actx))

	saved, err := store.LeadByID(t.Context(), contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "1500", saved.Fields["value"])
}

func TestAddNoteActionRecordsAuthor(t *testing.T) {
	contact := testutil.CreateTestLead()
	actx, store := actionContext(t, contact)

	action, err := NewAddNoteAction(store, models.ActionConfig{Type: models.ActionAddNote, Content: "Ligar amanhã"})
	require.NoError(t, err)

	require.NoError(t, action.Execute(t.Context(), actx))

	saved, err := store.LeadByID(t.Context(), contact.ID)
	require.NoError(t, err)
	require.Len(t, saved.Notes, 1)
	assert.Equal(t, "Ligar amanhã", saved.Notes[0].Content)
	assert.Equal(t, "trigger", saved.Notes[0].CreatedBy)
}

func TestApplyTemplateAction(t *testing.T) {
	contact := testutil.CreateTestLead()
	actx, store := actionContext(t, contact)

	action, err := NewApplyTemplateAction(store, models.ActionConfig{
		Type:       models.ActionApplyTemplate,
		TemplateID: "template-7",
	})
	require.NoError(t, err)

	require.NoError(t, action.Execute(t.Context(), actx))

	saved, err := store.LeadByID(t.Context(), contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "template-7", saved.Fields["applied_template_id"])
	assert.Len(t, saved.Notes, 1)
}
