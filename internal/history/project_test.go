package history

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openpalette/quill/internal/backend"
	"github.com/openpalette/quill/internal/models"
)

func TestProjectFiltersEmptyMessages(t *testing.T) {
	messages := []models.Message{
		{Author: models.RoleUser, Text: "hi"},
		{Author: models.RoleModel, Text: ""},
		{Author: models.RoleModel, Text: "ok"},
	}

	got := Project(messages, NoCut)
	assert.Equal(t, []backend.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "ok"},
	}, got)
}

func TestProjectAppliesExclusiveCut(t *testing.T) {
	messages := []models.Message{
		{Author: models.RoleUser, Text: "one"},
		{Author: models.RoleModel, Text: "two"},
		{Author: models.RoleUser, Text: "three"},
	}

	got := Project(messages, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, "two", got[1].Content)

	assert.Empty(t, Project(messages, 0))
}

func TestProjectClampsOutOfRangeCut(t *testing.T) {
	messages := []models.Message{{Author: models.RoleUser, Text: "only"}}
	assert.Len(t, Project(messages, 10), 1)
}

func TestProjectDropsAttachments(t *testing.T) {
	// The backend context is text only; attachments never reach it.
	messages := []models.Message{{
		Author:      models.RoleUser,
		Text:        "look at this",
		Attachments: []models.Attachment{{Name: "a.png", URI: "data:", MIMEType: "image/png"}},
	}}

	got := Project(messages, NoCut)
	assert.Equal(t, []backend.ChatMessage{{Role: "user", Content: "look at this"}}, got)
}

func TestCuts(t *testing.T) {
	assert.Equal(t, 3, EditCut(3))
	assert.Equal(t, 2, RegenerateCut(3))
}
