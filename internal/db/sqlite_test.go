package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpalette/quill/internal/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "quill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestLoadSessionsMissingRecord(t *testing.T) {
	database := newTestDB(t)

	sessions, err := database.LoadSessions()
	require.NoError(t, err)
	assert.Nil(t, sessions)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	database := newTestDB(t)

	in := []models.Session{{
		ID:     "s1",
		Title:  "round trip",
		Pinned: true,
		Messages: []models.Message{
			{
				ID:     "m1",
				Author: models.RoleUser,
				Text:   "hi",
				Attachments: []models.Attachment{
					{Name: "a.png", URI: "data:image/png;base64,AAAA", MIMEType: "image/png"},
				},
				// Raw file handles are deliberately excluded from persistence.
				Files: []models.FileHandle{{Name: "a.png", Data: []byte{1, 2, 3}}},
			},
			{
				ID:     "m2",
				Author: models.RoleModel,
				Text:   "hello",
				Citations: []models.Citation{
					{URI: "https://example.com", Title: "Example"},
				},
			},
		},
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}

	require.NoError(t, database.SaveSessions(in))

	out, err := database.LoadSessions()
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Nil(t, out[0].Messages[0].Files)

	// Identity on everything else.
	in[0].Messages[0].Files = nil
	assert.Equal(t, in, out)
}

func TestSaveSessionsOverwritesRecord(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.SaveSessions([]models.Session{{ID: "s1"}, {ID: "s2"}}))
	require.NoError(t, database.SaveSessions([]models.Session{{ID: "s2"}}))

	out, err := database.LoadSessions()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "s2", out[0].ID)
}

func TestLoadSessionsCorruptRecord(t *testing.T) {
	database := newTestDB(t)

	_, err := database.db.Exec(
		"INSERT INTO state (key, value) VALUES (?, ?)", sessionsKey, "{not json")
	require.NoError(t, err)

	_, err = database.LoadSessions()
	assert.Error(t, err)
}
