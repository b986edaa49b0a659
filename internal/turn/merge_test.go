package turn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openpalette/quill/internal/backend"
	"github.com/openpalette/quill/internal/models"
)

func TestMergeAppendsTextVerbatim(t *testing.T) {
	m := NewMerger()

	text, _ := m.Merge(backend.Chunk{TextDelta: "Hello"})
	assert.Equal(t, "Hello", text)

	text, _ = m.Merge(backend.Chunk{TextDelta: ",  world\n"})
	assert.Equal(t, "Hello,  world\n", text)

	// Empty deltas are no-ops on the text.
	text, _ = m.Merge(backend.Chunk{})
	assert.Equal(t, "Hello,  world\n", text)
}

func TestMergeDeduplicatesCitationsByURI(t *testing.T) {
	m := NewMerger()

	_, citations := m.Merge(backend.Chunk{Citations: []models.Citation{
		{URI: "https://a.example", Title: "First title"},
		{URI: "https://b.example", Title: "B"},
	}})
	assert.Len(t, citations, 2)

	// Same URI with a different title: the first-seen title wins.
	_, citations = m.Merge(backend.Chunk{Citations: []models.Citation{
		{URI: "https://a.example", Title: "Second title"},
	}})
	assert.Equal(t, []models.Citation{
		{URI: "https://a.example", Title: "First title"},
		{URI: "https://b.example", Title: "B"},
	}, citations)
}

func TestMergePreservesInsertionOrder(t *testing.T) {
	m := NewMerger()

	m.Merge(backend.Chunk{Citations: []models.Citation{{URI: "u3", Title: "3"}}})
	m.Merge(backend.Chunk{Citations: []models.Citation{{URI: "u1", Title: "1"}}})
	_, citations := m.Merge(backend.Chunk{Citations: []models.Citation{{URI: "u2", Title: "2"}}})

	assert.Equal(t, []string{"u3", "u1", "u2"}, []string{citations[0].URI, citations[1].URI, citations[2].URI})
}

func TestMergeSkipsEmptyURIs(t *testing.T) {
	m := NewMerger()
	_, citations := m.Merge(backend.Chunk{Citations: []models.Citation{{URI: "", Title: "no uri"}}})
	assert.Empty(t, citations)
}

func TestMergeReturnsIndependentSnapshots(t *testing.T) {
	m := NewMerger()
	_, first := m.Merge(backend.Chunk{Citations: []models.Citation{{URI: "u1", Title: "1"}}})
	_, second := m.Merge(backend.Chunk{Citations: []models.Citation{{URI: "u2", Title: "2"}}})

	first[0].Title = "mutated"
	assert.Equal(t, "1", second[0].Title)
}
