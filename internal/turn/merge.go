package turn

import (
	"strings"

	"github.com/openpalette/quill/internal/backend"
	"github.com/openpalette/quill/internal/models"
)

// Merger folds streamed chunks into a single growing message. Text
// deltas are appended verbatim; citation candidates are deduplicated by
// URI with the first-seen title winning, in insertion order.
type Merger struct {
	text      strings.Builder
	seen      map[string]struct{}
	citations []models.Citation
}

func NewMerger() *Merger {
	return &Merger{seen: make(map[string]struct{})}
}

// Merge applies one chunk and returns the full accumulated text and
// citation list. Every call returns a complete replacement snapshot,
// never a differential patch, so consumers always observe a consistent
// whole-message state.
func (m *Merger) Merge(chunk backend.Chunk) (string, []models.Citation) {
	m.text.WriteString(chunk.TextDelta)

	for _, c := range chunk.Citations {
		if c.URI == "" {
			continue
		}
		if _, ok := m.seen[c.URI]; ok {
			continue
		}
		m.seen[c.URI] = struct{}{}
		m.citations = append(m.citations, c)
	}

	return m.text.String(), append([]models.Citation(nil), m.citations...)
}
