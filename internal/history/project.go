package history

import (
	"github.com/openpalette/quill/internal/backend"
	"github.com/openpalette/quill/internal/models"
)

// NoCut projects the full message sequence.
const NoCut = -1

// Project returns the request-ready context: the prefix of messages up
// to the exclusive cut, filtered to non-empty text, mapped to role+text.
// Attachments are not projected; the backend context is text only.
func Project(messages []models.Message, cut int) []backend.ChatMessage {
	if cut < 0 || cut > len(messages) {
		cut = len(messages)
	}

	out := make([]backend.ChatMessage, 0, cut)
	for _, msg := range messages[:cut] {
		if msg.Text == "" {
			continue
		}
		out = append(out, backend.ChatMessage{
			Role:    roleName(msg.Author),
			Content: msg.Text,
		})
	}
	return out
}

// EditCut is the cut for editing the message at index: the edited
// message and everything after it is discarded and replaced.
func EditCut(index int) int {
	return index
}

// RegenerateCut is the cut for regenerating the model message at index:
// the stale reply and its preceding user message are discarded, since
// the user message's content is re-sent as the new turn's input.
func RegenerateCut(index int) int {
	return index - 1
}

func roleName(r models.Role) string {
	if r == models.RoleModel {
		return "assistant"
	}
	return "user"
}
