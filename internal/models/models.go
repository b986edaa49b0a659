package models

import (
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Attachment is a piece of content associated with a message, referenced
// by URL or data URI.
type Attachment struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MIMEType string `json:"mime_type"`
}

// IsImage reports whether the attachment holds image content.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIMEType, "image/")
}

// Citation is a web source reference attached to a model response.
// Within one message citations are unique by URI.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// FileHandle holds the raw bytes of a user-supplied file. It exists only
// so regeneration can re-submit the original inputs; it is never
// serialized to durable storage or sent in the history projection.
type FileHandle struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Message is a single entry in a session's history.
//
// Streaming marks a model message still under construction. A terminal
// model message with empty Text is distinct from a streaming placeholder;
// consumers must check Streaming, not Text, to tell them apart.
type Message struct {
	ID          string       `json:"id"`
	Author      Role         `json:"author"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Citations   []Citation   `json:"citations,omitempty"`
	Streaming   bool         `json:"streaming,omitempty"`
	Files       []FileHandle `json:"-"`
}

// HasImageAttachment reports whether any attachment is an image.
func (m Message) HasImageAttachment() bool {
	for _, a := range m.Attachments {
		if a.IsImage() {
			return true
		}
	}
	return false
}

// Session is one persisted conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Pinned    bool      `json:"pinned"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CloneMessages returns a copy of the session's message slice so callers
// can build a replacement without aliasing the stored one.
func (s Session) CloneMessages() []Message {
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}
