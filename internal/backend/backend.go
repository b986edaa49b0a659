package backend

import (
	"context"
	"errors"

	"github.com/openpalette/quill/internal/models"
)

// Error taxonomy surfaced per turn. Configuration failures are gated at
// startup by internal/config and never reach these paths.
var (
	ErrNetworkOrAuth   = errors.New("text generation request failed")
	ErrImageGeneration = errors.New("image generation failed")
)

// NoModification is the sentinel returned by the modification classifier
// when the new message does not modify the prior image prompt.
const NoModification = "NO_MODIFICATION"

// ChatMessage is one entry of the projected conversation context.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one increment of a streamed text response. Either field may
// be empty; citations are candidates and may repeat across chunks.
type Chunk struct {
	TextDelta string
	Citations []models.Citation
}

// Stream is a finite, non-restartable sequence of response chunks.
// Recv returns io.EOF when the stream is exhausted.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// TextStreamer opens a streaming completion for a user input plus its
// projected history.
type TextStreamer interface {
	StartStream(ctx context.Context, input string, history []ChatMessage) (Stream, error)
}

// ImageGenerator produces a single image attachment for a prompt.
// Zero images returned is an ErrImageGeneration failure.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (models.Attachment, error)
}

// ModificationClassifier decides whether newMessage modifies the prompt
// behind a previously generated image. It returns the rewritten prompt,
// or NoModification. Internal failures degrade to NoModification; this
// call never surfaces an error.
type ModificationClassifier interface {
	ClassifyModification(ctx context.Context, originalPrompt, newMessage string) string
}
