package intent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/openpalette/quill/internal/backend"
	"github.com/openpalette/quill/internal/models"
)

// Kind routes a turn to the text or image backend.
type Kind int

const (
	TurnText Kind = iota
	TurnImage
)

// Decision is the classification result. Prompt is set for image turns.
type Decision struct {
	Kind   Kind
	Prompt string
}

// imageKeywords triggers the cheap keyword gate. Matching is
// substring-based and can false-positive on incidental occurrences;
// that is an accepted limitation of the first-pass heuristic.
var imageKeywords = []string{
	"draw",
	"sketch",
	"paint",
	"illustration",
	"generate an image",
	"generate a picture",
	"make an image",
	"make a picture",
	"create an image",
	"create a picture",
	"image of",
	"picture of",
	"photo of",
	"logo",
	"wallpaper",
}

// Classifier decides whether a turn is an image-generation request,
// escalating to a model-based decision only for the ambiguous
// follow-up-edit case.
type Classifier struct {
	modifier backend.ModificationClassifier
	logger   *zap.Logger
}

func New(modifier backend.ModificationClassifier, logger *zap.Logger) *Classifier {
	return &Classifier{modifier: modifier, logger: logger}
}

// Classify inspects the user input against the messages that precede
// this turn. Attachment-carrying turns are never image requests.
func (c *Classifier) Classify(ctx context.Context, input string, attachments []models.Attachment, prior []models.Message) Decision {
	if original, ok := followUpCandidate(prior, attachments); ok {
		rewritten := c.modifier.ClassifyModification(ctx, original, input)
		if rewritten != backend.NoModification {
			c.logger.Debug("classified as follow-up image edit")
			return Decision{Kind: TurnImage, Prompt: rewritten}
		}
	}

	if len(attachments) == 0 && matchesKeyword(input) {
		return Decision{Kind: TurnImage, Prompt: input}
	}

	return Decision{Kind: TurnText}
}

// followUpCandidate reports whether the turn looks like a modification
// of a previously generated image: the last model message carries an
// image attachment, the message before it is a user message, and the
// current turn has no attachments of its own. It returns the original
// prompt (that user message's text).
func followUpCandidate(prior []models.Message, attachments []models.Attachment) (string, bool) {
	if len(attachments) > 0 || len(prior) < 2 {
		return "", false
	}
	last := prior[len(prior)-1]
	beforeLast := prior[len(prior)-2]
	if last.Author != models.RoleModel || !last.HasImageAttachment() {
		return "", false
	}
	if beforeLast.Author != models.RoleUser {
		return "", false
	}
	return beforeLast.Text, true
}

func matchesKeyword(input string) bool {
	lowered := strings.ToLower(input)
	for _, kw := range imageKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
