package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const classifyTimeout = 15 * time.Second

const modificationPrompt = `An image was previously generated from this prompt:
%s

The user now says:
%s

If the user is asking to modify or regenerate that image, respond with a single
rewritten image prompt that incorporates the requested change.
If the user is NOT asking to modify the image, respond with exactly:
NO_MODIFICATION

Respond with only the rewritten prompt or the marker, nothing else.`

// ModifierClient answers the "is this a follow-up image edit" question
// with a single-prompt completion.
type ModifierClient struct {
	llm    llms.LLM
	logger *zap.Logger
}

func NewModifierClient(baseURL, token, model string, logger *zap.Logger) (*ModifierClient, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &ModifierClient{llm: llm, logger: logger}, nil
}

// ClassifyModification returns the rewritten prompt, or NoModification.
// Failures are logged and degrade to NoModification so the caller can
// treat "assume no modification" as the safe default.
func (c *ModifierClient) ClassifyModification(ctx context.Context, originalPrompt, newMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	prompt := fmt.Sprintf(modificationPrompt, originalPrompt, newMessage)
	completion, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt)
	if err != nil {
		c.logger.Warn("modification classification failed, assuming no modification", zap.Error(err))
		return NoModification
	}

	rewritten := strings.TrimSpace(completion)
	if rewritten == "" || strings.EqualFold(rewritten, NoModification) {
		return NoModification
	}
	return rewritten
}
