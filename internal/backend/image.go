package backend

import (
	"context"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/openpalette/quill/internal/models"
)

// ImageClient generates images through the OpenAI images API and wraps
// the result as a data-URI attachment.
type ImageClient struct {
	client *openai.Client
	logger *zap.Logger
}

func NewImageClient(apiKey, baseURL string, logger *zap.Logger) *ImageClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ImageClient{client: openai.NewClientWithConfig(cfg), logger: logger}
}

func (c *ImageClient) Generate(ctx context.Context, prompt string) (models.Attachment, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return models.Attachment{}, errors.Wrapf(ErrImageGeneration, "creating image: %v", err)
	}
	if len(resp.Data) == 0 {
		return models.Attachment{}, errors.Wrap(ErrImageGeneration, "no images returned")
	}

	c.logger.Debug("image generated", zap.Int("prompt_length", len(prompt)))

	return models.Attachment{
		Name:     "generated-image.png",
		URI:      "data:image/png;base64," + resp.Data[0].B64JSON,
		MIMEType: "image/png",
	}, nil
}
