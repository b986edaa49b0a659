package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/openpalette/quill/internal/models"
)

// StreamClient talks to an OpenAI-compatible chat completions endpoint
// and exposes the SSE response as a pull-based Stream. The SSE layer is
// parsed by hand so per-delta url_citation annotations can be surfaced.
type StreamClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewStreamClient(baseURL, apiKey, model string, logger *zap.Logger) *StreamClient {
	return &StreamClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatStreamResponse struct {
	Choices []struct {
		Delta *chatDelta `json:"delta,omitempty"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type chatDelta struct {
	Content     string       `json:"content,omitempty"`
	Annotations []annotation `json:"annotations,omitempty"`
}

type annotation struct {
	Type        string       `json:"type"`
	URLCitation *urlCitation `json:"url_citation,omitempty"`
}

type urlCitation struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// StartStream opens the completion stream. The history already carries
// the projected context; the current input is appended as the final
// user message.
func (c *StreamClient) StartStream(ctx context.Context, input string, history []ChatMessage) (Stream, error) {
	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: "user", Content: input})

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encoding chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("opening chat stream",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrNetworkOrAuth, "sending chat request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, errors.Wrapf(ErrNetworkOrAuth, "status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{body: resp.Body, scanner: scanner}, nil
}

// sseStream decodes "data:" lines into chunks. A "[DONE]" marker or end
// of body terminates the stream with io.EOF.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *sseStream) Recv() (Chunk, error) {
	if s.done {
		return Chunk{}, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			s.done = true
			return Chunk{}, io.EOF
		}

		var resp chatStreamResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue // skip malformed chunks
		}

		if resp.Error != nil {
			s.done = true
			return Chunk{}, errors.Wrap(ErrNetworkOrAuth, resp.Error.Message)
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Delta == nil {
			continue
		}

		chunk := deltaToChunk(resp.Choices[0].Delta)
		if chunk.TextDelta == "" && len(chunk.Citations) == 0 {
			continue
		}
		return chunk, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return Chunk{}, errors.Wrapf(ErrNetworkOrAuth, "reading stream: %v", err)
	}
	return Chunk{}, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

func deltaToChunk(delta *chatDelta) Chunk {
	chunk := Chunk{TextDelta: delta.Content}
	for _, a := range delta.Annotations {
		if a.Type != "url_citation" || a.URLCitation == nil {
			continue
		}
		chunk.Citations = append(chunk.Citations, models.Citation{
			URI:   a.URLCitation.URL,
			Title: a.URLCitation.Title,
		})
	}
	return chunk
}
