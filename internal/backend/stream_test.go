package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openpalette/quill/internal/models"
)

func sseHandler(t *testing.T, lines []string, capture *chatRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if capture != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
		}
	}
}

func collectChunks(t *testing.T, stream Stream) []Chunk {
	t.Helper()
	var chunks []Chunk
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
}

func TestStartStreamDeliversDeltasAndCitations(t *testing.T) {
	lines := []string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"lo","annotations":[{"type":"url_citation","url_citation":{"url":"https://a.example","title":"A"}}]}}]}`,
		``,
		`: keep-alive comment`,
		`data: {"choices":[{"delta":{}}]}`,
		``,
		`data: [DONE]`,
		``,
	}
	var captured chatRequest
	srv := httptest.NewServer(sseHandler(t, lines, &captured))
	defer srv.Close()

	client := NewStreamClient(srv.URL, "test-key", "test-model", zap.NewNop())
	stream, err := client.StartStream(context.Background(), "hi", []ChatMessage{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "earlier reply"},
	})
	require.NoError(t, err)
	defer stream.Close()

	chunks := collectChunks(t, stream)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Hel", chunks[0].TextDelta)
	assert.Equal(t, "lo", chunks[1].TextDelta)
	assert.Equal(t, []models.Citation{{URI: "https://a.example", Title: "A"}}, chunks[1].Citations)

	// History goes first; the current input is the final user message.
	assert.True(t, captured.Stream)
	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, ChatMessage{Role: "user", Content: "hi"}, captured.Messages[2])
}

func TestStartStreamNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewStreamClient(srv.URL, "test-key", "test-model", zap.NewNop())
	_, err := client.StartStream(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkOrAuth)
}

func TestStreamInlineErrorPayload(t *testing.T) {
	lines := []string{
		`data: {"choices":[{"delta":{"content":"partial"}}]}`,
		``,
		`data: {"error":{"message":"rate limited","type":"rate_limit"}}`,
		``,
	}
	srv := httptest.NewServer(sseHandler(t, lines, nil))
	defer srv.Close()

	client := NewStreamClient(srv.URL, "test-key", "test-model", zap.NewNop())
	stream, err := client.StartStream(context.Background(), "hi", nil)
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", chunk.TextDelta)

	_, err = stream.Recv()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkOrAuth)

	// A terminated stream stays terminated.
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStreamEndsWithoutDoneMarker(t *testing.T) {
	lines := []string{
		`data: {"choices":[{"delta":{"content":"all of it"}}]}`,
		``,
	}
	srv := httptest.NewServer(sseHandler(t, lines, nil))
	defer srv.Close()

	client := NewStreamClient(srv.URL, "test-key", "test-model", zap.NewNop())
	stream, err := client.StartStream(context.Background(), "hi", nil)
	require.NoError(t, err)
	defer stream.Close()

	chunks := collectChunks(t, stream)
	require.Len(t, chunks, 1)
	assert.Equal(t, "all of it", chunks[0].TextDelta)
}

func TestStreamSkipsMalformedChunks(t *testing.T) {
	lines := []string{
		`data: {this is not json`,
		``,
		`data: {"choices":[{"delta":{"content":"fine"}}]}`,
		``,
		`data: [DONE]`,
		``,
	}
	srv := httptest.NewServer(sseHandler(t, lines, nil))
	defer srv.Close()

	client := NewStreamClient(srv.URL, "test-key", "test-model", zap.NewNop())
	stream, err := client.StartStream(context.Background(), "hi", nil)
	require.NoError(t, err)
	defer stream.Close()

	chunks := collectChunks(t, stream)
	require.Len(t, chunks, 1)
	assert.Equal(t, "fine", chunks[0].TextDelta)
}
