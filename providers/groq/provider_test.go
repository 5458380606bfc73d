package groq

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meditech/hemascan/llm"
	"github.com/meditech/hemascan/providers"
)

func testImages(n int) []image.Image {
	images := make([]image.Image, n)
	for i := range images {
		images[i] = image.NewRGBA(image.Rect(0, 0, 640, 480))
	}
	return images
}

func newTestProvider(baseURL string) *GroqProvider {
	return NewGroqProvider(providers.GroqConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestGroqProviderBasics(t *testing.T) {
	p := NewGroqProvider(providers.GroqConfig{APIKey: "k"}, zap.NewNop())
	assert.Equal(t, "groq", p.Name())
	assert.True(t, p.Available())

	assert.False(t, NewGroqProvider(providers.GroqConfig{}, zap.NewNop()).Available())
	assert.False(t, NewGroqProvider(providers.GroqConfig{APIKey: "  "}, zap.NewNop()).Available())
}

func TestAnalyzeImagesWireFormat(t *testing.T) {
	var captured openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := openAIResponse{Choices: []openAIChoice{{}}}
		resp.Choices[0].Message.Content = `{"stage": "NORMAL"}`
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	reply, err := newTestProvider(server.URL).AnalyzeImages(context.Background(), testImages(5), "screen these")
	require.NoError(t, err)
	assert.Equal(t, `{"stage": "NORMAL"}`, reply)

	assert.Equal(t, defaultModel, captured.Model)
	require.Len(t, captured.Messages, 1)
	msg := captured.Messages[0]
	assert.Equal(t, "user", msg.Role)
	require.Len(t, msg.Content, 6) // prompt + 5 images

	assert.Equal(t, "text", msg.Content[0].Type)
	assert.Equal(t, "screen these", msg.Content[0].Text)
	for _, part := range msg.Content[1:] {
		assert.Equal(t, "image_url", part.Type)
		require.NotNil(t, part.ImageURL)
		assert.True(t, strings.HasPrefix(part.ImageURL.URL, "data:image/jpeg;base64,"))
	}
}

func TestAnalyzeImagesErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      llm.ErrorCode
		retryable bool
		wantMsg   string
	}{
		{"unauthorized", 401, `{"error":{"message":"Invalid API Key"}}`, llm.ErrUnauthorized, false, "Invalid API Key"},
		{"forbidden", 403, `{"error":{"message":"forbidden"}}`, llm.ErrUnauthorized, false, "forbidden"},
		{"rate limited", 429, `{"error":{"message":"Rate limit reached"}}`, llm.ErrRateLimited, true, "Rate limit reached"},
		{"quota", 400, `{"error":{"message":"You have exceeded your quota"}}`, llm.ErrQuotaExceeded, false, "quota"},
		{"bad request", 400, `{"error":{"message":"unknown model"}}`, llm.ErrInvalidRequest, false, "unknown model"},
		{"gateway timeout", 504, `{"error":{"message":"upstream timeout"}}`, llm.ErrTimeout, true, "upstream timeout"},
		{"unavailable", 503, `{"error":{"message":"overloaded"}}`, llm.ErrUpstream, true, "overloaded"},
		{"plain text body", 500, `internal error`, llm.ErrTransport, true, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestProvider(server.URL).AnalyzeImages(context.Background(), testImages(1), "p")
			require.Error(t, err)

			var perr *llm.Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.code, perr.Code)
			assert.Equal(t, tt.status, perr.HTTPStatus)
			assert.Equal(t, tt.retryable, perr.Retryable)
			assert.Equal(t, "groq", perr.Provider)
			assert.Contains(t, perr.Message, tt.wantMsg)
		})
	}
}

func TestAnalyzeImagesEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).AnalyzeImages(context.Background(), testImages(1), "p")
	require.Error(t, err)

	var perr *llm.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, llm.ErrEnvelope, perr.Code)
}

func TestAnalyzeImagesContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only watches for client disconnect once the request
		// body has been consumed; without the drain, r.Context() is never
		// canceled and server.Close deadlocks.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestProvider(server.URL).AnalyzeImages(ctx, testImages(1), "p")
	require.Error(t, err)

	var perr *llm.Error
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Retryable)
}

// Integration test against the real API; runs only with a key in the
// environment.
func TestGroqIntegration(t *testing.T) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		t.Skip("GROQ_API_KEY not set")
	}

	p := NewGroqProvider(providers.GroqConfig{APIKey: apiKey, Timeout: 60 * time.Second}, zap.NewNop())
	reply, err := p.AnalyzeImages(context.Background(), testImages(1), "Describe this image in one sentence.")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}
