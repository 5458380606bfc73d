package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
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

func newTestProvider(baseURL string) *GeminiProvider {
	return NewGeminiProvider(providers.GeminiConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func replyWith(text string) geminiResponse {
	return geminiResponse{Candidates: []geminiCandidate{{
		Content: geminiContent{Role: "model", Parts: []geminiPart{{Text: text}}},
	}}}
}

func TestGeminiProviderBasics(t *testing.T) {
	p := NewGeminiProvider(providers.GeminiConfig{APIKey: "k"}, zap.NewNop())
	assert.Equal(t, "gemini", p.Name())
	assert.True(t, p.Available())

	assert.False(t, NewGeminiProvider(providers.GeminiConfig{}, zap.NewNop()).Available())
}

func TestAnalyzeImagesWireFormat(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/"+defaultModel+":generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(replyWith(`{"stage": "NORMAL"}`))
	}))
	defer server.Close()

	reply, err := newTestProvider(server.URL).AnalyzeImages(context.Background(), testImages(5), "screen these")
	require.NoError(t, err)
	assert.Equal(t, `{"stage": "NORMAL"}`, reply)

	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 6) // 5 images then the prompt

	for _, part := range parts[:5] {
		require.NotNil(t, part.InlineData)
		assert.Equal(t, "image/jpeg", part.InlineData.MimeType)
		assert.NotEmpty(t, part.InlineData.Data)
	}
	assert.Equal(t, "screen these", parts[5].Text)
	require.NotNil(t, captured.GenerationConfig)
	assert.Equal(t, 4096, captured.GenerationConfig.MaxOutputTokens)
}

func TestAnalyzeImagesMultiPartCandidate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := geminiResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{{Text: `{"stage": `}, {Text: `"MILD"}`}}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	reply, err := newTestProvider(server.URL).AnalyzeImages(context.Background(), testImages(1), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"stage": "MILD"}`, reply)
}

func TestAnalyzeImagesEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).AnalyzeImages(context.Background(), testImages(1), "p")
	require.Error(t, err)

	var perr *llm.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, llm.ErrEnvelope, perr.Code)
}

func TestAnalyzeImagesErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      llm.ErrorCode
		retryable bool
	}{
		{"bad key", 403, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`, llm.ErrUnauthorized, false},
		{"rate limited", 429, `{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`, llm.ErrRateLimited, true},
		{"quota", 400, `{"error":{"code":400,"message":"quota exceeded for this project","status":"FAILED_PRECONDITION"}}`, llm.ErrQuotaExceeded, false},
		{"bad request", 400, `{"error":{"code":400,"message":"invalid argument","status":"INVALID_ARGUMENT"}}`, llm.ErrInvalidRequest, false},
		{"unavailable", 503, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`, llm.ErrUpstream, true},
		{"plain body", 500, `internal`, llm.ErrTransport, true},
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
			assert.Equal(t, "gemini", perr.Provider)
		})
	}
}

func TestReadGeminiErrMsgIncludesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).AnalyzeImages(context.Background(), testImages(1), "p")
	require.Error(t, err)

	var perr *llm.Error
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Message, "Resource exhausted")
	assert.Contains(t, perr.Message, "RESOURCE_EXHAUSTED")
}

// Integration test against the real API; runs only with a key in the
// environment.
func TestGeminiIntegration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	p := NewGeminiProvider(providers.GeminiConfig{APIKey: apiKey, Timeout: 60 * time.Second}, zap.NewNop())
	reply, err := p.AnalyzeImages(context.Background(), testImages(1), "Describe this image in one sentence.")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}
