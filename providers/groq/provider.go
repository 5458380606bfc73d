// Package groq implements the Groq vision provider (fallback 1).
// Groq serves Llama 4 Scout through an OpenAI-compatible chat-completions
// API; images travel as base64 JPEG data URLs inside the user message.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/meditech/hemascan/internal/imaging"
	"github.com/meditech/hemascan/llm"
	"github.com/meditech/hemascan/providers"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "meta-llama/llama-4-scout-17b-16e-instruct"

	requestTemperature = 0.3
	requestMaxTokens   = 4096
)

// GroqProvider implements llm.VisionProvider over Groq's inference API.
type GroqProvider struct {
	cfg    providers.GroqConfig
	client *http.Client
	logger *zap.Logger
}

// NewGroqProvider creates a Groq provider instance.
func NewGroqProvider(cfg providers.GroqConfig, logger *zap.Logger) *GroqProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &GroqProvider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout),
		logger: logger,
	}
}

func (p *GroqProvider) Name() string { return "groq" }

// Available reports whether an API key is configured. No network call.
func (p *GroqProvider) Available() bool { return strings.TrimSpace(p.cfg.APIKey) != "" }

// OpenAI-compatible wire types with multimodal content parts.
type openAIContentPart struct {
	Type     string          `json:"type"` // "text" or "image_url"
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"` // data:image/jpeg;base64,<...>
}

type openAIMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float32         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
}

type openAIErrorResp struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// AnalyzeImages submits one chat-completions request carrying the prompt
// and every photo, and returns the assistant's raw text reply.
func (p *GroqProvider) AnalyzeImages(ctx context.Context, images []image.Image, prompt string) (string, error) {
	message, err := buildVisionMessage(images, prompt, providers.ChooseImageDim(p.cfg.MaxImageDim))
	if err != nil {
		return "", &llm.Error{Code: llm.ErrInvalidRequest, Message: err.Error(), Provider: p.Name()}
	}

	body := openAIRequest{
		Model:       providers.ChooseModel(p.cfg.Model, defaultModel),
		Messages:    []openAIMessage{message},
		Temperature: requestTemperature,
		MaxTokens:   requestMaxTokens,
	}
	payload, _ := json.Marshal(body)

	endpoint := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	buildHeaders(httpReq, p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", transportError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrMsg(resp.Body)
		return "", mapError(resp.StatusCode, msg, p.Name())
	}

	var oaResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return "", &llm.Error{Code: llm.ErrEnvelope, Message: err.Error(), HTTPStatus: resp.StatusCode, Provider: p.Name()}
	}

	if len(oaResp.Choices) == 0 || oaResp.Choices[0].Message.Content == "" {
		return "", &llm.Error{
			Code:       llm.ErrEnvelope,
			Message:    "response has no choices[0].message.content",
			HTTPStatus: resp.StatusCode,
			Provider:   p.Name(),
		}
	}
	return oaResp.Choices[0].Message.Content, nil
}

// buildVisionMessage composes the single user message: one text part
// followed by one image part per photo, each photo re-encoded to the
// provider's transmission cap.
func buildVisionMessage(images []image.Image, prompt string, maxDim int) (openAIMessage, error) {
	parts := make([]openAIContentPart, 0, len(images)+1)
	parts = append(parts, openAIContentPart{Type: "text", Text: prompt})
	for _, img := range images {
		b64, err := imaging.EncodeBase64JPEG(img, maxDim, providers.DefaultJPEGQuality)
		if err != nil {
			return openAIMessage{}, err
		}
		parts = append(parts, openAIContentPart{
			Type:     "image_url",
			ImageURL: &openAIImageURL{URL: "data:image/jpeg;base64," + b64},
		})
	}
	return openAIMessage{Role: "user", Content: parts}, nil
}

func buildHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp openAIErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return string(data)
}

func mapError(status int, msg string, provider string) *llm.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &llm.Error{Code: llm.ErrUnauthorized, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusTooManyRequests:
		return &llm.Error{Code: llm.ErrRateLimited, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &llm.Error{Code: llm.ErrTimeout, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(msg), "quota") ||
			strings.Contains(strings.ToLower(msg), "credit") {
			return &llm.Error{Code: llm.ErrQuotaExceeded, Message: msg, HTTPStatus: status, Provider: provider}
		}
		return &llm.Error{Code: llm.ErrInvalidRequest, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return &llm.Error{Code: llm.ErrUpstream, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	default:
		return &llm.Error{Code: llm.ErrTransport, Message: msg, HTTPStatus: status, Retryable: status >= 500, Provider: provider}
	}
}

func transportError(err error, provider string) *llm.Error {
	code := llm.ErrTransport
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		code = llm.ErrTimeout
	}
	return &llm.Error{Code: code, Message: err.Error(), Retryable: true, Provider: provider}
}
