// Package huggingface implements the HuggingFace vision provider
// (fallback 2). It talks to the serverless inference router, which is
// OpenAI-compatible; the same wire shape as Groq with a different model
// behind it.
package huggingface

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
	defaultBaseURL = "https://router.huggingface.co/v1"
	defaultModel   = "Qwen/Qwen2.5-VL-72B-Instruct"

	requestTemperature = 0.3
	requestMaxTokens   = 1024
)

// HuggingFaceProvider implements llm.VisionProvider over the inference
// router.
type HuggingFaceProvider struct {
	cfg    providers.HuggingFaceConfig
	client *http.Client
	logger *zap.Logger
}

// NewHuggingFaceProvider creates a HuggingFace provider instance.
func NewHuggingFaceProvider(cfg providers.HuggingFaceConfig, logger *zap.Logger) *HuggingFaceProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &HuggingFaceProvider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout),
		logger: logger,
	}
}

func (p *HuggingFaceProvider) Name() string { return "huggingface" }

// Available reports whether an API key is configured. No network call.
func (p *HuggingFaceProvider) Available() bool { return strings.TrimSpace(p.cfg.APIKey) != "" }

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
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

// AnalyzeImages submits one chat-completions request through the router
// and returns the assistant's raw text reply.
func (p *HuggingFaceProvider) AnalyzeImages(ctx context.Context, images []image.Image, prompt string) (string, error) {
	parts := make([]openAIContentPart, 0, len(images)+1)
	parts = append(parts, openAIContentPart{Type: "text", Text: prompt})
	maxDim := providers.ChooseImageDim(p.cfg.MaxImageDim)
	for _, img := range images {
		b64, err := imaging.EncodeBase64JPEG(img, maxDim, providers.DefaultJPEGQuality)
		if err != nil {
			return "", &llm.Error{Code: llm.ErrInvalidRequest, Message: err.Error(), Provider: p.Name()}
		}
		parts = append(parts, openAIContentPart{
			Type:     "image_url",
			ImageURL: &openAIImageURL{URL: "data:image/jpeg;base64," + b64},
		})
	}

	body := openAIRequest{
		Model:       providers.ChooseModel(p.cfg.Model, defaultModel),
		Messages:    []openAIMessage{{Role: "user", Content: parts}},
		Temperature: requestTemperature,
		MaxTokens:   requestMaxTokens,
	}
	payload, _ := json.Marshal(body)

	endpoint := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		code := llm.ErrTransport
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			code = llm.ErrTimeout
		}
		return "", &llm.Error{Code: code, Message: err.Error(), Retryable: true, Provider: p.Name()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrMsg(resp.Body)
		return "", mapError(resp.StatusCode, msg, p.Name())
	}

	// The router occasionally serves a bare completion body; keep the
	// best-effort text rather than failing a 2xx reply.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llm.Error{Code: llm.ErrEnvelope, Message: err.Error(), HTTPStatus: resp.StatusCode, Provider: p.Name()}
	}

	var oaResp openAIResponse
	if err := json.Unmarshal(data, &oaResp); err == nil &&
		len(oaResp.Choices) > 0 && oaResp.Choices[0].Message.Content != "" {
		return oaResp.Choices[0].Message.Content, nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return "", &llm.Error{
			Code:       llm.ErrEnvelope,
			Message:    "empty response body",
			HTTPStatus: resp.StatusCode,
			Provider:   p.Name(),
		}
	}
	return string(data), nil
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
		if strings.Contains(strings.ToLower(msg), "quota") {
			return &llm.Error{Code: llm.ErrQuotaExceeded, Message: msg, HTTPStatus: status, Provider: provider}
		}
		return &llm.Error{Code: llm.ErrInvalidRequest, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return &llm.Error{Code: llm.ErrUpstream, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	default:
		return &llm.Error{Code: llm.ErrTransport, Message: msg, HTTPStatus: status, Retryable: status >= 500, Provider: provider}
	}
}
