// Package gemini implements the Google Gemini vision provider (primary).
// Gemini speaks its own generateContent wire format: images travel as
// base64 inlineData parts next to the text part, authenticated with the
// x-goog-api-key header.
package gemini

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
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"

	// Gemini's generous payload limits let the shared 1024px rendition
	// through without a second resize pass.
	defaultMaxImageDim = 1024
)

// GeminiProvider implements llm.VisionProvider over the Gemini API.
type GeminiProvider struct {
	cfg    providers.GeminiConfig
	client *http.Client
	logger *zap.Logger
}

// NewGeminiProvider creates a Gemini provider instance.
func NewGeminiProvider(cfg providers.GeminiConfig, logger *zap.Logger) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxImageDim <= 0 {
		cfg.MaxImageDim = defaultMaxImageDim
	}
	return &GeminiProvider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout),
		logger: logger,
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Available reports whether an API key is configured. No network call.
func (p *GeminiProvider) Available() bool { return strings.TrimSpace(p.cfg.APIKey) != "" }

// Gemini wire types.
type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	ResponseID string            `json:"responseId,omitempty"`
}

type geminiErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// AnalyzeImages submits one generateContent request carrying every photo
// as an inlineData part plus the prompt, and returns the concatenated
// candidate text.
func (p *GeminiProvider) AnalyzeImages(ctx context.Context, images []image.Image, prompt string) (string, error) {
	parts := make([]geminiPart, 0, len(images)+1)
	for _, img := range images {
		b64, err := imaging.EncodeBase64JPEG(img, p.cfg.MaxImageDim, providers.DefaultJPEGQuality)
		if err != nil {
			return "", &llm.Error{Code: llm.ErrInvalidRequest, Message: err.Error(), Provider: p.Name()}
		}
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{MimeType: "image/jpeg", Data: b64},
		})
	}
	parts = append(parts, geminiPart{Text: prompt})

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     0.3,
			MaxOutputTokens: 4096,
		},
	}
	payload, _ := json.Marshal(body)

	model := providers.ChooseModel(p.cfg.Model, defaultModel)
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(p.cfg.BaseURL, "/"), model)

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	p.buildHeaders(httpReq)

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
		msg := readGeminiErrMsg(resp.Body)
		return "", mapGeminiError(resp.StatusCode, msg, p.Name())
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", &llm.Error{Code: llm.ErrEnvelope, Message: err.Error(), HTTPStatus: resp.StatusCode, Provider: p.Name()}
	}

	text := collectText(geminiResp)
	if text == "" {
		return "", &llm.Error{
			Code:       llm.ErrEnvelope,
			Message:    "empty response from gemini",
			HTTPStatus: resp.StatusCode,
			Provider:   p.Name(),
		}
	}
	return text, nil
}

func (p *GeminiProvider) buildHeaders(req *http.Request) {
	// Gemini authenticates with x-goog-api-key, not a bearer token.
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// collectText concatenates the text parts of the first candidate.
func collectText(gr geminiResponse) string {
	if len(gr.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func readGeminiErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp geminiErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
	}
	return string(data)
}

func mapGeminiError(status int, msg string, provider string) *llm.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &llm.Error{Code: llm.ErrUnauthorized, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusTooManyRequests:
		return &llm.Error{Code: llm.ErrRateLimited, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &llm.Error{Code: llm.ErrTimeout, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	case http.StatusBadRequest:
		if strings.Contains(msg, "quota") || strings.Contains(msg, "limit") {
			return &llm.Error{Code: llm.ErrQuotaExceeded, Message: msg, HTTPStatus: status, Provider: provider}
		}
		return &llm.Error{Code: llm.ErrInvalidRequest, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return &llm.Error{Code: llm.ErrUpstream, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	default:
		return &llm.Error{Code: llm.ErrTransport, Message: msg, HTTPStatus: status, Retryable: status >= 500, Provider: provider}
	}
}
