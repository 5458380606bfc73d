// Package providers holds per-backend adapter configuration and the wire
// helpers shared by the OpenAI-compatible vision providers.
package providers

import "time"

// Transmission defaults shared by the HTTP providers. Each provider
// re-encodes the shared rendition down to its own payload cap before
// shipping it as a base64 data URL.
const (
	DefaultMaxImageDim    = 512
	DefaultJPEGQuality    = 80
	DefaultConnectTimeout = 30 * time.Second
	DefaultRequestTimeout = 120 * time.Second
)

// GeminiConfig configures the Google Gemini provider (primary).
type GeminiConfig struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxImageDim int           `json:"max_image_dim,omitempty" yaml:"max_image_dim,omitempty"`
}

// GroqConfig configures the Groq provider (fallback 1).
type GroqConfig struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxImageDim int           `json:"max_image_dim,omitempty" yaml:"max_image_dim,omitempty"`
}

// HuggingFaceConfig configures the HuggingFace inference router provider
// (fallback 2).
type HuggingFaceConfig struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxImageDim int           `json:"max_image_dim,omitempty" yaml:"max_image_dim,omitempty"`
}
