// Package hemascan provides a top-level convenience entry point for
// running anemia screenings without standing up the full service.
//
// Usage:
//
//	import "github.com/meditech/hemascan"
//
//	o := hemascan.New()                         // credentials from env
//	o := hemascan.New(hemascan.WithLogger(log)) // custom logger
//	result := o.Analyze(ctx, images, details)
//
// The returned orchestrator cascades Gemini, Groq and HuggingFace in
// that order, skipping providers without credentials.
package hemascan

import (
	"os"

	"go.uber.org/zap"

	"github.com/meditech/hemascan/anemia"
	"github.com/meditech/hemascan/llm"
	"github.com/meditech/hemascan/providers"
	"github.com/meditech/hemascan/providers/gemini"
	"github.com/meditech/hemascan/providers/groq"
	"github.com/meditech/hemascan/providers/huggingface"
)

type options struct {
	logger         *zap.Logger
	geminiKey      string
	groqKey        string
	huggingfaceKey string
	maxImageDim    int
}

// Option configures the orchestrator created by [New].
type Option func(*options)

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithGeminiKey overrides the GEMINI_API_KEY environment variable.
func WithGeminiKey(key string) Option {
	return func(o *options) { o.geminiKey = key }
}

// WithGroqKey overrides the GROQ_API_KEY environment variable.
func WithGroqKey(key string) Option {
	return func(o *options) { o.groqKey = key }
}

// WithHuggingFaceKey overrides the HF_TOKEN environment variable.
func WithHuggingFaceKey(key string) Option {
	return func(o *options) { o.huggingfaceKey = key }
}

// WithMaxImageDim overrides the shared preprocessing bound.
func WithMaxImageDim(dim int) Option {
	return func(o *options) { o.maxImageDim = dim }
}

// New creates a screening orchestrator with minimal configuration.
// Credentials default to the GEMINI_API_KEY, GROQ_API_KEY and HF_TOKEN
// environment variables; missing ones leave that provider unavailable.
func New(opts ...Option) *anemia.Orchestrator {
	o := options{
		logger:         zap.NewNop(),
		geminiKey:      os.Getenv("GEMINI_API_KEY"),
		groqKey:        os.Getenv("GROQ_API_KEY"),
		huggingfaceKey: os.Getenv("HF_TOKEN"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cascade := []llm.VisionProvider{
		gemini.NewGeminiProvider(providers.GeminiConfig{APIKey: o.geminiKey}, o.logger),
		groq.NewGroqProvider(providers.GroqConfig{APIKey: o.groqKey}, o.logger),
		huggingface.NewHuggingFaceProvider(providers.HuggingFaceConfig{APIKey: o.huggingfaceKey}, o.logger),
	}

	return anemia.NewOrchestrator(cascade,
		anemia.OrchestratorConfig{MaxImageDim: o.maxImageDim}, nil, o.logger)
}
