package anemia

import (
	"context"
	"errors"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meditech/hemascan/internal/imaging"
	"github.com/meditech/hemascan/internal/metrics"
	"github.com/meditech/hemascan/llm"
)

// DefaultMaxImageDim is the shared preprocessing bound applied once per
// screening call, before any provider is attempted. HTTP providers apply
// their own smaller transmission cap on top of it.
const DefaultMaxImageDim = 1024

// ProviderNone marks a result produced without any backend.
const ProviderNone = "none"

// AttemptError records one failed provider attempt. Unavailable providers
// are skipped, not recorded.
type AttemptError struct {
	Provider string        `json:"provider"`
	Code     llm.ErrorCode `json:"code"`
	Message  string        `json:"message"`
}

// OrchestratorConfig bounds the orchestrator's input preprocessing.
type OrchestratorConfig struct {
	// MaxImageDim caps the longer side of every input image before the
	// provider cascade runs. Zero means DefaultMaxImageDim.
	MaxImageDim int `json:"max_image_dim" yaml:"max_image_dim"`
}

// Orchestrator cascades a screening request across vision providers in a
// fixed priority order and always produces exactly one Result. Total
// failure is represented as data (stage UNKNOWN, provider "none"), never
// as an error: callers can rely on getting a Result back.
//
// The orchestrator holds no mutable state between calls; a single value
// is safe for concurrent use from any number of callers.
type Orchestrator struct {
	providers []llm.VisionProvider
	cfg       OrchestratorConfig
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator over the given providers. The
// slice order is the priority order and is respected on every call; it is
// never rebalanced by prior outcomes. collector may be nil.
func NewOrchestrator(providers []llm.VisionProvider, cfg OrchestratorConfig, collector *metrics.Collector, logger *zap.Logger) *Orchestrator {
	if cfg.MaxImageDim <= 0 {
		cfg.MaxImageDim = DefaultMaxImageDim
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		providers: providers,
		cfg:       cfg,
		collector: collector,
		logger:    logger,
	}
}

// Providers returns the configured priority order.
func (o *Orchestrator) Providers() []llm.VisionProvider {
	out := make([]llm.VisionProvider, len(o.providers))
	copy(out, o.providers)
	return out
}

// Analyze screens the given clinical photographs, optionally enriched
// with patient context. Images are expected in body-site order (face,
// tongue, conjunctiva, palm, nails); the prompt and the shared resize
// happen once and are reused across provider attempts.
//
// Exactly one provider's output is ever used: the first success returns
// immediately and later providers are not contacted. Failures from
// earlier providers are kept as structured diagnostics and surface in the
// explanation only when every provider fails.
func (o *Orchestrator) Analyze(ctx context.Context, images []image.Image, details *PatientDetails) *Result {
	prompt := BuildPrompt(details)

	scaled := make([]image.Image, len(images))
	for i, img := range images {
		scaled[i] = imaging.ScaleDown(img, o.cfg.MaxImageDim)
	}

	var attempts []AttemptError
	canceled := false
	for _, provider := range o.providers {
		if ctx.Err() != nil {
			canceled = true
			o.logger.Warn("screening canceled before provider attempt",
				zap.String("provider", provider.Name()))
			break
		}
		if !provider.Available() {
			o.logger.Debug("skipping provider: not available (no API key)",
				zap.String("provider", provider.Name()))
			continue
		}

		o.logger.Debug("trying provider", zap.String("provider", provider.Name()))
		start := time.Now()
		raw, err := provider.AnalyzeImages(ctx, scaled, prompt)
		if err == nil {
			var result *Result
			result, err = ParseResponse(raw, provider.Name())
			if err == nil {
				o.recordAttempt(provider.Name(), "ok", time.Since(start))
				o.recordScreening(provider.Name(), result.Stage)
				return result
			}
		}

		attempt := toAttemptError(provider.Name(), err)
		attempts = append(attempts, attempt)
		o.recordAttempt(provider.Name(), string(attempt.Code), time.Since(start))
		o.logger.Warn("provider failed",
			zap.String("provider", provider.Name()),
			zap.String("code", string(attempt.Code)),
			zap.String("error", attempt.Message))
	}

	result := o.exhaustedResult(attempts, canceled)
	o.recordScreening(ProviderNone, result.Stage)
	o.logger.Error("all providers failed or were unavailable",
		zap.Int("failures", len(attempts)),
		zap.Bool("canceled", canceled))
	return result
}

// exhaustedResult synthesizes the terminal UNKNOWN result carrying the
// collected diagnostics.
func (o *Orchestrator) exhaustedResult(attempts []AttemptError, canceled bool) *Result {
	explanation := "Unable to analyze images. No AI providers were available."
	switch {
	case canceled && len(attempts) > 0:
		explanation = "Unable to analyze images. Screening was canceled.\nErrors: " +
			renderDiagnostics(attempts)
	case canceled:
		explanation = "Unable to analyze images. Screening was canceled."
	case len(attempts) > 0:
		explanation = "Unable to analyze images. All AI providers were unavailable.\nErrors: " +
			renderDiagnostics(attempts)
	}
	return &Result{
		ID:                uuid.NewString(),
		Stage:             StageUnknown,
		Explanation:       explanation,
		PerImageFindings:  map[string]string{},
		AyurvedicInsights: map[string]string{},
		ProviderUsed:      ProviderNone,
		Timestamp:         time.Now().UTC(),
	}
}

// renderDiagnostics joins attempt errors into the one human-readable
// string the result exposes; the structured form never leaves the
// orchestrator.
func renderDiagnostics(attempts []AttemptError) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = a.Provider + ": " + a.Message
	}
	return strings.Join(parts, "; ")
}

func toAttemptError(providerName string, err error) AttemptError {
	var perr *llm.Error
	if errors.As(err, &perr) {
		return AttemptError{Provider: providerName, Code: perr.Code, Message: perr.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return AttemptError{Provider: providerName, Code: llm.ErrTimeout, Message: err.Error()}
	}
	return AttemptError{Provider: providerName, Code: llm.ErrUpstream, Message: err.Error()}
}

func (o *Orchestrator) recordAttempt(provider, outcome string, elapsed time.Duration) {
	if o.collector != nil {
		o.collector.RecordProviderAttempt(provider, outcome, elapsed)
	}
}

func (o *Orchestrator) recordScreening(provider string, stage Stage) {
	if o.collector != nil {
		o.collector.RecordScreening(provider, string(stage))
	}
}
