package llm

import (
	"context"
	"image"
)

// ErrorCode classifies provider failures for fallback decisions and
// diagnostics. Every code maps onto one branch of the orchestrator's
// error taxonomy.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "VISION_INVALID_REQUEST" // malformed request parameters
	ErrUnauthorized   ErrorCode = "VISION_UNAUTHORIZED"    // missing or revoked API key
	ErrRateLimited    ErrorCode = "VISION_RATE_LIMITED"    // upstream throttling (429)
	ErrQuotaExceeded  ErrorCode = "VISION_QUOTA_EXCEEDED"  // free-tier quota exhausted
	ErrTransport      ErrorCode = "VISION_TRANSPORT"       // non-2xx status, connection failure
	ErrTimeout        ErrorCode = "VISION_TIMEOUT"         // connect or read deadline exceeded
	ErrEnvelope       ErrorCode = "VISION_ENVELOPE"        // 2xx response missing the content path
	ErrParse          ErrorCode = "VISION_PARSE"           // reply text contained no decodable JSON
	ErrUpstream       ErrorCode = "VISION_UPSTREAM"        // upstream 5xx or unclassified failure
)

// Error is the unified provider error. HTTPStatus is zero for failures
// that never reached the wire (e.g. parse failures).
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// VisionProvider is the capability every screening backend implements.
// Implementations wrap one third-party multimodal API and turn a batch of
// clinical photographs plus an instruction prompt into the backend's raw
// text reply. Parsing that reply is not the provider's concern.
type VisionProvider interface {
	// Name returns the provider's stable identifier, used in results,
	// diagnostics and metrics labels.
	Name() string

	// Available reports whether the provider can be attempted at all.
	// It is a pure capability check (credential present), never a
	// network call, and is consulted before every attempt.
	Available() bool

	// AnalyzeImages submits the images and prompt in a single request
	// and returns the assistant's raw text reply. Any transport, auth,
	// timeout or response-envelope problem fails with *Error. A 2xx
	// response with extractable content never fails, however odd the
	// content looks.
	AnalyzeImages(ctx context.Context, images []image.Image, prompt string) (string, error)
}
