package providers

import (
	"net"
	"net/http"
	"time"
)

// ChooseModel selects the model identifier to use: the configured model
// when present, otherwise the provider-specific default.
func ChooseModel(configModel, defaultModel string) string {
	if configModel != "" {
		return configModel
	}
	return defaultModel
}

// ChooseImageDim selects the provider's transmission image cap: the
// configured cap when positive, otherwise the shared default.
func ChooseImageDim(configDim int) int {
	if configDim > 0 {
		return configDim
	}
	return DefaultMaxImageDim
}

// NewHTTPClient builds the shared transport for vision requests: a
// connect deadline separate from the overall request timeout, reflecting
// multi-image vision-model latency.
func NewHTTPClient(requestTimeout time.Duration) *http.Client {
	if requestTimeout == 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: DefaultConnectTimeout}).DialContext,
		},
	}
}
