package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("hemascan", reg, zap.NewNop()), reg
}

func TestRecordScreening(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordScreening("gemini", "MILD")
	c.RecordScreening("gemini", "MILD")
	c.RecordScreening("none", "UNKNOWN")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.screeningsTotal.WithLabelValues("gemini", "MILD")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.screeningsTotal.WithLabelValues("none", "UNKNOWN")))
}

func TestRecordProviderAttempt(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordProviderAttempt("groq", "ok", 2*time.Second)
	c.RecordProviderAttempt("groq", "VISION_RATE_LIMITED", 100*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.providerAttempts.WithLabelValues("groq", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.providerAttempts.WithLabelValues("groq", "VISION_RATE_LIMITED")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["hemascan_provider_attempt_duration_seconds"])
}

func TestRecordHTTPRequest(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("POST", "/api/v1/scans", "200", 1500*time.Millisecond)
	c.RecordHTTPRequest("POST", "/api/v1/scans", "400", 2*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/v1/scans", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/v1/scans", "400")))
}

// Two collectors on separate registries must not collide.
func TestCollectorIsolatedRegistries(t *testing.T) {
	newTestCollector(t)
	newTestCollector(t)
}
