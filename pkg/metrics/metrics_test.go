package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWebhookAndHandler(t *testing.T) {
	m := NewMetrics("test")
	m.RecordWebhook("/voice/gather", "200", 120*time.Millisecond)
	m.RecordWebhook("/voice/gather", "200", 80*time.Millisecond)
	m.RecordTransition("INTENT", "FAQ")
	m.RecordTransition("FAQ", "FAQ")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("/voice/gather", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StateTransitions))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_webhooks_total")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordWebhook("/voice/incoming", "200", time.Millisecond)
		m.RecordJob("summarize_call", "completed")
		m.RecordLead("call_flow")
		m.RecordCallStart()
	})
}
