package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/courier/pkg/metrics"
)

func TestRecordChannelSend(t *testing.T) {
	before := testutil.ToFloat64(metrics.ChannelSends.WithLabelValues("email", "success"))
	metrics.RecordChannelSend("email", true, 20*time.Millisecond)
	after := testutil.ToFloat64(metrics.ChannelSends.WithLabelValues("email", "success"))
	assert.Equal(t, before+1, after)
}

func TestAddQueueEntries_IgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(metrics.QueueEntries.WithLabelValues("retried"))
	metrics.AddQueueEntries("retried", 0)
	metrics.AddQueueEntries("retried", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.QueueEntries.WithLabelValues("retried")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	metrics.IncWebhookEvent("bounce", "applied")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "courier_webhook_events_total")
}
