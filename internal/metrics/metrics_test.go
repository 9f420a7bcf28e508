package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The worker and api binaries both serve the default registry through
// promhttp, so everything registered here must show up in a scrape.
func TestMetricsExposedThroughPromhttp(t *testing.T) {
	JobsPublishedTotal.WithLabelValues("sentiment_analysis_queue").Inc()
	JobsProcessedTotal.WithLabelValues("SENTIMENT", "success").Inc()
	PendingWaiters.Set(1)
	OrphanedResponsesTotal.Inc()
	WaitTimeoutsTotal.Inc()

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	scrape := string(body)
	assert.Contains(t, scrape, "jobs_published_total")
	assert.Contains(t, scrape, `jobs_processed_total{job_type="SENTIMENT",status="success"}`)
	assert.Contains(t, scrape, "dispatch_pending_waiters")
	assert.Contains(t, scrape, "dispatch_orphaned_responses_total")
	assert.Contains(t, scrape, "dispatch_wait_timeouts_total")
}
