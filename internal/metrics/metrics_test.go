package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordChunk("A/B", OutcomeOK)
	m.RecordBackend("timescale", 10, true)
	m.SetWatermark("timescale", "A/B", time.Now())
	m.ObservePass(time.Second)
	assert.Nil(t, m.Registry())
}

func TestRecordCounters(t *testing.T) {
	m := New()
	m.RecordChunk("A/B", OutcomeOK)
	m.RecordChunk("A/B", OutcomeOK)
	m.RecordChunk("A/B", OutcomeFailed)
	m.RecordBackend("clickhouse", 24, false)
	m.RecordBackend("clickhouse", 0, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChunksTotal.WithLabelValues("A/B", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChunksTotal.WithLabelValues("A/B", OutcomeFailed)))
	assert.Equal(t, 24.0, testutil.ToFloat64(m.BackendRecordsTotal.WithLabelValues("clickhouse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendFailuresTotal.WithLabelValues("clickhouse")))
}

func TestHandlerExposesWatermark(t *testing.T) {
	m := New()
	m.SetWatermark("timescale", "A/B", time.Unix(1700000000, 0))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `dayahead_watermark_timestamp_seconds{backend="timescale",pair="A/B"}`))
}
