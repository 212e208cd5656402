package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(RowsConverted.WithLabelValues("test"))
	RowsConverted.WithLabelValues("test").Add(10)
	assert.Equal(t, before+10, testutil.ToFloat64(RowsConverted.WithLabelValues("test")))

	ColumnWidenings.WithLabelValues("int64", "float64").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(ColumnWidenings.WithLabelValues("int64", "float64")), 1.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	BatchesEmitted.WithLabelValues("handler_test").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `crossbow_batches_emitted_total{format="handler_test"} 1`))
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("tracker_test")
	tracker.Increment(500)
	time.Sleep(10 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Positive(t, rate)
	assert.Equal(t, rate, testutil.ToFloat64(Throughput.WithLabelValues("tracker_test")))

	timer := NewTimer()
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
}
