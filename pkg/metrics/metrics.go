// Package metrics exposes conversion progress as Prometheus metrics.
//
// # Overview
//
// The streaming controller records every emitted batch:
//
//	metrics.RowsConverted.WithLabelValues("xlsx").Add(float64(batch.NumRows()))
//	metrics.BatchesEmitted.WithLabelValues("xlsx").Inc()
//
// Chunk latency is tracked with a Timer:
//
//	timer := metrics.NewTimer()
//	buildChunk()
//	metrics.ChunkDuration.WithLabelValues("xlsx").Observe(timer.Stop().Seconds())
//
// The CLI serves the default registry through Handler when --metrics-addr is
// set.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RowsConverted counts data rows placed into batches.
	// Labels: format
	RowsConverted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbow_rows_converted_total",
			Help: "Total number of data rows converted",
		},
		[]string{"format"},
	)

	// BatchesEmitted counts assembled batches.
	// Labels: format
	BatchesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbow_batches_emitted_total",
			Help: "Total number of batches emitted",
		},
		[]string{"format"},
	)

	// BytesRead counts source bytes consumed, for adapters that report them.
	// Labels: format
	BytesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbow_source_bytes_read_total",
			Help: "Total number of source bytes read",
		},
		[]string{"format"},
	)

	// ColumnWidenings counts columns whose type was widened after being bound.
	// Labels: from, to
	ColumnWidenings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbow_column_widenings_total",
			Help: "Total number of column type widenings",
		},
		[]string{"from", "to"},
	)

	// ConversionErrors counts failed conversions by error type.
	ConversionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbow_conversion_errors_total",
			Help: "Total number of failed conversions",
		},
		[]string{"type"},
	)

	// ChunkDuration tracks the time spent reading and building one chunk.
	ChunkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "crossbow_chunk_duration_seconds",
			Help: "Time to read and build one chunk",
			Buckets: []float64{
				0.001, // 1ms - tiny chunks
				0.01,
				0.1,
				1,
				10, // 10s - million-row chunks from wide sheets
			},
		},
		[]string{"format"},
	)

	// ActiveConversions tracks conversions currently in progress.
	ActiveConversions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crossbow_active_conversions",
			Help: "Number of conversions in progress",
		},
	)

	// Throughput tracks the most recent rows per second.
	// Labels: format
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crossbow_throughput_rows_per_second",
			Help: "Current conversion throughput",
		},
		[]string{"format"},
	)
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve serves metrics on addr until ctx is canceled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Timer measures elapsed time.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks rows per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Rows since last reset
	lastReset time.Time // Time of last reset
	format    string
}

// NewThroughputTracker creates a tracker reporting under format.
func NewThroughputTracker(format string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		format:    format,
	}
}

// Increment adds n to the row count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the throughput since the last reset, publishes it,
// and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.format).Set(throughput)

	return throughput
}
