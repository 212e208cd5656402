package pipeline

import (
	"time"

	"go.uber.org/zap"
)

// Progress is a snapshot of a running conversion.
type Progress struct {
	// Rows is the number of data rows placed into emitted batches
	Rows int64 `json:"rows"`
	// Bytes is the number of source bytes consumed, or -1 when the adapter
	// does not count them
	Bytes int64 `json:"bytes"`
	// Batches is the number of emitted batches
	Batches int `json:"batches"`
	// ChunkRows is the number of rows buffered in the chunk being built
	ChunkRows int `json:"chunk_rows"`
	// Elapsed is the time since the conversion started
	Elapsed time.Duration `json:"elapsed"`
}

// progressReporter logs progress every n chunks.
type progressReporter struct {
	logger    *zap.Logger
	every     int
	startTime time.Time
	lastRows  int64
	lastTime  time.Time
}

func newProgressReporter(logger *zap.Logger, every int) *progressReporter {
	now := time.Now()
	return &progressReporter{
		logger:    logger,
		every:     every,
		startTime: now,
		lastTime:  now,
	}
}

func (pr *progressReporter) elapsed() time.Duration {
	return time.Since(pr.startTime)
}

// chunkDone is called after every emitted batch.
func (pr *progressReporter) chunkDone(p Progress) {
	if pr.every <= 0 || p.Batches%pr.every != 0 {
		return
	}

	now := time.Now()
	window := now.Sub(pr.lastTime).Seconds()
	var rate float64
	if window > 0 {
		rate = float64(p.Rows-pr.lastRows) / window
	}
	pr.lastRows, pr.lastTime = p.Rows, now

	pr.logger.Debug("conversion progress",
		zap.Int64("rows", p.Rows),
		zap.Int64("bytes", p.Bytes),
		zap.Int("batches", p.Batches),
		zap.Float64("rows_per_sec", rate),
		zap.Duration("elapsed", p.Elapsed))
}

// finished logs the final summary.
func (pr *progressReporter) finished(p Progress) {
	elapsed := pr.elapsed()
	var rate float64
	if elapsed > 0 {
		rate = float64(p.Rows) / elapsed.Seconds()
	}
	pr.logger.Info("conversion finished",
		zap.Int64("rows", p.Rows),
		zap.Int("batches", p.Batches),
		zap.Duration("duration", elapsed),
		zap.Float64("rows_per_sec", rate))
}
