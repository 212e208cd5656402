// Package pipeline implements the streaming controller that turns a row
// sequence into columnar batches.
//
// # Overview
//
// The controller pulls rows from a source.RowSequence, routes every cell to
// the inference state and builder of its column and assembles a batch at each
// chunk boundary:
//
//	ctrl := pipeline.New(opener, pipeline.Options{Conversion: cfg.Conversion, HasHeader: true})
//	defer ctrl.Close()
//	for {
//	    batch, err := ctrl.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// # Inference Modes
//
// In per_batch mode every chunk is inferred on its own: builders keep raw
// cells pending and resolve once the chunk is complete. In global mode a first
// pass over the whole source fixes one type per column, the source is opened
// again and builders coerce on append. Strict schema implies global mode and
// turns every contradiction into a SchemaMismatch error.
//
// # Ragged Rows
//
// Short rows are padded with nulls. Trailing empty cells beyond the declared
// width are ignored. Any other extra cell is an error when a header declared
// the columns, unless column widening is enabled; without a header the width
// simply grows to the widest row seen. New columns are back-filled with nulls.
package pipeline

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/columnar"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/logger"
	"github.com/pranav-jay26/Crossbow/pkg/metrics"
	"github.com/pranav-jay26/Crossbow/pkg/observability"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
	"github.com/pranav-jay26/Crossbow/pkg/source"
)

// maxInitialCapacity bounds the buffers preallocated per column.
const maxInitialCapacity = 4096

// Opener opens a fresh row sequence over the selected sheet. Global inference
// calls it twice.
type Opener func(ctx context.Context) (source.RowSequence, error)

// Options configure a Controller.
type Options struct {
	Conversion  config.ConversionConfig
	Memory      config.MemoryConfig
	Performance config.PerformanceConfig

	// HasHeader takes column names from the first row
	HasHeader bool
	// NormalizeHeaders applies NFC normalisation and trimming to header names
	NormalizeHeaders bool

	// Source, Sheet and Format label logs, errors and metrics
	Source string
	Sheet  string
	Format string

	Logger *zap.Logger
}

// Controller converts one sheet into a sequence of batches. It is not safe
// for concurrent use.
type Controller struct {
	open   Opener
	opts   Options
	logger *zap.Logger
	policy schema.Policy
	strict bool
	global bool

	rows      source.RowSequence
	started   bool
	exhausted bool
	done      bool
	ended     bool
	err       error

	names     []string
	types     []schema.LogicalType // global mode only
	inferred  schema.Schema        // global mode only
	engine    *schema.Engine       // per batch mode only
	builders  []*columnar.Builder
	lookahead []cell.RawCell
	peeked    bool
	chunkSize int
	date1904  bool
	rowNum    int // 1-based source row of the last row read

	progress   Progress
	bytesSeen  int64
	reporter   *progressReporter
	throughput *metrics.ThroughputTracker
	spanCtx    context.Context
	span       *observability.Span
}

// New creates a controller. Nothing is read until the first call to Next.
func New(open Opener, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	log = log.With(
		zap.String("component", "controller"),
		zap.String("source", opts.Source),
		zap.String("sheet", opts.Sheet),
		zap.String("format", opts.Format))

	return &Controller{
		open:   open,
		opts:   opts,
		logger: log,
		policy: schema.Policy{
			IntegralFloatsAsInt: opts.Conversion.IntegralFloatsAsInt,
			AmbiguousDates:      opts.Conversion.TreatAmbiguousNumericAsDate,
		},
		strict:     opts.Conversion.StrictSchema,
		global:     opts.Conversion.EffectiveMode() == config.InferenceGlobal,
		progress:   Progress{Bytes: -1},
		reporter:   newProgressReporter(log, opts.Performance.ProgressEveryChunks),
		throughput: metrics.NewThroughputTracker(opts.Format),
	}
}

// Next returns the next batch, or io.EOF once the source is exhausted. An
// input without data rows yields exactly one zero-row batch. After an error
// every later call returns the same error.
func (c *Controller) Next(ctx context.Context) (*columnar.Batch, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.done {
		return nil, io.EOF
	}
	if !c.started {
		c.started = true
		if err := c.start(ctx); err != nil {
			return nil, c.fail(err)
		}
	}
	if c.exhausted && c.progress.Batches > 0 {
		c.finish()
		return nil, io.EOF
	}

	batch, err := c.chunk(ctx)
	if err != nil {
		return nil, c.fail(err)
	}
	if batch == nil {
		c.finish()
		return nil, io.EOF
	}
	return batch, nil
}

// Progress returns a snapshot of the conversion progress.
func (c *Controller) Progress() Progress {
	p := c.progress
	p.Elapsed = c.reporter.elapsed()
	return p
}

// Close releases the source. It is safe to call more than once.
func (c *Controller) Close() error {
	var err error
	if c.rows != nil {
		err = c.rows.Close()
		c.rows = nil
	}
	c.builders = nil
	c.end(nil)
	return err
}

// Schema runs the global inference pass and returns the schema of the whole
// sheet without building any batch.
func (c *Controller) Schema(ctx context.Context) (schema.Schema, error) {
	if !c.global {
		return schema.Schema{}, errors.New(errors.ErrorTypeConfig, "schema inference requires global inference mode")
	}
	if c.types == nil {
		if err := c.inferGlobal(ctx); err != nil {
			return schema.Schema{}, err
		}
	}
	return c.inferred, nil
}

func (c *Controller) start(ctx context.Context) error {
	c.spanCtx, c.span = observability.StartSpan(ctx, "crossbow.convert")
	c.span.SetAttribute("source", c.opts.Source)
	c.span.SetAttribute("sheet", c.opts.Sheet)
	c.span.SetAttribute("inference_mode", c.opts.Conversion.EffectiveMode())
	metrics.ActiveConversions.Inc()

	if c.global && c.types == nil {
		if err := c.inferGlobal(ctx); err != nil {
			return err
		}
	}

	rows, err := c.open(ctx)
	if err != nil {
		return err
	}
	c.rows = rows
	c.rowNum = 0
	c.date1904 = source.Date1904(rows)

	if c.opts.HasHeader {
		row, err := c.read(ctx)
		switch {
		case err == io.EOF:
			c.exhausted = true
		case err != nil:
			return err
		case !c.global:
			if c.names, err = HeaderNames(row, c.opts.NormalizeHeaders, c.opts.Conversion.DedupeHeaders); err != nil {
				return c.annotate(err)
			}
		}
	}

	width := len(c.names)
	if !c.global {
		c.engine = schema.NewEngine(c.logger, c.policy)
		c.engine.Grow(width)

		if !c.opts.HasHeader && !c.exhausted {
			row, err := c.read(ctx)
			switch {
			case err == io.EOF:
				c.exhausted = true
			case err != nil:
				return err
			default:
				c.lookahead, c.peeked = append([]cell.RawCell(nil), row...), true
				width = len(row)
			}
		}
	}

	c.chunkSize = ChunkSize(c.opts.Conversion, c.opts.Memory, width)
	c.logger.Debug("conversion started",
		zap.Int("chunk_size", c.chunkSize),
		zap.Int("columns", width),
		zap.Bool("date1904", c.date1904))
	return nil
}

// inferGlobal runs the first pass: it reads the whole sheet, fixes the column
// names and resolves one type per column.
func (c *Controller) inferGlobal(ctx context.Context) error {
	rows, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer rows.Close()
	c.rows = rows
	defer func() { c.rows = nil }()
	c.rowNum = 0

	engine := schema.NewEngine(c.logger, c.policy)
	if c.opts.HasHeader {
		row, err := c.read(ctx)
		if err != nil && err != io.EOF {
			return err
		}
		if c.names, err = HeaderNames(row, c.opts.NormalizeHeaders, c.opts.Conversion.DedupeHeaders); err != nil {
			return c.annotate(err)
		}
	}
	engine.Grow(len(c.names))

	dataRows := 0
	for {
		row, err := c.read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		cells, err := c.shape(row)
		if err != nil {
			return err
		}
		for j := len(c.names); j < len(cells); j++ {
			c.names = append(c.names, ColumnName(j))
			for k := 0; k < dataRows; k++ {
				engine.Observe(j, cell.Empty())
			}
		}

		for i, cl := range cells {
			had := engine.State(i).Conflict
			engine.Observe(i, cl)
			if c.strict && !had && engine.State(i).Conflict {
				return c.annotate(errors.New(errors.ErrorTypeSchemaMismatch, "cell contradicts the type of its column").
					WithDetail(errors.DetailRow, c.rowNum).
					WithDetail(errors.DetailColumn, i+1).
					WithDetail(errors.DetailColumnName, c.names[i]).
					WithDetail("cell_kind", cl.Kind().String()))
			}
		}
		for i := len(cells); i < len(c.names); i++ {
			engine.Observe(i, cell.Empty())
		}
		dataRows++
	}

	c.types = engine.Types()
	c.inferred = engine.Schema(c.names)
	c.logger.Debug("global inference complete",
		zap.Int("rows", dataRows),
		zap.Stringer("schema", c.inferred))
	return nil
}

// read returns the next row, checking for cancellation first.
func (c *Controller) read(ctx context.Context) ([]cell.RawCell, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCanceled, "conversion canceled").
			WithDetail(errors.DetailSource, c.opts.Source)
	}
	if c.peeked {
		c.peeked = false
		return c.lookahead, nil
	}

	row, err := c.rows.Next()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		e := errors.Classify(err, errors.ErrorTypeSourceRead, "failed to read row")
		if _, ok := e.Detail(errors.DetailRow); !ok {
			e.WithDetail(errors.DetailRow, c.rowNum+1)
		}
		return nil, c.annotate(e)
	}
	c.rowNum++
	return row, nil
}

// shape drops trailing empty cells beyond the declared width and rejects
// extra cells when the header fixed the width.
func (c *Controller) shape(row []cell.RawCell) ([]cell.RawCell, error) {
	width := len(c.names)
	for len(row) > width && row[len(row)-1].IsEmpty() {
		row = row[:len(row)-1]
	}
	if len(row) > width && c.opts.HasHeader && !c.opts.Conversion.AllowColumnWidening {
		return nil, c.annotate(errors.Newf(errors.ErrorTypeSchemaMismatch,
			"row has %d cells but the header declares %d columns", len(row), width).
			WithDetail(errors.DetailRow, c.rowNum).
			WithDetail(errors.DetailColumn, width+1))
	}
	return row, nil
}

func (c *Controller) chunk(ctx context.Context) (*columnar.Batch, error) {
	_, span := observability.StartSpan(c.spanCtx, "crossbow.chunk")
	timer := metrics.NewTimer()

	c.builders = make([]*columnar.Builder, len(c.names))
	for i := range c.names {
		c.builders[i] = c.newBuilder(i, 0)
	}

	n := 0
	for n < c.chunkSize && !c.exhausted {
		row, err := c.read(ctx)
		if err == io.EOF {
			c.exhausted = true
			break
		}
		if err == nil {
			err = c.appendRow(row, n)
		}
		if err != nil {
			// the in-flight chunk is discarded; emitted batches stay valid
			c.builders = nil
			span.End(err)
			return nil, err
		}
		n++
		c.progress.ChunkRows = n
	}

	if n == 0 && c.progress.Batches > 0 {
		c.builders = nil
		span.End(nil)
		return nil, nil
	}

	batch, err := c.assemble()
	if err != nil {
		span.End(err)
		return nil, err
	}

	c.record(batch, timer)
	span.SetAttribute("rows", n)
	span.SetAttribute("batch", c.progress.Batches)
	span.End(nil)
	return batch, nil
}

func (c *Controller) newBuilder(col, backfill int) *columnar.Builder {
	capacity := c.chunkSize
	if capacity > maxInitialCapacity {
		capacity = maxInitialCapacity
	}
	opts := columnar.BuilderOptions{
		Policy:   c.policy,
		Strict:   c.strict,
		Date1904: c.date1904,
		Capacity: capacity,
		OnWiden: func(from, to schema.LogicalType) {
			c.widened(col, from, to)
		},
	}

	var b *columnar.Builder
	if c.global {
		b = columnar.NewResolvedBuilder(c.types[col], opts)
	} else {
		b = columnar.NewBuilder(opts)
	}
	b.AppendNulls(backfill)
	return b
}

func (c *Controller) widened(col int, from, to schema.LogicalType) {
	if c.global {
		c.types[col] = to
	}
	metrics.ColumnWidenings.WithLabelValues(from.String(), to.String()).Inc()
	c.logger.Warn("column type widened after inference",
		zap.String("column_name", c.names[col]),
		zap.Int("row", c.rowNum),
		zap.Stringer("from", from),
		zap.Stringer("to", to))
}

// appendRow routes the cells of one row; n is the number of rows already in
// the chunk.
func (c *Controller) appendRow(row []cell.RawCell, n int) error {
	cells, err := c.shape(row)
	if err != nil {
		return err
	}

	if len(cells) > len(c.names) {
		if c.global {
			return c.annotate(errors.New(errors.ErrorTypeInternal, "row is wider than during the inference pass").
				WithDetail(errors.DetailRow, c.rowNum))
		}
		for j := len(c.names); j < len(cells); j++ {
			c.names = append(c.names, ColumnName(j))
			c.builders = append(c.builders, c.newBuilder(j, n))
			for k := 0; k < n; k++ {
				c.engine.Observe(j, cell.Empty())
			}
		}
	}

	if c.engine != nil {
		c.engine.ObserveRow(cells)
	}
	for i, b := range c.builders {
		if i >= len(cells) {
			b.AppendNull()
			continue
		}
		if err := b.Append(cells[i]); err != nil {
			return c.annotate(errors.Classify(err, errors.ErrorTypeInternal, "failed to build column").
				WithDetail(errors.DetailRow, c.rowNum).
				WithDetail(errors.DetailColumn, i+1).
				WithDetail(errors.DetailColumnName, c.names[i]))
		}
	}
	return nil
}

func (c *Controller) assemble() (*columnar.Batch, error) {
	var types []schema.LogicalType
	if c.engine != nil {
		types = c.engine.Types()
	}

	columns := make([]*columnar.Column, len(c.builders))
	for i, b := range c.builders {
		if !b.Resolved() {
			if err := b.Resolve(types[i]); err != nil {
				return nil, c.annotate(errors.Classify(err, errors.ErrorTypeInternal, "failed to resolve column").
					WithDetail(errors.DetailColumnName, c.names[i]))
			}
		}
		col, err := b.Finish()
		if err != nil {
			return nil, c.annotate(errors.Classify(err, errors.ErrorTypeInternal, "failed to finish column").
				WithDetail(errors.DetailColumnName, c.names[i]))
		}
		columns[i] = col
	}
	c.builders = nil
	if c.engine != nil {
		c.engine.Reset()
	}

	batch, err := columnar.Assemble(append([]string(nil), c.names...), columns)
	if err != nil {
		return nil, c.annotate(err)
	}
	return batch, nil
}

// record updates progress, metrics and logs after a batch was assembled.
func (c *Controller) record(batch *columnar.Batch, timer *metrics.Timer) {
	rows := batch.NumRows()
	c.progress.Rows += int64(rows)
	c.progress.Batches++
	c.progress.ChunkRows = 0
	c.progress.Elapsed = c.reporter.elapsed()
	if c.rows != nil {
		if b := source.BytesRead(c.rows); b >= 0 {
			metrics.BytesRead.WithLabelValues(c.opts.Format).Add(float64(b - c.bytesSeen))
			c.bytesSeen = b
			c.progress.Bytes = b
		}
	}

	metrics.RowsConverted.WithLabelValues(c.opts.Format).Add(float64(rows))
	metrics.BatchesEmitted.WithLabelValues(c.opts.Format).Inc()
	metrics.ChunkDuration.WithLabelValues(c.opts.Format).Observe(timer.Stop().Seconds())
	c.throughput.Increment(int64(rows))
	c.throughput.GetAndReset()

	c.reporter.chunkDone(c.progress)
}

func (c *Controller) annotate(err error) *errors.Error {
	e := errors.Classify(err, errors.ErrorTypeInternal, "conversion failed").
		WithDetail(errors.DetailSource, c.opts.Source)
	if c.opts.Sheet != "" {
		e.WithDetail(errors.DetailSheet, c.opts.Sheet)
	}
	return e
}

func (c *Controller) fail(err error) error {
	c.err = err
	c.builders = nil
	if c.rows != nil {
		_ = c.rows.Close()
		c.rows = nil
	}

	errType := "unknown"
	var e *errors.Error
	if errors.As(err, &e) {
		errType = string(e.Type)
	}
	metrics.ConversionErrors.WithLabelValues(errType).Inc()
	c.logger.Warn("conversion failed", zap.Error(err), zap.Int64("rows_emitted", c.progress.Rows))
	c.end(err)
	return err
}

func (c *Controller) finish() {
	c.done = true
	if c.rows != nil {
		_ = c.rows.Close()
		c.rows = nil
	}
	c.reporter.finished(c.Progress())
	c.end(nil)
}

// end closes the conversion span once.
func (c *Controller) end(err error) {
	if c.ended || c.span == nil {
		return
	}
	c.ended = true
	c.span.SetAttribute("rows", c.progress.Rows)
	c.span.SetAttribute("batches", c.progress.Batches)
	c.span.End(err)
	metrics.ActiveConversions.Dec()
}
