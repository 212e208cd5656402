// Package convert is the public entry point of crossbow. It opens a workbook
// or delimited file, picks the sheet and streams Arrow-compatible batches.
//
// # Basic Usage
//
//	r, err := convert.Convert(ctx, "sales.xlsx", "Q1", config.NewConfig())
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for batch, err := range r.All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    rec := batch.Record()
//	    ...
//	    rec.Release()
//	}
//
// Identifiers are local paths, "-" for standard input, or s3:// and gs://
// object URLs. Sheets are selected by name or by 0-based index; the empty
// selector picks the first sheet. Delimited files expose a single sheet named
// after the file.
package convert

import (
	"context"
	"io"
	"iter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pranav-jay26/Crossbow/internal/pipeline"
	"github.com/pranav-jay26/Crossbow/pkg/columnar"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/logger"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
	"github.com/pranav-jay26/Crossbow/pkg/source"

	// format adapters
	_ "github.com/pranav-jay26/Crossbow/pkg/source/csv"
	_ "github.com/pranav-jay26/Crossbow/pkg/source/ods"
	_ "github.com/pranav-jay26/Crossbow/pkg/source/xls"
	_ "github.com/pranav-jay26/Crossbow/pkg/source/xlsx"
)

// Progress is a snapshot of a running conversion.
type Progress = pipeline.Progress

// Reader streams the batches of one sheet. A Reader is not safe for
// concurrent use; independent readers share nothing.
type Reader struct {
	handle *source.Handle
	ctrl   *pipeline.Controller
	owned  bool
	closed bool
}

// Convert opens the sheet selected by selector in the source behind id. Open
// errors, including an unknown sheet, are reported here; rows are read lazily
// by Next. A nil cfg uses the defaults.
func Convert(ctx context.Context, id, selector string, cfg *config.Config) (*Reader, error) {
	cfg, err := prepareConfig(cfg)
	if err != nil {
		return nil, err
	}
	h, err := source.Prepare(ctx, id, cfg.Source)
	if err != nil {
		return nil, err
	}
	r, err := open(ctx, h, selector, cfg)
	if err != nil {
		h.Close()
		return nil, err
	}
	r.owned = true
	return r, nil
}

func open(ctx context.Context, h *source.Handle, selector string, cfg *config.Config) (*Reader, error) {
	ctx = logger.ContextWithConversionID(ctx, "")
	// the first sequence is opened eagerly so open errors surface immediately
	first, err := h.Open(ctx, selector)
	if err != nil {
		return nil, err
	}
	opener := func(ctx context.Context) (source.RowSequence, error) {
		if rows := first; rows != nil {
			first = nil
			return rows, nil
		}
		return h.Open(ctx, selector)
	}

	ctrl := pipeline.New(opener, pipeline.Options{
		Conversion:       cfg.Conversion,
		Memory:           cfg.Memory,
		Performance:      cfg.Performance,
		HasHeader:        cfg.Source.HasHeader,
		NormalizeHeaders: cfg.Source.NormalizeHeaders,
		Source:           h.ID,
		Sheet:            selector,
		Format:           h.Format.Name(),
		Logger:           logger.Get().With(zap.String("conversion_id", logger.ConversionID(ctx))),
	})
	return &Reader{handle: h, ctrl: ctrl}, nil
}

func prepareConfig(cfg *config.Config) (*config.Config, error) {
	if cfg == nil {
		return config.NewConfig(), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Next returns the next batch or io.EOF at the end of the sheet.
func (r *Reader) Next(ctx context.Context) (*columnar.Batch, error) {
	return r.ctrl.Next(ctx)
}

// All iterates over the remaining batches. Iteration stops after the first
// error, which is yielded with a nil batch.
func (r *Reader) All(ctx context.Context) iter.Seq2[*columnar.Batch, error] {
	return func(yield func(*columnar.Batch, error) bool) {
		for {
			batch, err := r.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

// Progress returns the progress of the conversion so far.
func (r *Reader) Progress() Progress {
	return r.ctrl.Progress()
}

// Close releases the source. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.ctrl.Close()
	if r.owned {
		r.handle.Close()
	}
	return err
}

// ReadAll converts the selected sheet and collects every batch.
func ReadAll(ctx context.Context, id, selector string, cfg *config.Config) ([]*columnar.Batch, error) {
	r, err := Convert(ctx, id, selector, cfg)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return collect(ctx, r)
}

func collect(ctx context.Context, r *Reader) ([]*columnar.Batch, error) {
	var batches []*columnar.Batch
	for batch, err := range r.All(ctx) {
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// InferSchema runs global inference over the selected sheet and returns its
// schema without building batches.
func InferSchema(ctx context.Context, id, selector string, cfg *config.Config) (schema.Schema, error) {
	cfg, err := prepareConfig(cfg)
	if err != nil {
		return schema.Schema{}, err
	}
	global := *cfg
	global.Conversion.InferenceMode = config.InferenceGlobal

	r, err := Convert(ctx, id, selector, &global)
	if err != nil {
		return schema.Schema{}, err
	}
	defer r.Close()
	return r.ctrl.Schema(ctx)
}

// Sheets lists the sheet names of the source behind id, in workbook order.
func Sheets(ctx context.Context, id string, cfg *config.Config) ([]string, error) {
	cfg, err := prepareConfig(cfg)
	if err != nil {
		return nil, err
	}
	return source.Sheets(ctx, id, cfg.Source)
}

// SheetResult holds the converted batches of one sheet.
type SheetResult struct {
	Sheet    string
	Batches  []*columnar.Batch
	Progress Progress
}

// ConvertSheets converts several sheets of one source concurrently, at most
// performance.max_concurrency at a time. An empty selector list converts
// every sheet. Results follow the order of selectors; the first error cancels
// the remaining conversions.
func ConvertSheets(ctx context.Context, id string, selectors []string, cfg *config.Config) ([]SheetResult, error) {
	cfg, err := prepareConfig(cfg)
	if err != nil {
		return nil, err
	}
	h, err := source.Prepare(ctx, id, cfg.Source)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	if len(selectors) == 0 {
		if selectors, err = h.Sheets(ctx); err != nil {
			return nil, err
		}
	}

	log := logger.With(zap.String("component", "convert"), zap.String("source", id))
	log.Debug("converting sheets",
		zap.Strings("sheets", selectors),
		zap.Int("max_concurrency", cfg.Performance.GetMaxConcurrency()))

	results := make([]SheetResult, len(selectors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Performance.GetMaxConcurrency())
	for i, sel := range selectors {
		g.Go(func() error {
			r, err := open(gctx, h, sel, cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			batches, err := collect(gctx, r)
			if err != nil {
				return err
			}
			results[i] = SheetResult{Sheet: sel, Batches: batches, Progress: r.Progress()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
