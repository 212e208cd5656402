package columnar

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/pranav-jay26/Crossbow/pkg/errors"
)

// IPCWriter writes batches to an Arrow IPC file. The schema is taken from the
// first batch; every later batch must have the same names and types.
type IPCWriter struct {
	w      io.Writer
	pool   memory.Allocator
	schema *arrow.Schema
	fw     *ipc.FileWriter
	rows   int64
}

// NewIPCWriter creates a writer on w. Nothing is written before the first
// batch or Close.
func NewIPCWriter(w io.Writer) *IPCWriter {
	return &IPCWriter{w: w, pool: memory.NewGoAllocator()}
}

// Write appends one batch as a record batch.
func (iw *IPCWriter) Write(b *Batch) error {
	if err := iw.open(ArrowSchema(b.Schema())); err != nil {
		return err
	}

	rec := b.Record()
	defer rec.Release()
	if !rec.Schema().Equal(iw.schema) {
		return errors.New(errors.ErrorTypeSchemaMismatch, "batch schema differs from the file schema").
			WithDetail("expected", iw.schema.String()).
			WithDetail("actual", rec.Schema().String())
	}
	if err := iw.fw.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write Arrow record")
	}
	iw.rows += rec.NumRows()
	return nil
}

// Rows returns the number of rows written so far.
func (iw *IPCWriter) Rows() int64 {
	return iw.rows
}

// Close writes the file footer. A writer that never saw a batch writes an
// empty file with an empty schema.
func (iw *IPCWriter) Close() error {
	if err := iw.open(arrow.NewSchema(nil, nil)); err != nil {
		return err
	}
	if err := iw.fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to close Arrow writer")
	}
	return nil
}

func (iw *IPCWriter) open(s *arrow.Schema) error {
	if iw.fw != nil {
		return nil
	}
	fw, err := ipc.NewFileWriter(iw.w, ipc.WithSchema(s), ipc.WithAllocator(iw.pool))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Arrow writer")
	}
	iw.fw, iw.schema = fw, s
	return nil
}
