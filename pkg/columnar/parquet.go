package columnar

import (
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/pranav-jay26/Crossbow/pkg/errors"
)

var parquetCodecs = map[string]compress.Compression{
	"":             compress.Codecs.Snappy,
	"snappy":       compress.Codecs.Snappy,
	"zstd":         compress.Codecs.Zstd,
	"gzip":         compress.Codecs.Gzip,
	"none":         compress.Codecs.Uncompressed,
	"uncompressed": compress.Codecs.Uncompressed,
}

// ParquetCodec maps a codec name to a Parquet compression codec. The empty
// name selects snappy.
func ParquetCodec(name string) (compress.Compression, error) {
	codec, ok := parquetCodecs[strings.ToLower(name)]
	if !ok {
		return 0, errors.New(errors.ErrorTypeConfig, "unknown parquet compression").
			WithDetail("compression", name)
	}
	return codec, nil
}

// ParquetWriter writes batches to a Parquet file, one row group per batch.
// Like IPCWriter it takes the schema from the first batch.
type ParquetWriter struct {
	w      io.Writer
	pool   memory.Allocator
	codec  compress.Compression
	schema *arrow.Schema
	fw     *pqarrow.FileWriter
	rows   int64
}

// NewParquetWriter creates a writer on w using the named codec.
func NewParquetWriter(w io.Writer, codec string) (*ParquetWriter, error) {
	c, err := ParquetCodec(codec)
	if err != nil {
		return nil, err
	}
	return &ParquetWriter{w: w, pool: memory.NewGoAllocator(), codec: c}, nil
}

// Write appends one batch as a row group.
func (pw *ParquetWriter) Write(b *Batch) error {
	if err := pw.open(ArrowSchema(b.Schema())); err != nil {
		return err
	}

	rec := b.Record()
	defer rec.Release()
	if !rec.Schema().Equal(pw.schema) {
		return errors.New(errors.ErrorTypeSchemaMismatch, "batch schema differs from the file schema").
			WithDetail("expected", pw.schema.String()).
			WithDetail("actual", rec.Schema().String())
	}
	if err := pw.fw.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write Parquet row group")
	}
	pw.rows += rec.NumRows()
	return nil
}

// Rows returns the number of rows written so far.
func (pw *ParquetWriter) Rows() int64 {
	return pw.rows
}

// Close writes the file footer.
func (pw *ParquetWriter) Close() error {
	if err := pw.open(arrow.NewSchema(nil, nil)); err != nil {
		return err
	}
	if err := pw.fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to close Parquet writer")
	}
	return nil
}

func (pw *ParquetWriter) open(s *arrow.Schema) error {
	if pw.fw != nil {
		return nil
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(pw.codec),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pw.pool),
		pqarrow.WithStoreSchema(),
	)
	// pqarrow closes a sink that implements io.Closer; w belongs to the caller
	fw, err := pqarrow.NewFileWriter(s, struct{ io.Writer }{pw.w}, props, arrowProps)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Parquet writer")
	}
	pw.fw, pw.schema = fw, s
	return nil
}
