package columnar

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
)

func TestParquetWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewParquetWriter(&buf, "zstd")
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleBatch(t)))
	require.NoError(t, w.Write(sampleBatch(t)))
	require.NoError(t, w.Close())
	assert.Equal(t, int64(6), w.Rows())

	pf, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer pf.Close()
	assert.Equal(t, 2, pf.NumRowGroups())
	assert.Equal(t, int64(6), pf.NumRows())

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)
	table, err := fr.ReadTable(context.Background())
	require.NoError(t, err)
	defer table.Release()

	assert.Equal(t, int64(6), table.NumRows())
	assert.Equal(t, "name", table.Schema().Field(3).Name)
	assert.Equal(t, 2, table.Column(3).NullN())
}

func TestParquetWriterRejectsSchemaChange(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewParquetWriter(&buf, "")
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleBatch(t)))

	other, err := Assemble([]string{"id"}, []*Column{resolvedColumn(t, schema.Int64, cell.Int(1))})
	require.NoError(t, err)
	assert.True(t, errors.IsSchemaMismatch(w.Write(other)))
}

func TestParquetCodec(t *testing.T) {
	c, err := ParquetCodec("")
	require.NoError(t, err)
	assert.Equal(t, compress.Codecs.Snappy, c)

	c, err = ParquetCodec("GZIP")
	require.NoError(t, err)
	assert.Equal(t, compress.Codecs.Gzip, c)

	_, err = ParquetCodec("brotli-9")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

type closeTracker struct {
	bytes.Buffer
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestParquetWriterLeavesSinkOpen(t *testing.T) {
	var sink closeTracker
	w, err := NewParquetWriter(&sink, "")
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleBatch(t)))
	require.NoError(t, w.Close())

	assert.False(t, sink.closed)
	assert.NotZero(t, sink.Len())
}
