package columnar

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
)

func TestIPCWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewIPCWriter(&buf)

	first := sampleBatch(t)
	require.NoError(t, w.Write(first))
	require.NoError(t, w.Write(sampleBatch(t)))
	require.NoError(t, w.Close())
	assert.Equal(t, int64(6), w.Rows())

	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 2, r.NumRecords())
	assert.Equal(t, 5, r.Schema().NumFields())

	rec, err := r.Record(1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.NumRows())
	names := rec.Column(3).(*array.String)
	assert.Equal(t, "ccc", names.Value(2))
	assert.True(t, names.IsNull(1))
}

func TestIPCWriterRejectsSchemaChange(t *testing.T) {
	var buf bytes.Buffer
	w := NewIPCWriter(&buf)
	require.NoError(t, w.Write(sampleBatch(t)))

	other, err := Assemble([]string{"id"}, []*Column{resolvedColumn(t, schema.Int64, cell.Int(1))})
	require.NoError(t, err)
	err = w.Write(other)
	assert.True(t, errors.IsSchemaMismatch(err))
}

func TestIPCWriterEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := NewIPCWriter(&buf)
	require.NoError(t, w.Close())

	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 0, r.NumRecords())
}
