package xls

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/extrame/xls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/source"
)

func TestClassifyRow(t *testing.T) {
	cls := cell.NewClassifier(config.NewSourceConfig())
	got := classifyRow(nil, []string{"", "12", "1.5", "TRUE", "north", "NULL"}, cls)

	assert.Equal(t, []cell.RawCell{
		cell.Empty(),
		cell.Int(12),
		cell.Float(1.5),
		cell.Bool(true),
		cell.Text("north"),
		cell.Empty(),
	}, got)

	cfg := config.NewSourceConfig()
	cfg.NullValues = nil
	got = classifyRow(got[:0], []string{""}, cell.NewClassifier(cfg))
	assert.Equal(t, []cell.RawCell{cell.Empty()}, got)
}

func TestMalformedWorkbook(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "broken.xls")
	data := append([]byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}, make([]byte, 504)...)
	require.NoError(t, os.WriteFile(p, data, 0o600))

	_, err := Format{}.Open(context.Background(), p, "", config.NewSourceConfig())
	assert.True(t, errors.IsSourceOpen(err))

	_, err = Format{}.Sheets(context.Background(), filepath.Join(dir, "missing.xls"))
	assert.True(t, errors.IsSourceOpen(err))
}

func TestRegistered(t *testing.T) {
	f, ok := source.ByExtension(".xls")
	require.True(t, ok)
	assert.Equal(t, source.FormatXLS, f.Name())
	assert.IsType(t, Format{}, f)
}

func TestEmptySheetEndsImmediately(t *testing.T) {
	r := &rows{sheet: &xls.WorkSheet{Name: "Empty"}, name: "Empty", classifier: cell.NewClassifier(config.NewSourceConfig())}

	got, err := r.Next()
	assert.Nil(t, got)
	assert.Equal(t, io.EOF, err)
}

func TestMissingRowsAreBlank(t *testing.T) {
	r := &rows{sheet: &xls.WorkSheet{Name: "Gaps", MaxRow: 2}, name: "Gaps", classifier: cell.NewClassifier(config.NewSourceConfig())}

	for i := 0; i < 3; i++ {
		got, err := r.Next()
		require.NoError(t, err, "row %d", i)
		assert.Empty(t, got)
	}
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}
