package csv

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/compression"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/source"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func readAll(t *testing.T, rows source.RowSequence) [][]cell.RawCell {
	t.Helper()
	var out [][]cell.RawCell
	for {
		r, err := rows.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, append([]cell.RawCell(nil), r...))
	}
	require.NoError(t, rows.Close())
	return out
}

func open(t *testing.T, path string, cfg config.SourceConfig) source.RowSequence {
	t.Helper()
	rows, err := Format{}.Open(context.Background(), path, "", cfg)
	require.NoError(t, err)
	return rows
}

func TestClassifiesTokens(t *testing.T) {
	p := writeFile(t, "people.csv", []byte("id,name,active,score,joined\n1,Ada,true,3.5,2024-01-15\n2,,FALSE,NULL,x\n"))
	got := readAll(t, open(t, p, config.NewSourceConfig()))

	require.Len(t, got, 3)
	assert.Equal(t, cell.Text("name"), got[0][1])
	assert.Equal(t, cell.Int(1), got[1][0])
	assert.Equal(t, cell.Bool(true), got[1][2])
	assert.Equal(t, cell.Float(3.5), got[1][3])
	assert.Equal(t, cell.DateTime(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)), got[1][4])
	assert.True(t, got[2][1].IsEmpty())
	assert.Equal(t, cell.Bool(false), got[2][2])
	assert.True(t, got[2][3].IsEmpty())
}

func TestRaggedRowsPassThrough(t *testing.T) {
	p := writeFile(t, "ragged.csv", []byte("a,b,c\n1,2\n1,2,3,4\n"))
	got := readAll(t, open(t, p, config.NewSourceConfig()))

	assert.Len(t, got[1], 2)
	assert.Len(t, got[2], 4)
}

func TestDelimiterSniffing(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a,b,c", ','},
		{"a;b;c", ';'},
		{"a\tb\tc", '\t'},
		{"a|b|c", '|'},
		{`"x;y;z",b,c`, ','},
		{"a;b,c", ','},
		{"single", ','},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sniff(tt.line), tt.line)
	}

	p := writeFile(t, "semi.txt", []byte("a;b\n1;2,5\n"))
	got := readAll(t, open(t, p, config.NewSourceConfig()))
	assert.Equal(t, cell.Text("2,5"), got[1][1])

	cfg := config.NewSourceConfig()
	cfg.Delimiter = "|"
	got = readAll(t, open(t, p, cfg))
	assert.Len(t, got[0], 1)
}

func TestBOMAndEncoding(t *testing.T) {
	p := writeFile(t, "bom.csv", append([]byte{0xef, 0xbb, 0xbf}, []byte("name\nx\n")...))
	got := readAll(t, open(t, p, config.NewSourceConfig()))
	assert.Equal(t, cell.Text("name"), got[0][0])

	p = writeFile(t, "latin.csv", []byte("city\nMontr\xe9al\n"))
	cfg := config.NewSourceConfig()
	cfg.Encoding = "windows-1252"
	got = readAll(t, open(t, p, cfg))
	assert.Equal(t, cell.Text("Montréal"), got[1][0])
}

func TestCompressedInput(t *testing.T) {
	var buf bytes.Buffer
	w, err := compression.NewWriter(compression.Zstd, &buf)
	require.NoError(t, err)
	_, err = w.Write([]byte("a,b\n1,2\n3,4\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	for _, name := range []string{"data.csv.zst", "data"} {
		t.Run(name, func(t *testing.T) {
			p := writeFile(t, name, buf.Bytes())
			rows := open(t, p, config.NewSourceConfig())
			_, err := rows.Next()
			require.NoError(t, err)
			assert.Equal(t, int64(buf.Len()), source.BytesRead(rows))

			got := readAll(t, rows)
			require.Len(t, got, 2)
			assert.Equal(t, cell.Int(4), got[1][1])
		})
	}
}

func TestMalformedInput(t *testing.T) {
	p := writeFile(t, "bad.csv", []byte("a,b\n1,2\n3,x\"y\n"))
	rows := open(t, p, config.NewSourceConfig())
	defer rows.Close()

	_, err := rows.Next()
	require.NoError(t, err)
	_, err = rows.Next()
	require.NoError(t, err)
	_, err = rows.Next()
	require.True(t, errors.IsSourceRead(err))

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	row, _ := e.Detail(errors.DetailRow)
	assert.Equal(t, 3, row)

	p = writeFile(t, "lazy.csv", []byte("a,b\n3,x\"y\n"))
	cfg := config.NewSourceConfig()
	cfg.LazyQuotes = true
	got := readAll(t, open(t, p, cfg))
	assert.Equal(t, cell.Text(`x"y`), got[1][1])
}

func TestCommentLines(t *testing.T) {
	p := writeFile(t, "c.csv", []byte("a\n# note\n1\n"))
	cfg := config.NewSourceConfig()
	cfg.Comment = "#"
	got := readAll(t, open(t, p, cfg))
	assert.Len(t, got, 2)
}

func TestSheetsAndSelector(t *testing.T) {
	p := writeFile(t, "sales.csv.gz", nil)
	sheets, err := Format{}.Sheets(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales"}, sheets)

	_, err = Format{}.Open(context.Background(), p, "other", config.NewSourceConfig())
	assert.True(t, errors.IsSourceOpen(err))
}

func TestRegistered(t *testing.T) {
	f, ok := source.ByExtension(".tsv")
	require.True(t, ok)
	assert.Equal(t, source.FormatCSV, f.Name())
}
