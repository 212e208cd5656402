package ods

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/source"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content
  xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:spreadsheet>`

const footer = `</office:spreadsheet></office:body></office:document-content>`

const twoSheets = header + `
<table:table table:name="Orders">
  <table:table-row>
    <table:table-cell office:value-type="string"><text:p>id</text:p></table:table-cell>
    <table:table-cell office:value-type="string"><text:p>amount</text:p></table:table-cell>
    <table:table-cell office:value-type="string"><text:p>paid</text:p></table:table-cell>
    <table:table-cell office:value-type="string"><text:p>when</text:p></table:table-cell>
    <table:table-cell table:number-columns-repeated="1020"/>
  </table:table-row>
  <table:table-row>
    <table:table-cell office:value-type="float" office:value="1"><text:p>1</text:p></table:table-cell>
    <table:table-cell office:value-type="currency" office:value="2.5"><text:p>$2.50</text:p></table:table-cell>
    <table:table-cell office:value-type="boolean" office:boolean-value="true"><text:p>TRUE</text:p></table:table-cell>
    <table:table-cell office:value-type="date" office:date-value="2024-01-15T10:30:00"><text:p>01/15/24</text:p></table:table-cell>
  </table:table-row>
  <table:table-row table:number-rows-repeated="2">
    <table:table-cell table:number-columns-repeated="2"/>
    <table:table-cell office:value-type="string"><text:p>a<text:s text:c="2"/>b</text:p><text:p>line</text:p><office:annotation><text:p>note</text:p></office:annotation></table:table-cell>
  </table:table-row>
  <table:table-row table:number-rows-repeated="3"><table:table-cell table:number-columns-repeated="1024"/></table:table-row>
  <table:table-row>
    <table:table-cell office:value-type="time" office:time-value="PT13H45M30S"><text:p>13:45:30</text:p></table:table-cell>
    <table:covered-table-cell/>
    <table:table-cell office:value-type="percentage" office:value="0.25"><text:p>25%</text:p></table:table-cell>
  </table:table-row>
  <table:table-row table:number-rows-repeated="1048570"><table:table-cell table:number-columns-repeated="1024"/></table:table-row>
</table:table>
<table:table table:name="Empty"></table:table>
` + footer

func writeODS(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "book.ods")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, entry := range []struct{ name, body string }{
		{"mimetype", "application/vnd.oasis.opendocument.spreadsheet"},
		{contentEntry, content},
	} {
		w, err := zw.Create(entry.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(entry.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
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

func TestSheets(t *testing.T) {
	p := writeODS(t, twoSheets)
	sheets, err := Format{}.Sheets(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Orders", "Empty"}, sheets)
}

func TestRows(t *testing.T) {
	p := writeODS(t, twoSheets)
	rows, err := Format{}.Open(context.Background(), p, "Orders", config.NewSourceConfig())
	require.NoError(t, err)
	got := readAll(t, rows)

	require.Len(t, got, 8, "repeated rows expand, trailing padding is dropped")

	assert.Equal(t, []cell.RawCell{cell.Text("id"), cell.Text("amount"), cell.Text("paid"), cell.Text("when")}, got[0])
	assert.Equal(t, []cell.RawCell{
		cell.Int(1),
		cell.Float(2.5),
		cell.Bool(true),
		cell.DateTime(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)),
	}, got[1])

	for _, i := range []int{2, 3} {
		require.Len(t, got[i], 3)
		assert.True(t, got[i][0].IsEmpty())
		assert.Equal(t, cell.Text("a  b\nline"), got[i][2])
	}
	for _, i := range []int{4, 5, 6} {
		assert.Empty(t, got[i])
	}

	assert.Equal(t, cell.DateTime(time.Date(1899, 12, 30, 13, 45, 30, 0, time.UTC)), got[7][0])
	assert.True(t, got[7][1].IsEmpty())
	assert.Equal(t, cell.Float(0.25), got[7][2])
}

func TestEmptySheet(t *testing.T) {
	p := writeODS(t, twoSheets)
	rows, err := Format{}.Open(context.Background(), p, "1", config.NewSourceConfig())
	require.NoError(t, err)
	assert.Empty(t, readAll(t, rows))
}

func TestMalformedContent(t *testing.T) {
	bad := header + `<table:table table:name="S"><table:table-row>
<table:table-cell office:value-type="float" office:value="abc"/></table:table-row></table:table>` + footer
	rows, err := Format{}.Open(context.Background(), writeODS(t, bad), "", config.NewSourceConfig())
	require.NoError(t, err)
	defer rows.Close()
	_, err = rows.Next()
	assert.True(t, errors.IsSourceRead(err))

	truncated := header + `<table:table table:name="S"><table:table-row><table:table-cell>`
	_, err = Format{}.Sheets(context.Background(), writeODS(t, truncated))
	assert.True(t, errors.IsSourceOpen(err))

	_, err = Format{}.Open(context.Background(), writeODS(t, twoSheets), "Nope", config.NewSourceConfig())
	assert.True(t, errors.IsSourceOpen(err))
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("PT01H02M03.5S")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+2*time.Minute+3500*time.Millisecond, d)

	_, err = parseDuration("13:00")
	assert.Error(t, err)
	_, err = parseDuration("PTxS")
	assert.Error(t, err)
}
