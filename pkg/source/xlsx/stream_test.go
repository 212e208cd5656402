package xlsx

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/config"
)

var streamBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// writeLargeWorkbook streams n data rows of id, code, flag and day columns.
func writeLargeWorkbook(t testing.TB, n int) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter("Sheet1")
	require.NoError(t, err)
	require.NoError(t, sw.SetRow("A1", []interface{}{"id", "code", "flag", "day"}))
	for i := 1; i <= n; i++ {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := []interface{}{i, fmt.Sprintf("%04d", i), i%2 == 0, streamBase.AddDate(0, 0, i%365)}
		require.NoError(t, sw.SetRow(ref, row))
	}
	require.NoError(t, sw.Flush())

	p := filepath.Join(t.TempDir(), fmt.Sprintf("large_%d.xlsx", n))
	require.NoError(t, f.SaveAs(p))
	return p
}

func drain(t testing.TB, p string) (int, time.Duration) {
	t.Helper()
	seq, err := Format{}.Open(context.Background(), p, "", config.NewSourceConfig())
	require.NoError(t, err)
	defer seq.Close()

	start := time.Now()
	n := 0
	for {
		_, err := seq.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		n++
	}
	return n, time.Since(start)
}

func TestLargeSheetKeepsKindsWithoutLoadingWorksheet(t *testing.T) {
	const n = 5000
	p := writeLargeWorkbook(t, n)

	seq, err := Format{}.Open(context.Background(), p, "", config.NewSourceConfig())
	require.NoError(t, err)
	r := seq.(*rows)

	count := 0
	for {
		got, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
		if count == 1 {
			assert.Equal(t, cell.Text("code"), got[1])
			continue
		}
		i := count - 1
		require.Len(t, got, 4, "row %d", count)
		assert.Equal(t, cell.Int(int64(i)), got[0])
		assert.Equal(t, cell.Text(fmt.Sprintf("%04d", i)), got[1])
		assert.Equal(t, cell.Bool(i%2 == 0), got[2])
		assert.Equal(t, cell.DateTime(streamBase.AddDate(0, 0, i%365)), got[3])
	}
	assert.Equal(t, n+1, count)

	loaded := 0
	r.file.Sheet.Range(func(_, _ interface{}) bool {
		loaded++
		return true
	})
	assert.Zero(t, loaded, "worksheet must not be materialised")
	assert.LessOrEqual(t, len(r.styles), 2, "styles are resolved once per index")
	require.NoError(t, r.Close())
}

func TestRowsScaleLinearly(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	small, large := 4000, 16000

	rowsSmall, elapsedSmall := drain(t, writeLargeWorkbook(t, small))
	rowsLarge, elapsedLarge := drain(t, writeLargeWorkbook(t, large))
	require.Equal(t, small+1, rowsSmall)
	require.Equal(t, large+1, rowsLarge)

	// four times the rows; a per-cell worksheet scan would take about sixteen
	// times as long
	ratio := float64(elapsedLarge) / float64(elapsedSmall+time.Millisecond)
	assert.Less(t, ratio, 10.0, "small=%v large=%v", elapsedSmall, elapsedLarge)
}

func TestSheetPart(t *testing.T) {
	p := writeWorkbook(t)
	seq, err := Format{}.Open(context.Background(), p, "Totals", config.NewSourceConfig())
	require.NoError(t, err)
	defer seq.Close()

	part, err := sheetPart(&seq.(*rows).zip.Reader, "Totals")
	require.NoError(t, err)
	assert.Equal(t, "xl/worksheets/sheet2.xml", part)

	_, err = sheetPart(&seq.(*rows).zip.Reader, "Nope")
	assert.Error(t, err)
}
