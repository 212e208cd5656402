// Package testutil writes input fixtures for conversion tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pranav-jay26/Crossbow/pkg/compression"
)

// WriteFile creates name inside a fresh test directory and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// WriteCompressed stores content compressed with the algorithm implied by
// the suffix of name.
func WriteCompressed(t testing.TB, name, content string) string {
	t.Helper()
	algo, _ := compression.FromPath(name)

	var buf bytes.Buffer
	w, err := compression.NewWriter(algo, &buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return WriteFile(t, name, buf.String())
}

// Sheet is one worksheet of a generated workbook. The first row is written
// as is, so it may hold headers.
type Sheet struct {
	Name string
	Rows [][]interface{}
}

// WriteWorkbook saves the sheets as an xlsx file in a fresh test directory.
func WriteWorkbook(t testing.TB, name string, sheets ...Sheet) string {
	t.Helper()
	require.NotEmpty(t, sheets)

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.Name))
		} else {
			_, err := f.NewSheet(s.Name)
			require.NoError(t, err)
		}
		for r, row := range s.Rows {
			row := row
			require.NoError(t, f.SetSheetRow(s.Name, fmt.Sprintf("A%d", r+1), &row))
		}
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// GenerateCSV writes a CSV with an id, name, value and timestamp column and
// the given number of data rows. Every seventh value is left empty.
func GenerateCSV(t testing.TB, dir string, rows int) string {
	t.Helper()

	path := filepath.Join(dir, fmt.Sprintf("generated_%d.csv", rows))
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	_, err = file.WriteString("id,name,value,timestamp\n")
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		value := fmt.Sprintf("%.2f", float64(i)*1.25)
		if i%7 == 6 {
			value = ""
		}
		_, err = fmt.Fprintf(file, "%d,record_%d,%s,%s\n", i, i, value, base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339))
		require.NoError(t, err)
	}
	return path
}
