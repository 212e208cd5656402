package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
)

// ColumnName returns the generated name of the 0-based column i.
func ColumnName(i int) string {
	return fmt.Sprintf("column_%d", i+1)
}

// HeaderNames turns a header row into column names. Blank names become
// column_N. Repeated names are suffixed with _1, _2... when dedupe is set and
// rejected otherwise.
func HeaderNames(row []cell.RawCell, normalize, dedupe bool) ([]string, error) {
	names := make([]string, len(row))
	for i, c := range row {
		name := ""
		if !c.IsEmpty() {
			name = cell.Format(c)
		}
		if normalize {
			name = strings.TrimSpace(norm.NFC.String(name))
		}
		if name == "" {
			name = ColumnName(i)
		}
		names[i] = name
	}

	seen := make(map[string]int, len(names))
	for _, name := range names {
		seen[name]++
	}
	counts := make(map[string]int, len(names))
	for i, name := range names {
		if seen[name] == 1 {
			continue
		}
		counts[name]++
		if counts[name] == 1 {
			continue
		}
		if !dedupe {
			return nil, errors.New(errors.ErrorTypeSchemaMismatch, "duplicate column name in header").
				WithDetail(errors.DetailColumn, i+1).
				WithDetail(errors.DetailColumnName, name)
		}
		names[i] = uniqueName(name, counts[name]-1, seen)
	}
	return names, nil
}

func uniqueName(base string, n int, taken map[string]int) string {
	for {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if taken[candidate] == 0 {
			taken[candidate] = 1
			return candidate
		}
		n++
	}
}
