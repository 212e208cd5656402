package source

import (
	"strconv"
	"strings"

	"github.com/pranav-jay26/Crossbow/pkg/errors"
)

// SelectSheet returns the index of the sheet named by selector. An empty
// selector picks the first sheet. An exact name match wins over reading the
// selector as a zero-based index.
func SelectSheet(sheets []string, selector string) (int, error) {
	if len(sheets) == 0 {
		return 0, errors.New(errors.ErrorTypeSourceOpen, "workbook has no sheets")
	}
	if selector == "" {
		return 0, nil
	}
	for i, name := range sheets {
		if name == selector {
			return i, nil
		}
	}
	if idx, err := strconv.Atoi(selector); err == nil && idx >= 0 && idx < len(sheets) {
		return idx, nil
	}
	return 0, errors.Newf(errors.ErrorTypeSourceOpen, "sheet %q not found, available sheets: %s",
		selector, strings.Join(sheets, ", ")).
		WithDetail(errors.DetailSheet, selector)
}
