// Package xls reads legacy BIFF workbooks (.xls) through extrame/xls.
//
// The BIFF reader renders every cell as text, so values go through the same
// classifier as delimited text. The workbook is decoded in memory when opened.
package xls

import (
	"context"
	"fmt"
	"io"

	"github.com/extrame/xls"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/source"
)

const charset = "utf-8"

func init() {
	source.MustRegister(Format{})
}

// Format is the xls adapter.
type Format struct{}

// Name implements source.Format.
func (Format) Name() string { return source.FormatXLS }

// Extensions implements source.Format.
func (Format) Extensions() []string { return []string{".xls"} }

// Sheets implements source.Format.
func (Format) Sheets(_ context.Context, path string) ([]string, error) {
	wb, closer, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	names, err := sheetNames(wb)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "malformed workbook").
			WithDetail(errors.DetailSource, path)
	}
	return names, nil
}

// Open implements source.Format.
func (Format) Open(_ context.Context, path, selector string, cfg config.SourceConfig) (source.RowSequence, error) {
	wb, closer, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}

	names, err := sheetNames(wb)
	if err != nil {
		closer.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "malformed workbook").
			WithDetail(errors.DetailSource, path)
	}
	idx, err := source.SelectSheet(names, selector)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &rows{
		closer:     closer,
		sheet:      wb.GetSheet(idx),
		name:       names[idx],
		path:       path,
		classifier: cell.NewClassifier(cfg),
	}, nil
}

func openWorkbook(path string) (wb *xls.WorkBook, closer io.Closer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrorTypeSourceOpen, fmt.Sprintf("malformed workbook: %v", r)).
				WithDetail(errors.DetailSource, path)
		}
	}()

	wb, closer, err = xls.OpenWithCloser(path, charset)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to open workbook").
			WithDetail(errors.DetailSource, path)
	}
	return wb, closer, nil
}

func sheetNames(wb *xls.WorkBook) (names []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	for i := 0; i < wb.NumSheets(); i++ {
		if s := wb.GetSheet(i); s != nil {
			names = append(names, s.Name)
		}
	}
	return names, nil
}

type rows struct {
	closer     io.Closer
	sheet      *xls.WorkSheet
	name       string
	path       string
	classifier *cell.Classifier
	next       int
	buf        []cell.RawCell
	values     []string
}

func (r *rows) Next() (out []cell.RawCell, err error) {
	if r.sheet == nil || r.next > int(r.sheet.MaxRow) {
		return nil, io.EOF
	}
	idx := r.next
	row := sheetRow(r.sheet, idx)
	if row == nil && r.sheet.MaxRow == 0 {
		// MaxRow is 0 both for a single row and for no rows at all
		return nil, io.EOF
	}
	r.next++

	defer func() {
		if p := recover(); p != nil {
			err = errors.New(errors.ErrorTypeSourceRead, fmt.Sprintf("malformed row: %v", p)).
				WithDetail(errors.DetailSource, r.path).
				WithDetail(errors.DetailSheet, r.name).
				WithDetail(errors.DetailRow, idx+1)
		}
	}()

	r.values = r.values[:0]
	if row != nil {
		for c := 0; c < row.LastCol(); c++ {
			if c < row.FirstCol() {
				r.values = append(r.values, "")
				continue
			}
			r.values = append(r.values, row.Col(c))
		}
	}

	r.buf = classifyRow(r.buf[:0], r.values, r.classifier)
	return r.buf, nil
}

// sheetRow returns row idx, or nil when the sheet has no record for it.
// WorkSheet.Row dereferences a missing entry, so its panic means a blank row.
func sheetRow(s *xls.WorkSheet, idx int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return s.Row(idx)
}

// classifyRow appends the typed cells for values to dst. Blank BIFF cells are
// always empty, whatever the null tokens say.
func classifyRow(dst []cell.RawCell, values []string, cls *cell.Classifier) []cell.RawCell {
	for _, v := range values {
		if v == "" {
			dst = append(dst, cell.Empty())
			continue
		}
		dst = append(dst, cls.Classify(v))
	}
	return dst
}

func (r *rows) Close() error {
	return r.closer.Close()
}
