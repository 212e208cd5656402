// Package xlsx reads Office Open XML workbooks (.xlsx, .xlsm) through
// excelize.
//
// Rows are pulled from the streaming row iterator. Cell types and style
// indexes come from a second decoder over the same worksheet part that moves
// in step with the iterator, so the worksheet is never loaded whole.
//
// Each cell keeps the kind the workbook stored and strings are never
// re-parsed. A numeric cell whose number format is a date or time format
// becomes a DateTime in the workbook's date system.
package xlsx

import (
	"archive/zip"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/source"
)

func init() {
	source.MustRegister(Format{})
}

// Format is the xlsx adapter.
type Format struct{}

// Name implements source.Format.
func (Format) Name() string { return source.FormatXLSX }

// Extensions implements source.Format.
func (Format) Extensions() []string { return []string{".xlsx", ".xlsm"} }

// Sheets implements source.Format.
func (Format) Sheets(_ context.Context, path string) ([]string, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// Open implements source.Format.
func (Format) Open(_ context.Context, path, selector string, _ config.SourceConfig) (source.RowSequence, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}

	sheets := f.GetSheetList()
	idx, err := source.SelectSheet(sheets, selector)
	if err != nil {
		f.Close()
		return nil, err
	}
	sheet := sheets[idx]

	it, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to read worksheet").
			WithDetail(errors.DetailSource, path).
			WithDetail(errors.DetailSheet, sheet)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		it.Close()
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to open workbook").
			WithDetail(errors.DetailSource, path)
	}
	attrs, err := newAttrReader(&zr.Reader, sheet)
	if err != nil {
		zr.Close()
		it.Close()
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to read worksheet").
			WithDetail(errors.DetailSource, path).
			WithDetail(errors.DetailSheet, sheet)
	}

	var date1904 bool
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	return &rows{
		file:     f,
		iter:     it,
		zip:      zr,
		attrs:    attrs,
		path:     path,
		sheet:    sheet,
		date1904: date1904,
		styles:   make(map[int]bool),
	}, nil
}

func openWorkbook(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to open workbook").
			WithDetail(errors.DetailSource, path)
	}
	return f, nil
}

type rows struct {
	file     *excelize.File
	iter     *excelize.Rows
	zip      *zip.ReadCloser
	attrs    *attrReader
	path     string
	sheet    string
	date1904 bool
	row      int
	styles   map[int]bool // style index -> is date format
	buf      []cell.RawCell
}

func (r *rows) Next() ([]cell.RawCell, error) {
	if !r.iter.Next() {
		if err := r.iter.Error(); err != nil {
			return nil, r.readError(err)
		}
		return nil, io.EOF
	}
	r.row++

	values, err := r.iter.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, r.readError(err)
	}

	attrs, err := r.attrs.row(r.row)
	if err != nil {
		return nil, r.readError(err)
	}
	rowStyle := r.iter.GetRowOpts().StyleID

	r.buf = r.buf[:0]
	for i, v := range values {
		ca := cellAttrs{style: -1}
		if i < len(attrs) {
			ca = attrs[i]
		}
		if ca.style < 0 {
			ca.style = rowStyle
		}
		c, err := r.convert(ca, v)
		if err != nil {
			return nil, r.readError(err).WithDetail(errors.DetailColumn, i+1)
		}
		r.buf = append(r.buf, c)
	}
	return r.buf, nil
}

func (r *rows) readError(err error) *errors.Error {
	return errors.Wrap(err, errors.ErrorTypeSourceRead, "malformed worksheet").
		WithDetail(errors.DetailSource, r.path).
		WithDetail(errors.DetailSheet, r.sheet).
		WithDetail(errors.DetailRow, r.row)
}

func (r *rows) convert(ca cellAttrs, v string) (cell.RawCell, error) {
	if v == "" {
		return cell.Empty(), nil
	}

	switch ca.typ {
	case "b":
		return cell.Bool(v == "1" || strings.EqualFold(v, "true")), nil
	case "d":
		if t, ok := parseISO(v); ok {
			return cell.DateTime(t), nil
		}
		return r.numeric(ca.style, v, true)
	case "", "n":
		return r.numeric(ca.style, v, false)
	default:
		// shared and inline strings, string formula results and error values
		return cell.Text(v), nil
	}
}

func (r *rows) numeric(style int, v string, forceDate bool) (cell.RawCell, error) {
	isDate := forceDate
	if !isDate {
		var err error
		if isDate, err = r.dateStyled(style); err != nil {
			return cell.RawCell{}, err
		}
	}

	if isDate {
		serial, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cell.Text(v), nil
		}
		if t, ok := cell.SerialToTime(serial, r.date1904); ok {
			return cell.DateTime(t), nil
		}
		return cell.Float(serial), nil
	}

	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return cell.Int(i), nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return cell.Float(f), nil
	}
	return cell.Text(v), nil
}

// dateStyled reports whether the style renders numbers as dates. Each style
// index is looked up once.
func (r *rows) dateStyled(idx int) (bool, error) {
	if idx <= 0 {
		return false, nil
	}
	if isDate, ok := r.styles[idx]; ok {
		return isDate, nil
	}

	style, err := r.file.GetStyle(idx)
	if err != nil {
		return false, err
	}
	isDate := IsDateFormat(style.NumFmt)
	if style.CustomNumFmt != nil {
		isDate = IsDateFormatCode(*style.CustomNumFmt)
	}
	r.styles[idx] = isDate
	return isDate, nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
	"15:04:05.999999999",
}

func parseISO(v string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (r *rows) Date1904() bool { return r.date1904 }

func (r *rows) Close() error {
	errs := []error{r.iter.Close(), r.attrs.Close(), r.zip.Close(), r.file.Close()}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
