package ods

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
)

// timeBase anchors time-of-day values, matching the spreadsheet day zero.
var timeBase = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

type rows struct {
	doc   *document
	path  string
	sheet string
	row   int
	done  bool

	// empty rows seen but not yet emitted; dropped at the end of the table
	pendingEmpty int
	// empty rows to emit before current
	flushEmpty  int
	current     []cell.RawCell
	currentLeft int

	buf  []cell.RawCell
	text strings.Builder
}

func (r *rows) Next() ([]cell.RawCell, error) {
	for {
		if r.flushEmpty > 0 {
			r.flushEmpty--
			r.row++
			return nil, nil
		}
		if r.currentLeft > 0 {
			r.currentLeft--
			r.row++
			return r.current, nil
		}
		if r.done {
			return nil, io.EOF
		}

		cells, repeat, err := r.readRow()
		if err == io.EOF {
			r.done = true
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSourceRead, "malformed spreadsheet content").
				WithDetail(errors.DetailSource, r.path).
				WithDetail(errors.DetailSheet, r.sheet).
				WithDetail(errors.DetailRow, r.row+r.pendingEmpty+1)
		}
		if len(cells) == 0 {
			r.pendingEmpty += repeat
			continue
		}
		r.flushEmpty, r.pendingEmpty = r.pendingEmpty, 0
		r.current, r.currentLeft = cells, repeat
	}
}

// readRow decodes the next table:table-row of the current table. It returns
// io.EOF at the end of the table.
func (r *rows) readRow() ([]cell.RawCell, int, error) {
	dec := r.doc.dec
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, 0, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if is(t.Name, nsTable, "table-row") {
				repeat := repeated(t, "number-rows-repeated")
				cells, err := r.readCells()
				return cells, repeat, err
			}
		case xml.EndElement:
			if is(t.Name, nsTable, "table") {
				return nil, 0, io.EOF
			}
		}
	}
}

func (r *rows) readCells() ([]cell.RawCell, error) {
	dec := r.doc.dec
	r.buf = r.buf[:0]
	pending := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !is(t.Name, nsTable, "table-cell") && !is(t.Name, nsTable, "covered-table-cell") {
				if err := dec.Skip(); err != nil {
					return nil, unexpectedEOF(err)
				}
				continue
			}
			c, err := r.readCell(t)
			if err != nil {
				return nil, err
			}
			repeat := repeated(t, "number-columns-repeated")
			if c.IsEmpty() {
				pending += repeat
				continue
			}
			for ; pending > 0 && len(r.buf) < maxColumns; pending-- {
				r.buf = append(r.buf, cell.Empty())
			}
			pending = 0
			for i := 0; i < repeat && len(r.buf) < maxColumns; i++ {
				r.buf = append(r.buf, c)
			}
		case xml.EndElement:
			if is(t.Name, nsTable, "table-row") {
				return r.buf, nil
			}
		}
	}
}

// readCell decodes one cell element whose start tag is se.
func (r *rows) readCell(se xml.StartElement) (cell.RawCell, error) {
	text, err := r.readText()
	if err != nil {
		return cell.RawCell{}, err
	}

	valueType := attr(se, nsOffice, "value-type")
	switch valueType {
	case "float", "percentage", "currency":
		v := attr(se, nsOffice, "value")
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return cell.Int(i), nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cell.RawCell{}, fmt.Errorf("invalid %s value %q", valueType, v)
		}
		return cell.Float(f), nil
	case "boolean":
		v := attr(se, nsOffice, "boolean-value")
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cell.RawCell{}, fmt.Errorf("invalid boolean value %q", v)
		}
		return cell.Bool(b), nil
	case "date":
		v := attr(se, nsOffice, "date-value")
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return cell.DateTime(t), nil
			}
		}
		return cell.RawCell{}, fmt.Errorf("invalid date value %q", v)
	case "time":
		v := attr(se, nsOffice, "time-value")
		d, err := parseDuration(v)
		if err != nil {
			return cell.RawCell{}, err
		}
		return cell.DateTime(timeBase.Add(d)), nil
	case "string":
		if v := attr(se, nsOffice, "string-value"); v != "" {
			return cell.Text(v), nil
		}
	}

	if text == "" {
		return cell.Empty(), nil
	}
	return cell.Text(text), nil
}

// readText collects the paragraphs of the current cell until its end tag.
// Paragraphs are joined with newlines; annotations are skipped.
func (r *rows) readText() (string, error) {
	dec := r.doc.dec
	r.text.Reset()
	paragraphs, depth := 0, 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case is(t.Name, nsOffice, "annotation"):
				if err := dec.Skip(); err != nil {
					return "", unexpectedEOF(err)
				}
				continue
			case is(t.Name, nsText, "p"), is(t.Name, nsText, "h"):
				if paragraphs > 0 {
					r.text.WriteByte('\n')
				}
				paragraphs++
			case is(t.Name, nsText, "s"):
				n := repeated(t, "c")
				r.text.WriteString(strings.Repeat(" ", n))
			case is(t.Name, nsText, "tab"):
				r.text.WriteByte('\t')
			case is(t.Name, nsText, "line-break"):
				r.text.WriteByte('\n')
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return r.text.String(), nil
			}
			depth--
		case xml.CharData:
			if depth > 0 {
				r.text.Write(t)
			}
		}
	}
}

// repeated reads a repetition count attribute. The text:s element uses the
// text namespace; everything else lives in the table namespace.
func repeated(se xml.StartElement, local string) int {
	v := attr(se, nsTable, local)
	if local == "c" {
		v = attr(se, nsText, local)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// parseDuration parses the ISO 8601 durations used for time values, such as
// PT13H45M30.5S.
func parseDuration(v string) (time.Duration, error) {
	rest, ok := strings.CutPrefix(v, "PT")
	if !ok {
		return 0, fmt.Errorf("invalid time value %q", v)
	}
	var total time.Duration
	for rest != "" {
		i := strings.IndexAny(rest, "HMS")
		if i <= 0 {
			return 0, fmt.Errorf("invalid time value %q", v)
		}
		n, err := strconv.ParseFloat(rest[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid time value %q", v)
		}
		unit := time.Second
		switch rest[i] {
		case 'H':
			unit = time.Hour
		case 'M':
			unit = time.Minute
		}
		total += time.Duration(n * float64(unit))
		rest = rest[i+1:]
	}
	return total, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (r *rows) Close() error {
	return r.doc.Close()
}
