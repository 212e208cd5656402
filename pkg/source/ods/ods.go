// Package ods reads OpenDocument spreadsheets (.ods).
//
// content.xml is streamed straight out of the zip container with an XML token
// decoder, so memory use is bounded by the widest row rather than the sheet.
// Cells are typed by office:value-type. Repeated rows and columns are expanded,
// except for trailing empty repetition, which office suites write to pad a
// sheet to its full size and which is dropped.
package ods

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/source"
)

const (
	nsOffice = "urn:oasis:names:tc:opendocument:xmlns:office:1.0"
	nsTable  = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	nsText   = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"

	contentEntry = "content.xml"

	// maxColumns is the column limit of current office suites.
	maxColumns = 16384
)

func init() {
	source.MustRegister(Format{})
}

// Format is the ods adapter.
type Format struct{}

// Name implements source.Format.
func (Format) Name() string { return source.FormatODS }

// Extensions implements source.Format.
func (Format) Extensions() []string { return []string{".ods"} }

// Sheets implements source.Format.
func (Format) Sheets(_ context.Context, path string) ([]string, error) {
	doc, err := openContent(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var names []string
	for {
		start, err := doc.nextTable()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "malformed spreadsheet content").
				WithDetail(errors.DetailSource, path)
		}
		names = append(names, attr(start, nsTable, "name"))
		if err := doc.dec.Skip(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "malformed spreadsheet content").
				WithDetail(errors.DetailSource, path)
		}
	}
}

// Open implements source.Format.
func (f Format) Open(ctx context.Context, path, selector string, cfg config.SourceConfig) (source.RowSequence, error) {
	names, err := f.Sheets(ctx, path)
	if err != nil {
		return nil, err
	}
	idx, err := source.SelectSheet(names, selector)
	if err != nil {
		return nil, err
	}

	doc, err := openContent(path)
	if err != nil {
		return nil, err
	}
	for i := 0; ; i++ {
		if _, err := doc.nextTable(); err != nil {
			doc.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "malformed spreadsheet content").
				WithDetail(errors.DetailSource, path)
		}
		if i == idx {
			break
		}
		if err := doc.dec.Skip(); err != nil {
			doc.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "malformed spreadsheet content").
				WithDetail(errors.DetailSource, path)
		}
	}

	return &rows{doc: doc, path: path, sheet: names[idx]}, nil
}

type document struct {
	zr  *zip.ReadCloser
	rc  io.ReadCloser
	dec *xml.Decoder
}

func openContent(path string) (*document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to open spreadsheet container").
			WithDetail(errors.DetailSource, path)
	}
	for _, zf := range zr.File {
		if zf.Name != contentEntry {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			zr.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to open spreadsheet content").
				WithDetail(errors.DetailSource, path)
		}
		return &document{zr: zr, rc: rc, dec: xml.NewDecoder(rc)}, nil
	}
	zr.Close()
	return nil, errors.New(errors.ErrorTypeSourceOpen, "spreadsheet has no content.xml").
		WithDetail(errors.DetailSource, path)
}

// nextTable advances to the next table:table start element.
func (d *document) nextTable() (xml.StartElement, error) {
	for {
		tok, err := d.dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok && is(se.Name, nsTable, "table") {
			return se, nil
		}
	}
}

func (d *document) Close() error {
	rerr := d.rc.Close()
	if err := d.zr.Close(); err != nil {
		return err
	}
	return rerr
}

func is(name xml.Name, space, local string) bool {
	return name.Space == space && name.Local == local
}

func attr(se xml.StartElement, space, local string) string {
	for _, a := range se.Attr {
		if is(a.Name, space, local) {
			return a.Value
		}
	}
	return ""
}
