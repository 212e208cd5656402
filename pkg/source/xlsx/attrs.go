package xlsx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// cellAttrs holds the attributes of a <c> element that decide how its value
// is read.
type cellAttrs struct {
	typ   string // t attribute: b, d, e, n, s, str, inlineStr or empty
	style int    // s attribute, -1 when absent
}

// attrReader walks the worksheet part next to the excelize row iterator and
// yields the cell attributes of one row at a time, so type and style lookups
// never load the whole worksheet.
type attrReader struct {
	rc  io.ReadCloser
	dec *xml.Decoder

	pending    int // number of the buffered row, 0 when none
	pendingBuf []cellAttrs
	lastRow    int
	done       bool
}

func newAttrReader(zr *zip.Reader, sheet string) (*attrReader, error) {
	part, err := sheetPart(zr, sheet)
	if err != nil {
		return nil, err
	}
	f, err := zr.Open(part)
	if err != nil {
		return nil, fmt.Errorf("failed to open worksheet part %s: %w", part, err)
	}
	return &attrReader{rc: f, dec: xml.NewDecoder(f)}, nil
}

// row returns the attributes of row number n, indexed by column. Rows must
// be requested in ascending order; a row absent from the part yields nil.
func (a *attrReader) row(n int) ([]cellAttrs, error) {
	for {
		if a.pending > n {
			return nil, nil
		}
		if a.pending == n && n != 0 {
			a.pending = 0
			return a.pendingBuf, nil
		}
		if a.done {
			return nil, nil
		}
		if err := a.advance(); err != nil {
			return nil, err
		}
	}
}

// advance buffers the next <row> element.
func (a *attrReader) advance() error {
	a.pending = 0
	a.pendingBuf = a.pendingBuf[:0]
	for {
		tok, err := a.dec.Token()
		if err == io.EOF {
			a.done = true
			return nil
		}
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "row" {
				continue
			}
			num := a.lastRow + 1
			if v := attr(el.Attr, "r"); v != "" {
				if num, err = strconv.Atoi(v); err != nil {
					return fmt.Errorf("invalid row number %q: %w", v, err)
				}
			}
			a.lastRow = num
			if err := a.readCells(); err != nil {
				return err
			}
			a.pending = num
			return nil
		case xml.EndElement:
			if el.Name.Local == "sheetData" {
				a.done = true
				return nil
			}
		}
	}
}

func (a *attrReader) readCells() error {
	col := 0
	for {
		tok, err := a.dec.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "c" {
				if err := a.dec.Skip(); err != nil {
					return err
				}
				continue
			}
			col++
			if ref := attr(el.Attr, "r"); ref != "" {
				if col, _, err = excelize.CellNameToCoordinates(ref); err != nil {
					return err
				}
			}
			ca := cellAttrs{typ: attr(el.Attr, "t"), style: -1}
			if s := attr(el.Attr, "s"); s != "" {
				if ca.style, err = strconv.Atoi(s); err != nil {
					return fmt.Errorf("invalid style index %q: %w", s, err)
				}
			}
			for len(a.pendingBuf) < col {
				a.pendingBuf = append(a.pendingBuf, cellAttrs{style: -1})
			}
			a.pendingBuf[col-1] = ca
			if err := a.dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			if el.Name.Local == "row" {
				return nil
			}
		}
	}
}

func (a *attrReader) Close() error {
	return a.rc.Close()
}

func attr(attrs []xml.Attr, local string) string {
	for _, at := range attrs {
		if at.Name.Local == local && at.Name.Space == "" {
			return at.Value
		}
	}
	return ""
}

type xmlRelationships struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type xmlWorkbook struct {
	Sheets []struct {
		Name  string     `xml:"name,attr"`
		Attrs []xml.Attr `xml:",any,attr"`
	} `xml:"sheets>sheet"`
}

// sheetPart maps a sheet name to its worksheet part through the package
// and workbook relationships.
func sheetPart(zr *zip.Reader, sheet string) (string, error) {
	workbook := "xl/workbook.xml"
	var root xmlRelationships
	if err := decodePart(zr, "_rels/.rels", &root); err == nil {
		for _, rel := range root.Relationships {
			if strings.HasSuffix(rel.Type, "/officeDocument") {
				workbook = resolveTarget("", rel.Target)
			}
		}
	}

	var wb xmlWorkbook
	if err := decodePart(zr, workbook, &wb); err != nil {
		return "", err
	}
	var rid string
	for _, s := range wb.Sheets {
		if s.Name != sheet {
			continue
		}
		for _, at := range s.Attrs {
			if at.Name.Local == "id" && at.Name.Space != "" {
				rid = at.Value
			}
		}
	}
	if rid == "" {
		return "", fmt.Errorf("sheet %q not found in %s", sheet, workbook)
	}

	dir, base := path.Split(workbook)
	var rels xmlRelationships
	if err := decodePart(zr, dir+"_rels/"+base+".rels", &rels); err != nil {
		return "", err
	}
	for _, rel := range rels.Relationships {
		if rel.ID == rid {
			return resolveTarget(dir, rel.Target), nil
		}
	}
	return "", fmt.Errorf("relationship %s of sheet %q not found", rid, sheet)
}

func resolveTarget(dir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(dir, target))
}

func decodePart(zr *zip.Reader, name string, v interface{}) error {
	f, err := zr.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()
	if err := xml.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}
