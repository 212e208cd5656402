// Package source defines the raw cell source contract and dispatches
// identifiers to format adapters.
//
// # Overview
//
// A format adapter turns one sheet of a container (a workbook, a delimited
// text file) into a finite sequence of rows of typed cells. The conversion
// core only ever sees RowSequence; everything container specific stays in the
// adapter packages, which register themselves from init:
//
//	import _ "github.com/pranav-jay26/Crossbow/pkg/source/csv"
//
//	rows, err := source.Open(ctx, "s3://bucket/report.xlsx", "Summary", cfg)
//	if err != nil {
//	    return err
//	}
//	defer rows.Close()
//	for {
//	    cells, err := rows.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// # Identifiers
//
// Open accepts a local path, "-" for standard input, s3://bucket/key and
// gs://bucket/object. Standard input and remote objects are spooled to a
// temporary file which is removed when the sequence is closed.
//
// # Detection
//
// The format option wins when set. Otherwise the extension left after
// stripping a compression suffix selects the adapter, and as a last resort the
// leading bytes are inspected: zip containers are told apart by their
// mimetype entry, compound documents are legacy workbooks and anything else is
// read as delimited text.
package source

import (
	"context"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/config"
)

// RowSequence yields the rows of one sheet in source order. Next returns
// io.EOF once the sequence is exhausted; a sequence cannot be restarted.
// Malformed bytes surface as ErrorTypeSourceRead errors. The returned slice is
// only valid until the following call to Next.
type RowSequence interface {
	Next() ([]cell.RawCell, error)
	Close() error
}

// ByteCounter is implemented by sequences that can report how many source
// bytes they have consumed.
type ByteCounter interface {
	BytesRead() int64
}

// DateSystem is implemented by workbook sequences that know their epoch.
type DateSystem interface {
	Date1904() bool
}

// Format is a container adapter.
type Format interface {
	// Name is the value accepted by the format option
	Name() string
	// Extensions lists the lower-case file suffixes the adapter claims
	Extensions() []string
	// Sheets lists the sheet names in workbook order
	Sheets(ctx context.Context, path string) ([]string, error)
	// Open starts reading the selected sheet
	Open(ctx context.Context, path, selector string, cfg config.SourceConfig) (RowSequence, error)
}

// Date1904 reports whether rows uses the 1904 date system.
func Date1904(rows RowSequence) bool {
	if ds, ok := rows.(DateSystem); ok {
		return ds.Date1904()
	}
	return false
}

// BytesRead returns the bytes consumed by rows, or -1 when unknown.
func BytesRead(rows RowSequence) int64 {
	if bc, ok := rows.(ByteCounter); ok {
		return bc.BytesRead()
	}
	return -1
}
