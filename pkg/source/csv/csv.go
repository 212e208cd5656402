// Package csv reads delimited text as a raw cell source.
//
// Tokens are split with encoding/csv and typed by cell.Classifier. The input
// may be compressed (recognised by suffix, or by magic bytes when the name has
// none) and may use any WHATWG encoding label; a byte order mark is dropped.
// When no delimiter is configured it is sniffed from the first line among
// comma, semicolon, tab and pipe.
package csv

import (
	"bufio"
	"bytes"
	"context"
	stdcsv "encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/compression"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/source"
)

const sniffWindow = 64 * 1024

var candidates = []rune{',', ';', '\t', '|'}

func init() {
	source.MustRegister(Format{})
}

// Format is the delimited text adapter.
type Format struct{}

// Name implements source.Format.
func (Format) Name() string { return source.FormatCSV }

// Extensions implements source.Format.
func (Format) Extensions() []string {
	return []string{".csv", ".tsv", ".tab", ".psv", ".txt"}
}

// Sheets returns the single pseudo-sheet of a text file, named after the file
// stem.
func (Format) Sheets(_ context.Context, path string) ([]string, error) {
	return []string{stem(path)}, nil
}

func stem(path string) string {
	_, base := compression.FromPath(filepath.Base(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open implements source.Format.
func (Format) Open(_ context.Context, path, selector string, cfg config.SourceConfig) (source.RowSequence, error) {
	if _, err := source.SelectSheet([]string{stem(path)}, selector); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to open file").
			WithDetail(errors.DetailSource, path)
	}

	rows, err := newRows(f, path, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	return rows, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type rows struct {
	file       io.Closer
	decomp     io.Closer
	counter    *countingReader
	reader     *stdcsv.Reader
	classifier *cell.Classifier
	path       string
	buf        []cell.RawCell
}

func newRows(f *os.File, path string, cfg config.SourceConfig) (*rows, error) {
	counter := &countingReader{r: f}
	raw := bufio.NewReaderSize(counter, sniffWindow)

	algo, _ := compression.FromPath(path)
	if algo == compression.None {
		header, _ := raw.Peek(compression.MagicLen)
		algo = compression.Sniff(header)
	}
	decomp, err := compression.NewReader(algo, raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to open compressed stream").
			WithDetail(errors.DetailSource, path)
	}

	var decoder transform.Transformer = transform.Nop
	if cfg.Encoding != "" {
		enc, err := htmlindex.Get(cfg.Encoding)
		if err != nil {
			decomp.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "unknown encoding").
				WithDetail("encoding", cfg.Encoding)
		}
		decoder = enc.NewDecoder()
	}
	text := bufio.NewReaderSize(transform.NewReader(decomp, unicode.BOMOverride(decoder)), sniffWindow)

	delim, err := delimiter(text, cfg.Delimiter)
	if err != nil {
		decomp.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to read leading bytes").
			WithDetail(errors.DetailSource, path)
	}

	reader := stdcsv.NewReader(text)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = cfg.LazyQuotes
	reader.ReuseRecord = true
	if cfg.Comment != "" {
		reader.Comment, _ = utf8.DecodeRuneInString(cfg.Comment)
	}

	return &rows{
		file:       f,
		decomp:     decomp,
		counter:    counter,
		reader:     reader,
		classifier: cell.NewClassifier(cfg),
		path:       path,
	}, nil
}

// delimiter returns the configured delimiter or sniffs one from the first line.
func delimiter(r *bufio.Reader, configured string) (rune, error) {
	if configured != "" {
		d, _ := utf8.DecodeRuneInString(configured)
		return d, nil
	}

	head, err := r.Peek(sniffWindow)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return 0, err
	}
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	return Sniff(string(head)), nil
}

// Sniff picks the candidate delimiter occurring most often outside quotes in
// line. Ties go to the earlier candidate; a line without any yields a comma.
func Sniff(line string) rune {
	counts := make(map[rune]int, len(candidates))
	quoted := false
	for _, r := range line {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[r]++
		}
	}

	best, bestCount := candidates[0], 0
	for _, c := range candidates {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

func (r *rows) Next() ([]cell.RawCell, error) {
	record, err := r.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		e := errors.Wrap(err, errors.ErrorTypeSourceRead, "malformed delimited text").
			WithDetail(errors.DetailSource, r.path)
		var pe *stdcsv.ParseError
		if errors.As(err, &pe) {
			e.WithDetail(errors.DetailRow, pe.StartLine)
		}
		return nil, e
	}

	r.buf = r.buf[:0]
	for _, field := range record {
		r.buf = append(r.buf, r.classifier.Classify(field))
	}
	return r.buf, nil
}

// BytesRead reports the bytes consumed from the file, before decompression.
func (r *rows) BytesRead() int64 { return r.counter.n }

func (r *rows) Close() error {
	derr := r.decomp.Close()
	if err := r.file.Close(); err != nil {
		return err
	}
	return derr
}
