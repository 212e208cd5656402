// Package compression provides streaming decompression of compressed inputs.
//
// # Overview
//
// Delimited text is often shipped compressed. The algorithm is recognised from
// the file suffix and the input is decoded on the fly, so a compressed source
// is never inflated on disk or fully in memory:
//
//	algo, base := compression.FromPath("sales.csv.zst") // Zstd, "sales.csv"
//	rc, err := compression.NewReader(algo, f)
//	defer rc.Close()
//
// # Supported Algorithms
//
//   - Gzip (.gz, .gzip)
//   - Zstd (.zst, .zstd)
//   - LZ4 (.lz4)
//   - S2 (.s2)
//   - Snappy framed streams (.sz, .snappy)
//   - XZ (.xz)
//   - Bzip2 (.bz2, read only)
//
// NewWriter produces the same stream formats; it backs tests and tooling that
// need compressed fixtures.
package compression

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// XZ represents xz compression
	XZ Algorithm = "xz"
	// Bzip2 represents bzip2 compression
	Bzip2 Algorithm = "bzip2"
)

var suffixes = map[string]Algorithm{
	".gz":     Gzip,
	".gzip":   Gzip,
	".zst":    Zstd,
	".zstd":   Zstd,
	".lz4":    LZ4,
	".s2":     S2,
	".sz":     Snappy,
	".snappy": Snappy,
	".xz":     XZ,
	".bz2":    Bzip2,
}

// Suffixes returns the recognised file suffixes.
func Suffixes() []string {
	out := make([]string, 0, len(suffixes))
	for s := range suffixes {
		out = append(out, s)
	}
	return out
}

// FromPath returns the algorithm implied by the suffix of path and the path
// with that suffix removed. Unknown suffixes yield None and the path as is.
func FromPath(path string) (Algorithm, string) {
	ext := strings.ToLower(filepath.Ext(path))
	if algo, ok := suffixes[ext]; ok {
		return algo, path[:len(path)-len(ext)]
	}
	return None, path
}

var magics = []struct {
	prefix []byte
	algo   Algorithm
}{
	{[]byte{0x1f, 0x8b}, Gzip},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, Zstd},
	{[]byte{0x04, 0x22, 0x4d, 0x18}, LZ4},
	{[]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, XZ},
	{[]byte("BZh"), Bzip2},
	{[]byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'}, Snappy},
	{[]byte{0xff, 0x06, 0x00, 0x00, 'S', '2', 's', 'T', 'w', 'O'}, S2},
}

// MagicLen is the number of leading bytes Sniff needs to see.
const MagicLen = 10

// Sniff recognises a compressed stream from its leading bytes.
func Sniff(header []byte) Algorithm {
	for _, m := range magics {
		if bytes.HasPrefix(header, m.prefix) {
			return m.algo
		}
	}
	return None
}

// NewReader wraps r with a decompressor for algo. Closing the result releases
// the decompressor, not r.
func NewReader(algo Algorithm, r io.Reader) (io.ReadCloser, error) {
	switch algo {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return zr, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open xz stream: %w", err)
		}
		return io.NopCloser(xr), nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
}

// NewWriter wraps w with a compressor for algo. Close flushes the stream but
// does not close w.
func NewWriter(algo Algorithm, w io.Writer) (io.WriteCloser, error) {
	switch algo {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return enc, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	case S2:
		return s2.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case XZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xw, nil
	default:
		return nil, fmt.Errorf("compression not supported for writing: %s", algo)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
