package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPath(t *testing.T) {
	tests := []struct {
		path string
		algo Algorithm
		base string
	}{
		{"data.csv", None, "data.csv"},
		{"data.csv.gz", Gzip, "data.csv"},
		{"DATA.CSV.GZ", Gzip, "DATA.CSV"},
		{"data.tsv.zst", Zstd, "data.tsv"},
		{"data.csv.lz4", LZ4, "data.csv"},
		{"data.csv.s2", S2, "data.csv"},
		{"data.csv.sz", Snappy, "data.csv"},
		{"data.csv.snappy", Snappy, "data.csv"},
		{"data.csv.xz", XZ, "data.csv"},
		{"data.csv.bz2", Bzip2, "data.csv"},
		{"book.xlsx", None, "book.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			algo, base := FromPath(tt.path)
			assert.Equal(t, tt.algo, algo)
			assert.Equal(t, tt.base, base)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("id,name,score\n1,alpha,3.5\n2,beta,4\n"), 200)

	for _, algo := range []Algorithm{None, Gzip, Zstd, LZ4, S2, Snappy, XZ} {
		t.Run(string(algo), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(algo, &buf)
			require.NoError(t, err)
			_, err = w.Write(original)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := NewReader(algo, &buf)
			require.NoError(t, err)
			defer r.Close()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, original, got)
		})
	}
}

func TestUnsupported(t *testing.T) {
	_, err := NewWriter(Bzip2, io.Discard)
	assert.Error(t, err)

	_, err = NewReader(Algorithm("brotli"), bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestCorruptGzip(t *testing.T) {
	_, err := NewReader(Gzip, bytes.NewReader([]byte("not gzip at all")))
	assert.Error(t, err)
}

func TestSuffixes(t *testing.T) {
	assert.Contains(t, Suffixes(), ".gz")
	assert.Len(t, Suffixes(), 10)
}

func TestSniff(t *testing.T) {
	for _, algo := range []Algorithm{Gzip, Zstd, LZ4, S2, Snappy, XZ} {
		t.Run(string(algo), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(algo, &buf)
			require.NoError(t, err)
			_, err = w.Write([]byte("a,b\n1,2\n"))
			require.NoError(t, err)
			require.NoError(t, w.Close())

			assert.Equal(t, algo, Sniff(buf.Bytes()))
		})
	}

	assert.Equal(t, Bzip2, Sniff([]byte("BZh91AY&SY")))
	assert.Equal(t, None, Sniff([]byte("id,name\n")))
	assert.Equal(t, None, Sniff(nil))
}
