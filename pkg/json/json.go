// Package json wraps goccy/go-json for the CLI output paths: documents,
// pretty printed documents and JSON lines streams.
package json

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// Marshal is a drop-in replacement for encoding/json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Write encodes v to w followed by a newline, indented when pretty is set.
func Write(w io.Writer, v interface{}, pretty bool) error {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// StreamingEncoder writes values one by one, either as JSON lines or as the
// elements of one array.
type StreamingEncoder struct {
	w       io.Writer
	enc     *gojson.Encoder
	isArray bool
	first   bool
	err     error
}

// NewStreamingEncoder creates a streaming encoder on w.
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	se := &StreamingEncoder{w: w, enc: enc, isArray: isArray, first: true}
	if isArray {
		se.write("[")
	}
	return se
}

func (se *StreamingEncoder) write(s string) {
	if se.err == nil {
		_, se.err = io.WriteString(se.w, s)
	}
}

// Encode writes one value.
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.isArray && !se.first {
		se.write(",")
	}
	se.first = false
	if se.err != nil {
		return se.err
	}
	se.err = se.enc.Encode(v)
	return se.err
}

// Close terminates the array, if any, and returns the first write error.
func (se *StreamingEncoder) Close() error {
	if se.isArray {
		se.write("]\n")
	}
	return se.err
}
