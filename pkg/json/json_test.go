package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name  string  `json:"name"`
	Score float64 `json:"score,omitempty"`
}

func TestStreamingEncoderLines(t *testing.T) {
	var buf bytes.Buffer
	se := NewStreamingEncoder(&buf, false)
	require.NoError(t, se.Encode(row{Name: "a", Score: 1.5}))
	require.NoError(t, se.Encode(row{Name: "<b>"}))
	require.NoError(t, se.Close())

	assert.Equal(t, "{\"name\":\"a\",\"score\":1.5}\n{\"name\":\"<b>\"}\n", buf.String())
}

func TestStreamingEncoderArray(t *testing.T) {
	var buf bytes.Buffer
	se := NewStreamingEncoder(&buf, true)
	require.NoError(t, se.Encode(row{Name: "a"}))
	require.NoError(t, se.Encode(row{Name: "b"}))
	require.NoError(t, se.Close())

	var out []row
	require.NoError(t, Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, []row{{Name: "a"}, {Name: "b"}}, out)
}

func TestWritePretty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string]int{"rows": 3}, true))
	assert.Equal(t, "{\n  \"rows\": 3\n}\n", buf.String())

	data, err := Marshal(row{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"x"}`, string(data))
}
