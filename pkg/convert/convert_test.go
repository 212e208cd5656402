package convert_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/convert"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/logger"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
	"github.com/pranav-jay26/Crossbow/pkg/testutil"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()
	people := testutil.Sheet{Name: "Sheet1", Rows: [][]interface{}{{"id", "name"}}}
	for i := 1; i <= 5; i++ {
		people.Rows = append(people.Rows, []interface{}{i, fmt.Sprintf("row %d", i)})
	}
	scores := testutil.Sheet{Name: "Scores", Rows: [][]interface{}{
		{"score", "passed"},
		{1.5, true},
		{2, false},
	}}
	return testutil.WriteWorkbook(t, "book.xlsx", people, scores)
}

func smallChunks() *config.Config {
	cfg := config.NewConfig()
	cfg.Conversion.ChunkSize = 2
	return cfg
}

func TestConvertCSV(t *testing.T) {
	path := testutil.WriteFile(t, "people.csv", "id,name,score\n1,ann,3.5\n2,bob,\n3,cy,4\n")

	r, err := convert.Convert(context.Background(), path, "", smallChunks())
	require.NoError(t, err)
	defer r.Close()

	var rows int
	for batch, err := range r.All(context.Background()) {
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "score"}, batch.Names())
		rows += batch.NumRows()
	}
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, r.Progress().Batches)
	assert.Equal(t, int64(3), r.Progress().Rows)

	_, err = r.Next(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, r.Close())
}

func TestGlobalModeAcrossChunks(t *testing.T) {
	path := testutil.WriteFile(t, "nums.csv", "v\n1\n2\n3\n4.5\n")
	cfg := smallChunks()
	cfg.Conversion.InferenceMode = config.InferenceGlobal

	batches, err := convert.ReadAll(context.Background(), path, "", cfg)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	for _, b := range batches {
		assert.Equal(t, schema.Float64, b.Schema().Fields[0].Type)
	}
	assert.Equal(t, []float64{1, 2}, batches[0].ColumnAt(0).Float64Values())
}

func TestDeterministicFingerprints(t *testing.T) {
	path := testutil.WriteFile(t, "data.csv", "a,b\nx,1\ny,2\nz,3\n")

	first, err := convert.ReadAll(context.Background(), path, "", smallChunks())
	require.NoError(t, err)
	second, err := convert.ReadAll(context.Background(), path, "", smallChunks())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Fingerprint(), second[i].Fingerprint())
	}
}

func TestCompressedCSV(t *testing.T) {
	path := testutil.WriteCompressed(t, "data.csv.gz", "a;b\n1;true\n2;false\n")

	batches, err := convert.ReadAll(context.Background(), path, "", nil)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "schema<a: int64, b: boolean>", batches[0].Schema().String())
}

func TestConvertWorkbook(t *testing.T) {
	path := writeWorkbook(t)

	sheets, err := convert.Sheets(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Scores"}, sheets)

	batches, err := convert.ReadAll(context.Background(), path, "Scores", nil)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "schema<score: float64, passed: boolean>", batches[0].Schema().String())

	batches, err = convert.ReadAll(context.Background(), path, "1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, batches[0].NumRows())

	_, err = convert.Convert(context.Background(), path, "Missing", nil)
	require.Error(t, err)
	assert.True(t, errors.IsSourceOpen(err))
	assert.Contains(t, err.Error(), "Sheet1, Scores")
}

func TestConvertSheets(t *testing.T) {
	path := writeWorkbook(t)
	cfg := smallChunks()
	cfg.Performance.MaxConcurrency = 2

	results, err := convert.ConvertSheets(context.Background(), path, nil, cfg)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Sheet1", results[0].Sheet)
	assert.Len(t, results[0].Batches, 3)
	assert.Equal(t, int64(5), results[0].Progress.Rows)

	assert.Equal(t, "Scores", results[1].Sheet)
	assert.Len(t, results[1].Batches, 1)

	_, err = convert.ConvertSheets(context.Background(), path, []string{"Scores", "Nope"}, cfg)
	assert.True(t, errors.IsSourceOpen(err))
}

func TestInferSchema(t *testing.T) {
	path := testutil.WriteFile(t, "mixed.csv", "a,b,c\n1,,x\n2.5,,7\n")

	s, err := convert.InferSchema(context.Background(), path, "", smallChunks())
	require.NoError(t, err)
	assert.Equal(t, "schema<a: float64, b: utf8?, c: utf8>", s.String())
}

func TestStrictMismatch(t *testing.T) {
	path := testutil.WriteFile(t, "bad.csv", "a\n1\n2\nthree\n")
	cfg := smallChunks()
	cfg.Conversion.StrictSchema = true

	_, err := convert.ReadAll(context.Background(), path, "", cfg)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
	assert.Contains(t, err.Error(), "row=4")
}

func TestInvalidConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Conversion.ChunkSize = -1

	_, err := convert.Convert(context.Background(), "whatever.csv", "", cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestMissingFile(t *testing.T) {
	_, err := convert.Convert(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), "", nil)
	assert.True(t, errors.IsSourceOpen(err))
}

// ExampleReadAll converts a small CSV file into a single batch.
func ExampleReadAll() {
	dir, _ := os.MkdirTemp("", "crossbow-example")
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "scores.csv")
	_ = os.WriteFile(path, []byte("name,score\nann,3\nbob,4.5\n"), 0o600)

	batches, err := convert.ReadAll(context.Background(), path, "", nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(batches[0].Schema())
	fmt.Println(batches[0].NumRows())
	// Output:
	// schema<name: utf8, score: float64>
	// 2
}

func TestControllerLogsCarryConversionID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })

	path := testutil.WriteFile(t, "people.csv", "id,name\n1,ann\n2,bob\n")
	ctx := logger.ContextWithConversionID(context.Background(), "run-42")
	_, err := convert.ReadAll(ctx, path, "", nil)
	require.NoError(t, err)

	entries := logs.FilterField(zap.String("component", "controller")).All()
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, "run-42", e.ContextMap()["conversion_id"], e.Message)
	}

	logs.TakeAll()
	_, err = convert.ReadAll(context.Background(), path, "", nil)
	require.NoError(t, err)
	entries = logs.FilterField(zap.String("component", "controller")).All()
	require.NotEmpty(t, entries)
	assert.NotEmpty(t, entries[0].ContextMap()["conversion_id"])
}
