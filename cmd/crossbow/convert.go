package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pranav-jay26/Crossbow/pkg/columnar"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/convert"
	"github.com/pranav-jay26/Crossbow/pkg/json"
	"github.com/pranav-jay26/Crossbow/pkg/logger"
)

type convertOptions struct {
	file        string
	sheet       string
	allSheets   bool
	output      string
	compression string
	preview     int
	asJSON      bool
}

func newConvertCommand(opts *globalOptions) *cobra.Command {
	co := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a sheet into columnar batches",
		Long: `Convert a sheet into Arrow-compatible batches. Without --output a preview of
the first rows and a per-batch summary are printed. With --output the batches
are written to an Arrow IPC file, to Parquet when the file name ends in
.parquet, or to JSON lines when it ends in .jsonl or .ndjson. Arrow and Parquet
output force global inference so one schema covers the whole file.

Example:
  crossbow convert -f sales.xlsx -s Q1 --output q1.arrow
  crossbow convert -f data.csv.gz --chunk-size 50000 --json
  crossbow convert -f book.ods -o book.parquet --compression zstd`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := prepare(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if co.allSheets {
				return runConvertSheets(cmd, cfg, co)
			}
			return runConvert(cmd, cfg, co)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&co.file, "file", "f", "", "Input file, - for stdin, or an s3:// or gs:// URL (required)")
	flags.StringVarP(&co.sheet, "sheet", "s", "", "Sheet name or 0-based index (default: first sheet)")
	flags.BoolVar(&co.allSheets, "all-sheets", false, "Convert every sheet concurrently and print a summary per sheet")
	flags.StringVarP(&co.output, "output", "o", "", "Write batches to an Arrow IPC file (.arrow), Parquet (.parquet) or JSON lines (.jsonl)")
	flags.StringVar(&co.compression, "compression", "snappy", "Parquet codec (snappy, zstd, gzip, none)")
	flags.IntVar(&co.preview, "preview", 10, "Number of rows to preview")
	flags.BoolVar(&co.asJSON, "json", false, "Print the summary as JSON")
	flags.Int("chunk-size", 0, "Rows per batch, 0 sizes batches from the memory budget")
	flags.String("inference", config.InferencePerBatch, "Inference mode (per_batch, global)")
	flags.Bool("strict", false, "Fail on any cell that contradicts the inferred schema")
	flags.Bool("ambiguous-dates", false, "Let plausible serial numbers share a column with dates")
	flags.Bool("allow-widening", false, "Add columns for rows wider than the header")
	flags.Int("max-concurrency", 0, "Sheets converted at once with --all-sheets (default: GOMAXPROCS)")
	addSourceFlags(cmd)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// batchSummary is the per-batch line of the convert report.
type batchSummary struct {
	Index       int    `json:"index"`
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
	Fingerprint string `json:"fingerprint"`
	Schema      string `json:"schema"`
}

// report is the JSON document printed by convert --json.
type report struct {
	Source   string           `json:"source"`
	Sheet    string           `json:"sheet,omitempty"`
	Output   string           `json:"output,omitempty"`
	Batches  []batchSummary   `json:"batches"`
	Progress convert.Progress `json:"progress"`
}

func summarize(i int, b *columnar.Batch) batchSummary {
	return batchSummary{
		Index:       i,
		Rows:        b.NumRows(),
		Columns:     b.NumCols(),
		Fingerprint: fmt.Sprintf("%016x", b.Fingerprint()),
		Schema:      b.Schema().String(),
	}
}

func runConvert(cmd *cobra.Command, cfg *config.Config, co *convertOptions) error {
	ctx := logger.ContextWithSource(cmd.Context(), co.file, co.sheet)
	log := logger.WithContext(ctx).With(zap.String("component", "cli"))

	sink, err := newSink(co.output, co.compression, cfg)
	if err != nil {
		return err
	}

	r, err := convert.Convert(ctx, co.file, co.sheet, cfg)
	if err != nil {
		sink.abort()
		return err
	}
	defer r.Close()

	log.Info("converting",
		zap.String("inference_mode", cfg.Conversion.EffectiveMode()),
		zap.String("output", co.output))

	out := cmd.OutOrStdout()
	rep := report{Source: co.file, Sheet: co.sheet, Output: co.output}
	prev := newPreview(co.preview)
	for batch, err := range r.All(ctx) {
		if err != nil {
			sink.abort()
			return err
		}
		rep.Batches = append(rep.Batches, summarize(len(rep.Batches), batch))
		prev.add(batch)
		if err := sink.write(batch); err != nil {
			sink.abort()
			return err
		}
	}
	if err := sink.close(); err != nil {
		return err
	}
	rep.Progress = r.Progress()

	if co.asJSON {
		return json.Write(out, rep, true)
	}
	if co.output == "" {
		prev.render(out)
	}
	renderSummary(out, rep.Batches)
	fmt.Fprintf(out, "converted %d rows in %d batches (%s)\n",
		rep.Progress.Rows, rep.Progress.Batches, rep.Progress.Elapsed.Round(time.Millisecond))
	return nil
}

func runConvertSheets(cmd *cobra.Command, cfg *config.Config, co *convertOptions) error {
	var selectors []string
	if co.sheet != "" {
		selectors = strings.Split(co.sheet, ",")
	}
	results, err := convert.ConvertSheets(cmd.Context(), co.file, selectors, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if co.asJSON {
		reports := make([]report, len(results))
		for i, res := range results {
			reports[i] = report{Source: co.file, Sheet: res.Sheet, Progress: res.Progress}
			for j, b := range res.Batches {
				reports[i].Batches = append(reports[i].Batches, summarize(j, b))
			}
		}
		return json.Write(out, reports, true)
	}

	table := tablewriter.NewWriter(out)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"sheet", "batches", "rows", "columns"})
	for _, res := range results {
		cols := 0
		if len(res.Batches) > 0 {
			cols = res.Batches[0].NumCols()
		}
		table.Append([]string{res.Sheet, fmt.Sprint(res.Progress.Batches), fmt.Sprint(res.Progress.Rows), fmt.Sprint(cols)})
	}
	table.Render()
	return nil
}

func renderSummary(w io.Writer, batches []batchSummary) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"batch", "rows", "columns", "fingerprint"})
	for _, b := range batches {
		table.Append([]string{fmt.Sprint(b.Index), fmt.Sprint(b.Rows), fmt.Sprint(b.Columns), b.Fingerprint})
	}
	table.Render()
}

// preview keeps the first rows of a conversion for display.
type preview struct {
	limit  int
	header []string
	rows   [][]string
}

func newPreview(limit int) *preview {
	return &preview{limit: limit}
}

func (p *preview) add(b *columnar.Batch) {
	if p.header == nil {
		p.header = b.Names()
	}
	for row := 0; row < b.NumRows() && len(p.rows) < p.limit; row++ {
		cells := make([]string, b.NumCols())
		for col := range cells {
			if c := b.ColumnAt(col); c.IsNull(row) {
				cells[col] = "null"
			} else {
				cells[col] = c.Format(row)
			}
		}
		p.rows = append(p.rows, cells)
	}
}

func (p *preview) render(w io.Writer) {
	if p.limit <= 0 || p.header == nil {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(p.header)
	table.AppendBulk(p.rows)
	table.Render()
}

// sink receives the converted batches when --output is set.
type sink struct {
	path    string
	file    *os.File
	columns batchWriter
	lines   *json.StreamingEncoder
}

// batchWriter is implemented by the Arrow IPC and Parquet writers.
type batchWriter interface {
	Write(b *columnar.Batch) error
	Close() error
}

func newSink(path, codec string, cfg *config.Config) (*sink, error) {
	s := &sink{path: path}
	if path == "" {
		return s, nil
	}

	f, err := os.Create(path) //nolint:gosec // G304: output path comes from the user
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	s.file = f

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		s.lines = json.NewStreamingEncoder(f, false)
		return s, nil
	case ".parquet", ".pq":
		pw, err := columnar.NewParquetWriter(f, codec)
		if err != nil {
			s.abort()
			return nil, err
		}
		s.columns = pw
	default:
		s.columns = columnar.NewIPCWriter(f)
	}
	// one schema must cover every record batch of the file
	cfg.Conversion.InferenceMode = config.InferenceGlobal
	return s, nil
}

func (s *sink) write(b *columnar.Batch) error {
	switch {
	case s.columns != nil:
		return s.columns.Write(b)
	case s.lines != nil:
		line := jsonRow{names: b.Names(), values: make([]interface{}, b.NumCols())}
		for row := 0; row < b.NumRows(); row++ {
			for col := range line.values {
				line.values[col] = b.Value(col, row)
			}
			if err := s.lines.Encode(line); err != nil {
				return fmt.Errorf("failed to write JSON line: %w", err)
			}
		}
	}
	return nil
}

// jsonRow encodes one row as an object whose keys follow the column order.
type jsonRow struct {
	names  []string
	values []interface{}
}

func (r jsonRow) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, name := range r.names {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf = append(append(append(buf, key...), ':'), val...)
	}
	return append(buf, '}'), nil
}

func (s *sink) close() error {
	if s.file == nil {
		return nil
	}
	var err error
	switch {
	case s.columns != nil:
		err = s.columns.Close()
	case s.lines != nil:
		err = s.lines.Close()
	}
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// a file without its footer is unreadable
		_ = os.Remove(s.path)
	}
	return err
}

// abort closes and removes a partially written output.
func (s *sink) abort() {
	if s.file == nil {
		return
	}
	_ = s.file.Close()
	_ = os.Remove(s.path)
}
