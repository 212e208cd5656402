// Package crossbow converts spreadsheets and delimited text into
// Arrow-compatible columnar batches.
//
// Crossbow reads xlsx, xls and ods workbooks and CSV files (optionally
// compressed, from local disk, stdin, S3 or GCS) and emits a sequence of
// typed batches. Column types are inferred from the cells themselves:
//
//   - Null is the identity of the type lattice
//   - Boolean < Int64 < Float64 < Utf8String
//   - Timestamp merges only with itself; any other mix becomes Utf8String
//
// # Quick Start
//
// Convert the first sheet of a workbook and walk the batches:
//
//	import (
//	    "context"
//
//	    "github.com/pranav-jay26/Crossbow/pkg/config"
//	    "github.com/pranav-jay26/Crossbow/pkg/convert"
//	)
//
//	cfg := config.NewConfig()
//	cfg.Conversion.ChunkSize = 50000
//
//	r, err := convert.Convert(ctx, "sales.xlsx", "Q1", cfg)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for batch, err := range r.All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    rec := batch.Record()
//	    // hand rec to any Arrow consumer
//	    rec.Release()
//	}
//
// # Inference Modes
//
// In per-batch mode (the default) every batch gets its own schema and the
// input is read once. Global mode reads the input twice: the first pass fixes
// one schema and the second pass builds every batch against it. Strict schema
// implies global mode and turns any contradicting cell into a SchemaMismatch
// error.
//
// # Key Packages
//
//	pkg/convert      - Public entry points (Convert, ReadAll, InferSchema, ConvertSheets)
//	pkg/source       - Format registry, source resolution and format adapters
//	pkg/cell         - Raw cell model shared by all adapters
//	pkg/schema       - Type lattice, inference engine and schemas
//	pkg/columnar     - Column builders, batches, Arrow IPC and Parquet writers
//	pkg/compression  - Streaming decompression of compressed text inputs
//	pkg/config       - Layered configuration
//	pkg/errors       - Typed errors with structured details
//	pkg/logger       - Structured logging with zap
//	pkg/metrics      - Prometheus metrics
//	pkg/observability - OpenTelemetry tracing
//
// # Command Line
//
// The crossbow command wraps the library:
//
//	crossbow formats
//	crossbow sheets -f book.ods
//	crossbow schema -f data.csv.gz --inference global
//	crossbow convert -f sales.xlsx -s Q1 -o q1.arrow
//
// Settings are layered: defaults, a YAML file (--config), CROSSBOW_*
// environment variables and flags.
package crossbow
