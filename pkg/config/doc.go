// Package config provides the unified configuration for crossbow conversions.
//
// A single Config structure carries every option of a conversion, organized
// into sections:
//
//   - Conversion: chunking, inference mode, schema strictness and coercion policy
//   - Source: format selection and the knobs of the delimited-text adapter
//   - Memory: the budget used to size chunks automatically
//   - Performance: concurrency of multi-sheet conversions
//   - Observability: logging, metrics and tracing
//
// # Usage
//
//	cfg := config.NewConfig()
//	cfg.Conversion.ChunkSize = 50000
//	cfg.Conversion.InferenceMode = config.InferenceGlobal
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # YAML Files
//
// LoadFile reads a YAML document over the defaults, so a file only needs the
// keys it changes. ${VAR_NAME} references are replaced with environment
// variable values before parsing:
//
//	conversion:
//	  chunk_size: 100000
//	  strict_schema: true
//	source:
//	  delimiter: ";"
//	  encoding: windows-1252
//	  null_values: ["", "NA", "${EXTRA_NULL_TOKEN}"]
//	  remote:
//	    s3_region: eu-west-1
//	    max_attempts: 5
//
// Every field also carries a mapstructure tag so the CLI can bind the same
// keys through viper (flags, CROSSBOW_* environment variables and --config).
//
// # Defaults
//
// chunk_size 0 selects a chunk size from the memory budget. Inference runs per
// batch unless inference_mode is global or strict_schema is set. Floats with no
// fractional part become Int64. The first row is a header. Empty strings and
// NULL/null tokens are read as empty cells. Remote downloads are tried up to
// three times.
package config
