package config

import (
	"runtime"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/pranav-jay26/Crossbow/pkg/errors"
)

// Inference modes.
const (
	// InferencePerBatch infers every emitted batch independently
	InferencePerBatch = "per_batch"
	// InferenceGlobal runs a first pass over the whole source before building
	InferenceGlobal = "global"
)

// Chunk size bounds used when ChunkSize is 0 (automatic).
const (
	MinAutoChunkSize      = 1024
	MaxAutoChunkSize      = 1048576
	FallbackAutoChunkSize = 65536
)

// Config is the root configuration structure.
type Config struct {
	// Conversion controls inference and batch assembly
	Conversion ConversionConfig `yaml:"conversion" json:"conversion" mapstructure:"conversion"`

	// Source controls format dispatch and text parsing
	Source SourceConfig `yaml:"source" json:"source" mapstructure:"source"`

	// Memory bounds automatic chunk sizing
	Memory MemoryConfig `yaml:"memory" json:"memory" mapstructure:"memory"`

	// Performance settings for concurrent multi-sheet conversion
	Performance PerformanceConfig `yaml:"performance" json:"performance" mapstructure:"performance"`

	// Observability settings for logging, metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// ConversionConfig contains the options that shape emitted batches.
type ConversionConfig struct {
	// ChunkSize is the number of data rows per batch; 0 selects a size from the memory budget
	ChunkSize int `yaml:"chunk_size" json:"chunk_size" mapstructure:"chunk_size"`
	// InferenceMode is per_batch or global
	InferenceMode string `yaml:"inference_mode" json:"inference_mode" mapstructure:"inference_mode"`
	// StrictSchema forces global inference and fails on any cell that contradicts it
	StrictSchema bool `yaml:"strict_schema" json:"strict_schema" mapstructure:"strict_schema"`
	// TreatAmbiguousNumericAsDate lets plausible Excel serials share a column with timestamps
	TreatAmbiguousNumericAsDate bool `yaml:"treat_ambiguous_numeric_as_date" json:"treat_ambiguous_numeric_as_date" mapstructure:"treat_ambiguous_numeric_as_date"`
	// AllowColumnWidening adds columns for rows wider than the header
	AllowColumnWidening bool `yaml:"allow_column_widening" json:"allow_column_widening" mapstructure:"allow_column_widening"`
	// IntegralFloatsAsInt maps floats without a fractional part to Int64
	IntegralFloatsAsInt bool `yaml:"integral_floats_as_int" json:"integral_floats_as_int" mapstructure:"integral_floats_as_int"`
	// DedupeHeaders suffixes repeated header names instead of failing
	DedupeHeaders bool `yaml:"dedupe_headers" json:"dedupe_headers" mapstructure:"dedupe_headers"`
}

// SourceConfig contains the options handed to format adapters.
type SourceConfig struct {
	// Format forces an adapter by name (csv, xlsx, xls, ods); empty means detect
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// HasHeader takes column names from the first row
	HasHeader bool `yaml:"has_header" json:"has_header" mapstructure:"has_header"`
	// NormalizeHeaders applies NFC normalisation and trims header names
	NormalizeHeaders bool `yaml:"normalize_headers" json:"normalize_headers" mapstructure:"normalize_headers"`
	// Delimiter is a single character; empty means sniff from the first line
	Delimiter string `yaml:"delimiter" json:"delimiter" mapstructure:"delimiter"`
	// Encoding is a WHATWG label such as windows-1252; empty means UTF-8
	Encoding string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	// NullValues are text tokens read as empty cells
	NullValues []string `yaml:"null_values" json:"null_values" mapstructure:"null_values"`
	// TrueValues are text tokens read as boolean true (case-insensitive)
	TrueValues []string `yaml:"true_values" json:"true_values" mapstructure:"true_values"`
	// FalseValues are text tokens read as boolean false (case-insensitive)
	FalseValues []string `yaml:"false_values" json:"false_values" mapstructure:"false_values"`
	// DatetimeLayouts are Go time layouts tried in order for text cells
	DatetimeLayouts []string `yaml:"datetime_layouts" json:"datetime_layouts" mapstructure:"datetime_layouts"`
	// TrimSpace trims surrounding whitespace from text cells before classification
	TrimSpace bool `yaml:"trim_space" json:"trim_space" mapstructure:"trim_space"`
	// LazyQuotes tolerates stray quotes in delimited text
	LazyQuotes bool `yaml:"lazy_quotes" json:"lazy_quotes" mapstructure:"lazy_quotes"`
	// Comment is a single character starting comment lines; empty disables
	Comment string `yaml:"comment" json:"comment" mapstructure:"comment"`
	// Remote configures s3:// and gs:// identifiers
	Remote RemoteConfig `yaml:"remote" json:"remote" mapstructure:"remote"`
}

// RemoteConfig contains object store settings.
type RemoteConfig struct {
	// S3Region overrides the region from the shared AWS config
	S3Region string `yaml:"s3_region" json:"s3_region" mapstructure:"s3_region"`
	// S3Endpoint points at an S3 compatible endpoint
	S3Endpoint string `yaml:"s3_endpoint" json:"s3_endpoint" mapstructure:"s3_endpoint"`
	// S3PathStyle enables path-style addressing
	S3PathStyle bool `yaml:"s3_path_style" json:"s3_path_style" mapstructure:"s3_path_style"`
	// GCSAnonymous skips credential lookup for public buckets
	GCSAnonymous bool `yaml:"gcs_anonymous" json:"gcs_anonymous" mapstructure:"gcs_anonymous"`
	// TempDir receives spooled remote and stdin inputs; empty uses os.TempDir
	TempDir string `yaml:"temp_dir" json:"temp_dir" mapstructure:"temp_dir"`
	// MaxAttempts bounds download attempts for remote objects
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" mapstructure:"max_attempts"`
}

// MemoryConfig contains memory budget settings.
type MemoryConfig struct {
	// LimitMB bounds a single chunk; 0 uses a quarter of the available RAM
	LimitMB int `yaml:"limit_mb" json:"limit_mb" mapstructure:"limit_mb"`
	// BytesPerCell is the per-cell estimate of the built buffers used for
	// automatic chunk sizing; per-batch mode adds the pending raw cell
	BytesPerCell int `yaml:"bytes_per_cell" json:"bytes_per_cell" mapstructure:"bytes_per_cell"`
}

// PerformanceConfig contains concurrency settings.
type PerformanceConfig struct {
	// MaxConcurrency limits concurrently converted sheets; 0 uses GOMAXPROCS
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" mapstructure:"max_concurrency"`
	// ProgressEveryChunks logs progress every N chunks at debug level
	ProgressEveryChunks int `yaml:"progress_every_chunks" json:"progress_every_chunks" mapstructure:"progress_every_chunks"`
}

// ObservabilityConfig contains monitoring and debugging settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding" mapstructure:"log_encoding"`
	// EnableMetrics serves prometheus metrics on MetricsAddr
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	// MetricsAddr is the listen address of the metrics endpoint
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	// EnableTracing installs the stdout trace exporter
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// DefaultNullValues are the text tokens treated as empty cells.
var DefaultNullValues = []string{"", "NULL", "null"}

// DefaultDatetimeLayouts are tried in order when classifying text cells.
var DefaultDatetimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// NewConfig creates a Config with the documented defaults.
func NewConfig() *Config {
	return &Config{
		Conversion: ConversionConfig{
			ChunkSize:                   0,
			InferenceMode:               InferencePerBatch,
			StrictSchema:                false,
			TreatAmbiguousNumericAsDate: false,
			AllowColumnWidening:         false,
			IntegralFloatsAsInt:         true,
			DedupeHeaders:               false,
		},
		Source: NewSourceConfig(),
		Memory: MemoryConfig{
			LimitMB:      0,
			BytesPerCell: 32,
		},
		Performance: PerformanceConfig{
			MaxConcurrency:      0,
			ProgressEveryChunks: 10,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "console",
			EnableMetrics:     false,
			MetricsAddr:       ":9090",
			EnableTracing:     false,
			TracingSampleRate: 1.0,
		},
	}
}

// NewSourceConfig returns the default adapter options.
func NewSourceConfig() SourceConfig {
	return SourceConfig{
		HasHeader:        true,
		NormalizeHeaders: true,
		NullValues:       append([]string(nil), DefaultNullValues...),
		TrueValues:       []string{"true"},
		FalseValues:      []string{"false"},
		DatetimeLayouts:  append([]string(nil), DefaultDatetimeLayouts...),
		Remote:           RemoteConfig{MaxAttempts: 3},
	}
}

// Validate validates the configuration for correctness.
func (c *Config) Validate() error {
	conv := c.Conversion
	if conv.ChunkSize < 0 {
		return configError("chunk_size must be zero (automatic) or positive", "chunk_size", conv.ChunkSize)
	}
	switch conv.InferenceMode {
	case "", InferencePerBatch, InferenceGlobal:
	default:
		return configError("inference_mode must be per_batch or global", "inference_mode", conv.InferenceMode)
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if c.Memory.LimitMB < 0 {
		return configError("memory.limit_mb cannot be negative", "limit_mb", c.Memory.LimitMB)
	}
	if c.Memory.BytesPerCell < 0 {
		return configError("memory.bytes_per_cell cannot be negative", "bytes_per_cell", c.Memory.BytesPerCell)
	}
	if c.Performance.MaxConcurrency < 0 {
		return configError("max_concurrency cannot be negative", "max_concurrency", c.Performance.MaxConcurrency)
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return configError("tracing_sample_rate must be within [0, 1]", "tracing_sample_rate", r)
	}
	return nil
}

// Validate checks the adapter options.
func (s *SourceConfig) Validate() error {
	if s.Delimiter != "" && utf8.RuneCountInString(s.Delimiter) != 1 {
		return configError("delimiter must be a single character", "delimiter", s.Delimiter)
	}
	if s.Comment != "" && utf8.RuneCountInString(s.Comment) != 1 {
		return configError("comment must be a single character", "comment", s.Comment)
	}
	if s.Delimiter != "" && s.Delimiter == s.Comment {
		return configError("comment and delimiter must differ", "comment", s.Comment)
	}
	if s.Remote.MaxAttempts < 0 {
		return configError("remote.max_attempts cannot be negative", "max_attempts", s.Remote.MaxAttempts)
	}
	if s.Encoding != "" {
		if _, err := htmlindex.Get(s.Encoding); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "unknown encoding").
				WithDetail("encoding", s.Encoding)
		}
	}
	return nil
}

// EffectiveMode returns the inference mode actually used. Strict schema
// implies global inference.
func (c ConversionConfig) EffectiveMode() string {
	if c.StrictSchema || c.InferenceMode == InferenceGlobal {
		return InferenceGlobal
	}
	return InferencePerBatch
}

// GetMaxConcurrency returns the concurrency limit, ensuring it's at least 1
func (p *PerformanceConfig) GetMaxConcurrency() int {
	if p.MaxConcurrency <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return p.MaxConcurrency
}

func configError(msg, key string, value interface{}) error {
	return errors.New(errors.ErrorTypeConfig, msg).WithDetail(key, value)
}
