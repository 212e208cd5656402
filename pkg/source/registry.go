package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/logger"
)

// Registry maps format names and extensions to adapters. Adapters register
// during package init; afterwards the table is only read.
type Registry struct {
	formats    map[string]Format
	extensions map[string]Format
	mu         sync.RWMutex
	logger     *zap.Logger
}

// Global registry instance
var defaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		formats:    make(map[string]Format),
		extensions: make(map[string]Format),
		logger:     logger.Get().With(zap.String("component", "source_registry")),
	}
}

// Register adds an adapter. Names and extensions must be unique.
func (r *Registry) Register(f Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(f.Name())
	if _, exists := r.formats[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("format %s already registered", name))
	}
	for _, ext := range f.Extensions() {
		if other, exists := r.extensions[strings.ToLower(ext)]; exists {
			return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("extension %s already claimed by %s", ext, other.Name()))
		}
	}

	r.formats[name] = f
	for _, ext := range f.Extensions() {
		r.extensions[strings.ToLower(ext)] = f
	}
	r.logger.Debug("format registered", zap.String("name", name), zap.Strings("extensions", f.Extensions()))
	return nil
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Format, error) {
	r.mu.RLock()
	f, ok := r.formats[strings.ToLower(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("format %s not found", name)).
			WithDetail(errors.DetailFormat, name)
	}
	return f, nil
}

// ByExtension returns the adapter claiming ext (with the leading dot).
func (r *Registry) ByExtension(ext string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.extensions[strings.ToLower(ext)]
	return f, ok
}

// Formats returns the registered adapters sorted by name.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Format, 0, len(r.formats))
	for _, f := range r.formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Handle is a resolved source: a local path plus the adapter that reads it.
// A handle may be opened any number of times; Close removes the spooled copy
// of a remote or piped source.
type Handle struct {
	ID     string
	Path   string
	Format Format

	cfg     config.SourceConfig
	logger  *zap.Logger
	cleanup func()
}

// Prepare resolves id to a local file and detects its format.
func (r *Registry) Prepare(ctx context.Context, id string, cfg config.SourceConfig) (*Handle, error) {
	path, cleanup, err := Resolve(ctx, id, cfg.Remote)
	if err != nil {
		return nil, err
	}

	f, err := r.Detect(path, cfg)
	if err != nil {
		cleanup()
		return nil, annotate(err, id)
	}
	return &Handle{ID: id, Path: path, Format: f, cfg: cfg, logger: r.logger, cleanup: cleanup}, nil
}

// Open opens the selected sheet.
func (h *Handle) Open(ctx context.Context, selector string) (RowSequence, error) {
	rows, err := h.Format.Open(ctx, h.Path, selector, h.cfg)
	if err != nil {
		return nil, annotate(err, h.ID).WithDetail(errors.DetailFormat, h.Format.Name())
	}
	h.logger.Debug("source opened",
		zap.String("source", h.ID),
		zap.String("format", h.Format.Name()),
		zap.String("sheet", selector))
	return rows, nil
}

// Sheets lists the sheets of the source.
func (h *Handle) Sheets(ctx context.Context) ([]string, error) {
	sheets, err := h.Format.Sheets(ctx, h.Path)
	if err != nil {
		return nil, annotate(err, h.ID).WithDetail(errors.DetailFormat, h.Format.Name())
	}
	return sheets, nil
}

// Spooled reports whether the source was copied to a temporary file.
func (h *Handle) Spooled() bool {
	return h.Path != h.ID
}

// Close removes the spooled copy, if any.
func (h *Handle) Close() error {
	if h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
	return nil
}

// Open resolves id, detects its format and opens the selected sheet. Closing
// the sequence also releases the resolved source.
func (r *Registry) Open(ctx context.Context, id, selector string, cfg config.SourceConfig) (RowSequence, error) {
	h, err := r.Prepare(ctx, id, cfg)
	if err != nil {
		return nil, err
	}
	rows, err := h.Open(ctx, selector)
	if err != nil {
		h.Close()
		return nil, err
	}
	if !h.Spooled() {
		return rows, nil
	}
	return &spooledRows{RowSequence: rows, cleanup: func() { h.Close() }}, nil
}

// Sheets lists the sheets of the source behind id.
func (r *Registry) Sheets(ctx context.Context, id string, cfg config.SourceConfig) ([]string, error) {
	h, err := r.Prepare(ctx, id, cfg)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return h.Sheets(ctx)
}

func annotate(err error, id string) *errors.Error {
	return errors.Classify(err, errors.ErrorTypeSourceOpen, "failed to open source").
		WithDetail(errors.DetailSource, id)
}

// spooledRows removes the temporary copy of a remote or piped source once the
// sequence is closed.
type spooledRows struct {
	RowSequence
	cleanup func()
}

func (s *spooledRows) Close() error {
	err := s.RowSequence.Close()
	s.cleanup()
	return err
}

func (s *spooledRows) BytesRead() int64 { return BytesRead(s.RowSequence) }

func (s *spooledRows) Date1904() bool { return Date1904(s.RowSequence) }

// Register adds f to the default registry.
func Register(f Format) error {
	return defaultRegistry.Register(f)
}

// MustRegister adds f to the default registry and panics on a duplicate. It
// is meant for adapter init functions.
func MustRegister(f Format) {
	if err := Register(f); err != nil {
		panic(err)
	}
}

// Lookup returns the adapter registered under name in the default registry.
func Lookup(name string) (Format, error) {
	return defaultRegistry.Lookup(name)
}

// ByExtension returns the default registry adapter claiming ext.
func ByExtension(ext string) (Format, bool) {
	return defaultRegistry.ByExtension(ext)
}

// Formats returns the adapters in the default registry.
func Formats() []Format {
	return defaultRegistry.Formats()
}

// Detect picks the adapter for path from the default registry.
func Detect(path string, cfg config.SourceConfig) (Format, error) {
	return defaultRegistry.Detect(path, cfg)
}

// Prepare resolves id through the default registry.
func Prepare(ctx context.Context, id string, cfg config.SourceConfig) (*Handle, error) {
	return defaultRegistry.Prepare(ctx, id, cfg)
}

// Open opens a sheet through the default registry.
func Open(ctx context.Context, id, selector string, cfg config.SourceConfig) (RowSequence, error) {
	return defaultRegistry.Open(ctx, id, selector, cfg)
}

// Sheets lists sheets through the default registry.
func Sheets(ctx context.Context, id string, cfg config.SourceConfig) ([]string, error) {
	return defaultRegistry.Sheets(ctx, id, cfg)
}
