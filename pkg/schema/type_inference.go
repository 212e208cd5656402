package schema

import (
	"go.uber.org/zap"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
)

// Policy holds the options that change how cells fold.
type Policy struct {
	// IntegralFloatsAsInt maps floats with no fractional part to Int64
	IntegralFloatsAsInt bool
	// AmbiguousDates lets plausible serial numbers share a column with timestamps
	AmbiguousDates bool
}

// InferenceState tracks the best type of one column.
type InferenceState struct {
	Type     LogicalType
	Values   int64
	Nulls    int64
	Conflict bool

	// nonSerial is set once a numeric value outside the plausible serial
	// date range has been seen
	nonSerial bool
}

// Observe folds one cell into the state.
func (s *InferenceState) Observe(c cell.RawCell, p Policy) {
	if c.IsEmpty() {
		s.Nulls++
		return
	}
	s.Values++

	natural := NaturalType(c, p.IntegralFloatsAsInt)
	serial := false
	if natural.Numeric() {
		serial = cell.PlausibleSerial(numericValue(c))
		if !serial {
			s.nonSerial = true
		}
	}

	if p.AmbiguousDates {
		switch {
		case s.Type == Timestamp && natural.Numeric() && serial:
			return
		case natural == Timestamp && s.Type.Numeric() && !s.nonSerial:
			s.Type = Timestamp
			return
		}
	}

	merged := Merge(s.Type, natural)
	if merged == Utf8String && s.Type != Null && s.Type != natural {
		s.Conflict = true
	}
	s.Type = merged
}

// Resolved returns the final type of the column.
func (s *InferenceState) Resolved() LogicalType {
	return Resolve(s.Type)
}

// Accepts reports whether a cell can be stored in a column of type t without
// widening it.
func Accepts(t LogicalType, c cell.RawCell, p Policy) bool {
	if c.IsEmpty() {
		return true
	}
	natural := NaturalType(c, p.IntegralFloatsAsInt)
	if p.AmbiguousDates && t == Timestamp && natural.Numeric() {
		return cell.PlausibleSerial(numericValue(c))
	}
	return Merge(t, natural) == t
}

func numericValue(c cell.RawCell) float64 {
	if c.Kind() == cell.KindInteger {
		return float64(c.Int())
	}
	return c.Float()
}

// Engine runs InferenceState for every column of a row stream.
type Engine struct {
	logger *zap.Logger
	policy Policy
	states []InferenceState
}

// NewEngine creates a new type inference engine
func NewEngine(logger *zap.Logger, policy Policy) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger: logger.With(zap.String("component", "inference")),
		policy: policy,
	}
}

// Policy returns the fold options of the engine.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Observe folds a cell into column col (0-based), growing the engine when a
// wider row appears.
func (e *Engine) Observe(col int, c cell.RawCell) {
	e.Grow(col + 1)
	st := &e.states[col]
	had := st.Conflict
	st.Observe(c, e.policy)
	if st.Conflict && !had {
		e.logger.Debug("column downgraded to utf8 after type conflict",
			zap.Int("column", col+1),
			zap.Stringer("cell_kind", c.Kind()))
	}
}

// ObserveRow folds a whole row. Columns missing from a short row count as nulls.
func (e *Engine) ObserveRow(row []cell.RawCell) {
	for i, c := range row {
		e.Observe(i, c)
	}
	for i := len(row); i < len(e.states); i++ {
		e.states[i].Nulls++
	}
}

// Grow makes sure the engine tracks at least width columns.
func (e *Engine) Grow(width int) {
	for len(e.states) < width {
		e.states = append(e.states, InferenceState{})
	}
}

// Width returns the number of tracked columns.
func (e *Engine) Width() int {
	return len(e.states)
}

// State returns a copy of the state of column col.
func (e *Engine) State(col int) InferenceState {
	return e.states[col]
}

// Types returns the resolved type of every column.
func (e *Engine) Types() []LogicalType {
	types := make([]LogicalType, len(e.states))
	for i := range e.states {
		types[i] = e.states[i].Resolved()
	}
	return types
}

// Schema builds a schema from the current states. names must have one entry
// per tracked column.
func (e *Engine) Schema(names []string) Schema {
	fields := make([]Field, len(e.states))
	for i := range e.states {
		fields[i] = Field{
			Name:     names[i],
			Type:     e.states[i].Resolved(),
			Nullable: e.states[i].Nulls > 0 || e.states[i].Values == 0,
		}
	}
	return Schema{Fields: fields}
}

// Reset clears all states while keeping the column count.
func (e *Engine) Reset() {
	for i := range e.states {
		e.states[i] = InferenceState{}
	}
}
