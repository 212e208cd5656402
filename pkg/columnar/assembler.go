package columnar

import (
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
)

// Assemble pairs names with finished columns into a Batch. Every column must
// have the same length and names must be unique. Column order is preserved
// and no values are copied.
func Assemble(names []string, columns []*Column) (*Batch, error) {
	if len(names) != len(columns) {
		return nil, errors.New(errors.ErrorTypeSchemaMismatch, "column count does not match name count").
			WithDetail("names", len(names)).
			WithDetail("columns", len(columns))
	}

	rows := 0
	if len(columns) > 0 {
		rows = columns[0].Len()
	}

	seen := make(map[string]int, len(names))
	fields := make([]schema.Field, len(names))
	for i, name := range names {
		if prev, dup := seen[name]; dup {
			return nil, errors.New(errors.ErrorTypeSchemaMismatch, "duplicate column name").
				WithDetail(errors.DetailColumnName, name).
				WithDetail(errors.DetailColumn, i+1).
				WithDetail("first_column", prev+1)
		}
		seen[name] = i

		col := columns[i]
		if col == nil {
			return nil, errors.New(errors.ErrorTypeInternal, "nil column").
				WithDetail(errors.DetailColumnName, name)
		}
		if col.Len() != rows {
			return nil, errors.New(errors.ErrorTypeSchemaMismatch, "column length differs from batch row count").
				WithDetail(errors.DetailColumnName, name).
				WithDetail(errors.DetailColumn, i+1).
				WithDetail("length", col.Len()).
				WithDetail("rows", rows)
		}
		if col.Type() == schema.Null {
			return nil, errors.New(errors.ErrorTypeInternal, "null logical type in finished column").
				WithDetail(errors.DetailColumnName, name)
		}
		fields[i] = schema.Field{Name: name, Type: col.Type(), Nullable: col.NullCount() > 0}
	}

	return &Batch{
		names:   append([]string(nil), names...),
		columns: append([]*Column(nil), columns...),
		rows:    rows,
		schema:  schema.Schema{Fields: fields},
	}, nil
}

// AssembleWithSchema assembles a batch whose column types must match s.
func AssembleWithSchema(s schema.Schema, columns []*Column) (*Batch, error) {
	if len(s.Fields) == len(columns) {
		for i, f := range s.Fields {
			if columns[i] != nil && columns[i].Type() != schema.Resolve(f.Type) {
				return nil, errors.New(errors.ErrorTypeSchemaMismatch, "column type differs from schema").
					WithDetail(errors.DetailColumnName, f.Name).
					WithDetail(errors.DetailColumn, i+1).
					WithDetail("expected", schema.Resolve(f.Type).String()).
					WithDetail("actual", columns[i].Type().String())
			}
		}
	}
	return Assemble(s.Names(), columns)
}
