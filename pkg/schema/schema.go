package schema

import (
	"strings"

	"github.com/pranav-jay26/Crossbow/pkg/errors"
)

// Field is one named, typed column of a schema.
type Field struct {
	Name     string      `json:"name"`
	Type     LogicalType `json:"type"`
	Nullable bool        `json:"nullable"`
}

// Schema is the ordered list of fields of a batch.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.Fields)
}

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named field.
func (s Schema) Index(name string) (int, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Equal reports whether both schemas have the same names and types in the
// same order. Nullability is ignored.
func (s Schema) Equal(other Schema) bool {
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i].Name != other.Fields[i].Name || s.Fields[i].Type != other.Fields[i].Type {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	var b strings.Builder
	b.WriteString("schema<")
	for i, f := range s.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Type.String())
		if f.Nullable {
			b.WriteString("?")
		}
	}
	b.WriteString(">")
	return b.String()
}

// Reconcile merges the schemas of independently inferred batches into one.
// Fields are matched by name and ordered by first appearance; types fold
// through the same lattice as cells. A field absent from some schema becomes
// nullable.
func Reconcile(schemas ...Schema) (Schema, error) {
	var out Schema
	index := make(map[string]int)
	seen := make([]int, 0)

	for _, s := range schemas {
		local := make(map[string]struct{}, len(s.Fields))
		for _, f := range s.Fields {
			if _, dup := local[f.Name]; dup {
				return Schema{}, errors.New(errors.ErrorTypeSchemaMismatch, "duplicate field name in schema").
					WithDetail(errors.DetailColumnName, f.Name)
			}
			local[f.Name] = struct{}{}

			if i, ok := index[f.Name]; ok {
				out.Fields[i].Type = Merge(out.Fields[i].Type, f.Type)
				out.Fields[i].Nullable = out.Fields[i].Nullable || f.Nullable
				seen[i]++
				continue
			}
			index[f.Name] = len(out.Fields)
			out.Fields = append(out.Fields, f)
			seen = append(seen, 1)
		}
	}

	for i := range out.Fields {
		out.Fields[i].Type = Resolve(out.Fields[i].Type)
		if seen[i] < len(schemas) {
			out.Fields[i].Nullable = true
		}
	}
	return out, nil
}
