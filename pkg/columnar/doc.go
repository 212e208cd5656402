// Package columnar builds Arrow-compatible columns from raw cells and
// assembles them into batches.
//
// # Overview
//
// The package is the buffer half of a conversion:
//
//   - Bitmap: LSB-first validity and boolean storage, laid out like Arrow
//   - Builder: accumulates one column of a chunk, coercing cells to the bound type
//   - Column: the finished, immutable typed buffer plus validity bitmap
//   - Assemble: pairs names with columns into a Batch, checking row counts and names
//   - Batch.Record: zero-copy export as an arrow.Record
//
// # Builder States
//
// A builder starts unresolved when the column type is inferred per batch. Raw
// cells are kept pending, bounded by the chunk size, and replayed through
// coercion once Resolve binds the type:
//
//	b := columnar.NewBuilder(columnar.BuilderOptions{Policy: policy, Capacity: 1024})
//	for _, c := range cells {
//	    _ = b.Append(c)
//	}
//	_ = b.Resolve(state.Resolved())
//	col, err := b.Finish()
//
// In global mode the type is known up front and NewResolvedBuilder coerces
// on append. A cell that the bound type cannot hold fails with a
// SchemaMismatch error in strict mode. Otherwise the builder spills its rows
// back into raw cells, widens the type through the lattice and replays them.
//
// # Coercion
//
// Lower kinds are up-cast into higher column types: true/false become 1/0 in
// Int64 columns and 1.0/0.0 in Float64 columns; in Utf8String columns every
// value takes its canonical text (see cell.Format). Serial numbers reach a
// Timestamp column only when ambiguous numeric dates are enabled.
//
// # Arrow Export
//
// Batch.Record wraps the existing buffers in Arrow arrays without copying.
// Int64, Float64, Boolean, String (int32 offsets) and Timestamp[us] arrays are
// produced. The record must be released by the caller; the batch itself stays
// valid afterwards.
package columnar
