package columnar

import (
	"time"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
)

// Coercion up-casts a cell whose natural type is lower than the column type.
// Callers check schema.Accepts first; every function assumes the cell is
// non-empty and representable.

func coerceBool(c cell.RawCell) bool {
	return c.Bool()
}

func coerceInt64(c cell.RawCell) int64 {
	switch c.Kind() {
	case cell.KindBoolean:
		if c.Bool() {
			return 1
		}
		return 0
	case cell.KindFloat:
		i, _ := schema.IntegralFloat(c.Float())
		return i
	default:
		return c.Int()
	}
}

func coerceFloat64(c cell.RawCell) float64 {
	switch c.Kind() {
	case cell.KindBoolean:
		if c.Bool() {
			return 1
		}
		return 0
	case cell.KindInteger:
		return float64(c.Int())
	default:
		return c.Float()
	}
}

// coerceTimestamp returns microseconds since the epoch. Numeric cells only
// reach here as ambiguous serial dates.
func coerceTimestamp(c cell.RawCell, date1904 bool) int64 {
	switch c.Kind() {
	case cell.KindInteger:
		t, _ := cell.SerialToTime(float64(c.Int()), date1904)
		return t.UnixMicro()
	case cell.KindFloat:
		t, _ := cell.SerialToTime(c.Float(), date1904)
		return t.UnixMicro()
	default:
		return c.Time().UnixMicro()
	}
}

func coerceString(c cell.RawCell) string {
	return cell.Format(c)
}

func microsToTime(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
