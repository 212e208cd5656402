package cell

import (
	"math"
	"strconv"
	"time"
)

// Format returns the canonical text of a cell. The output never depends on
// locale: integral floats print as integers, other floats in the shortest
// form that round-trips, timestamps as RFC 3339 in UTC.
func Format(c RawCell) string {
	switch c.kind {
	case KindBoolean:
		return FormatBool(c.Bool())
	case KindInteger:
		return strconv.FormatInt(c.Int(), 10)
	case KindFloat:
		return FormatFloat(c.Float())
	case KindText:
		return c.s
	case KindDateTime:
		return FormatTime(c.Time())
	default:
		return ""
	}
}

// FormatBool returns "true" or "false".
func FormatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// FormatFloat formats v in plain decimal notation, switching to exponent
// notation for magnitudes of at least 1e21 or below 1e-6.
func FormatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if v == 0 {
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatTime formats t as RFC 3339 in UTC at microsecond precision. The
// fractional part is omitted when zero.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}
