package cell

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pranav-jay26/Crossbow/pkg/config"
)

var (
	integerPattern = regexp.MustCompile(`^[+-]?[0-9]+$`)
	floatPattern   = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)
)

// Classifier turns text tokens into typed cells. Adapters whose container only
// stores strings (delimited text, legacy BIFF workbooks) run every token
// through it. The rules are applied in order:
//
//  1. null tokens become Empty
//  2. true/false tokens (case-insensitive) become Boolean
//  3. decimal integers become Integer; out of int64 range they become Float
//  4. decimal floats become Float
//  5. tokens matching a configured time layout become DateTime
//  6. everything else is Text
//
// Numbers written with redundant leading zeros ("007", "00.5") stay Text.
type Classifier struct {
	nulls    map[string]struct{}
	trues    map[string]struct{}
	falses   map[string]struct{}
	layouts  []string
	trim     bool
	hasEmpty bool
}

// NewClassifier builds a classifier from the adapter options.
func NewClassifier(cfg config.SourceConfig) *Classifier {
	c := &Classifier{
		nulls:   toSet(cfg.NullValues, false),
		trues:   toSet(cfg.TrueValues, true),
		falses:  toSet(cfg.FalseValues, true),
		layouts: cfg.DatetimeLayouts,
		trim:    cfg.TrimSpace,
	}
	_, c.hasEmpty = c.nulls[""]
	return c
}

func toSet(values []string, fold bool) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if fold {
			v = strings.ToLower(v)
		}
		set[v] = struct{}{}
	}
	return set
}

// Classify returns the typed cell for s.
func (c *Classifier) Classify(s string) RawCell {
	if c.trim {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if c.hasEmpty {
			return Empty()
		}
		return Text(s)
	}
	if _, ok := c.nulls[s]; ok {
		return Empty()
	}

	if len(c.trues) > 0 || len(c.falses) > 0 {
		lower := strings.ToLower(s)
		if _, ok := c.trues[lower]; ok {
			return Bool(true)
		}
		if _, ok := c.falses[lower]; ok {
			return Bool(false)
		}
	}

	if v, ok := parseNumber(s); ok {
		return v
	}

	if t, ok := c.parseTime(s); ok {
		return DateTime(t)
	}
	return Text(s)
}

func parseNumber(s string) (RawCell, bool) {
	first := s[0]
	if first != '+' && first != '-' && first != '.' && (first < '0' || first > '9') {
		return RawCell{}, false
	}
	if hasRedundantZero(s) {
		return RawCell{}, false
	}
	if integerPattern.MatchString(s) {
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return Int(i), true
		}
		if errors.Is(err, strconv.ErrRange) {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr == nil {
				return Float(f), true
			}
		}
		return RawCell{}, false
	}
	if floatPattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return Float(f), true
		}
	}
	return RawCell{}, false
}

// hasRedundantZero reports whether the integer part of a numeric token has
// leading zeros, e.g. "007" or "-01.5". A lone "0" is fine.
func hasRedundantZero(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	return len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9'
}

func (c *Classifier) parseTime(s string) (time.Time, bool) {
	for _, layout := range c.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
