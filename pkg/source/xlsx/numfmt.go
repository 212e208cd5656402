package xlsx

import "strings"

// IsDateFormat reports whether a built-in number format id renders a date or
// time.
func IsDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// IsDateFormatCode reports whether a custom number format code contains date
// or time tokens. Quoted literals, escaped characters and bracketed sections
// such as colours or locales are ignored; elapsed time sections ([h]) count.
func IsDateFormatCode(code string) bool {
	// only the first section decides how positive numbers render
	section := code
	if i := indexUnquoted(code, ';'); i >= 0 {
		section = code[:i]
	}

	inQuote := false
	for i := 0; i < len(section); i++ {
		ch := section[i]
		switch {
		case inQuote:
			if ch == '"' {
				inQuote = false
			}
		case ch == '"':
			inQuote = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++
		case ch == '[':
			end := strings.IndexByte(section[i:], ']')
			if end < 0 {
				return false
			}
			inner := strings.ToLower(section[i+1 : i+end])
			if inner == "h" || inner == "hh" || inner == "m" || inner == "mm" || inner == "s" || inner == "ss" {
				return true
			}
			i += end
		default:
			switch ch {
			case 'y', 'Y', 'd', 'D', 'h', 'H', 's', 'S', 'm', 'M':
				return true
			}
		}
	}
	return false
}

func indexUnquoted(s string, sep byte) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inQuote = !inQuote
		case s[i] == '\\':
			i++
		case s[i] == sep && !inQuote:
			return i
		}
	}
	return -1
}
