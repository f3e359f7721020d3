package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// numericShape is the accepted form after cleanup: optional leading
// minus, digits, at most one decimal point.
var numericShape = regexp.MustCompile(`^-?\d*\.?\d+$`)

// Normalize converts a locale-formatted numeric value into a float64.
// Numbers pass through unchanged. Strings are stripped of whitespace,
// the first comma becomes a decimal point, and the result must match
// numericShape. Anything else yields (0, false): malformed cells never
// abort a batch, they become zero-impact rows that the aggregation pass
// drops. The bool reports whether the value parsed cleanly so callers
// can count coercions.
func Normalize(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		return normalizeString(v)
	default:
		return 0, false
	}
}

func normalizeString(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	cleaned = strings.Replace(cleaned, ",", ".", 1)

	if !numericShape.MatchString(cleaned) {
		return 0, false
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
