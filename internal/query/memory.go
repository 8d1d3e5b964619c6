package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseMemory parses a human-readable memory size such as "512m", "4g" or
// "1024" (plain bytes). Suffixes are powers of 1024 and case-insensitive;
// an optional trailing "b" is tolerated ("4gb").
func ParseMemory(s string) (int64, error) {
	orig := s
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("parse memory size %q: empty", orig)
	}

	var unit int64 = 1
	i := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	if i >= 0 {
		switch strings.TrimSuffix(s[i:], "b") {
		case "":
			unit = 1
		case "k":
			unit = 1 << 10
		case "m":
			unit = 1 << 20
		case "g":
			unit = 1 << 30
		case "t":
			unit = 1 << 40
		default:
			return 0, fmt.Errorf("parse memory size %q: unknown unit %q", orig, s[i:])
		}
		s = s[:i]
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("parse memory size %q: invalid number %q", orig, s)
	}
	return int64(n * float64(unit)), nil
}

// VariantsPerChunk converts a memory budget into a count bound for chunked
// dosage extraction, assuming one float32 per sample per logical entry.
// The result is at least 1 so a plan always makes progress.
func VariantsPerChunk(maxMem int64, samples int) int {
	if samples < 1 {
		samples = 1
	}
	n := maxMem / (int64(samples) * 4)
	if n < 1 {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}
