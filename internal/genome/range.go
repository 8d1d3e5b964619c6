package genome

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a half-open genomic interval [Start, End) in 0-based coordinates.
// An empty range (Start == End) is legal and overlaps nothing.
type Range struct {
	Contig string
	Start  int64
	End    int64
}

// Span returns the genomic length of the range.
func (r Range) Span() int64 {
	return r.End - r.Start
}

// Contains reports whether pos falls inside the range.
func (r Range) Contains(pos int64) bool {
	return pos >= r.Start && pos < r.End
}

func (r Range) String() string {
	if r.End == MaxPos {
		return fmt.Sprintf("%s:%d-", r.Contig, r.Start)
	}
	return fmt.Sprintf("%s:%d-%d", r.Contig, r.Start, r.End)
}

// ParseRegion parses a region string of the form "chr1", "chr1:100" or
// "chr1:100-200". Coordinates are 0-based; the end is exclusive and defaults
// to MaxPos when omitted.
func ParseRegion(s string) (Range, error) {
	r := Range{End: MaxPos}

	contig, rest, found := strings.Cut(s, ":")
	if contig == "" {
		return Range{}, fmt.Errorf("parse region %q: empty contig", s)
	}
	r.Contig = contig
	if !found {
		return r, nil
	}

	startStr, endStr, hasEnd := strings.Cut(rest, "-")
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("parse region %q: invalid start %q", s, startStr)
	}
	r.Start = start

	if hasEnd && endStr != "" {
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return Range{}, fmt.Errorf("parse region %q: invalid end %q", s, endStr)
		}
		r.End = end
	}

	if r.Start < 0 || r.End < r.Start {
		return Range{}, fmt.Errorf("parse region %q: inverted or negative range", s)
	}
	return r, nil
}
