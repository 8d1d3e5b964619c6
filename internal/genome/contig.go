// Package genome provides genomic coordinate types shared by all variant backends.
package genome

import (
	"math"
	"strings"
)

// MaxPos is the largest representable genomic coordinate. It is used as the
// end position of a range when the caller does not supply one, and as the
// length of a contig whose true length is unknown (e.g. a VCF without
// ##contig header lines).
const MaxPos int64 = math.MaxInt64

// Contig is a named sequence (chromosome) within a variant source.
type Contig struct {
	Name   string
	Length int64
}

// Normalizer maps caller-supplied contig names onto the naming scheme of a
// source, tolerating a "chr" prefix mismatch in either direction. A lookup
// for "1" resolves to "chr1" when the source uses prefixed names, and vice
// versa.
type Normalizer struct {
	names map[string]string
}

// NewNormalizer builds a Normalizer for the given contig names.
func NewNormalizer(contigs []Contig) *Normalizer {
	names := make(map[string]string, 3*len(contigs))
	for _, c := range contigs {
		if strings.HasPrefix(c.Name, "chr") {
			names[c.Name[3:]] = c.Name
		} else {
			names["chr"+c.Name] = c.Name
		}
	}
	// Exact names win over prefix-normalized aliases.
	for _, c := range contigs {
		names[c.Name] = c.Name
	}
	return &Normalizer{names: names}
}

// Norm returns the source's name for the given contig, or "" when the contig
// is unknown under any naming scheme.
func (n *Normalizer) Norm(contig string) string {
	return n.names[contig]
}
