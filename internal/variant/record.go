// Package variant defines the data model shared by all variant backends:
// decoded records, indexed site summaries, logical variant offsets, the
// backend capability interfaces and the error taxonomy of the query engine.
package variant

// Record is a single decoded physical variant record.
type Record struct {
	Chrom string   // contig name as spelled in the source
	Pos   int64    // 0-based start coordinate
	ID    string   // record identifier (e.g. rs ID), "" if absent
	Ref   string   // reference allele
	Alts  []string // alternate alleles; len(Alts) >= 1
	Qual  float64  // quality score, 0 when absent
	Pass  bool     // FILTER column is PASS or unset
}

// End returns the 0-based exclusive end coordinate of the record.
func (r *Record) End() int64 {
	return r.Pos + int64(len(r.Ref))
}

// IsSNV reports whether the record is a single-nucleotide variant for the
// given alternate allele.
func (r *Record) IsSNV(alleleIndex int) bool {
	return len(r.Ref) == 1 && len(r.Alts[alleleIndex]) == 1
}

// Site kinds, classified the way variant callers do: by reference and
// alternate allele lengths.
const (
	KindSNV uint8 = iota
	KindMNV
	KindIndel
	KindOther
)

// Site is the per-record summary stored in the position index. Filter
// predicates evaluate Sites, so changing the active filter never requires
// touching the backend or rebuilding the index.
type Site struct {
	Pos     int64   // 0-based start
	End     int64   // 0-based exclusive end (Pos + reference length)
	Alleles uint16  // number of alternate alleles
	Kind    uint8   // KindSNV, KindMNV, KindIndel or KindOther
	Qual    float32 // quality score
	Pass    bool    // FILTER is PASS or unset
}

// Summarize derives the indexed Site summary from a decoded record.
func Summarize(r *Record) Site {
	return Site{
		Pos:     r.Pos,
		End:     r.End(),
		Alleles: uint16(len(r.Alts)),
		Kind:    classify(r),
		Qual:    float32(r.Qual),
		Pass:    r.Pass,
	}
}

func classify(r *Record) uint8 {
	kind := KindOther
	for i, alt := range r.Alts {
		var k uint8
		switch {
		case len(alt) != len(r.Ref):
			k = KindIndel
		case len(r.Ref) == 1:
			k = KindSNV
		default:
			k = KindMNV
		}
		if i == 0 {
			kind = k
		} else if kind != k {
			return KindOther
		}
	}
	return kind
}
