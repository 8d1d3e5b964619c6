package query

import (
	"sort"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/gindex"
	"github.com/inodb/varq/internal/variant"
)

// viewEntry is one index entry surviving the active filter, annotated with
// the logical index of its first allele in the filtered enumeration.
type viewEntry struct {
	gindex.Entry
	first uint32
}

type viewContig struct {
	contig  genome.Contig
	entries []viewEntry
}

// lowerBound returns the smallest entry position i with entries[i].Pos >= pos.
func (vc *viewContig) lowerBound(pos int64) int {
	return sort.Search(len(vc.entries), func(i int) bool {
		return vc.entries[i].Pos >= pos
	})
}

// filteredView is the active filter applied to the position index. Logical
// indices run over surviving alleles in source order, so they stay dense
// and consistent across queries until the filter changes.
type filteredView struct {
	contigs []viewContig
	byName  map[string]int
	total   uint32 // logical entries in the whole view
}

func buildView(ix *gindex.Index, filter variant.Predicate) *filteredView {
	v := &filteredView{byName: make(map[string]int)}
	var next uint32
	for _, ci := range ix.Contigs {
		vc := viewContig{contig: ci.Contig}
		for _, e := range ci.Entries {
			if filter != nil && !filter(e.Site) {
				continue
			}
			vc.entries = append(vc.entries, viewEntry{Entry: e, first: next})
			next += uint32(e.Alleles)
		}
		v.byName[ci.Contig.Name] = len(v.contigs)
		v.contigs = append(v.contigs, vc)
	}
	v.total = next
	return v
}

func (v *filteredView) contig(name string) *viewContig {
	i, ok := v.byName[name]
	if !ok {
		return nil
	}
	return &v.contigs[i]
}

// preValidate rejects malformed ranges before any index I/O. The contig
// check only applies when the source declared its contigs at open; sources
// without header metadata reveal theirs during the index scan, so their
// check happens in resolve instead.
func (r *Reader) preValidate(rng genome.Range) error {
	if rng.Start < 0 || rng.End < rng.Start {
		return errInvalidRange(rng, "start and end must satisfy 0 <= start <= end")
	}
	if len(r.source.Contigs()) > 0 && r.norm.Norm(rng.Contig) == "" {
		return errInvalidRange(rng, "unknown contig")
	}
	return nil
}

// ensureView materializes the filtered view, building the index first if
// needed.
func (r *Reader) ensureView() (*filteredView, error) {
	if r.view != nil {
		return r.view, nil
	}
	ix, err := r.Index()
	if err != nil {
		return nil, err
	}
	r.view = buildView(ix, r.filter)
	return r.view, nil
}

// resolve validates a query range against the source and clamps its end to
// the contig length. The boolean is false when the clamped range is empty.
func (r *Reader) resolve(rng genome.Range, v *filteredView) (genome.Range, bool, error) {
	name := r.norm.Norm(rng.Contig)
	if name == "" {
		return rng, false, errInvalidRange(rng, "unknown contig")
	}
	vc := v.contig(name)
	if vc == nil {
		return rng, false, errInvalidRange(rng, "unknown contig")
	}

	out := genome.Range{Contig: name, Start: rng.Start, End: rng.End}
	if out.End > vc.contig.Length {
		out.End = vc.contig.Length
	}
	if out.End < out.Start {
		out.End = out.Start
	}
	return out, out.Start < out.End, nil
}

// Query returns the logical variant offsets overlapping rng, ordered by
// start position with file order breaking ties. Multi-allelic records
// expand to one offset per alternate allele, all sharing the record's
// physical offset. Ranges beyond the contig end clamp; an empty or fully
// out-of-bounds range yields an empty result, never an error.
func (r *Reader) Query(rng genome.Range) ([]variant.Offset, error) {
	if err := r.preValidate(rng); err != nil {
		return nil, err
	}
	v, err := r.ensureView()
	if err != nil {
		return nil, err
	}
	rng, nonEmpty, err := r.resolve(rng, v)
	if err != nil {
		return nil, err
	}
	if !nonEmpty {
		return nil, nil
	}

	vc := v.contig(rng.Contig)
	var out []variant.Offset
	for i := vc.lowerBound(rng.Start); i < len(vc.entries); i++ {
		e := vc.entries[i]
		if e.Pos >= rng.End {
			break
		}
		out = append(out, variant.Normalize(rng.Contig, e.Site, e.Record, e.Byte, e.first)...)
	}
	return out, nil
}

// QueryRanges runs Query over each range and returns the per-range results
// in the same order. Ranges may touch or overlap; each is served
// independently.
func (r *Reader) QueryRanges(rngs []genome.Range) ([][]variant.Offset, error) {
	out := make([][]variant.Offset, len(rngs))
	for i, rng := range rngs {
		offs, err := r.Query(rng)
		if err != nil {
			return nil, err
		}
		out[i] = offs
	}
	return out, nil
}

// CountRange returns the number of logical entries Query would yield for
// rng, without materializing them.
func (r *Reader) CountRange(rng genome.Range) (int, error) {
	if err := r.preValidate(rng); err != nil {
		return 0, err
	}
	v, err := r.ensureView()
	if err != nil {
		return 0, err
	}
	rng, nonEmpty, err := r.resolve(rng, v)
	if err != nil {
		return 0, err
	}
	if !nonEmpty {
		return 0, nil
	}

	vc := v.contig(rng.Contig)
	n := 0
	for i := vc.lowerBound(rng.Start); i < len(vc.entries); i++ {
		if vc.entries[i].Pos >= rng.End {
			break
		}
		n += int(vc.entries[i].Alleles)
	}
	return n, nil
}

// CountRanges maps CountRange over rngs.
func (r *Reader) CountRanges(rngs []genome.Range) ([]int, error) {
	out := make([]int, len(rngs))
	for i, rng := range rngs {
		n, err := r.CountRange(rng)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// Records decodes the full record behind each offset, one decode per
// distinct physical record.
func (r *Reader) Records(offsets []variant.Offset) ([]*variant.Record, error) {
	out := make([]*variant.Record, len(offsets))
	var last *variant.Record
	lastRecord := uint32(0)
	for i, off := range offsets {
		if last != nil && off.Record == lastRecord {
			out[i] = last
			continue
		}
		rec, err := r.source.DecodeAt(off.Byte)
		if err != nil {
			return nil, err
		}
		out[i], last, lastRecord = rec, rec, off.Record
	}
	return out, nil
}
