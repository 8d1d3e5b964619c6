// Package gindex builds, persists and loads the compatibility index: a
// per-contig, position-ordered table mapping each physical variant record to
// its file offset. The index is built once per source, is immutable
// thereafter, and lets range queries avoid rescanning the source file.
package gindex

import (
	"fmt"
	"sort"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/variant"
)

// Entry is one physical record in the index. Multi-allelic records
// contribute a single entry; per-allele expansion happens at query time.
type Entry struct {
	variant.Site
	Byte   int64  // physical offset of the record in the source
	Record uint32 // record ordinal in file order
}

// ContigIndex holds the position-ordered entries of one contig. A contig
// with zero variants is present with an empty entry slice, so queries
// against it return empty results rather than erroring.
type ContigIndex struct {
	Contig  genome.Contig
	Entries []Entry
}

// LowerBound returns the index of the first entry with Pos >= pos.
func (c *ContigIndex) LowerBound(pos int64) int {
	return sort.Search(len(c.Entries), func(i int) bool {
		return c.Entries[i].Pos >= pos
	})
}

// Index is the position index of one variant source.
type Index struct {
	Provenance Provenance
	Contigs    []ContigIndex

	byName map[string]int
}

// Contig returns the index data for a contig by its source-spelled name.
func (ix *Index) Contig(name string) (*ContigIndex, bool) {
	i, ok := ix.byName[name]
	if !ok {
		return nil, false
	}
	return &ix.Contigs[i], true
}

// ContigList returns the indexed contigs in source order.
func (ix *Index) ContigList() []genome.Contig {
	contigs := make([]genome.Contig, len(ix.Contigs))
	for i, c := range ix.Contigs {
		contigs[i] = c.Contig
	}
	return contigs
}

// Records returns the total number of indexed physical records.
func (ix *Index) Records() int {
	n := 0
	for _, c := range ix.Contigs {
		n += len(c.Entries)
	}
	return n
}

func (ix *Index) rebuildByName() {
	ix.byName = make(map[string]int, len(ix.Contigs))
	for i, c := range ix.Contigs {
		ix.byName[c.Contig.Name] = i
	}
}

// Progress receives coarse progress ticks during an index build. done is the
// number of records scanned so far; total is -1 when the record count is not
// known up front. Purely observational.
type Progress func(done, total int64)

const progressInterval = 4096

// Build scans the source once, in file order, and produces its position
// index. Contigs listed by the handle are present even when no record lands
// on them. Entries on each contig must arrive with non-decreasing positions;
// ties keep file order.
func Build(h variant.Handle, progress Progress) (*Index, error) {
	ix := &Index{
		Provenance: NewProvenance(h),
	}
	for _, c := range h.Contigs() {
		ix.Contigs = append(ix.Contigs, ContigIndex{Contig: c})
	}
	ix.rebuildByName()

	it, err := h.IterateRegion("", 0, genome.MaxPos)
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	defer it.Close()

	var done int64
	for {
		rec, off, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("scan record %d: %w", done, err)
		}
		if rec == nil {
			break
		}

		i, ok := ix.byName[rec.Chrom]
		if !ok {
			// Source without contig metadata: discover contigs as records
			// arrive, with unknown length.
			ix.Contigs = append(ix.Contigs, ContigIndex{
				Contig: genome.Contig{Name: rec.Chrom, Length: genome.MaxPos},
			})
			i = len(ix.Contigs) - 1
			ix.byName[rec.Chrom] = i
		}

		entries := ix.Contigs[i].Entries
		if n := len(entries); n > 0 && entries[n-1].Pos > rec.Pos {
			return nil, fmt.Errorf("contig %s: record %d at %d after %d: source is not position-sorted",
				rec.Chrom, done, rec.Pos, entries[n-1].Pos)
		}

		ix.Contigs[i].Entries = append(entries, Entry{
			Site:   variant.Summarize(rec),
			Byte:   off,
			Record: uint32(done),
		})

		done++
		if progress != nil && done%progressInterval == 0 {
			progress(done, -1)
		}
	}
	if progress != nil {
		progress(done, done)
	}

	return ix, nil
}
