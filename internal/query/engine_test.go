package query

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/gindex"
	"github.com/inodb/varq/internal/variant"
)

const queryVCF = `##fileformat=VCFv4.2
##contig=<ID=chr1,length=1000>
##contig=<ID=chr2,length=800>
##contig=<ID=chr3,length=500>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	s1	s2	s3
chr1	11	rs1	A	T,G	50	PASS	.	GT	0/1	0/0	0/0
chr1	501	rs2	C	G	10	PASS	.	GT	0/1	1/1	0/0
chr1	1000	rs3	G	A	99	PASS	.	GT	0/0	0/1	0/0
chr2	101	rs4	GAT	G	30	PASS	.	GT	0/0	0/1	1/1
chr2	151	rs5	T	C	40	q10	.	GT	0/1	0/0	0/0
`

func writeQueryVCF(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "cohort.vcf")
	require.NoError(t, os.WriteFile(path, []byte(queryVCF), 0644))
	return path
}

func openTestReader(t *testing.T) *Reader {
	t.Helper()
	r, err := Open(writeQueryVCF(t, t.TempDir()), variant.KindAuto)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestQuery_MultiAllelicExpansion(t *testing.T) {
	r := openTestReader(t)

	offs, err := r.Query(genome.Range{Contig: "chr1", Start: 0, End: 600})
	require.NoError(t, err)
	require.Len(t, offs, 3)

	// rs1 expands to two allele entries sharing the physical record.
	assert.Equal(t, int64(10), offs[0].Pos)
	assert.Equal(t, int64(10), offs[1].Pos)
	assert.Equal(t, uint16(0), offs[0].AlleleIndex)
	assert.Equal(t, uint16(1), offs[1].AlleleIndex)
	assert.Equal(t, offs[0].Byte, offs[1].Byte)
	assert.Equal(t, offs[0].Record, offs[1].Record)
	assert.Equal(t, uint16(2), offs[0].Alleles)

	assert.Equal(t, int64(500), offs[2].Pos)
	assert.Equal(t, uint16(0), offs[2].AlleleIndex)
	assert.NotEqual(t, offs[0].Record, offs[2].Record)
}

func TestQuery_AdjacentRangesPartitionResults(t *testing.T) {
	r := openTestReader(t)

	full, err := r.Query(genome.Range{Contig: "chr1", Start: 0, End: 1000})
	require.NoError(t, err)
	require.Len(t, full, 4)

	// Logical indices are consecutive and every query on the same view
	// reports the same index for the same entry.
	for i, off := range full {
		assert.Equal(t, uint32(i), off.Index)
	}

	left, err := r.Query(genome.Range{Contig: "chr1", Start: 0, End: 500})
	require.NoError(t, err)
	right, err := r.Query(genome.Range{Contig: "chr1", Start: 500, End: 1000})
	require.NoError(t, err)

	assert.Equal(t, full, append(append([]variant.Offset{}, left...), right...))
}

func TestQuery_BoundaryMembership(t *testing.T) {
	r := openTestReader(t)

	// Start positions are inclusive, ends exclusive.
	offs, err := r.Query(genome.Range{Contig: "chr1", Start: 500, End: 501})
	require.NoError(t, err)
	require.Len(t, offs, 1)
	assert.Equal(t, int64(500), offs[0].Pos)

	offs, err = r.Query(genome.Range{Contig: "chr1", Start: 0, End: 500})
	require.NoError(t, err)
	require.Len(t, offs, 2)
	for _, off := range offs {
		assert.Equal(t, int64(10), off.Pos)
	}
}

func TestQuery_ClampAndEmpty(t *testing.T) {
	r := openTestReader(t)

	// End past the contig clamps, it does not error.
	offs, err := r.Query(genome.Range{Contig: "chr1", Start: 600, End: 5000})
	require.NoError(t, err)
	require.Len(t, offs, 1)
	assert.Equal(t, int64(999), offs[0].Pos)

	// Fully out of bounds yields empty, not an error.
	offs, err = r.Query(genome.Range{Contig: "chr1", Start: 2000, End: 3000})
	require.NoError(t, err)
	assert.Empty(t, offs)

	// Indexed contig without variants yields empty.
	offs, err = r.Query(genome.Range{Contig: "chr3", Start: 0, End: 500})
	require.NoError(t, err)
	assert.Empty(t, offs)

	// Zero-width range overlaps nothing.
	offs, err = r.Query(genome.Range{Contig: "chr1", Start: 10, End: 10})
	require.NoError(t, err)
	assert.Empty(t, offs)
}

func TestQuery_InvalidRange(t *testing.T) {
	r := openTestReader(t)

	_, err := r.Query(genome.Range{Contig: "chr1", Start: 600, End: 500})
	assert.ErrorIs(t, err, variant.ErrInvalidRange)

	_, err = r.Query(genome.Range{Contig: "chr1", Start: -1, End: 500})
	assert.ErrorIs(t, err, variant.ErrInvalidRange)

	_, err = r.Query(genome.Range{Contig: "chr99", Start: 0, End: 100})
	assert.ErrorIs(t, err, variant.ErrInvalidRange)
}

func TestQuery_ContigNameNormalization(t *testing.T) {
	r := openTestReader(t)

	bare, err := r.Query(genome.Range{Contig: "1", Start: 0, End: 600})
	require.NoError(t, err)
	prefixed, err := r.Query(genome.Range{Contig: "chr1", Start: 0, End: 600})
	require.NoError(t, err)
	assert.Equal(t, prefixed, bare)
	require.NotEmpty(t, bare)
	assert.Equal(t, "chr1", bare[0].Contig)
}

func TestQuery_FilterRebuildsView(t *testing.T) {
	r := openTestReader(t)

	r.SetFilter(variant.MinQual(20))
	offs, err := r.Query(genome.Range{Contig: "chr1", Start: 0, End: 600})
	require.NoError(t, err)
	require.Len(t, offs, 2)
	assert.Equal(t, int64(10), offs[0].Pos)
	assert.Equal(t, int64(10), offs[1].Pos)
	// Logical indices are dense over the filtered view.
	assert.Equal(t, uint32(0), offs[0].Index)
	assert.Equal(t, uint32(1), offs[1].Index)
	// Physical identity is untouched by filtering.
	assert.Equal(t, uint32(0), offs[0].Record)

	r.SetFilter(variant.PassOnly())
	offs, err = r.Query(genome.Range{Contig: "chr2", Start: 0, End: 800})
	require.NoError(t, err)
	require.Len(t, offs, 1)
	assert.Equal(t, int64(100), offs[0].Pos)

	r.SetFilter(nil)
	offs, err = r.Query(genome.Range{Contig: "chr1", Start: 0, End: 600})
	require.NoError(t, err)
	assert.Len(t, offs, 3)
}

func TestQueryRanges_And_Counts(t *testing.T) {
	r := openTestReader(t)

	rngs := []genome.Range{
		{Contig: "chr1", Start: 0, End: 600},
		{Contig: "chr2", Start: 0, End: 800},
		{Contig: "chr3", Start: 0, End: 500},
	}
	per, err := r.QueryRanges(rngs)
	require.NoError(t, err)
	require.Len(t, per, 3)
	assert.Len(t, per[0], 3)
	assert.Len(t, per[1], 2)
	assert.Empty(t, per[2])

	counts, err := r.CountRanges(rngs)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 0}, counts)
}

func TestRecords_DecodeThroughOffsets(t *testing.T) {
	r := openTestReader(t)

	offs, err := r.Query(genome.Range{Contig: "chr1", Start: 0, End: 600})
	require.NoError(t, err)
	recs, err := r.Records(offs)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "rs1", recs[0].ID)
	assert.Equal(t, []string{"T", "G"}, recs[0].Alts)
	// Both allele entries decode to the same physical record.
	assert.Same(t, recs[0], recs[1])
	assert.Equal(t, "rs2", recs[2].ID)
}

func TestIndex_PersistedAcrossReaders(t *testing.T) {
	dir := t.TempDir()
	path := writeQueryVCF(t, dir)

	r1, err := Open(path, variant.KindAuto)
	require.NoError(t, err)
	first, err := r1.Query(genome.Range{Contig: "chr1", Start: 0, End: 1000})
	require.NoError(t, err)
	require.NoError(t, r1.Close())

	// The first query persisted a sidecar next to the source.
	_, err = os.Stat(gindex.IndexPath(path))
	require.NoError(t, err)

	// A fresh Reader loads it and answers identically.
	r2, err := Open(path, variant.KindAuto)
	require.NoError(t, err)
	defer r2.Close()
	second, err := r2.Query(genome.Range{Contig: "chr1", Start: 0, End: 1000})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIndex_MismatchSurfacesAndRebuilds(t *testing.T) {
	dir := t.TempDir()
	path := writeQueryVCF(t, dir)

	r1, err := Open(path, variant.KindAuto)
	require.NoError(t, err)
	_, err = r1.Query(genome.Range{Contig: "chr1", Start: 0, End: 100})
	require.NoError(t, err)
	require.NoError(t, r1.Close())

	// Regenerate the source with a different sample set. The stale sidecar
	// must be rejected, not silently used.
	stale := `##fileformat=VCFv4.2
##contig=<ID=chr1,length=1000>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	s1
chr1	11	rs1	A	T	50	PASS	.	GT	0/1
`
	require.NoError(t, os.WriteFile(path, []byte(stale), 0644))

	r2, err := Open(path, variant.KindAuto)
	require.NoError(t, err)
	defer r2.Close()
	_, err = r2.Query(genome.Range{Contig: "chr1", Start: 0, End: 100})
	assert.ErrorIs(t, err, variant.ErrIndexMismatch)

	// Explicit rebuild is the recovery path.
	_, err = r2.BuildIndex()
	require.NoError(t, err)
	offs, err := r2.Query(genome.Range{Contig: "chr1", Start: 0, End: 100})
	require.NoError(t, err)
	assert.Len(t, offs, 1)
}

func TestSetSamples(t *testing.T) {
	r := openTestReader(t)

	assert.Equal(t, []string{"s1", "s2", "s3"}, r.Samples())

	require.NoError(t, r.SetSamples([]string{"s3", "s1"}))
	assert.Equal(t, []string{"s3", "s1"}, r.Samples())
	assert.Equal(t, []int{2, 0}, r.sampleSel)

	err := r.SetSamples([]string{"s1", "nope"})
	assert.ErrorContains(t, err, `"nope"`)

	require.NoError(t, r.SetSamples(nil))
	assert.Equal(t, []string{"s1", "s2", "s3"}, r.Samples())
}

func TestQuery_UnknownContigRejectedBeforeIndexBuild(t *testing.T) {
	dir := t.TempDir()
	path := writeQueryVCF(t, dir)

	r, err := Open(path, variant.KindAuto)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Query(genome.Range{Contig: "chr99", Start: 0, End: 100})
	assert.ErrorIs(t, err, variant.ErrInvalidRange)

	// The rejection happened before any scan: no sidecar was written.
	_, err = os.Stat(gindex.IndexPath(path))
	assert.True(t, os.IsNotExist(err))
}

func TestRemapDosageOffsets(t *testing.T) {
	entries := []gindex.Entry{
		{Site: variant.Site{Pos: 10, End: 11, Alleles: 2}, Byte: 5000, Record: 0},
		{Site: variant.Site{Pos: 500, End: 501, Alleles: 1}, Byte: 6000, Record: 1},
	}
	// Offsets as the primary source's index produced them: Byte values are
	// positions in the primary file, useless in the dosage file.
	offs := []variant.Offset{
		{Contig: "chr1", Pos: 10, End: 11, Index: 0, Record: 0, Byte: 123, AlleleIndex: 0, Alleles: 2},
		{Contig: "chr1", Pos: 10, End: 11, Index: 1, Record: 0, Byte: 123, AlleleIndex: 1, Alleles: 2},
		{Contig: "chr1", Pos: 500, End: 501, Index: 2, Record: 1, Byte: 456, AlleleIndex: 0, Alleles: 1},
	}

	remapped, err := remapDosageOffsets(offs, entries)
	require.NoError(t, err)
	require.Len(t, remapped, 3)
	assert.Equal(t, int64(5000), remapped[0].Byte)
	assert.Equal(t, int64(5000), remapped[1].Byte)
	assert.Equal(t, int64(6000), remapped[2].Byte)
	// Everything but the byte position is preserved.
	assert.Equal(t, uint16(1), remapped[1].AlleleIndex)
	assert.Equal(t, uint32(2), remapped[2].Index)

	// A dosage source with fewer records cannot serve the offset.
	_, err = remapDosageOffsets(offs, entries[:1])
	assert.ErrorIs(t, err, variant.ErrIndexMismatch)

	// A record at a different position means the files carry different
	// variants.
	moved := []gindex.Entry{
		entries[0],
		{Site: variant.Site{Pos: 501, End: 502, Alleles: 1}, Byte: 6000, Record: 1},
	}
	_, err = remapDosageOffsets(offs, moved)
	assert.ErrorIs(t, err, variant.ErrIndexMismatch)

	// So does a different allele count at the same position.
	reshaped := []gindex.Entry{
		{Site: variant.Site{Pos: 10, End: 11, Alleles: 3}, Byte: 5000, Record: 0},
		entries[1],
	}
	_, err = remapDosageOffsets(offs, reshaped)
	assert.ErrorIs(t, err, variant.ErrIndexMismatch)
}

func TestDosages_RecordBackendUnsupported(t *testing.T) {
	r := openTestReader(t)

	offs, err := r.Query(genome.Range{Contig: "chr1", Start: 0, End: 600})
	require.NoError(t, err)
	_, err = r.Dosages(offs)
	assert.ErrorContains(t, err, "cannot derive dosages")
}

func TestOpen_MissingSource(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.vcf"), variant.KindAuto)
	assert.ErrorIs(t, err, variant.ErrSourceUnavailable)
}
