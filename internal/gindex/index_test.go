package gindex

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/variant"
)

// memHandle is an in-memory record backend for index tests.
type memHandle struct {
	path    string
	contigs []genome.Contig
	samples []string
	records []*variant.Record
}

func (m *memHandle) Path() string             { return m.path }
func (m *memHandle) Kind() variant.Kind       { return variant.KindRecord }
func (m *memHandle) Contigs() []genome.Contig { return m.contigs }
func (m *memHandle) Samples() []string        { return m.samples }
func (m *memHandle) Close() error             { return nil }

func (m *memHandle) DecodeAt(offset int64) (*variant.Record, error) {
	for i, r := range m.records {
		if int64(i*100) == offset {
			return r, nil
		}
	}
	return nil, variant.ErrDecodeFailure
}

func (m *memHandle) IterateRegion(contig string, start, end int64) (variant.RecordIterator, error) {
	return &memIterator{h: m, contig: contig, start: start, end: end}, nil
}

type memIterator struct {
	h          *memHandle
	contig     string
	start, end int64
	next       int
}

func (it *memIterator) Next() (*variant.Record, int64, error) {
	for ; it.next < len(it.h.records); it.next++ {
		r := it.h.records[it.next]
		if it.contig != "" && (r.Chrom != it.contig || r.Pos < it.start || r.Pos >= it.end) {
			continue
		}
		off := int64(it.next * 100)
		it.next++
		return r, off, nil
	}
	return nil, 0, nil
}

func (it *memIterator) Close() error { return nil }

func testHandle() *memHandle {
	return &memHandle{
		path: "/data/test.vcf",
		contigs: []genome.Contig{
			{Name: "chr1", Length: 1000},
			{Name: "chr2", Length: 500},
		},
		samples: []string{"s1", "s2"},
		records: []*variant.Record{
			{Chrom: "chr1", Pos: 10, Ref: "A", Alts: []string{"T", "G"}, Qual: 50, Pass: true},
			{Chrom: "chr1", Pos: 500, Ref: "C", Alts: []string{"G"}, Qual: 20, Pass: true},
			{Chrom: "chr1", Pos: 999, Ref: "G", Alts: []string{"A"}, Qual: 60, Pass: false},
		},
	}
}

func TestBuild(t *testing.T) {
	ix, err := Build(testHandle(), nil)
	require.NoError(t, err)

	chr1, ok := ix.Contig("chr1")
	require.True(t, ok)
	require.Len(t, chr1.Entries, 3)
	assert.Equal(t, int64(10), chr1.Entries[0].Pos)
	assert.Equal(t, uint16(2), chr1.Entries[0].Alleles, "multi-allelic record is one entry")
	assert.Equal(t, uint32(0), chr1.Entries[0].Record)
	assert.Equal(t, int64(0), chr1.Entries[0].Byte)
	assert.Equal(t, uint32(1), chr1.Entries[1].Record)
	assert.Equal(t, int64(100), chr1.Entries[1].Byte)

	chr2, ok := ix.Contig("chr2")
	require.True(t, ok, "contig with zero variants is present")
	assert.Empty(t, chr2.Entries)

	assert.Equal(t, 3, ix.Records())
}

func TestBuild_DiscoversUnlistedContig(t *testing.T) {
	h := testHandle()
	h.contigs = nil
	h.records = append(h.records, &variant.Record{Chrom: "chrX", Pos: 5, Ref: "A", Alts: []string{"C"}})

	ix, err := Build(h, nil)
	require.NoError(t, err)

	chrX, ok := ix.Contig("chrX")
	require.True(t, ok)
	assert.Equal(t, genome.MaxPos, chrX.Contig.Length, "unknown length")
	assert.Len(t, chrX.Entries, 1)
}

func TestBuild_RejectsUnsortedSource(t *testing.T) {
	h := testHandle()
	h.records = []*variant.Record{
		{Chrom: "chr1", Pos: 500, Ref: "C", Alts: []string{"G"}},
		{Chrom: "chr1", Pos: 10, Ref: "A", Alts: []string{"T"}},
	}
	_, err := Build(h, nil)
	assert.ErrorContains(t, err, "not position-sorted")
}

func TestBuild_ProgressTicks(t *testing.T) {
	var last int64 = -1
	_, err := Build(testHandle(), func(done, total int64) {
		last = done
		assert.Equal(t, done, total, "final tick reports the total")
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)
}

func TestLowerBound(t *testing.T) {
	ix, err := Build(testHandle(), nil)
	require.NoError(t, err)
	chr1, _ := ix.Contig("chr1")

	assert.Equal(t, 0, chr1.LowerBound(0))
	assert.Equal(t, 0, chr1.LowerBound(10), "exact hit is included")
	assert.Equal(t, 1, chr1.LowerBound(11))
	assert.Equal(t, 2, chr1.LowerBound(600))
	assert.Equal(t, 3, chr1.LowerBound(1000), "past the last entry")
}

func TestRoundTrip(t *testing.T) {
	h := testHandle()
	ix, err := Build(h, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ix.WriteTo(&buf))

	loaded, err := ReadFrom(&buf)
	require.NoError(t, err)
	require.NoError(t, loaded.Validate(h))

	assert.Equal(t, ix.Provenance, loaded.Provenance)
	require.Len(t, loaded.Contigs, len(ix.Contigs))
	for i := range ix.Contigs {
		assert.Equal(t, ix.Contigs[i].Contig, loaded.Contigs[i].Contig)
		assert.Equal(t, ix.Contigs[i].Entries, loaded.Contigs[i].Entries, "round-trip reproduces identical offsets")
	}
}

func TestRoundTrip_File(t *testing.T) {
	h := testHandle()
	ix, err := Build(h, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "test.vcf.vqi")
	require.NoError(t, WriteFile(path, ix))

	loaded, err := LoadFile(path, h)
	require.NoError(t, err)
	assert.Equal(t, ix.Records(), loaded.Records())
}

func TestLoad_Mismatch(t *testing.T) {
	h := testHandle()
	ix, err := Build(h, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "test.vcf.vqi")
	require.NoError(t, WriteFile(path, ix))

	// Same path, different sample universe.
	other := testHandle()
	other.samples = []string{"s1", "s2", "s3"}
	_, err = LoadFile(path, other)
	assert.ErrorIs(t, err, variant.ErrIndexMismatch)
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(indexMagic[:])
	binary.Write(&buf, binary.LittleEndian, uint32(99))

	_, err := ReadFrom(&buf)
	assert.ErrorIs(t, err, variant.ErrUnsupportedIndexVersion)
}

func TestLoad_BadMagic(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader([]byte("NOPE....")))
	assert.ErrorContains(t, err, "not a variant index artifact")
}

func TestIndexPath(t *testing.T) {
	assert.Equal(t, "/data/a.vcf.vqi", IndexPath("/data/a.vcf"))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.vqi"), testHandle())
	assert.True(t, os.IsNotExist(errUnwrapAll(err)))
}

func errUnwrapAll(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
}
