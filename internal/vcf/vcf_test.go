package vcf

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/variant"
)

const testVCF = `##fileformat=VCFv4.2
##contig=<ID=chr1,length=1000>
##contig=<ID=chr2,length=500>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	s1	s2
chr1	11	rs1	A	T,G	50	PASS	.	GT	0/1	0/0
chr1	501	rs2	C	G	20	q10	.	GT	0/1	1/1
chr2	100	.	GAT	G	.	.	.	GT	0/0	0/1
`

func writeTestVCF(t *testing.T, gzipped bool) string {
	t.Helper()
	name := "test.vcf"
	if gzipped {
		name = "test.vcf.gz"
	}
	path := filepath.Join(t.TempDir(), name)

	if gzipped {
		f, err := os.Create(path)
		require.NoError(t, err)
		gz := gzip.NewWriter(f)
		_, err = gz.Write([]byte(testVCF))
		require.NoError(t, err)
		require.NoError(t, gz.Close())
		require.NoError(t, f.Close())
	} else {
		require.NoError(t, os.WriteFile(path, []byte(testVCF), 0644))
	}
	return path
}

func TestParser_Header(t *testing.T) {
	p, err := NewParser(writeTestVCF(t, false))
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []genome.Contig{
		{Name: "chr1", Length: 1000},
		{Name: "chr2", Length: 500},
	}, p.Contigs())
	assert.Equal(t, []string{"s1", "s2"}, p.SampleNames())
}

func TestParser_Records(t *testing.T) {
	p, err := NewParser(writeTestVCF(t, false))
	require.NoError(t, err)
	defer p.Close()

	rec, off, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, p.DataOffset(), off, "first record starts at the data offset")
	assert.Equal(t, "chr1", rec.Chrom)
	assert.Equal(t, int64(10), rec.Pos, "POS converted to 0-based")
	assert.Equal(t, []string{"T", "G"}, rec.Alts)
	assert.Equal(t, 50.0, rec.Qual)
	assert.True(t, rec.Pass)

	rec, _, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(500), rec.Pos)
	assert.False(t, rec.Pass, "q10 filter is not PASS")

	rec, _, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, "chr2", rec.Chrom)
	assert.Equal(t, 0.0, rec.Qual, "missing QUAL is zero")
	assert.True(t, rec.Pass, "'.' filter counts as pass")

	rec, _, err = p.Next()
	require.NoError(t, err)
	assert.Nil(t, rec, "end of file")
}

func TestHeaderField(t *testing.T) {
	line := `##contig=<ID=chr1,length=1000,assembly=GRCh38>`
	assert.Equal(t, "chr1", headerField(line, "ID"))
	assert.Equal(t, "1000", headerField(line, "length"))
	assert.Empty(t, headerField(line, "species"))
}

func TestBackend_DecodeAt(t *testing.T) {
	for _, gzipped := range []bool{false, true} {
		name := "plain"
		if gzipped {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			b, err := Open(writeTestVCF(t, gzipped))
			require.NoError(t, err)
			defer b.Close()

			// Collect the offsets the parser reports, then decode each
			// record back through them.
			it, err := b.IterateRegion("", 0, genome.MaxPos)
			require.NoError(t, err)
			defer it.Close()

			n := 0
			for {
				rec, off, err := it.Next()
				require.NoError(t, err)
				if rec == nil {
					break
				}
				decoded, err := b.DecodeAt(off)
				require.NoError(t, err)
				assert.Equal(t, rec, decoded, "DecodeAt reproduces the iterated record")
				n++
			}
			assert.Equal(t, 3, n)
		})
	}
}

func TestBackend_DecodeAt_BadOffset(t *testing.T) {
	b, err := Open(writeTestVCF(t, false))
	require.NoError(t, err)
	defer b.Close()

	// Offsets inside the header can never start a record.
	_, err = b.DecodeAt(0)
	assert.ErrorIs(t, err, variant.ErrDecodeFailure)
	_, err = b.DecodeAt(b.dataOffset - 1)
	assert.ErrorIs(t, err, variant.ErrDecodeFailure)

	// Offset in the middle of a line parses garbage columns.
	_, err = b.DecodeAt(b.dataOffset + 5)
	assert.ErrorIs(t, err, variant.ErrDecodeFailure)

	// Offset past the end of the file.
	_, err = b.DecodeAt(1 << 40)
	assert.ErrorIs(t, err, variant.ErrDecodeFailure)
}

func TestBackend_IterateRegion(t *testing.T) {
	b, err := Open(writeTestVCF(t, false))
	require.NoError(t, err)
	defer b.Close()

	it, err := b.IterateRegion("chr1", 0, 100)
	require.NoError(t, err)
	defer it.Close()

	rec, _, err := it.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(10), rec.Pos)

	rec, _, err = it.Next()
	require.NoError(t, err)
	assert.Nil(t, rec, "chr1:501 and chr2 records excluded")
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.vcf"))
	assert.ErrorIs(t, err, variant.ErrSourceUnavailable)
}

func TestParser_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.vcf")
	require.NoError(t, os.WriteFile(path, []byte(
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\nchr1\tnotanumber\t.\tA\tT\t.\t.\t.\n"), 0644))

	p, err := NewParser(path)
	require.NoError(t, err)
	defer p.Close()

	_, _, err = p.Next()
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
}

func TestParser_NoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.vcf")
	require.NoError(t, os.WriteFile(path, []byte("chr1\t11\t.\tA\tT\t.\t.\t.\n"), 0644))

	_, err := NewParser(path)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}
