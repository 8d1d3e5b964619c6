package matrix

import (
	"fmt"

	"github.com/carbocation/bgen"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/variant"
)

// Backend exposes a BGEN file through the generic variant.Handle capability
// set. Record metadata is served from the .bgi SQLite sidecar (the standard
// bgenix index); genotype probabilities are decoded from the BGEN itself.
type Backend struct {
	path    string
	bg      *bgen.BGEN
	vr      *bgen.VariantReader
	bgi     *bgen.BGIIndex
	contigs []genome.Contig
	samples []string
}

// Open opens a BGEN source and its .bgi sidecar. Both must exist; failures
// surface immediately as variant.ErrSourceUnavailable.
func Open(path string) (*Backend, error) {
	bg, err := bgen.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, variant.ErrSourceUnavailable)
	}

	bgi, err := bgen.OpenBGI(path + ".bgi")
	if err != nil {
		bg.Close()
		return nil, fmt.Errorf("open %s.bgi: %v: %w", path, err, variant.ErrSourceUnavailable)
	}

	b := &Backend{
		path: path,
		bg:   bg,
		vr:   bg.NewVariantReader(),
		bgi:  bgi,
	}

	if err := b.loadContigs(); err != nil {
		b.Close()
		return nil, fmt.Errorf("open %s: %v: %w", path, err, variant.ErrSourceUnavailable)
	}
	b.loadSamples()

	return b, nil
}

// loadContigs lists contigs from the .bgi in file order. The .bgi does not
// record contig lengths, so they are reported as unknown.
func (b *Backend) loadContigs() error {
	var names []string
	err := b.bgi.DB.Select(&names,
		"SELECT chromosome FROM Variant GROUP BY chromosome ORDER BY MIN(file_start_position)")
	if err != nil {
		return fmt.Errorf("list contigs: %w", err)
	}
	for _, name := range names {
		b.contigs = append(b.contigs, genome.Contig{Name: name, Length: genome.MaxPos})
	}
	return nil
}

// loadSamples uses the BGEN's embedded sample identifier block when present,
// otherwise synthesizes stable positional names.
func (b *Backend) loadSamples() {
	if len(b.bg.SampleIDs) > 0 {
		b.samples = b.bg.SampleIDs
		return
	}
	b.samples = make([]string, b.bg.NSamples)
	for i := range b.samples {
		b.samples[i] = fmt.Sprintf("sample_%d", i)
	}
}

// Path returns the source path.
func (b *Backend) Path() string { return b.path }

// Kind returns variant.KindMatrix.
func (b *Backend) Kind() variant.Kind { return variant.KindMatrix }

// Contigs returns the contigs present in the .bgi, in file order.
func (b *Backend) Contigs() []genome.Contig { return b.contigs }

// Samples returns the sample identifiers, ordered and unique.
func (b *Backend) Samples() []string { return b.samples }

// Close releases the BGEN and .bgi handles.
func (b *Backend) Close() error {
	if err := b.bgi.Close(); err != nil {
		b.bg.Close()
		return err
	}
	return b.bg.Close()
}

// DecodeAt decodes the variant whose data block starts at the given BGEN
// file offset.
func (b *Backend) DecodeAt(offset int64) (*variant.Record, error) {
	v := b.vr.ReadAt(offset)
	if err := b.vr.Error(); err != nil {
		return nil, fmt.Errorf("decode variant at offset %d: %v: %w", offset, err, variant.ErrDecodeFailure)
	}
	return recordFromVariant(v), nil
}

// recordFromVariant maps a decoded BGEN variant onto the shared record
// model. The first allele is the reference; BGEN positions are 1-based.
func recordFromVariant(v *bgen.Variant) *variant.Record {
	rec := &variant.Record{
		Chrom: v.Chromosome,
		Pos:   int64(v.Position) - 1,
		ID:    v.RSID,
		Pass:  true,
	}
	if len(v.Alleles) > 0 {
		rec.Ref = string(v.Alleles[0])
		for _, a := range v.Alleles[1:] {
			rec.Alts = append(rec.Alts, string(a))
		}
	}
	return rec
}

// IterateRegion streams records overlapping [start, end) on contig in file
// order, straight from the .bgi. An empty contig scans the whole file.
func (b *Backend) IterateRegion(contig string, start, end int64) (variant.RecordIterator, error) {
	var rows []bgen.VariantIndex
	var err error
	if contig == "" {
		err = b.bgi.DB.Select(&rows,
			"SELECT * FROM Variant ORDER BY file_start_position")
	} else {
		// .bgi positions are 1-based.
		err = b.bgi.DB.Select(&rows,
			"SELECT * FROM Variant WHERE chromosome=? AND position>=? AND position<? ORDER BY file_start_position",
			contig, start+1, end+1)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s.bgi: %w", b.path, err)
	}
	return &bgiIterator{b: b, rows: rows}, nil
}

type bgiIterator struct {
	b    *Backend
	rows []bgen.VariantIndex
	next int
}

func (it *bgiIterator) Next() (*variant.Record, int64, error) {
	if it.next >= len(it.rows) {
		return nil, 0, nil
	}
	row := it.rows[it.next]
	it.next++

	off := int64(row.FileStartPosition)
	if row.NAlleles > 2 {
		// The .bgi stores only two alleles; fetch the full list.
		rec, err := it.b.DecodeAt(off)
		if err != nil {
			return nil, 0, err
		}
		return rec, off, nil
	}

	rec := &variant.Record{
		Chrom: row.Chromosome,
		Pos:   int64(row.Position) - 1,
		ID:    row.RSID,
		Ref:   string(row.Allele1),
		Alts:  []string{string(row.Allele2)},
		Pass:  true,
	}
	return rec, off, nil
}

func (it *bgiIterator) Close() error { return nil }
