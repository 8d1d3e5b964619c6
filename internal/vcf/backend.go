package vcf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/variant"
)

// Backend exposes a VCF file through the generic variant.Handle capability
// set. The header is parsed once at open; contigs and samples are served
// from memory afterwards.
type Backend struct {
	path       string
	gzipped    bool
	file       *os.File // retained for DecodeAt on plain files
	dataOffset int64    // first byte past the header
	contigs    []genome.Contig
	samples    []string
}

// Open opens a VCF source. Open failures are reported immediately as
// variant.ErrSourceUnavailable, never lazily at first read.
func Open(path string) (*Backend, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, variant.ErrSourceUnavailable)
	}
	b := &Backend{
		path:       path,
		gzipped:    p.gzipReader != nil,
		dataOffset: p.DataOffset(),
		contigs:    p.Contigs(),
		samples:    p.SampleNames(),
	}
	p.Close()

	b.file, err = os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, variant.ErrSourceUnavailable)
	}
	return b, nil
}

// Path returns the source path.
func (b *Backend) Path() string { return b.path }

// Kind returns variant.KindRecord.
func (b *Backend) Kind() variant.Kind { return variant.KindRecord }

// Contigs returns the contigs declared in the VCF header.
func (b *Backend) Contigs() []genome.Contig { return b.contigs }

// Samples returns the sample names from the #CHROM header line.
func (b *Backend) Samples() []string { return b.samples }

// Close releases the retained file handle.
func (b *Backend) Close() error {
	return b.file.Close()
}

// DecodeAt decodes the record whose line starts at the given offset of the
// uncompressed stream. Plain files are read directly at the offset; gzipped
// files are re-streamed from the start, which is correct but pays the
// decompression cost of the leading bytes.
func (b *Backend) DecodeAt(offset int64) (*variant.Record, error) {
	if offset < b.dataOffset {
		return nil, fmt.Errorf("offset %d is inside the header (data starts at %d): %w", offset, b.dataOffset, variant.ErrDecodeFailure)
	}
	var line string
	var err error
	if b.gzipped {
		line, err = b.readLineGzip(offset)
	} else {
		line, err = b.readLinePlain(offset)
	}
	if err != nil {
		return nil, fmt.Errorf("decode record at offset %d: %v: %w", offset, err, variant.ErrDecodeFailure)
	}

	rec, perr := parseLine(line, 0)
	if perr != nil {
		return nil, fmt.Errorf("decode record at offset %d: %v: %w", offset, perr, variant.ErrDecodeFailure)
	}
	return rec, nil
}

func (b *Backend) readLinePlain(offset int64) (string, error) {
	r := bufio.NewReader(io.NewSectionReader(b.file, offset, 1<<20))
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if line == "" {
		return "", io.ErrUnexpectedEOF
	}
	return trimEOL(line), nil
}

func (b *Backend) readLineGzip(offset int64) (string, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	if _, err := io.CopyN(io.Discard, gz, offset); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(gz).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if line == "" {
		return "", io.ErrUnexpectedEOF
	}
	return trimEOL(line), nil
}

func trimEOL(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// IterateRegion streams records overlapping [start, end) on contig in file
// order. An empty contig scans the whole file; this is the scan primitive
// the index builder uses and the fallback when no index exists.
func (b *Backend) IterateRegion(contig string, start, end int64) (variant.RecordIterator, error) {
	p, err := NewParser(b.path)
	if err != nil {
		return nil, fmt.Errorf("iterate %s: %w", b.path, err)
	}
	return &regionIterator{p: p, contig: contig, start: start, end: end}, nil
}

type regionIterator struct {
	p          *Parser
	contig     string
	start, end int64
}

func (it *regionIterator) Next() (*variant.Record, int64, error) {
	for {
		rec, off, err := it.p.Next()
		if err != nil || rec == nil {
			return nil, 0, err
		}
		if it.contig != "" && (rec.Chrom != it.contig || rec.Pos < it.start || rec.Pos >= it.end) {
			continue
		}
		return rec, off, nil
	}
}

func (it *regionIterator) Close() error {
	return it.p.Close()
}
