package variant

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/inodb/varq/internal/genome"
)

// Kind identifies the on-disk layout of a variant source.
type Kind int

const (
	// KindAuto detects the backend from the file extension.
	KindAuto Kind = iota
	// KindRecord is a record-oriented source (VCF, plain or gzipped).
	KindRecord
	// KindMatrix is a compressed sample-by-variant matrix source (BGEN).
	KindMatrix
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindMatrix:
		return "matrix"
	default:
		return "auto"
	}
}

// DetectKind resolves KindAuto from the source path's extension.
func DetectKind(path string, kind Kind) (Kind, error) {
	if kind != KindAuto {
		return kind, nil
	}
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".vcf"), strings.HasSuffix(name, ".vcf.gz"):
		return KindRecord, nil
	case strings.HasSuffix(name, ".bgen"):
		return KindMatrix, nil
	}
	return KindAuto, fmt.Errorf("cannot detect backend kind for %q: %w", path, ErrSourceUnavailable)
}

// RecordIterator streams decoded records in physical file order. Next
// returns nil, 0, nil after the last record.
type RecordIterator interface {
	// Next returns the next record and its physical offset.
	Next() (*Record, int64, error)
	Close() error
}

// Handle is the capability set every backend exposes to the engine. A Handle
// is not safe for concurrent use unless the backend documents otherwise;
// callers wanting parallelism should open one Reader per worker.
type Handle interface {
	// Path returns the path the handle was opened from.
	Path() string

	// Kind returns the backend layout.
	Kind() Kind

	// Contigs lists the source's contigs with lengths, in source order.
	// Contigs with unknown length report genome.MaxPos.
	Contigs() []genome.Contig

	// Samples lists the source's sample identifiers, ordered and unique.
	Samples() []string

	// DecodeAt decodes the physical record at the given offset.
	DecodeAt(offset int64) (*Record, error)

	// IterateRegion streams records overlapping [start, end) on contig, in
	// file order. It is the index-free fallback and the index builder's
	// scan primitive (contig "" with a full range scans everything).
	IterateRegion(contig string, start, end int64) (RecordIterator, error)

	Close() error
}
