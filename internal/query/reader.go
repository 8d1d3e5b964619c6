// Package query implements the range-query engine: Readers that cache
// backend handles and their position index, ordered range queries with
// multi-allelic normalization and filtering, and chunk planning.
package query

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/gindex"
	"github.com/inodb/varq/internal/matrix"
	"github.com/inodb/varq/internal/variant"
	"github.com/inodb/varq/internal/vcf"
)

// Reader provides range-queryable access to one variant source. It owns one
// open handle per source path for its whole lifetime, builds or loads the
// position index on first use, and serves every query from memory
// afterwards.
//
// A Reader is not safe for concurrent use. Callers wanting parallel chunk
// processing should open one Reader per worker rather than sharing one.
type Reader struct {
	handles map[string]variant.Handle
	source  variant.Handle
	dosage  variant.Handle // optional separate dosage source
	// Records of the dosage source by physical ordinal, for translating
	// primary-source offsets onto the dosage file.
	dosageEntries []gindex.Entry

	logger   *zap.Logger
	progress gindex.Progress

	indexOnce sync.Once
	indexErr  error
	index     *gindex.Index
	norm      *genome.Normalizer

	filter    variant.Predicate
	view      *filteredView
	samples   []string
	sampleSel []int // positions into source sample order; nil selects all
}

// Open opens a variant source. The backend is detected from the extension
// when kind is variant.KindAuto. Open failures surface immediately as
// variant.ErrSourceUnavailable.
func Open(path string, kind variant.Kind) (*Reader, error) {
	r := &Reader{
		handles: make(map[string]variant.Handle),
		logger:  zap.NewNop(),
	}
	h, err := r.acquire(path, kind)
	if err != nil {
		return nil, err
	}
	r.source = h
	r.samples = h.Samples()
	r.norm = genome.NewNormalizer(h.Contigs())
	return r, nil
}

// acquire returns the live handle for a source path, opening it at most
// once per Reader lifetime.
func (r *Reader) acquire(path string, kind variant.Kind) (variant.Handle, error) {
	if h, ok := r.handles[path]; ok {
		return h, nil
	}

	kind, err := variant.DetectKind(path, kind)
	if err != nil {
		return nil, err
	}

	var h variant.Handle
	switch kind {
	case variant.KindRecord:
		h, err = vcf.Open(path)
	case variant.KindMatrix:
		h, err = matrix.Open(path)
	default:
		return nil, fmt.Errorf("unsupported backend kind %v: %w", kind, variant.ErrSourceUnavailable)
	}
	if err != nil {
		return nil, err
	}
	r.handles[path] = h
	return h, nil
}

// Close releases every handle the Reader acquired.
func (r *Reader) Close() error {
	var firstErr error
	for _, h := range r.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetLogger sets the logger for index build and query diagnostics.
func (r *Reader) SetLogger(l *zap.Logger) {
	r.logger = l
}

// SetProgress installs an observational progress sink for index builds.
func (r *Reader) SetProgress(p gindex.Progress) {
	r.progress = p
}

// SetFilter replaces the active record filter. The position index is
// untouched; only the filtered view of it is rebuilt, so variant indices of
// subsequent queries are consistent with the new filtered enumeration.
func (r *Reader) SetFilter(p variant.Predicate) {
	r.filter = p
	r.view = nil
}

// SetSamples restricts dosage extraction to the named samples, in the given
// order. Passing nil restores all samples.
func (r *Reader) SetSamples(names []string) error {
	if names == nil {
		r.samples = r.source.Samples()
		r.sampleSel = nil
		return nil
	}

	pos := make(map[string]int, len(r.source.Samples()))
	for i, s := range r.source.Samples() {
		pos[s] = i
	}

	sel := make([]int, len(names))
	for i, name := range names {
		p, ok := pos[name]
		if !ok {
			return fmt.Errorf("sample %q not found in %s", name, r.source.Path())
		}
		sel[i] = p
	}
	r.samples = names
	r.sampleSel = sel
	return nil
}

// Samples returns the samples currently in use, in order.
func (r *Reader) Samples() []string {
	return r.samples
}

// Contigs returns the source's contigs.
func (r *Reader) Contigs() []genome.Contig {
	return r.source.Contigs()
}

// SetDosageSource attaches a separate matrix source for dosage extraction.
// Its sample universe must match the primary source exactly, and it must
// carry the same variants in the same physical order: dosage reads pair
// records by ordinal, verified per offset against position and allele
// count. The dosage source's own index is built (or loaded) here, since
// byte positions from the primary source are meaningless in another file.
func (r *Reader) SetDosageSource(path string) error {
	h, err := r.acquire(path, variant.KindMatrix)
	if err != nil {
		return err
	}
	a, b := r.source.Samples(), h.Samples()
	if len(a) != len(b) {
		return fmt.Errorf("dosage source %s has %d samples, primary has %d", path, len(b), len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			return fmt.Errorf("dosage source %s sample %d is %q, primary has %q", path, i, b[i], a[i])
		}
	}

	ix, err := r.loadOrBuildFor(h)
	if err != nil {
		return err
	}
	r.dosage = h
	r.dosageEntries = flattenEntries(ix)
	return nil
}

// flattenEntries lays out an index's entries by physical record ordinal.
func flattenEntries(ix *gindex.Index) []gindex.Entry {
	out := make([]gindex.Entry, ix.Records())
	for _, c := range ix.Contigs {
		for _, e := range c.Entries {
			out[e.Record] = e
		}
	}
	return out
}

// remapDosageOffsets rewrites each offset's byte position to the matching
// record of the dosage source, pairing by physical ordinal. A record whose
// position or allele count disagrees means the two files do not carry the
// same variants, which is an index mismatch, not a decode problem.
func remapDosageOffsets(offsets []variant.Offset, entries []gindex.Entry) ([]variant.Offset, error) {
	out := make([]variant.Offset, len(offsets))
	for i, off := range offsets {
		if int(off.Record) >= len(entries) {
			return nil, fmt.Errorf("dosage source has %d records, offset references record %d: %w",
				len(entries), off.Record, variant.ErrIndexMismatch)
		}
		e := entries[off.Record]
		if e.Pos != off.Pos || e.Alleles != off.Alleles {
			return nil, fmt.Errorf("dosage source record %d is at %d with %d alt alleles, primary has %d with %d: %w",
				off.Record, e.Pos, e.Alleles, off.Pos, off.Alleles, variant.ErrIndexMismatch)
		}
		off.Byte = e.Byte
		out[i] = off
	}
	return out, nil
}

// Index returns the source's position index, loading the persisted artifact
// or building it on first use. A query issued while the index is being
// built blocks until it is ready.
func (r *Reader) Index() (*gindex.Index, error) {
	r.indexOnce.Do(func() {
		r.index, r.indexErr = r.loadOrBuild()
		if r.index != nil {
			// Sources without header metadata only reveal their contigs
			// during the index scan.
			r.norm = genome.NewNormalizer(r.index.ContigList())
		}
	})
	return r.index, r.indexErr
}

// loadOrBuild serves the primary source's index.
func (r *Reader) loadOrBuild() (*gindex.Index, error) {
	return r.loadOrBuildFor(r.source)
}

// loadOrBuildFor loads a handle's index sidecar when one exists. A sidecar
// that fails validation is an error, not a rebuild trigger: the caller
// decides whether to rebuild (see BuildIndex). Only a missing sidecar
// builds lazily.
func (r *Reader) loadOrBuildFor(h variant.Handle) (*gindex.Index, error) {
	path := gindex.IndexPath(h.Path())

	if _, err := os.Stat(path); err == nil {
		ix, err := gindex.LoadFile(path, h)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("loaded index",
			zap.String("path", path),
			zap.Int("records", ix.Records()))
		return ix, nil
	}

	return r.buildAndPersist(h, path)
}

func (r *Reader) buildAndPersist(h variant.Handle, path string) (*gindex.Index, error) {
	ix, err := gindex.Build(h, r.progress)
	if err != nil {
		return nil, fmt.Errorf("build index for %s: %w", h.Path(), err)
	}
	if err := gindex.WriteFile(path, ix); err != nil {
		// The in-memory index still serves this Reader; only reuse across
		// processes is lost.
		r.logger.Warn("could not persist index", zap.String("path", path), zap.Error(err))
	}
	r.logger.Info("built index",
		zap.String("source", h.Path()),
		zap.Int("records", ix.Records()))
	return ix, nil
}

// BuildIndex rebuilds and persists the index unconditionally, replacing any
// existing artifact. It is the recovery path after ErrIndexMismatch or
// ErrUnsupportedIndexVersion.
func (r *Reader) BuildIndex() (*gindex.Index, error) {
	ix, err := r.buildAndPersist(r.source, gindex.IndexPath(r.source.Path()))
	if err != nil {
		return nil, err
	}
	r.indexOnce.Do(func() {})
	r.index, r.indexErr = ix, nil
	r.norm = genome.NewNormalizer(ix.ContigList())
	r.view = nil
	return ix, nil
}

// Dosages decodes per-sample dosages for the given offsets from the dosage
// source (or the primary source when none is attached). Only matrix
// backends can derive dosages.
func (r *Reader) Dosages(offsets []variant.Offset) ([][]float32, error) {
	h := r.source
	if r.dosage != nil {
		h = r.dosage
		var err error
		offsets, err = remapDosageOffsets(offsets, r.dosageEntries)
		if err != nil {
			return nil, err
		}
	}
	d, ok := h.(variant.Dosager)
	if !ok {
		return nil, fmt.Errorf("%s backend of %s cannot derive dosages", h.Kind(), h.Path())
	}
	return d.Dosages(offsets, r.sampleSel)
}

// errInvalidRange builds an ErrInvalidRange with context.
func errInvalidRange(rng genome.Range, reason string) error {
	return fmt.Errorf("range %s: %s: %w", rng, reason, variant.ErrInvalidRange)
}
