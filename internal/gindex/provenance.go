package gindex

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/inodb/varq/internal/variant"
)

// Provenance records what a persisted index was built from, so a stale or
// foreign artifact is detected at load time instead of yielding silently
// wrong offsets.
type Provenance struct {
	Backend     string // backend kind the index was built against
	Source      string // base name of the source file
	Fingerprint string // hash of contig table and sample list
}

// NewProvenance derives the provenance of a live handle.
func NewProvenance(h variant.Handle) Provenance {
	return Provenance{
		Backend:     h.Kind().String(),
		Source:      filepath.Base(h.Path()),
		Fingerprint: fingerprint(h),
	}
}

// Matches reports whether a persisted provenance and a live handle describe
// the same source shape.
func (p Provenance) Matches(h variant.Handle) bool {
	return p.Backend == h.Kind().String() && p.Fingerprint == fingerprint(h)
}

// fingerprint hashes the backend kind, the contig table and the sample list.
// File size or modification time deliberately play no part: copying or
// touching a source must not invalidate its index, while any change to the
// contig or sample universe must.
func fingerprint(h variant.Handle) string {
	hash := sha256.New()
	fmt.Fprintf(hash, "backend=%s\n", h.Kind())
	for _, c := range h.Contigs() {
		fmt.Fprintf(hash, "contig=%s:%s\n", c.Name, strconv.FormatInt(c.Length, 10))
	}
	for _, s := range h.Samples() {
		fmt.Fprintf(hash, "sample=%s\n", s)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
