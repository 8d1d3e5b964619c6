package gindex

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/inodb/varq/internal/variant"
)

// Index artifact layout: a fixed little-endian header (magic + format
// version) followed by a gob-encoded body. The header stays stable across
// versions so old readers can reject new artifacts cleanly.
var indexMagic = [4]byte{'G', 'V', 'Q', 'I'}

const indexVersion uint32 = 1

// indexBody is the serialized form of an Index. The byName map is derived,
// not stored.
type indexBody struct {
	Provenance Provenance
	Contigs    []ContigIndex
}

// IndexPath returns the sidecar path of the index artifact for a source.
func IndexPath(source string) string {
	return source + ".vqi"
}

// WriteTo serializes the index.
func (ix *Index) WriteTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, indexMagic); err != nil {
		return fmt.Errorf("write index magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, indexVersion); err != nil {
		return fmt.Errorf("write index version: %w", err)
	}
	body := indexBody{Provenance: ix.Provenance, Contigs: ix.Contigs}
	if err := gob.NewEncoder(w).Encode(&body); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return nil
}

// ReadFrom deserializes a previously persisted index. The caller is expected
// to validate provenance against the live source with Validate.
func ReadFrom(r io.Reader) (*Index, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("read index magic: %w", err)
	}
	if !bytes.Equal(magic[:], indexMagic[:]) {
		return nil, fmt.Errorf("bad magic %q: not a variant index artifact", magic)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read index version: %w", err)
	}
	if version != indexVersion {
		return nil, fmt.Errorf("index version %d: %w", version, variant.ErrUnsupportedIndexVersion)
	}

	var body indexBody
	if err := gob.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	ix := &Index{Provenance: body.Provenance, Contigs: body.Contigs}
	ix.rebuildByName()
	return ix, nil
}

// Validate checks a loaded index against the live source it is about to
// serve.
func (ix *Index) Validate(h variant.Handle) error {
	if !ix.Provenance.Matches(h) {
		return fmt.Errorf("index built from %s (%s backend): %w",
			ix.Provenance.Source, ix.Provenance.Backend, variant.ErrIndexMismatch)
	}
	return nil
}

// WriteFile persists the index to path, replacing any existing artifact
// atomically.
func WriteFile(path string, ix *Index) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := ix.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

// LoadFile reads and validates the index artifact at path for the given
// handle.
func LoadFile(path string, h variant.Handle) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	ix, err := ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := ix.Validate(h); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ix, nil
}
