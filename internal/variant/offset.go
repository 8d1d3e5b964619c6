package variant

// Offset identifies one logical variant entry after multi-allelic
// normalization. All allele entries expanded from the same physical record
// share Byte and Record; AlleleIndex distinguishes them.
type Offset struct {
	Contig      string
	Pos         int64  // 0-based start of the physical record
	End         int64  // 0-based exclusive end of the physical record
	Index       uint32 // logical index within the active filtered, normalized view
	Record      uint32 // physical record ordinal in file order, unaffected by filters
	Byte        int64  // physical offset of the record in the source
	AlleleIndex uint16 // which alternate allele of the record, 0-based
	Alleles     uint16 // total alternate allele count of the record
}

// Normalize expands an indexed site into one Offset per alternate allele,
// with AlleleIndex 0..k-1 and increasing logical indices starting at next.
// The physical identity (Record, Byte) is shared across all entries.
func Normalize(contig string, s Site, record uint32, byteOff int64, next uint32) []Offset {
	out := make([]Offset, s.Alleles)
	for i := range out {
		out[i] = Offset{
			Contig:      contig,
			Pos:         s.Pos,
			End:         s.End,
			Index:       next + uint32(i),
			Record:      record,
			Byte:        byteOff,
			AlleleIndex: uint16(i),
			Alleles:     s.Alleles,
		}
	}
	return out
}
