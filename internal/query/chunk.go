package query

import (
	"fmt"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/variant"
)

// Chunk is one contiguous slice of a query's result together with the
// genomic range it covers. Concatenating a plan's chunk offsets reproduces
// the full query result exactly; chunk ranges are non-overlapping and
// cover the query range, possibly extended past its end by the last
// contained record.
type Chunk struct {
	Range   genome.Range
	Offsets []variant.Offset
}

// ChunkByCount splits offsets into chunks of at most maxPerChunk logical
// entries. A record's allele group is never split across chunks, and
// neither are records sharing a start position, so a chunk may exceed the
// bound when a single such group does.
func ChunkByCount(rng genome.Range, offsets []variant.Offset, maxPerChunk int) ([]Chunk, error) {
	if maxPerChunk < 1 {
		return nil, fmt.Errorf("chunk size %d: must be at least 1: %w", maxPerChunk, variant.ErrInvalidRange)
	}
	if len(offsets) == 0 {
		if rng.Span() == 0 {
			return nil, nil
		}
		return []Chunk{{Range: rng}}, nil
	}

	var chunks []Chunk
	start, lo := rng.Start, 0
	for i := 0; i < len(offsets); {
		// One record's allele group, extended over same-position records so
		// a clean positional boundary exists between chunks.
		j := i + 1
		for j < len(offsets) && (offsets[j].Record == offsets[j-1].Record || offsets[j].Pos == offsets[i].Pos) {
			j++
		}
		if i > lo && (i-lo)+(j-i) > maxPerChunk {
			chunks = append(chunks, Chunk{
				Range:   genome.Range{Contig: rng.Contig, Start: start, End: offsets[i].Pos},
				Offsets: offsets[lo:i],
			})
			start, lo = offsets[i].Pos, i
		}
		i = j
	}
	chunks = append(chunks, Chunk{
		Range:   genome.Range{Contig: rng.Contig, Start: start, End: rng.End},
		Offsets: offsets[lo:],
	})
	return chunks, nil
}

// ChunkByLength splits offsets into chunks of roughly span base pairs.
// When a record starting inside a chunk extends past its nominal end, the
// chunk's end grows to contain it, absorbing any further records that then
// start inside the extension; records are never truncated at a boundary.
// The next chunk begins where the extended one ended, so the final chunk
// may reach past rng.End.
func ChunkByLength(rng genome.Range, offsets []variant.Offset, span int64) ([]Chunk, error) {
	if span < 1 {
		return nil, fmt.Errorf("chunk length %d: must be at least 1: %w", span, variant.ErrInvalidRange)
	}
	if rng.Span() == 0 {
		return nil, nil
	}

	var chunks []Chunk
	start, i := rng.Start, 0
	for start < rng.End && i < len(offsets) {
		end := start + span
		// The overflow guard matters for ranges ending at genome.MaxPos
		// (omitted region end, unknown contig length).
		if end < start || end > rng.End {
			end = rng.End
		}
		j := i
		for j < len(offsets) && offsets[j].Pos < end {
			if offsets[j].End > end {
				end = offsets[j].End
			}
			j++
		}
		chunks = append(chunks, Chunk{
			Range:   genome.Range{Contig: rng.Contig, Start: start, End: end},
			Offsets: offsets[i:j],
		})
		start, i = end, j
	}
	// One trailing chunk covers the variant-free remainder, so plans over
	// unbounded ranges stay proportional to the result, not the range.
	if start < rng.End {
		chunks = append(chunks, Chunk{
			Range: genome.Range{Contig: rng.Contig, Start: start, End: rng.End},
		})
	}
	return chunks, nil
}

// VerifyChunks checks a chunk plan against the query it was derived from:
// the concatenated offsets must reproduce the full result, ranges must
// tile the query range without gaps or overlap, and every offset must
// start inside its chunk's range.
func VerifyChunks(rng genome.Range, offsets []variant.Offset, chunks []Chunk) error {
	n := 0
	prevEnd := rng.Start
	for ci, c := range chunks {
		if c.Range.Contig != rng.Contig {
			return fmt.Errorf("chunk %d on contig %s, query on %s: %w", ci, c.Range.Contig, rng.Contig, variant.ErrInconsistentChunkBoundary)
		}
		if c.Range.Start != prevEnd {
			return fmt.Errorf("chunk %d starts at %d, previous ended at %d: %w", ci, c.Range.Start, prevEnd, variant.ErrInconsistentChunkBoundary)
		}
		if c.Range.End < c.Range.Start {
			return fmt.Errorf("chunk %d range %s inverted: %w", ci, c.Range, variant.ErrInconsistentChunkBoundary)
		}
		prevEnd = c.Range.End
		for _, off := range c.Offsets {
			if n >= len(offsets) || offsets[n] != off {
				return fmt.Errorf("chunk %d entry %d does not match query result: %w", ci, off.Index, variant.ErrInconsistentChunkBoundary)
			}
			if !c.Range.Contains(off.Pos) {
				return fmt.Errorf("chunk %d entry at %d outside range %s: %w", ci, off.Pos, c.Range, variant.ErrInconsistentChunkBoundary)
			}
			n++
		}
	}
	if prevEnd < rng.End {
		return fmt.Errorf("chunks end at %d, query range at %d: %w", prevEnd, rng.End, variant.ErrInconsistentChunkBoundary)
	}
	if n != len(offsets) {
		return fmt.Errorf("chunks cover %d of %d entries: %w", n, len(offsets), variant.ErrInconsistentChunkBoundary)
	}
	return nil
}

// QueryChunksCount queries rng and plans count-bounded chunks over the
// result. The plan is self-checked before being returned.
func (r *Reader) QueryChunksCount(rng genome.Range, maxPerChunk int) ([]Chunk, error) {
	offs, err := r.Query(rng)
	if err != nil {
		return nil, err
	}
	rng, err = r.clamped(rng)
	if err != nil {
		return nil, err
	}
	chunks, err := ChunkByCount(rng, offs, maxPerChunk)
	if err != nil {
		return nil, err
	}
	if err := VerifyChunks(rng, offs, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// QueryChunksLength queries rng and plans length-bounded chunks over the
// result. The plan is self-checked before being returned.
func (r *Reader) QueryChunksLength(rng genome.Range, span int64) ([]Chunk, error) {
	offs, err := r.Query(rng)
	if err != nil {
		return nil, err
	}
	rng, err = r.clamped(rng)
	if err != nil {
		return nil, err
	}
	chunks, err := ChunkByLength(rng, offs, span)
	if err != nil {
		return nil, err
	}
	if err := VerifyChunks(rng, offs, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// ChunkRangesLength plans length-bounded chunks for each range
// independently, preserving range order.
func (r *Reader) ChunkRangesLength(rngs []genome.Range, span int64) ([][]Chunk, error) {
	out := make([][]Chunk, len(rngs))
	for i, rng := range rngs {
		chunks, err := r.QueryChunksLength(rng, span)
		if err != nil {
			return nil, err
		}
		out[i] = chunks
	}
	return out, nil
}

// clamped normalizes and clamps rng the way Query does, for planning over
// the same coordinate space.
func (r *Reader) clamped(rng genome.Range) (genome.Range, error) {
	v, err := r.ensureView()
	if err != nil {
		return rng, err
	}
	out, _, err := r.resolve(rng, v)
	return out, err
}
