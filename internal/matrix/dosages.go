package matrix

import (
	"fmt"

	"github.com/inodb/varq/internal/variant"
)

// Dosages decodes expected alternate-allele dosages for each offset, one
// value per selected sample. The allele a dosage refers to is the offset's
// AlleleIndex, so multi-allelic entries yield per-allele dosages. Missing
// genotypes produce DosageMissing. Decode failures name the offset that
// failed rather than aborting silently.
func (b *Backend) Dosages(offsets []variant.Offset, samples []int) ([][]float32, error) {
	if samples == nil {
		samples = make([]int, len(b.samples))
		for i := range samples {
			samples[i] = i
		}
	}

	out := make([][]float32, len(offsets))
	for i, off := range offsets {
		v := b.vr.ReadAt(off.Byte)
		if err := b.vr.Error(); err != nil {
			return nil, fmt.Errorf("dosage at offset %d (%s:%d): %v: %w",
				off.Byte, off.Contig, off.Pos, err, variant.ErrDecodeFailure)
		}
		if len(v.SampleProbabilities) != len(b.samples) {
			return nil, fmt.Errorf("dosage at offset %d: %d probability rows for %d samples: %w",
				off.Byte, len(v.SampleProbabilities), len(b.samples), variant.ErrDecodeFailure)
		}

		row := make([]float32, len(samples))
		for j, s := range samples {
			sp := v.SampleProbabilities[s]
			if sp == nil || sp.Missing {
				row[j] = DosageMissing
				continue
			}
			d, err := ExpectedAltDosage(sp.Probabilities, int(sp.Ploidy), int(v.NAlleles), int(off.AlleleIndex), v.Phased)
			if err != nil {
				return nil, fmt.Errorf("dosage at offset %d sample %d: %w", off.Byte, s, err)
			}
			row[j] = float32(d)
		}
		out[i] = row
	}
	return out, nil
}
