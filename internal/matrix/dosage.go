// Package matrix is the compressed sample-by-variant backend, reading BGEN
// files through their .bgi variant index.
package matrix

import (
	"fmt"
	"math"

	"github.com/inodb/varq/internal/variant"
)

// DosageMissing marks a sample whose genotype is absent at a variant. NaN is
// used so missingness can never be confused with a legitimate zero dosage.
var DosageMissing = float32(math.NaN())

// IsMissing reports whether a dosage value is the missing sentinel.
func IsMissing(d float32) bool {
	return math.IsNaN(float64(d))
}

// ExpectedAltDosage computes the expected copy count of one alternate allele
// from a sample's genotype probabilities. altIndex is 0-based among the
// alternate alleles, so the allele number within the genotype encoding is
// altIndex+1. For a multi-allelic record the dosage is relative to that
// allele only, never the aggregate over all alternates.
//
// Unphased probabilities enumerate diploid genotypes in colex order:
// (0,0), (0,1), (1,1), (0,2), (1,2), (2,2), ... Phased probabilities carry
// one per-allele distribution per haplotype. The two layouts can have equal
// lengths (e.g. triallelic diploid), so phasing must be stated explicitly.
func ExpectedAltDosage(probs []float64, ploidy, nAlleles, altIndex int, phased bool) (float64, error) {
	if nAlleles < 2 || altIndex < 0 || altIndex >= nAlleles-1 {
		return 0, fmt.Errorf("allele %d of %d alleles: %w", altIndex, nAlleles, variant.ErrDecodeFailure)
	}

	allele := altIndex + 1

	if phased {
		// Ploidy blocks of nAlleles per-haplotype probabilities.
		if len(probs) != ploidy*nAlleles {
			return 0, fmt.Errorf("%d phased probabilities for ploidy %d, %d alleles: %w",
				len(probs), ploidy, nAlleles, variant.ErrDecodeFailure)
		}
		var dose float64
		for h := 0; h < ploidy; h++ {
			dose += probs[h*nAlleles+allele]
		}
		return dose, nil
	}

	if ploidy != 2 {
		return 0, fmt.Errorf("unphased ploidy %d not supported: %w", ploidy, variant.ErrDecodeFailure)
	}
	if len(probs) != nAlleles*(nAlleles+1)/2 {
		return 0, fmt.Errorf("%d probabilities for %d alleles: %w", len(probs), nAlleles, variant.ErrDecodeFailure)
	}

	var dose float64
	i := 0
	for b := 0; b < nAlleles; b++ {
		for a := 0; a <= b; a++ {
			copies := 0
			if a == allele {
				copies++
			}
			if b == allele {
				copies++
			}
			if copies > 0 {
				dose += probs[i] * float64(copies)
			}
			i++
		}
	}
	return dose, nil
}
