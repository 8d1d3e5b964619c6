package variant

// Dosager is implemented by matrix backends that can derive per-sample
// dosages from their compressed genotype encoding. samples selects sample
// columns by position in Handle.Samples() order; nil selects all samples.
// The result is indexed [offset][selected sample].
type Dosager interface {
	Dosages(offsets []Offset, samples []int) ([][]float32, error)
}
