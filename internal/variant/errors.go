package variant

import "errors"

// Error taxonomy of the query engine. Callers test with errors.Is; all
// wrapping adds context via fmt.Errorf and %w.
var (
	// ErrSourceUnavailable reports an open or read failure on the underlying
	// source file. Signalled at handle acquisition, never lazily.
	ErrSourceUnavailable = errors.New("variant source unavailable")

	// ErrIndexMismatch reports that a persisted index does not match the
	// provenance of the source it is being loaded for.
	ErrIndexMismatch = errors.New("index does not match source")

	// ErrUnsupportedIndexVersion reports an index artifact written by an
	// unrecognized format version.
	ErrUnsupportedIndexVersion = errors.New("unsupported index version")

	// ErrInvalidRange reports a query range with start > end or an unknown
	// contig. Detected before any I/O.
	ErrInvalidRange = errors.New("invalid genomic range")

	// ErrInconsistentChunkBoundary reports a chunk-planning invariant
	// violation: an extended chunk end that was not reported to the caller,
	// or chunks that do not concatenate to the full query.
	ErrInconsistentChunkBoundary = errors.New("inconsistent chunk boundary")

	// ErrDecodeFailure reports that the backend could not decode a record or
	// dosage at a given offset.
	ErrDecodeFailure = errors.New("record decode failure")
)
