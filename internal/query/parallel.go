package query

import (
	"runtime"
	"sync"
)

// ChunkWork is one planned chunk awaiting materialization.
type ChunkWork struct {
	Seq   int
	Chunk Chunk
}

// ChunkResult is the materialized output of one chunk.
type ChunkResult struct {
	Seq     int
	Chunk   Chunk
	Dosages [][]float32
	Err     error
}

// ParallelDosages materializes dosages for chunks using a pool of workers.
// Each worker opens its own Reader via newReader, since Readers are not
// safe for concurrent use. Results are sent to the returned channel in
// arrival order (not sequence order); use OrderedCollect to consume them
// in plan order. If workers is 0, runtime.NumCPU() is used.
func ParallelDosages(newReader func() (*Reader, error), chunks []Chunk, workers int) <-chan ChunkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(chunks) && len(chunks) > 0 {
		workers = len(chunks)
	}

	work := make(chan ChunkWork, len(chunks))
	for i, c := range chunks {
		work <- ChunkWork{Seq: i, Chunk: c}
	}
	close(work)

	results := make(chan ChunkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			r, err := newReader()
			if err != nil {
				for item := range work {
					results <- ChunkResult{Seq: item.Seq, Chunk: item.Chunk, Err: err}
				}
				return
			}
			defer r.Close()
			for item := range work {
				dos, err := r.Dosages(item.Chunk.Offsets)
				results <- ChunkResult{
					Seq:     item.Seq,
					Chunk:   item.Chunk,
					Dosages: dos,
					Err:     err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order. It
// buffers out-of-order results in a pending map and emits them as soon as
// the next expected sequence number is available. Blocks until the results
// channel is closed.
func OrderedCollect(results <-chan ChunkResult, fn func(ChunkResult) error) error {
	pending := make(map[int]ChunkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
