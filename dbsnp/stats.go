package dbsnp

import "sync/atomic"

// Stats holds the run's monotonic counters. Every field is updated with
// relaxed atomics while the pipeline runs; the snapshot returned by
// Build is taken only after every reader and storage goroutine has
// joined, so it is internally consistent despite the unsynchronised
// increments during the run.
type Stats struct {
	NFiles                  uint64
	NRecordsRead            uint64
	NRecordsKept            uint64
	NDuplicates             uint64
	NSkippedUnknownContig   uint64
	NMalformed              uint64
}

// stats is the mutable, atomic-counter-backed sibling of Stats that the
// pipeline actually increments. snapshot() copies it into the public,
// plain-value Stats once the run has quiesced.
type stats struct {
	nFiles                uint64
	nRecordsRead          uint64
	nRecordsKept          uint64
	nDuplicates           uint64
	nSkippedUnknownContig uint64
	nMalformed            uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		NFiles:                atomic.LoadUint64(&s.nFiles),
		NRecordsRead:          atomic.LoadUint64(&s.nRecordsRead),
		NRecordsKept:          atomic.LoadUint64(&s.nRecordsKept),
		NDuplicates:           atomic.LoadUint64(&s.nDuplicates),
		NSkippedUnknownContig: atomic.LoadUint64(&s.nSkippedUnknownContig),
		NMalformed:            atomic.LoadUint64(&s.nMalformed),
	}
}
