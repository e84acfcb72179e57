package dbsnp

import (
	"context"
	"fmt"

	"github.com/grailbio/base/log"
)

// Build runs the full dbSNP index builder pipeline: it spawns the
// storage stage, runs the reader stage until its workers join, sends one
// drain signal per storage worker, joins the storage workers, and
// writes the final index. It returns the run's Stats, or an error if
// configuration was invalid, a fatal I/O or internal-invariant failure
// occurred, or serialisation failed.
func Build(ctx context.Context, cfg Config, inputFiles []string) (Stats, error) {
	if err := cfg.validate(); err != nil {
		return Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		// The surrounding workflow's shutdown signal is checked at this
		// single component boundary before the pipeline starts; once
		// started the pipeline runs to exhaustion (spec.md §5).
		return Stats{}, newIoError(err, "build cancelled before start")
	}

	reg := newRegistry(cfg.ContigTable, cfg.binShift())
	st := &stats{}

	nReaders := cfg.Threads
	if len(inputFiles) < nReaders {
		nReaders = len(inputFiles)
	}
	if nReaders < 1 {
		nReaders = 1
	}
	st.nFiles = uint64(len(inputFiles))

	nStorers := cfg.Threads
	join, drain := spawnStorers(nStorers, reg, &cfg, st)

	cursor := newFileCursor(inputFiles)
	readerErr := spawnReaders(nReaders, cursor, reg, &cfg, st)
	if readerErr != nil {
		// A reader panic is fatal to the run; still drain and join the
		// storage workers so we don't leak goroutines, then surface the
		// error.
		drain()
		_ = join()
		return st.snapshot(), newIoError(readerErr, "reader stage failed")
	}

	drain()
	if storerErr := join(); storerErr != nil {
		return st.snapshot(), newIoError(storerErr, "storage stage failed")
	}

	if err := writeIndex(cfg.OutputPath, &cfg, reg); err != nil {
		return st.snapshot(), err
	}

	snapshot := st.snapshot()
	log.Printf("dbsnp: %s", fmt.Sprintf(
		"files=%d read=%d kept=%d dup=%d unknown_contig=%d malformed=%d",
		snapshot.NFiles, snapshot.NRecordsRead, snapshot.NRecordsKept,
		snapshot.NDuplicates, snapshot.NSkippedUnknownContig, snapshot.NMalformed))
	return snapshot, nil
}
