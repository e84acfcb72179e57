package dbsnp

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"sync/atomic"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"

	"github.com/gemBS/dbsnp-index/dbsnp/compress"
)

// fileCursor is a process-wide counter over the input-files list,
// yielding each path to exactly one reader. Equivalent to
// original_source's InputFiles (rust/dbsnp_index/src/process.rs).
type fileCursor struct {
	idx   int64
	files []string
}

func newFileCursor(files []string) *fileCursor {
	return &fileCursor{files: files}
}

// next returns the next path, or ("", false) once the list is
// exhausted.
func (c *fileCursor) next() (string, bool) {
	idx := atomic.AddInt64(&c.idx, 1) - 1
	if idx >= int64(len(c.files)) {
		return "", false
	}
	return c.files[idx], true
}

var trackPrefix = []byte("track")
var hashPrefix = []byte("#")

// spawnReaders launches n = min(cfg.Threads, len(files)) reader workers
// via traverse.Each, the same fan-out-with-error-aggregation primitive
// pileup/snp/pileup.go uses for its own worker pool. Each worker repeatedly
// pulls the next input path from cursor and streams its parsed SNPs into
// a fresh readerBuf, flushing it on completion. A panic inside a reader
// propagates out of traverse.Each as an error, which the caller treats
// as fatal to the run.
func spawnReaders(n int, cursor *fileCursor, reg *registry, cfg *Config, st *stats) error {
	return traverse.Each(n, func(workerID int) error {
		rbuf := newReaderBuf(cfg.blockLimit())
		builder := newSNPBuilder(reg, cfg)
		for {
			path, ok := cursor.next()
			if !ok {
				break
			}
			if err := readBEDFile(path, builder, rbuf, st); err != nil {
				// Per-file errors are isolated: log and continue with the
				// next file rather than aborting the whole reader.
				log.Error.Printf("dbsnp: reader %d: %s: %v", workerID, displayPath(path), err)
			}
		}
		rbuf.flush()
		return nil
	})
}

func displayPath(path string) string {
	if path == "-" {
		return "<stdin>"
	}
	return path
}

// readBEDFile opens path (transparently decompressing by magic bytes),
// reads it line by line, and feeds each non-track, non-comment line to
// builder and thence to rbuf. EOF ends the file normally; a transient
// read error aborts this file only (the caller logs it and moves on).
func readBEDFile(path string, builder *snpBuilder, rbuf *readerBuf, st *stats) error {
	var raw *os.File
	if path == "-" {
		raw = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return newIoError(err, "opening %s", path)
		}
		defer f.Close()
		raw = f
	}

	var src io.Reader
	if path == "-" {
		src = raw
	} else {
		r, err := compress.Open(raw)
		if err != nil {
			return newIoError(err, "detecting compression for %s", path)
		}
		src = r
	}

	log.Printf("dbsnp: reading from %s", displayPath(path))
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || bytes.HasPrefix(line, trackPrefix) || bytes.HasPrefix(line, hashPrefix) {
			continue
		}
		atomic.AddUint64(&st.nRecordsRead, 1)
		s, result := builder.parseBEDLine(line)
		switch result {
		case buildKept:
			// n_records_kept is only incremented once the storage stage
			// has actually inserted the record into its contig's
			// BinStore: whether a parsed, known-contig record is kept
			// or a duplicate can only be decided there (deduplication is
			// content-based, spec.md invariant 1).
			raw, ctg := s.components()
			rbuf.add(ctg, raw)
		case buildUnknownContig:
			atomic.AddUint64(&st.nSkippedUnknownContig, 1)
		case buildIndelSkipped, buildMalformed:
			atomic.AddUint64(&st.nMalformed, 1)
		}
	}
	if err := scanner.Err(); err != nil {
		return newIoError(err, "reading %s", path)
	}
	log.Debug.Printf("dbsnp: finished reading from %s", displayPath(path))
	return nil
}
