package compress

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// newGzipReader decodes a gzip/bgzip stream. bgzip output is a
// concatenation of independent gzip members; klauspost/compress/gzip's
// Reader transparently continues past a member boundary into the next
// one (the same property interval/bedunion.go relies on when it opens a
// BED.gz with klauspost/compress/gzip), so one reader handles both
// formats without bgzip-specific block-index logic.
func newGzipReader(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}
