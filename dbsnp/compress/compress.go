// Package compress auto-detects and transparently decompresses a dbSNP
// BED input stream. Plain text, gzip, bgzip (a gzip variant: a .bgzf
// file is one or more complete gzip blocks concatenated together, see
// github.com/grailbio/bio/encoding/bgzf's doc comment; a line-oriented
// reader is indifferent to the block boundaries so a plain gzip reader
// handles it) and xz are auto-detected by leading bytes.
package compress

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Open wraps r, a raw byte stream, with a decompressing reader chosen by
// sniffing its leading bytes. It never consumes bytes beyond what the
// returned reader needs to buffer for sniffing, since the sniff is done
// through a bufio.Reader.Peek.
func Open(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		// A stream shorter than 6 bytes reports io.EOF and is handled
		// above with a short head. Any other read error: retry with a
		// 2-byte peek for the gzip check and otherwise fall through to
		// the plain-text path, which surfaces the error on read.
		head, _ = br.Peek(len(gzipMagic))
	}
	switch {
	case len(head) >= len(gzipMagic) && head[0] == gzipMagic[0] && head[1] == gzipMagic[1]:
		return newGzipReader(br)
	case len(head) >= len(xzMagic) && bytesEqual(head[:len(xzMagic)], xzMagic):
		zr, err := xz.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "xz: invalid stream")
		}
		return zr, nil
	default:
		return br, nil
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
