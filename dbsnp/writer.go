package dbsnp

import (
	"bufio"
	"encoding/binary"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

var indexMagic = [4]byte{'G', 'B', 'S', 'I'}

const indexVersion uint16 = 1

// crcTable is the CRC-32C (Castagnoli) table spec.md §6 names for the
// trailer checksum. hash/crc32 ships this table directly; see
// DESIGN.md's stdlib justification for why no ecosystem library is
// reached for here.
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// countingHasher is an io.Writer that tees every byte written to an
// underlying writer and a running CRC-32C hash, while tracking the
// total byte count so far. The writer phase uses it to both produce the
// file and accumulate the trailer checksum in one pass.
type countingHasher struct {
	w      io.Writer
	h      hash.Hash32
	offset uint64
}

func newCountingHasher(w io.Writer) *countingHasher {
	return &countingHasher{w: w, h: crc32.New(crcTable)}
}

func (c *countingHasher) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.h.Write(p[:n])
	c.offset += uint64(n)
	return n, err
}

// writeIndex serialises the finished registry into the file at path,
// per spec.md §6's layout: magic+version+contig table, then one section
// per configured contig in reference_id order, then a trailer of
// per-contig offsets, a CRC-32C over everything preceding the trailer,
// and the trailer's own start offset.
func writeIndex(path string, cfg *Config, reg *registry) (err error) {
	f, createErr := os.Create(path)
	if createErr != nil {
		return newWriteError(createErr, "creating %s", path)
	}
	defer func() {
		closeErr := f.Close()
		if err != nil {
			os.Remove(path)
			return
		}
		if closeErr != nil {
			err = newWriteError(closeErr, "closing %s", path)
			os.Remove(path)
		}
	}()

	bw := bufio.NewWriterSize(f, 1<<20)
	ch := newCountingHasher(bw)

	contigs := make([]Contig, len(cfg.ContigTable))
	copy(contigs, cfg.ContigTable)
	sort.Slice(contigs, func(i, j int) bool { return contigs[i].ReferenceID < contigs[j].ReferenceID })

	if err = writeHeader(ch, cfg); err != nil {
		return err
	}
	if err = writeContigTable(ch, contigs); err != nil {
		return err
	}

	offsets := make([]uint64, len(contigs))
	for i, c := range contigs {
		offsets[i] = ch.offset
		st, _ := reg.lookup(c.Name)
		if err = writeContigSection(ch, st); err != nil {
			return err
		}
	}

	// The CRC covers every byte written so far (magic through the last
	// contig section), per spec.md §6 point 4: "CRC-32C over all bytes
	// preceding the trailer". Snapshot it now, before the trailer's own
	// bytes (offsets + checksum + trailer-start) feed the hash.
	trailerStart := ch.offset
	crc := ch.h.Sum32()
	for _, off := range offsets {
		if err = writeUint64(ch, off); err != nil {
			return err
		}
	}
	if err = writeUint32(ch, crc); err != nil {
		return err
	}
	if err = writeUint64(ch, trailerStart); err != nil {
		return err
	}

	if err = bw.Flush(); err != nil {
		return newWriteError(err, "flushing %s", path)
	}
	return nil
}

func writeHeader(w io.Writer, cfg *Config) error {
	if _, err := w.Write(indexMagic[:]); err != nil {
		return newWriteError(err, "writing magic")
	}
	if err := writeUint16(w, indexVersion); err != nil {
		return err
	}
	if err := writeUint8(w, uint8(cfg.binShift())); err != nil {
		return err
	}
	return writeUint8(w, 0) // reserved
}

func writeContigTable(w io.Writer, contigs []Contig) error {
	if err := writeUint32(w, uint32(len(contigs))); err != nil {
		return err
	}
	for _, c := range contigs {
		if err := writeUint32(w, c.ReferenceID); err != nil {
			return err
		}
		name := c.Name
		if len(name) > 1<<16-1 {
			return newWriteError(errors.Errorf("contig name %q too long", name), "writing contig table")
		}
		if err := writeUint16(w, uint16(len(name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return newWriteError(err, "writing contig name %q", name)
		}
		if err := writeUint64(w, c.Length); err != nil {
			return err
		}
	}
	return nil
}

// writeContigSection writes one contig's section: header, bin offset
// array (prefix sum of per-bin record counts), then packed records.
// st may be nil, or may never have had a block arrive for it (no
// BinStore allocated); both cases are written as an empty, single-bin
// section.
func writeContigSection(w io.Writer, st *contigState) error {
	if st == nil || st.store == nil || !st.store.hasBins {
		return writeEmptySection(w, contigRefID(st))
	}
	bs := st.store
	nBins := bs.maxBin - bs.minBin + 1

	var nSnps uint32
	type flatBin struct{ snps []RawSNP }
	flat := make([]flatBin, nBins)
	for i := uint32(0); i < nBins; i++ {
		p := bs.bins[i]
		if p == nil {
			continue
		}
		recs := p.flatten()
		flat[i] = flatBin{snps: recs}
		nSnps += uint32(len(recs))
	}

	if err := writeUint32(w, bs.contig.ReferenceID); err != nil {
		return err
	}
	if err := writeUint32(w, bs.minBin); err != nil {
		return err
	}
	if err := writeUint32(w, bs.maxBin); err != nil {
		return err
	}
	if err := writeUint32(w, nSnps); err != nil {
		return err
	}

	// Bin offset array: prefix sum of record counts, length nBins+1
	// (spec.md's "max_bin - min_bin + 2" entries).
	running := uint32(0)
	for i := uint32(0); i < nBins; i++ {
		if err := writeUint32(w, running); err != nil {
			return err
		}
		running += uint32(len(flat[i].snps))
	}
	if err := writeUint32(w, running); err != nil {
		return err
	}

	for _, fb := range flat {
		for _, rec := range fb.snps {
			if err := writeUint32(w, rec.Position); err != nil {
				return err
			}
			if err := writeUint8(w, rec.Allele); err != nil {
				return err
			}
			if err := writeUint8(w, rec.Flags); err != nil {
				return err
			}
			if len(rec.Name) > MaxNameBytes {
				return newInvariantError("record name %q exceeds MaxNameBytes at write time", rec.Name)
			}
			if err := writeUint8(w, uint8(len(rec.Name))); err != nil {
				return err
			}
			if _, err := io.WriteString(w, rec.Name); err != nil {
				return newWriteError(err, "writing record name %q", rec.Name)
			}
		}
	}
	return nil
}

func contigRefID(st *contigState) uint32 {
	if st == nil {
		return 0
	}
	return st.contig.ReferenceID
}

func writeEmptySection(w io.Writer, refID uint32) error {
	if err := writeUint32(w, refID); err != nil {
		return err
	}
	if err := writeUint32(w, 0); err != nil { // min_bin
		return err
	}
	if err := writeUint32(w, 0); err != nil { // max_bin
		return err
	}
	if err := writeUint32(w, 0); err != nil { // n_snps
		return err
	}
	// max_bin - min_bin + 2 == 2 offset entries, both zero.
	if err := writeUint32(w, 0); err != nil {
		return err
	}
	return writeUint32(w, 0)
}

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	if err != nil {
		return newWriteError(err, "writing byte")
	}
	return nil
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return newWriteError(err, "writing uint16")
	}
	return nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return newWriteError(err, "writing uint32")
	}
	return nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return newWriteError(err, "writing uint64")
	}
	return nil
}
