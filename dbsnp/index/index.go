// Package index is a minimal read-only accessor for the binary index
// dbsnp.Build produces. It exists so the round-trip invariant in
// spec.md §8 ("parsing the written index and iterating all records
// yields exactly the set of kept inputs") is mechanically checkable; it
// is not a query engine (spec.md §1 Non-goals) and performs no indexing
// beyond the file's own offset table. original_source's sibling
// rust/mextr (see _INDEX.md) is this format's real downstream consumer.
package index

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/pkg/errors"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// ContigTableEntry mirrors one entry of the index's contig table.
type ContigTableEntry struct {
	ReferenceID uint32
	Name        string
	Length      uint64
}

// Record is one decoded dbSNP record.
type Record struct {
	Position uint32
	Allele   byte
	Flags    byte
	Name     string
}

// Index is an opened, fully-validated index file ready for random
// access by reference_id.
type Index struct {
	r       io.ReaderAt
	closer  io.Closer
	Version uint16
	BinShift uint8
	Contigs []ContigTableEntry

	sectionOffset map[uint32]int64 // reference_id -> file offset
}

// Open validates the magic, version, trailer checksum, and contig
// table of the index at path, and returns a handle ready for
// Index.Contig lookups.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening index %s", path)
	}
	idx, err := OpenReaderAt(f, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

// OpenReaderAt validates and opens an index backed by r, closing closer
// (if non-nil) when Index.Close is called.
func OpenReaderAt(r io.ReaderAt, closer io.Closer) (*Index, error) {
	size, err := readerSize(r)
	if err != nil {
		return nil, errors.Wrap(err, "determining index size")
	}
	if size < 8 {
		return nil, errors.New("index file too small")
	}

	var trailerStart uint64
	if err := readUint64At(r, size-8, &trailerStart); err != nil {
		return nil, errors.Wrap(err, "reading trailer start")
	}

	hdr := make([]byte, 8)
	if _, err := r.ReadAt(hdr, 0); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	if string(hdr[0:4]) != "GBSI" {
		return nil, errors.New("bad magic: not a dbSNP index")
	}
	version := binary.BigEndian.Uint16(hdr[4:6])
	if version != 1 {
		return nil, errors.Errorf("unsupported index version %d", version)
	}
	binShift := hdr[6]

	off := int64(8)
	var count uint32
	if err := readUint32At(r, off, &count); err != nil {
		return nil, errors.Wrap(err, "reading contig count")
	}
	off += 4

	contigs := make([]ContigTableEntry, count)
	for i := range contigs {
		var refID uint32
		if err := readUint32At(r, off, &refID); err != nil {
			return nil, errors.Wrap(err, "reading contig entry")
		}
		off += 4
		var nameLen uint16
		if err := readUint16At(r, off, &nameLen); err != nil {
			return nil, errors.Wrap(err, "reading contig name length")
		}
		off += 2
		nameBuf := make([]byte, nameLen)
		if _, err := r.ReadAt(nameBuf, off); err != nil {
			return nil, errors.Wrap(err, "reading contig name")
		}
		off += int64(nameLen)
		var length uint64
		if err := readUint64At(r, off, &length); err != nil {
			return nil, errors.Wrap(err, "reading contig length")
		}
		off += 8
		contigs[i] = ContigTableEntry{ReferenceID: refID, Name: string(nameBuf), Length: length}
	}

	nOffsets := int64(count)
	offsetsStart := int64(trailerStart)
	var crcOff int64 = offsetsStart + nOffsets*8
	var crcStoredReal uint32
	if err := readUint32At(r, crcOff, &crcStoredReal); err != nil {
		return nil, errors.Wrap(err, "reading checksum")
	}

	// The CRC covers bytes [0, trailerStart) only: the offset table, the
	// checksum field, and the trailer-start field are themselves outside
	// its domain, mirroring exactly what writeIndex hashes before it
	// writes any trailer bytes.
	if err := verifyCRC(r, int64(trailerStart), crcStoredReal); err != nil {
		return nil, err
	}

	sectionOffset := make(map[uint32]int64, count)
	for i := uint32(0); i < uint32(count); i++ {
		var o uint64
		if err := readUint64At(r, offsetsStart+int64(i)*8, &o); err != nil {
			return nil, errors.Wrap(err, "reading section offset")
		}
		sectionOffset[contigs[i].ReferenceID] = int64(o)
	}

	return &Index{
		r: r, closer: closer,
		Version: version, BinShift: binShift,
		Contigs:       contigs,
		sectionOffset: sectionOffset,
	}, nil
}

func (idx *Index) Close() error {
	if idx.closer == nil {
		return nil
	}
	return idx.closer.Close()
}

// ContigSection is one contig's decoded section: its declared bin
// range and its records in ascending-position order.
type ContigSection struct {
	ReferenceID  uint32
	MinBin       uint32
	MaxBin       uint32
	NSnps        uint32
	Records      []Record
}

// Contig decodes and returns the full section for referenceID.
func (idx *Index) Contig(referenceID uint32) (ContigSection, error) {
	off, ok := idx.sectionOffset[referenceID]
	if !ok {
		return ContigSection{}, errors.Errorf("unknown reference_id %d", referenceID)
	}
	var sec ContigSection
	sec.ReferenceID = referenceID

	if err := readUint32At(idx.r, off, &sec.ReferenceID); err != nil {
		return ContigSection{}, err
	}
	off += 4
	if err := readUint32At(idx.r, off, &sec.MinBin); err != nil {
		return ContigSection{}, err
	}
	off += 4
	if err := readUint32At(idx.r, off, &sec.MaxBin); err != nil {
		return ContigSection{}, err
	}
	off += 4
	if err := readUint32At(idx.r, off, &sec.NSnps); err != nil {
		return ContigSection{}, err
	}
	off += 4

	nBins := int64(sec.MaxBin) - int64(sec.MinBin) + 1
	if nBins < 1 {
		nBins = 1
	}
	offsets := make([]uint32, nBins+1)
	for i := range offsets {
		if err := readUint32At(idx.r, off, &offsets[i]); err != nil {
			return ContigSection{}, err
		}
		off += 4
	}

	sec.Records = make([]Record, 0, sec.NSnps)
	for i := 0; i < len(offsets)-1; i++ {
		n := offsets[i+1] - offsets[i]
		for j := uint32(0); j < n; j++ {
			var rec Record
			var pos uint32
			if err := readUint32At(idx.r, off, &pos); err != nil {
				return ContigSection{}, err
			}
			off += 4
			rec.Position = pos
			b := make([]byte, 3)
			if _, err := idx.r.ReadAt(b, off); err != nil {
				return ContigSection{}, errors.Wrap(err, "reading record header")
			}
			off += 3
			rec.Allele, rec.Flags = b[0], b[1]
			nameLen := int64(b[2])
			nameBuf := make([]byte, nameLen)
			if nameLen > 0 {
				if _, err := idx.r.ReadAt(nameBuf, off); err != nil {
					return ContigSection{}, errors.Wrap(err, "reading record name")
				}
			}
			off += nameLen
			rec.Name = string(nameBuf)
			sec.Records = append(sec.Records, rec)
		}
	}
	return sec, nil
}

func readerSize(r io.ReaderAt) (uint64, error) {
	if f, ok := r.(*os.File); ok {
		fi, err := f.Stat()
		if err != nil {
			return 0, err
		}
		return uint64(fi.Size()), nil
	}
	if s, ok := r.(interface{ Size() int64 }); ok {
		return uint64(s.Size()), nil
	}
	return 0, errors.New("cannot determine size of ReaderAt: need *os.File or a Size() int64 method")
}

func verifyCRC(r io.ReaderAt, n int64, want uint32) error {
	h := crc32.New(crcTable)
	buf := make([]byte, 64*1024)
	var off int64
	for off < n {
		m := int64(len(buf))
		if off+m > n {
			m = n - off
		}
		read, err := r.ReadAt(buf[:m], off)
		if read > 0 {
			h.Write(buf[:read])
		}
		if err != nil && err != io.EOF {
			return errors.Wrap(err, "reading for checksum verification")
		}
		off += int64(read)
		if read == 0 {
			break
		}
	}
	if got := h.Sum32(); got != want {
		return errors.Errorf("checksum mismatch: stored %08x, computed %08x", want, got)
	}
	return nil
}

func readUint16At(r io.ReaderAt, off int64, out *uint16) error {
	var b [2]byte
	if _, err := r.ReadAt(b[:], off); err != nil {
		return err
	}
	*out = binary.BigEndian.Uint16(b[:])
	return nil
}

func readUint32At(r io.ReaderAt, off int64, out *uint32) error {
	var b [4]byte
	if _, err := r.ReadAt(b[:], off); err != nil {
		return err
	}
	*out = binary.BigEndian.Uint32(b[:])
	return nil
}

func readUint64At(r io.ReaderAt, off int64, out *uint64) error {
	var b [8]byte
	if _, err := r.ReadAt(b[:], off); err != nil {
		return err
	}
	*out = binary.BigEndian.Uint64(b[:])
	return nil
}
