package dbsnp

import (
	"errors"

	"github.com/biogo/store/llrb"
	"github.com/blainsmith/seahash"
)

// binPayload holds the RawSNPs that fall into one positional bin, kept
// internally as a small ordered tree so that blocks arriving in
// different orders (interleaved across readers/files) still merge into
// position order in O(log n) per insert, the same shape as the k-way
// merge cmd/bio-bam-sort/sorter/sort.go performs with llrb.Tree. At
// finalise time the tree is flattened once into the compact ascending
// slice the spec describes.
type binPayload struct {
	tree llrb.Tree
	// fingerprints is a fast pre-check seahash set: if a (position,name)
	// pair's fingerprint isn't present, it cannot be a duplicate, so the
	// (rarer) exact llrb.Get comparison is skipped. Mirrors the role
	// blainsmith/seahash plays as a checksum primitive in
	// cmd/bio-pamtool/checksum.go, repurposed here as a Bloom-less
	// dedup accelerator.
	fingerprints map[uint64]bool
}

func newBinPayload() *binPayload {
	return &binPayload{fingerprints: make(map[uint64]bool)}
}

// snpLeaf adapts a RawSNP to llrb.Comparable, ordering first by
// Position then, for equal positions, by Name, and only then by seq
// (insertion order). Records at one position are therefore ordered by
// name, not by arrival, which keeps the output independent of how
// blocks were interleaved across readers.
type snpLeaf struct {
	snp RawSNP
	seq int64
}

func (l *snpLeaf) Compare(other llrb.Comparable) int {
	o := other.(*snpLeaf)
	if l.snp.Position != o.snp.Position {
		if l.snp.Position < o.snp.Position {
			return -1
		}
		return 1
	}
	if l.snp.Name != o.snp.Name {
		if l.snp.Name < o.snp.Name {
			return -1
		}
		return 1
	}
	if l.seq != o.seq {
		if l.seq < o.seq {
			return -1
		}
		return 1
	}
	return 0
}

func fingerprint(position uint32, name string) uint64 {
	h := seahash.New()
	var posBuf [4]byte
	posBuf[0] = byte(position)
	posBuf[1] = byte(position >> 8)
	posBuf[2] = byte(position >> 16)
	posBuf[3] = byte(position >> 24)
	_, _ = h.Write(posBuf[:])
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

// insert adds raw into the bin, maintaining position order and
// de-duplicating (position, name) pairs second-wins: if an exact match
// for (position, name) is already present, it is replaced and dup is
// true. seq disambiguates insertion order for the rare case where two
// distinct-looking leaves compare equal only on (position, name) - i.e.
// the very duplicate we're detecting - so it is only consulted to keep
// the tree internally well-ordered, never to defeat de-duplication.
func (p *binPayload) insert(raw RawSNP, seq int64) (dup bool) {
	fp := fingerprint(raw.Position, raw.Name)
	if p.fingerprints[fp] {
		if existing := p.findExact(raw.Position, raw.Name); existing != nil {
			p.tree.Delete(existing)
			existing.snp = raw
			existing.seq = seq
			p.tree.Insert(existing)
			return true
		}
	}
	p.fingerprints[fp] = true
	p.tree.Insert(&snpLeaf{snp: raw, seq: seq})
	return false
}

func (p *binPayload) findExact(position uint32, name string) *snpLeaf {
	var found *snpLeaf
	p.tree.Do(func(c llrb.Comparable) bool {
		l := c.(*snpLeaf)
		if l.snp.Position == position && l.snp.Name == name {
			found = l
			return true
		}
		if l.snp.Position > position {
			return true
		}
		return false
	})
	return found
}

// flatten returns the bin's RawSNPs in ascending position order (ties
// broken by name), the compact representation used for serialisation.
func (p *binPayload) flatten() []RawSNP {
	out := make([]RawSNP, 0, p.tree.Len())
	p.tree.Do(func(c llrb.Comparable) bool {
		out = append(out, c.(*snpLeaf).snp)
		return false
	})
	return out
}

// binStoreGrowCap bounds the doubling phase of the amortised growth
// policy; beyond it, growth switches to a fixed linear chunk. Modeled on
// circular/bitmap.go's row-growth discipline (double up to a cap, then
// grow linearly).
const binStoreGrowCap = 1 << 16
const binStoreGrowChunk = 1 << 14

// binStore is the positional index for one contig: a sparse ordered
// mapping {bin_id -> binPayload}, stored as a growable slice whose
// indices are dense between minBin and maxBin. bin_id = position >>
// binShift.
type binStore struct {
	contig   Contig
	binShift uint

	// buf is the full backing array; bins is the live window
	// buf[off:off+len(bins)], where bins[i] holds the payload for bin
	// (baseBin + i). Growing the upper bound extends the window within
	// buf's existing capacity when room remains; growing the lower bound
	// shifts off back within buf the same way, touching no existing
	// payload pointer at all - the index-offset trick circular/bitmap.go
	// uses when its circular buffer's logical base moves, adapted here
	// to a one-directional (never-wrapping) window instead of a ring.
	// Only once spare headroom on the relevant side is exhausted does a
	// reallocation (and a one-time copy) happen, amortised the same way
	// on both sides.
	buf     []*binPayload
	off     int
	bins    []*binPayload
	baseBin uint32
	hasBins bool
	minBin  uint32
	maxBin  uint32

	nSnps   int
	nextSeq int64
}

func newBinStore(c Contig, binShift uint) *binStore {
	return &binStore{contig: c, binShift: binShift}
}

func (s *binStore) binID(position uint32) uint32 { return position >> s.binShift }

// checkBounds ensures the underlying dense vector covers bins
// [minBin(minPos), maxBin(maxPos)], growing in place (preserving
// existing payloads) and updating (minBin, maxBin).
func (s *binStore) checkBounds(minPos, maxPos uint32) {
	lo, hi := s.binID(minPos), s.binID(maxPos)
	if !s.hasBins {
		n := int(hi - lo + 1)
		s.buf = make([]*binPayload, n)
		s.off = 0
		s.bins = s.buf
		s.baseBin = lo
		s.minBin = lo
		s.maxBin = hi
		s.hasBins = true
		return
	}
	if lo < s.minBin {
		s.growDown(s.minBin - lo)
		s.minBin = lo
	}
	if hi > s.maxBin {
		s.growUp(hi - s.maxBin)
		s.maxBin = hi
	}
}

// growCap applies the same doubling-up-to-binStoreGrowCap-then-linear
// schedule growUp and growDown both use to grow current to at least need.
func growCap(current, need int) int {
	if current == 0 {
		current = 1
	}
	for current < need {
		if current < binStoreGrowCap {
			current *= 2
		} else {
			current += binStoreGrowChunk
		}
	}
	return current
}

// realloc grows buf to hold need live bins, leaving lowReserve untouched
// slots below the window and placing the existing bins dataOffset slots
// into the new window (0 when growing up and the old data stays first,
// n when growing down and n fresh low bins precede it).
func (s *binStore) realloc(need, lowReserve, dataOffset int) {
	newCap := growCap(cap(s.buf), need+lowReserve)
	newBuf := make([]*binPayload, need+lowReserve, newCap)
	copy(newBuf[lowReserve+dataOffset:], s.bins)
	s.buf = newBuf
	s.off = lowReserve
	s.bins = s.buf[s.off : s.off+need]
}

// growUp extends the upper bound by n bins, in place when buf has spare
// capacity above the live window, otherwise via realloc.
func (s *binStore) growUp(n uint32) {
	need := len(s.bins) + int(n)
	if s.off+need <= cap(s.buf) {
		s.buf = s.buf[:s.off+need]
		s.bins = s.buf[s.off:]
		return
	}
	s.realloc(need, s.off, 0)
}

// growDown extends the lower bound by n bins. When buf still has spare
// headroom below the live window (left over from a previous realloc),
// this is a pure offset shift: no existing payload is copied, only
// baseBin and the window bounds move. Only once that headroom is
// exhausted does it reallocate, reserving fresh low-side headroom sized
// for this call so a run of small growDown calls doesn't realloc every
// time.
func (s *binStore) growDown(n uint32) {
	if s.off >= int(n) {
		s.off -= int(n)
		s.bins = s.buf[s.off : s.off+len(s.bins)+int(n)]
		s.baseBin -= n
		return
	}
	need := len(s.bins) + int(n)
	lowReserve := growCap(0, int(n))
	s.realloc(need, lowReserve, int(n))
	s.baseBin -= n
}

func (s *binStore) payload(binID uint32) *binPayload {
	idx := binID - s.baseBin
	p := s.bins[idx]
	if p == nil {
		p = newBinPayload()
		s.bins[idx] = p
	}
	return p
}

// add computes bin_id = position >> binShift, locates the bin payload,
// and inserts the SNP maintaining ascending order on position. It
// assumes checkBounds has already been called to cover raw.Position;
// violating that is an InternalInvariant.
func (s *binStore) add(raw RawSNP) error {
	id := s.binID(raw.Position)
	if !s.hasBins || id < s.minBin || id > s.maxBin {
		return newInvariantError(
			"bin store for contig %q: position %d (bin %d) outside declared bounds [%d,%d]",
			s.contig.Name, raw.Position, id, s.minBin, s.maxBin)
	}
	p := s.payload(id)
	seq := s.nextSeq
	s.nextSeq++
	dup := p.insert(raw, seq)
	if dup {
		return errDuplicate
	}
	s.nSnps++
	return nil
}

// errDuplicate is a sentinel, not one of the spec's fatal error kinds:
// callers treat it as "increment the duplicate counter", exactly the
// way builder drops are counted rather than surfaced.
var errDuplicate = errors.New("duplicate (position, name)")

func isDuplicate(err error) bool { return err == errDuplicate }
