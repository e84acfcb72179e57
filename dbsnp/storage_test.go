package dbsnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryConsumeContig_MergesBlocksInOrder(t *testing.T) {
	reg := newRegistry([]Contig{{Name: "chr1", Length: 1 << 20, ReferenceID: 0}}, BinShiftDefault)
	ctg, _ := reg.intern("chr1")
	cfg := &Config{}
	st := &stats{}

	lead := &snpBlock{contig: ctg, snps: []RawSNP{{Position: 100, Name: "a"}, {Position: 50, Name: "b"}}}
	ctg.sendBlock(&snpBlock{contig: ctg, snps: []RawSNP{{Position: 75, Name: "c"}}})

	ok := tryConsumeContig(ctg, lead, reg, cfg, st)
	assert.True(t, ok)
	assert.EqualValues(t, 3, st.nRecordsKept)

	// Positions 50, 75 and 100 all fall in bin 0 (bin width 256), which
	// merges them into ascending position order.
	flat := ctg.store.payload(ctg.store.binID(50)).flatten()
	require.Len(t, flat, 3)
	assert.EqualValues(t, 50, flat[0].Position)
	assert.EqualValues(t, 75, flat[1].Position)
	assert.EqualValues(t, 100, flat[2].Position)
}

func TestTryConsumeContig_CountsDuplicates(t *testing.T) {
	reg := newRegistry([]Contig{{Name: "chr1", Length: 1 << 20, ReferenceID: 0}}, BinShiftDefault)
	ctg, _ := reg.intern("chr1")
	cfg := &Config{}
	st := &stats{}

	lead := &snpBlock{contig: ctg, snps: []RawSNP{
		{Position: 100, Name: "rs1"},
		{Position: 100, Name: "rs1"},
	}}
	ok := tryConsumeContig(ctg, lead, reg, cfg, st)
	assert.True(t, ok)
	assert.EqualValues(t, 1, st.nRecordsKept)
	assert.EqualValues(t, 1, st.nDuplicates)
}

func TestTryConsumeContig_FailsWhenAlreadyBound(t *testing.T) {
	reg := newRegistry([]Contig{{Name: "chr1", Length: 1 << 20, ReferenceID: 0}}, BinShiftDefault)
	ctg, _ := reg.intern("chr1")
	cfg := &Config{}
	st := &stats{}

	guard, ok := ctg.tryBind()
	require.True(t, ok)
	defer guard.Close()

	lead := &snpBlock{contig: ctg, snps: []RawSNP{{Position: 1, Name: "a"}}}
	processed := tryConsumeContig(ctg, lead, reg, cfg, st)
	assert.False(t, processed, "a contig already bound by another worker must not be double-consumed")
}

func TestTryConsumeContig_NilLeadDrainsQueueOnly(t *testing.T) {
	reg := newRegistry([]Contig{{Name: "chr1", Length: 1 << 20, ReferenceID: 0}}, BinShiftDefault)
	ctg, _ := reg.intern("chr1")
	cfg := &Config{}
	st := &stats{}

	ok := tryConsumeContig(ctg, nil, reg, cfg, st)
	assert.False(t, ok, "nothing queued and no lead block means nothing to process")

	ctg.sendBlock(&snpBlock{contig: ctg, snps: []RawSNP{{Position: 5, Name: "x"}}})
	ok = tryConsumeContig(ctg, nil, reg, cfg, st)
	assert.True(t, ok)
	assert.EqualValues(t, 1, st.nRecordsKept)
}

func TestDrainSweep_ProcessesAllReadyContigs(t *testing.T) {
	reg := newRegistry([]Contig{
		{Name: "chr1", Length: 1 << 20, ReferenceID: 0},
		{Name: "chr2", Length: 1 << 20, ReferenceID: 1},
	}, BinShiftDefault)
	ctg1, _ := reg.intern("chr1")
	ctg2, _ := reg.intern("chr2")
	cfg := &Config{}
	st := &stats{}

	ctg1.sendBlock(&snpBlock{contig: ctg1, snps: []RawSNP{{Position: 1, Name: "a"}}})
	ctg2.sendBlock(&snpBlock{contig: ctg2, snps: []RawSNP{{Position: 2, Name: "b"}}})

	processed := drainSweep(reg.listActive(), reg, cfg, st)
	assert.True(t, processed)
	assert.EqualValues(t, 2, st.nRecordsKept)

	assert.False(t, drainSweep(reg.listActive(), reg, cfg, st), "a second sweep over empty queues must report no work")
}
