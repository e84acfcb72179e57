package dbsnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LookupUnknownContig(t *testing.T) {
	reg := newRegistry([]Contig{{Name: "chr1", Length: 100, ReferenceID: 0}}, BinShiftDefault)
	_, ok := reg.lookup("chrX")
	assert.False(t, ok)
}

func TestRegistry_InternIsIdempotent(t *testing.T) {
	reg := newRegistry([]Contig{{Name: "chr1", Length: 100, ReferenceID: 0}}, BinShiftDefault)
	st1, ok := reg.intern("chr1")
	require.True(t, ok)
	require.NotNil(t, st1.store)

	st2, ok := reg.intern("chr1")
	require.True(t, ok)
	assert.Same(t, st1, st2)
	assert.Same(t, st1.store, st2.store)
}

func TestRegistry_InternUnknownFails(t *testing.T) {
	reg := newRegistry([]Contig{{Name: "chr1", Length: 100, ReferenceID: 0}}, BinShiftDefault)
	_, ok := reg.intern("nope")
	assert.False(t, ok)
}

func TestRegistry_ListActiveOnlyReflectsInterned(t *testing.T) {
	reg := newRegistry([]Contig{
		{Name: "chr1", Length: 100, ReferenceID: 0},
		{Name: "chr2", Length: 100, ReferenceID: 1},
	}, BinShiftDefault)
	assert.Empty(t, reg.listActive())

	_, ok := reg.intern("chr2")
	require.True(t, ok)
	active := reg.listActive()
	require.Len(t, active, 1)
	assert.Equal(t, "chr2", active[0].contig.Name)
}

func TestRegistry_ListActiveIsFirstSeenOrder(t *testing.T) {
	reg := newRegistry([]Contig{
		{Name: "chr1", Length: 100, ReferenceID: 0},
		{Name: "chr2", Length: 100, ReferenceID: 1},
		{Name: "chr3", Length: 100, ReferenceID: 2},
	}, BinShiftDefault)
	_, _ = reg.intern("chr3")
	_, _ = reg.intern("chr1")
	_, _ = reg.intern("chr2")

	active := reg.listActive()
	require.Len(t, active, 3)
	assert.Equal(t, "chr3", active[0].contig.Name)
	assert.Equal(t, "chr1", active[1].contig.Name)
	assert.Equal(t, "chr2", active[2].contig.Name)
}

func TestContigState_TryBindExclusive(t *testing.T) {
	reg := newRegistry([]Contig{{Name: "chr1", Length: 100, ReferenceID: 0}}, BinShiftDefault)
	st, _ := reg.intern("chr1")

	g1, ok := st.tryBind()
	require.True(t, ok)
	require.NotNil(t, g1)

	_, ok = st.tryBind()
	assert.False(t, ok, "a second bind attempt must fail while the first guard is held")

	g1.Close()
	g2, ok := st.tryBind()
	require.True(t, ok)
	g2.Close()
}

func TestContigState_SendBlockAndDrainQueued(t *testing.T) {
	reg := newRegistry([]Contig{{Name: "chr1", Length: 100, ReferenceID: 0}}, BinShiftDefault)
	st, _ := reg.intern("chr1")

	b1 := &snpBlock{contig: st, snps: []RawSNP{{Position: 1}}}
	b2 := &snpBlock{contig: st, snps: []RawSNP{{Position: 2}}}
	st.sendBlock(b1)
	st.sendBlock(b2)

	g, ok := st.tryBind()
	require.True(t, ok)
	defer g.Close()

	blocks := g.drainQueued()
	require.Len(t, blocks, 2)
	assert.EqualValues(t, 1, blocks[0].snps[0].Position)
	assert.EqualValues(t, 2, blocks[1].snps[0].Position)
	assert.Empty(t, g.drainQueued())
}
