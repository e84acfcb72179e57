package dbsnp

import (
	"sync"
	"sync/atomic"

	farm "github.com/dgryski/go-farm"
)

// registryShards is the number of buckets the contig registry's name ->
// state map is split across. Interning is rare relative to send_block
// (one intern per distinct contig name, many sends per contig), but
// keeping the write-lock scope narrow mirrors the technique
// fusion/kmer_index.go uses to keep a hot map's lock contention low:
// shard by the upper bits of a fast hash instead of taking one lock over
// the whole table.
const registryShards = 64

// contigState is the per-contig record held inside the registry: an
// unbounded queue of snpBlocks, a mutually-exclusive BinStore, and a
// binding token granting at most one storage worker exclusive access at
// a time.
//
// The queue is a plain mutex-guarded slice rather than a Go channel,
// because a channel's capacity would either bound send_block (making it
// block once full, contradicting spec.md §4.B) or have to be grown by a
// relay goroutine to stay unbounded - extra machinery this doesn't need.
// notify is a capacity-1 "something may be queued" signal a storage
// worker can wait on via reflect.Select without it ever consuming a
// SnpBlock itself: unlike selecting on a data channel, receiving notify
// is just a hint to go check the queue, so a failed try_bind afterwards
// never loses data the way dequeuing an actual block would.
type contigState struct {
	contig Contig

	qmu    sync.Mutex
	queue  []*snpBlock
	notify chan struct{}

	bound atomic.Bool
	store *binStore

	// firstSeenSeq records interning order. listActive does not read it;
	// its first-seen order comes from the order of registry.active.
	firstSeenSeq int64
}

// sendBlock is a non-blocking enqueue: it appends to the contig's
// unbounded queue and pings notify if a worker isn't already primed to
// check it. Back-pressure is absorbed upstream by the reader-buffer
// limit and by the number of readers, not by this queue.
func (c *contigState) sendBlock(b *snpBlock) {
	c.qmu.Lock()
	c.queue = append(c.queue, b)
	c.qmu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// bindGuard grants exclusive mutable access to a contigState's BinStore
// for as long as it is held. Releasing the token happens exactly once,
// on Close.
type bindGuard struct {
	state    *contigState
	released bool
}

// tryBind attempts to atomically acquire the binding token. It returns
// (nil, false) if another worker already holds it.
func (c *contigState) tryBind() (*bindGuard, bool) {
	if !c.bound.CompareAndSwap(false, true) {
		return nil, false
	}
	return &bindGuard{state: c}, true
}

// Close releases the binding token. Calls after the first do nothing.
func (g *bindGuard) Close() {
	if g.released {
		return
	}
	g.released = true
	g.state.bound.Store(false)
}

func (g *bindGuard) store() *binStore { return g.state.store }

// drainQueued atomically takes every snpBlock currently queued. Only
// valid while the guard is held.
func (g *bindGuard) drainQueued() []*snpBlock {
	g.state.qmu.Lock()
	blocks := g.state.queue
	g.state.queue = nil
	g.state.qmu.Unlock()
	return blocks
}

// empty reports whether the contig's queue currently holds no blocks.
// Used by the drain phase to decide when every worker has nothing left
// to do.
func (c *contigState) empty() bool {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return len(c.queue) == 0
}

type registryShard struct {
	mu     sync.Mutex
	byName map[string]*contigState
}

// registry interns contig names into shared *contigState handles, and
// lets storage workers enumerate the contigs that have been interned. Exactly one contigState exists per contig name; sendBlock may
// be invoked from any goroutine; tryBind arbitrates sole mutation of a
// contig's BinStore.
type registry struct {
	shards [registryShards]registryShard

	// active is appended to (under activeMu) in first-seen order; storage
	// workers snapshot it via listActive.
	activeMu sync.Mutex
	active   []*contigState
	seenSeq  int64

	binShift uint
}

func newRegistry(contigs []Contig, binShift uint) *registry {
	r := &registry{binShift: binShift}
	for i := range r.shards {
		r.shards[i].byName = make(map[string]*contigState)
	}
	// Pre-size by interning every configured contig up front would
	// violate "created on first block for that contig" for BinStore, so
	// we only remember the Contig metadata here; contigState.store stays
	// nil until the first block arrives. We still need O(1) name ->
	// Contig lookup for the builder, which registerKnown below
	// provides via the same sharded map, minus the "active" bookkeeping.
	for _, c := range contigs {
		r.registerKnown(c)
	}
	return r
}

func (r *registry) shardIndex(name string) int {
	h := farm.Hash64WithSeed([]byte(name), 0)
	return int(h>>56) % registryShards
}

// registerKnown installs the metadata for a contig named in
// Config.ContigTable, without marking it active (no block has arrived
// for it yet) and without allocating its BinStore.
func (r *registry) registerKnown(c Contig) *contigState {
	sh := &r.shards[r.shardIndex(c.Name)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if st, ok := sh.byName[c.Name]; ok {
		return st
	}
	st := &contigState{contig: c}
	sh.byName[c.Name] = st
	return st
}

// lookup returns the contigState for a known contig name, or (nil,
// false) if the name was never in Config.ContigTable (an "unknown
// contig" in spec terms).
func (r *registry) lookup(name string) (*contigState, bool) {
	sh := &r.shards[r.shardIndex(name)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.byName[name]
	return st, ok
}

// intern marks a known contig as active (creating its notify channel and
// BinStore on first use) and returns its shared handle. Safe to call
// concurrently; only the first caller for a given contig pays the setup
// cost.
func (r *registry) intern(name string) (*contigState, bool) {
	st, ok := r.lookup(name)
	if !ok {
		return nil, false
	}
	sh := &r.shards[r.shardIndex(name)]
	sh.mu.Lock()
	needsActivation := st.notify == nil
	if needsActivation {
		st.notify = make(chan struct{}, 1)
		st.store = newBinStore(st.contig, r.binShift)
	}
	sh.mu.Unlock()
	if needsActivation {
		r.activeMu.Lock()
		st.firstSeenSeq = r.seenSeq
		r.seenSeq++
		r.active = append(r.active, st)
		r.activeMu.Unlock()
	}
	return st, true
}

// listActive returns a snapshot of contigs that have been interned, in
// stable first-seen order. A contig is interned when the builder first
// parses a record for it, so it can be listed before its first block
// has been sent.
func (r *registry) listActive() []*contigState {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	out := make([]*contigState, len(r.active))
	copy(out, r.active)
	return out
}
