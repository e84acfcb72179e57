package dbsnp

import (
	"reflect"
	"sync/atomic"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// storagePollInterval is how long a storage worker waits for any
// contig channel (or the drain signal) to become ready before
// re-snapshotting the active-contig list. The source polls with a
// 100ms timeout but rebuilds the selector every iteration; this spec
// treats that as deliberate coarse polling rather than an accident
// (spec.md §9), since contigs number in the tens to low thousands and a
// selector rebuild at that scale is cheap relative to 100ms.
const storagePollInterval = 100 * time.Millisecond

// spawnStorers launches n = cfg.Threads storage workers via
// traverse.Each, each holding a private one-shot drain channel (capacity
// 1). The coordinator sends exactly one drain signal per worker after
// every reader has joined.
func spawnStorers(n int, reg *registry, cfg *Config, st *stats) (join func() error, drain func()) {
	drainChans := make([]chan struct{}, n)
	for i := range drainChans {
		drainChans[i] = make(chan struct{}, 1)
	}

	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		err := traverse.Each(n, func(workerID int) error {
			storeWorker(workerID, drainChans[workerID], reg, cfg, st)
			return nil
		})
		errCh <- err
		close(done)
	}()

	join = func() error {
		<-done
		return <-errCh
	}
	drain = func() {
		for _, c := range drainChans {
			c <- struct{}{}
		}
	}
	return join, drain
}

// storeWorker is the main loop for one storage worker: running state
// polls a dynamic multi-channel selector over every active contig plus
// its drain signal; draining state sweeps the live receivers
// non-blockingly until a full pass consumes nothing.
func storeWorker(workerID int, drainCh chan struct{}, reg *registry, cfg *Config, st *stats) {
	ending := false
	for {
		ctgs := reg.listActive()
		if !ending {
			processed, gotDrain := runningPoll(ctgs, drainCh, reg, cfg, st)
			_ = processed
			if gotDrain {
				log.Debug.Printf("dbsnp: store worker %d received drain signal", workerID)
				ending = true
			}
			continue
		}
		processed := drainSweep(ctgs, reg, cfg, st)
		allEmpty := true
		for _, c := range ctgs {
			if !c.empty() {
				allEmpty = false
				break
			}
		}
		if !processed && allEmpty {
			break
		}
	}
	log.Debug.Printf("dbsnp: store worker %d finishing up", workerID)
}

// runningPoll builds a selector over every active contig's notify
// channel plus drainCh, and waits up to storagePollInterval for one to
// be ready. It returns whether any contig work was processed and
// whether the drain signal fired.
//
// notify only ever carries a "go look" hint, never a block itself, so
// reflect.Select consuming it loses nothing: unlike selecting directly
// on a data channel, there is no dequeued value that try_bind's failure
// could strand. tryConsumeContig re-checks the queue itself once bound.
func runningPoll(ctgs []*contigState, drainCh chan struct{}, reg *registry, cfg *Config, st *stats) (processed, gotDrain bool) {
	cases := make([]reflect.SelectCase, 0, len(ctgs)+2)
	for _, c := range ctgs {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(c.notify)})
	}
	drainIdx := len(cases)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(drainCh)})
	timeoutIdx := len(cases)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(time.After(storagePollInterval))})

	idx, _, recvOK := reflect.Select(cases)
	switch {
	case idx == timeoutIdx:
		return false, false
	case idx == drainIdx:
		if !recvOK {
			return false, true
		}
		return false, true
	default:
		ctg := ctgs[idx]
		return tryConsumeContig(ctg, nil, reg, cfg, st), false
	}
}

// drainSweep attempts a non-blocking try_bind-and-drain across every
// active contig. It returns whether any block was consumed during the
// sweep.
func drainSweep(ctgs []*contigState, reg *registry, cfg *Config, st *stats) bool {
	processed := false
	for _, ctg := range ctgs {
		if ctg.empty() {
			continue
		}
		if tryConsumeContig(ctg, nil, reg, cfg, st) {
			processed = true
		}
	}
	return processed
}

// tryConsumeContig attempts to bind ctg's contigState. If the token is
// already held by another worker, it returns false and the caller moves
// on (another worker will consume this contig's queue). If acquired, it
// drains every currently queued block non-blockingly (leading, already
// the leadBlock passed in), computes (min,max) across them, calls
// checkBounds once, then adds each SNP in block arrival order, and
// within a block, in stored order.
func tryConsumeContig(ctg *contigState, leadBlock *snpBlock, reg *registry, cfg *Config, st *stats) bool {
	guard, ok := ctg.tryBind()
	if !ok {
		return false
	}
	defer guard.Close()

	blocks := guard.drainQueued()
	if leadBlock != nil {
		blocks = append([]*snpBlock{leadBlock}, blocks...)
	}
	if len(blocks) == 0 {
		return false
	}

	var (
		min, max uint32
		haveMM   bool
	)
	for _, b := range blocks {
		bmin, bmax, ok := b.minMax()
		if !ok {
			continue
		}
		if !haveMM {
			min, max, haveMM = bmin, bmax, true
			continue
		}
		if bmin < min {
			min = bmin
		}
		if bmax > max {
			max = bmax
		}
	}
	if !haveMM {
		return false
	}

	store := guard.store()
	store.checkBounds(min, max)
	for _, b := range blocks {
		for _, raw := range b.snps {
			err := store.add(raw)
			switch {
			case err == nil:
				atomic.AddUint64(&st.nRecordsKept, 1)
			case isDuplicate(err):
				atomic.AddUint64(&st.nDuplicates, 1)
			default:
				// Only InternalInvariant reaches here (store.add's sole
				// other error kind); per spec.md §7 it is fatal and must
				// surface through the worker's join, so we panic rather
				// than log-and-continue.
				panic(err)
			}
		}
	}
	return true
}
