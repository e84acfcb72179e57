package dbsnp

// readerBuf is a short-lived per-reader accumulator: it buckets SNPs by
// contig, and flushes a bucket as a snpBlock once it reaches limit. The
// per-contig bucket ensures a single block carries only one contig's
// SNPs, so the storage worker bound to that contig never has to
// re-dispatch a mixed block. limit bounds the reader's working set to
// limit * |contigs observed by this reader|.
type readerBuf struct {
	limit   int
	buckets map[*contigState][]RawSNP
}

func newReaderBuf(limit int) *readerBuf {
	return &readerBuf{limit: limit, buckets: make(map[*contigState][]RawSNP)}
}

// add appends raw to the bucket for ctg; if the bucket reaches limit, it
// is flushed as a snpBlock and removed.
func (r *readerBuf) add(ctg *contigState, raw RawSNP) {
	v := append(r.buckets[ctg], raw)
	if len(v) >= r.limit {
		delete(r.buckets, ctg)
		ctg.sendBlock(&snpBlock{contig: ctg, snps: v})
		return
	}
	r.buckets[ctg] = v
}

// flush dispatches every remaining non-empty bucket as a snpBlock. Call
// once, on reader termination.
func (r *readerBuf) flush() {
	for ctg, v := range r.buckets {
		if len(v) == 0 {
			continue
		}
		ctg.sendBlock(&snpBlock{contig: ctg, snps: v})
	}
	r.buckets = make(map[*contigState][]RawSNP)
}
