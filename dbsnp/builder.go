package dbsnp

// snpBuilder parses BED records into Snps. It caches the last seen
// contig name -> handle to avoid registry lookups on runs of
// same-contig records, the same optimisation original_source's
// SnpBuilder performs (see rust/dbsnp_index: conf.ctg_hash() lookups are
// skipped when the contig repeats).
type snpBuilder struct {
	reg *registry
	cfg *Config

	lastName string
	lastCtg  *contigState
	lastOK   bool
}

func newSNPBuilder(reg *registry, cfg *Config) *snpBuilder {
	return &snpBuilder{reg: reg, cfg: cfg}
}

// getTokens identifies up to len(tokens) whitespace/tab-delimited tokens
// in line, returning the number of tokens found. This is the same
// allocation-free scan interval/bedunion.go's getTokens performs over
// BED text, generalised here to accept the dbSNP BED's extra trailing
// columns (score, strand, ref, alt) without caring how many of them are
// actually present.
func getTokens(tokens [][]byte, line []byte) int {
	posEnd := 0
	lineLen := len(line)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if line[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if line[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = line[pos:posEnd]
	}
	return len(tokens)
}

func parseUint(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var v uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint64(c-'0')
	}
	return v, true
}

// buildResult distinguishes the builder's three outcomes so the caller
// (the reader stage) can bump the right counter without re-deriving
// why a line was dropped.
type buildResult int

const (
	buildKept buildResult = iota
	buildMalformed
	buildUnknownContig
	buildIndelSkipped
)

// parseBEDLine parses one BED-format record. Blank lines and malformed
// records return buildMalformed and a zero snp; lines for an unrecognised
// contig return buildUnknownContig; non-SNP intervals (end != start+1)
// return buildIndelSkipped, which the caller folds into n_malformed per
// spec.md S4. "track"-prefixed and "#"-prefixed lines must be filtered
// by the caller before this is invoked.
func (b *snpBuilder) parseBEDLine(line []byte) (snp, buildResult) {
	var toks [8][]byte
	n := getTokens(toks[:], line)
	if n < 4 {
		return snp{}, buildMalformed
	}
	chrom, startB, endB, name := toks[0], toks[1], toks[2], toks[3]

	start, ok := parseUint(startB)
	if !ok {
		return snp{}, buildMalformed
	}
	end, ok := parseUint(endB)
	if !ok {
		return snp{}, buildMalformed
	}
	if end != start+1 {
		return snp{}, buildIndelSkipped
	}
	if start > uint64(^uint32(0)) {
		return snp{}, buildMalformed
	}

	name2 := string(name)
	if len(name2) > MaxNameBytes {
		name2 = name2[:MaxNameBytes]
	}

	allele := AlleleN
	if n > 6 {
		alt := toks[6]
		if len(alt) == 1 {
			allele = alleleCode(alt[0])
		}
	}

	cname := b.cfg.rewriteName(string(chrom))
	ctg, ok := b.resolveContig(cname)
	if !ok {
		return snp{}, buildUnknownContig
	}

	raw := RawSNP{
		Position: uint32(start),
		Allele:   allele,
		Flags:    FlagNone,
		Name:     name2,
	}
	return snp{raw: raw, contig: ctg}, buildKept
}

func (b *snpBuilder) resolveContig(name string) (*contigState, bool) {
	if b.lastOK && b.lastName == name {
		return b.lastCtg, true
	}
	ctg, ok := b.reg.intern(name)
	b.lastName = name
	b.lastCtg = ctg
	b.lastOK = ok
	return ctg, ok
}
