package dbsnp

// Config is the small, immutable configuration object the dbSNP index
// builder consumes. It is shared by handle (a pointer) across every
// reader and storage goroutine once validated; nothing in the pipeline
// mutates it after Build starts.
type Config struct {
	// Threads sets the number of storage workers (S) and caps the number
	// of reader workers (R = min(Threads, len(inputFiles))).
	Threads int

	// ContigTable is the sole authority on known contigs. BED records
	// naming a contig absent from this table are dropped and counted
	// under NSkippedUnknownContig.
	ContigTable []Contig

	// NamePrefixMap rewrites contig names seen in BED input before
	// registry lookup (e.g. "chr1" -> "1"). Keys are matched against the
	// whole contig name, not as prefixes. Optional.
	NamePrefixMap map[string]string

	// BlockLimit is the reader-buffer flush threshold. Zero means
	// BlockLimitDefault.
	BlockLimit int

	// BinShift sets the bin width to 1<<BinShift bases. Zero means
	// BinShiftDefault.
	BinShift uint

	// OutputPath is the destination index file.
	OutputPath string
}

func (c *Config) blockLimit() int {
	if c.BlockLimit <= 0 {
		return BlockLimitDefault
	}
	return c.BlockLimit
}

func (c *Config) binShift() uint {
	if c.BinShift == 0 {
		return BinShiftDefault
	}
	return c.BinShift
}

func (c *Config) validate() error {
	if c.Threads < 1 {
		return newConfigError("threads must be >= 1, got %d", c.Threads)
	}
	if len(c.ContigTable) == 0 {
		return newConfigError("contig_table must not be empty")
	}
	if c.OutputPath == "" {
		return newConfigError("output_path must be set")
	}
	seen := make(map[string]bool, len(c.ContigTable))
	for _, ctg := range c.ContigTable {
		if ctg.Name == "" {
			return newConfigError("contig_table entry has empty name")
		}
		if ctg.Length == 0 {
			return newConfigError("contig %q has zero length", ctg.Name)
		}
		if seen[ctg.Name] {
			return newConfigError("contig %q appears more than once in contig_table", ctg.Name)
		}
		seen[ctg.Name] = true
	}
	return nil
}

func (c *Config) rewriteName(name string) string {
	if c.NamePrefixMap == nil {
		return name
	}
	if repl, ok := c.NamePrefixMap[name]; ok {
		return repl
	}
	return name
}
