// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
gembs-dbsnp-index builds a compact, random-accessible binary index of
dbSNP records keyed by contig and genomic position, from one or more
BED-format input files.
*/

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/gemBS/dbsnp-index/dbsnp"
	"github.com/gemBS/dbsnp-index/dbsnp/contigtable"
)

var (
	contigsPath = flag.String("contigs", "", "Path to a contig-table TSV (name, length, reference_id columns); required")
	outPath     = flag.String("out", "", "Output index path; required")
	threads     = flag.Int("threads", runtime.NumCPU(), "Number of storage workers, and upper bound on reader workers")
	blockLimit  = flag.Int("block-limit", dbsnp.BlockLimitDefault, "Reader-buffer flush threshold")
	binShift    = flag.Uint("bin-shift", dbsnp.BinShiftDefault, "Bin width is 1<<bin-shift bases")
	namePrefix  = flag.String("rename", "", "Optional comma-separated old=new contig name rewrites, e.g. chr1=1,chr2=2")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] bedfile [bedfile ...]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Use \"-\" for a single BED input on stdin.\n")
	flag.PrintDefaults()
}

func parseRenameFlag(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range splitComma(s) {
		k, v, ok := splitEquals(pair)
		if !ok {
			return nil, fmt.Errorf("malformed -rename entry %q, expected old=new", pair)
		}
		out[k] = v
	}
	return out, nil
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func splitEquals(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *contigsPath == "" || *outPath == "" || flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	contigs, err := contigtable.Load(*contigsPath)
	if err != nil {
		log.Fatalf("dbsnp: loading contig table: %v", err)
	}
	renameMap, err := parseRenameFlag(*namePrefix)
	if err != nil {
		log.Fatalf("dbsnp: %v", err)
	}

	cfg := dbsnp.Config{
		Threads:       *threads,
		ContigTable:   contigs,
		NamePrefixMap: renameMap,
		BlockLimit:    *blockLimit,
		BinShift:      *binShift,
		OutputPath:    *outPath,
	}

	stats, err := dbsnp.Build(vcontext.Background(), cfg, flag.Args())
	if err != nil {
		log.Fatalf("dbsnp: %v", err)
	}
	log.Printf("dbsnp: done: %+v", stats)
}
