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

// Package dbsnp builds a compact, random-accessible binary index of
// dbSNP records keyed by contig and genomic position, from a set of
// BED-format input files.
package dbsnp

// MaxNameBytes bounds the length of a SNP name retained in the index;
// longer names are truncated.
const MaxNameBytes = 31

// BinShiftDefault is the default bin width exponent: bins are
// 1<<BinShiftDefault bases wide.
const BinShiftDefault = 8

// BlockLimitDefault is the default number of RawSNPs a ReaderBuf
// accumulates per contig before flushing a SnpBlock.
const BlockLimitDefault = 256

// Allele codes. Anything outside ACGT (including multi-base alleles,
// which this index does not represent) is coded AlleleN.
const (
	AlleleA byte = iota
	AlleleC
	AlleleG
	AlleleT
	AlleleN
)

func alleleCode(b byte) byte {
	switch b {
	case 'A', 'a':
		return AlleleA
	case 'C', 'c':
		return AlleleC
	case 'G', 'g':
		return AlleleG
	case 'T', 't':
		return AlleleT
	default:
		return AlleleN
	}
}

// Flag bits packed into RawSNP.Flags.
const (
	FlagNone byte = 0
)

// Contig is an immutable reference-sequence identity, interned once
// from Config.ContigTable. Lifetime spans the run.
type Contig struct {
	Name        string
	Length      uint64
	ReferenceID uint32
}

// RawSNP is a single-position dbSNP record, stripped of its contig
// association so it can be stored compactly inside a contig's BinStore.
// Position is 0-based within the contig.
type RawSNP struct {
	Position uint32
	Allele   byte
	Flags    byte
	Name     string // truncated to MaxNameBytes bytes
}

// snp pairs a RawSNP with the registry handle for the contig it belongs
// to. It is decomposed into its two parts (components) as soon as it
// reaches a ReaderBuf, freeing the handle reference for reuse.
type snp struct {
	raw    RawSNP
	contig *contigState
}

func (s snp) components() (RawSNP, *contigState) {
	return s.raw, s.contig
}

// snpBlock carries a batch of RawSNPs from a single contig between the
// reader stage and the storage stage. Invariant: len(SNPs) > 0.
type snpBlock struct {
	contig *contigState
	snps   []RawSNP
}

func (b *snpBlock) minMax() (min, max uint32, ok bool) {
	if len(b.snps) == 0 {
		return 0, 0, false
	}
	min, max = b.snps[0].Position, b.snps[0].Position
	for _, s := range b.snps[1:] {
		if s.Position < min {
			min = s.Position
		}
		if s.Position > max {
			max = s.Position
		}
	}
	return min, max, true
}
