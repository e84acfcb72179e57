// Package contigtable loads the {name, length, reference_id} triples
// that make up a dbSNP index's contig table — the sole authority on
// known contigs (spec.md §6). This generalises the .fai-style
// sequence-index parsing in
// github.com/grailbio/bio/encoding/fasta/index.go from FASTA sequence
// offsets to the narrower metadata the dbSNP builder needs, and reuses
// the same struct-tag-driven TSV reader
// (github.com/grailbio/bio/pileup/snp/basestrand.go) instead of a
// bespoke line-splitter.
package contigtable

import (
	"io"
	"os"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"

	"github.com/gemBS/dbsnp-index/dbsnp"
)

// row is one line of a contig-table TSV: name, length, reference_id.
// Columns are matched to fields by the names in the header row
// (HasHeaderRow/UseHeaderNames, same as pileup/snp/basestrand.go's
// ReadSingleStrandBaseStrandTsv), so they may appear in any order.
type row struct {
	Name        string `tsv:"name"`
	Length      uint64 `tsv:"length"`
	ReferenceID uint32 `tsv:"reference_id"`
}

// Load reads a contig table from a TSV file at path. The first
// non-comment line must be a header row naming the name, length and
// reference_id columns.
func Load(path string) ([]dbsnp.Contig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening contig table %s", path)
	}
	defer f.Close()
	return LoadFrom(f)
}

// LoadFrom reads a contig table from r.
func LoadFrom(r io.Reader) ([]dbsnp.Contig, error) {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true

	var out []dbsnp.Contig
	for {
		var rw row
		if err := tr.Read(&rw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "reading contig table")
		}
		out = append(out, dbsnp.Contig{
			Name:        rw.Name,
			Length:      rw.Length,
			ReferenceID: rw.ReferenceID,
		})
	}
	return out, nil
}
