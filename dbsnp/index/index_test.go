package index_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemBS/dbsnp-index/dbsnp"
	"github.com/gemBS/dbsnp-index/dbsnp/index"
)

func buildTestIndex(t *testing.T, dir string) string {
	bed := "chr1\t100\t101\trs1\nchr1\t50\t51\trs2\nchr2\t5\t6\trs3\n"
	path := filepath.Join(dir, "in.bed")
	require.NoError(t, ioutil.WriteFile(path, []byte(bed), 0644))

	cfg := dbsnp.Config{
		Threads: 2,
		ContigTable: []dbsnp.Contig{
			{Name: "chr1", Length: 1000, ReferenceID: 0},
			{Name: "chr2", Length: 1000, ReferenceID: 1},
		},
		OutputPath: filepath.Join(dir, "out.gbsi"),
	}
	_, err := dbsnp.Build(vcontext.Background(), cfg, []string{path})
	require.NoError(t, err)
	return cfg.OutputPath
}

func TestOpen_RoundTrip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "dbsnp-index")
	defer cleanup()
	path := buildTestIndex(t, dir)

	idx, err := index.Open(path)
	require.NoError(t, err)
	defer idx.Close()

	assert.EqualValues(t, 1, idx.Version)
	require.Len(t, idx.Contigs, 2)

	sec, err := idx.Contig(0)
	require.NoError(t, err)
	require.Len(t, sec.Records, 2)
	assert.EqualValues(t, 50, sec.Records[0].Position)
	assert.EqualValues(t, 100, sec.Records[1].Position)
	assert.Equal(t, "rs2", sec.Records[0].Name)
}

func TestOpen_UnknownReferenceID(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "dbsnp-index-unknown")
	defer cleanup()
	path := buildTestIndex(t, dir)

	idx, err := index.Open(path)
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Contig(99)
	assert.Error(t, err)
}

func TestOpen_RejectsBadMagic(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "dbsnp-index-badmagic")
	defer cleanup()
	path := filepath.Join(dir, "bad.gbsi")
	require.NoError(t, ioutil.WriteFile(path, []byte("NOTANINDEXFILE__"), 0644))

	_, err := index.Open(path)
	assert.Error(t, err)
}

func TestOpen_RejectsCorruptedChecksum(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "dbsnp-index-crc")
	defer cleanup()
	path := buildTestIndex(t, dir)

	b, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	// Flip the first byte of the first contig's name (offset 18: 8-byte
	// header, 4-byte count, 4-byte reference_id, 2-byte name length), so
	// the contig table still parses but the stored checksum no longer
	// matches.
	b[18] ^= 0xff
	require.NoError(t, ioutil.WriteFile(path, b, 0644))

	_, err = index.Open(path)
	assert.Error(t, err)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := index.Open(filepath.Join(os.TempDir(), "does-not-exist.gbsi"))
	assert.Error(t, err)
}
