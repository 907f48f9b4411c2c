package reader

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gwasFileBody = "CHROM\tPOS\tREF\tALT\tPVALUE\tBETA\n" +
	"19\t45411941\tT\tC\t0.049\t0.005\n" +
	"16\t82335280\tAAAC\tA\t4.9e-8\t0.005\n" +
	"1\t1000\tG\tA\t0.9\t0.1\n" +
	"1\t2000\tG\t<DEL>\t1e-10\t0.1\n" +
	"1\t3000\tG\tA\tnot_a_number\t0.1\n"

func writeGWASFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.tsv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestGWASFindSignificantHits(t *testing.T) {
	path := writeGWASFile(t, gwasFileBody)
	r := NewGWASFileReader(path, false, HG19, "p1")

	result, container, err := r.FindSignificantHits(0.05)
	require.NoError(t, err)
	require.True(t, result.Success)

	// the 0.9 row is above cutoff, the structural variant fails HGVS
	// conversion, and the unparseable p-value row is skipped
	assert.Equal(t, 2, result.HitCount)
	assert.Equal(t, 2, container.HitCount())

	hit := container.Get("19", 45411941, "T", "C")
	require.NotNil(t, hit)
	assert.Equal(t, "NC_000019.9:g.45411941T>C", hit.HGVS)
	assert.Equal(t, "NC_000019.9:g.45411941T>C", hit.OriginalID)

	del := container.Get("16", 82335280, "AAAC", "A")
	require.NotNil(t, del)
	assert.Equal(t, "NC_000016.9:g.82335281_82335283del", del.HGVS)
}

func TestGWASFindSignificantHitsGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.tsv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(gwasFileBody))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	r := NewGWASFileReader(path, false, HG19, "p1")
	result, container, err := r.FindSignificantHits(0.05)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 2, container.HitCount())
}

func TestGWASBadHeaders(t *testing.T) {
	path := writeGWASFile(t, "CHROM\tPOS\tREF\tALT\tSCORE\n19\t1\tT\tC\t0.01\n")
	r := NewGWASFileReader(path, false, HG19, "p1")

	result, _, err := r.FindSignificantHits(0.05)
	require.False(t, result.Success)

	var badHeaders *BadHeadersError
	require.ErrorAs(t, err, &badHeaders)
	assert.Equal(t, []string{"chrom", "pos", "ref", "alt", "score"}, badHeaders.Observed)
}

func TestGWASHeaderAliases(t *testing.T) {
	path := writeGWASFile(t, "chr\tposition\tref\talt\tp_val\tbeta\n19\t45411941\tT\tC\t0.049\t0.005\n")
	r := NewGWASFileReader(path, false, HG19, "p1")

	result, container, err := r.FindSignificantHits(0.05)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, container.HitCount())
}

func TestGWASMissingFile(t *testing.T) {
	r := NewGWASFileReader("/nonexistent/study.tsv", false, HG19, "p1")
	result, _, err := r.FindSignificantHits(0.05)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestGWASGetAssociationTextPath(t *testing.T) {
	path := writeGWASFile(t, gwasFileBody)
	r := NewGWASFileReader(path, false, HG19, "p1")

	_, container, err := r.FindSignificantHits(0.05)
	require.NoError(t, err)
	hit := container.Get("19", 45411941, "T", "C")
	require.NotNil(t, hit)

	assoc, err := r.GetAssociation(hit)
	require.NoError(t, err)
	require.NotNil(t, assoc)
	assert.InDelta(t, 0.049, assoc.PValue, 1e-12)
	assert.InDelta(t, 0.005, assoc.Beta, 1e-12)
}

func TestGWASGetAssociationOnFreshReader(t *testing.T) {
	path := writeGWASFile(t, gwasFileBody)

	// a reader that never scanned still resolves columns from the header
	scan := NewGWASFileReader(path, false, HG19, "p1")
	_, container, err := scan.FindSignificantHits(0.05)
	require.NoError(t, err)
	hit := container.Get("16", 82335280, "AAAC", "A")
	require.NotNil(t, hit)

	fresh := NewGWASFileReader(path, false, HG19, "p1")
	assoc, err := fresh.GetAssociation(hit)
	require.NoError(t, err)
	require.NotNil(t, assoc)
	assert.InDelta(t, 4.9e-8, assoc.PValue, 1e-20)
}

func TestGWASGetAssociationMissingVariantReturnsNil(t *testing.T) {
	path := writeGWASFile(t, gwasFileBody)
	r := NewGWASFileReader(path, false, HG19, "p1")

	_, _, err := r.FindSignificantHits(0.05)
	require.NoError(t, err)

	missing := containerHit("22", 1, "A", "T")
	assoc, err := r.GetAssociation(missing)
	require.NoError(t, err)
	assert.Nil(t, assoc)
}

func TestGWASGetAssociationClampsZeroPValue(t *testing.T) {
	body := "chrom\tpos\tref\talt\tpvalue\tbeta\n5\t42\tA\tG\t0\t0.2\n"
	path := writeGWASFile(t, body)
	r := NewGWASFileReader(path, false, HG19, "p1")

	assoc, err := r.GetAssociation(containerHit("5", 42, "A", "G"))
	require.NoError(t, err)
	require.NotNil(t, assoc)
	assert.Equal(t, math.SmallestNonzeroFloat64, assoc.PValue)
}
