package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mwasFileBody = "curie,label,pvalue,beta\n" +
	"PUBCHEM.COMPOUND:11146967,tetradecenoylcarnitine,1.5e-10,0.0738210759226987\n" +
	"HMDB:HMDB0011352,linoleoylglycerol,0.0077,0.092\n"

func writeMWASFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestMWASFindSignificantHits(t *testing.T) {
	path := writeMWASFile(t, mwasFileBody)

	r := NewMWASFileReader(path)
	result, container, err := r.FindSignificantHits(0.005)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, container.HitCount())

	r = NewMWASFileReader(path)
	result, container, err = r.FindSignificantHits(0.1)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 2, container.HitCount())

	hits := container.Hits()
	assert.Equal(t, "PUBCHEM.COMPOUND:11146967", hits[0].OriginalID)
	assert.Equal(t, "tetradecenoylcarnitine", hits[0].OriginalName)
}

func TestMWASBadHeaders(t *testing.T) {
	path := writeMWASFile(t, "id,name,score\nX:1,foo,0.01\n")
	r := NewMWASFileReader(path)

	result, _, err := r.FindSignificantHits(0.05)
	require.False(t, result.Success)

	var badHeaders *BadHeadersError
	require.ErrorAs(t, err, &badHeaders)
}

func TestMWASGetAssociation(t *testing.T) {
	path := writeMWASFile(t, mwasFileBody)
	r := NewMWASFileReader(path)

	hit := &models.MWASHit{}
	hit.OriginalID = "PUBCHEM.COMPOUND:11146967"

	assoc, err := r.GetAssociation(hit)
	require.NoError(t, err)
	require.NotNil(t, assoc)
	assert.InDelta(t, 1.5e-10, assoc.PValue, 1e-22)
	assert.InDelta(t, 0.0738210759226987, assoc.Beta, 1e-15)
}

func TestMWASGetAssociationMissingCurieReturnsNil(t *testing.T) {
	path := writeMWASFile(t, mwasFileBody)
	r := NewMWASFileReader(path)

	hit := &models.MWASHit{}
	hit.OriginalID = "CHEBI:404"

	assoc, err := r.GetAssociation(hit)
	require.NoError(t, err)
	assert.Nil(t, assoc)
}

func TestMWASGetAssociationClampsZeroPValue(t *testing.T) {
	path := writeMWASFile(t, "curie,label,pval,beta\nCHEBI:1,thing,0,0.5\n")
	r := NewMWASFileReader(path)

	hit := &models.MWASHit{}
	hit.OriginalID = "CHEBI:1"

	assoc, err := r.GetAssociation(hit)
	require.NoError(t, err)
	require.NotNil(t, assoc)
	assert.Greater(t, assoc.PValue, 0.0)
}
