package reader

import (
	"testing"

	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containerHit(chrom string, pos int, ref, alt string) *models.GWASHit {
	h := &models.GWASHit{Chrom: chrom, Pos: pos, Ref: ref, Alt: alt}
	h.OriginalID = ConvertVCFToHGVS(HG19, "p1", chrom, pos, ref, alt)
	return h
}

func TestSequenceVariantContainerToleratesMultiAllelicPositions(t *testing.T) {
	c := NewSequenceVariantContainer()
	c.Add(containerHit("1", 100, "G", "A"))
	c.Add(containerHit("1", 100, "G", "T"))

	assert.Equal(t, 2, c.HitCount())

	a := c.Get("1", 100, "G", "A")
	require.NotNil(t, a)
	assert.Equal(t, "A", a.Alt)

	tt := c.Get("1", 100, "G", "T")
	require.NotNil(t, tt)
	assert.Equal(t, "T", tt.Alt)

	assert.Nil(t, c.Get("1", 100, "G", "C"))
	assert.Nil(t, c.Get("2", 100, "G", "A"))
}

func TestSequenceVariantContainerIterationIsInsertionOrdered(t *testing.T) {
	c := NewSequenceVariantContainer()
	first := containerHit("1", 100, "G", "A")
	second := containerHit("2", 200, "T", "C")
	c.Add(first)
	c.Add(second)

	hits := c.Hits()
	require.Len(t, hits, 2)
	assert.Same(t, first, hits[0])
	assert.Same(t, second, hits[1])
	assert.Len(t, c.Iterate(), 2)
}

func TestMetaboliteContainerDeduplicatesByOriginalID(t *testing.T) {
	c := NewMetaboliteContainer()

	h1 := &models.MWASHit{}
	h1.OriginalID = "PUBCHEM.COMPOUND:11146967"
	h1.OriginalName = "first label"
	c.Add(h1)

	h2 := &models.MWASHit{}
	h2.OriginalID = "PUBCHEM.COMPOUND:11146967"
	h2.OriginalName = "second label"
	c.Add(h2)

	h3 := &models.MWASHit{}
	h3.OriginalID = "HMDB:HMDB0011352"
	c.Add(h3)

	assert.Equal(t, 2, c.HitCount())

	hits := c.Hits()
	require.Len(t, hits, 2)
	// the later row for the same curie wins, the insertion order holds
	assert.Equal(t, "second label", hits[0].OriginalName)
	assert.Equal(t, "HMDB:HMDB0011352", hits[1].OriginalID)
}
