package annotator

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAnnotations(t *testing.T) {
	content := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\tROBO_VAR:1|1|100|G|G|A\tG\tA\t.\t.\tANN=A|missense_variant|MODERATE|GENE1|GENE1|transcript|t1|protein_coding|1/1|c.1G>A|p.G1A|1/100|1/100|1/100|0\n" +
		"1\t200\tROBO_VAR:1|1|200|T|T|C\tT\tC\t.\t.\tANN=C|intergenic_region|MODIFIER||GENE2-GENE3||||||||||5000\n"

	path := t.TempDir() + "/ann.vcf"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	annotations, err := extractAnnotations(path)
	require.NoError(t, err)
	require.Len(t, annotations, 3)

	byGene := make(map[string]GeneAnnotation)
	for _, a := range annotations {
		byGene[a.GeneID] = a
	}

	assert.Equal(t, "SNPEFF:missense_variant", byGene["ENSEMBL:GENE1"].Predicate)
	assert.Equal(t, "GAMMA:0000102", byGene["ENSEMBL:GENE2"].Predicate)
	require.NotNil(t, byGene["ENSEMBL:GENE2"].DistanceToFeature)
	assert.Equal(t, 5000, *byGene["ENSEMBL:GENE2"].DistanceToFeature)
}

func TestEffectPredicate(t *testing.T) {
	assert.Equal(t, "GAMMA:0000102", effectPredicate("intergenic_region"))
	assert.Equal(t, "SNPEFF:missense_variant", effectPredicate("missense_variant"))
}
