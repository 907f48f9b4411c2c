package annotator

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// extractAnnotations reads SnpEff's annotated VCF and flattens every ANN=
// field into gene-predicate edges, one per (effect, gene) pair, deduping
// repeats of the same pair within one variant record. Effects split on
// "&", genes split on "-"; intergenic_region remaps to the fixed
// GAMMA:0000102 identifier, every other effect becomes SNPEFF:<effect>.
func extractAnnotations(path string) ([]GeneAnnotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var annotations []GeneAnnotation
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 8 {
			continue
		}
		variantNodeID := fields[2]
		info := fields[7]

		annIdx := strings.Index(info, "ANN=")
		if annIdx == -1 {
			continue
		}
		annField := info[annIdx+len("ANN="):]
		if semi := strings.Index(annField, ";"); semi != -1 {
			annField = annField[:semi]
		}

		for _, entry := range strings.Split(annField, ",") {
			parts := strings.Split(entry, "|")
			if len(parts) < 15 {
				continue
			}
			effects := strings.Split(parts[1], "&")
			genes := strings.Split(parts[4], "-")
			distanceStr := parts[14]

			var distance *int
			if d, err := strconv.Atoi(distanceStr); err == nil {
				distance = &d
			}

			for _, effect := range effects {
				predicate := effectPredicate(effect)
				for _, gene := range genes {
					if gene == "" {
						continue
					}
					geneID := fmt.Sprintf("ENSEMBL:%s", gene)
					key := variantNodeID + "\x00" + predicate + "\x00" + geneID
					if seen[key] {
						continue
					}
					seen[key] = true
					annotations = append(annotations, GeneAnnotation{
						VariantNodeID:     variantNodeID,
						Predicate:         predicate,
						GeneID:            geneID,
						DistanceToFeature: distance,
					})
				}
			}
		}
	}
	return annotations, scanner.Err()
}

func effectPredicate(effect string) string {
	if effect == "intergenic_region" {
		return "GAMMA:0000102"
	}
	return "SNPEFF:" + effect
}
