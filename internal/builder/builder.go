// Package builder glues the file readers, the normalizer, and the graph
// writer together: it turns study traits, hits, and associations into
// graph.Node/graph.Edge values and pushes them through a graph.Writer.
// Grounded on the historical RAGsGraphBuilder
// (original_source/rags_app/rags_src/rags_graph_builder.py) and its
// process_gwas_variants/process_mwas_metabolites/process_*_associations
// methods.
package builder

import (
	"context"
	"fmt"

	"github.com/ObesityHub/robokop-rags/internal/annotator"
	"github.com/ObesityHub/robokop-rags/internal/graph"
	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/ObesityHub/robokop-rags/internal/normalizer"
)

// ProvidedBy tags every edge this builder writes, matching the historical
// writer's fixed attribution string.
const ProvidedBy = "RAGS_Builder"

// Builder holds the per-build-run state shared across a project's phases:
// the pinned association relation and its lazily-resolved normalized
// predicate (fetched once via the predicate-normalization service), plus
// the normalizer and graph writer every phase writes through.
type Builder struct {
	ProjectID   int64
	ProjectName string

	Normalizer *normalizer.Normalizer
	Writer     *graph.Writer

	AssociationRelation            string
	NormalizedAssociationPredicate string
}

// New constructs a Builder and resolves the normalized association
// predicate for RO:0002610 up front.
func New(ctx context.Context, projectID int64, projectName string, norm *normalizer.Normalizer, writer *graph.Writer) (*Builder, error) {
	b := &Builder{
		ProjectID:           projectID,
		ProjectName:         projectName,
		Normalizer:          norm,
		Writer:              writer,
		AssociationRelation: models.AssociationRelation,
	}

	predicates, err := norm.NormalizeEdges(ctx, []string{b.AssociationRelation})
	if err != nil {
		return nil, fmt.Errorf("resolve association predicate: %w", err)
	}
	b.NormalizedAssociationPredicate = predicates[b.AssociationRelation]
	return b, nil
}

// ensureRoot returns allTypes with models.RootEntity present exactly once.
func ensureRoot(allTypes []string) []string {
	out := make([]string, 0, len(allTypes)+1)
	hasRoot := false
	for _, t := range allTypes {
		if t == models.RootEntity {
			hasRoot = true
		}
		out = append(out, t)
	}
	if !hasRoot {
		out = append([]string{models.RootEntity}, out...)
	}
	return out
}

// extraLabels returns every type in allTypes other than the root, which is
// always applied as graph.Node.Label separately.
func extraLabels(allTypes []string) []string {
	out := make([]string, 0, len(allTypes))
	for _, t := range allTypes {
		if t != models.RootEntity {
			out = append(out, t)
		}
	}
	return out
}

func nodeProperties(name string, synonyms, allTypes []string) map[string]any {
	return map[string]any{
		"name":                  name,
		"equivalent_identifiers": synonyms,
		"category":              allTypes,
	}
}

func (b *Builder) toGraphNode(n *models.GraphNode) graph.Node {
	allTypes := ensureRoot(n.AllTypes)
	props := nodeProperties(n.Name, n.Synonyms, allTypes)
	for k, v := range n.Properties {
		props[k] = v
	}
	return graph.Node{
		ID:          n.ID,
		Label:       models.RootEntity,
		ExtraLabels: extraLabels(allTypes),
		Properties:  props,
	}
}

func (b *Builder) toGraphEdge(e *models.GraphEdge) graph.Edge {
	props := map[string]any{
		"predicate":          e.Predicate,
		"original_object_id": e.OriginalObjectID,
		"relation":           e.Relation,
		"provided_by":        e.ProvidedBy,
		"namespace":          e.Namespace,
		"project_id":         e.ProjectID,
		"project_name":       e.ProjectName,
	}
	for k, v := range e.Properties {
		props[k] = v
	}
	return graph.Edge{
		Predicate:  e.Predicate,
		FromID:     e.SubjectID,
		ToID:       e.ObjectID,
		Properties: props,
	}
}

// WriteNode pushes a single node through the underlying writer.
func (b *Builder) WriteNode(ctx context.Context, node *models.GraphNode) error {
	return b.Writer.WriteNode(ctx, b.toGraphNode(node))
}

// WriteEdge pushes a single edge through the underlying writer.
func (b *Builder) WriteEdge(ctx context.Context, edge *models.GraphEdge) error {
	return b.Writer.WriteEdge(ctx, b.toGraphEdge(edge))
}

// Flush drains the writer's queues.
func (b *Builder) Flush(ctx context.Context) error {
	return b.Writer.Flush(ctx)
}

// traitAllTypes is the fixed type set every synthesized (non-normalized)
// trait fallback node carries.
func traitAllTypes(originalTraitType string) []string {
	return []string{models.RootEntity, originalTraitType}
}

// NormalizeAndWriteTraits batches a normalizer call over the distinct
// original_trait_id values of studies, writes a node for each one (falling
// back to a synthesized node keyed by the original id when normalization
// found nothing), and updates each study in place with its resolved
// normalized id/label. It does not persist the studies; the caller (the
// project manager) owns the relational commit.
func (b *Builder) NormalizeAndWriteTraits(ctx context.Context, studies []*models.Study) ([]string, error) {
	if len(studies) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(studies))
	seen := make(map[string]bool)
	for _, s := range studies {
		if !seen[s.OriginalTraitID] {
			seen[s.OriginalTraitID] = true
			ids = append(ids, s.OriginalTraitID)
		}
	}

	normalized, err := b.Normalizer.NormalizeNodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	var warnings []string
	writtenNodeIDs := make(map[string]bool)
	for _, study := range studies {
		n := normalized[study.OriginalTraitID]

		var nodeID, nodeName string
		var synonyms, allTypes []string
		if n != nil {
			nodeID, nodeName, synonyms, allTypes = n.ID, n.Name, n.Synonyms, n.AllTypes
		} else {
			nodeID = study.OriginalTraitID
			nodeName = study.OriginalTraitLabel
			allTypes = traitAllTypes(study.OriginalTraitType)
			warnings = append(warnings, fmt.Sprintf(
				"no normalization result for trait %s (study %s); using original id",
				study.OriginalTraitID, study.StudyName))
		}

		if !writtenNodeIDs[nodeID] {
			writtenNodeIDs[nodeID] = true
			if err := b.WriteNode(ctx, &models.GraphNode{ID: nodeID, Name: nodeName, Synonyms: synonyms, AllTypes: allTypes}); err != nil {
				return warnings, err
			}
		}

		study.NormalizedTraitID = &nodeID
		study.NormalizedTraitLabel = &nodeName
		study.TraitNormalized = true
	}

	return warnings, b.Flush(ctx)
}

// sequenceVariantAllTypes is the fixed type set every GWAS hit's variant
// node carries.
var sequenceVariantAllTypes = []string{models.RootEntity, models.SequenceVariant}

// metaboliteAllTypes is the fixed type set every MWAS hit's metabolite
// node carries.
var metaboliteAllTypes = []string{models.RootEntity, models.ChemicalSubstance}

// NormalizeAndWriteGWASHits batches normalization over the distinct
// original variant ids, writes one node per distinct resolved id
// (synonym-free fallback to the original id on a missing normalization
// response), and sets Normalized/NormalizedID/NormalizedName on every hit
// in place.
func (b *Builder) NormalizeAndWriteGWASHits(ctx context.Context, hits []*models.GWASHit) ([]string, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	seen := make(map[string]bool)
	for _, h := range hits {
		if !seen[h.OriginalID] {
			seen[h.OriginalID] = true
			ids = append(ids, h.OriginalID)
		}
	}

	normalized, err := b.Normalizer.NormalizeNodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	var warnings []string
	writtenNodeIDs := make(map[string]bool)
	for _, hit := range hits {
		n := normalized[hit.OriginalID]

		var nodeID, nodeName string
		var synonyms []string
		if n != nil {
			nodeID, nodeName, synonyms = n.ID, n.Name, n.Synonyms
		} else {
			nodeID = hit.OriginalID
			nodeName = hit.OriginalName
			warnings = append(warnings, fmt.Sprintf("no normalization result for variant %s", hit.OriginalID))
		}

		if !writtenNodeIDs[nodeID] {
			writtenNodeIDs[nodeID] = true
			if err := b.WriteNode(ctx, &models.GraphNode{ID: nodeID, Name: nodeName, Synonyms: synonyms, AllTypes: sequenceVariantAllTypes}); err != nil {
				return warnings, err
			}
		}

		hit.Normalized = true
		hit.NormalizedID = &nodeID
		hit.NormalizedName = &nodeName
	}

	return warnings, b.Flush(ctx)
}

// NormalizeAndWriteMWASHits is the MWAS equivalent of
// NormalizeAndWriteGWASHits, using the fixed ChemicalSubstance type set.
func (b *Builder) NormalizeAndWriteMWASHits(ctx context.Context, hits []*models.MWASHit) ([]string, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	seen := make(map[string]bool)
	for _, h := range hits {
		if !seen[h.OriginalID] {
			seen[h.OriginalID] = true
			ids = append(ids, h.OriginalID)
		}
	}

	normalized, err := b.Normalizer.NormalizeNodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	var warnings []string
	writtenNodeIDs := make(map[string]bool)
	for _, hit := range hits {
		n := normalized[hit.OriginalID]

		var nodeID, nodeName string
		var synonyms []string
		if n != nil {
			nodeID, nodeName, synonyms = n.ID, n.Name, n.Synonyms
		} else {
			nodeID = hit.OriginalID
			nodeName = hit.OriginalName
			warnings = append(warnings, fmt.Sprintf("no normalization result for metabolite %s", hit.OriginalID))
		}

		if !writtenNodeIDs[nodeID] {
			writtenNodeIDs[nodeID] = true
			if err := b.WriteNode(ctx, &models.GraphNode{ID: nodeID, Name: nodeName, Synonyms: synonyms, AllTypes: metaboliteAllTypes}); err != nil {
				return warnings, err
			}
		}

		hit.Normalized = true
		hit.NormalizedID = &nodeID
		hit.NormalizedName = &nodeName
	}

	return warnings, b.Flush(ctx)
}

// BuildAssociationEdge constructs the (trait -> hit) association edge for
// one hit's retrieved (p_value, beta) pair.
func (b *Builder) BuildAssociationEdge(study *models.Study, hit *models.Hit, association *models.Association) *models.GraphEdge {
	normalizedTraitID := study.OriginalTraitID
	if study.NormalizedTraitID != nil && *study.NormalizedTraitID != "" {
		normalizedTraitID = *study.NormalizedTraitID
	}

	return &models.GraphEdge{
		SubjectID:        normalizedTraitID,
		ObjectID:         hit.ResolvedNodeID(),
		OriginalObjectID: hit.OriginalID,
		Predicate:        b.NormalizedAssociationPredicate,
		Relation:         b.AssociationRelation,
		ProvidedBy:       ProvidedBy,
		Namespace:        study.StudyName,
		ProjectID:        b.ProjectID,
		ProjectName:      b.ProjectName,
		Properties: map[string]any{
			"p_value":  association.PValue,
			"strength": association.Beta,
			"ctime":    models.Ctime(),
		},
	}
}

// VariantGeneResult is the output of BuildGeneEdges: the gene nodes that
// successfully normalized, and the dedup'd variant->gene edges built from
// them.
type VariantGeneResult struct {
	Nodes    []*models.GraphNode
	Edges    []*models.GraphEdge
	Warnings []string
}

// BuildGeneEdges normalizes the gene ids and raw SnpEff-style predicates
// discovered by the annotator across a batch of variants, and builds the
// variant->gene edges for all of them (each annotation carries its own
// VariantNodeID, since one AnnotateVariants call spans many variants).
// Genes the node-identity service has no answer for are dropped (no
// id-based fallback exists for genes, unlike traits and hits), matching
// the historical add_genes_to_variants. Deduplication key is
// (subject_id, normalized_gene_id, normalized_predicate), scoped to this
// one call.
func (b *Builder) BuildGeneEdges(ctx context.Context, annotations []annotator.GeneAnnotation) (*VariantGeneResult, error) {
	if len(annotations) == 0 {
		return &VariantGeneResult{}, nil
	}

	geneIDs := make([]string, 0, len(annotations))
	rawPredicates := make([]string, 0, len(annotations))
	seenGene, seenPredicate := make(map[string]bool), make(map[string]bool)
	for _, a := range annotations {
		if !seenGene[a.GeneID] {
			seenGene[a.GeneID] = true
			geneIDs = append(geneIDs, a.GeneID)
		}
		if !seenPredicate[a.Predicate] {
			seenPredicate[a.Predicate] = true
			rawPredicates = append(rawPredicates, a.Predicate)
		}
	}

	geneNormalizations, err := b.Normalizer.NormalizeNodes(ctx, geneIDs)
	if err != nil {
		return nil, err
	}
	predicateNormalizations, err := b.Normalizer.NormalizeEdges(ctx, rawPredicates)
	if err != nil {
		return nil, err
	}

	result := &VariantGeneResult{}
	writtenNodes := make(map[string]bool)
	dedup := make(map[string]bool)

	for _, a := range annotations {
		geneNode := geneNormalizations[a.GeneID]
		if geneNode == nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("gene %s had no normalization result; dropped", a.GeneID))
			continue
		}
		normalizedPredicate := predicateNormalizations[a.Predicate]

		if !writtenNodes[geneNode.ID] {
			writtenNodes[geneNode.ID] = true
			result.Nodes = append(result.Nodes, &models.GraphNode{
				ID: geneNode.ID, Name: geneNode.Name, Synonyms: geneNode.Synonyms, AllTypes: geneNode.AllTypes,
			})
		}

		key := a.VariantNodeID + "\x00" + geneNode.ID + "\x00" + normalizedPredicate
		if dedup[key] {
			continue
		}
		dedup[key] = true

		properties := map[string]any{}
		if a.DistanceToFeature != nil {
			properties["distance_to_feature"] = *a.DistanceToFeature
		}

		result.Edges = append(result.Edges, &models.GraphEdge{
			SubjectID:        a.VariantNodeID,
			ObjectID:         geneNode.ID,
			OriginalObjectID: a.GeneID,
			Predicate:        normalizedPredicate,
			Relation:         a.Predicate,
			ProvidedBy:       ProvidedBy + "_SnpEff",
			ProjectID:        b.ProjectID,
			ProjectName:      b.ProjectName,
			Properties:       properties,
		})
	}

	return result, nil
}

// WriteGeneResult pushes a BuildGeneEdges result's nodes and edges through
// the writer and flushes.
func (b *Builder) WriteGeneResult(ctx context.Context, result *VariantGeneResult) error {
	for _, n := range result.Nodes {
		if err := b.WriteNode(ctx, n); err != nil {
			return err
		}
	}
	for _, e := range result.Edges {
		if err := b.WriteEdge(ctx, e); err != nil {
			return err
		}
	}
	return b.Flush(ctx)
}
