package project

import (
	"context"
	"fmt"

	"github.com/ObesityHub/robokop-rags/internal/builder"
	"github.com/ObesityHub/robokop-rags/internal/errors"
	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/ObesityHub/robokop-rags/internal/reader"
	"github.com/ObesityHub/robokop-rags/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BuildHits normalizes every unprocessed hit in the project against the
// node-identity service (project-wide — hit normalization spans every
// study, unlike search_studies and
// build_associations which are per-study), writes the resolved variant
// and metabolite nodes, and persists the normalization result back onto
// each hit row. force rebuilds every hit, not just unprocessed ones. The
// GWAS and MWAS legs are independent writes to disjoint tables/node
// types, so they run concurrently through their own Builder instances,
// mirroring the fixed heterogeneous-writes fan-out pattern used elsewhere
// for independent per-table writes.
func (m *Manager) BuildHits(ctx context.Context, projectID int64, force bool) (*models.PhaseResult, error) {
	selection := storage.UnprocessedHits
	if force {
		selection = storage.AllHits
	}

	var gwasHits []*models.GWASHit
	var mwasHits []*models.MWASHit
	var gwasWarnings, mwasWarnings []string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, err := m.Store.ListGWASHitsByProject(gctx, projectID, selection)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			return nil
		}
		b, err := m.newBuilder(gctx, projectID)
		if err != nil {
			return err
		}
		warnings, err := b.NormalizeAndWriteGWASHits(gctx, hits)
		if err != nil {
			return errors.NewGraphDBConnectionError(err)
		}
		if err := m.Store.UpdateGWASHitNormalization(gctx, hits); err != nil {
			return err
		}
		gwasHits, gwasWarnings = hits, warnings
		return nil
	})

	g.Go(func() error {
		hits, err := m.Store.ListMWASHitsByProject(gctx, projectID, selection)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			return nil
		}
		b, err := m.newBuilder(gctx, projectID)
		if err != nil {
			return err
		}
		warnings, err := b.NormalizeAndWriteMWASHits(gctx, hits)
		if err != nil {
			return errors.NewGraphDBConnectionError(err)
		}
		if err := m.Store.UpdateMWASHitNormalization(gctx, hits); err != nil {
			return err
		}
		mwasHits, mwasWarnings = hits, warnings
		return nil
	})

	if err := g.Wait(); err != nil {
		return abortResult(err)
	}

	return &models.PhaseResult{
		Success: true,
		SuccessMessage: fmt.Sprintf("normalized %d GWAS hit(s) and %d MWAS hit(s)",
			len(gwasHits), len(mwasHits)),
		Warnings: append(gwasWarnings, mwasWarnings...),
	}, nil
}

// BuildAssociations builds the trait->hit association edge for every
// significant hit of every searched study, skipping unsearched studies.
// force rewrites every hit's association, not just previously-unwritten
// ones. A single study's failure is recorded as a BUILDING error and does
// not stop the remaining studies.
func (m *Manager) BuildAssociations(ctx context.Context, projectID int64, force bool) (*models.PhaseResult, error) {
	studies, err := m.Store.ListStudies(ctx, projectID)
	if err != nil {
		return abortResult(err)
	}

	b, err := m.newBuilder(ctx, projectID)
	if err != nil {
		return abortResult(err)
	}

	var warnings []string
	totalAssociations := 0

	for _, study := range studies {
		if !study.Searched {
			warnings = append(warnings, fmt.Sprintf("study %s has not been searched; skipped", study.StudyName))
			continue
		}

		count, err := m.buildAssociationsForStudy(ctx, b, study, force)
		if err != nil {
			m.Logger.WithError(err).WithField("study", study.StudyName).Warn("build_associations: study failed")
			warnings = append(warnings, fmt.Sprintf("study %s: %v", study.StudyName, err))
			studyErr := &models.StudyError{StudyID: study.ID, ErrorType: models.ErrorBuilding, ErrorMessage: err.Error()}
			if saveErr := m.Store.SaveStudyError(ctx, studyErr); saveErr != nil {
				return abortResult(saveErr)
			}
			continue
		}
		totalAssociations += count
	}

	if err := b.Flush(ctx); err != nil {
		return abortResult(errors.NewGraphDBConnectionError(err))
	}

	return &models.PhaseResult{
		Success:        true,
		SuccessMessage: fmt.Sprintf("built %d association(s) across %d studies", totalAssociations, len(studies)),
		Warnings:       warnings,
	}, nil
}

func (m *Manager) buildAssociationsForStudy(ctx context.Context, b *builder.Builder, study *models.Study, force bool) (int, error) {
	bh, err := behaviorFor(study.StudyType)
	if err != nil {
		return 0, err
	}
	return bh.buildAssociations(m, ctx, b, study, force)
}

func hitSelectionFor(study *models.Study, force bool) storage.HitSelection {
	if study.Written && !force {
		return storage.UnwrittenHits
	}
	return storage.AllHits
}

func (m *Manager) buildGWASAssociations(ctx context.Context, b *builder.Builder, study *models.Study, force bool) (int, error) {
	hits, err := m.Store.ListGWASHits(ctx, study.ID, hitSelectionFor(study, force))
	if err != nil {
		return 0, err
	}
	if len(hits) == 0 {
		return 0, nil
	}
	hits = dedupGWASHits(hits)

	r := reader.NewGWASFileReader(m.resolvePath(study), study.HasTabix, m.ReferenceGenome, m.ReferencePatch)

	count, missing := 0, 0
	for _, hit := range hits {
		assoc, err := r.GetAssociation(hit)
		if err != nil {
			return count, err
		}
		if assoc == nil {
			missing++
			continue
		}
		if study.MaxPValue != nil && assoc.PValue > *study.MaxPValue {
			continue
		}
		edge := b.BuildAssociationEdge(study, &hit.Hit, assoc)
		if err := b.WriteEdge(ctx, edge); err != nil {
			return count, err
		}
		count++
	}
	if missing > 0 {
		m.Logger.WithFields(logrus.Fields{"study": study.StudyName, "missing_variants_count": missing}).
			Warn("build_associations: hits absent from study file")
	}

	return count, m.finishStudyAssociations(ctx, study, count, models.GWAS)
}

func (m *Manager) buildMWASAssociations(ctx context.Context, b *builder.Builder, study *models.Study, force bool) (int, error) {
	hits, err := m.Store.ListMWASHits(ctx, study.ID, hitSelectionFor(study, force))
	if err != nil {
		return 0, err
	}
	if len(hits) == 0 {
		return 0, nil
	}
	hits = dedupMWASHits(hits)

	r := reader.NewMWASFileReader(m.resolvePath(study))

	count, missing := 0, 0
	for _, hit := range hits {
		assoc, err := r.GetAssociation(hit)
		if err != nil {
			return count, err
		}
		if assoc == nil {
			missing++
			continue
		}
		if study.MaxPValue != nil && assoc.PValue > *study.MaxPValue {
			continue
		}
		edge := b.BuildAssociationEdge(study, &hit.Hit, assoc)
		if err := b.WriteEdge(ctx, edge); err != nil {
			return count, err
		}
		count++
	}
	if missing > 0 {
		m.Logger.WithFields(logrus.Fields{"study": study.StudyName, "missing_variants_count": missing}).
			Warn("build_associations: hits absent from study file")
	}

	return count, m.finishStudyAssociations(ctx, study, count, models.MWAS)
}

func (m *Manager) finishStudyAssociations(ctx context.Context, study *models.Study, newCount int, kind models.StudyKind) error {
	if study.NumAssociations == nil {
		n := newCount
		study.NumAssociations = &n
	} else {
		total := *study.NumAssociations + newCount
		study.NumAssociations = &total
	}
	study.Written = true
	if err := m.Store.UpdateStudyFlags(ctx, study); err != nil {
		return err
	}
	if err := m.Store.MarkHitsWritten(ctx, study.ID, kind); err != nil {
		return err
	}
	return m.Store.ClearStudyErrors(ctx, study.ID, models.ErrorBuilding)
}

func dedupGWASHits(hits []*models.GWASHit) []*models.GWASHit {
	seen := make(map[string]bool, len(hits))
	out := make([]*models.GWASHit, 0, len(hits))
	for _, h := range hits {
		key := h.ResolvedNodeID()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}

func dedupMWASHits(hits []*models.MWASHit) []*models.MWASHit {
	seen := make(map[string]bool, len(hits))
	out := make([]*models.MWASHit, 0, len(hits))
	for _, h := range hits {
		key := h.ResolvedNodeID()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}

// variantsNeedingAnnotationQuery finds every biolink:SequenceVariant node
// reached by this project's association edges that has no outgoing edge
// whose relation property is a SnpEff effect predicate yet. The relation
// property holds the raw SnpEff/GAMMA predicate of a gene edge (its
// predicate property holds the normalized biolink predicate); both are
// stamped by builder.toGraphEdge on every edge this pipeline writes.
const variantsNeedingAnnotationQuery = `
MATCH (t)-[assoc {project_id: $projectID}]->(v:` + "`biolink:SequenceVariant`" + `)
WHERE NOT EXISTS {
  MATCH (v)-[g]->()
  WHERE g.relation STARTS WITH 'SNPEFF:' OR g.relation = 'GAMMA:0000102'
}
RETURN DISTINCT v.id AS id, v.equivalent_identifiers AS synonyms
LIMIT $limit
`

// annotationBatchSize bounds how many variants are sent to SnpEff in one
// subprocess invocation.
const annotationBatchSize = 5000

// AnnotateHits finds every variant node in the project not yet annotated
// with gene edges, runs them through the annotator in batches, and writes
// the resulting gene nodes and variant->gene edges. A subprocess failure
// aborts the phase (AnnotationFailedError) but never touches already
// written association data.
func (m *Manager) AnnotateHits(ctx context.Context, projectID int64) (*models.PhaseResult, error) {
	b, err := m.newBuilder(ctx, projectID)
	if err != nil {
		return abortResult(err)
	}

	var warnings []string
	totalVariants, totalEdges := 0, 0

	for {
		rows, err := m.GraphBackend.CustomReadQuery(ctx, variantsNeedingAnnotationQuery,
			map[string]any{"projectID": projectID, "limit": annotationBatchSize})
		if err != nil {
			return abortResult(errors.NewGraphDBConnectionError(err))
		}
		if len(rows) == 0 {
			break
		}

		nodes := make([]*models.GraphNode, 0, len(rows))
		for _, row := range rows {
			id, _ := row["id"].(string)
			nodes = append(nodes, &models.GraphNode{ID: id, Synonyms: toStringSlice(row["synonyms"])})
		}

		annotated, err := m.Annotator.AnnotateVariants(ctx, nodes)
		if err != nil {
			return abortResult(err)
		}
		m.Logger.WithFields(logrus.Fields{
			"tool_version": annotated.ToolVersion,
			"tool_cmd":     annotated.ToolCmd,
		}).Debug("annotate_hits: snpEff run complete")

		result, err := b.BuildGeneEdges(ctx, annotated.Annotations)
		if err != nil {
			return abortResult(errors.NewGraphDBConnectionError(err))
		}
		warnings = append(warnings, result.Warnings...)

		if err := b.WriteGeneResult(ctx, result); err != nil {
			return abortResult(errors.NewGraphDBConnectionError(err))
		}

		totalVariants += len(nodes)
		totalEdges += len(result.Edges)

		if len(rows) < annotationBatchSize {
			break
		}
	}

	if totalVariants == 0 {
		return &models.PhaseResult{Success: true, SuccessMessage: "no unannotated variants found"}, nil
	}

	return &models.PhaseResult{
		Success:        true,
		SuccessMessage: fmt.Sprintf("annotated %d variant(s) with %d gene edge(s)", totalVariants, totalEdges),
		Warnings:       warnings,
	}, nil
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
