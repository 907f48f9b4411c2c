package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "rags.db"), logrus.New())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedStudy(t *testing.T, store *SQLiteStore, projectName string) (*models.Project, *models.Study) {
	t.Helper()
	ctx := context.Background()

	project := &models.Project{Name: projectName}
	require.NoError(t, store.SaveProject(ctx, project))
	require.NotZero(t, project.ID)

	study := &models.Study{
		ProjectID:          project.ID,
		StudyName:          projectName + "_study",
		StudyType:          models.GWAS,
		FilePath:           "study.tsv",
		PValueCutoff:       5e-8,
		OriginalTraitID:    "MONDO:0004979",
		OriginalTraitType:  models.Disease,
		OriginalTraitLabel: "asthma",
	}
	require.NoError(t, store.SaveStudy(ctx, study))
	require.NotZero(t, study.ID)
	return project, study
}

func gwasHit(projectID, studyID int64, hgvs string) *models.GWASHit {
	h := &models.GWASHit{HGVS: hgvs, Chrom: "19", Pos: 45411941, Ref: "T", Alt: "C"}
	h.ProjectID = projectID
	h.StudyID = studyID
	h.OriginalID = hgvs
	h.OriginalName = hgvs
	return h
}

func TestSaveProjectIsIdempotentByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.Project{Name: "obesity"}
	require.NoError(t, store.SaveProject(ctx, first))

	second := &models.Project{Name: "obesity"}
	require.NoError(t, store.SaveProject(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	byName, err := store.GetProjectByName(ctx, "obesity")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byName.ID)
}

func TestGetProjectNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetProject(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProjectCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project, study := seedStudy(t, store, "obesity")

	require.NoError(t, store.SaveGWASHits(ctx, []*models.GWASHit{
		gwasHit(project.ID, study.ID, "NC_000019.9:g.45411941T>C"),
	}))
	mwasStudy := &models.Study{
		ProjectID: project.ID, StudyName: "lipids", StudyType: models.MWAS,
		FilePath: "lipids.csv", PValueCutoff: 0.05,
		OriginalTraitID: "CHEBI:1", OriginalTraitType: models.ChemicalSubstance, OriginalTraitLabel: "LDL",
	}
	require.NoError(t, store.SaveStudy(ctx, mwasStudy))
	mh := &models.MWASHit{}
	mh.ProjectID, mh.StudyID = project.ID, mwasStudy.ID
	mh.OriginalID, mh.OriginalName = "PUBCHEM.COMPOUND:1", "metabolite"
	require.NoError(t, store.SaveMWASHits(ctx, []*models.MWASHit{mh}))
	require.NoError(t, store.SaveStudyError(ctx, &models.StudyError{
		StudyID: study.ID, ErrorType: models.ErrorSearching, ErrorMessage: "boom",
	}))

	require.NoError(t, store.DeleteProject(ctx, project.ID))

	_, err := store.GetProject(ctx, project.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	studies, err := store.ListStudies(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, studies)

	gwasHits, err := store.ListGWASHitsByProject(ctx, project.ID, AllHits)
	require.NoError(t, err)
	assert.Empty(t, gwasHits)

	mwasHits, err := store.ListMWASHitsByProject(ctx, project.ID, AllHits)
	require.NoError(t, err)
	assert.Empty(t, mwasHits)

	errs, err := store.ListStudyErrors(ctx, study.ID)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestUpdateStudyFlagsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, study := seedStudy(t, store, "obesity")

	normalizedID, normalizedLabel := "MONDO:0004979", "asthma"
	numHits, numAssociations := 12, 10
	study.NormalizedTraitID = &normalizedID
	study.NormalizedTraitLabel = &normalizedLabel
	study.TraitNormalized = true
	study.Searched = true
	study.Written = true
	study.NumHits = &numHits
	study.NumAssociations = &numAssociations
	require.NoError(t, store.UpdateStudyFlags(ctx, study))

	loaded, err := store.GetStudy(ctx, study.ID)
	require.NoError(t, err)
	assert.True(t, loaded.TraitNormalized)
	assert.True(t, loaded.Searched)
	assert.True(t, loaded.Written)
	require.NotNil(t, loaded.NormalizedTraitID)
	assert.Equal(t, "MONDO:0004979", *loaded.NormalizedTraitID)
	require.NotNil(t, loaded.NumAssociations)
	assert.Equal(t, 10, *loaded.NumAssociations)
}

func TestHitSelections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project, study := seedStudy(t, store, "obesity")

	hits := []*models.GWASHit{
		gwasHit(project.ID, study.ID, "NC_000019.9:g.45411941T>C"),
		gwasHit(project.ID, study.ID, "NC_000016.9:g.82335281_82335283del"),
	}
	require.NoError(t, store.SaveGWASHits(ctx, hits))

	all, err := store.ListGWASHits(ctx, study.ID, AllHits)
	require.NoError(t, err)
	require.Len(t, all, 2)

	normalizedID := "CAID:CA1"
	all[0].Normalized = true
	all[0].NormalizedID = &normalizedID
	require.NoError(t, store.UpdateGWASHitNormalization(ctx, all))

	unprocessed, err := store.ListGWASHits(ctx, study.ID, UnprocessedHits)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, all[1].ID, unprocessed[0].ID)

	require.NoError(t, store.MarkHitsWritten(ctx, study.ID, models.GWAS))
	unwritten, err := store.ListGWASHits(ctx, study.ID, UnwrittenHits)
	require.NoError(t, err)
	assert.Empty(t, unwritten)
}

func TestStudyErrorsClearByType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, study := seedStudy(t, store, "obesity")

	require.NoError(t, store.SaveStudyError(ctx, &models.StudyError{
		StudyID: study.ID, ErrorType: models.ErrorSearching, ErrorMessage: "file missing",
	}))
	require.NoError(t, store.SaveStudyError(ctx, &models.StudyError{
		StudyID: study.ID, ErrorType: models.ErrorBuilding, ErrorMessage: "graph down",
	}))

	require.NoError(t, store.ClearStudyErrors(ctx, study.ID, models.ErrorSearching))

	remaining, err := store.ListStudyErrors(ctx, study.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, models.ErrorBuilding, remaining[0].ErrorType)
}

func TestDeleteStudyCascadesToHits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project, study := seedStudy(t, store, "obesity")
	require.NoError(t, store.SaveGWASHits(ctx, []*models.GWASHit{
		gwasHit(project.ID, study.ID, "NC_000019.9:g.45411941T>C"),
	}))

	require.NoError(t, store.DeleteStudy(ctx, study.ID))

	hits, err := store.ListGWASHits(ctx, study.ID, AllHits)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
