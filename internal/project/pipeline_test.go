package project

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/ObesityHub/robokop-rags/internal/normalizer"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPipelineNormalizer stands in for both identity services: every curie
// in nodes resolves, everything else returns null, and predicates echo
// back as themselves.
func newPipelineNormalizer(t *testing.T, nodes map[string]string) *normalizer.Normalizer {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/get_normalized_nodes", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Curies []string `json:"curies"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		resp := make(map[string]any, len(body.Curies))
		for _, curie := range body.Curies {
			if label, ok := nodes[curie]; ok {
				resp[curie] = map[string]any{
					"id":                     map[string]string{"identifier": curie, "label": label},
					"equivalent_identifiers": []map[string]string{{"identifier": curie}},
					"type":                   []string{models.RootEntity},
				}
			} else {
				resp[curie] = nil
			}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	mux.HandleFunc("/resolve_predicate", func(w http.ResponseWriter, r *http.Request) {
		resp := make(map[string]any)
		for _, p := range r.URL.Query()["predicate"] {
			resp[p] = map[string]string{"identifier": p}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	mux.HandleFunc("/versions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode([]string{"1.4", "latest"}))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return normalizer.New(context.Background(),
		srv.URL+"/get_normalized_nodes", srv.URL+"/resolve_predicate",
		5*time.Second, 1000, 1000)
}

const pipelineMWASBody = "curie,label,pvalue,beta\n" +
	"PUBCHEM.COMPOUND:11146967,tetradecenoylcarnitine,1.5e-10,0.0738\n" +
	"HMDB:HMDB0011352,linoleoylglycerol,0.0077,0.092\n"

func seedPipeline(t *testing.T, norm *normalizer.Normalizer) (*Manager, *fakeStore, *fakeBackend, *models.Study) {
	t.Helper()

	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "lipids.csv"), []byte(pipelineMWASBody), 0o644))

	store := newFakeStore()
	backend := newFakeBackend()
	ctx := context.Background()

	require.NoError(t, store.SaveProject(ctx, &models.Project{ID: 1, Name: "obesity"}))
	study := &models.Study{
		ProjectID:          1,
		StudyName:          "lipids",
		StudyType:          models.MWAS,
		FilePath:           "lipids.csv",
		PValueCutoff:       0.1,
		OriginalTraitID:    "MONDO:0011122",
		OriginalTraitType:  models.Disease,
		OriginalTraitLabel: "obesity disorder",
	}
	require.NoError(t, store.SaveStudy(ctx, study))

	m := New(store, backend, norm, nil, logrus.New(), dataDir, "HG19", "p1", 100)
	return m, store, backend, study
}

func TestPipelineFullBuild(t *testing.T) {
	norm := newPipelineNormalizer(t, map[string]string{
		"MONDO:0011122":              "obesity disorder",
		"PUBCHEM.COMPOUND:11146967": "tetradecenoylcarnitine",
	})
	m, _, backend, study := seedPipeline(t, norm)
	ctx := context.Background()

	// process_traits
	result, err := m.ProcessTraits(ctx, 1, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.True(t, study.TraitNormalized)
	require.NotNil(t, study.NormalizedTraitID)
	assert.Equal(t, "MONDO:0011122", *study.NormalizedTraitID)
	require.Len(t, backend.mergedNodes, 1)

	// a second run is a no-op without force
	result, err = m.ProcessTraits(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "no studies required trait normalization", result.SuccessMessage)

	// search_studies
	result, err = m.SearchStudies(ctx, 1)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Empty(t, result.Warnings)
	assert.True(t, study.Searched)
	require.NotNil(t, study.NumHits)
	assert.Equal(t, 2, *study.NumHits)

	// build_hits: one curie resolves, one falls back to its original id
	result, err = m.BuildHits(ctx, 1, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "HMDB:HMDB0011352")

	// build_associations
	result, err = m.BuildAssociations(ctx, 1, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, backend.createdEdges, 2)

	edge := backend.createdEdges[0]
	assert.Equal(t, "MONDO:0011122", edge.FromID)
	assert.Equal(t, int64(1), edge.Properties["project_id"])
	assert.Equal(t, "obesity", edge.Properties["project_name"])
	assert.Equal(t, "lipids", edge.Properties["namespace"])
	assert.Equal(t, models.AssociationRelation, edge.Properties["relation"])
	assert.NotNil(t, edge.Properties["p_value"])
	assert.NotNil(t, edge.Properties["strength"])
	assert.NotNil(t, edge.Properties["ctime"])

	assert.True(t, study.Written)
	require.NotNil(t, study.NumAssociations)
	assert.Equal(t, 2, *study.NumAssociations)
}

func TestPipelineIncrementalRebuildAddsNothing(t *testing.T) {
	norm := newPipelineNormalizer(t, map[string]string{"MONDO:0011122": "obesity disorder"})
	m, _, backend, study := seedPipeline(t, norm)
	ctx := context.Background()

	_, err := m.ProcessTraits(ctx, 1, false)
	require.NoError(t, err)
	_, err = m.SearchStudies(ctx, 1)
	require.NoError(t, err)
	_, err = m.BuildHits(ctx, 1, false)
	require.NoError(t, err)
	_, err = m.BuildAssociations(ctx, 1, false)
	require.NoError(t, err)
	firstEdgeCount := len(backend.createdEdges)
	require.Equal(t, 2, firstEdgeCount)

	// every hit is written now: a non-forced rebuild emits nothing new
	_, err = m.BuildAssociations(ctx, 1, false)
	require.NoError(t, err)
	assert.Len(t, backend.createdEdges, firstEdgeCount)
	assert.Equal(t, 2, *study.NumAssociations)

	// force re-emits each hit's edge exactly once more
	_, err = m.BuildAssociations(ctx, 1, true)
	require.NoError(t, err)
	assert.Len(t, backend.createdEdges, 2*firstEdgeCount)
	assert.Equal(t, 4, *study.NumAssociations)
}

func TestPipelineMaxPValueFiltersAssociations(t *testing.T) {
	norm := newPipelineNormalizer(t, map[string]string{"MONDO:0011122": "obesity disorder"})
	m, _, backend, study := seedPipeline(t, norm)
	ctx := context.Background()

	maxP := 1e-5
	study.MaxPValue = &maxP

	_, err := m.ProcessTraits(ctx, 1, false)
	require.NoError(t, err)
	_, err = m.SearchStudies(ctx, 1)
	require.NoError(t, err)
	_, err = m.BuildHits(ctx, 1, false)
	require.NoError(t, err)
	_, err = m.BuildAssociations(ctx, 1, false)
	require.NoError(t, err)

	// only the 1.5e-10 row clears max_p_value; 0.0077 is filtered
	assert.Len(t, backend.createdEdges, 1)
	assert.Equal(t, 1, *study.NumAssociations)
}

func TestSearchStudiesRecordsErrorAndContinues(t *testing.T) {
	norm := newPipelineNormalizer(t, nil)
	m, store, _, study := seedPipeline(t, norm)
	ctx := context.Background()

	broken := &models.Study{
		ProjectID:          1,
		StudyName:          "missing_file",
		StudyType:          models.MWAS,
		FilePath:           "does_not_exist.csv",
		PValueCutoff:       0.05,
		OriginalTraitID:    "MONDO:1",
		OriginalTraitType:  models.Disease,
		OriginalTraitLabel: "x",
	}
	require.NoError(t, store.SaveStudy(ctx, broken))

	result, err := m.SearchStudies(ctx, 1)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Warnings, 1)

	assert.False(t, broken.Searched)
	errs, err := store.ListStudyErrors(ctx, broken.ID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, models.ErrorBuilding, errs[0].ErrorType)

	// the healthy study still searched
	assert.True(t, study.Searched)

	// an unsearched study is skipped by build_associations
	buildResult, err := m.BuildAssociations(ctx, 1, false)
	require.NoError(t, err)
	found := false
	for _, w := range buildResult.Warnings {
		if w == "study missing_file has not been searched; skipped" {
			found = true
		}
	}
	assert.True(t, found)
}
