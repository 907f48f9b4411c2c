// Package project implements the build-pipeline state machine: the
// five idempotent phases (process_traits, search_studies, build_hits,
// build_associations, annotate_hits) a project moves through on its way
// to a populated graph, plus the supplemented project-validation and
// CSV-study-ingestion operations. Grounded on the historical
// RagsProjectManager (original_source/rags_app/rags_src/rags_project.py).
package project

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ObesityHub/robokop-rags/internal/annotator"
	"github.com/ObesityHub/robokop-rags/internal/builder"
	"github.com/ObesityHub/robokop-rags/internal/errors"
	"github.com/ObesityHub/robokop-rags/internal/graph"
	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/ObesityHub/robokop-rags/internal/normalizer"
	"github.com/ObesityHub/robokop-rags/internal/reader"
	"github.com/ObesityHub/robokop-rags/internal/storage"
	"github.com/sirupsen/logrus"
)

// Manager drives one project through its build phases. It is stateless
// across calls beyond its collaborators: every phase reloads whatever
// studies/hits it needs from Store, so phases can be invoked in any
// order, any number of times, from any process.
type Manager struct {
	Store        storage.Store
	GraphBackend graph.Backend
	Normalizer   *normalizer.Normalizer
	Annotator    *annotator.Annotator
	Logger       *logrus.Logger

	// DataDir is prefixed onto every study's FilePath before opening it.
	DataDir string

	ReferenceGenome reader.ReferenceGenome
	ReferencePatch  string
	FlushThreshold  int
}

func New(store storage.Store, backend graph.Backend, norm *normalizer.Normalizer, ann *annotator.Annotator, logger *logrus.Logger, dataDir string, genome reader.ReferenceGenome, patch string, flushThreshold int) *Manager {
	return &Manager{
		Store:           store,
		GraphBackend:    backend,
		Normalizer:      norm,
		Annotator:       ann,
		Logger:          logger,
		DataDir:         dataDir,
		ReferenceGenome: genome,
		ReferencePatch:  patch,
		FlushThreshold:  flushThreshold,
	}
}

func (m *Manager) resolvePath(study *models.Study) string {
	return filepath.Join(m.DataDir, study.FilePath)
}

// newBuilder constructs a fresh graph.Writer and builder.Builder for one
// phase invocation. Builders are cheap (one predicate-normalization call)
// and are never reused across calls, since a long-running process may
// service many projects.
func (m *Manager) newBuilder(ctx context.Context, projectID int64) (*builder.Builder, error) {
	project, err := m.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %d: %w", projectID, err)
	}
	writer := graph.NewWriter(m.GraphBackend, m.FlushThreshold)
	b, err := builder.New(ctx, project.ID, project.Name, m.Normalizer, writer)
	if err != nil {
		return nil, errors.NewGraphDBConnectionError(err)
	}
	return b, nil
}

func abortResult(err error) (*models.PhaseResult, error) {
	return &models.PhaseResult{Success: false, Errors: []string{err.Error()}}, err
}

// ProcessTraits normalizes every study's original trait against the
// node-identity service and writes the resolved trait node, skipping
// studies already normalized unless force is set. A missing normalization
// result falls back to a synthesized node rather than failing the study.
func (m *Manager) ProcessTraits(ctx context.Context, projectID int64, force bool) (*models.PhaseResult, error) {
	studies, err := m.Store.ListStudies(ctx, projectID)
	if err != nil {
		return abortResult(err)
	}

	var target []*models.Study
	for _, s := range studies {
		if force || !s.TraitNormalized {
			target = append(target, s)
		}
	}
	if len(target) == 0 {
		return &models.PhaseResult{Success: true, SuccessMessage: "no studies required trait normalization"}, nil
	}

	b, err := m.newBuilder(ctx, projectID)
	if err != nil {
		return abortResult(err)
	}

	warnings, err := b.NormalizeAndWriteTraits(ctx, target)
	if err != nil {
		return abortResult(errors.NewGraphDBConnectionError(err))
	}

	for _, s := range target {
		if err := m.Store.UpdateStudyFlags(ctx, s); err != nil {
			return abortResult(err)
		}
	}

	return &models.PhaseResult{
		Success:        true,
		SuccessMessage: fmt.Sprintf("normalized traits for %d of %d studies", len(target), len(studies)),
		Warnings:       warnings,
	}, nil
}

// SearchStudies scans every not-yet-searched study's file for hits at or
// below its p-value cutoff, persisting them and flagging the study
// searched. A study whose file cannot be opened or parsed is recorded as
// a BUILDING error and left unsearched; the phase continues with the
// remaining studies rather than aborting.
func (m *Manager) SearchStudies(ctx context.Context, projectID int64) (*models.PhaseResult, error) {
	studies, err := m.Store.ListStudies(ctx, projectID)
	if err != nil {
		return abortResult(err)
	}

	var warnings []string
	searched := 0
	for _, study := range studies {
		if study.Searched {
			continue
		}
		if err := m.searchOneStudy(ctx, study); err != nil {
			m.Logger.WithError(err).WithField("study", study.StudyName).Warn("search_studies: study failed")
			warnings = append(warnings, fmt.Sprintf("study %s: %v", study.StudyName, err))
			continue
		}
		searched++
	}

	return &models.PhaseResult{
		Success:        true,
		SuccessMessage: fmt.Sprintf("searched %d of %d studies", searched, len(studies)),
		Warnings:       warnings,
	}, nil
}

func (m *Manager) searchOneStudy(ctx context.Context, study *models.Study) error {
	fullPath := m.resolvePath(study)

	hitCount, saveErr := m.findAndSaveHits(ctx, study, fullPath)
	if saveErr != nil {
		study.Searched = false
		if err := m.Store.UpdateStudyFlags(ctx, study); err != nil {
			return err
		}
		// Reader failures here are recorded under the BUILDING type, not
		// SEARCHING; a study left in this state has searched=false and
		// build_associations skips it.
		studyErr := &models.StudyError{StudyID: study.ID, ErrorType: models.ErrorBuilding, ErrorMessage: saveErr.Error()}
		if err := m.Store.SaveStudyError(ctx, studyErr); err != nil {
			return err
		}
		return saveErr
	}

	study.Searched = true
	n := hitCount
	study.NumHits = &n
	if err := m.Store.UpdateStudyFlags(ctx, study); err != nil {
		return err
	}
	return m.Store.ClearStudyErrors(ctx, study.ID, models.ErrorSearching)
}

func (m *Manager) findAndSaveHits(ctx context.Context, study *models.Study, fullPath string) (int, error) {
	bh, err := behaviorFor(study.StudyType)
	if err != nil {
		return 0, err
	}
	return bh.searchAndSaveHits(m, ctx, study, fullPath)
}

func (m *Manager) searchAndSaveGWASHits(ctx context.Context, study *models.Study, fullPath string) (int, error) {
	r := reader.NewGWASFileReader(fullPath, study.HasTabix, m.ReferenceGenome, m.ReferencePatch)
	result, container, err := r.FindSignificantHits(study.PValueCutoff)
	if err != nil {
		return 0, err
	}
	if !result.Success {
		return 0, fmt.Errorf("%s", result.ErrorMessage)
	}
	hits := container.Hits()
	for _, h := range hits {
		h.ProjectID, h.StudyID = study.ProjectID, study.ID
	}
	if err := m.Store.SaveGWASHits(ctx, hits); err != nil {
		return 0, err
	}
	return result.HitCount, nil
}

func (m *Manager) searchAndSaveMWASHits(ctx context.Context, study *models.Study, fullPath string) (int, error) {
	r := reader.NewMWASFileReader(fullPath)
	result, container, err := r.FindSignificantHits(study.PValueCutoff)
	if err != nil {
		return 0, err
	}
	if !result.Success {
		return 0, fmt.Errorf("%s", result.ErrorMessage)
	}
	hits := container.Hits()
	for _, h := range hits {
		h.ProjectID, h.StudyID = study.ProjectID, study.ID
	}
	if err := m.Store.SaveMWASHits(ctx, hits); err != nil {
		return 0, err
	}
	return result.HitCount, nil
}
