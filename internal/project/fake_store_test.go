package project

import (
	"context"

	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/ObesityHub/robokop-rags/internal/storage"
)

// fakeStore is an in-memory storage.Store used across this package's
// tests, matching the fake-collaborator style of
// internal/graph/writer_test.go's fakeBackend.
type fakeStore struct {
	projects map[int64]*models.Project
	studies  map[int64]*models.Study
	gwasHits map[int64][]*models.GWASHit
	mwasHits map[int64][]*models.MWASHit
	errs     map[int64][]*models.StudyError

	nextStudyID int64
	savedStudies []*models.Study
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:    make(map[int64]*models.Project),
		studies:     make(map[int64]*models.Study),
		gwasHits:    make(map[int64][]*models.GWASHit),
		mwasHits:    make(map[int64][]*models.MWASHit),
		errs:        make(map[int64][]*models.StudyError),
		nextStudyID: 1,
	}
}

func (f *fakeStore) SaveProject(ctx context.Context, p *models.Project) error {
	f.projects[p.ID] = p
	return nil
}
func (f *fakeStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p, nil
}
func (f *fakeStore) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	for _, p := range f.projects {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, storage.ErrNotFound
}
func (f *fakeStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	out := make([]*models.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}
func (f *fakeStore) DeleteProject(ctx context.Context, id int64) error {
	delete(f.projects, id)
	return nil
}

func (f *fakeStore) SaveStudy(ctx context.Context, s *models.Study) error {
	if s.ID == 0 {
		s.ID = f.nextStudyID
		f.nextStudyID++
	}
	f.studies[s.ID] = s
	f.savedStudies = append(f.savedStudies, s)
	return nil
}
func (f *fakeStore) GetStudy(ctx context.Context, id int64) (*models.Study, error) {
	s, ok := f.studies[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s, nil
}
func (f *fakeStore) ListStudies(ctx context.Context, projectID int64) ([]*models.Study, error) {
	var out []*models.Study
	for _, s := range f.studies {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeStore) UpdateStudyFlags(ctx context.Context, s *models.Study) error {
	f.studies[s.ID] = s
	return nil
}
func (f *fakeStore) DeleteStudy(ctx context.Context, id int64) error {
	delete(f.studies, id)
	return nil
}

func (f *fakeStore) SaveGWASHits(ctx context.Context, hits []*models.GWASHit) error {
	if len(hits) == 0 {
		return nil
	}
	studyID := hits[0].StudyID
	f.gwasHits[studyID] = append(f.gwasHits[studyID], hits...)
	return nil
}
func (f *fakeStore) SaveMWASHits(ctx context.Context, hits []*models.MWASHit) error {
	if len(hits) == 0 {
		return nil
	}
	studyID := hits[0].StudyID
	f.mwasHits[studyID] = append(f.mwasHits[studyID], hits...)
	return nil
}
func (f *fakeStore) ListGWASHits(ctx context.Context, studyID int64, selection storage.HitSelection) ([]*models.GWASHit, error) {
	return filterGWAS(f.gwasHits[studyID], selection), nil
}
func (f *fakeStore) ListMWASHits(ctx context.Context, studyID int64, selection storage.HitSelection) ([]*models.MWASHit, error) {
	return filterMWAS(f.mwasHits[studyID], selection), nil
}
func (f *fakeStore) ListGWASHitsByProject(ctx context.Context, projectID int64, selection storage.HitSelection) ([]*models.GWASHit, error) {
	var out []*models.GWASHit
	for _, hits := range f.gwasHits {
		for _, h := range hits {
			if h.ProjectID == projectID {
				out = append(out, h)
			}
		}
	}
	return filterGWAS(out, selection), nil
}
func (f *fakeStore) ListMWASHitsByProject(ctx context.Context, projectID int64, selection storage.HitSelection) ([]*models.MWASHit, error) {
	var out []*models.MWASHit
	for _, hits := range f.mwasHits {
		for _, h := range hits {
			if h.ProjectID == projectID {
				out = append(out, h)
			}
		}
	}
	return filterMWAS(out, selection), nil
}
func (f *fakeStore) UpdateGWASHitNormalization(ctx context.Context, hits []*models.GWASHit) error { return nil }
func (f *fakeStore) UpdateMWASHitNormalization(ctx context.Context, hits []*models.MWASHit) error { return nil }
func (f *fakeStore) MarkHitsWritten(ctx context.Context, studyID int64, kind models.StudyKind) error {
	switch kind {
	case models.GWAS:
		for _, h := range f.gwasHits[studyID] {
			h.Written = true
		}
	case models.MWAS:
		for _, h := range f.mwasHits[studyID] {
			h.Written = true
		}
	}
	return nil
}

func (f *fakeStore) SaveStudyError(ctx context.Context, e *models.StudyError) error {
	f.errs[e.StudyID] = append(f.errs[e.StudyID], e)
	return nil
}
func (f *fakeStore) ListStudyErrors(ctx context.Context, studyID int64) ([]*models.StudyError, error) {
	return f.errs[studyID], nil
}
func (f *fakeStore) ClearStudyErrors(ctx context.Context, studyID int64, errorType models.ErrorKind) error {
	var kept []*models.StudyError
	for _, e := range f.errs[studyID] {
		if e.ErrorType != errorType {
			kept = append(kept, e)
		}
	}
	f.errs[studyID] = kept
	return nil
}

func (f *fakeStore) Close() error { return nil }

func filterGWAS(hits []*models.GWASHit, selection storage.HitSelection) []*models.GWASHit {
	var out []*models.GWASHit
	for _, h := range hits {
		switch selection {
		case storage.UnprocessedHits:
			if h.Normalized {
				continue
			}
		case storage.UnwrittenHits:
			if h.Written {
				continue
			}
		}
		out = append(out, h)
	}
	return out
}

func filterMWAS(hits []*models.MWASHit, selection storage.HitSelection) []*models.MWASHit {
	var out []*models.MWASHit
	for _, h := range hits {
		switch selection {
		case storage.UnprocessedHits:
			if h.Normalized {
				continue
			}
		case storage.UnwrittenHits:
			if h.Written {
				continue
			}
		}
		out = append(out, h)
	}
	return out
}
