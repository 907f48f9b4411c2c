package storage

import (
	"context"
	"errors"

	"github.com/ObesityHub/robokop-rags/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// HitSelection picks which hits a phase should operate over, mirroring
// the historical project-manager's unprocessed/unwritten rebuild choices.
type HitSelection int

const (
	AllHits HitSelection = iota
	UnprocessedHits       // normalized == false
	UnwrittenHits         // written == false
)

// Store is the relational persistence surface for projects, studies,
// hits, and per-study errors. PostgresStore and SQLiteStore both
// implement it.
type Store interface {
	SaveProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, projectID int64) (*models.Project, error)
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	// DeleteProject cascades to its studies, hits, and errors in one
	// transaction.
	DeleteProject(ctx context.Context, projectID int64) error

	SaveStudy(ctx context.Context, study *models.Study) error
	GetStudy(ctx context.Context, studyID int64) (*models.Study, error)
	ListStudies(ctx context.Context, projectID int64) ([]*models.Study, error)
	UpdateStudyFlags(ctx context.Context, study *models.Study) error
	// DeleteStudy cascades to that study's hits and errors.
	DeleteStudy(ctx context.Context, studyID int64) error

	SaveGWASHits(ctx context.Context, hits []*models.GWASHit) error
	SaveMWASHits(ctx context.Context, hits []*models.MWASHit) error
	// ListGWASHits/ListMWASHits select hits for one study; the
	// ...ByProject variants select across every study in a project, for
	// build_hits's project-wide normalization pass.
	ListGWASHits(ctx context.Context, studyID int64, selection HitSelection) ([]*models.GWASHit, error)
	ListMWASHits(ctx context.Context, studyID int64, selection HitSelection) ([]*models.MWASHit, error)
	ListGWASHitsByProject(ctx context.Context, projectID int64, selection HitSelection) ([]*models.GWASHit, error)
	ListMWASHitsByProject(ctx context.Context, projectID int64, selection HitSelection) ([]*models.MWASHit, error)
	// UpdateGWASHitNormalization/UpdateMWASHitNormalization persist the
	// normalized/normalized_id/normalized_name fields build_hits sets in
	// memory after a normalizer batch call.
	UpdateGWASHitNormalization(ctx context.Context, hits []*models.GWASHit) error
	UpdateMWASHitNormalization(ctx context.Context, hits []*models.MWASHit) error
	MarkHitsWritten(ctx context.Context, studyID int64, kind models.StudyKind) error

	SaveStudyError(ctx context.Context, studyErr *models.StudyError) error
	ListStudyErrors(ctx context.Context, studyID int64) ([]*models.StudyError, error)
	// ClearStudyErrors removes every open error of errorType for a study,
	// per the per-phase error-clearing policy.
	ClearStudyErrors(ctx context.Context, studyID int64, errorType models.ErrorKind) error

	Close() error
}
