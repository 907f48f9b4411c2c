package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore is the local/single-machine Store, used for development and
// small projects.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{db: db, logger: logger}
	if _, err := store.db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SaveProject(ctx context.Context, project *models.Project) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, project.Name)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		if id, err := res.LastInsertId(); err == nil {
			project.ID = id
			return nil
		}
	}
	// conflict path: the project already exists, fetch its id
	return s.db.GetContext(ctx, &project.ID, `SELECT id FROM projects WHERE name = ?`, project.Name)
}

func (s *SQLiteStore) GetProject(ctx context.Context, projectID int64) (*models.Project, error) {
	var p models.Project
	if err := s.db.GetContext(ctx, &p, `SELECT * FROM projects WHERE id = ?`, projectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	var p models.Project
	if err := s.db.GetContext(ctx, &p, `SELECT * FROM projects WHERE name = ?`, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	if err := s.db.SelectContext(ctx, &projects, `SELECT * FROM projects ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveStudy(ctx context.Context, study *models.Study) error {
	query := `
		INSERT INTO studies (
			project_id, study_name, study_type, file_path, p_value_cutoff, max_p_value, has_tabix,
			original_trait_id, original_trait_type, original_trait_label,
			normalized_trait_id, normalized_trait_label,
			trait_normalized, searched, written, num_hits, num_associations
		) VALUES (
			:project_id, :study_name, :study_type, :file_path, :p_value_cutoff, :max_p_value, :has_tabix,
			:original_trait_id, :original_trait_type, :original_trait_label,
			:normalized_trait_id, :normalized_trait_label,
			:trait_normalized, :searched, :written, :num_hits, :num_associations
		)`
	res, err := s.db.NamedExecContext(ctx, query, study)
	if err != nil {
		return fmt.Errorf("save study: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		study.ID = id
	}
	return nil
}

func (s *SQLiteStore) GetStudy(ctx context.Context, studyID int64) (*models.Study, error) {
	var st models.Study
	if err := s.db.GetContext(ctx, &st, `SELECT * FROM studies WHERE id = ?`, studyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get study: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) ListStudies(ctx context.Context, projectID int64) ([]*models.Study, error) {
	var studies []*models.Study
	if err := s.db.SelectContext(ctx, &studies, `SELECT * FROM studies WHERE project_id = ? ORDER BY id`, projectID); err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	return studies, nil
}

func (s *SQLiteStore) DeleteStudy(ctx context.Context, studyID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM studies WHERE id = ?`, studyID)
	if err != nil {
		return fmt.Errorf("delete study: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateStudyFlags(ctx context.Context, study *models.Study) error {
	query := `
		UPDATE studies SET
			normalized_trait_id = :normalized_trait_id,
			normalized_trait_label = :normalized_trait_label,
			trait_normalized = :trait_normalized,
			searched = :searched,
			written = :written,
			num_hits = :num_hits,
			num_associations = :num_associations
		WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, query, study)
	if err != nil {
		return fmt.Errorf("update study flags: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveGWASHits(ctx context.Context, hits []*models.GWASHit) error {
	if len(hits) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO gwas_hits (project_id, study_id, original_id, original_name, normalized,
			normalized_id, normalized_name, written, hgvs, chrom, pos, ref, alt)
		VALUES (:project_id, :study_id, :original_id, :original_name, :normalized,
			:normalized_id, :normalized_name, :written, :hgvs, :chrom, :pos, :ref, :alt)`
	for _, hit := range hits {
		if _, err := tx.NamedExecContext(ctx, query, hit); err != nil {
			return fmt.Errorf("save gwas hit: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveMWASHits(ctx context.Context, hits []*models.MWASHit) error {
	if len(hits) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO mwas_hits (project_id, study_id, original_id, original_name, normalized,
			normalized_id, normalized_name, written)
		VALUES (:project_id, :study_id, :original_id, :original_name, :normalized,
			:normalized_id, :normalized_name, :written)`
	for _, hit := range hits {
		if _, err := tx.NamedExecContext(ctx, query, hit); err != nil {
			return fmt.Errorf("save mwas hit: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListGWASHits(ctx context.Context, studyID int64, selection HitSelection) ([]*models.GWASHit, error) {
	var hits []*models.GWASHit
	query := `SELECT * FROM gwas_hits WHERE study_id = ?` + selectionClause(selection)
	if err := s.db.SelectContext(ctx, &hits, query, studyID); err != nil {
		return nil, fmt.Errorf("list gwas hits: %w", err)
	}
	return hits, nil
}

func (s *SQLiteStore) ListMWASHits(ctx context.Context, studyID int64, selection HitSelection) ([]*models.MWASHit, error) {
	var hits []*models.MWASHit
	query := `SELECT * FROM mwas_hits WHERE study_id = ?` + selectionClause(selection)
	if err := s.db.SelectContext(ctx, &hits, query, studyID); err != nil {
		return nil, fmt.Errorf("list mwas hits: %w", err)
	}
	return hits, nil
}

func (s *SQLiteStore) ListGWASHitsByProject(ctx context.Context, projectID int64, selection HitSelection) ([]*models.GWASHit, error) {
	var hits []*models.GWASHit
	query := `SELECT * FROM gwas_hits WHERE project_id = ?` + selectionClause(selection)
	if err := s.db.SelectContext(ctx, &hits, query, projectID); err != nil {
		return nil, fmt.Errorf("list gwas hits by project: %w", err)
	}
	return hits, nil
}

func (s *SQLiteStore) ListMWASHitsByProject(ctx context.Context, projectID int64, selection HitSelection) ([]*models.MWASHit, error) {
	var hits []*models.MWASHit
	query := `SELECT * FROM mwas_hits WHERE project_id = ?` + selectionClause(selection)
	if err := s.db.SelectContext(ctx, &hits, query, projectID); err != nil {
		return nil, fmt.Errorf("list mwas hits by project: %w", err)
	}
	return hits, nil
}

func (s *SQLiteStore) UpdateGWASHitNormalization(ctx context.Context, hits []*models.GWASHit) error {
	if len(hits) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE gwas_hits SET normalized = :normalized, normalized_id = :normalized_id,
		normalized_name = :normalized_name WHERE id = :id`
	for _, hit := range hits {
		if _, err := tx.NamedExecContext(ctx, query, hit); err != nil {
			return fmt.Errorf("update gwas hit normalization: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpdateMWASHitNormalization(ctx context.Context, hits []*models.MWASHit) error {
	if len(hits) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE mwas_hits SET normalized = :normalized, normalized_id = :normalized_id,
		normalized_name = :normalized_name WHERE id = :id`
	for _, hit := range hits {
		if _, err := tx.NamedExecContext(ctx, query, hit); err != nil {
			return fmt.Errorf("update mwas hit normalization: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) MarkHitsWritten(ctx context.Context, studyID int64, kind models.StudyKind) error {
	table, err := hitTable(kind)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET written = 1 WHERE study_id = ?`, table), studyID)
	if err != nil {
		return fmt.Errorf("mark hits written: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveStudyError(ctx context.Context, studyErr *models.StudyError) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO study_errors (study_id, error_type, error_message) VALUES (:study_id, :error_type, :error_message)`,
		studyErr)
	if err != nil {
		return fmt.Errorf("save study error: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListStudyErrors(ctx context.Context, studyID int64) ([]*models.StudyError, error) {
	var errs []*models.StudyError
	if err := s.db.SelectContext(ctx, &errs, `SELECT * FROM study_errors WHERE study_id = ?`, studyID); err != nil {
		return nil, fmt.Errorf("list study errors: %w", err)
	}
	return errs, nil
}

func (s *SQLiteStore) ClearStudyErrors(ctx context.Context, studyID int64, errorType models.ErrorKind) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM study_errors WHERE study_id = ? AND error_type = ?`, studyID, errorType)
	if err != nil {
		return fmt.Errorf("clear study errors: %w", err)
	}
	return nil
}
