package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ObesityHub/robokop-rags/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore is the multi-writer Store used for shared/production
// deployments.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{db: db, logger: logger}
	if _, err := store.db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) SaveProject(ctx context.Context, project *models.Project) error {
	query := `INSERT INTO projects (name) VALUES ($1) ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`
	return s.db.GetContext(ctx, &project.ID, query, project.Name)
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID int64) (*models.Project, error) {
	var p models.Project
	if err := s.db.GetContext(ctx, &p, `SELECT * FROM projects WHERE id = $1`, projectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	var p models.Project
	if err := s.db.GetContext(ctx, &p, `SELECT * FROM projects WHERE name = $1`, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	if err := s.db.SelectContext(ctx, &projects, `SELECT * FROM projects ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) SaveStudy(ctx context.Context, study *models.Study) error {
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
		) RETURNING id`
	rows, err := s.db.NamedQueryContext(ctx, query, study)
	if err != nil {
		return fmt.Errorf("save study: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		return rows.Scan(&study.ID)
	}
	return nil
}

func (s *PostgresStore) GetStudy(ctx context.Context, studyID int64) (*models.Study, error) {
	var st models.Study
	if err := s.db.GetContext(ctx, &st, `SELECT * FROM studies WHERE id = $1`, studyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get study: %w", err)
	}
	return &st, nil
}

func (s *PostgresStore) ListStudies(ctx context.Context, projectID int64) ([]*models.Study, error) {
	var studies []*models.Study
	if err := s.db.SelectContext(ctx, &studies, `SELECT * FROM studies WHERE project_id = $1 ORDER BY id`, projectID); err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	return studies, nil
}

func (s *PostgresStore) DeleteStudy(ctx context.Context, studyID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM studies WHERE id = $1`, studyID)
	if err != nil {
		return fmt.Errorf("delete study: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateStudyFlags(ctx context.Context, study *models.Study) error {
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

func (s *PostgresStore) SaveGWASHits(ctx context.Context, hits []*models.GWASHit) error {
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

func (s *PostgresStore) SaveMWASHits(ctx context.Context, hits []*models.MWASHit) error {
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

func (s *PostgresStore) ListGWASHits(ctx context.Context, studyID int64, selection HitSelection) ([]*models.GWASHit, error) {
	var hits []*models.GWASHit
	query := `SELECT * FROM gwas_hits WHERE study_id = $1` + selectionClause(selection)
	if err := s.db.SelectContext(ctx, &hits, query, studyID); err != nil {
		return nil, fmt.Errorf("list gwas hits: %w", err)
	}
	return hits, nil
}

func (s *PostgresStore) ListMWASHits(ctx context.Context, studyID int64, selection HitSelection) ([]*models.MWASHit, error) {
	var hits []*models.MWASHit
	query := `SELECT * FROM mwas_hits WHERE study_id = $1` + selectionClause(selection)
	if err := s.db.SelectContext(ctx, &hits, query, studyID); err != nil {
		return nil, fmt.Errorf("list mwas hits: %w", err)
	}
	return hits, nil
}

func (s *PostgresStore) ListGWASHitsByProject(ctx context.Context, projectID int64, selection HitSelection) ([]*models.GWASHit, error) {
	var hits []*models.GWASHit
	query := `SELECT * FROM gwas_hits WHERE project_id = $1` + selectionClause(selection)
	if err := s.db.SelectContext(ctx, &hits, query, projectID); err != nil {
		return nil, fmt.Errorf("list gwas hits by project: %w", err)
	}
	return hits, nil
}

func (s *PostgresStore) ListMWASHitsByProject(ctx context.Context, projectID int64, selection HitSelection) ([]*models.MWASHit, error) {
	var hits []*models.MWASHit
	query := `SELECT * FROM mwas_hits WHERE project_id = $1` + selectionClause(selection)
	if err := s.db.SelectContext(ctx, &hits, query, projectID); err != nil {
		return nil, fmt.Errorf("list mwas hits by project: %w", err)
	}
	return hits, nil
}

func (s *PostgresStore) UpdateGWASHitNormalization(ctx context.Context, hits []*models.GWASHit) error {
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

func (s *PostgresStore) UpdateMWASHitNormalization(ctx context.Context, hits []*models.MWASHit) error {
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

func (s *PostgresStore) MarkHitsWritten(ctx context.Context, studyID int64, kind models.StudyKind) error {
	table, err := hitTable(kind)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET written = true WHERE study_id = $1`, table), studyID)
	if err != nil {
		return fmt.Errorf("mark hits written: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveStudyError(ctx context.Context, studyErr *models.StudyError) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO study_errors (study_id, error_type, error_message) VALUES (:study_id, :error_type, :error_message)`,
		studyErr)
	if err != nil {
		return fmt.Errorf("save study error: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListStudyErrors(ctx context.Context, studyID int64) ([]*models.StudyError, error) {
	var errs []*models.StudyError
	if err := s.db.SelectContext(ctx, &errs, `SELECT * FROM study_errors WHERE study_id = $1`, studyID); err != nil {
		return nil, fmt.Errorf("list study errors: %w", err)
	}
	return errs, nil
}

func (s *PostgresStore) ClearStudyErrors(ctx context.Context, studyID int64, errorType models.ErrorKind) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM study_errors WHERE study_id = $1 AND error_type = $2`, studyID, errorType)
	if err != nil {
		return fmt.Errorf("clear study errors: %w", err)
	}
	return nil
}
