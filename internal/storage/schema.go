package storage

import (
	"fmt"

	"github.com/ObesityHub/robokop-rags/internal/models"
)

// hitTables is the study-kind-indexed persistence table: which relational
// table each kind's hits live in. Both stores dispatch through it rather
// than comparing kind strings inline.
var hitTables = map[models.StudyKind]string{
	models.GWAS: "gwas_hits",
	models.MWAS: "mwas_hits",
}

func hitTable(kind models.StudyKind) (string, error) {
	table, ok := hitTables[kind]
	if !ok {
		return "", fmt.Errorf("no hit table for study type %q", kind)
	}
	return table, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS studies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	study_name TEXT NOT NULL,
	study_type TEXT NOT NULL,
	file_path TEXT NOT NULL,
	p_value_cutoff REAL NOT NULL,
	max_p_value REAL,
	has_tabix BOOLEAN NOT NULL DEFAULT 0,
	original_trait_id TEXT NOT NULL,
	original_trait_type TEXT NOT NULL,
	original_trait_label TEXT NOT NULL,
	normalized_trait_id TEXT,
	normalized_trait_label TEXT,
	trait_normalized BOOLEAN NOT NULL DEFAULT 0,
	searched BOOLEAN NOT NULL DEFAULT 0,
	written BOOLEAN NOT NULL DEFAULT 0,
	num_hits INTEGER,
	num_associations INTEGER
);

CREATE TABLE IF NOT EXISTS gwas_hits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	study_id INTEGER NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
	original_id TEXT NOT NULL,
	original_name TEXT NOT NULL,
	normalized BOOLEAN NOT NULL DEFAULT 0,
	normalized_id TEXT,
	normalized_name TEXT,
	written BOOLEAN NOT NULL DEFAULT 0,
	hgvs TEXT NOT NULL,
	chrom TEXT NOT NULL,
	pos INTEGER NOT NULL,
	ref TEXT NOT NULL,
	alt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mwas_hits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	study_id INTEGER NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
	original_id TEXT NOT NULL,
	original_name TEXT NOT NULL,
	normalized BOOLEAN NOT NULL DEFAULT 0,
	normalized_id TEXT,
	normalized_name TEXT,
	written BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS study_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	study_id INTEGER NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
	error_type INTEGER NOT NULL,
	error_message TEXT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS studies (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	study_name TEXT NOT NULL,
	study_type TEXT NOT NULL,
	file_path TEXT NOT NULL,
	p_value_cutoff DOUBLE PRECISION NOT NULL,
	max_p_value DOUBLE PRECISION,
	has_tabix BOOLEAN NOT NULL DEFAULT FALSE,
	original_trait_id TEXT NOT NULL,
	original_trait_type TEXT NOT NULL,
	original_trait_label TEXT NOT NULL,
	normalized_trait_id TEXT,
	normalized_trait_label TEXT,
	trait_normalized BOOLEAN NOT NULL DEFAULT FALSE,
	searched BOOLEAN NOT NULL DEFAULT FALSE,
	written BOOLEAN NOT NULL DEFAULT FALSE,
	num_hits INTEGER,
	num_associations INTEGER
);

CREATE TABLE IF NOT EXISTS gwas_hits (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL,
	study_id BIGINT NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
	original_id TEXT NOT NULL,
	original_name TEXT NOT NULL,
	normalized BOOLEAN NOT NULL DEFAULT FALSE,
	normalized_id TEXT,
	normalized_name TEXT,
	written BOOLEAN NOT NULL DEFAULT FALSE,
	hgvs TEXT NOT NULL,
	chrom TEXT NOT NULL,
	pos INTEGER NOT NULL,
	ref TEXT NOT NULL,
	alt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mwas_hits (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL,
	study_id BIGINT NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
	original_id TEXT NOT NULL,
	original_name TEXT NOT NULL,
	normalized BOOLEAN NOT NULL DEFAULT FALSE,
	normalized_id TEXT,
	normalized_name TEXT,
	written BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS study_errors (
	id BIGSERIAL PRIMARY KEY,
	study_id BIGINT NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
	error_type INTEGER NOT NULL,
	error_message TEXT NOT NULL
);
`

func selectionClause(selection HitSelection) string {
	switch selection {
	case UnprocessedHits:
		return " AND normalized = false"
	case UnwrittenHits:
		return " AND written = false"
	default:
		return ""
	}
}
