// Package store is the Postgres-backed persistence layer for atoms,
// staging rows, sync checkpoints, the review queue, duplicate groups,
// and the response log. It follows the teacher's database/sql +
// lib/pq style (internal/services/progress_service.go): raw SQL,
// explicit transactions, FOR UPDATE row locks for contested writers.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Store wraps a Postgres connection pool.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sections (
	section_id TEXT PRIMARY KEY,
	parent_section_id TEXT REFERENCES sections(section_id),
	level INTEGER NOT NULL,
	display_order INTEGER NOT NULL DEFAULT 0,
	title TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS concepts (
	concept_id TEXT PRIMARY KEY,
	title TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS atoms (
	atom_id TEXT PRIMARY KEY,
	front TEXT NOT NULL,
	back TEXT NOT NULL,
	type TEXT NOT NULL,
	section_id TEXT REFERENCES sections(section_id),
	concept_ids TEXT[] NOT NULL DEFAULT '{}',
	knowledge_type TEXT NOT NULL DEFAULT 'declarative',
	difficulty DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality_grade TEXT NOT NULL DEFAULT '',
	quality_score INTEGER NOT NULL DEFAULT 0,
	quality_issues TEXT[] NOT NULL DEFAULT '{}',
	analyzer_version TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	source_ref TEXT NOT NULL,
	stability_days DOUBLE PRECISION NOT NULL DEFAULT 0,
	fsrs_difficulty DOUBLE PRECISION NOT NULL DEFAULT 0,
	retrievability DOUBLE PRECISION NOT NULL DEFAULT 1,
	review_count INTEGER NOT NULL DEFAULT 0,
	lapses INTEGER NOT NULL DEFAULT 0,
	last_review TIMESTAMPTZ,
	next_review TIMESTAMPTZ,
	is_atomic BOOLEAN NOT NULL DEFAULT true,
	needs_split BOOLEAN NOT NULL DEFAULT false,
	needs_rewrite BOOLEAN NOT NULL DEFAULT false,
	needs_review BOOLEAN NOT NULL DEFAULT false,
	is_verbose BOOLEAN NOT NULL DEFAULT false,
	superseded_by TEXT,
	parent_atom_id TEXT REFERENCES atoms(atom_id),
	version INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source, source_ref)
);

CREATE INDEX IF NOT EXISTS idx_atoms_section ON atoms(section_id);
CREATE INDEX IF NOT EXISTS idx_atoms_next_review ON atoms(next_review) WHERE superseded_by IS NULL;
CREATE INDEX IF NOT EXISTS idx_atoms_grade ON atoms(quality_grade);

CREATE TABLE IF NOT EXISTS staging_items (
	collection TEXT NOT NULL,
	external_id TEXT NOT NULL,
	payload JSONB NOT NULL,
	last_edited_time TIMESTAMPTZ,
	tombstoned BOOLEAN NOT NULL DEFAULT false,
	synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, external_id)
);

CREATE TABLE IF NOT EXISTS sync_checkpoints (
	collection TEXT PRIMARY KEY,
	last_cursor TEXT NOT NULL DEFAULT '',
	last_edited_watermark TIMESTAMPTZ,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	last_success_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	collections TEXT[] NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	created INTEGER NOT NULL DEFAULT 0,
	updated INTEGER NOT NULL DEFAULT 0,
	tombstoned INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS review_queue (
	id TEXT PRIMARY KEY,
	source_atom_id TEXT NOT NULL REFERENCES atoms(atom_id),
	rewrite_type TEXT NOT NULL,
	suggested_front TEXT NOT NULL DEFAULT '',
	suggested_back TEXT NOT NULL DEFAULT '',
	split_suggestions JSONB NOT NULL DEFAULT '[]',
	original_issues TEXT[] NOT NULL DEFAULT '{}',
	estimated_new_grade TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	reviewer_note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	reviewed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(status);

CREATE TABLE IF NOT EXISTS duplicate_groups (
	id TEXT PRIMARY KEY,
	atom_ids TEXT[] NOT NULL,
	method TEXT NOT NULL,
	similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'open',
	canonical_atom_id TEXT REFERENCES atoms(atom_id)
);

CREATE INDEX IF NOT EXISTS idx_duplicate_groups_status ON duplicate_groups(status);

CREATE TABLE IF NOT EXISTS responses (
	id BIGSERIAL PRIMARY KEY,
	atom_id TEXT NOT NULL REFERENCES atoms(atom_id),
	learner_id TEXT NOT NULL,
	is_correct BOOLEAN NOT NULL,
	response_time_ms INTEGER NOT NULL DEFAULT 0,
	hint_used BOOLEAN NOT NULL DEFAULT false,
	chosen_option TEXT,
	session_id TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_responses_learner_atom ON responses(learner_id, atom_id);

CREATE TABLE IF NOT EXISTS stage_log (
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at TIMESTAMPTZ,
	detail TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, stage)
);

CREATE TABLE IF NOT EXISTS learner_personas (
	learner_id TEXT PRIMARY KEY,
	strengths JSONB NOT NULL DEFAULT '{}',
	effectiveness JSONB NOT NULL DEFAULT '{}',
	processing_speed TEXT NOT NULL DEFAULT '',
	chronotype TEXT NOT NULL DEFAULT '',
	calibration_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	interference_prone_topics TEXT[] NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Open connects to Postgres and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for callers that need raw access.
func (s *Store) DB() *sql.DB {
	return s.db
}
