package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/atomsync/atomsync/internal/models"
)

const atomCols = `atom_id, front, back, type, section_id, concept_ids, knowledge_type, difficulty,
	quality_grade, quality_score, quality_issues, analyzer_version, source, source_ref,
	stability_days, fsrs_difficulty, retrievability, review_count, lapses, last_review, next_review,
	is_atomic, needs_split, needs_rewrite, needs_review, is_verbose, superseded_by, parent_atom_id,
	version, created_at, updated_at`

func scanAtom(row interface{ Scan(...interface{}) error }) (*models.Atom, error) {
	var a models.Atom
	var conceptIDs, issues pq.StringArray

	if err := row.Scan(
		&a.ID, &a.Front, &a.Back, &a.Type, &a.SectionID, &conceptIDs, &a.KnowledgeType, &a.Difficulty,
		&a.QualityGrade, &a.QualityScore, &issues, &a.AnalyzerVersion, &a.Source, &a.SourceRef,
		&a.FSRS.StabilityDays, &a.FSRS.Difficulty, &a.FSRS.Retrievability, &a.FSRS.ReviewCount, &a.FSRS.Lapses,
		&a.FSRS.LastReview, &a.FSRS.NextReview,
		&a.Flags.IsAtomic, &a.Flags.NeedsSplit, &a.Flags.NeedsRewrite, &a.Flags.NeedsReview, &a.Flags.IsVerbose,
		&a.Flags.SupersededBy, &a.ParentAtomID,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.ConceptIDs = []string(conceptIDs)
	a.QualityIssues = make([]models.QualityIssue, len(issues))
	for i, s := range issues {
		a.QualityIssues[i] = models.QualityIssue(s)
	}
	return &a, nil
}

func issuesToStrings(issues []models.QualityIssue) pq.StringArray {
	out := make(pq.StringArray, len(issues))
	for i, iss := range issues {
		out[i] = string(iss)
	}
	return out
}

// GetAtom loads one atom by ID.
func (s *Store) GetAtom(ctx context.Context, atomID string) (*models.Atom, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+atomCols+` FROM atoms WHERE atom_id = $1`, atomID)
	a, err := scanAtom(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: atom %s not found", atomID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get atom: %w", err)
	}
	return a, nil
}

// UpsertAtom inserts or updates an atom keyed by (source, source_ref),
// the idempotent identity the Transform stage relies on (§4.C). The
// caller's Version is ignored on conflict; the stored version is
// incremented instead.
func (s *Store) UpsertAtom(ctx context.Context, a *models.Atom) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO atoms (
			atom_id, front, back, type, section_id, concept_ids, knowledge_type, difficulty,
			quality_grade, quality_score, quality_issues, analyzer_version, source, source_ref,
			stability_days, fsrs_difficulty, retrievability, review_count, lapses, last_review, next_review,
			is_atomic, needs_split, needs_rewrite, needs_review, is_verbose, superseded_by, parent_atom_id,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, 1, now(), now()
		)
		ON CONFLICT (source, source_ref) DO UPDATE SET
			front = EXCLUDED.front,
			back = EXCLUDED.back,
			type = EXCLUDED.type,
			section_id = EXCLUDED.section_id,
			concept_ids = EXCLUDED.concept_ids,
			knowledge_type = EXCLUDED.knowledge_type,
			difficulty = EXCLUDED.difficulty,
			quality_grade = EXCLUDED.quality_grade,
			quality_score = EXCLUDED.quality_score,
			quality_issues = EXCLUDED.quality_issues,
			analyzer_version = EXCLUDED.analyzer_version,
			is_atomic = EXCLUDED.is_atomic,
			needs_split = EXCLUDED.needs_split,
			needs_rewrite = EXCLUDED.needs_rewrite,
			needs_review = EXCLUDED.needs_review,
			is_verbose = EXCLUDED.is_verbose,
			version = atoms.version + 1,
			updated_at = now()
	`,
		a.ID, a.Front, a.Back, a.Type, a.SectionID, pq.Array(a.ConceptIDs), a.KnowledgeType, a.Difficulty,
		a.QualityGrade, a.QualityScore, issuesToStrings(a.QualityIssues), a.AnalyzerVersion, a.Source, a.SourceRef,
		a.FSRS.StabilityDays, a.FSRS.Difficulty, a.FSRS.Retrievability, a.FSRS.ReviewCount, a.FSRS.Lapses,
		a.FSRS.LastReview, a.FSRS.NextReview,
		a.Flags.IsAtomic, a.Flags.NeedsSplit, a.Flags.NeedsRewrite, a.Flags.NeedsReview, a.Flags.IsVerbose,
		a.Flags.SupersededBy, a.ParentAtomID,
	)
	if err != nil {
		return fmt.Errorf("store: upsert atom: %w", err)
	}
	return nil
}

// UpsertAtomTx is UpsertAtom scoped to a caller-owned transaction, so a
// whole Transform batch commits or rolls back together on a constraint
// violation mid-batch (§4.D).
func (s *Store) UpsertAtomTx(ctx context.Context, tx *sql.Tx, a *models.Atom) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO atoms (
			atom_id, front, back, type, section_id, concept_ids, knowledge_type, difficulty,
			quality_grade, quality_score, quality_issues, analyzer_version, source, source_ref,
			stability_days, fsrs_difficulty, retrievability, review_count, lapses, last_review, next_review,
			is_atomic, needs_split, needs_rewrite, needs_review, is_verbose, superseded_by, parent_atom_id,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, 1, now(), now()
		)
		ON CONFLICT (source, source_ref) DO UPDATE SET
			front = EXCLUDED.front,
			back = EXCLUDED.back,
			type = EXCLUDED.type,
			section_id = EXCLUDED.section_id,
			concept_ids = EXCLUDED.concept_ids,
			knowledge_type = EXCLUDED.knowledge_type,
			difficulty = EXCLUDED.difficulty,
			quality_grade = EXCLUDED.quality_grade,
			quality_score = EXCLUDED.quality_score,
			quality_issues = EXCLUDED.quality_issues,
			analyzer_version = EXCLUDED.analyzer_version,
			is_atomic = EXCLUDED.is_atomic,
			needs_split = EXCLUDED.needs_split,
			needs_rewrite = EXCLUDED.needs_rewrite,
			needs_review = EXCLUDED.needs_review,
			is_verbose = EXCLUDED.is_verbose,
			version = atoms.version + 1,
			updated_at = now()
	`,
		a.ID, a.Front, a.Back, a.Type, a.SectionID, pq.Array(a.ConceptIDs), a.KnowledgeType, a.Difficulty,
		a.QualityGrade, a.QualityScore, issuesToStrings(a.QualityIssues), a.AnalyzerVersion, a.Source, a.SourceRef,
		a.FSRS.StabilityDays, a.FSRS.Difficulty, a.FSRS.Retrievability, a.FSRS.ReviewCount, a.FSRS.Lapses,
		a.FSRS.LastReview, a.FSRS.NextReview,
		a.Flags.IsAtomic, a.Flags.NeedsSplit, a.Flags.NeedsRewrite, a.Flags.NeedsReview, a.Flags.IsVerbose,
		a.Flags.SupersededBy, a.ParentAtomID,
	)
	if err != nil {
		return fmt.Errorf("store: upsert atom (tx): %w", err)
	}
	return nil
}

// UpdateFSRSState applies a scheduling update under an optimistic lock:
// the write only succeeds if version still matches what the caller read,
// mirroring the teacher's FOR UPDATE pattern (progress_service.go)
// without holding a long-lived row lock across the FSRS computation.
func (s *Store) UpdateFSRSState(ctx context.Context, atomID string, expectedVersion int, fsrs models.FSRSState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE atoms SET
			stability_days = $1, fsrs_difficulty = $2, retrievability = $3,
			review_count = $4, lapses = $5, last_review = $6, next_review = $7,
			version = version + 1, updated_at = now()
		WHERE atom_id = $8 AND version = $9
	`, fsrs.StabilityDays, fsrs.Difficulty, fsrs.Retrievability, fsrs.ReviewCount, fsrs.Lapses,
		fsrs.LastReview, fsrs.NextReview, atomID, expectedVersion)
	if err != nil {
		return fmt.Errorf("store: update fsrs state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: atom %s: version conflict or not found", atomID)
	}
	return nil
}

// LockAtomForUpdate reads an atom under FOR UPDATE inside tx, serializing
// concurrent FSRS updates to the same atom (§5 atom-keyed locking).
func (s *Store) LockAtomForUpdate(ctx context.Context, tx *sql.Tx, atomID string) (*models.Atom, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+atomCols+` FROM atoms WHERE atom_id = $1 FOR UPDATE`, atomID)
	a, err := scanAtom(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: atom %s not found", atomID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: lock atom: %w", err)
	}
	return a, nil
}

// BeginTx starts a transaction, used by callers that need to combine a
// locked read with a subsequent write (e.g. internal/fsrs, internal/rewrite).
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// MarkSuperseded vetoes an atom from scheduling by pointing it at its
// replacement, without deleting history (§3 invariant).
func (s *Store) MarkSuperseded(ctx context.Context, atomID, supersededBy string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE atoms SET superseded_by = $1, updated_at = now() WHERE atom_id = $2`,
		supersededBy, atomID)
	if err != nil {
		return fmt.Errorf("store: mark superseded: %w", err)
	}
	return nil
}

// ListAtomsBySection returns every scheduled atom under a section.
func (s *Store) ListAtomsBySection(ctx context.Context, sectionID string) ([]models.Atom, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+atomCols+` FROM atoms WHERE section_id = $1 AND superseded_by IS NULL`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("store: list atoms by section: %w", err)
	}
	defer rows.Close()

	var out []models.Atom
	for rows.Next() {
		a, err := scanAtom(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan atom: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListAtomsByGrade returns every scheduled atom whose grade is one of
// grades, used to find rewrite candidates (§4.G).
func (s *Store) ListAtomsByGrade(ctx context.Context, grades []models.QualityGrade) ([]models.Atom, error) {
	strs := make([]string, len(grades))
	for i, g := range grades {
		strs[i] = string(g)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+atomCols+` FROM atoms WHERE quality_grade = ANY($1) AND superseded_by IS NULL`, pq.Array(strs))
	if err != nil {
		return nil, fmt.Errorf("store: list atoms by grade: %w", err)
	}
	defer rows.Close()

	var out []models.Atom
	for rows.Next() {
		a, err := scanAtom(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan atom: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateContentTx overwrites an atom's front/back and re-derived quality
// fields inside the caller's transaction — used by the Rewriter so an
// approval's atom mutation and review-row update commit together (P9).
func (s *Store) UpdateContentTx(ctx context.Context, tx *sql.Tx, a *models.Atom) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE atoms SET
			front = $1, back = $2, quality_grade = $3, quality_score = $4,
			quality_issues = $5, analyzer_version = $6,
			needs_split = $7, needs_rewrite = $8, needs_review = $9, is_verbose = $10,
			version = version + 1, updated_at = now()
		WHERE atom_id = $11
	`, a.Front, a.Back, a.QualityGrade, a.QualityScore, issuesToStrings(a.QualityIssues), a.AnalyzerVersion,
		a.Flags.NeedsSplit, a.Flags.NeedsRewrite, a.Flags.NeedsReview, a.Flags.IsVerbose, a.ID)
	if err != nil {
		return fmt.Errorf("store: update atom content: %w", err)
	}
	return nil
}

// InsertAtomTx inserts a brand-new atom (e.g. a split child) inside the
// caller's transaction.
func (s *Store) InsertAtomTx(ctx context.Context, tx *sql.Tx, a *models.Atom) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO atoms (
			atom_id, front, back, type, section_id, concept_ids, knowledge_type, difficulty,
			quality_grade, quality_score, quality_issues, analyzer_version, source, source_ref,
			stability_days, fsrs_difficulty, retrievability, review_count, lapses, last_review, next_review,
			is_atomic, needs_split, needs_rewrite, needs_review, is_verbose, superseded_by, parent_atom_id,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, 1, now(), now()
		)
	`,
		a.ID, a.Front, a.Back, a.Type, a.SectionID, pq.Array(a.ConceptIDs), a.KnowledgeType, a.Difficulty,
		a.QualityGrade, a.QualityScore, issuesToStrings(a.QualityIssues), a.AnalyzerVersion, a.Source, a.SourceRef,
		a.FSRS.StabilityDays, a.FSRS.Difficulty, a.FSRS.Retrievability, a.FSRS.ReviewCount, a.FSRS.Lapses,
		a.FSRS.LastReview, a.FSRS.NextReview,
		a.Flags.IsAtomic, a.Flags.NeedsSplit, a.Flags.NeedsRewrite, a.Flags.NeedsReview, a.Flags.IsVerbose,
		a.Flags.SupersededBy, a.ParentAtomID,
	)
	if err != nil {
		return fmt.Errorf("store: insert atom: %w", err)
	}
	return nil
}

// MarkSupersededTx is MarkSuperseded run inside the caller's transaction.
func (s *Store) MarkSupersededTx(ctx context.Context, tx *sql.Tx, atomID, supersededBy string) error {
	_, err := tx.ExecContext(ctx, `UPDATE atoms SET superseded_by = $1, updated_at = now() WHERE atom_id = $2`,
		supersededBy, atomID)
	if err != nil {
		return fmt.Errorf("store: mark superseded: %w", err)
	}
	return nil
}

// ListAllScheduledAtoms returns every non-superseded atom, the Duplicate
// Detector's candidate pool for a full-corpus pass (§4.F).
func (s *Store) ListAllScheduledAtoms(ctx context.Context) ([]models.Atom, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+atomCols+` FROM atoms WHERE superseded_by IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: list all scheduled atoms: %w", err)
	}
	defer rows.Close()

	var out []models.Atom
	for rows.Next() {
		a, err := scanAtom(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan atom: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SupersedeBySourceRefTx marks the atom keyed by (source, source_ref)
// superseded by itself — it is gone from the external collection but
// preserved for history rather than deleted (§3 invariant, §4.D
// tombstone handling). A no-op if no such atom exists yet.
func (s *Store) SupersedeBySourceRefTx(ctx context.Context, tx *sql.Tx, source models.AtomSource, sourceRef string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE atoms SET superseded_by = atom_id, updated_at = now()
		WHERE source = $1 AND source_ref = $2 AND superseded_by IS NULL
	`, source, sourceRef)
	if err != nil {
		return fmt.Errorf("store: supersede by source ref: %w", err)
	}
	return nil
}

// ListDueAtoms returns scheduled atoms whose next_review has arrived,
// the Interleaver's due-reviews-first pool (§4.J).
func (s *Store) ListDueAtoms(ctx context.Context, sectionIDs []string) ([]models.Atom, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+atomCols+` FROM atoms
		WHERE superseded_by IS NULL AND next_review IS NOT NULL AND next_review <= now()
		AND (cardinality($1::text[]) = 0 OR section_id = ANY($1))
		ORDER BY next_review ASC
	`, pq.Array(sectionIDs))
	if err != nil {
		return nil, fmt.Errorf("store: list due atoms: %w", err)
	}
	defer rows.Close()

	var out []models.Atom
	for rows.Next() {
		a, err := scanAtom(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan atom: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
