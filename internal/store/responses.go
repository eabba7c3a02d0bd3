package store

import (
	"context"
	"fmt"

	"github.com/atomsync/atomsync/internal/models"
)

// RecordResponse appends one learner interaction. Append-only: the
// response log is never updated or deleted (§3 invariant).
func (s *Store) RecordResponse(ctx context.Context, r *models.Response) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO responses (atom_id, learner_id, is_correct, response_time_ms, hint_used, chosen_option, session_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, r.AtomID, r.LearnerID, r.IsCorrect, r.ResponseTimeMs, r.HintUsed, r.ChosenOption, r.SessionID, r.Timestamp).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: record response: %w", err)
	}
	return id, nil
}

// ListResponsesForAtom returns a learner's response history for one
// atom, most recent first — the Mastery Aggregator and Diagnosis Engine
// both read from this (§4.H, §4.K).
func (s *Store) ListResponsesForAtom(ctx context.Context, learnerID, atomID string, limit int) ([]models.Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, atom_id, learner_id, is_correct, response_time_ms, hint_used, chosen_option, session_id, recorded_at
		FROM responses WHERE learner_id = $1 AND atom_id = $2
		ORDER BY recorded_at DESC LIMIT $3
	`, learnerID, atomID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list responses for atom: %w", err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

// ListResponsesForSection returns a learner's responses across every
// atom in a section, feeding SectionMastery rebuilds (§4.H).
func (s *Store) ListResponsesForSection(ctx context.Context, learnerID, sectionID string) ([]models.Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.atom_id, r.learner_id, r.is_correct, r.response_time_ms, r.hint_used, r.chosen_option, r.session_id, r.recorded_at
		FROM responses r
		JOIN atoms a ON a.atom_id = r.atom_id
		WHERE r.learner_id = $1 AND a.section_id = $2
		ORDER BY r.recorded_at ASC
	`, learnerID, sectionID)
	if err != nil {
		return nil, fmt.Errorf("store: list responses for section: %w", err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

func scanResponses(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]models.Response, error) {
	var out []models.Response
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.ID, &r.AtomID, &r.LearnerID, &r.IsCorrect, &r.ResponseTimeMs, &r.HintUsed,
			&r.ChosenOption, &r.SessionID, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
