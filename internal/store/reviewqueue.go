package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/atomsync/atomsync/internal/models"
)

// EnqueueReview inserts a pending rewrite suggestion (§4.G).
func (s *Store) EnqueueReview(ctx context.Context, item *models.ReviewQueueItem) error {
	splits, err := json.Marshal(item.SplitSuggestions)
	if err != nil {
		return fmt.Errorf("store: marshal split suggestions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_queue (
			id, source_atom_id, rewrite_type, suggested_front, suggested_back,
			split_suggestions, original_issues, estimated_new_grade, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, item.ID, item.SourceAtomID, item.RewriteType, item.SuggestedFront, item.SuggestedBack,
		splits, issuesToStrings(item.OriginalIssues), item.EstimatedNewGrade, item.Status, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: enqueue review: %w", err)
	}
	return nil
}

func scanReviewItem(row interface{ Scan(...interface{}) error }) (*models.ReviewQueueItem, error) {
	var item models.ReviewQueueItem
	var splits []byte
	var issues pq.StringArray

	if err := row.Scan(
		&item.ID, &item.SourceAtomID, &item.RewriteType, &item.SuggestedFront, &item.SuggestedBack,
		&splits, &issues, &item.EstimatedNewGrade, &item.Status, &item.ReviewerNote,
		&item.CreatedAt, &item.ReviewedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(splits, &item.SplitSuggestions); err != nil {
		return nil, fmt.Errorf("unmarshal split suggestions: %w", err)
	}
	item.OriginalIssues = make([]models.QualityIssue, len(issues))
	for i, s := range issues {
		item.OriginalIssues[i] = models.QualityIssue(s)
	}
	return &item, nil
}

const reviewCols = `id, source_atom_id, rewrite_type, suggested_front, suggested_back,
	split_suggestions, original_issues, estimated_new_grade, status, reviewer_note, created_at, reviewed_at`

// GetReviewItem loads one review queue item by ID.
func (s *Store) GetReviewItem(ctx context.Context, id string) (*models.ReviewQueueItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reviewCols+` FROM review_queue WHERE id = $1`, id)
	item, err := scanReviewItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: review item %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get review item: %w", err)
	}
	return item, nil
}

// ListPendingReviews returns every item awaiting human disposition.
func (s *Store) ListPendingReviews(ctx context.Context) ([]models.ReviewQueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reviewCols+` FROM review_queue WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list pending reviews: %w", err)
	}
	defer rows.Close()

	var out []models.ReviewQueueItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan review item: %w", err)
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// SetReviewDisposition records a human or auto-approve decision,
// expected to run inside the same transaction as the atom mutation it
// triggers so the pair commits or rolls back together (P9).
func (s *Store) SetReviewDisposition(ctx context.Context, tx *sql.Tx, id string, status models.ReviewStatus, note string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE review_queue SET status = $1, reviewer_note = $2, reviewed_at = now() WHERE id = $3
	`, status, note, id)
	if err != nil {
		return fmt.Errorf("store: set review disposition: %w", err)
	}
	return nil
}
