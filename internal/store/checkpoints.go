package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atomsync/atomsync/internal/models"
)

// GetCheckpoint loads the incremental-sync checkpoint for a collection,
// returning a fresh zero-value checkpoint on first sync (§3).
func (s *Store) GetCheckpoint(ctx context.Context, collection string) (*models.SyncCheckpoint, error) {
	var cp models.SyncCheckpoint
	cp.Collection = collection
	err := s.db.QueryRowContext(ctx, `
		SELECT last_cursor, last_edited_watermark, consecutive_failures, last_success_at
		FROM sync_checkpoints WHERE collection = $1
	`, collection).Scan(&cp.LastCursor, &cp.LastEditedWatermark, &cp.ConsecutiveFailures, &cp.LastSuccessAt)
	if err == sql.ErrNoRows {
		return &cp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get checkpoint: %w", err)
	}
	return &cp, nil
}

// SaveCheckpoint upserts the checkpoint after a sync attempt.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *models.SyncCheckpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_checkpoints (collection, last_cursor, last_edited_watermark, consecutive_failures, last_success_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection) DO UPDATE SET
			last_cursor = EXCLUDED.last_cursor,
			last_edited_watermark = EXCLUDED.last_edited_watermark,
			consecutive_failures = EXCLUDED.consecutive_failures,
			last_success_at = EXCLUDED.last_success_at
	`, cp.Collection, cp.LastCursor, cp.LastEditedWatermark, cp.ConsecutiveFailures, cp.LastSuccessAt)
	if err != nil {
		return fmt.Errorf("store: save checkpoint: %w", err)
	}
	return nil
}

// IncrementCheckpointFailures bumps the collection's consecutive-failure
// counter in sync_checkpoints and returns the new value. The circuit
// breaker keeps its own counts, and no metric is set from this counter.
func (s *Store) IncrementCheckpointFailures(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sync_checkpoints (collection, consecutive_failures)
		VALUES ($1, 1)
		ON CONFLICT (collection) DO UPDATE SET consecutive_failures = sync_checkpoints.consecutive_failures + 1
		RETURNING consecutive_failures
	`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: increment checkpoint failures: %w", err)
	}
	return n, nil
}
