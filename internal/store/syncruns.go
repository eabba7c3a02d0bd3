package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/atomsync/atomsync/internal/models"
)

// CreateSyncRun inserts a new running SyncRun audit record.
func (s *Store) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, mode, collections, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.Mode, pq.Array(run.Collections), run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("store: create sync run: %w", err)
	}
	return nil
}

// FinishSyncRun records the terminal status and tallies of a sync run.
func (s *Store) FinishSyncRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs SET
			status = $1, created = $2, updated = $3, tombstoned = $4,
			error_message = $5, completed_at = $6
		WHERE id = $7
	`, run.Status, run.Created, run.Updated, run.Tombstoned, run.ErrorMessage, run.CompletedAt, run.ID)
	if err != nil {
		return fmt.Errorf("store: finish sync run: %w", err)
	}
	return nil
}

// GetSyncRun loads one sync run by ID, used by `atomsync sync status`.
func (s *Store) GetSyncRun(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	var collections pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mode, collections, status, created, updated, tombstoned, error_message, started_at, completed_at
		FROM sync_runs WHERE id = $1
	`, id).Scan(&run.ID, &run.Mode, &collections, &run.Status, &run.Created, &run.Updated, &run.Tombstoned,
		&run.ErrorMessage, &run.StartedAt, &run.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: sync run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get sync run: %w", err)
	}
	run.Collections = []string(collections)
	return &run, nil
}

// ListRecentSyncRuns returns the most recent sync runs, newest first.
func (s *Store) ListRecentSyncRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, collections, status, created, updated, tombstoned, error_message, started_at, completed_at
		FROM sync_runs ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list recent sync runs: %w", err)
	}
	defer rows.Close()

	var out []models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		var collections pq.StringArray
		if err := rows.Scan(&run.ID, &run.Mode, &collections, &run.Status, &run.Created, &run.Updated,
			&run.Tombstoned, &run.ErrorMessage, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("store: scan sync run: %w", err)
		}
		run.Collections = []string(collections)
		out = append(out, run)
	}
	return out, rows.Err()
}
