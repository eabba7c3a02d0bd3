package store

import (
	"context"
	"fmt"

	"github.com/atomsync/atomsync/internal/models"
)

// RecordStageStart marks a pipeline stage running, enabling `--resume`
// to skip stages already marked done for the same run (§4, §6.3).
func (s *Store) RecordStageStart(ctx context.Context, runID, stage string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stage_log (run_id, stage, status, started_at)
		VALUES ($1, $2, 'running', now())
		ON CONFLICT (run_id, stage) DO UPDATE SET status = 'running', started_at = now(), ended_at = NULL
	`, runID, stage)
	if err != nil {
		return fmt.Errorf("store: record stage start: %w", err)
	}
	return nil
}

// RecordStageEnd finalizes a stage's outcome.
func (s *Store) RecordStageEnd(ctx context.Context, runID, stage string, status models.StageStatus, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE stage_log SET status = $1, detail = $2, ended_at = now() WHERE run_id = $3 AND stage = $4
	`, status, detail, runID, stage)
	if err != nil {
		return fmt.Errorf("store: record stage end: %w", err)
	}
	return nil
}

// GetStageLog returns every stage entry recorded for a run, in the
// order they were started.
func (s *Store) GetStageLog(ctx context.Context, runID string) ([]models.StageLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, stage, status, started_at, ended_at, detail
		FROM stage_log WHERE run_id = $1 ORDER BY started_at ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get stage log: %w", err)
	}
	defer rows.Close()

	var out []models.StageLogEntry
	for rows.Next() {
		var e models.StageLogEntry
		if err := rows.Scan(&e.RunID, &e.Stage, &e.Status, &e.StartedAt, &e.EndedAt, &e.Detail); err != nil {
			return nil, fmt.Errorf("store: scan stage log entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// StageDone reports whether a stage already completed successfully for
// a run — the signal --resume uses to skip work (§4).
func (s *Store) StageDone(ctx context.Context, runID, stage string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM stage_log WHERE run_id = $1 AND stage = $2`, runID, stage).Scan(&status)
	if err != nil {
		return false, nil
	}
	return models.StageStatus(status) == models.StageDone, nil
}
