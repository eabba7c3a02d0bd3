package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// StagingItem is one raw external record as pulled from Notion or Anki,
// prior to Transform (§3, §4.C).
type StagingItem struct {
	Collection     string
	ExternalID     string
	Payload        json.RawMessage
	LastEditedTime *time.Time
	Tombstoned     bool
	SyncedAt       time.Time
}

// UpsertStagingItem writes or refreshes one staging row, keyed by
// (collection, external_id) — the natural idempotency key for a re-run
// sync (§4.B, §4.C).
func (s *Store) UpsertStagingItem(ctx context.Context, item StagingItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staging_items (collection, external_id, payload, last_edited_time, tombstoned, synced_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (collection, external_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			last_edited_time = EXCLUDED.last_edited_time,
			tombstoned = EXCLUDED.tombstoned,
			synced_at = now()
	`, item.Collection, item.ExternalID, []byte(item.Payload), item.LastEditedTime, item.Tombstoned)
	if err != nil {
		return fmt.Errorf("store: upsert staging item: %w", err)
	}
	return nil
}

// UpsertStagingItemTx is UpsertStagingItem scoped to a caller-owned
// transaction, so a batch of staging rows commits or rolls back together
// (§4.B "all-or-nothing" batch commit).
func (s *Store) UpsertStagingItemTx(ctx context.Context, tx *sql.Tx, item StagingItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO staging_items (collection, external_id, payload, last_edited_time, tombstoned, synced_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (collection, external_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			last_edited_time = EXCLUDED.last_edited_time,
			tombstoned = EXCLUDED.tombstoned,
			synced_at = now()
	`, item.Collection, item.ExternalID, []byte(item.Payload), item.LastEditedTime, item.Tombstoned)
	if err != nil {
		return fmt.Errorf("store: upsert staging item (tx): %w", err)
	}
	return nil
}

// TombstoneStagingItem marks a staging row deleted without removing it,
// preserving the record for audit (§4.B).
func (s *Store) TombstoneStagingItem(ctx context.Context, collection, externalID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE staging_items SET tombstoned = true, synced_at = now()
		WHERE collection = $1 AND external_id = $2
	`, collection, externalID)
	if err != nil {
		return fmt.Errorf("store: tombstone staging item: %w", err)
	}
	return nil
}

// ListPendingStagingItems returns staging rows newer than the given
// synced_at watermark, the Transform stage's input batch (§4.C).
func (s *Store) ListPendingStagingItems(ctx context.Context, collection string, since time.Time, limit int) ([]StagingItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, external_id, payload, last_edited_time, tombstoned, synced_at
		FROM staging_items
		WHERE collection = $1 AND synced_at > $2
		ORDER BY synced_at ASC
		LIMIT $3
	`, collection, since, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list pending staging items: %w", err)
	}
	defer rows.Close()

	var out []StagingItem
	for rows.Next() {
		var item StagingItem
		var payload []byte
		if err := rows.Scan(&item.Collection, &item.ExternalID, &payload, &item.LastEditedTime, &item.Tombstoned, &item.SyncedAt); err != nil {
			return nil, fmt.Errorf("store: scan staging item: %w", err)
		}
		item.Payload = payload
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetStagingItem loads one staging row, used when resuming Transform
// after a partial Orchestrator run.
func (s *Store) GetStagingItem(ctx context.Context, collection, externalID string) (*StagingItem, error) {
	var item StagingItem
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT collection, external_id, payload, last_edited_time, tombstoned, synced_at
		FROM staging_items WHERE collection = $1 AND external_id = $2
	`, collection, externalID).Scan(&item.Collection, &item.ExternalID, &payload, &item.LastEditedTime, &item.Tombstoned, &item.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: staging item %s/%s not found", collection, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get staging item: %w", err)
	}
	item.Payload = payload
	return &item, nil
}
