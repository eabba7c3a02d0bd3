package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/atomsync/atomsync/internal/models"
)

// CreateDuplicateGroup records a newly detected duplicate set (§4.F).
func (s *Store) CreateDuplicateGroup(ctx context.Context, g *models.DuplicateGroup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO duplicate_groups (id, atom_ids, method, similarity, status, canonical_atom_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, g.ID, pq.Array(g.AtomIDs), g.Method, g.Similarity, g.Status, g.CanonicalAtomID)
	if err != nil {
		return fmt.Errorf("store: create duplicate group: %w", err)
	}
	return nil
}

// ListOpenDuplicateGroups returns unresolved duplicate groups, excluding
// resolved groups from re-detection (§4.F edge case).
func (s *Store) ListOpenDuplicateGroups(ctx context.Context) ([]models.DuplicateGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, atom_ids, method, similarity, status, canonical_atom_id
		FROM duplicate_groups WHERE status = 'open'
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list open duplicate groups: %w", err)
	}
	defer rows.Close()

	var out []models.DuplicateGroup
	for rows.Next() {
		var g models.DuplicateGroup
		var atomIDs pq.StringArray
		if err := rows.Scan(&g.ID, &atomIDs, &g.Method, &g.Similarity, &g.Status, &g.CanonicalAtomID); err != nil {
			return nil, fmt.Errorf("store: scan duplicate group: %w", err)
		}
		g.AtomIDs = []string(atomIDs)
		out = append(out, g)
	}
	return out, rows.Err()
}

// ResolveDuplicateGroup marks a group resolved with the chosen canonical atom.
func (s *Store) ResolveDuplicateGroup(ctx context.Context, id, canonicalAtomID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE duplicate_groups SET status = 'resolved', canonical_atom_id = $1 WHERE id = $2
	`, canonicalAtomID, id)
	if err != nil {
		return fmt.Errorf("store: resolve duplicate group: %w", err)
	}
	return nil
}

// AtomInOpenGroup reports whether atomID already belongs to an open
// duplicate group, so the detector can skip re-flagging it (§4.F).
func (s *Store) AtomInOpenGroup(ctx context.Context, atomID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM duplicate_groups WHERE status = 'open' AND $1 = ANY(atom_ids)
		)
	`, atomID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: check atom in open group: %w", err)
	}
	return exists, nil
}
