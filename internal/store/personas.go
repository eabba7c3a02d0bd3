package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/atomsync/atomsync/internal/models"
)

// GetPersona loads a learner's persona, returning a fresh zero-value
// persona if none has been computed yet (§3, §4.K).
func (s *Store) GetPersona(ctx context.Context, learnerID string) (*models.LearnerPersona, error) {
	var p models.LearnerPersona
	p.LearnerID = learnerID
	var strengths, effectiveness []byte
	var topics pq.StringArray

	err := s.db.QueryRowContext(ctx, `
		SELECT strengths, effectiveness, processing_speed, chronotype, calibration_score, interference_prone_topics, updated_at
		FROM learner_personas WHERE learner_id = $1
	`, learnerID).Scan(&strengths, &effectiveness, &p.ProcessingSpeed, &p.Chronotype, &p.CalibrationScore, &topics, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		p.Strengths = map[models.KnowledgeType]float64{}
		p.Effectiveness = map[string]float64{}
		return &p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get persona: %w", err)
	}
	if err := json.Unmarshal(strengths, &p.Strengths); err != nil {
		return nil, fmt.Errorf("store: unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal(effectiveness, &p.Effectiveness); err != nil {
		return nil, fmt.Errorf("store: unmarshal effectiveness: %w", err)
	}
	p.InterferenceProneTopics = []string(topics)
	return &p, nil
}

// SavePersona upserts a learner's persona after an EMA update (§4.K).
func (s *Store) SavePersona(ctx context.Context, p *models.LearnerPersona) error {
	strengths, err := json.Marshal(p.Strengths)
	if err != nil {
		return fmt.Errorf("store: marshal strengths: %w", err)
	}
	effectiveness, err := json.Marshal(p.Effectiveness)
	if err != nil {
		return fmt.Errorf("store: marshal effectiveness: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO learner_personas (
			learner_id, strengths, effectiveness, processing_speed, chronotype,
			calibration_score, interference_prone_topics, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (learner_id) DO UPDATE SET
			strengths = EXCLUDED.strengths,
			effectiveness = EXCLUDED.effectiveness,
			processing_speed = EXCLUDED.processing_speed,
			chronotype = EXCLUDED.chronotype,
			calibration_score = EXCLUDED.calibration_score,
			interference_prone_topics = EXCLUDED.interference_prone_topics,
			updated_at = now()
	`, p.LearnerID, strengths, effectiveness, p.ProcessingSpeed, p.Chronotype,
		p.CalibrationScore, pq.Array(p.InterferenceProneTopics))
	if err != nil {
		return fmt.Errorf("store: save persona: %w", err)
	}
	return nil
}
