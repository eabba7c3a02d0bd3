package transform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/quality"
	"github.com/atomsync/atomsync/internal/store"
)

// maxBatch bounds one Run's staging read — large enough that a realistic
// collection transforms in a single pass while keeping the in-memory
// batch finite.
const maxBatch = 10000

// Engine maps staged records onto canonical atoms.
type Engine struct {
	store *store.Store
	log   *slog.Logger
	th    quality.Thresholds
	mode  quality.Mode
}

// New builds a Transform Engine.
func New(st *store.Store, log *slog.Logger, th quality.Thresholds, mode quality.Mode) *Engine {
	return &Engine{store: st, log: log, th: th, mode: mode}
}

// Summary tallies one Transform run.
type Summary struct {
	Upserted int
	Skipped  int
	Warnings []string
}

// Run transforms every currently-staged row for cfg.Collection into a
// canonical atom, idempotently keyed by (source, source_ref) — re-
// running on identical staging state yields identical canonical rows
// (§4.D, P3). Rows missing front/back are skipped with a warning rather
// than aborting the stage; a constraint violation mid-batch rolls the
// whole batch back.
func (e *Engine) Run(ctx context.Context, cfg Config) (Summary, error) {
	items, err := e.store.ListPendingStagingItems(ctx, cfg.Collection, time.Time{}, maxBatch)
	if err != nil {
		return Summary{}, fmt.Errorf("transform: list staging items: %w", err)
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("transform: begin tx: %w", err)
	}
	defer tx.Rollback()

	var sum Summary
	now := time.Now().UTC()
	for _, item := range items {
		if item.Tombstoned {
			if err := e.store.SupersedeBySourceRefTx(ctx, tx, cfg.Kind, item.ExternalID); err != nil {
				return Summary{}, fmt.Errorf("transform: supersede tombstoned item %s: %w", item.ExternalID, err)
			}
			continue
		}

		atom, warning, err := e.mapAtom(cfg, item, now)
		if err != nil {
			return Summary{}, fmt.Errorf("transform: map %s/%s: %w", cfg.Collection, item.ExternalID, err)
		}
		if warning != "" {
			sum.Skipped++
			sum.Warnings = append(sum.Warnings, warning)
			e.log.Warn("transform: skipping staging item", "collection", cfg.Collection, "external_id", item.ExternalID, "reason", warning)
			continue
		}

		if err := e.store.UpsertAtomTx(ctx, tx, atom); err != nil {
			return Summary{}, fmt.Errorf("transform: upsert atom %s/%s: %w", cfg.Collection, item.ExternalID, err)
		}
		sum.Upserted++
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("transform: commit: %w", err)
	}
	return sum, nil
}

// mapAtom converts one staging row to a canonical Atom under cfg's
// mapping table. A non-empty warning means the row was intentionally
// skipped, not an error.
func (e *Engine) mapAtom(cfg Config, item store.StagingItem, now time.Time) (*models.Atom, string, error) {
	front, err := extractField(cfg, item.Payload, cfg.Fields.FrontField)
	if err != nil {
		return nil, "", err
	}
	back, err := extractField(cfg, item.Payload, cfg.Fields.BackField)
	if err != nil {
		return nil, "", err
	}
	front = strings.TrimSpace(front)
	back = strings.TrimSpace(back)
	if back == "" {
		return nil, fmt.Sprintf("empty back for %s", item.ExternalID), nil
	}
	if front == "" {
		return nil, fmt.Sprintf("empty front for %s", item.ExternalID), nil
	}

	rawType, err := extractField(cfg, item.Payload, cfg.Fields.TypeField)
	if err != nil {
		return nil, "", err
	}
	atomType := resolveType(cfg, rawType)

	conceptIDs, err := extractConceptIDs(cfg, item.Payload)
	if err != nil {
		return nil, "", err
	}

	result := quality.Analyze(front, back, atomType, e.th)
	if quality.Reject(result, e.mode, e.th, len(strings.Fields(front)), len(strings.Fields(back))) {
		return nil, fmt.Sprintf("strict mode rejected %s (grade %s)", item.ExternalID, result.Grade), nil
	}

	return &models.Atom{
		ID:              uuid.NewString(),
		Front:           front,
		Back:            back,
		Type:            atomType,
		SectionID:       cfg.SectionID,
		ConceptIDs:      conceptIDs,
		KnowledgeType:   cfg.DefaultKnowledgeType,
		QualityGrade:    result.Grade,
		QualityScore:    result.Score,
		QualityIssues:   result.Issues,
		AnalyzerVersion: quality.Version,
		Source:          cfg.Kind,
		SourceRef:       item.ExternalID,
		Flags:           result.Flags,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, "", nil
}
