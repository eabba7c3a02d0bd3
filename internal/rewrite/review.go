package rewrite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/quality"
)

// ErrChildGradeTooLow means a split's re-analyzed child didn't reach at
// least grade B — the whole split is rejected rather than partially
// applied (§4.G, P9).
var ErrChildGradeTooLow = errors.New("rewrite: split child re-graded below B")

// Approve applies a pending suggestion to the atom store: an improve
// suggestion overwrites front/back in place and re-scores it; a split
// suggestion supersedes the source atom and inserts one new atom per
// child. Both the review-row update and the atom mutation commit in one
// transaction so a crash mid-approval can't leave the pair inconsistent
// (P9). A split whose re-analyzed children don't all reach grade B is
// rejected outright instead of partially applied.
func (e *Engine) Approve(ctx context.Context, reviewID string) error {
	item, err := e.store.GetReviewItem(ctx, reviewID)
	if err != nil {
		return err
	}
	if item.Status != models.ReviewPending {
		return fmt.Errorf("rewrite: review item %s is not pending (status=%s)", reviewID, item.Status)
	}

	if err := e.approveTx(ctx, reviewID, item); err != nil {
		if errors.Is(err, ErrChildGradeTooLow) {
			return e.Reject(ctx, reviewID, err.Error())
		}
		return err
	}
	return nil
}

func (e *Engine) approveTx(ctx context.Context, reviewID string, item *models.ReviewQueueItem) error {
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("rewrite: begin approve tx: %w", err)
	}
	defer tx.Rollback()

	src, err := e.store.LockAtomForUpdate(ctx, tx, item.SourceAtomID)
	if err != nil {
		return err
	}

	switch item.RewriteType {
	case models.RewriteSplit:
		if err := e.applySplit(ctx, tx, src, item); err != nil {
			return err
		}
	default:
		if err := e.applyImprove(ctx, tx, src, item); err != nil {
			return err
		}
	}

	if err := e.store.SetReviewDisposition(ctx, tx, reviewID, models.ReviewApproved, ""); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rewrite: commit approve tx: %w", err)
	}
	return nil
}

func (e *Engine) applyImprove(ctx context.Context, tx *sql.Tx, src *models.Atom, item *models.ReviewQueueItem) error {
	result := quality.Analyze(item.SuggestedFront, item.SuggestedBack, src.Type, e.th)

	src.Front = item.SuggestedFront
	src.Back = item.SuggestedBack
	src.QualityGrade = result.Grade
	src.QualityScore = result.Score
	src.QualityIssues = result.Issues
	src.AnalyzerVersion = quality.Version
	src.Flags.NeedsSplit = result.Flags.NeedsSplit
	src.Flags.NeedsRewrite = result.Flags.NeedsRewrite
	src.Flags.NeedsReview = result.Flags.NeedsReview
	src.Flags.IsVerbose = result.Flags.IsVerbose

	return e.store.UpdateContentTx(ctx, tx, src)
}

func (e *Engine) applySplit(ctx context.Context, tx *sql.Tx, src *models.Atom, item *models.ReviewQueueItem) error {
	now := time.Now().UTC()
	children := make([]*models.Atom, 0, len(item.SplitSuggestions))
	for _, s := range item.SplitSuggestions {
		child := newChildAtom(src, s.Front, s.Back, now)
		result := quality.Analyze(child.Front, child.Back, child.Type, e.th)
		child.QualityGrade = result.Grade
		child.QualityScore = result.Score
		child.QualityIssues = result.Issues
		child.AnalyzerVersion = quality.Version
		child.Flags.IsAtomic = !result.Flags.NeedsSplit
		child.Flags.NeedsSplit = result.Flags.NeedsSplit
		child.Flags.NeedsRewrite = result.Flags.NeedsRewrite
		child.Flags.NeedsReview = result.Flags.NeedsReview
		child.Flags.IsVerbose = result.Flags.IsVerbose

		if gradeRank(result.Grade) > gradeRank(models.GradeB) {
			return fmt.Errorf("%w: %s re-graded %s", ErrChildGradeTooLow, child.Front, result.Grade)
		}
		children = append(children, child)
	}

	var firstChildID string
	for _, child := range children {
		if err := e.store.InsertAtomTx(ctx, tx, child); err != nil {
			return fmt.Errorf("rewrite: insert split child: %w", err)
		}
		if firstChildID == "" {
			firstChildID = child.ID
		}
	}
	// superseded_by names the first child; the rest are reachable via
	// their shared parent_atom_id (§3 invariant preserves history, not
	// a 1:1 replacement pointer).
	return e.store.MarkSupersededTx(ctx, tx, src.ID, firstChildID)
}

// Reject marks a pending suggestion as rejected with an operator-supplied
// reason, leaving the source atom untouched (§6.3).
func (e *Engine) Reject(ctx context.Context, reviewID, reason string) error {
	item, err := e.store.GetReviewItem(ctx, reviewID)
	if err != nil {
		return err
	}
	if item.Status != models.ReviewPending {
		return fmt.Errorf("rewrite: review item %s is not pending (status=%s)", reviewID, item.Status)
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("rewrite: begin reject tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.store.SetReviewDisposition(ctx, tx, reviewID, models.ReviewRejected, reason); err != nil {
		return err
	}
	return tx.Commit()
}

// Edit applies operator-supplied front/back text instead of the model's
// suggestion, re-scoring before it's written to the atom (§6.3).
func (e *Engine) Edit(ctx context.Context, reviewID, front, back string) error {
	item, err := e.store.GetReviewItem(ctx, reviewID)
	if err != nil {
		return err
	}
	if item.Status != models.ReviewPending {
		return fmt.Errorf("rewrite: review item %s is not pending (status=%s)", reviewID, item.Status)
	}
	item.RewriteType = models.RewriteImprove
	item.SuggestedFront = front
	item.SuggestedBack = back

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("rewrite: begin edit tx: %w", err)
	}
	defer tx.Rollback()

	src, err := e.store.LockAtomForUpdate(ctx, tx, item.SourceAtomID)
	if err != nil {
		return err
	}
	if err := e.applyImprove(ctx, tx, src, item); err != nil {
		return err
	}
	if err := e.store.SetReviewDisposition(ctx, tx, reviewID, models.ReviewEdited, ""); err != nil {
		return err
	}
	return tx.Commit()
}

// AutoApprove approves every pending item whose estimated improvement
// meets minImprovementPct, leaving the rest for human review (§6.3
// `auto_approve(min_improvement%)`).
func (e *Engine) AutoApprove(ctx context.Context, minImprovementPct float64) (int, error) {
	items, err := e.store.ListPendingReviews(ctx)
	if err != nil {
		return 0, err
	}

	origGrades := make(map[string]models.QualityGrade, len(items))
	for _, it := range items {
		a, err := e.store.GetAtom(ctx, it.SourceAtomID)
		if err != nil {
			continue
		}
		origGrades[it.ID] = a.QualityGrade
	}

	approved := 0
	for _, it := range items {
		orig, ok := origGrades[it.ID]
		if !ok {
			continue
		}
		pct := ImprovementPercent(orig, it.EstimatedNewGrade)
		if pct >= minImprovementPct {
			if err := e.Approve(ctx, it.ID); err != nil {
				return approved, fmt.Errorf("rewrite: auto-approve %s: %w", it.ID, err)
			}
			approved++
		}
	}
	return approved, nil
}

func newChildAtom(parent *models.Atom, front, back string, now time.Time) *models.Atom {
	return &models.Atom{
		ID:            uuid.NewString(),
		Front:         front,
		Back:          back,
		Type:          parent.Type,
		SectionID:     parent.SectionID,
		ConceptIDs:    parent.ConceptIDs,
		KnowledgeType: parent.KnowledgeType,
		Source:        models.SourceAIGenerated,
		SourceRef:     fmt.Sprintf("%s/split/%s", parent.SourceRef, uuid.NewString()),
		ParentAtomID:  &parent.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
