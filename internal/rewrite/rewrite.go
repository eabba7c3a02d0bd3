// Package rewrite implements the Rewriter and its review queue
// (§4.G): low-grade atoms are routed to the generative model for an
// improve-or-split suggestion, re-scored, queued for human review, and
// finally applied to the atom store on approval.
package rewrite

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/atomsync/atomsync/internal/llm"
	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/quality"
	"github.com/atomsync/atomsync/internal/store"
)

// Engine wires the LLM client and store together for the rewrite pass.
type Engine struct {
	llm   *llm.Client
	store *store.Store
	th    quality.Thresholds
}

// New builds a rewrite Engine.
func New(llmClient *llm.Client, st *store.Store, th quality.Thresholds) *Engine {
	return &Engine{llm: llmClient, store: st, th: th}
}

// MinGrade lists the grades the rewrite pass enqueues by default: D and
// everything worse (§4.G).
var MinGrade = []models.QualityGrade{models.GradeD, models.GradeF}

// ProcessAtom generates a suggestion for one low-grade atom and enqueues
// it for review. Enumeration-flagged atoms get a split suggestion;
// everything else gets an in-place improve suggestion. On LLM failure
// the item is still enqueued, with status=error, so operators can see
// what needs manual attention instead of the atom silently vanishing
// from the clean-up pass (§4.G).
func (e *Engine) ProcessAtom(ctx context.Context, a *models.Atom) error {
	rewriteType := models.RewriteImprove
	for _, iss := range a.QualityIssues {
		if iss == models.IssueEnumerationDetected {
			rewriteType = models.RewriteSplit
			break
		}
	}

	item := &models.ReviewQueueItem{
		ID:             uuid.NewString(),
		SourceAtomID:   a.ID,
		RewriteType:    rewriteType,
		OriginalIssues: a.QualityIssues,
		Status:         models.ReviewPending,
		CreatedAt:      time.Now().UTC(),
	}

	issueStrs := make([]string, len(a.QualityIssues))
	for i, iss := range a.QualityIssues {
		issueStrs[i] = string(iss)
	}

	resp, err := e.llm.Rewrite(ctx, llm.RewriteRequest{
		Front:       a.Front,
		Back:        a.Back,
		AtomType:    string(a.Type),
		Issues:      issueStrs,
		RewriteType: string(rewriteType),
	})
	if err != nil {
		item.Status = models.ReviewError
		item.ReviewerNote = fmt.Sprintf("llm rewrite failed: %v", err)
		if enqueueErr := e.store.EnqueueReview(ctx, item); enqueueErr != nil {
			return fmt.Errorf("rewrite: enqueue error item: %w", enqueueErr)
		}
		return nil
	}

	switch rewriteType {
	case models.RewriteSplit:
		for _, child := range resp.Children {
			item.SplitSuggestions = append(item.SplitSuggestions, models.SplitSuggestion{
				Front: child.Front, Back: child.Back,
			})
		}
		item.EstimatedNewGrade = worstSplitGrade(item.SplitSuggestions, a.Type, e.th)
	default:
		item.SuggestedFront = resp.SuggestedFront
		item.SuggestedBack = resp.SuggestedBack
		result := quality.Analyze(resp.SuggestedFront, resp.SuggestedBack, a.Type, e.th)
		item.EstimatedNewGrade = result.Grade
	}

	if err := e.store.EnqueueReview(ctx, item); err != nil {
		return fmt.Errorf("rewrite: enqueue review: %w", err)
	}
	return nil
}

func worstSplitGrade(splits []models.SplitSuggestion, t models.AtomType, th quality.Thresholds) models.QualityGrade {
	worst := models.GradeA
	for _, s := range splits {
		r := quality.Analyze(s.Front, s.Back, t, th)
		if gradeRank(r.Grade) > gradeRank(worst) {
			worst = r.Grade
		}
	}
	return worst
}

func gradeRank(g models.QualityGrade) int {
	switch g {
	case models.GradeA:
		return 0
	case models.GradeB:
		return 1
	case models.GradeC:
		return 2
	case models.GradeD:
		return 3
	default:
		return 4
	}
}

// ImprovementPercent reports how much the estimated new grade improves
// on the original, as a percentage of the original's grade-ladder value
// (A=100 .. F=0), feeding the auto_approve(min_improvement%) gate (§6.3).
// Any improvement on an F original is +Inf; an unchanged F is 0.
func ImprovementPercent(original, suggested models.QualityGrade) float64 {
	before := 100 - gradeRank(original)*25
	after := 100 - gradeRank(suggested)*25
	if before == 0 {
		if after > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return float64(after-before) / float64(before) * 100
}
