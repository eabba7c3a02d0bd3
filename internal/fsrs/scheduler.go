// Package fsrs implements the Scheduler (§4.I): per-atom stability,
// difficulty, and retrievability updates. The Algorithm interface is
// shaped after the flotsam SRS package's go-srs-derived
// ProcessReview/IsDue contract, adapted from a single-card SM-2 update
// to FSRS's continuous-parameter model.
package fsrs

import (
	"time"

	"github.com/atomsync/atomsync/internal/models"
)

// Grade is the FSRS-facing review grade; re-exported for convenience.
type Grade = models.ReviewGrade

// Algorithm updates scheduling state on each response and reports
// due-ness. A single concrete implementation backs this interface
// today (Scheduler below); the seam exists so a future algorithm swap
// doesn't touch callers.
type Algorithm interface {
	ProcessReview(state models.FSRSState, grade Grade, now time.Time) models.FSRSState
	IsDue(state models.FSRSState, now time.Time) bool
}

// Config carries the tunable scheduling parameter (§6.5).
type Config struct {
	TargetRetention float64
	MinStabilityDays float64
	MaxStabilityDays float64
}

// DefaultConfig matches spec.md's evidence default.
func DefaultConfig() Config {
	return Config{
		TargetRetention:  0.90,
		MinStabilityDays: 1.0 / 24, // 1 hour floor for brand-new items
		MaxStabilityDays: 365,
	}
}

// Scheduler is the concrete FSRS-lite algorithm described in §4.I.
type Scheduler struct {
	cfg Config
}

// New builds a Scheduler.
func New(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// InferGrade derives a ReviewGrade from a raw response (§4.I).
func InferGrade(isCorrect, hintUsed bool, responseTimeMs int) Grade {
	if !isCorrect {
		return models.GradeAgain
	}
	if hintUsed {
		return models.GradeHard
	}
	if responseTimeMs < 2000 {
		return models.GradeEasy
	}
	return models.GradeGood
}

func growth(reviewCount int) float64 {
	// Diminishing growth per successful review, bounded so stability
	// cannot runaway on a long review streak.
	g := 0.6 / float64(reviewCount+1)
	if g < 0.05 {
		g = 0.05
	}
	return g
}

// ProcessReview applies one response to the prior FSRS state,
// producing the next state (§4.I). Guarantees P5: consecutive Good
// grades never decrease stability, Again strictly decreases it.
func (s *Scheduler) ProcessReview(state models.FSRSState, grade Grade, now time.Time) models.FSRSState {
	next := state

	switch grade {
	case models.GradeGood:
		next.Difficulty -= 0.05
	case models.GradeAgain, models.GradeHard:
		next.Difficulty += 0.1
	}
	next.Difficulty = clamp01(next.Difficulty)

	success := grade != models.GradeAgain
	if state.ReviewCount == 0 {
		// NEW items schedule immediately (§4.I).
		next.StabilityDays = s.cfg.MinStabilityDays
		next.Retrievability = 1.0
	} else if success {
		next.StabilityDays = state.StabilityDays * (1 + growth(state.ReviewCount))
		next.Retrievability = 0.95
	} else {
		next.StabilityDays = state.StabilityDays * 0.5
		next.Retrievability = 0.70 * state.Retrievability
		next.Lapses = state.Lapses + 1
	}

	if next.StabilityDays < s.cfg.MinStabilityDays {
		next.StabilityDays = s.cfg.MinStabilityDays
	}
	if next.StabilityDays > s.cfg.MaxStabilityDays {
		next.StabilityDays = s.cfg.MaxStabilityDays
	}

	next.ReviewCount = state.ReviewCount + 1
	reviewedAt := now
	next.LastReview = &reviewedAt
	nextReview := now.Add(time.Duration(next.StabilityDays * float64(24*time.Hour)))
	next.NextReview = &nextReview

	return next
}

// IsDue reports whether state's next_review has arrived.
func (s *Scheduler) IsDue(state models.FSRSState, now time.Time) bool {
	return state.NextReview != nil && !state.NextReview.After(now)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
