// Package mastery implements the Mastery Aggregator (§4.H): a pure
// rollup over an atom's FSRS state and a learner's response history.
// Results are always rebuildable from (atoms, responses) — never
// authoritative (P6).
package mastery

import (
	"github.com/atomsync/atomsync/internal/models"
)

// AtomStat is the minimal per-atom projection the aggregator needs.
type AtomStat struct {
	AtomID         string
	Retrievability float64
	Lapses         int
	ReviewCount    int
	Type           models.AtomType
}

// ResponseOutcome is the minimal per-response projection needed to
// compute MCQ/Parsons accuracy.
type ResponseOutcome struct {
	AtomID    string
	Type      models.AtomType
	IsCorrect bool
}

const (
	masteredRetrievability = 0.90
	masteredMaxLapses      = 2
	masteredMinReviews     = 3

	remediationRetrievabilityFloor = 0.70
	remediationLapseCeiling        = 3.0
	remediationMCQFloor            = 0.80
	remediationScoreThreshold      = 0.75
)

// IsMastered reports whether one atom meets the mastered definition (§4.H).
func IsMastered(s AtomStat) bool {
	return s.Retrievability >= masteredRetrievability && s.Lapses < masteredMaxLapses && s.ReviewCount >= masteredMinReviews
}

func bucketOf(s AtomStat) string {
	switch {
	case s.ReviewCount == 0:
		return "new"
	case IsMastered(s):
		return "mastered"
	case s.Retrievability < remediationRetrievabilityFloor || s.Lapses >= 3:
		return "struggling"
	default:
		return "learning"
	}
}

// Aggregate computes a SectionMastery rollup for one section and learner
// from its atom stats and response outcomes (§4.H). Deterministic given
// identical inputs (P6).
func Aggregate(sectionID, learnerID string, stats []AtomStat, outcomes []ResponseOutcome) models.SectionMastery {
	var m models.SectionMastery
	m.SectionID = sectionID
	m.LearnerID = learnerID

	if len(stats) == 0 {
		return m
	}

	var sumRetrievability, sumLapses float64
	for _, s := range stats {
		sumRetrievability += s.Retrievability
		sumLapses += float64(s.Lapses)
		switch bucketOf(s) {
		case "new":
			m.AtomsNew++
		case "mastered":
			m.AtomsMastered++
		case "struggling":
			m.AtomsStruggling++
		default:
			m.AtomsLearning++
		}
	}
	n := float64(len(stats))
	m.AvgRetrievability = sumRetrievability / n
	m.AvgLapses = sumLapses / n

	m.MCQAccuracy = accuracyFor(outcomes, models.AtomMCQ)
	m.ParsonsAccuracy = accuracyFor(outcomes, models.AtomParsons)

	normalizedLapses := m.AvgLapses / 10
	if normalizedLapses > 1 {
		normalizedLapses = 1
	}
	m.RemediationScore = 0.40*m.AvgRetrievability + 0.25*(1-normalizedLapses) + 0.25*m.MCQAccuracy + 0.10*m.ParsonsAccuracy
	m.NeedsRemediation = m.AvgRetrievability < remediationRetrievabilityFloor ||
		m.AvgLapses > remediationLapseCeiling ||
		m.MCQAccuracy < remediationMCQFloor ||
		m.RemediationScore < remediationScoreThreshold

	return m
}

func accuracyFor(outcomes []ResponseOutcome, t models.AtomType) float64 {
	var total, correct int
	for _, o := range outcomes {
		if o.Type != t {
			continue
		}
		total++
		if o.IsCorrect {
			correct++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(correct) / float64(total)
}

// RollUp combines child SectionMastery rollups into their parent using
// an atom-weighted average (§4.H). weights[i] is the atom count backing
// children[i].
func RollUp(parentSectionID, learnerID string, children []models.SectionMastery, weights []int) models.SectionMastery {
	var m models.SectionMastery
	m.SectionID = parentSectionID
	m.LearnerID = learnerID

	totalWeight := 0
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return m
	}

	var retr, lapses, mcq, parsons, remediation float64
	for i, c := range children {
		w := float64(weights[i])
		retr += c.AvgRetrievability * w
		lapses += c.AvgLapses * w
		mcq += c.MCQAccuracy * w
		parsons += c.ParsonsAccuracy * w
		remediation += c.RemediationScore * w
		m.AtomsNew += c.AtomsNew
		m.AtomsLearning += c.AtomsLearning
		m.AtomsMastered += c.AtomsMastered
		m.AtomsStruggling += c.AtomsStruggling
	}
	tw := float64(totalWeight)
	m.AvgRetrievability = retr / tw
	m.AvgLapses = lapses / tw
	m.MCQAccuracy = mcq / tw
	m.ParsonsAccuracy = parsons / tw
	m.RemediationScore = remediation / tw
	m.NeedsRemediation = m.AvgRetrievability < remediationRetrievabilityFloor ||
		m.AvgLapses > remediationLapseCeiling ||
		m.MCQAccuracy < remediationMCQFloor ||
		m.RemediationScore < remediationScoreThreshold

	return m
}
