package mastery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atomsync/atomsync/internal/models"
)

func TestIsMastered(t *testing.T) {
	assert.True(t, IsMastered(AtomStat{Retrievability: 0.95, Lapses: 1, ReviewCount: 4}))
	assert.False(t, IsMastered(AtomStat{Retrievability: 0.95, Lapses: 2, ReviewCount: 4}), "lapses must be < 2")
	assert.False(t, IsMastered(AtomStat{Retrievability: 0.89, Lapses: 0, ReviewCount: 4}), "retrievability must be >= 0.90")
	assert.False(t, IsMastered(AtomStat{Retrievability: 0.95, Lapses: 0, ReviewCount: 2}), "review_count must be >= 3")
}

func TestAggregateBucketsAndRemediation(t *testing.T) {
	stats := []AtomStat{
		{AtomID: "a1", Retrievability: 0.95, Lapses: 0, ReviewCount: 5, Type: models.AtomMCQ},   // mastered
		{AtomID: "a2", Retrievability: 0.50, Lapses: 4, ReviewCount: 6, Type: models.AtomMCQ},   // struggling
		{AtomID: "a3", Retrievability: 0.80, Lapses: 1, ReviewCount: 0, Type: models.AtomTrueFalse}, // new
		{AtomID: "a4", Retrievability: 0.80, Lapses: 1, ReviewCount: 2, Type: models.AtomParsons}, // learning
	}
	outcomes := []ResponseOutcome{
		{AtomID: "a1", Type: models.AtomMCQ, IsCorrect: true},
		{AtomID: "a2", Type: models.AtomMCQ, IsCorrect: false},
		{AtomID: "a4", Type: models.AtomParsons, IsCorrect: true},
	}

	m := Aggregate("11.2", "learner-1", stats, outcomes)

	assert.Equal(t, 1, m.AtomsMastered)
	assert.Equal(t, 1, m.AtomsStruggling)
	assert.Equal(t, 1, m.AtomsNew)
	assert.Equal(t, 1, m.AtomsLearning)
	assert.InDelta(t, 0.5, m.MCQAccuracy, 1e-9)
	assert.InDelta(t, 1.0, m.ParsonsAccuracy, 1e-9)
	assert.True(t, m.NeedsRemediation, "low MCQ accuracy alone should trigger remediation")
}

func TestAggregateEmptyStats(t *testing.T) {
	m := Aggregate("11.2", "learner-1", nil, nil)
	assert.Equal(t, 0, m.AtomsNew+m.AtomsLearning+m.AtomsMastered+m.AtomsStruggling)
	assert.False(t, m.NeedsRemediation)
}

func TestAccuracyForNoResponsesDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1.0, accuracyFor(nil, models.AtomMCQ))
}

func TestRollUpIsAtomWeighted(t *testing.T) {
	children := []models.SectionMastery{
		{AvgRetrievability: 1.0, AvgLapses: 0, MCQAccuracy: 1.0, ParsonsAccuracy: 1.0, RemediationScore: 1.0, AtomsMastered: 2},
		{AvgRetrievability: 0.0, AvgLapses: 0, MCQAccuracy: 0.0, ParsonsAccuracy: 0.0, RemediationScore: 0.0, AtomsStruggling: 1},
	}
	// child 0 backed by 3 atoms, child 1 by 1 atom: weighted average
	// should skew toward child 0, not a plain mean of the two.
	m := RollUp("11", "learner-1", children, []int{3, 1})

	assert.InDelta(t, 0.75, m.AvgRetrievability, 1e-9)
	assert.Equal(t, 2, m.AtomsMastered)
	assert.Equal(t, 1, m.AtomsStruggling)
}

func TestRollUpNoWeight(t *testing.T) {
	m := RollUp("11", "learner-1", nil, nil)
	assert.Equal(t, "11", m.SectionID)
	assert.False(t, m.NeedsRemediation)
}
