package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/quality"
)

func TestImprovementPercentGradeFtoA(t *testing.T) {
	pct := ImprovementPercent(models.GradeF, models.GradeA)
	assert.Greater(t, pct, 100.0)
}

func TestImprovementPercentNoChange(t *testing.T) {
	pct := ImprovementPercent(models.GradeC, models.GradeC)
	assert.Equal(t, 0.0, pct)
}

func TestImprovementPercentWorsens(t *testing.T) {
	pct := ImprovementPercent(models.GradeB, models.GradeD)
	assert.Less(t, pct, 0.0)
}

func TestWorstSplitGradePicksWorstChild(t *testing.T) {
	splits := []models.SplitSuggestion{
		{Front: "What is the capital of France?", Back: "Paris"},
		{Front: "x", Back: "This back describes one fact and also a second unrelated fact, running well past the word limit. It continues here and also adds a third point, making the whole thing far too long and verbose to read comfortably."},
	}
	grade := worstSplitGrade(splits, models.AtomFlashcard, quality.DefaultThresholds())
	assert.Equal(t, models.GradeD, grade, "worstSplitGrade should surface the lowest-quality child")
}
