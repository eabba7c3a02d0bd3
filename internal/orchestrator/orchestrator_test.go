package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/quality"
	"github.com/atomsync/atomsync/internal/rewrite"
)

func TestGradesAtOrBelowFullLadder(t *testing.T) {
	assert.Equal(t, []models.QualityGrade{
		models.GradeA, models.GradeB, models.GradeC, models.GradeD, models.GradeF,
	}, gradesAtOrBelow(models.GradeA))
}

func TestGradesAtOrBelowDefaultFloor(t *testing.T) {
	assert.Equal(t, []models.QualityGrade{models.GradeD, models.GradeF}, gradesAtOrBelow(models.GradeD))
}

func TestGradesAtOrBelowSingleGrade(t *testing.T) {
	assert.Equal(t, []models.QualityGrade{models.GradeF}, gradesAtOrBelow(models.GradeF))
}

func TestGradesAtOrBelowUnknownGradeFallsBackToRewriteMinGrade(t *testing.T) {
	assert.Equal(t, rewrite.MinGrade, gradesAtOrBelow(models.QualityGrade("Z")))
}

func TestDerefSectionNil(t *testing.T) {
	assert.Equal(t, "", derefSection(nil))
}

func TestDerefSectionNonNil(t *testing.T) {
	s := "sec-1"
	assert.Equal(t, "sec-1", derefSection(&s))
}

func TestRunRefusesRewriteWithoutEngine(t *testing.T) {
	p := New(nil, nil, nil, quality.DefaultThresholds(), 0.85, nil)
	_, err := p.Run(context.Background(), "run-1", nil, Options{EnableRewrite: true})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rewrite enabled but no LLM-backed rewrite engine configured")
}
