package fsrs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/atomsync/atomsync/internal/models"
)

func TestInferGrade(t *testing.T) {
	assert.Equal(t, models.GradeAgain, InferGrade(false, false, 500))
	assert.Equal(t, models.GradeHard, InferGrade(true, true, 500))
	assert.Equal(t, models.GradeEasy, InferGrade(true, false, 1500))
	assert.Equal(t, models.GradeGood, InferGrade(true, false, 5000))
}

func TestProcessReviewMonotonicity(t *testing.T) {
	s := New(DefaultConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	state := models.FSRSState{StabilityDays: 2, ReviewCount: 3, Retrievability: 0.9}
	next := s.ProcessReview(state, models.GradeGood, now)
	assert.GreaterOrEqual(t, next.StabilityDays, state.StabilityDays)

	after := s.ProcessReview(next, models.GradeGood, now.Add(24*time.Hour))
	assert.GreaterOrEqual(t, after.StabilityDays, next.StabilityDays)

	failed := s.ProcessReview(after, models.GradeAgain, now.Add(48*time.Hour))
	assert.Less(t, failed.StabilityDays, after.StabilityDays)
	assert.Equal(t, after.Lapses+1, failed.Lapses)
}

func TestProcessReviewNewItemSchedulesImmediately(t *testing.T) {
	s := New(DefaultConfig())
	now := time.Now()
	next := s.ProcessReview(models.FSRSState{}, models.GradeGood, now)
	assert.NotNil(t, next.NextReview)
	assert.True(t, next.NextReview.After(now) || next.NextReview.Equal(now))
}

func TestIsDue(t *testing.T) {
	s := New(DefaultConfig())
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	assert.True(t, s.IsDue(models.FSRSState{NextReview: &past}, now))
	assert.False(t, s.IsDue(models.FSRSState{NextReview: &future}, now))
}
