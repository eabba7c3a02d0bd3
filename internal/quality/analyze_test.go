package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atomsync/atomsync/internal/models"
)

func TestAnalyzeGradeA(t *testing.T) {
	th := DefaultThresholds()
	r := Analyze("What is TCP?", "Transmission Control Protocol", models.AtomFlashcard, th)
	assert.Equal(t, models.GradeA, r.Grade)
	assert.Equal(t, 100, r.Score)
	assert.Empty(t, r.Issues)
	assert.False(t, r.Flags.NeedsRewrite)
}

func TestAnalyzeEnumerationSplit(t *testing.T) {
	th := DefaultThresholds()
	r := Analyze("What are the OSI layers?", "1. Physical 2. Data Link 3. Network", models.AtomFlashcard, th)
	assert.Equal(t, models.GradeF, r.Grade)
	assert.Contains(t, r.Issues, models.IssueEnumerationDetected)
	assert.True(t, r.Flags.NeedsSplit)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	th := DefaultThresholds()
	a := Analyze("Explain osmosis", "Water moves across a semi-permeable membrane", models.AtomFlashcard, th)
	b := Analyze("Explain osmosis", "Water moves across a semi-permeable membrane", models.AtomFlashcard, th)
	assert.Equal(t, a, b)
}

func TestAnalyzeMultipleFacts(t *testing.T) {
	th := DefaultThresholds()
	r := Analyze("What is a server?", "It listens on a socket. It also responds to requests and logs them.", models.AtomFlashcard, th)
	assert.Contains(t, r.Issues, models.IssueMultipleFacts)
	assert.False(t, r.Flags.IsAtomic)
}

func TestAnalyzeBackVerbose(t *testing.T) {
	th := DefaultThresholds()
	longBack := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen"
	r := Analyze("What is this?", longBack, models.AtomFlashcard, th)
	assert.Contains(t, r.Issues, models.IssueBackVerbose)
	assert.True(t, r.Flags.IsVerbose)
}

func TestGradeBands(t *testing.T) {
	cases := []struct {
		score int
		want  models.QualityGrade
	}{
		{100, models.GradeA},
		{90, models.GradeA},
		{89, models.GradeB},
		{75, models.GradeB},
		{74, models.GradeC},
		{60, models.GradeC},
		{59, models.GradeD},
		{40, models.GradeD},
		{39, models.GradeF},
		{0, models.GradeF},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, gradeFromScore(tc.score))
	}
}
