package interleave

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atomsync/atomsync/internal/models"
)

func poolOf(n int, t models.AtomType, prefix string) []Candidate {
	out := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Candidate{AtomID: fmt.Sprintf("%s-%d", prefix, i), Type: t})
	}
	return out
}

func TestRemediationRatioBands(t *testing.T) {
	assert.Equal(t, 0.0, RemediationRatio(0))
	assert.Equal(t, 0.30, RemediationRatio(2))
	assert.Equal(t, 0.40, RemediationRatio(5))
	assert.Equal(t, 0.50, RemediationRatio(9))
}

func TestBuildEvenPoolMatchesQuotaShape(t *testing.T) {
	var pool []Candidate
	pool = append(pool, poolOf(10, models.AtomMCQ, "mcq")...)
	pool = append(pool, poolOf(10, models.AtomTrueFalse, "tf")...)
	pool = append(pool, poolOf(10, models.AtomParsons, "pa")...)
	pool = append(pool, poolOf(10, models.AtomMatching, "ma")...)

	cfg := Config{SessionSize: 20, Quotas: DefaultQuotas()}
	session := Build(cfg, pool)

	assert.Len(t, session, 20)

	counts := map[models.AtomType]int{}
	for _, c := range session {
		counts[c.Type]++
	}
	assert.InDelta(t, 7, counts[models.AtomMCQ], 1)
	assert.InDelta(t, 5, counts[models.AtomTrueFalse], 1)
	assert.InDelta(t, 5, counts[models.AtomParsons], 1)
	assert.InDelta(t, 3, counts[models.AtomMatching], 1)
}

func TestBuildHonorsMinimumsWhenPoolSkewed(t *testing.T) {
	var pool []Candidate
	pool = append(pool, poolOf(30, models.AtomMCQ, "mcq")...)
	pool = append(pool, poolOf(1, models.AtomMatching, "ma")...)
	pool = append(pool, poolOf(2, models.AtomTrueFalse, "tf")...)
	pool = append(pool, poolOf(2, models.AtomParsons, "pa")...)

	cfg := Config{SessionSize: 20, Quotas: DefaultQuotas()}
	session := Build(cfg, pool)

	counts := map[models.AtomType]int{}
	for _, c := range session {
		counts[c.Type]++
	}
	assert.GreaterOrEqual(t, counts[models.AtomMatching], 1)
	assert.GreaterOrEqual(t, counts[models.AtomTrueFalse], 2)
	assert.GreaterOrEqual(t, counts[models.AtomParsons], 2)
}

func TestBuildNoThreeConsecutiveSameType(t *testing.T) {
	var pool []Candidate
	pool = append(pool, poolOf(10, models.AtomMCQ, "mcq")...)
	pool = append(pool, poolOf(10, models.AtomTrueFalse, "tf")...)
	pool = append(pool, poolOf(10, models.AtomParsons, "pa")...)
	pool = append(pool, poolOf(10, models.AtomMatching, "ma")...)

	cfg := Config{SessionSize: 20, Quotas: DefaultQuotas()}
	session := Build(cfg, pool)

	run := 1
	for i := 1; i < len(session); i++ {
		if session[i].Type == session[i-1].Type {
			run++
			assert.Less(t, run, 3, "three consecutive atoms of type %s at index %d", session[i].Type, i)
		} else {
			run = 1
		}
	}
}

func TestBuildDuePrioritizedOverFresh(t *testing.T) {
	pool := []Candidate{
		{AtomID: "due-1", Type: models.AtomMCQ, IsDue: true},
		{AtomID: "fresh-1", Type: models.AtomMCQ},
	}
	cfg := Config{SessionSize: 1, Quotas: DefaultQuotas()}
	session := Build(cfg, pool)
	assert.Len(t, session, 1)
	assert.Equal(t, "due-1", session[0].AtomID)
}

func TestBuildWarModePrioritizesWeak(t *testing.T) {
	pool := []Candidate{
		{AtomID: "weak-1", Type: models.AtomMCQ, InStruggleSet: true},
		{AtomID: "fresh-1", Type: models.AtomMCQ},
	}
	cfg := Config{SessionSize: 1, WarMode: true}
	session := Build(cfg, pool)
	assert.Len(t, session, 1)
	assert.Equal(t, "weak-1", session[0].AtomID)
}
