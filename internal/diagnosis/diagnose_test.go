package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atomsync/atomsync/internal/models"
)

func TestDiagnoseImpulsive(t *testing.T) {
	d := Diagnose("atom-1", Input{
		AtomType:       models.AtomMCQ,
		Lapses:         0,
		ReviewCount:    5,
		IsCorrect:      false,
		ResponseTimeMs: 1200,
	})
	assert.Equal(t, models.FailExecutive, d.FailMode)
	assert.Equal(t, "slow_down", d.Remediation)
}

func TestDiagnoseFluency(t *testing.T) {
	d := Diagnose("atom-1", Input{
		AtomType:       models.AtomFlashcard,
		ReviewCount:    5,
		IsCorrect:      true,
		ResponseTimeMs: 1500,
	})
	assert.Equal(t, models.SuccessFluency, d.SuccessMode)
}

func TestDiagnoseDiscriminationOverridesDefaultFail(t *testing.T) {
	d := Diagnose("atom-1", Input{
		AtomType:       models.AtomMCQ,
		Lapses:         0,
		ReviewCount:    5,
		IsCorrect:      false,
		ResponseTimeMs: 4000,
		ChosenOption:   "B",
		CorrectOption:  "A",
		ConfusableOf:   map[string]string{"A": "B"},
	})
	assert.Equal(t, models.FailDiscrimination, d.FailMode)
}

func TestUpdatePersonaEMA(t *testing.T) {
	assert.InDelta(t, 0.91, UpdatePersona(0.9, 1.0), 1e-9)
}
