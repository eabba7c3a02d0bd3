// Package diagnosis implements the Diagnosis Engine (§4.K): a pure
// classifier over one response plus recent history, and the EMA
// persona update it feeds.
package diagnosis

import (
	"github.com/atomsync/atomsync/internal/models"
)

// HistoryEntry is one prior response, most recent first, capped at 10
// entries by the caller (§4.K).
type HistoryEntry struct {
	IsCorrect      bool
	ResponseTimeMs int
}

// Input bundles everything Diagnose needs about the current atom,
// response, and learner history.
type Input struct {
	AtomType            models.AtomType
	Lapses              int
	ReviewCount         int
	IsCorrect           bool
	ResponseTimeMs      int
	History             []HistoryEntry
	ChosenOption        string
	CorrectOption       string
	ConfusableOf        map[string]string // correct_option -> known confusable wrong answer
}

// Diagnose classifies one response, first matching rule wins (§4.K).
func Diagnose(atomID string, in Input) models.Diagnosis {
	d := models.Diagnosis{AtomID: atomID, IsCorrect: in.IsCorrect}

	if !in.IsCorrect {
		switch {
		case in.ResponseTimeMs < 1500:
			d.FailMode = models.FailExecutive
			d.Remediation = "slow_down"
			d.Rule = "impulsive"
		case in.Lapses >= 3:
			d.FailMode = models.FailEncoding
			d.Remediation = "read_source"
			d.Rule = "repeated"
		case in.AtomType == models.AtomParsons || in.AtomType == models.AtomNumeric:
			d.FailMode = models.FailIntegration
			d.Remediation = "worked_example"
			d.Rule = "procedural"
		case in.ReviewCount <= 1:
			d.FailMode = models.FailEncoding
			d.Remediation = "elaborate"
			d.Rule = "fresh"
		case fatigued(in.History):
			d.FailMode = models.FailFatigue
			d.Remediation = "rest"
			d.Rule = "fatigue"
		case discriminationError(in):
			// Discrimination overrides the otherwise-applicable
			// Default-fail rule (§4.K).
			d.FailMode = models.FailDiscrimination
			d.Remediation = "review_confusables"
			d.Rule = "discrimination"
		default:
			d.FailMode = models.FailRetrieval
			d.Remediation = "repeat"
			d.Rule = "default_fail"
		}
		return d
	}

	if fatigued(in.History) {
		d.FailMode = models.FailFatigue
		d.Remediation = "rest"
		d.Rule = "fatigue"
		return d
	}

	if in.ResponseTimeMs < 3000 {
		d.SuccessMode = models.SuccessFluency
		d.Remediation = "accelerate"
		d.Rule = "fluency"
		return d
	}

	d.SuccessMode = models.SuccessRecall
	d.Remediation = "continue"
	d.Rule = "default_succ"
	return d
}

func discriminationError(in Input) bool {
	if in.IsCorrect || in.ChosenOption == "" || in.CorrectOption == "" || in.ConfusableOf == nil {
		return false
	}
	return in.ConfusableOf[in.CorrectOption] == in.ChosenOption
}

// fatigued reports whether the last 5 responses all took > 10s,
// correct or not (§4.K).
func fatigued(history []HistoryEntry) bool {
	if len(history) < 5 {
		return false
	}
	for _, h := range history[:5] {
		if h.ResponseTimeMs <= 10000 {
			return false
		}
	}
	return true
}

// UpdatePersona applies the EMA update x' = 0.9x + 0.1*observed for one
// knowledge-type strength signal (§4.K).
func UpdatePersona(prior float64, observed float64) float64 {
	return 0.9*prior + 0.1*observed
}

// ShouldRecordIntervention reports whether a FailMode warrants an
// intervention event (§4.K), given the learner opted in.
func ShouldRecordIntervention(fm models.FailMode, optedIn bool) bool {
	if !optedIn {
		return false
	}
	switch fm {
	case models.FailEncoding, models.FailIntegration, models.FailDiscrimination:
		return true
	default:
		return false
	}
}
