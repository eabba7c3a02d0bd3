// Package quality implements the Analyzer: a pure, deterministic
// front/back grader (§4.E, P1). It never touches storage or the
// network — callers persist its output.
package quality

import (
	"regexp"
	"strings"

	"github.com/atomsync/atomsync/internal/models"
)

// Version is bumped whenever scoring weights or thresholds change.
// This package never re-analyzes stored atoms itself; the orchestrator's
// analyze stage re-scores every atom whose stored version differs, and
// that re-scoring is not gated behind any --force flag (§4.E).
const Version = "quality-v1"

// Mode selects how strict-mode rejection is applied.
type Mode string

const (
	ModeRelaxed Mode = "relaxed"
	ModeStrict  Mode = "strict"
)

// Thresholds carries the configurable word/char limits (§4.E, §6.5).
type Thresholds struct {
	FrontOptimalWords int
	FrontWarnWords    int
	FrontMaxWords     int
	BackOptimalWords  int
	BackWarnWords     int
	BackMaxWords      int
	BackMaxChars      int
}

// DefaultThresholds matches spec.md's evidence defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FrontOptimalWords: 15,
		FrontWarnWords:    20,
		FrontMaxWords:     25,
		BackOptimalWords:  5,
		BackWarnWords:     15,
		BackMaxWords:      15,
		BackMaxChars:      120,
	}
}

var issueWeights = map[models.QualityIssue]int{
	models.IssueEnumerationDetected: 65,
	models.IssueMultipleFacts:       25,
	models.IssueBackVerbose:         15,
	models.IssueFrontTooLong:        20,
	models.IssueBackTooLong:         20,
	models.IssueFrontWarn:           5,
	models.IssueBackWarn:            5,
}

var (
	enumerationRe = regexp.MustCompile(`(?m)(^|\n)\s*(\d+[.)]|[-*•])\s+\S`)
	conjunctionRe = regexp.MustCompile(`(?i)\b(and|also|additionally|furthermore|moreover)\b`)
	sentenceRe    = regexp.MustCompile(`[.!?]+`)
)

// Result is the output of Analyze (§4.E).
type Result struct {
	Grade  models.QualityGrade
	Score  int
	Issues []models.QualityIssue
	Flags  models.AtomFlags
}

// Analyze grades one front/back pair. Pure and deterministic: identical
// input always yields identical output (P1).
func Analyze(front, back string, atomType models.AtomType, th Thresholds) Result {
	frontWords := wordCount(front)
	backWords := wordCount(back)

	var issues []models.QualityIssue
	flags := models.AtomFlags{IsAtomic: true}

	if frontWords > th.FrontMaxWords {
		issues = append(issues, models.IssueFrontTooLong)
	} else if frontWords > th.FrontWarnWords {
		issues = append(issues, models.IssueFrontWarn)
	}

	backTooLong := backWords > th.BackMaxWords || len(back) > th.BackMaxChars
	if backTooLong {
		issues = append(issues, models.IssueBackTooLong)
	} else if backWords > th.BackWarnWords {
		issues = append(issues, models.IssueBackWarn)
	}

	if enumerationRe.MatchString(back) {
		issues = append(issues, models.IssueEnumerationDetected)
		flags.NeedsSplit = true
	}

	if countSentences(back) >= 2 && conjunctionRe.MatchString(back) {
		issues = append(issues, models.IssueMultipleFacts)
		flags.IsAtomic = false
	}

	if backWords > th.BackWarnWords {
		issues = append(issues, models.IssueBackVerbose)
		flags.IsVerbose = true
	}

	score := 100
	for _, iss := range issues {
		score -= issueWeights[iss]
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	grade := gradeFromScore(score)
	flags.NeedsRewrite = grade == models.GradeD || grade == models.GradeF

	return Result{Grade: grade, Score: score, Issues: dedupe(issues), Flags: flags}
}

// Reject reports whether strict mode should hard-reject this result
// at sync time rather than merely warn (§4.E).
func Reject(r Result, mode Mode, th Thresholds, frontWords, backWords int) bool {
	if mode != ModeStrict {
		return false
	}
	return frontWords > th.FrontMaxWords || backWords > th.BackMaxWords
}

func gradeFromScore(score int) models.QualityGrade {
	switch {
	case score >= 90:
		return models.GradeA
	case score >= 75:
		return models.GradeB
	case score >= 60:
		return models.GradeC
	case score >= 40:
		return models.GradeD
	default:
		return models.GradeF
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func countSentences(s string) int {
	parts := sentenceRe.Split(strings.TrimSpace(s), -1)
	n := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func dedupe(issues []models.QualityIssue) []models.QualityIssue {
	seen := make(map[models.QualityIssue]bool, len(issues))
	out := make([]models.QualityIssue, 0, len(issues))
	for _, iss := range issues {
		if !seen[iss] {
			seen[iss] = true
			out = append(out, iss)
		}
	}
	return out
}
