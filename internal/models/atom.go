// Package models holds the canonical data contracts shared across the
// ingestion, cleaning, and study subsystems.
package models

import (
	"encoding/json"
	"time"
)

// AtomType tags the polymorphic payload a front/back pair carries.
// The quality Analyzer applies one rule set to every type; there is no
// per-type Analyzer registry (see internal/quality).
type AtomType string

const (
	AtomFlashcard  AtomType = "flashcard"
	AtomCloze      AtomType = "cloze"
	AtomMCQ        AtomType = "mcq"
	AtomTrueFalse  AtomType = "true_false"
	AtomMatching   AtomType = "matching"
	AtomParsons    AtomType = "parsons"
	AtomNumeric    AtomType = "numeric"
)

// KnowledgeType classifies the cognitive demand of an atom.
type KnowledgeType string

const (
	KnowledgeDeclarative KnowledgeType = "declarative"
	KnowledgeProcedural  KnowledgeType = "procedural"
	KnowledgeApplicative KnowledgeType = "applicative"
)

// QualityGrade is the letter grade produced by the Quality Analyzer.
type QualityGrade string

const (
	GradeA QualityGrade = "A"
	GradeB QualityGrade = "B"
	GradeC QualityGrade = "C"
	GradeD QualityGrade = "D"
	GradeF QualityGrade = "F"
)

// QualityIssue enumerates the issue kinds the Analyzer can flag (§4.E).
type QualityIssue string

const (
	IssueEnumerationDetected QualityIssue = "ENUMERATION_DETECTED"
	IssueMultipleFacts       QualityIssue = "MULTIPLE_FACTS"
	IssueBackVerbose         QualityIssue = "BACK_VERBOSE"
	IssueFrontTooLong        QualityIssue = "FRONT_TOO_LONG"
	IssueBackTooLong         QualityIssue = "BACK_TOO_LONG"
	IssueFrontWarn           QualityIssue = "FRONT_WARN"
	IssueBackWarn            QualityIssue = "BACK_WARN"
)

// AtomSource identifies where an atom's content originated.
type AtomSource string

const (
	SourceNotion      AtomSource = "notion"
	SourceAnki        AtomSource = "anki"
	SourceAIGenerated AtomSource = "ai_generated"
	SourceManual      AtomSource = "manual"
)

// FSRSState is the spaced-repetition scheduling state maintained per atom.
// Retrievability holds the value the Scheduler set at the last review
// (see internal/fsrs); it is not recomputed from LastReview,
// StabilityDays and the time elapsed since.
type FSRSState struct {
	StabilityDays   float64    `json:"stability_days"`
	Difficulty      float64    `json:"difficulty"`
	Retrievability  float64    `json:"retrievability"`
	ReviewCount     int        `json:"review_count"`
	Lapses          int        `json:"lapses"`
	LastReview      *time.Time `json:"last_review,omitempty"`
	NextReview      *time.Time `json:"next_review,omitempty"`
}

// AtomFlags are the derived boolean signals the pipeline attaches to an atom.
type AtomFlags struct {
	IsAtomic      bool    `json:"is_atomic"`
	NeedsSplit    bool    `json:"needs_split"`
	NeedsRewrite  bool    `json:"needs_rewrite"`
	NeedsReview   bool    `json:"needs_review"`
	IsVerbose     bool    `json:"is_verbose"`
	SupersededBy  *string `json:"superseded_by,omitempty"`
}

// Atom is the canonical learning unit. Identity (ID) is immutable and
// opaque; everything else may be re-derived by re-running Analyze/Detect
// against Front/Back/Type (§3 invariant).
type Atom struct {
	ID             string          `json:"atom_id"`
	Front          string          `json:"front"`
	Back           string          `json:"back"`
	Type           AtomType        `json:"type"`
	SectionID      *string         `json:"section_id,omitempty"`
	ConceptIDs     []string        `json:"concept_ids"`
	KnowledgeType  KnowledgeType   `json:"knowledge_type"`
	Difficulty     float64         `json:"difficulty"`
	QualityGrade   QualityGrade    `json:"quality_grade"`
	QualityScore   int             `json:"quality_score"`
	QualityIssues  []QualityIssue  `json:"quality_issues"`
	AnalyzerVersion string         `json:"analyzer_version"`
	Source         AtomSource      `json:"source"`
	SourceRef      string          `json:"source_ref"`
	FSRS           FSRSState       `json:"fsrs_state"`
	Flags          AtomFlags       `json:"flags"`
	ParentAtomID   *string         `json:"parent_atom_id,omitempty"`
	Version        int             `json:"version"` // optimistic-lock counter
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Scheduled reports whether the atom participates in scheduling — a
// superseded atom is preserved for history but excluded (§3 invariant).
func (a *Atom) Scheduled() bool {
	return a.Flags.SupersededBy == nil
}

// MetadataJSON is a convenience JSONB-like carrier mirroring the
// teacher's database/sql.driver.Valuer pattern for loosely-typed
// per-record metadata (quiz choices, split suggestions, etc.).
type MetadataJSON map[string]interface{}

func (m MetadataJSON) MarshalBinary() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]interface{}(m))
}
