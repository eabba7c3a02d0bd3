package models

import "time"

// Section is a hierarchical curriculum coordinate, e.g. "11.2.3".
type Section struct {
	SectionID       string  `json:"section_id"`
	ParentSectionID *string `json:"parent_section_id,omitempty"`
	Level           int     `json:"level"` // 1, 2, or 3
	DisplayOrder    int     `json:"display_order"`
	Title           string  `json:"title"`
}

// Concept is a pedagogical grouping node an atom may reference.
type Concept struct {
	ConceptID string `json:"concept_id"`
	Title     string `json:"title"`
}

// SectionMastery is the derived, rebuildable rollup the Mastery
// Aggregator produces for one section and one learner (§4.H). It is
// never authoritative — rebuilding it from (atoms, responses) must be
// idempotent (P6).
type SectionMastery struct {
	SectionID            string    `json:"section_id"`
	LearnerID             string   `json:"learner_id"`
	AvgRetrievability     float64  `json:"avg_retrievability"`
	AvgLapses             float64  `json:"avg_lapses"`
	AtomsNew              int      `json:"atoms_new"`
	AtomsLearning         int      `json:"atoms_learning"`
	AtomsMastered         int      `json:"atoms_mastered"`
	AtomsStruggling       int      `json:"atoms_struggling"`
	MCQAccuracy           float64  `json:"mcq_accuracy"`
	ParsonsAccuracy       float64  `json:"parsons_accuracy"`
	RemediationScore      float64  `json:"remediation_score"`
	NeedsRemediation      bool     `json:"needs_remediation"`
	ComputedAt            time.Time `json:"computed_at"`
}
