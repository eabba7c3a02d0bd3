package models

// DetectionMethod identifies how two atoms were matched as duplicates.
type DetectionMethod string

const (
	MethodExact    DetectionMethod = "exact"
	MethodFuzzy    DetectionMethod = "fuzzy"
	MethodSemantic DetectionMethod = "semantic"
)

// DuplicateStatus is the lifecycle state of a DuplicateGroup.
type DuplicateStatus string

const (
	DuplicateOpen     DuplicateStatus = "open"
	DuplicateResolved DuplicateStatus = "resolved"
)

// DuplicateGroup is a set of ≥2 atoms the Duplicate Detector considers
// equivalent, without ever mutating the atoms themselves (§4.F).
type DuplicateGroup struct {
	ID               string          `json:"id"`
	AtomIDs          []string        `json:"atom_ids"`
	Method           DetectionMethod `json:"method"`
	Similarity       float64         `json:"similarity"`
	Status           DuplicateStatus `json:"status"`
	CanonicalAtomID  *string         `json:"canonical_atom_id,omitempty"`
}
