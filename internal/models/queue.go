package models

import "time"

// RewriteType distinguishes an in-place improvement from an enumeration split.
type RewriteType string

const (
	RewriteImprove RewriteType = "improve"
	RewriteSplit   RewriteType = "split"
)

// ReviewStatus is the lifecycle state of a ReviewQueueItem.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
	ReviewEdited   ReviewStatus = "edited"
	ReviewError    ReviewStatus = "error"
)

// SplitSuggestion is one proposed child atom when RewriteType is split.
type SplitSuggestion struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// ReviewQueueItem is a pending AI rewrite suggestion awaiting human
// disposition (§3, §4.G).
type ReviewQueueItem struct {
	ID                string            `json:"id"`
	SourceAtomID      string            `json:"source_atom_id"`
	RewriteType       RewriteType       `json:"rewrite_type"`
	SuggestedFront    string            `json:"suggested_front,omitempty"`
	SuggestedBack     string            `json:"suggested_back,omitempty"`
	SplitSuggestions  []SplitSuggestion `json:"split_suggestions,omitempty"`
	OriginalIssues    []QualityIssue    `json:"original_issues"`
	EstimatedNewGrade QualityGrade      `json:"estimated_new_grade"`
	Status            ReviewStatus      `json:"status"`
	ReviewerNote      string            `json:"reviewer_note,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	ReviewedAt        *time.Time        `json:"reviewed_at,omitempty"`
}
