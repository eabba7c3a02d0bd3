package models

import "time"

// SyncMode selects a full re-pull or a watermark-bounded incremental one.
type SyncMode string

const (
	SyncFull        SyncMode = "full"
	SyncIncremental SyncMode = "incremental"
)

// SyncStatus is the terminal or in-flight state of a SyncRun.
type SyncStatus string

const (
	SyncRunning              SyncStatus = "running"
	SyncCompleted            SyncStatus = "completed"
	SyncFailed               SyncStatus = "failed"
	SyncCancelled            SyncStatus = "cancelled"
	SyncCompletedWithWarnings SyncStatus = "completed_with_warnings"
)

// SyncCheckpoint tracks incremental-pull progress for one external
// collection (§3).
type SyncCheckpoint struct {
	Collection           string     `json:"collection"`
	LastCursor           string     `json:"last_cursor,omitempty"`
	LastEditedWatermark  *time.Time `json:"last_edited_watermark,omitempty"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	LastSuccessAt        *time.Time `json:"last_success_at,omitempty"`
}

// SyncRun is the audit record of one Sync() invocation (§4.B).
type SyncRun struct {
	ID            string     `json:"id"`
	Mode          SyncMode   `json:"mode"`
	Collections   []string   `json:"collections"`
	Status        SyncStatus `json:"status"`
	Created       int        `json:"created"`
	Updated       int        `json:"updated"`
	Tombstoned    int        `json:"tombstoned"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// StageStatus records one Orchestrator stage's completion for --resume.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageDone      StageStatus = "done"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageLogEntry is one row of the orchestrator's resumability log.
type StageLogEntry struct {
	RunID     string      `json:"run_id"`
	Stage     string      `json:"stage"`
	Status    StageStatus `json:"status"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   *time.Time  `json:"ended_at,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}
