package model

import "time"

// JobStatus is the consolidation job state. A job transitions
// pending -> processing -> {completed|failed} exactly once.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobStats holds per-run consolidation counters.
type JobStats struct {
	Processed     int `json:"processed"`
	Consolidated  int `json:"consolidated"`
	Reinforced    int `json:"reinforced"`
	PatternsFound int `json:"patterns_found"`
}

// ConsolidationJob is one unit of the promotion batch process.
type ConsolidationJob struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Status    JobStatus `json:"status"`

	InputIDs  []string `json:"input_ids,omitempty"`  // short-term records consumed
	OutputIDs []string `json:"output_ids,omitempty"` // long-term records created

	Stats JobStats `json:"stats"`
	Error string   `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
