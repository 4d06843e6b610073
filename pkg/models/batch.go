package models

import "time"

// Aggregate batch states derived from constituent job states.
const (
	BatchStateProcessing     = "PROCESSING"
	BatchStateCompleted      = "COMPLETED"
	BatchStatePartialFailure = "PARTIAL_FAILURE"
)

// BatchRecord maps a batch ID to its constituent job handles. Written once
// when a batch is expanded and never mutated afterwards; persisted as a
// single JSON object in the batch store keyed by BatchID.
//
// Invariant: TotalJobs == len(JobHandles), including handles for requests
// that failed to submit.
type BatchRecord struct {
	BatchID    string      `json:"batch_id"`
	BatchName  string      `json:"batch_name"`
	JobHandles []JobHandle `json:"job_handles"`
	TotalJobs  int         `json:"total_jobs"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SubmittedCount returns how many handles the compute service accepted.
func (r *BatchRecord) SubmittedCount() int {
	n := 0
	for _, h := range r.JobHandles {
		if h.Submitted() {
			n++
		}
	}
	return n
}

// FailedJob describes one job within a batch that failed, either at
// submission time or during execution.
type FailedJob struct {
	JobName string `json:"job_name"`
	JobID   string `json:"job_id,omitempty"`
	Reason  string `json:"reason"`
}

// AggregateStatus is the derived status of a batch. It is recomputed from
// live job states on every query and never persisted.
type AggregateStatus struct {
	BatchID         string         `json:"batch_id"`
	BatchName       string         `json:"batch_name"`
	OverallState    string         `json:"overall_state"`
	ProgressPercent float64        `json:"progress_percent"`
	Counts          map[string]int `json:"counts"`
	TotalJobs       int            `json:"total_jobs"`
	CreatedAt       time.Time      `json:"created_at"`
	FailedJobs      []FailedJob    `json:"failed_jobs,omitempty"`
	TotalFailed     int            `json:"total_failed"`
}
