package models

import "time"

// Job states reported by the compute service. SUBMITTED through RUNNING are
// transient; SUCCEEDED and FAILED are terminal.
const (
	JobStateSubmitted = "SUBMITTED"
	JobStatePending   = "PENDING"
	JobStateRunnable  = "RUNNABLE"
	JobStateStarting  = "STARTING"
	JobStateRunning   = "RUNNING"
	JobStateSucceeded = "SUCCEEDED"
	JobStateFailed    = "FAILED"
)

// JobStates lists every state the compute service can report, in lifecycle order.
var JobStates = []string{
	JobStateSubmitted,
	JobStatePending,
	JobStateRunnable,
	JobStateStarting,
	JobStateRunning,
	JobStateSucceeded,
	JobStateFailed,
}

// IsTerminalState reports whether a job in the given state can still transition.
func IsTerminalState(state string) bool {
	return state == JobStateSucceeded || state == JobStateFailed
}

// JobRequest is one logical unit of work: a command to run against an
// optional source location (git URL or object-store URI). Immutable once
// submitted.
type JobRequest struct {
	Source  string `json:"source,omitempty"`
	Command string `json:"command"`
	Name    string `json:"name,omitempty"`
}

// JobHandle is the durable reference to one submitted job. A request the
// compute service rejected still gets a handle, with JobID empty and
// SubmitError carrying the rejection reason, so batch membership stays
// complete.
type JobHandle struct {
	JobID       string    `json:"job_id,omitempty"`
	JobName     string    `json:"job_name"`
	Source      string    `json:"source,omitempty"`
	Command     string    `json:"command"`
	SubmittedAt time.Time `json:"submitted_at"`
	SubmitError string    `json:"submit_error,omitempty"`
}

// Submitted reports whether the compute service accepted the job.
func (h JobHandle) Submitted() bool {
	return h.JobID != ""
}

// JobStatusSnapshot is the live state of one job, fetched fresh from the
// compute service on every query and never cached.
type JobStatusSnapshot struct {
	JobID        string     `json:"job_id"`
	JobName      string     `json:"job_name"`
	State        string     `json:"state"`
	StateReason  string     `json:"state_reason,omitempty"`
	LogStreamRef string     `json:"log_stream_ref,omitempty"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	StoppedAt    *time.Time `json:"stopped_at,omitempty"`
}

// DurationSeconds returns wall-clock runtime in seconds, or nil if the job
// has not both started and stopped.
func (s JobStatusSnapshot) DurationSeconds() *int64 {
	if s.StartedAt == nil || s.StoppedAt == nil {
		return nil
	}
	secs := int64(s.StoppedAt.Sub(*s.StartedAt).Seconds())
	return &secs
}
