package batch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/devarsh/jobfleet/internal/batchstore"
	"github.com/devarsh/jobfleet/internal/compute"
	"github.com/devarsh/jobfleet/pkg/models"
)

const (
	// describeChunkSize is the compute service's per-call describe limit.
	describeChunkSize = 100

	defaultChunkTimeout = 5 * time.Second

	// maxReportedFailures caps the failed-job detail in an aggregate status;
	// TotalFailed still carries the full count.
	maxReportedFailures = 10
)

// Aggregator reduces the live states of a batch's constituent jobs into one
// aggregate status. The computation is pure: it never mutates the batch
// record or any job, so repeated calls with unchanged upstream state return
// identical results.
type Aggregator struct {
	compute      compute.Client
	store        batchstore.Store
	chunkTimeout time.Duration
}

// NewAggregator creates an Aggregator. chunkTimeout bounds each describe
// call; this runs on a synchronous request path and must not block long.
func NewAggregator(client compute.Client, store batchstore.Store, chunkTimeout time.Duration) *Aggregator {
	if chunkTimeout <= 0 {
		chunkTimeout = defaultChunkTimeout
	}
	return &Aggregator{compute: client, store: store, chunkTimeout: chunkTimeout}
}

// Aggregate fetches the batch record and every constituent job's current
// state, then derives overall state, progress, and per-state counts.
// Fails with batchstore.ErrNotFound for an unknown batch ID; status-fetch
// failures propagate to the caller uninterpreted.
func (a *Aggregator) Aggregate(ctx context.Context, batchID string) (*models.AggregateStatus, error) {
	record, err := a.store.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	jobIDs := make([]string, 0, len(record.JobHandles))
	for _, h := range record.JobHandles {
		if h.Submitted() {
			jobIDs = append(jobIDs, h.JobID)
		}
	}

	details, err := a.describeAll(ctx, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("describe jobs for batch %s: %w", batchID, err)
	}

	counts := make(map[string]int, len(models.JobStates))
	for _, state := range models.JobStates {
		counts[state] = 0
	}

	var failed []models.FailedJob
	for _, h := range record.JobHandles {
		state, reason := resolveState(h, details)
		counts[state]++
		if state == models.JobStateFailed {
			failed = append(failed, models.FailedJob{
				JobName: h.JobName,
				JobID:   h.JobID,
				Reason:  reason,
			})
		}
	}

	terminal := counts[models.JobStateSucceeded] + counts[models.JobStateFailed]

	status := &models.AggregateStatus{
		BatchID:     record.BatchID,
		BatchName:   record.BatchName,
		Counts:      counts,
		TotalJobs:   record.TotalJobs,
		CreatedAt:   record.CreatedAt,
		TotalFailed: len(failed),
	}

	switch {
	case record.TotalJobs == 0:
		// Nothing to run means nothing left to fail.
		status.OverallState = models.BatchStateCompleted
		status.ProgressPercent = 100
	case counts[models.JobStateSucceeded] == record.TotalJobs:
		status.OverallState = models.BatchStateCompleted
		status.ProgressPercent = 100
	case terminal == record.TotalJobs:
		status.OverallState = models.BatchStatePartialFailure
		status.ProgressPercent = 100
	default:
		status.OverallState = models.BatchStateProcessing
		status.ProgressPercent = roundToTenth(100 * float64(terminal) / float64(record.TotalJobs))
	}

	if len(failed) > maxReportedFailures {
		failed = failed[:maxReportedFailures]
	}
	status.FailedJobs = failed

	return status, nil
}

// describeAll fetches job details in chunks bounded by the service's
// per-call limit, each under its own timeout.
func (a *Aggregator) describeAll(ctx context.Context, jobIDs []string) (map[string]compute.JobDetail, error) {
	details := make(map[string]compute.JobDetail, len(jobIDs))
	for start := 0; start < len(jobIDs); start += describeChunkSize {
		end := start + describeChunkSize
		if end > len(jobIDs) {
			end = len(jobIDs)
		}

		chunkCtx, cancel := context.WithTimeout(ctx, a.chunkTimeout)
		chunk, err := a.compute.DescribeJobs(chunkCtx, jobIDs[start:end])
		cancel()
		if err != nil {
			return nil, err
		}

		for _, d := range chunk {
			details[d.JobID] = d
		}
	}
	return details, nil
}

// resolveState maps one handle to a countable job state. Handles that never
// made it to the compute service count as FAILED from the start, as do jobs
// the service no longer knows about, so counts always sum to TotalJobs.
func resolveState(h models.JobHandle, details map[string]compute.JobDetail) (state, reason string) {
	if !h.Submitted() {
		return models.JobStateFailed, h.SubmitError
	}

	d, known := details[h.JobID]
	if !known {
		return models.JobStateFailed, "job no longer known to the compute service"
	}

	switch d.Status {
	case models.JobStateSubmitted, models.JobStatePending, models.JobStateRunnable,
		models.JobStateStarting, models.JobStateRunning, models.JobStateSucceeded:
		return d.Status, ""
	case models.JobStateFailed:
		if d.StatusReason != "" {
			return models.JobStateFailed, d.StatusReason
		}
		return models.JobStateFailed, "job failed during execution"
	default:
		return models.JobStateFailed, fmt.Sprintf("compute service reported unknown state %q", d.Status)
	}
}

func roundToTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
