package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/devarsh/jobfleet/internal/compute"
	"github.com/devarsh/jobfleet/pkg/models"
)

const defaultTerminateReason = "terminated by user"

// JobService answers single-job status and termination requests.
type JobService struct {
	compute compute.Client
	timeout time.Duration
}

// NewJobService creates a JobService with a bounded per-call timeout.
func NewJobService(client compute.Client, timeout time.Duration) *JobService {
	if timeout <= 0 {
		timeout = defaultChunkTimeout
	}
	return &JobService{compute: client, timeout: timeout}
}

// Status fetches a fresh snapshot of one job from the compute service.
func (s *JobService) Status(ctx context.Context, jobID string) (*models.JobStatusSnapshot, error) {
	detail, err := s.describeOne(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return snapshotFromDetail(*detail), nil
}

// Terminate stops a job that is still in flight and reports the state it was
// in beforehand. Terminal jobs cannot be terminated.
func (s *JobService) Terminate(ctx context.Context, jobID, reason string) (previousState string, err error) {
	detail, err := s.describeOne(ctx, jobID)
	if err != nil {
		return "", err
	}

	if models.IsTerminalState(detail.Status) {
		return detail.Status, fmt.Errorf("%w: job %s is %s", ErrAlreadyTerminal, jobID, detail.Status)
	}

	if reason == "" {
		reason = defaultTerminateReason
	}

	termCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.compute.TerminateJob(termCtx, jobID, reason); err != nil {
		return "", fmt.Errorf("terminate job %s: %w", jobID, err)
	}
	return detail.Status, nil
}

func (s *JobService) describeOne(ctx context.Context, jobID string) (*compute.JobDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	details, err := s.compute.DescribeJobs(ctx, []string{jobID})
	if err != nil {
		return nil, fmt.Errorf("describe job %s: %w", jobID, err)
	}
	if len(details) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return &details[0], nil
}

// snapshotFromDetail converts the service's wire representation (epoch
// milliseconds, zero when unset) into a JobStatusSnapshot.
func snapshotFromDetail(d compute.JobDetail) *models.JobStatusSnapshot {
	return &models.JobStatusSnapshot{
		JobID:        d.JobID,
		JobName:      d.JobName,
		State:        d.Status,
		StateReason:  d.StatusReason,
		LogStreamRef: d.Container.LogStreamName,
		ExitCode:     d.Container.ExitCode,
		SubmittedAt:  msToTime(d.CreatedAt),
		StartedAt:    msToTime(d.StartedAt),
		StoppedAt:    msToTime(d.StoppedAt),
	}
}

func msToTime(ms int64) *time.Time {
	if ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
