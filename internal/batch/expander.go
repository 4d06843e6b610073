package batch

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/devarsh/jobfleet/internal/batchstore"
	"github.com/devarsh/jobfleet/pkg/models"
)

const (
	defaultSubmitConcurrency = 10
	maxBatchSlugLen          = 48
	persistTimeout           = 30 * time.Second
)

var reSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)

// JobSubmitter is the single-job submission dependency of the expander.
type JobSubmitter interface {
	Submit(ctx context.Context, req models.JobRequest) (models.JobHandle, error)
}

// Expander fans a bulk request out into independent per-job submissions and
// persists the resulting membership record. A batch is a best-effort fan-out,
// not an atomic transaction: a request that fails to submit is recorded as a
// failed-to-submit handle rather than omitted, so the record always covers
// every request.
type Expander struct {
	submitter   JobSubmitter
	store       batchstore.Store
	concurrency int
}

// NewExpander creates an Expander with a fixed submission concurrency
// ceiling (defaults to 10 in-flight calls).
func NewExpander(submitter JobSubmitter, store batchstore.Store, concurrency int) *Expander {
	if concurrency <= 0 {
		concurrency = defaultSubmitConcurrency
	}
	return &Expander{submitter: submitter, store: store, concurrency: concurrency}
}

// Expand submits every request, following input order for dispatch, and
// returns once the batch record is durably stored. Cancelling ctx stops the
// dispatch of further submissions but lets in-flight ones finish, and the
// record is persisted regardless, so no submitted job ends up untracked.
func (e *Expander) Expand(ctx context.Context, batchName string, requests []models.JobRequest) (*models.BatchRecord, error) {
	now := time.Now().UTC()
	record := &models.BatchRecord{
		BatchID:    slug(batchName) + "-" + now.Format("20060102-150405"),
		BatchName:  batchName,
		JobHandles: make([]models.JobHandle, len(requests)),
		TotalJobs:  len(requests),
		CreatedAt:  now,
	}

	e.fanOut(ctx, requests, record.JobHandles)

	// The batch does not exist until its record is stored; the aggregator
	// has no other way to discover membership.
	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := e.store.Put(putCtx, record); err != nil {
		return nil, err
	}

	slog.Info("batch expanded",
		"batch_id", record.BatchID,
		"total_jobs", record.TotalJobs,
		"submitted", record.SubmittedCount(),
	)
	return record, nil
}

// fanOut runs submissions through a bounded worker pool, writing each result
// into handles by index so input order survives without extra synchronization.
func (e *Expander) fanOut(ctx context.Context, requests []models.JobRequest, handles []models.JobHandle) {
	if len(requests) == 0 {
		return
	}

	workers := e.concurrency
	if workers > len(requests) {
		workers = len(requests)
	}

	// In-flight submissions must complete even if the caller gives up,
	// otherwise jobs run with no record of them.
	submitCtx := context.WithoutCancel(ctx)

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				req := requests[i]
				if ctx.Err() != nil {
					handles[i] = failedHandle(req, "batch expansion cancelled before submission")
					continue
				}

				handle, err := e.submitter.Submit(submitCtx, req)
				if err != nil {
					slog.Warn("job submission failed", "job_name", req.Name, "error", err)
					handles[i] = failedHandle(req, err.Error())
					continue
				}
				handles[i] = handle
			}
		}()
	}

	for i := range requests {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
}

// failedHandle records a request the fan-out could not submit. The handle
// keeps the request's identity so the aggregator can count it as FAILED.
func failedHandle(req models.JobRequest, reason string) models.JobHandle {
	name := req.Name
	if name == "" {
		name = DeriveJobName(req.Source, req.Command)
	}
	return models.JobHandle{
		JobName:     name,
		Source:      req.Source,
		Command:     req.Command,
		SubmittedAt: time.Now().UTC(),
		SubmitError: reason,
	}
}

// slug normalizes a batch name into the human-traceable prefix of a batch ID.
func slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = reSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "batch"
	}
	if len(s) > maxBatchSlugLen {
		s = strings.Trim(s[:maxBatchSlugLen], "-")
	}
	return s
}
