package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/devarsh/jobfleet/internal/batchstore"
	"github.com/devarsh/jobfleet/internal/compute"
	"github.com/devarsh/jobfleet/pkg/models"
)

// --- mock compute client ---

type mockCompute struct {
	mu            sync.Mutex
	submitFn      func(in compute.SubmitJobInput) (*compute.SubmitJobOutput, error)
	describeFn    func(jobIDs []string) ([]compute.JobDetail, error)
	terminateFn   func(jobID, reason string) error
	submitted     []compute.SubmitJobInput
	describeCalls [][]string
	terminated    []string
}

func (m *mockCompute) SubmitJob(_ context.Context, in compute.SubmitJobInput) (*compute.SubmitJobOutput, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, in)
	m.mu.Unlock()
	if m.submitFn != nil {
		return m.submitFn(in)
	}
	return &compute.SubmitJobOutput{JobID: "job-" + in.JobName, JobName: in.JobName}, nil
}

func (m *mockCompute) DescribeJobs(_ context.Context, jobIDs []string) ([]compute.JobDetail, error) {
	m.mu.Lock()
	ids := append([]string(nil), jobIDs...)
	m.describeCalls = append(m.describeCalls, ids)
	m.mu.Unlock()
	if m.describeFn != nil {
		return m.describeFn(jobIDs)
	}
	return nil, nil
}

func (m *mockCompute) TerminateJob(_ context.Context, jobID, reason string) error {
	m.mu.Lock()
	m.terminated = append(m.terminated, jobID)
	m.mu.Unlock()
	if m.terminateFn != nil {
		return m.terminateFn(jobID, reason)
	}
	return nil
}

func (m *mockCompute) submitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitted)
}

// detailsFor builds a describe response that reports every listed job in the
// given state.
func detailsFor(state string) func(jobIDs []string) ([]compute.JobDetail, error) {
	return func(jobIDs []string) ([]compute.JobDetail, error) {
		details := make([]compute.JobDetail, len(jobIDs))
		for i, id := range jobIDs {
			details[i] = compute.JobDetail{JobID: id, Status: state}
		}
		return details, nil
	}
}

// --- fake batch store ---

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*models.BatchRecord
	putErr  error
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.BatchRecord)}
}

func (s *fakeStore) Put(_ context.Context, record *models.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	if _, exists := s.records[record.BatchID]; exists {
		return fmt.Errorf("%w: %s", batchstore.ErrConflict, record.BatchID)
	}
	clone := *record
	clone.JobHandles = append([]models.JobHandle(nil), record.JobHandles...)
	s.records[record.BatchID] = &clone
	s.puts++
	return nil
}

func (s *fakeStore) Get(_ context.Context, batchID string) (*models.BatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[batchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", batchstore.ErrNotFound, batchID)
	}
	clone := *record
	clone.JobHandles = append([]models.JobHandle(nil), record.JobHandles...)
	return &clone, nil
}

func (s *fakeStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeStore) Ping(_ context.Context) error { return nil }
