package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devarsh/jobfleet/internal/api/response"
	"github.com/devarsh/jobfleet/pkg/models"
)

// BatchExpander defines the bulk submission interface the handlers depend on.
type BatchExpander interface {
	Expand(ctx context.Context, batchName string, requests []models.JobRequest) (*models.BatchRecord, error)
}

// BatchAggregator defines the batch status interface.
type BatchAggregator interface {
	Aggregate(ctx context.Context, batchID string) (*models.AggregateStatus, error)
}

// BatchLister enumerates known batch IDs.
type BatchLister interface {
	List(ctx context.Context) ([]string, error)
}

// NewSubmitBatchHandler returns an http.HandlerFunc for POST /api/v1/batches.
// Per-job submission failures do not fail the batch; they are recorded in
// the batch record and show up as FAILED in the aggregate status.
func NewSubmitBatchHandler(svc BatchExpander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BatchName string `json:"batch_name"`
			Jobs      []struct {
				Source  string `json:"source"`
				Command string `json:"command"`
				Name    string `json:"name"`
			} `json:"jobs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.BatchName == "" {
			req.BatchName = "batch"
		}

		requests := make([]models.JobRequest, len(req.Jobs))
		for i, j := range req.Jobs {
			requests[i] = models.JobRequest{Source: j.Source, Command: j.Command, Name: j.Name}
		}

		record, err := svc.Expand(r.Context(), req.BatchName, requests)
		if err != nil {
			respondError(w, err)
			return
		}

		response.Accepted(w, submitBatchResponse{
			BatchID:   record.BatchID,
			BatchName: record.BatchName,
			State:     models.BatchStateProcessing,
			TotalJobs: record.TotalJobs,
			Submitted: record.SubmittedCount(),
		})
	}
}

type submitBatchResponse struct {
	BatchID   string `json:"batch_id"`
	BatchName string `json:"batch_name"`
	State     string `json:"state"`
	TotalJobs int    `json:"total_jobs"`
	Submitted int    `json:"submitted"`
}

// NewBatchStatusHandler returns an http.HandlerFunc for GET /api/v1/batches/{batchID}.
func NewBatchStatusHandler(svc BatchAggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := chi.URLParam(r, "batchID")
		if batchID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "batchID is required", nil)
			return
		}

		status, err := svc.Aggregate(r.Context(), batchID)
		if err != nil {
			respondError(w, err)
			return
		}

		response.JSON(w, status)
	}
}

// NewListBatchesHandler returns an http.HandlerFunc for GET /api/v1/batches.
func NewListBatchesHandler(svc BatchLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := svc.List(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}

		response.JSON(w, listBatchesResponse{BatchIDs: ids, Count: len(ids)})
	}
}

type listBatchesResponse struct {
	BatchIDs []string `json:"batch_ids"`
	Count    int      `json:"count"`
}
