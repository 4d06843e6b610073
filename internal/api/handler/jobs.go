package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devarsh/jobfleet/internal/api/response"
	"github.com/devarsh/jobfleet/pkg/models"
)

// JobSubmitter defines the single-job submission interface the handlers
// depend on.
type JobSubmitter interface {
	Submit(ctx context.Context, req models.JobRequest) (models.JobHandle, error)
}

// JobStatusService defines the job status and termination interface.
type JobStatusService interface {
	Status(ctx context.Context, jobID string) (*models.JobStatusSnapshot, error)
	Terminate(ctx context.Context, jobID, reason string) (previousState string, err error)
}

// NewSubmitJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
func NewSubmitJobHandler(svc JobSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Source  string `json:"source"`
			Command string `json:"command"`
			Name    string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		handle, err := svc.Submit(r.Context(), models.JobRequest{
			Source:  req.Source,
			Command: req.Command,
			Name:    req.Name,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		response.Created(w, submitJobResponse{
			JobID:       handle.JobID,
			JobName:     handle.JobName,
			State:       models.JobStateSubmitted,
			SubmittedAt: handle.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
}

type submitJobResponse struct {
	JobID       string `json:"job_id"`
	JobName     string `json:"job_name"`
	State       string `json:"state"`
	SubmittedAt string `json:"submitted_at"`
}

// NewJobStatusHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewJobStatusHandler(svc JobStatusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if jobID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID is required", nil)
			return
		}

		snapshot, err := svc.Status(r.Context(), jobID)
		if err != nil {
			respondError(w, err)
			return
		}

		response.JSON(w, jobStatusResponse{
			JobStatusSnapshot: snapshot,
			DurationSeconds:   snapshot.DurationSeconds(),
		})
	}
}

type jobStatusResponse struct {
	*models.JobStatusSnapshot
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`
}

// NewTerminateJobHandler returns an http.HandlerFunc for DELETE /api/v1/jobs/{jobID}.
func NewTerminateJobHandler(svc JobStatusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if jobID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID is required", nil)
			return
		}

		reason := r.URL.Query().Get("reason")

		previous, err := svc.Terminate(r.Context(), jobID, reason)
		if err != nil {
			respondError(w, err)
			return
		}

		response.JSON(w, terminateJobResponse{
			JobID:         jobID,
			PreviousState: previous,
			TerminatedAt:  time.Now().UTC().Format(time.RFC3339),
		})
	}
}

type terminateJobResponse struct {
	JobID         string `json:"job_id"`
	PreviousState string `json:"previous_state"`
	TerminatedAt  string `json:"terminated_at"`
}
