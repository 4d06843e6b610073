package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/devarsh/jobfleet/internal/api/response"
	"github.com/devarsh/jobfleet/internal/batch"
	"github.com/devarsh/jobfleet/internal/batchstore"
	"github.com/devarsh/jobfleet/internal/compute"
)

// respondError maps service-layer sentinel errors onto the API's error
// taxonomy. Unrecognized errors become opaque 500s.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, batch.ErrInvalidRequest):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, batch.ErrJobNotFound), errors.Is(err, batchstore.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, batch.ErrAlreadyTerminal):
		response.Error(w, http.StatusConflict, "JOB_ALREADY_TERMINAL", err.Error(), nil)
	case errors.Is(err, batchstore.ErrConflict):
		response.Error(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, compute.ErrRejected):
		response.Error(w, http.StatusUnprocessableEntity, "SUBMISSION_REJECTED", err.Error(), nil)
	case errors.Is(err, compute.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT",
			"The upstream service did not respond within the allowed time", nil)
	case errors.Is(err, compute.ErrUnavailable):
		response.Error(w, http.StatusBadGateway, "COMPUTE_UNAVAILABLE",
			"The compute service is not available", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
