package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/devarsh/jobfleet/pkg/models"
)

// ─── shared mock services ────────────────────────────────────────────────────

type mockJobService struct {
	submitFn    func(req models.JobRequest) (models.JobHandle, error)
	statusFn    func(jobID string) (*models.JobStatusSnapshot, error)
	terminateFn func(jobID, reason string) (string, error)
}

func (m *mockJobService) Submit(_ context.Context, req models.JobRequest) (models.JobHandle, error) {
	return m.submitFn(req)
}

func (m *mockJobService) Status(_ context.Context, jobID string) (*models.JobStatusSnapshot, error) {
	return m.statusFn(jobID)
}

func (m *mockJobService) Terminate(_ context.Context, jobID, reason string) (string, error) {
	return m.terminateFn(jobID, reason)
}

type mockBatchService struct {
	expandFn    func(batchName string, requests []models.JobRequest) (*models.BatchRecord, error)
	aggregateFn func(batchID string) (*models.AggregateStatus, error)
	listFn      func() ([]string, error)
}

func (m *mockBatchService) Expand(_ context.Context, batchName string, requests []models.JobRequest) (*models.BatchRecord, error) {
	return m.expandFn(batchName, requests)
}

func (m *mockBatchService) Aggregate(_ context.Context, batchID string) (*models.AggregateStatus, error) {
	return m.aggregateFn(batchID)
}

func (m *mockBatchService) List(_ context.Context) ([]string, error) {
	return m.listFn()
}

// ─── request helpers ─────────────────────────────────────────────────────────

// jobRoutes mounts the job handlers the way the router does, so URL params
// resolve through chi.
func jobRoutes(svc *mockJobService) http.Handler {
	r := chi.NewRouter()
	r.Post("/jobs", NewSubmitJobHandler(svc))
	r.Get("/jobs/{jobID}", NewJobStatusHandler(svc))
	r.Delete("/jobs/{jobID}", NewTerminateJobHandler(svc))
	return r
}

func batchRoutes(svc *mockBatchService) http.Handler {
	r := chi.NewRouter()
	r.Post("/batches", NewSubmitBatchHandler(svc))
	r.Get("/batches", NewListBatchesHandler(svc))
	r.Get("/batches/{batchID}", NewBatchStatusHandler(svc))
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doRaw(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// parseData decodes the data envelope into a generic map.
func parseData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Data
}

// parseError decodes the error envelope.
func parseError(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code, body.Error.Message
}
