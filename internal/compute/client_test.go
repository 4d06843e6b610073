package compute

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubmitJob(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"jobId": "job-abc-123", "jobName": "widgets-upgrade"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, StaticToken("secret-token"), 5*time.Second)
	out, err := client.SubmitJob(context.Background(), SubmitJobInput{
		JobName:       "widgets-upgrade",
		JobQueue:      "transform-job-queue",
		JobDefinition: "transform-job",
		Command:       []string{"--command", "atx transform -n x"},
		Environment:   map[string]string{"OUTPUT_BUCKET": "out-bucket"},
	})
	if err != nil {
		t.Fatalf("SubmitJob() error = %v", err)
	}

	if out.JobID != "job-abc-123" {
		t.Errorf("JobID = %q, want job-abc-123", out.JobID)
	}
	if gotPath != "/v1/submitjob" {
		t.Errorf("path = %q, want /v1/submitjob", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want Bearer secret-token", gotAuth)
	}
	if gotBody["jobQueue"] != "transform-job-queue" {
		t.Errorf("jobQueue = %v, want transform-job-queue", gotBody["jobQueue"])
	}

	overrides, ok := gotBody["containerOverrides"].(map[string]any)
	if !ok {
		t.Fatalf("containerOverrides missing from request body: %v", gotBody)
	}
	command, _ := overrides["command"].([]any)
	if len(command) != 2 || command[0] != "--command" {
		t.Errorf("containerOverrides.command = %v", overrides["command"])
	}
	env, _ := overrides["environment"].([]any)
	if len(env) != 1 {
		t.Fatalf("containerOverrides.environment = %v", overrides["environment"])
	}
}

func TestSubmitJobMissingJobID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"jobName": "nameless"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, nil, 5*time.Second)
	_, err := client.SubmitJob(context.Background(), SubmitJobInput{JobName: "nameless"})
	if !errors.Is(err, ErrRejected) {
		t.Errorf("error = %v, want ErrRejected", err)
	}
}

func TestSubmitJobRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "jobQueue does not exist"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, nil, 5*time.Second)
	_, err := client.SubmitJob(context.Background(), SubmitJobInput{JobName: "x"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("error = %v, want ErrRejected", err)
	}
	if want := "jobQueue does not exist"; err != nil && !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not carry service message %q", err, want)
	}
}

func TestSubmitJobServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, nil, 5*time.Second)
	_, err := client.SubmitJob(context.Background(), SubmitJobInput{JobName: "x"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestSubmitJobTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, nil, 50*time.Millisecond)
	_, err := client.SubmitJob(context.Background(), SubmitJobInput{JobName: "slow"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestSubmitJobConnectionRefused(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1", nil, time.Second)
	_, err := client.SubmitJob(context.Background(), SubmitJobInput{JobName: "x"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestDescribeJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/describejobs" {
			t.Errorf("path = %q, want /v1/describejobs", r.URL.Path)
		}
		var body struct {
			Jobs []string `json:"jobs"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Jobs) != 2 {
			t.Errorf("jobs = %v, want 2 ids", body.Jobs)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jobs": []map[string]any{
				{"jobId": "a", "status": "RUNNING"},
				{"jobId": "b", "status": "FAILED", "statusReason": "oom"},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, nil, 5*time.Second)
	details, err := client.DescribeJobs(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("DescribeJobs() error = %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("got %d details, want 2", len(details))
	}
	if details[0].Status != "RUNNING" {
		t.Errorf("details[0].Status = %q", details[0].Status)
	}
	if details[1].StatusReason != "oom" {
		t.Errorf("details[1].StatusReason = %q", details[1].StatusReason)
	}
}

func TestDescribeJobsEmptyInputSkipsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for empty job ID list")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, nil, 5*time.Second)
	details, err := client.DescribeJobs(context.Background(), nil)
	if err != nil {
		t.Fatalf("DescribeJobs() error = %v", err)
	}
	if details != nil {
		t.Errorf("details = %v, want nil", details)
	}
}

func TestTerminateJob(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/terminatejob" {
			t.Errorf("path = %q, want /v1/terminatejob", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, nil, 5*time.Second)
	if err := client.TerminateJob(context.Background(), "job-1", "stuck in RUNNABLE"); err != nil {
		t.Fatalf("TerminateJob() error = %v", err)
	}
	if gotBody["jobId"] != "job-1" || gotBody["reason"] != "stuck in RUNNABLE" {
		t.Errorf("request body = %v", gotBody)
	}
}

func TestTokenProviderErrorStopsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent when credentials cannot be resolved")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, failingTokens{}, 5*time.Second)
	_, err := client.SubmitJob(context.Background(), SubmitJobInput{JobName: "x"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

type failingTokens struct{}

func (failingTokens) Token() (string, error) { return "", errors.New("token store unreachable") }
