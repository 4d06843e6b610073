// Package compute is the HTTP client for the managed batch-compute service
// that queues and runs container jobs. The service is treated as an opaque
// collaborator: submit returns an opaque job ID, describe returns current
// job states, terminate stops a job.
package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for compute client failures.
var (
	ErrRejected    = errors.New("compute service rejected the request")
	ErrUnavailable = errors.New("compute service unavailable")
	ErrTimeout     = errors.New("compute service timeout")
)

// Client is the interface for the compute service.
type Client interface {
	SubmitJob(ctx context.Context, in SubmitJobInput) (*SubmitJobOutput, error)
	DescribeJobs(ctx context.Context, jobIDs []string) ([]JobDetail, error)
	TerminateJob(ctx context.Context, jobID, reason string) error
}

// SubmitJobInput maps a job onto the service's container-override schema.
type SubmitJobInput struct {
	JobName       string            `json:"jobName"`
	JobQueue      string            `json:"jobQueue"`
	JobDefinition string            `json:"jobDefinition"`
	Command       []string          `json:"-"`
	Environment   map[string]string `json:"-"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// SubmitJobOutput is the service's acknowledgement of a submission.
type SubmitJobOutput struct {
	JobID   string `json:"jobId"`
	JobName string `json:"jobName"`
}

// JobDetail is the service's view of one job. Timestamps are epoch
// milliseconds; zero means the job has not reached that point yet.
type JobDetail struct {
	JobID        string `json:"jobId"`
	JobName      string `json:"jobName"`
	Status       string `json:"status"`
	StatusReason string `json:"statusReason,omitempty"`
	CreatedAt    int64  `json:"createdAt,omitempty"`
	StartedAt    int64  `json:"startedAt,omitempty"`
	StoppedAt    int64  `json:"stoppedAt,omitempty"`
	Container    struct {
		ExitCode      *int   `json:"exitCode,omitempty"`
		LogStreamName string `json:"logStreamName,omitempty"`
	} `json:"container"`
}

// TokenProvider supplies the bearer token for compute API calls. Credential
// refresh is driven by an explicit scheduled task in main, not by the client.
type TokenProvider interface {
	Token() (string, error)
}

// HTTPClient implements Client against the compute service's HTTP API.
type HTTPClient struct {
	baseURL string
	tokens  TokenProvider
	client  *http.Client
}

// NewHTTPClient creates a compute client with a bounded request timeout.
func NewHTTPClient(baseURL string, tokens TokenProvider, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) SubmitJob(ctx context.Context, in SubmitJobInput) (*SubmitJobOutput, error) {
	type containerOverrides struct {
		Command     []string  `json:"command,omitempty"`
		Environment []envPair `json:"environment,omitempty"`
	}
	body := struct {
		JobName            string             `json:"jobName"`
		JobQueue           string             `json:"jobQueue"`
		JobDefinition      string             `json:"jobDefinition"`
		ContainerOverrides containerOverrides `json:"containerOverrides"`
		Tags               map[string]string  `json:"tags,omitempty"`
	}{
		JobName:       in.JobName,
		JobQueue:      in.JobQueue,
		JobDefinition: in.JobDefinition,
		ContainerOverrides: containerOverrides{
			Command:     in.Command,
			Environment: envPairs(in.Environment),
		},
		Tags: in.Tags,
	}

	var out SubmitJobOutput
	if err := c.post(ctx, "/v1/submitjob", body, &out); err != nil {
		return nil, err
	}
	if out.JobID == "" {
		return nil, fmt.Errorf("%w: submission response missing jobId", ErrRejected)
	}
	return &out, nil
}

func (c *HTTPClient) DescribeJobs(ctx context.Context, jobIDs []string) ([]JobDetail, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}

	body := struct {
		Jobs []string `json:"jobs"`
	}{Jobs: jobIDs}

	var out struct {
		Jobs []JobDetail `json:"jobs"`
	}
	if err := c.post(ctx, "/v1/describejobs", body, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

func (c *HTTPClient) TerminateJob(ctx context.Context, jobID, reason string) error {
	body := struct {
		JobID  string `json:"jobId"`
		Reason string `json:"reason"`
	}{JobID: jobID, Reason: reason}

	return c.post(ctx, "/v1/terminatejob", body, &struct{}{})
}

// post sends a JSON request and decodes the response into out.
// Non-2xx responses map to ErrRejected with the service's message attached.
func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("resolving credentials: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var svcErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&svcErr)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, svcErr.Message)
		}
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, svcErr.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding compute response: %w", err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

type envPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func envPairs(env map[string]string) []envPair {
	if len(env) == 0 {
		return nil
	}
	pairs := make([]envPair, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, envPair{Name: k, Value: v})
	}
	return pairs
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
