// Package batch implements the batch job lifecycle: turning logical job
// requests into compute-service submissions, expanding bulk requests into
// tracked batches, and reducing live per-job states into aggregate status.
package batch

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/devarsh/jobfleet/internal/compute"
	"github.com/devarsh/jobfleet/pkg/models"
)

// maxJobNameLen is the compute service's job name length limit.
const maxJobNameLen = 128

const defaultSubmitTimeout = 15 * time.Second

var reUnsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

// SubmitterConfig carries the compute-side placement settings every
// submission shares.
type SubmitterConfig struct {
	JobQueue       string
	JobDefinition  string
	OutputBucket   string
	RequestTimeout time.Duration
}

// Submitter turns one JobRequest into one compute-service submission.
// No retries happen at this layer; retry policy belongs to the transport.
type Submitter struct {
	compute      compute.Client
	queue        string
	definition   string
	outputBucket string
	timeout      time.Duration
}

// NewSubmitter creates a Submitter.
func NewSubmitter(client compute.Client, cfg SubmitterConfig) *Submitter {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	return &Submitter{
		compute:      client,
		queue:        cfg.JobQueue,
		definition:   cfg.JobDefinition,
		outputBucket: cfg.OutputBucket,
		timeout:      timeout,
	}
}

// Submit validates the request, maps it onto the service's container-override
// schema, and issues one submission call. The command travels as a positional
// argument vector, never interpolated into a shell string.
func (s *Submitter) Submit(ctx context.Context, req models.JobRequest) (models.JobHandle, error) {
	if err := ValidateRequest(req); err != nil {
		return models.JobHandle{}, err
	}

	jobName := req.Name
	if jobName == "" {
		jobName = DeriveJobName(req.Source, req.Command)
	}

	command := []string{
		"--output", fmt.Sprintf("transformations/%s/", jobName),
		"--command", req.Command,
	}
	if req.Source != "" {
		command = append([]string{"--source", req.Source}, command...)
	}

	var env map[string]string
	if s.outputBucket != "" {
		env = map[string]string{"OUTPUT_BUCKET": s.outputBucket}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.compute.SubmitJob(ctx, compute.SubmitJobInput{
		JobName:       jobName,
		JobQueue:      s.queue,
		JobDefinition: s.definition,
		Command:       command,
		Environment:   env,
	})
	if err != nil {
		return models.JobHandle{}, fmt.Errorf("submit job %s: %w", jobName, err)
	}

	if out.JobName != "" {
		jobName = out.JobName
	}

	return models.JobHandle{
		JobID:       out.JobID,
		JobName:     jobName,
		Source:      req.Source,
		Command:     req.Command,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// ValidateRequest checks a request before any network call: the command must
// be non-empty and the source, when present, must be a git URL or an
// object-store URI.
func ValidateRequest(req models.JobRequest) error {
	if strings.TrimSpace(req.Command) == "" {
		return fmt.Errorf("%w: command is required", ErrInvalidRequest)
	}
	if req.Source != "" && !validSource(req.Source) {
		return fmt.Errorf("%w: unsupported source %q (expected a git URL or s3:// URI)",
			ErrInvalidRequest, req.Source)
	}
	return nil
}

func validSource(source string) bool {
	switch {
	case strings.HasPrefix(source, "s3://"):
		return true
	case strings.HasPrefix(source, "https://github.com/"),
		strings.HasPrefix(source, "https://gitlab.com/"),
		strings.HasPrefix(source, "https://bitbucket.org/"):
		return true
	case strings.HasSuffix(source, ".git"):
		return true
	}
	return false
}

// DeriveJobName builds a job name from the source's base identifier and a
// normalized fragment of the command, truncated to the service's limit.
func DeriveJobName(source, command string) string {
	base := "job"
	if source != "" {
		base = sourceBase(source)
	} else if parts := strings.Fields(command); len(parts) >= 2 {
		// No source: name after the subcommand words instead.
		end := len(parts)
		if end > 4 {
			end = 4
		}
		base = strings.Join(parts[1:end], "-")
	}

	name := base + "-" + transformFragment(command)
	name = reUnsafeNameChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "job"
	}
	if len(name) > maxJobNameLen {
		name = name[:maxJobNameLen]
	}
	return name
}

// sourceBase extracts the repo or archive name from a source location.
func sourceBase(source string) string {
	base := source
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".git")
	base = strings.TrimSuffix(base, ".zip")
	if base == "" {
		return "job"
	}
	return base
}

// transformFragment pulls the transformation name out of a "-n <name>" flag,
// keeping only the segment after the last slash.
func transformFragment(command string) string {
	_, after, found := strings.Cut(command, "-n ")
	if !found {
		return "transform"
	}
	fields := strings.Fields(after)
	if len(fields) == 0 {
		return "transform"
	}
	full := fields[0]
	if i := strings.LastIndex(full, "/"); i >= 0 {
		full = full[i+1:]
	}
	if full == "" {
		return "transform"
	}
	return full
}
