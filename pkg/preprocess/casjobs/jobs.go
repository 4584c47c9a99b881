package casjobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/errors"
)

// CasJobs job status codes.
const (
	StatusReady     = 0
	StatusStarted   = 1
	StatusCanceling = 2
	StatusCancelled = 3
	StatusFailed    = 4
	StatusFinished  = 5
)

// JobStatus is the state of one CasJobs query job.
type JobStatus struct {
	JobID   int64  `json:"JobID"`
	Status  int    `json:"Status"`
	Message string `json:"Message"`
}

// Done reports whether the job reached a terminal status.
func (s JobStatus) Done() bool {
	return s.Status == StatusCancelled || s.Status == StatusFailed || s.Status == StatusFinished
}

// SubmitQuery submits a query job in the given search context. The job
// materializes its results as a MyDB table named by table. A "MyDB"
// context needs no job at all (the table already lives there); SubmitQuery
// then returns job ID 0 without a request.
func (c *Client) SubmitQuery(ctx context.Context, query, table, searchContext string) (int64, error) {
	if searchContext == "MyDB" {
		c.logger.Debug("skipping job submission, table already in MyDB",
			slog.String("table", table))
		return 0, nil
	}

	body := map[string]any{
		"Query":    query,
		"TaskName": "redshift-resnet-" + table,
	}
	url := fmt.Sprintf("%s/contexts/%s/jobs", c.baseURL, searchContext)

	resp, err := c.putJSON(ctx, url, body)
	if err != nil {
		return 0, &errors.CasJobsError{Op: "submit", Message: "job submission failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &errors.CasJobsError{Op: "submit", Message: "read job id", Err: err}
	}

	jobID, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, &errors.CasJobsError{Op: "submit", Message: fmt.Sprintf("unparsable job id %q", raw)}
	}

	c.logger.Debug("submitted casjobs query",
		slog.Int64("job_id", jobID),
		slog.String("table", table),
		slog.String("context", searchContext),
	)
	return jobID, nil
}

// JobStatus fetches the current status of a job.
func (c *Client) JobStatus(ctx context.Context, jobID int64) (JobStatus, error) {
	url := fmt.Sprintf("%s/jobs/%d", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return JobStatus{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return JobStatus{}, &errors.CasJobsError{Op: "status", JobID: jobID, Message: "status request failed", Err: err}
	}
	defer resp.Body.Close()

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return JobStatus{}, &errors.CasJobsError{Op: "status", JobID: jobID, Message: "decode status", Err: err}
	}
	return status, nil
}

// WaitForJob polls a job until it finishes. Cancelled and failed jobs
// surface as permanent CasJobsErrors; a job still running when the wait
// budget is spent surfaces as exhausted retries.
func (c *Client) WaitForJob(ctx context.Context, jobID int64) (JobStatus, error) {
	result := errors.WithRetryContext(ctx, c.waitCfg, func(ctx context.Context) (JobStatus, error) {
		status, err := c.JobStatus(ctx, jobID)
		if err != nil {
			return JobStatus{}, err
		}

		switch status.Status {
		case StatusFinished:
			return status, nil
		case StatusCancelled, StatusFailed:
			message := status.Message
			if message == "" {
				message = fmt.Sprintf("job ended with status %d", status.Status)
			}
			return JobStatus{}, &errors.CasJobsError{Op: "wait", JobID: jobID, Message: message}
		default:
			return JobStatus{}, errors.Transient(
				fmt.Errorf("job %d still running (status %d)", jobID, status.Status),
				"waiting for job")
		}
	})

	if result.Err != nil {
		return JobStatus{}, result.Err
	}
	c.logger.Debug("casjobs query finished",
		slog.Int64("job_id", jobID),
		slog.Int("attempts", result.Attempts),
	)
	return result.Value, nil
}

// putJSON issues a PUT with a JSON body and returns the response if the
// status is 2xx.
func (c *Client) putJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}
