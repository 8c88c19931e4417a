// Package client wraps the scribe daemon's HTTP API for the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"scribe/internal/api"
)

// Client talks to a running scribe daemon.
//
// The zero timeout is deliberate: transcribe calls block for the length of
// the media. Callers bound individual requests with contexts instead.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New constructs a client for the daemon bound at addr (host:port or URL).
func New(addr string, opts ...Option) *Client {
	base := strings.TrimSpace(addr)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return e.Message
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// Register asks the daemon to ingest a media file by path.
func (c *Client) Register(ctx context.Context, path string) (api.RegisterResponse, error) {
	var out api.RegisterResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", api.RegisterRequest{Path: path}, &out)
	return out, err
}

// ListJobs fetches jobs, optionally filtered by status names.
func (c *Client) ListJobs(ctx context.Context, statuses ...string) ([]api.JobView, error) {
	path := "/api/jobs"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, status := range statuses {
			values.Add("status", status)
		}
		path += "?" + values.Encode()
	}
	var out api.JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob fetches one job with its transcript.
func (c *Client) GetJob(ctx context.Context, id string) (api.JobResponse, error) {
	var out api.JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &out)
	return out, err
}

// DeleteJob removes a job, cancelling it first when running.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil)
}

// Transcribe runs a job to completion. interrupted reports a cooperative
// stop, which is a distinct outcome rather than an error.
func (c *Client) Transcribe(ctx context.Context, id string) (transcript api.TranscribeResponse, interrupted bool, err error) {
	err = c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/transcribe", nil, &transcript)
	var apiErr *APIError
	if err != nil && errors.As(err, &apiErr) && apiErr.StatusCode == api.StatusClientClosedRequest {
		return api.TranscribeResponse{}, true, nil
	}
	return transcript, false, err
}

// Pause suspends the running job.
func (c *Client) Pause(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/pause", nil, nil)
}

// Resume reopens a paused job or re-runs it from its last snapshot.
func (c *Client) Resume(ctx context.Context, id string) (api.ResumeResponse, error) {
	var out api.ResumeResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/resume", nil, &out)
	return out, err
}

// Cancel stops a job if it is currently running; idle jobs are a no-op.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// Progress polls a job's live progress.
func (c *Client) Progress(ctx context.Context, id string) (api.ProgressResponse, error) {
	var out api.ProgressResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id)+"/progress", nil, &out)
	return out, err
}

// Enqueue puts jobs on the FIFO queue.
func (c *Client) Enqueue(ctx context.Context, ids ...string) (int64, error) {
	var out api.EnqueueResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/enqueue", api.EnqueueRequest{IDs: ids}, &out); err != nil {
		return 0, err
	}
	return out.Queued, nil
}

// Clear bulk-deletes job records. Scope is "all", "done", or "failed";
// empty means all.
func (c *Client) Clear(ctx context.Context, scope string) (int64, error) {
	path := "/api/jobs"
	if scope != "" {
		path += "?scope=" + url.QueryEscape(scope)
	}
	var out api.ClearResponse
	if err := c.do(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// StopAll interrupts the running job and demotes the queue.
func (c *Client) StopAll(ctx context.Context) (api.StopResponse, error) {
	var out api.StopResponse
	err := c.do(ctx, http.MethodPost, "/api/transcribe/stop", nil, &out)
	return out, err
}

// Export fetches a rendered transcript document.
func (c *Client) Export(ctx context.Context, id, format string) ([]byte, error) {
	endpoint := c.baseURL + "/api/jobs/" + url.PathEscape(id) + "/export?format=" + url.QueryEscape(format)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var payload api.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &APIError{StatusCode: status, Message: payload.Error}
	}
	var interrupted api.InterruptedResponse
	if err := json.Unmarshal(body, &interrupted); err == nil && interrupted.Status == "interrupted" {
		return &APIError{StatusCode: status, Message: interrupted.Detail}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
