// Package apiclient talks to the generation API over HTTP. It backs the
// swapctl CLI and lets a Poller wait on jobs running in another process.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"faceswap/internal/domain"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Locale     string
	HTTPClient *http.Client
}

// Client calls the generation API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	locale     string
	httpClient *http.Client
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d (%s): %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the error envelope onto domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case domain.CodeInsufficientCredits:
		return domain.ErrInsufficientCredits
	case domain.CodeTokenExpired:
		return domain.ErrTokenExpired
	}
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	}
	return nil
}

// NewClient builds a client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("apiclient: base url is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		locale:     opts.Locale,
		httpClient: opts.HTTPClient,
	}, nil
}

// JobRequest is the body of POST /v1/jobs/{provider}. Images are base64 or
// data URIs.
type JobRequest struct {
	SourceImage    string   `json:"sourceImage"`
	SourceImages   []string `json:"sourceImages,omitempty"`
	ReferenceImage string   `json:"referenceImage,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
}

// PipelineRequest is the body of POST /v1/pipelines/faceswap.
type PipelineRequest struct {
	SourceImage    string `json:"sourceImage"`
	ReferenceImage string `json:"referenceImage,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
	ClothingPrompt string `json:"clothingPrompt,omitempty"`
	Provider       string `json:"provider,omitempty"`
}

// VideoRequest is the body of POST /v1/videos.
type VideoRequest struct {
	SourceImage string `json:"sourceImage"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type startedResponse struct {
	TaskID string `json:"taskId"`
}

// StatusResponse mirrors the status endpoint body.
type StatusResponse struct {
	TaskID      string           `json:"taskId"`
	Status      string           `json:"status"`
	Result      *domain.Artifact `json:"result,omitempty"`
	Method      string           `json:"method,omitempty"`
	Error       string           `json:"error,omitempty"`
	Code        string           `json:"code,omitempty"`
	Detail      string           `json:"detail,omitempty"`
	Reasons     []string         `json:"reasons,omitempty"`
	Expired     bool             `json:"expired,omitempty"`
	RAIFiltered bool             `json:"raiFiltered,omitempty"`
}

// SubmitJob starts a single-provider edit and returns the task id.
func (c *Client) SubmitJob(ctx context.Context, provider string, req JobRequest) (string, error) {
	return c.start(ctx, "/v1/jobs/"+url.PathEscape(provider), req)
}

// SubmitPipeline starts the face-swap pipeline and returns the task id.
func (c *Client) SubmitPipeline(ctx context.Context, req PipelineRequest) (string, error) {
	return c.start(ctx, "/v1/pipelines/faceswap", req)
}

// SubmitVideo starts an image-to-video job and returns the task id.
func (c *Client) SubmitVideo(ctx context.Context, req VideoRequest) (string, error) {
	return c.start(ctx, "/v1/videos", req)
}

func (c *Client) start(ctx context.Context, path string, body any) (string, error) {
	var out startedResponse
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", errors.New("apiclient: response carried no task id")
	}
	return out.TaskID, nil
}

// Status reads the raw status body for id.
func (c *Client) Status(ctx context.Context, id string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobStatus implements jobs.StatusFetcher. not_found bodies become
// domain.ErrNotFound, or domain.ErrJobExpired when the job aged out.
func (c *Client) JobStatus(ctx context.Context, id string) (*domain.Job, error) {
	st, err := c.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	return st.Job()
}

// Job converts a status body into a job record.
func (s *StatusResponse) Job() (*domain.Job, error) {
	job := &domain.Job{ID: s.TaskID, Method: s.Method, Result: s.Result}
	switch s.Status {
	case domain.CodeNotFound:
		if s.Expired {
			return nil, fmt.Errorf("job %s: %w", s.TaskID, domain.ErrJobExpired)
		}
		return nil, fmt.Errorf("job %s: %w", s.TaskID, domain.ErrNotFound)
	case string(domain.JobStatusProcessing):
		job.Status = domain.JobStatusProcessing
	case string(domain.JobStatusCompleted):
		job.Status = domain.JobStatusCompleted
	case string(domain.JobStatusFailed), "filtered":
		job.Status = domain.JobStatusFailed
		job.Error = s.Error
		job.ErrorCode = s.Code
		job.Reasons = s.Reasons
	default:
		return nil, fmt.Errorf("apiclient: unknown job status %q", s.Status)
	}
	return job, nil
}

// Credits returns the caller's balance.
func (c *Client) Credits(ctx context.Context) (*domain.UserCredits, error) {
	var out domain.UserCredits
	if err := c.do(ctx, http.MethodGet, "/v1/credits", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists the caller's unexpired generations.
func (c *Client) History(ctx context.Context, limit int) ([]domain.GenerationRecord, error) {
	path := "/v1/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Items []domain.GenerationRecord `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.locale != "" {
		req.Header.Set("X-Locale", c.locale)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{
			Status:  resp.StatusCode,
			Code:    gjson.GetBytes(raw, "error.code").String(),
			Message: gjson.GetBytes(raw, "error.message").String(),
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}
