// Package faceswap talks to a hosted face-swap model exposed through a
// predictions API: a prediction is created, then polled until it settles.
package faceswap

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
)

const providerName = "faceswap"

// Prediction statuses reported by the API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("faceswap: api key is required")

// Options configures the predictions client.
type Options struct {
	APIKey     string
	BaseURL    string
	Version    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client creates and reads face-swap predictions.
type Client struct {
	apiKey     string
	baseURL    string
	version    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Image is an inline picture.
type Image struct {
	Data []byte
	MIME string
}

// SwapRequest puts the face found in Face onto Target.
type SwapRequest struct {
	Target    Image
	Face      Image
	RequestID string
}

// Prediction is the normalized state of one prediction.
type Prediction struct {
	ID     string
	Status string
	Output string
	Error  string
}

// Settled reports whether the prediction reached a final status.
func (p *Prediction) Settled() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

type createRequest struct {
	Version string      `json:"version"`
	Input   createInput `json:"input"`
}

type createInput struct {
	TargetImage string `json:"target_image"`
	SwapImage   string `json:"swap_image"`
}

// NewClient constructs a client with defaults for unset options.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		version:    strings.TrimSpace(opts.Version),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Create starts a prediction and returns its initial state.
func (c *Client) Create(ctx context.Context, req SwapRequest) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if len(req.Target.Data) == 0 {
		return nil, domain.NewValidationError("sourceImage", "target image is required")
	}
	if len(req.Face.Data) == 0 {
		return nil, domain.NewValidationError("referenceImage", "face image is required")
	}
	payload := createRequest{
		Version: c.version,
		Input: createInput{
			TargetImage: dataURI(req.Target),
			SwapImage:   dataURI(req.Face),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("faceswap: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("faceswap: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	pred, err := c.do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("prediction", pred.ID).
		Msg("faceswap: prediction created")
	return pred, nil
}

// Get reads the current state of prediction id.
func (c *Client) Get(ctx context.Context, id string) (*Prediction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.NewValidationError("prediction", "id is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("faceswap: build request: %w", err)
	}
	return c.do(ctx, httpReq)
}

// Download fetches the output file of a prediction.
func (c *Client) Download(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", &domain.DownloadError{URL: target, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &domain.DownloadError{URL: target, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", &domain.DownloadError{URL: target, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &domain.DownloadError{URL: target, Err: err}
	}
	format := resp.Header.Get("Content-Type")
	if format == "" || format == "application/octet-stream" {
		format = domain.DetectMIME(data)
	}
	return data, format, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*Prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.ProviderTransientError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderTransientError{Provider: providerName, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		detail := gjson.GetBytes(raw, "detail").String()
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		switch {
		case domain.TransientStatus(resp.StatusCode):
			return nil, &domain.ProviderTransientError{Provider: providerName, StatusCode: resp.StatusCode, Err: errors.New(detail)}
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("faceswap: %w: %s", domain.ErrNotFound, detail)
		case resp.StatusCode == http.StatusUnprocessableEntity:
			return nil, domain.NewValidationError("input", "%s", detail)
		default:
			return nil, fmt.Errorf("%w: faceswap status %d: %s", domain.ErrProviderFailure, resp.StatusCode, detail)
		}
	}
	return parsePrediction(raw), nil
}

func parsePrediction(raw []byte) *Prediction {
	doc := gjson.ParseBytes(raw)
	output := doc.Get("output")
	if output.IsArray() {
		output = output.Get("0")
	}
	return &Prediction{
		ID:     doc.Get("id").String(),
		Status: doc.Get("status").String(),
		Output: output.String(),
		Error:  doc.Get("error").String(),
	}
}

func dataURI(img Image) string {
	mime := img.MIME
	if mime == "" {
		mime = domain.DetectMIME(img.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
