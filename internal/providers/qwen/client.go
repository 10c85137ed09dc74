package qwen

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

	"faceswap/internal/domain"
	"faceswap/internal/infra"
)

const providerName = "qwen"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("qwen: api key is required")

// Options configures the DashScope Qwen client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	NegativePrompt string
	Watermark      bool
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the DashScope Qwen image-edit API.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	negativePrompt string
	watermark      bool
	httpClient     *http.Client
	logger         *infra.Logger
}

// SourceImage is one input picture for an edit.
type SourceImage struct {
	Data []byte
	MIME string
	URL  string
}

// EditRequest captures the inputs of one image edit call.
type EditRequest struct {
	Prompt    string
	Images    []SourceImage
	RequestID string
}

// ImageAsset is the normalized result from the Qwen API.
type ImageAsset struct {
	URL    string
	Data   []byte
	Format string
}

type editRequest struct {
	Model      string     `json:"model"`
	Input      editInput  `json:"input"`
	Parameters editParams `json:"parameters"`
}

type editInput struct {
	Messages []editMessage `json:"messages"`
}

type editMessage struct {
	Role    string        `json:"role"`
	Content []editContent `json:"content"`
}

type editContent struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

type editParams struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Watermark      *bool  `json:"watermark,omitempty"`
}

type editResponse struct {
	Output struct {
		Choices []struct {
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Content []struct {
					Image string `json:"image"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "qwen-image-edit"
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		apiKey:         strings.TrimSpace(opts.APIKey),
		baseURL:        baseURL,
		model:          model,
		negativePrompt: strings.TrimSpace(opts.NegativePrompt),
		watermark:      opts.Watermark,
		httpClient:     httpClient,
		logger:         logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// EditImage invokes the DashScope API once and returns the edited image.
// Network failures, 429 and 5xx are *domain.ProviderTransientError; a
// DataInspectionFailed verdict is *domain.ContentRejectionError.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (*ImageAsset, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.NewValidationError("prompt", "prompt is required")
	}
	if len(req.Images) == 0 {
		return nil, domain.NewValidationError("sourceImage", "at least one image is required")
	}

	content := make([]editContent, 0, len(req.Images)+1)
	for i := range req.Images {
		encoded := encodeImageContent(&req.Images[i])
		if encoded == "" {
			return nil, domain.NewValidationError("sourceImage", "image %d has no data", i+1)
		}
		content = append(content, editContent{Image: encoded})
	}
	content = append(content, editContent{Text: prompt})

	watermark := c.watermark
	payload := editRequest{
		Model: c.model,
		Input: editInput{Messages: []editMessage{{Role: "user", Content: content}}},
		Parameters: editParams{
			NegativePrompt: c.negativePrompt,
			Watermark:      &watermark,
		},
	}

	endpoint := c.baseURL + "/services/aigc/multimodal-generation/generation"
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("qwen: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("qwen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
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

	var decoded editResponse
	decodeErr := json.Unmarshal(raw, &decoded)
	if err := classify(resp.StatusCode, decoded, raw); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("qwen: decode response: %w", decodeErr)
	}

	imageURL := firstImageURL(decoded)
	if imageURL == "" {
		return nil, fmt.Errorf("%w: qwen returned no image", domain.ErrProviderFailure)
	}
	data, format, err := c.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", req.RequestID).
		Str("vendor_request_id", decoded.RequestID).
		Int("images", len(req.Images)).
		Msg("qwen: edited image")
	return &ImageAsset{URL: imageURL, Data: data, Format: format}, nil
}

func classify(status int, decoded editResponse, raw []byte) error {
	if decoded.Code == "DataInspectionFailed" || strings.Contains(decoded.Code, "InappropriateContent") {
		return domain.NewContentRejection(providerName, decoded.Message)
	}
	switch {
	case status < 300 && decoded.Code == "":
		return nil
	case domain.TransientStatus(status), decoded.Code == "Throttling" || strings.HasPrefix(decoded.Code, "Throttling."):
		return &domain.ProviderTransientError{Provider: providerName, StatusCode: status, Err: errors.New(vendorMessage(decoded, raw))}
	case status == http.StatusBadRequest && decoded.Code == "InvalidParameter":
		return domain.NewValidationError("sourceImage", "%s", decoded.Message)
	default:
		return fmt.Errorf("%w: qwen status %d: %s", domain.ErrProviderFailure, status, vendorMessage(decoded, raw))
	}
}

func vendorMessage(decoded editResponse, raw []byte) string {
	if decoded.Message != "" {
		return fmt.Sprintf("%s (%s)", decoded.Message, decoded.Code)
	}
	return strings.TrimSpace(string(raw))
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", &domain.DownloadError{URL: imageURL, Err: errors.New("invalid url")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", &domain.DownloadError{URL: imageURL, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &domain.ProviderTransientError{Provider: providerName, Err: &domain.DownloadError{URL: imageURL, Err: err}}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", &domain.DownloadError{URL: imageURL, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &domain.DownloadError{URL: imageURL, Err: err}
	}
	format := resp.Header.Get("Content-Type")
	if format == "" || format == "application/octet-stream" {
		format = domain.DetectMIME(data)
	}
	return data, format, nil
}

// encodeImageContent renders a source image as the data URI or URL the API
// accepts in an image content node.
func encodeImageContent(src *SourceImage) string {
	if src == nil {
		return ""
	}
	if len(src.Data) > 0 {
		mime := strings.TrimSpace(src.MIME)
		if mime == "" {
			mime = domain.DetectMIME(src.Data)
		}
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(src.Data)
	}
	return strings.TrimSpace(src.URL)
}

func firstImageURL(resp editResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, content := range choice.Message.Content {
			if u := strings.TrimSpace(content.Image); u != "" {
				return u
			}
		}
	}
	return ""
}
