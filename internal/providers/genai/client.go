package genai

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

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	VideoModel string
	HTTPClient *http.Client
	Logger     *infra.Logger
	// Provider labels errors; defaults to "gemini".
	Provider string
}

// Client is a thin facade over the Gemini generateContent and Veo
// long-running prediction endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	imageModel string
	videoModel string
	provider   string
	httpClient *http.Client
	logger     *infra.Logger
}

// InlineImage is an image sent inline with a request.
type InlineImage struct {
	Data []byte
	MIME string
}

// EditRequest asks Gemini to edit one or more images guided by a prompt.
type EditRequest struct {
	Prompt    string
	Images    []InlineImage
	RequestID string
}

// VideoRequest starts an image-to-video generation.
type VideoRequest struct {
	Prompt      string
	Image       *InlineImage
	AspectRatio string
	RequestID   string
}

// ImageAsset is an image returned inline by Gemini.
type ImageAsset struct {
	Data   []byte
	Format string
}

// Operation is the state of a long-running video operation.
type Operation struct {
	Name        string
	Done        bool
	VideoURI    string
	RAIFiltered int
	RAIReasons  []string
	Error       string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	FinishMsg    string        `json:"finishMessage,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback struct {
		BlockReason        string `json:"blockReason,omitempty"`
		BlockReasonMessage string `json:"blockReasonMessage,omitempty"`
	} `json:"promptFeedback"`
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type veoRequest struct {
	Instances  []veoInstance  `json:"instances"`
	Parameters *veoParameters `json:"parameters,omitempty"`
}

var safetyFinishReasons = map[string]bool{
	"SAFETY":                   true,
	"IMAGE_SAFETY":             true,
	"PROHIBITED_CONTENT":       true,
	"IMAGE_PROHIBITED_CONTENT": true,
	"BLOCKLIST":                true,
	"SPII":                     true,
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image-preview"
	}
	videoModel := strings.TrimSpace(opts.VideoModel)
	if videoModel == "" {
		videoModel = "veo-3.0-generate-preview"
	}
	provider := opts.Provider
	if provider == "" {
		provider = "gemini"
	}

	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		imageModel: imageModel,
		videoModel: videoModel,
		provider:   provider,
		httpClient: client,
		logger:     logger,
	}, nil
}

// ImageModel returns the configured Gemini image model identifier.
func (c *Client) ImageModel() string {
	return c.imageModel
}

// VideoModel returns the configured Veo model identifier.
func (c *Client) VideoModel() string {
	return c.videoModel
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// EditImage sends the prompt and images to generateContent and returns the
// first inline image of the reply. Safety blocks surface as
// *domain.ContentRejectionError.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (*ImageAsset, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("%w: %s api key is not configured", domain.ErrProviderFailure, c.provider)
	}
	parts := []geminiPart{{Text: strings.TrimSpace(req.Prompt)}}
	for _, img := range req.Images {
		if len(img.Data) == 0 {
			continue
		}
		mime := img.MIME
		if mime == "" {
			mime = domain.DetectMIME(img.Data)
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	payload := geminiGenerateContentRequest{
		Contents:         []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	}

	raw, err := c.post(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.imageModel)), payload)
	if err != nil {
		return nil, err
	}
	var response geminiGenerateContentResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	asset, err := c.extractImage(response)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.imageModel).
		Int("images", len(req.Images)).
		Msg("genai: edited image")
	return asset, nil
}

func (c *Client) extractImage(resp geminiGenerateContentResponse) (*ImageAsset, error) {
	if block := resp.PromptFeedback.BlockReason; block != "" {
		return nil, domain.NewContentRejection(c.provider, block, resp.PromptFeedback.BlockReasonMessage)
	}
	var texts []string
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("%s: decode inline data: %w", c.provider, err)
				}
				format := part.InlineData.MimeType
				if format == "" {
					format = domain.DetectMIME(data)
				}
				return &ImageAsset{Data: data, Format: format}, nil
			}
			if t := strings.TrimSpace(part.Text); t != "" {
				texts = append(texts, t)
			}
		}
		if safetyFinishReasons[candidate.FinishReason] {
			return nil, domain.NewContentRejection(c.provider, append([]string{candidate.FinishReason, candidate.FinishMsg}, texts...)...)
		}
	}
	if len(texts) > 0 {
		return nil, fmt.Errorf("%w: %s returned text without an image: %s", domain.ErrProviderFailure, c.provider, strings.Join(texts, " "))
	}
	return nil, fmt.Errorf("%w: %s returned no image", domain.ErrProviderFailure, c.provider)
}

// StartVideo submits an image-to-video job and returns the operation name.
func (c *Client) StartVideo(ctx context.Context, req VideoRequest) (string, error) {
	if !c.HasCredentials() {
		return "", fmt.Errorf("%w: %s api key is not configured", domain.ErrProviderFailure, c.provider)
	}
	instance := veoInstance{Prompt: strings.TrimSpace(req.Prompt)}
	if req.Image != nil && len(req.Image.Data) > 0 {
		mime := req.Image.MIME
		if mime == "" {
			mime = domain.DetectMIME(req.Image.Data)
		}
		instance.Image = &veoImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.Image.Data),
			MimeType:           mime,
		}
	}
	payload := veoRequest{Instances: []veoInstance{instance}}
	if ar := strings.TrimSpace(req.AspectRatio); ar != "" {
		payload.Parameters = &veoParameters{AspectRatio: ar}
	}

	raw, err := c.post(ctx, fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.videoModel)), payload)
	if err != nil {
		return "", err
	}
	name := gjson.GetBytes(raw, "name").String()
	if name == "" {
		return "", fmt.Errorf("%w: %s returned no operation name", domain.ErrProviderFailure, c.provider)
	}
	c.logger.Info().
		Str("request_id", req.RequestID).
		Str("model", c.videoModel).
		Str("operation", name).
		Msg("genai: video operation started")
	return name, nil
}

// Operation fetches the current state of a long-running operation.
func (c *Client) Operation(ctx context.Context, name string) (*Operation, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" || strings.Contains(name, "..") {
		return nil, domain.NewValidationError("operation", "invalid operation name")
	}
	raw, err := c.get(ctx, "/"+name)
	if err != nil {
		return nil, err
	}
	return parseOperation(raw), nil
}

func parseOperation(raw []byte) *Operation {
	doc := gjson.ParseBytes(raw)
	op := &Operation{
		Name:  doc.Get("name").String(),
		Done:  doc.Get("done").Bool(),
		Error: doc.Get("error.message").String(),
	}
	resp := doc.Get("response.generateVideoResponse")
	op.VideoURI = resp.Get("generatedSamples.0.video.uri").String()
	op.RAIFiltered = int(resp.Get("raiMediaFilteredCount").Int())
	for _, r := range resp.Get("raiMediaFilteredReasons").Array() {
		op.RAIReasons = append(op.RAIReasons, r.String())
	}
	return op
}

// Download fetches a vendor-hosted file, attaching the API key. Failures are
// *domain.DownloadError.
func (c *Client) Download(ctx context.Context, uri string) ([]byte, string, error) {
	target := strings.TrimSpace(uri)
	if target == "" {
		return nil, "", &domain.DownloadError{URL: uri, Err: errors.New("empty uri")}
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(target, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", &domain.DownloadError{URL: uri, Err: err}
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &domain.DownloadError{URL: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", &domain.DownloadError{URL: uri, StatusCode: resp.StatusCode}
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &domain.DownloadError{URL: uri, Err: err}
	}
	format := resp.Header.Get("Content-Type")
	if format == "" || format == "application/octet-stream" {
		format = domain.DetectMIME(blob)
	}
	return blob, format, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", c.provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, error) {
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.ProviderTransientError{Provider: c.provider, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderTransientError{Provider: c.provider, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < http.StatusBadRequest {
		return raw, nil
	}

	message := gjson.GetBytes(raw, "error.message").String()
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	switch {
	case domain.TransientStatus(resp.StatusCode):
		return nil, &domain.ProviderTransientError{Provider: c.provider, StatusCode: resp.StatusCode, Err: errors.New(message)}
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w: %s", c.provider, domain.ErrNotFound, message)
	case resp.StatusCode == http.StatusBadRequest && gjson.GetBytes(raw, "error.status").String() == "INVALID_ARGUMENT":
		return nil, domain.NewValidationError("request", "%s", message)
	default:
		return nil, fmt.Errorf("%w: %s status %d: %s", domain.ErrProviderFailure, c.provider, resp.StatusCode, message)
	}
}
