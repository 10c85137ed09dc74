package video

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
	"faceswap/internal/providers/genai"
	"faceswap/internal/providers/retry"
)

// ProviderVeo is the provider key of the video generator.
const ProviderVeo = "veo"

// Operation states reported by Check.
const (
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFiltered   = "filtered"
	StateFailed     = "failed"
)

var aspectRatios = map[string]bool{"16:9": true, "9:16": true}

// Image is the still picture the video starts from.
type Image struct {
	Data []byte
	MIME string
}

// GenerateRequest describes an image-to-video job.
type GenerateRequest struct {
	Prompt      string
	Image       *Image
	AspectRatio string
	RequestID   string
}

// Result is a finished generation whose file still lives at the vendor.
type Result struct {
	Operation string
	VideoURI  string
}

// OperationStatus is the one-shot view of a vendor operation.
type OperationStatus struct {
	Name        string   `json:"name"`
	State       string   `json:"status"`
	Done        bool     `json:"done"`
	VideoURI    string   `json:"videoUri,omitempty"`
	RAIFiltered bool     `json:"raiFiltered"`
	RAIReasons  []string `json:"raiReasons,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type veoClient interface {
	StartVideo(ctx context.Context, req genai.VideoRequest) (string, error)
	Operation(ctx context.Context, name string) (*genai.Operation, error)
	Download(ctx context.Context, uri string) ([]byte, string, error)
	HasCredentials() bool
}

// Options tunes the operation poll loop.
type Options struct {
	PollInterval   time.Duration
	MaxPolls       int
	MaxPromptRunes int
	Logger         *infra.Logger
	Sleep          retry.Sleeper
}

// VeoGenerator drives Veo long-running video operations.
type VeoGenerator struct {
	client veoClient
	opts   Options
}

// NewVeoGenerator wires a Gemini client for video.
func NewVeoGenerator(client veoClient, opts Options) *VeoGenerator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 60
	}
	if opts.MaxPromptRunes <= 0 {
		opts.MaxPromptRunes = 2000
	}
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	return &VeoGenerator{client: client, opts: opts}
}

// Name returns the provider key.
func (v *VeoGenerator) Name() string { return ProviderVeo }

// Validate checks req without touching the network.
func (v *VeoGenerator) Validate(req GenerateRequest) error {
	if req.Image == nil || len(req.Image.Data) == 0 {
		return domain.NewValidationError("sourceImage", "a source image is required")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return domain.NewValidationError("prompt", "prompt is required")
	}
	if n := utf8.RuneCountInString(prompt); n > v.opts.MaxPromptRunes {
		return domain.NewValidationError("prompt", "prompt is %d characters, limit is %d", n, v.opts.MaxPromptRunes)
	}
	if ar := strings.TrimSpace(req.AspectRatio); ar != "" && !aspectRatios[ar] {
		return domain.NewValidationError("aspectRatio", "unsupported aspect ratio %q", ar)
	}
	return nil
}

// Start submits the job and returns the vendor operation name.
func (v *VeoGenerator) Start(ctx context.Context, req GenerateRequest) (string, error) {
	if err := v.Validate(req); err != nil {
		return "", err
	}
	if v.client == nil || !v.client.HasCredentials() {
		return "", fmt.Errorf("%w: veo api key is not configured", domain.ErrProviderFailure)
	}
	vendorReq := genai.VideoRequest{
		Prompt:      strings.TrimSpace(req.Prompt),
		Image:       &genai.InlineImage{Data: req.Image.Data, MIME: req.Image.MIME},
		AspectRatio: strings.TrimSpace(req.AspectRatio),
		RequestID:   req.RequestID,
	}
	return retry.Do(ctx, v.policy(), func(ctx context.Context) (string, error) {
		return v.client.StartVideo(ctx, vendorReq)
	})
}

// Check reads the operation once.
func (v *VeoGenerator) Check(ctx context.Context, name string) (*OperationStatus, error) {
	op, err := retry.Do(ctx, v.policy(), func(ctx context.Context) (*genai.Operation, error) {
		return v.client.Operation(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return statusOf(op), nil
}

func statusOf(op *genai.Operation) *OperationStatus {
	st := &OperationStatus{
		Name:        op.Name,
		Done:        op.Done,
		VideoURI:    op.VideoURI,
		RAIFiltered: op.RAIFiltered > 0,
		RAIReasons:  op.RAIReasons,
		Error:       op.Error,
	}
	switch {
	case !op.Done:
		st.State = StateProcessing
	case st.RAIFiltered:
		st.State = StateFiltered
	case op.Error != "" || op.VideoURI == "":
		st.State = StateFailed
	default:
		st.State = StateCompleted
	}
	return st
}

// Generate starts the job and polls it to completion. RAI filtering is a
// *domain.ContentRejectionError; an exhausted poll budget is
// *domain.TimeoutError.
func (v *VeoGenerator) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	name, err := v.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	v.opts.Logger.Info().Str("operation", name).Str("request_id", req.RequestID).Msg("veo: polling operation")

	st, err := retry.Poll(ctx, retry.PollOptions{
		Attempts: v.opts.MaxPolls,
		Interval: v.opts.PollInterval,
		Sleep:    v.opts.Sleep,
		Source:   "veo operation " + name,
	}, func(ctx context.Context) (*OperationStatus, retry.State, error) {
		st, err := v.Check(ctx, name)
		if err != nil {
			if domain.IsTransient(err) {
				v.opts.Logger.Warn().Err(err).Str("operation", name).Msg("veo: status check failed")
				return nil, retry.Pending, nil
			}
			return nil, retry.Pending, err
		}
		if st.Done {
			return st, retry.Done, nil
		}
		return nil, retry.Pending, nil
	})
	if err != nil {
		return nil, err
	}

	switch st.State {
	case StateCompleted:
		return &Result{Operation: name, VideoURI: st.VideoURI}, nil
	case StateFiltered:
		return nil, domain.NewContentRejection(ProviderVeo, st.RAIReasons...)
	default:
		if st.Error == "" {
			return nil, fmt.Errorf("%w: veo operation %s finished without a video", domain.ErrProviderFailure, name)
		}
		return nil, domain.VendorFailure(ProviderVeo, st.Error)
	}
}

// Download materializes a vendor-hosted video through the key-authenticated
// proxy. Failures are *domain.DownloadError.
func (v *VeoGenerator) Download(ctx context.Context, uri string) (*domain.Artifact, error) {
	data, format, err := v.client.Download(ctx, uri)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &domain.DownloadError{URL: uri, Err: fmt.Errorf("empty body")}
	}
	if !strings.HasPrefix(format, "video/") {
		format = "video/mp4"
	}
	return domain.NewArtifact(data, format), nil
}

func (v *VeoGenerator) policy() retry.Policy {
	return retry.Policy{Name: ProviderVeo, Logger: v.opts.Logger, Sleep: v.opts.Sleep}
}
