package image

import (
	"context"
	"fmt"
	"time"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
	"faceswap/internal/providers/faceswap"
	"faceswap/internal/providers/retry"
)

type faceSwapClient interface {
	Create(context.Context, faceswap.SwapRequest) (*faceswap.Prediction, error)
	Get(ctx context.Context, id string) (*faceswap.Prediction, error)
	Download(ctx context.Context, url string) ([]byte, string, error)
	HasCredentials() bool
}

// FaceSwapOptions tunes the prediction poll loop.
type FaceSwapOptions struct {
	PollInterval   time.Duration
	MaxPolls       int
	MaxPromptRunes int
	Logger         *infra.Logger
	Sleep          retry.Sleeper
}

// FaceSwapper is the reference-driven provider: it starts a prediction and
// polls it until the vendor settles.
type FaceSwapper struct {
	client faceSwapClient
	opts   FaceSwapOptions
}

// NewFaceSwapper wires a predictions client.
func NewFaceSwapper(client faceSwapClient, opts FaceSwapOptions) *FaceSwapper {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 60
	}
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	return &FaceSwapper{client: client, opts: opts}
}

// Name returns the provider key.
func (g *FaceSwapper) Name() string { return ProviderFaceSwap }

// Validate checks req without a network call. A reference face is required.
func (g *FaceSwapper) Validate(req GenerateRequest) error {
	return Validate(req, Requirements{NeedsReference: true, MaxPromptRunes: g.opts.MaxPromptRunes})
}

// Generate fulfils the Generator interface.
func (g *FaceSwapper) Generate(ctx context.Context, req GenerateRequest) (*domain.Artifact, error) {
	if err := g.Validate(req); err != nil {
		return nil, err
	}
	if g.client == nil || !g.client.HasCredentials() {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, faceswap.ErrMissingAPIKey)
	}

	policy := retry.Policy{Name: ProviderFaceSwap, Logger: g.opts.Logger, Sleep: g.opts.Sleep}
	swapReq := faceswap.SwapRequest{
		Target:    faceswap.Image{Data: req.SourceImages[0].Data, MIME: req.SourceImages[0].MIME},
		Face:      faceswap.Image{Data: req.Reference.Data, MIME: req.Reference.MIME},
		RequestID: req.RequestID,
	}
	pred, err := retry.Do(ctx, policy, func(ctx context.Context) (*faceswap.Prediction, error) {
		return g.client.Create(ctx, swapReq)
	})
	if err != nil {
		return nil, err
	}

	if !pred.Settled() {
		id := pred.ID
		pred, err = retry.Poll(ctx, retry.PollOptions{
			Attempts: g.opts.MaxPolls,
			Interval: g.opts.PollInterval,
			Sleep:    g.opts.Sleep,
			Source:   "faceswap prediction " + id,
		}, func(ctx context.Context) (*faceswap.Prediction, retry.State, error) {
			current, err := g.client.Get(ctx, id)
			if err != nil {
				if domain.IsTransient(err) {
					g.opts.Logger.Warn().Err(err).Str("prediction", id).Msg("faceswap: status check failed")
					return nil, retry.Pending, nil
				}
				return nil, retry.Pending, err
			}
			if current.Settled() {
				return current, retry.Done, nil
			}
			return nil, retry.Pending, nil
		})
		if err != nil {
			return nil, err
		}
	}

	switch pred.Status {
	case faceswap.StatusSucceeded:
	case faceswap.StatusFailed:
		return nil, domain.VendorFailure(ProviderFaceSwap, pred.Error)
	default:
		return nil, fmt.Errorf("%w: faceswap prediction %s ended as %s", domain.ErrProviderFailure, pred.ID, pred.Status)
	}
	if pred.Output == "" {
		return nil, fmt.Errorf("%w: faceswap prediction %s has no output", domain.ErrProviderFailure, pred.ID)
	}

	file, err := retry.Do(ctx, policy, func(ctx context.Context) (downloaded, error) {
		data, format, err := g.client.Download(ctx, pred.Output)
		return downloaded{data: data, format: format}, err
	})
	if err != nil {
		return nil, err
	}
	return artifactFrom(file.data, file.format)
}

type downloaded struct {
	data   []byte
	format string
}

var _ Generator = (*FaceSwapper)(nil)
