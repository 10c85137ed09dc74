package image

import (
	"context"
	"fmt"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
	"faceswap/internal/providers/qwen"
	"faceswap/internal/providers/retry"
)

type qwenEditClient interface {
	EditImage(context.Context, qwen.EditRequest) (*qwen.ImageAsset, error)
	HasCredentials() bool
}

// EditorOptions tunes the text-driven editors.
type EditorOptions struct {
	MaxPromptRunes int
	Logger         *infra.Logger
	// Sleep replaces the retry backoff wait; tests use it to skip delays.
	Sleep retry.Sleeper
}

// QwenEditor edits images with DashScope's Qwen image-edit model.
type QwenEditor struct {
	client qwenEditClient
	opts   EditorOptions
}

// NewQwenEditor wires a Qwen client.
func NewQwenEditor(client qwenEditClient, opts EditorOptions) *QwenEditor {
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	return &QwenEditor{client: client, opts: opts}
}

// Name returns the provider key.
func (g *QwenEditor) Name() string { return ProviderQwen }

// Validate checks req without a network call.
func (g *QwenEditor) Validate(req GenerateRequest) error {
	return Validate(req, textDrivenRequirements(req, g.opts.MaxPromptRunes))
}

// Generate fulfils the Generator interface.
func (g *QwenEditor) Generate(ctx context.Context, req GenerateRequest) (*domain.Artifact, error) {
	if err := g.Validate(req); err != nil {
		return nil, err
	}
	if g.client == nil || !g.client.HasCredentials() {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, qwen.ErrMissingAPIKey)
	}

	images := make([]qwen.SourceImage, 0, len(req.SourceImages)+1)
	for _, src := range req.SourceImages {
		images = append(images, qwen.SourceImage{Data: src.Data, MIME: src.MIME})
	}
	if req.Reference != nil {
		images = append(images, qwen.SourceImage{Data: req.Reference.Data, MIME: req.Reference.MIME})
	}
	editReq := qwen.EditRequest{
		Prompt:    req.Instruction(),
		Images:    images,
		RequestID: req.RequestID,
	}

	policy := retry.Policy{Name: ProviderQwen, Logger: g.opts.Logger, Sleep: g.opts.Sleep}
	asset, err := retry.Do(ctx, policy, func(ctx context.Context) (*qwen.ImageAsset, error) {
		return g.client.EditImage(ctx, editReq)
	})
	if err != nil {
		return nil, err
	}
	return artifactFrom(asset.Data, asset.Format)
}

var _ Generator = (*QwenEditor)(nil)
