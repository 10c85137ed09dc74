package image

import (
	"context"
	"fmt"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
	"faceswap/internal/providers/genai"
	"faceswap/internal/providers/retry"
)

type geminiEditClient interface {
	EditImage(context.Context, genai.EditRequest) (*genai.ImageAsset, error)
	HasCredentials() bool
}

// GeminiEditor edits images through Gemini's multimodal generateContent. It
// accepts an optional reference face and also serves the clothing step.
type GeminiEditor struct {
	client geminiEditClient
	opts   EditorOptions
}

// NewGeminiEditor wires a Gemini client.
func NewGeminiEditor(client geminiEditClient, opts EditorOptions) *GeminiEditor {
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	return &GeminiEditor{client: client, opts: opts}
}

// Name returns the provider key.
func (g *GeminiEditor) Name() string { return ProviderGemini }

// Validate checks req without a network call.
func (g *GeminiEditor) Validate(req GenerateRequest) error {
	return Validate(req, textDrivenRequirements(req, g.opts.MaxPromptRunes))
}

// Generate fulfils the Generator interface.
func (g *GeminiEditor) Generate(ctx context.Context, req GenerateRequest) (*domain.Artifact, error) {
	if err := g.Validate(req); err != nil {
		return nil, err
	}
	if g.client == nil || !g.client.HasCredentials() {
		return nil, fmt.Errorf("%w: gemini api key is not configured", domain.ErrProviderFailure)
	}

	images := make([]genai.InlineImage, 0, len(req.SourceImages)+1)
	for _, src := range req.SourceImages {
		images = append(images, genai.InlineImage{Data: src.Data, MIME: src.MIME})
	}
	if req.Reference != nil {
		images = append(images, genai.InlineImage{Data: req.Reference.Data, MIME: req.Reference.MIME})
	}
	editReq := genai.EditRequest{
		Prompt:    req.Instruction(),
		Images:    images,
		RequestID: req.RequestID,
	}

	policy := retry.Policy{Name: ProviderGemini, Logger: g.opts.Logger, Sleep: g.opts.Sleep}
	asset, err := retry.Do(ctx, policy, func(ctx context.Context) (*genai.ImageAsset, error) {
		return g.client.EditImage(ctx, editReq)
	})
	if err != nil {
		return nil, err
	}
	return artifactFrom(asset.Data, asset.Format)
}

var _ Generator = (*GeminiEditor)(nil)
