// Package pipeline runs the face-swap flow: a primary provider with one
// fallback for step 1, then an optional best-effort clothing change.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
	"faceswap/internal/providers/image"
)

// Request is one pipeline run.
type Request struct {
	Source         image.SourceImage
	Reference      *image.SourceImage
	Prompt         string
	ClothingPrompt string
	// Provider forces the step-1 provider when set.
	Provider  string
	RequestID string
	Locale    string
}

// Result is the pipeline output.
type Result struct {
	Artifact *domain.Artifact
	// Method names the path taken, e.g. "faceswap", "gemini:fallback" or
	// "faceswap+gemini:clothing".
	Method          string
	Provider        string
	FellBack        bool
	ClothingApplied bool
}

// Options configures an Orchestrator.
type Options struct {
	Alternate      string
	Clothing       string
	MaxPromptRunes int
	Logger         *infra.Logger
}

// Orchestrator selects providers and sequences the steps.
type Orchestrator struct {
	registry       *image.Registry
	alternate      string
	clothing       string
	maxPromptRunes int
	logger         *infra.Logger
}

// New builds an orchestrator over registry.
func New(registry *image.Registry, opts Options) *Orchestrator {
	if opts.Alternate == "" {
		opts.Alternate = image.ProviderGemini
	}
	if opts.Clothing == "" {
		opts.Clothing = image.ProviderGemini
	}
	if opts.MaxPromptRunes <= 0 {
		opts.MaxPromptRunes = image.DefaultMaxPromptRunes
	}
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	return &Orchestrator{
		registry:       registry,
		alternate:      opts.Alternate,
		clothing:       opts.Clothing,
		maxPromptRunes: opts.MaxPromptRunes,
		logger:         opts.Logger,
	}
}

// Select returns the step-1 provider for req.
func (o *Orchestrator) Select(req Request) string {
	if p := strings.ToLower(strings.TrimSpace(req.Provider)); p != "" {
		return p
	}
	if req.Reference != nil && len(req.Reference.Data) > 0 {
		return image.ProviderFaceSwap
	}
	return image.ProviderQwen
}

// Validate checks req against the step-1 provider and the clothing prompt
// ceiling without calling any vendor.
func (o *Orchestrator) Validate(req Request) error {
	_, _, err := o.prepare(req)
	return err
}

func (o *Orchestrator) prepare(req Request) (image.Generator, image.GenerateRequest, error) {
	step1 := image.GenerateRequest{
		SourceImages: []image.SourceImage{req.Source},
		Reference:    req.Reference,
		Prompt:       req.Prompt,
		RequestID:    req.RequestID,
		Locale:       req.Locale,
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(req.ClothingPrompt)); n > o.maxPromptRunes {
		return nil, step1, domain.NewValidationError("clothingPrompt", "clothing prompt is %d characters, limit is %d", n, o.maxPromptRunes)
	}
	primary, err := o.registry.Get(o.Select(req))
	if err != nil {
		return nil, step1, domain.NewValidationError("provider", "%v", err)
	}
	if err := primary.Validate(step1); err != nil {
		return nil, step1, err
	}
	return primary, step1, nil
}

// Run executes the pipeline. Validation errors and content rejections from
// step 1 are returned as is; any other step-1 failure is retried once on the
// alternate provider. A step-2 failure leaves the step-1 result in place.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	primary, step1, err := o.prepare(req)
	if err != nil {
		return nil, err
	}
	primaryName := primary.Name()
	log := o.logger.With().Str("request_id", req.RequestID).Logger()

	result := &Result{Provider: primaryName, Method: primaryName}
	art, err := primary.Generate(ctx, step1)
	if err != nil {
		if !o.shouldFallBack(primaryName, err) || ctx.Err() != nil {
			return nil, err
		}
		log.Warn().Err(err).Str("provider", primaryName).Str("fallback", o.alternate).Msg("pipeline: primary failed, switching to fallback")
		alternate, aerr := o.registry.Get(o.alternate)
		if aerr != nil {
			return nil, err
		}
		art, aerr = alternate.Generate(ctx, step1)
		if aerr != nil {
			return nil, fmt.Errorf("%s failed (%v), fallback %s: %w", primaryName, err, o.alternate, aerr)
		}
		result.Provider = o.alternate
		result.Method = o.alternate + ":fallback"
		result.FellBack = true
	}
	result.Artifact = art

	if strings.TrimSpace(req.ClothingPrompt) == "" {
		return result, nil
	}
	o.applyClothing(ctx, log, req, result)
	return result, nil
}

func (o *Orchestrator) shouldFallBack(primary string, err error) bool {
	if primary == o.alternate || domain.IsTerminalFailure(err) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func (o *Orchestrator) applyClothing(ctx context.Context, log infra.Logger, req Request, result *Result) {
	gen, err := o.registry.Get(o.clothing)
	if err != nil {
		log.Warn().Err(err).Msg("pipeline: clothing provider unavailable, keeping step-1 result")
		return
	}
	data, err := result.Artifact.Bytes()
	if err != nil {
		log.Warn().Err(err).Msg("pipeline: step-1 artifact unreadable, skipping clothing")
		return
	}
	art, err := gen.Generate(ctx, image.GenerateRequest{
		SourceImages: []image.SourceImage{{Data: data, MIME: result.Artifact.MimeType}},
		Prompt:       req.ClothingPrompt,
		Task:         image.TaskClothing,
		RequestID:    req.RequestID,
		Locale:       req.Locale,
	})
	if err != nil {
		log.Warn().Err(err).Str("provider", o.clothing).Msg("pipeline: clothing change failed, keeping step-1 result")
		return
	}
	result.Artifact = art
	result.Method += "+" + o.clothing + ":clothing"
	result.ClothingApplied = true
}
