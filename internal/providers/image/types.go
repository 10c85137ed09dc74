package image

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"faceswap/internal/domain"
)

// Provider keys accepted by the API.
const (
	ProviderQwen     = "qwen"
	ProviderGemini   = "gemini"
	ProviderFaceSwap = "faceswap"
)

const (
	// MaxSourceImages bounds the images a single edit call accepts.
	MaxSourceImages = 2
	// DefaultMaxPromptRunes is the prompt ceiling used when none is configured.
	DefaultMaxPromptRunes = 2000
)

// Task selects how text-driven editors phrase their instruction.
type Task string

const (
	// TaskEdit swaps in the reference face when one is given, otherwise it
	// applies the prompt as a free-form edit.
	TaskEdit Task = ""
	// TaskClothing changes only the clothing, described by the prompt.
	TaskClothing Task = "clothing"
)

// SourceImage is a decoded input picture.
type SourceImage struct {
	Data []byte
	MIME string
}

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	// SourceImages holds the picture(s) to edit; the first one is the target.
	SourceImages []SourceImage
	// Reference carries the face to transplant, when the caller supplied one.
	Reference *SourceImage
	// Prompt is the caller's text; length limits apply to it.
	Prompt    string
	Task      Task
	RequestID string
	Locale    string
}

// Instruction is the text sent to a text-driven editor.
func (r GenerateRequest) Instruction() string {
	if r.Task == TaskClothing {
		return BuildClothingPrompt(r.Prompt)
	}
	return BuildSwapPrompt(r.Prompt, r.Reference != nil)
}

// textDrivenRequirements is what qwen and gemini need: a prompt unless a
// reference face gives them something to do.
func textDrivenRequirements(req GenerateRequest, maxRunes int) Requirements {
	return Requirements{
		NeedsPrompt:    req.Reference == nil || req.Task == TaskClothing,
		MaxPromptRunes: maxRunes,
	}
}

// Generator is the contract implemented by all image providers. Validate
// runs the same checks Generate starts with, so callers can reject a request
// before queueing it.
type Generator interface {
	Name() string
	Validate(req GenerateRequest) error
	Generate(ctx context.Context, req GenerateRequest) (*domain.Artifact, error)
}

// Requirements lists what a provider needs from a request.
type Requirements struct {
	NeedsPrompt    bool
	NeedsReference bool
	MaxPromptRunes int
}

// Validate checks req against reqs without touching the network.
func Validate(req GenerateRequest, reqs Requirements) error {
	switch n := len(req.SourceImages); {
	case n == 0:
		return domain.NewValidationError("sourceImage", "at least one source image is required")
	case n > MaxSourceImages:
		return domain.NewValidationError("sourceImages", "at most %d source images are accepted, got %d", MaxSourceImages, n)
	}
	for i, img := range req.SourceImages {
		if len(img.Data) == 0 {
			return domain.NewValidationError("sourceImages", "source image %d is empty", i+1)
		}
	}
	if reqs.NeedsReference && (req.Reference == nil || len(req.Reference.Data) == 0) {
		return domain.NewValidationError("referenceImage", "a reference face image is required")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if reqs.NeedsPrompt && prompt == "" {
		return domain.NewValidationError("prompt", "prompt is required")
	}
	limit := reqs.MaxPromptRunes
	if limit <= 0 {
		limit = DefaultMaxPromptRunes
	}
	if n := utf8.RuneCountInString(prompt); n > limit {
		return domain.NewValidationError("prompt", "prompt is %d characters, limit is %d", n, limit)
	}
	return nil
}

// Registry resolves provider keys to generators.
type Registry struct {
	generators map[string]Generator
}

// NewRegistry indexes generators by Name.
func NewRegistry(generators ...Generator) *Registry {
	r := &Registry{generators: make(map[string]Generator, len(generators))}
	for _, g := range generators {
		if g != nil {
			r.generators[g.Name()] = g
		}
	}
	return r
}

// Get returns the generator registered under name.
func (r *Registry) Get(name string) (Generator, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if g, ok := r.generators[key]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
}

// Names lists the registered provider keys.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	return names
}

func artifactFrom(data []byte, format string) (*domain.Artifact, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", domain.ErrProviderFailure)
	}
	return domain.NewArtifact(data, normalizeFormat(format)), nil
}

func normalizeFormat(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch mime {
	case "image/jpeg", "image/jpg":
		return "image/jpeg"
	case "":
		return ""
	default:
		return mime
	}
}
