// Package service ties the job runner, the providers and the ledger together
// into the user-facing generation flow.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
	"faceswap/internal/jobs"
	"faceswap/internal/pipeline"
	"faceswap/internal/providers/image"
	"faceswap/internal/providers/video"
	"faceswap/internal/storage"
)

// Ledger is the credit and history surface the service needs.
type Ledger interface {
	CheckBalance(ctx context.Context, userID string) int
	Debit(ctx context.Context, userID string, use domain.CreditUse, amount int) error
	Restore(ctx context.Context, userID string, use domain.CreditUse, amount int) error
	SaveGenerationResult(ctx context.Context, rec *domain.GenerationRecord) error
}

// JobSubmitter schedules jobs.
type JobSubmitter interface {
	Submit(ctx context.Context, spec jobs.Spec, task jobs.Task) (string, error)
}

// PipelineRunner runs the face-swap pipeline.
type PipelineRunner interface {
	Validate(req pipeline.Request) error
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// VideoGenerator produces a vendor-hosted video and downloads it.
type VideoGenerator interface {
	Validate(req video.GenerateRequest) error
	Generate(ctx context.Context, req video.GenerateRequest) (*video.Result, error)
	Download(ctx context.Context, uri string) (*domain.Artifact, error)
}

// Costs are credit prices per operation.
type Costs struct {
	Image    int
	Clothing int
	Video    int
}

// Options configures a Generation service.
type Options struct {
	Costs Costs
	// BackgroundWorkers sizes the pool used for debit and history writes.
	BackgroundWorkers int
	// BackgroundTimeout bounds each detached ledger call.
	BackgroundTimeout time.Duration
	Logger            *infra.Logger
	Now               func() time.Time
}

// Generation submits generation jobs and settles their credits.
type Generation struct {
	runner     JobSubmitter
	registry   *image.Registry
	pipeline   PipelineRunner
	video      VideoGenerator
	ledger     Ledger
	store      storage.ArtifactStore
	background pond.Pool
	closeOnce  sync.Once
	costs      Costs
	bgTimeout  time.Duration
	logger     *infra.Logger
	now        func() time.Time
}

// New builds the service. store and videoGen may be nil.
func New(runner JobSubmitter, registry *image.Registry, pipe PipelineRunner, videoGen VideoGenerator, ledger Ledger, store storage.ArtifactStore, opts Options) *Generation {
	if opts.Costs.Image <= 0 {
		opts.Costs.Image = 1
	}
	if opts.Costs.Clothing < 0 {
		opts.Costs.Clothing = 0
	}
	if opts.Costs.Video <= 0 {
		opts.Costs.Video = 5
	}
	if opts.BackgroundWorkers <= 0 {
		opts.BackgroundWorkers = 4
	}
	if opts.BackgroundTimeout <= 0 {
		opts.BackgroundTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generation{
		runner:     runner,
		registry:   registry,
		pipeline:   pipe,
		video:      videoGen,
		ledger:     ledger,
		store:      store,
		background: pond.NewPool(opts.BackgroundWorkers),
		costs:      opts.Costs,
		bgTimeout:  opts.BackgroundTimeout,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// Close waits for pending ledger writes.
func (g *Generation) Close() {
	g.closeOnce.Do(g.background.StopAndWait)
}

// ImageInput is a single-provider edit.
type ImageInput struct {
	UserID   string
	Provider string
	Request  image.GenerateRequest
}

// PipelineInput is a face-swap pipeline run.
type PipelineInput struct {
	UserID  string
	Request pipeline.Request
}

// VideoInput is an image-to-video run.
type VideoInput struct {
	UserID  string
	Request video.GenerateRequest
}

// SubmitImage queues one edit on a named provider.
func (g *Generation) SubmitImage(ctx context.Context, in ImageInput) (string, error) {
	gen, err := g.registry.Get(in.Provider)
	if err != nil {
		return "", domain.NewValidationError("provider", "%v", err)
	}
	if err := gen.Validate(in.Request); err != nil {
		return "", err
	}
	if err := g.requireCredits(ctx, in.UserID, g.costs.Image); err != nil {
		return "", err
	}
	spec := jobs.Spec{Kind: domain.JobKindImage, UserID: in.UserID, Provider: gen.Name()}
	return g.runner.Submit(ctx, spec, func(ctx context.Context) (*jobs.Outcome, error) {
		art, err := gen.Generate(ctx, in.Request)
		if err != nil {
			return nil, err
		}
		rec := &domain.GenerationRecord{
			UserID:  in.UserID,
			Type:    domain.GenerationTypeImage,
			Prompt:  in.Request.Prompt,
			Method:  gen.Name(),
			Credits: g.costs.Image,
		}
		g.settleImage(ctx, rec, firstSource(in.Request.SourceImages), art, domain.CreditUseFaceSwap)
		return &jobs.Outcome{Artifact: art, Method: gen.Name()}, nil
	})
}

// SubmitPipeline queues a face-swap pipeline run.
func (g *Generation) SubmitPipeline(ctx context.Context, in PipelineInput) (string, error) {
	if g.pipeline == nil {
		return "", fmt.Errorf("%w: pipeline is not configured", domain.ErrProviderFailure)
	}
	if err := g.pipeline.Validate(in.Request); err != nil {
		return "", err
	}
	need := g.costs.Image
	if strings.TrimSpace(in.Request.ClothingPrompt) != "" {
		need += g.costs.Clothing
	}
	if err := g.requireCredits(ctx, in.UserID, need); err != nil {
		return "", err
	}
	spec := jobs.Spec{Kind: domain.JobKindPipeline, UserID: in.UserID, Provider: in.Request.Provider}
	return g.runner.Submit(ctx, spec, func(ctx context.Context) (*jobs.Outcome, error) {
		res, err := g.pipeline.Run(ctx, in.Request)
		if err != nil {
			return nil, err
		}
		cost := g.costs.Image
		use := domain.CreditUseFaceSwap
		if res.ClothingApplied {
			cost += g.costs.Clothing
			use = domain.CreditUseClothing
		}
		rec := &domain.GenerationRecord{
			UserID:         in.UserID,
			Type:           domain.GenerationTypeImage,
			Prompt:         in.Request.Prompt,
			ClothingPrompt: in.Request.ClothingPrompt,
			Method:         res.Method,
			Credits:        cost,
		}
		g.settleImage(ctx, rec, &in.Request.Source, res.Artifact, use)
		return &jobs.Outcome{Artifact: res.Artifact, Method: res.Method}, nil
	})
}

// SubmitVideo queues an image-to-video run. The debit is issued on the
// background pool once the vendor reports a finished video; if the download
// then fails the job fails and a restore follows the settled debit.
func (g *Generation) SubmitVideo(ctx context.Context, in VideoInput) (string, error) {
	if g.video == nil {
		return "", fmt.Errorf("%w: video generation is not configured", domain.ErrProviderFailure)
	}
	if err := g.video.Validate(in.Request); err != nil {
		return "", err
	}
	if err := g.requireCredits(ctx, in.UserID, g.costs.Video); err != nil {
		return "", err
	}
	spec := jobs.Spec{Kind: domain.JobKindVideo, UserID: in.UserID, Provider: video.ProviderVeo}
	return g.runner.Submit(ctx, spec, func(ctx context.Context) (*jobs.Outcome, error) {
		res, err := g.video.Generate(ctx, in.Request)
		if err != nil {
			return nil, err
		}
		log := g.logger.With().Str("user_id", in.UserID).Str("operation", res.Operation).Logger()

		debited := make(chan error, 1)
		g.detach(log, "debit", func(ctx context.Context) error {
			err := g.ledger.Debit(ctx, in.UserID, domain.CreditUseVideo, g.costs.Video)
			debited <- err
			return err
		})
		art, err := g.video.Download(ctx, res.VideoURI)
		if err != nil {
			g.detach(log, "restore", func(ctx context.Context) error {
				select {
				case debitErr := <-debited:
					if debitErr != nil {
						return nil
					}
				case <-ctx.Done():
					return fmt.Errorf("debit did not settle: %w", ctx.Err())
				}
				return g.ledger.Restore(ctx, in.UserID, domain.CreditUseRestore, g.costs.Video)
			})
			return nil, err
		}

		rec := &domain.GenerationRecord{
			UserID:  in.UserID,
			Type:    domain.GenerationTypeVideo,
			Prompt:  in.Request.Prompt,
			Method:  video.ProviderVeo,
			Credits: g.costs.Video,
		}
		var source *image.SourceImage
		if in.Request.Image != nil {
			source = &image.SourceImage{Data: in.Request.Image.Data, MIME: in.Request.Image.MIME}
		}
		rec.OriginalURL = g.persist(ctx, log, in.UserID, "original", source)
		rec.ResultURL = g.persistArtifact(ctx, log, in.UserID, "video", art)
		g.detach(log, "history", func(ctx context.Context) error {
			return g.ledger.SaveGenerationResult(ctx, rec)
		})
		return &jobs.Outcome{Artifact: art, Method: video.ProviderVeo}, nil
	})
}

func (g *Generation) requireCredits(ctx context.Context, userID string, need int) error {
	if need <= 0 {
		return nil
	}
	if have := g.ledger.CheckBalance(ctx, userID); have < need {
		return &domain.InsufficientCreditsError{Required: need, Available: have}
	}
	return nil
}

// settleImage persists the artifacts and then debits and records history on
// the background pool. The two ledger writes race and are each logged.
func (g *Generation) settleImage(ctx context.Context, rec *domain.GenerationRecord, source *image.SourceImage, art *domain.Artifact, use domain.CreditUse) {
	log := g.logger.With().Str("user_id", rec.UserID).Str("method", rec.Method).Logger()
	rec.OriginalURL = g.persist(ctx, log, rec.UserID, "original", source)
	rec.ResultURL = g.persistArtifact(ctx, log, rec.UserID, "image", art)

	userID, amount := rec.UserID, rec.Credits
	g.detach(log, "debit", func(ctx context.Context) error {
		return g.ledger.Debit(ctx, userID, use, amount)
	})
	g.detach(log, "history", func(ctx context.Context) error {
		return g.ledger.SaveGenerationResult(ctx, rec)
	})
}

// detach runs fn on the background pool with its own deadline. Once the pool
// is stopped fn runs inline so a finished job is still charged and recorded.
func (g *Generation) detach(log infra.Logger, op string, fn func(ctx context.Context) error) {
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.bgTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Str("op", op).Msg("service: background ledger write failed")
			return
		}
		log.Debug().Str("op", op).Msg("service: background ledger write done")
	}
	if err := g.background.Go(run); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("service: background pool unavailable, writing inline")
		run()
	}
}

// persist stores an input image and returns its URL, or "" when storage is
// unavailable or fails.
func (g *Generation) persist(ctx context.Context, log infra.Logger, userID, kind string, img *image.SourceImage) string {
	if img == nil || len(img.Data) == 0 {
		return ""
	}
	return g.put(ctx, log, userID, kind, img.Data, img.MIME)
}

// persistArtifact stores a result and returns its URL. When storage is off
// the artifact's own URL is kept.
func (g *Generation) persistArtifact(ctx context.Context, log infra.Logger, userID, kind string, art *domain.Artifact) string {
	if art == nil {
		return ""
	}
	data, err := art.Bytes()
	if err != nil {
		return art.URL
	}
	if url := g.put(ctx, log, userID, kind, data, art.MimeType); url != "" {
		return url
	}
	return art.URL
}

func (g *Generation) put(ctx context.Context, log infra.Logger, userID, kind string, data []byte, mime string) string {
	if g.store == nil {
		return ""
	}
	key := storage.ObjectKey(userID, kind, storage.ExtensionFor(mime), g.now())
	url, err := g.store.Put(ctx, key, data, mime)
	if err != nil {
		perr := &domain.PersistenceError{Op: "artifact " + kind, Err: err}
		log.Warn().Err(perr).Str("key", key).Msg("service: artifact not persisted")
		return ""
	}
	return url
}

func firstSource(images []image.SourceImage) *image.SourceImage {
	if len(images) == 0 {
		return nil
	}
	return &images[0]
}
