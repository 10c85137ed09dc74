package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"faceswap/internal/auth"
	"faceswap/internal/http/handlers"
	"faceswap/internal/http/httpapi"
	"faceswap/internal/infra"
	"faceswap/internal/infra/credentials"
	"faceswap/internal/infra/geoip"
	"faceswap/internal/jobs"
	"faceswap/internal/ledger"
	"faceswap/internal/pipeline"
	"faceswap/internal/providers/faceswap"
	"faceswap/internal/providers/genai"
	"faceswap/internal/providers/image"
	"faceswap/internal/providers/qwen"
	"faceswap/internal/providers/video"
	"faceswap/internal/service"
	"faceswap/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Job store
	var store jobs.Store
	switch cfg.JobStore {
	case "redis":
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: redis connection failed")
		}
		defer client.Close()
		store = jobs.NewRedisStore(client, jobs.RedisStoreOptions{TTL: cfg.JobTTL, TombstoneTTL: cfg.JobTombstoneTTL})
	default:
		store = jobs.NewMemoryStore(jobs.MemoryStoreOptions{TTL: cfg.JobTTL, TombstoneTTL: cfg.JobTombstoneTTL})
	}
	runner := jobs.NewRunner(store, jobs.RunnerOptions{Workers: cfg.JobWorkers, Timeout: cfg.JobTimeout, Logger: &logger})

	keys := loadProviderKeys(ctx, cfg, logger)

	// Providers
	httpClient := &http.Client{Timeout: 120 * time.Second}
	var generators []image.Generator
	if keys[credentials.ProviderQwen] != "" {
		client, err := qwen.NewClient(qwen.Options{
			APIKey:     keys[credentials.ProviderQwen],
			BaseURL:    cfg.QwenBaseURL,
			Model:      cfg.QwenModel,
			HTTPClient: httpClient,
			Logger:     &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: qwen client")
		}
		generators = append(generators, image.NewQwenEditor(client, image.EditorOptions{MaxPromptRunes: cfg.MaxPromptRunes, Logger: &logger}))
	}
	var veo *video.VeoGenerator
	if keys[credentials.ProviderGemini] != "" {
		client, err := genai.NewClient(genai.Options{
			APIKey:     keys[credentials.ProviderGemini],
			BaseURL:    cfg.GeminiBaseURL,
			ImageModel: cfg.GeminiModel,
			VideoModel: cfg.VeoModel,
			HTTPClient: httpClient,
			Logger:     &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: gemini client")
		}
		generators = append(generators, image.NewGeminiEditor(client, image.EditorOptions{MaxPromptRunes: cfg.MaxPromptRunes, Logger: &logger}))
		veo = video.NewVeoGenerator(client, video.Options{
			PollInterval:   cfg.VideoPollEvery,
			MaxPolls:       cfg.VideoMaxPolls,
			MaxPromptRunes: cfg.MaxPromptRunes,
			Logger:         &logger,
		})
	}
	if keys[credentials.ProviderFaceSwap] != "" {
		client, err := faceswap.NewClient(faceswap.Options{
			APIKey:     keys[credentials.ProviderFaceSwap],
			BaseURL:    cfg.FaceSwapBaseURL,
			Version:    cfg.FaceSwapModel,
			HTTPClient: httpClient,
			Logger:     &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: faceswap client")
		}
		generators = append(generators, image.NewFaceSwapper(client, image.FaceSwapOptions{
			PollInterval:   cfg.FaceSwapPollGap,
			MaxPolls:       cfg.FaceSwapPolls,
			MaxPromptRunes: cfg.MaxPromptRunes,
			Logger:         &logger,
		}))
	}
	registry := image.NewRegistry(generators...)
	if len(registry.Names()) == 0 {
		logger.Warn().Msg("api: no image provider has an api key; image jobs will be rejected")
	}
	orchestrator := pipeline.New(registry, pipeline.Options{MaxPromptRunes: cfg.MaxPromptRunes, Logger: &logger})

	// Ledger
	ledgerClient, err := ledger.NewClient(ledger.Options{
		BaseURL:        cfg.LedgerBaseURL,
		ServiceKey:     cfg.LedgerServiceKey,
		TokenTTL:       cfg.LedgerTokenTTL,
		DefaultBalance: cfg.DefaultBalance,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: ledger client")
	}

	// Artifact storage
	var artifacts storage.ArtifactStore
	staticDir := ""
	switch cfg.StorageBackend {
	case "s3":
		s3Store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
			PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: s3 storage")
		}
		artifacts = s3Store
	default:
		fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: file storage")
		}
		artifacts = fileStore
		staticDir = cfg.StoragePath
	}

	var videoGen service.VideoGenerator
	var videoOps handlers.VideoOperations
	if veo != nil {
		videoGen = veo
		videoOps = veo
	}
	svc := service.New(runner, registry, orchestrator, videoGen, ledgerClient, artifacts, service.Options{
		Costs:             service.Costs{Image: cfg.ImageCost, Clothing: cfg.ClothingCost, Video: cfg.VideoCost},
		BackgroundWorkers: cfg.BackgroundWorkers,
		Logger:            &logger,
	})

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	}
	defer resolver.Close()

	app := &handlers.App{
		Generator: svc,
		Jobs:      runner,
		Videos:    videoOps,
		Ledger:    ledgerClient,
		Logger:    &logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Verifier:        auth.NewSigner(cfg.JWTSecret, auth.Issuer, 0),
		Logger:          logger,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   resolver.Lookup(),
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       staticDir,
	})

	// Expired job sweep
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.JobSweepSpec, func() {
		n, err := store.Sweep(context.Background(), time.Now())
		if err != nil {
			logger.Error().Err(err).Msg("api: job sweep failed")
			return
		}
		if n > 0 {
			logger.Info().Int("purged", n).Msg("api: job sweep")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.JobSweepSpec).Msg("api: invalid sweep schedule")
	}
	sched.Start()
	defer sched.Stop()

	server := infra.NewHTTPServer(cfg.HTTPOptions(), router)
	go func() {
		logger.Info().Str("port", cfg.Port).Strs("providers", registry.Names()).Msg("api: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown failed")
	}
	// Jobs finishing while the runner drains still settle on the service pool.
	runner.Close()
	svc.Close()
	logger.Info().Msg("api: stopped")
}

// loadProviderKeys reads provider keys from the environment and, when a
// database is configured, fills the gaps from integration_tokens.
func loadProviderKeys(ctx context.Context, cfg *infra.Config, logger infra.Logger) map[string]string {
	keys := map[string]string{
		credentials.ProviderGemini:   cfg.GeminiAPIKey,
		credentials.ProviderQwen:     cfg.QwenAPIKey,
		credentials.ProviderFaceSwap: cfg.FaceSwapAPIKey,
	}
	if cfg.DatabaseURL == "" {
		return keys
	}
	pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn().Err(err).Msg("api: provider key store unavailable")
		return keys
	}
	defer pool.Close()

	creds := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	for provider, fromEnv := range keys {
		key, err := creds.Resolve(ctx, provider, fromEnv)
		if err != nil {
			logger.Warn().Err(err).Str("provider", provider).Msg("api: load provider key")
			continue
		}
		keys[provider] = key
	}
	return keys
}
