package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"faceswap/internal/adapter/repo"
	"faceswap/internal/auth"
	"faceswap/internal/http/handlers"
	"faceswap/internal/http/httpapi"
	"faceswap/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadLedgerConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("ledger: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	if err := repo.Migrate(ctx, runner); err != nil {
		logger.Fatal().Err(err).Msg("ledger: schema migration failed")
	}

	app := &handlers.LedgerApp{
		Credits:        repo.NewCreditRepository(runner),
		Generations:    repo.NewGenerationRepository(runner),
		Signer:         auth.NewSigner(cfg.TokenSecret, auth.Issuer, cfg.TokenTTL),
		InitialCredits: cfg.InitialCredits,
		Logger:         &logger,
	}
	router := httpapi.NewLedgerRouter(app, httpapi.LedgerOptions{
		ServiceKey:      cfg.ServiceKey,
		Logger:          logger,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg.HTTPOptions(), router)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("ledger: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("ledger: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ledger: shutdown failed")
	}
	logger.Info().Msg("ledger: stopped")
}
