package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"faceswap/internal/adapter/repo"
	"faceswap/internal/infra"
)

// sweepTimeout bounds one purge run.
const sweepTimeout = 2 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadLedgerConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogFile).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	generations := repo.NewGenerationRepository(infra.NewSQLRunner(pool, logger))
	purge := func() {
		runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()
		n, err := generations.DeleteAllExpired(runCtx, time.Now())
		if err != nil {
			logger.Error().Err(err).Msg("worker: history purge failed")
			return
		}
		logger.Info().Int64("deleted", n).Msg("worker: history purge")
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.HistorySweepSpec, purge); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.HistorySweepSpec).Msg("worker: invalid schedule")
	}
	purge()
	sched.Start()
	logger.Info().Str("spec", cfg.HistorySweepSpec).Msg("worker: started")

	<-ctx.Done()
	<-sched.Stop().Done()
	logger.Info().Msg("worker: stopped")
}
