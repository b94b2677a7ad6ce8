package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"stylegen/internal/adapter/repo"
	"stylegen/internal/infra"
	"stylegen/internal/janitor"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg)

	if cfg.StoreDriver != infra.StoreDriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("janitor: requires the postgres store; the api sweeps its in-memory store itself")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("janitor: db connection failed")
	}
	defer pool.Close()

	sweeper, err := janitor.New(repo.New(infra.NewSQLRunner(pool, logger)), janitor.Options{
		Interval:       cfg.JanitorInterval,
		TempSessionTTL: cfg.TempSessionTTL,
		StaleJobAfter:  cfg.StaleJobAfter,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("janitor: configure")
	}

	if *once {
		res, err := sweeper.Sweep(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("janitor: sweep failed")
		}
		logger.Info().Int("sessions_deleted", res.SessionsDeleted).Int("jobs_failed", res.JobsFailed).Msg("janitor: sweep finished")
		return
	}

	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("janitor: stopped with error")
	}
}
