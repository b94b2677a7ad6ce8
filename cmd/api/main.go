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
	"golang.org/x/sync/errgroup"

	"stylegen/internal/adapter/memstore"
	"stylegen/internal/adapter/repo"
	"stylegen/internal/auth"
	"stylegen/internal/concepts"
	"stylegen/internal/domain"
	"stylegen/internal/generation"
	"stylegen/internal/http/handlers"
	httpapi "stylegen/internal/http/httpapi"
	"stylegen/internal/imagesrc"
	"stylegen/internal/infra"
	"stylegen/internal/infra/credentials"
	"stylegen/internal/infra/geoip"
	"stylegen/internal/janitor"
	"stylegen/internal/prompts"
	"stylegen/internal/providers/image"
	"stylegen/internal/providers/prompt"
	"stylegen/internal/sqlinline"
	"stylegen/internal/storage"
	"stylegen/internal/styles"
)

const maxUploadBytes = 20 << 20

// backend is the opened persistence layer.
type backend struct {
	repos  domain.Repositories
	creds  *credentials.Store
	ping   func(ctx context.Context) error
	memory bool
	close  func()
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.close()

	files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}
	fetcher := imagesrc.NewFetcher(files, cfg.DownloadTimeout)

	apiKey, err := store.creds.ResolveOpenAIKey(ctx, cfg.OpenAIAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load openai api key from store")
	}
	generator, assistant := providers(cfg, apiKey, logger)

	authn, err := auth.NewService(store.repos.Users, auth.Options{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.JWTTTL,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure auth")
	}
	if created, err := authn.EnsureAdmin(ctx, cfg.BootstrapEmail, cfg.BootstrapPassword); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap admin")
	} else if created {
		logger.Info().Str("email", cfg.BootstrapEmail).Msg("bootstrap admin created")
	}

	sweeper, err := janitor.New(store.repos, janitor.Options{
		Interval:       cfg.JanitorInterval,
		TempSessionTTL: cfg.TempSessionTTL,
		StaleJobAfter:  cfg.StaleJobAfter,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure janitor")
	}
	if n, err := sweeper.FailStale(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to sweep stale jobs")
	} else if n > 0 {
		logger.Info().Int("jobs", n).Msg("stale jobs marked failed")
	}

	runner, err := generation.NewRunner(store.repos, generation.Options{
		Generator: generator,
		Fetcher:   fetcher,
		Delay:     cfg.GenerationDelay,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation runner")
	}

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip database unavailable, locale falls back to headers")
	}
	if geo != nil {
		defer geo.Close()
	}

	promptSvc := prompts.NewService(store.repos.Prompts)
	app := &handlers.App{
		Auth: authn,
		Styles: styles.NewService(styles.Deps{
			Repo:      store.repos.Styles,
			Assistant: assistant,
			Generator: generator,
			Prompts:   promptSvc,
			Images:    fetcher,
			Storage:   files,
			Logger:    logger,
		}),
		Concepts:       concepts.NewService(store.repos.ConceptLists, assistant, promptSvc, fetcher, logger),
		Prompts:        promptSvc,
		Runner:         runner,
		Repos:          store.repos,
		Fetcher:        fetcher,
		Logger:         logger,
		Ping:           store.ping,
		MaxUploadBytes: maxUploadBytes,
	}

	opts := httpapi.Options{
		Authenticator:      authn,
		Logger:             logger,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		DefaultLocale:      "en",
		StaticDir:          files.BasePath(),
	}
	if geo != nil {
		opts.CountryLookup = geoip.Lookup(geo)
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, opts), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		select {
		case addr := <-server.Started():
			logger.Info().Stringer("addr", addr).Str("store", cfg.StoreDriver).Msg("API listening")
		case <-gctx.Done():
		}
		return nil
	})
	if store.memory {
		// No separate janitor process can reach an in-memory store.
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to stop generation jobs")
	}
	logger.Info().Msg("server stopped")
}

func openBackend(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*backend, error) {
	if cfg.StoreDriver == infra.StoreDriverMemory {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return &backend{repos: memstore.New().Repositories(), memory: true, close: func() {}}, nil
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := infra.ApplySchema(ctx, pool, sqlinline.Schema); err != nil {
		pool.Close()
		return nil, err
	}
	sql := infra.NewSQLRunner(pool, logger)
	return &backend{
		repos: repo.New(sql),
		creds: credentials.NewStore(sql),
		ping:  pool.Ping,
		close: pool.Close,
	}, nil
}

// providers picks the OpenAI clients when a key is configured and the
// deterministic offline ones otherwise.
func providers(cfg *infra.Config, apiKey string, logger infra.Logger) (image.Generator, prompt.Assistant) {
	if apiKey == "" {
		logger.Warn().Msg("openai api key missing, using synthetic generation")
		return image.NewStaticGenerator(), prompt.NewStaticAssistant()
	}
	httpClient := &http.Client{Timeout: 2 * time.Minute}
	generator, err := image.NewOpenAIGenerator(image.OpenAIOptions{
		APIKey:       apiKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   httpClient,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure image generator")
	}
	promptLog := infra.Component(logger, "assistant")
	assistant, err := prompt.NewOpenAIAssistant(prompt.OpenAIOptions{
		APIKey:       apiKey,
		ChatModel:    cfg.OpenAIChatModel,
		VisionModel:  cfg.OpenAIVisionModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   httpClient,
		OnFallback: func(reason string, err error) {
			promptLog.Warn().Err(err).Str("reason", reason).Msg("assistant fell back to offline output")
		},
		OnWarning: func(reason, detail string) {
			promptLog.Warn().Str("reason", reason).Str("detail", detail).Msg("assistant warning")
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure assistant")
	}
	return generator, assistant
}
