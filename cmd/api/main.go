package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"autodoc/api/internal/app"
	"autodoc/api/internal/auth"
	"autodoc/api/internal/authpw"
	"autodoc/api/internal/blob"
	"autodoc/api/internal/config"
	"autodoc/api/internal/export"
	"autodoc/api/internal/journal"
	"autodoc/api/internal/llm"
	"autodoc/api/internal/logging"
	"autodoc/api/internal/ocr"
	"autodoc/api/internal/search"
	"autodoc/api/internal/store"
	"autodoc/api/internal/untrusted"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	dataStore := store.NewPostgresStore(db)
	httpClient := &http.Client{}

	var meiliClient *search.Meili
	var engine search.Engine
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		engine = meiliClient
		defer meiliClient.Close()
	}
	searchService := search.NewService(engine, search.NewPgFTS(dataStore), logger)
	searchService.StartReindex(ctx)

	deps := app.Dependencies{
		Store:    dataStore,
		Accounts: authpw.NewService(dataStore),
		Tokens:   auth.NewIssuer(cfg.JWTKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL),
		OCR: ocr.NewClient(ocr.Config{
			Endpoint:     cfg.OCREndpoint,
			APIKey:       cfg.OCRAPIKey,
			Model:        cfg.OCRModel,
			APIVersion:   cfg.OCRAPIVersion,
			PollInterval: cfg.OCRPollInterval,
		}, httpClient, logger),
		Search: searchService,
		Export: export.NewService(nil),
	}

	completions := llm.NewClient(llm.Config{
		Endpoint:  cfg.LLMEndpoint,
		APIKey:    cfg.LLMAPIKey,
		KeyHeader: cfg.LLMKeyHeader,
	}, httpClient, logger)
	deps.Structure = llm.NewStructurer(completions)
	deps.Query = llm.NewQueryGenerator(completions)

	var recorder untrusted.Recorder
	if strings.TrimSpace(cfg.RedisURL) != "" {
		queryJournal, err := journal.NewRedisJournal(cfg.RedisURL, cfg.QueryJournalSize)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer queryJournal.Close()
		recorder = queryJournal
		deps.Journal = queryJournal
		logger.Info().Msg("journal.redis.enabled")
	}
	deps.Executor = untrusted.NewExecutor(db, logger, recorder)

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		archive, err := blob.NewArchive(ctx, blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("blob.minio.unavailable")
		} else {
			deps.Archive = archive
		}
	}

	if !export.ChromeAvailable() {
		logger.Warn().Msg("export.pdf.chrome_missing")
	}

	service := app.New(cfg, deps, logger)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigins, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("server.listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server.shutdown_failed")
	}
	searchService.Wait()
	logger.Info().Msg("server.stopped")
}
