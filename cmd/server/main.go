package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aaaalabs/kinn-radar/internal/api"
	"github.com/aaaalabs/kinn-radar/internal/auth"
	"github.com/aaaalabs/kinn-radar/internal/config"
	"github.com/aaaalabs/kinn-radar/internal/extraction"
	"github.com/aaaalabs/kinn-radar/internal/ingestion"
	"github.com/aaaalabs/kinn-radar/internal/logging"
	"github.com/aaaalabs/kinn-radar/internal/mailer"
	"github.com/aaaalabs/kinn-radar/internal/metrics"
	"github.com/aaaalabs/kinn-radar/internal/server"
	"github.com/aaaalabs/kinn-radar/internal/sheets"
	"github.com/aaaalabs/kinn-radar/internal/store"
	"github.com/aaaalabs/kinn-radar/internal/sweep"
	"github.com/aaaalabs/kinn-radar/internal/validation"
	"log/slog"
)

const (
	fetchAllInterval = 6 * time.Hour
	cleanupInterval  = 24 * time.Hour
)

func main() {
	// Local dev convenience, ignored when no .env exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting kinn-radar")

	ctx := context.Background()

	logger.Info("connecting to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	eventStore, err := store.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	logger.Info("redis connected")

	if cfg.OpenAI.APIKey == "" {
		logger.Error("OPENAI_API_KEY not set, extraction cannot run")
		os.Exit(1)
	}
	extractorConfig := extraction.DefaultConfig()
	extractorConfig.Model = cfg.OpenAI.Model
	extractorConfig.Temperature = cfg.OpenAI.Temperature
	extractorConfig.MaxTokens = cfg.OpenAI.MaxTokens
	extractor := extraction.NewOpenAIExtractor(cfg.OpenAI.APIKey, extractorConfig, logger)

	keywords := validation.DefaultKeywords()
	if len(cfg.Validation.RegionAllow) > 0 {
		keywords.RegionAllow = cfg.Validation.RegionAllow
	}
	if len(cfg.Validation.RegionDeny) > 0 {
		keywords.RegionDeny = cfg.Validation.RegionDeny
	}
	if len(cfg.Validation.Relevance) > 0 {
		keywords.Relevance = cfg.Validation.Relevance
	}

	pipeline := ingestion.NewPipeline(
		eventStore,
		eventStore,
		extractor,
		validation.New(keywords),
		ingestion.NewFetcher(),
		logger,
	)
	pipeline.SetNewsletterAlias(cfg.Newsletter.Alias)
	sweeper := sweep.NewSweeper(eventStore, logger)

	// Sheet publishing and the sheet-backed source list are optional;
	// without them the service still takes newsletter submissions.
	var publisher api.EventPublisher
	var provider ingestion.SourceConfigProvider
	if cfg.Sheets.SpreadsheetID != "" && cfg.Sheets.CredentialsJSON != "" {
		sheetPublisher, err := sheets.NewPublisher(ctx, []byte(cfg.Sheets.CredentialsJSON), cfg.Sheets.SpreadsheetID, logger)
		if err != nil {
			logger.Error("failed to init sheets client", "error", err)
			os.Exit(1)
		}
		publisher = sheetPublisher
		provider = sheets.NewProvider(sheetPublisher, cfg.Sheets.SourceCacheTTL)
		logger.Info("sheet publishing enabled", "spreadsheet", cfg.Sheets.SpreadsheetID)
	} else {
		provider = ingestion.NewStaticProvider(nil)
		logger.Warn("RADAR_SHEET_ID or GOOGLE_CREDENTIALS_JSON not set, sheet publishing disabled")
	}

	notifier := mailer.New(cfg.Mail.APIKey, cfg.Mail.From, cfg.Mail.NotifyTo, logger)
	if notifier.Enabled() {
		logger.Info("submission notifications enabled", "to", cfg.Mail.NotifyTo)
	} else {
		logger.Warn("RESEND_API_KEY or MAIL_NOTIFY_TO not set, notifications disabled")
	}

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	authConfig := auth.Config{
		JWTSecret:         cfg.Auth.JWTSecret,
		AdminPassword:     cfg.Auth.AdminPassword,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
		TokenDuration:     cfg.Auth.TokenDuration,
	}
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	api.SetupRoutes(mux, eventStore, eventStore, pipeline, sweeper, provider, publisher, notifier, collector, authConfig, logger)

	// Periodic fetch of all configured sources
	go func() {
		ticker := time.NewTicker(fetchAllInterval)
		defer ticker.Stop()

		time.Sleep(30 * time.Second) // Initial delay

		for {
			runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			results, err := pipeline.RunAll(runCtx, provider, ingestion.Options{})
			if err != nil {
				logger.Error("scheduled fetch-all failed", "error", err)
			}
			for _, result := range results {
				collector.RecordRun(result.Source, result.Added, result.Rejected, result.Duplicates)
				if len(result.AddedEvents) > 0 {
					notifier.NotifyNewEvents(runCtx, result.Source, result.AddedEvents)
				}
			}
			cancel()

			<-ticker.C
		}
	}()

	// Nightly cleanup: merge duplicates, then drop expired events
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		time.Sleep(2 * time.Minute) // Initial delay

		for {
			runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			if _, err := sweeper.RemoveDuplicates(runCtx); err != nil {
				logger.Error("scheduled sweep failed", "error", err)
			}
			if _, err := sweeper.PruneExpired(runCtx); err != nil {
				logger.Error("scheduled prune failed", "error", err)
			}
			cancel()

			<-ticker.C
		}
	}()

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("kinn-radar started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
