// Package main is the entry point for the MarketPulse market intelligence
// engine. It turns completed marketplace transactions into market data
// points on a schedule and serves trend, insight, recommendation, and
// analytics queries over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openmandi/marketpulse/internal/config"
	"github.com/openmandi/marketpulse/internal/database"
	"github.com/openmandi/marketpulse/internal/modules/marketdata"
	marketdatahandlers "github.com/openmandi/marketpulse/internal/modules/marketdata/handlers"
	"github.com/openmandi/marketpulse/internal/modules/marketplace"
	"github.com/openmandi/marketpulse/internal/server"
	"github.com/openmandi/marketpulse/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet; stderr is all we have.
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Int("collection_interval_minutes", cfg.CollectionIntervalMinutes).
		Msg("Starting MarketPulse")

	// Relational transactional store
	marketplaceDB, err := database.New(database.Config{
		Path:    cfg.MarketplaceDBPath(),
		Profile: database.ProfileStandard,
		Name:    "marketplace",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open marketplace database")
	}
	defer marketplaceDB.Close()

	if err := marketplaceDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate marketplace database")
	}

	// Analytics document store
	analyticsDB, err := database.New(database.Config{
		Path:    cfg.AnalyticsDBPath(),
		Profile: database.ProfileAnalytics,
		Name:    "analytics",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open analytics database")
	}
	defer analyticsDB.Close()

	if err := analyticsDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate analytics database")
	}

	// Repositories
	transactionRepo := marketplace.NewTransactionRepository(marketplaceDB.Conn(), log)
	catalogRepo := marketplace.NewCatalogRepository(marketplaceDB.Conn(), log)
	statsRepo := marketplace.NewStatsRepository(marketplaceDB.Conn(), log)
	analyticsRepo := marketdata.NewAnalyticsRepository(analyticsDB.Conn(), log)

	// Collection pipeline
	seasonal, err := marketdata.LoadSeasonalCalculator(cfg.SeasonalFactorsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SeasonalFactorsPath).Msg("Failed to load seasonal factors")
	}

	normalizer := marketdata.NewNormalizer(transactionRepo, analyticsRepo, seasonal, log)
	aggregator := marketdata.NewCompetitorAggregator(catalogRepo, analyticsRepo, log)
	collector := marketdata.NewCollector(
		normalizer,
		aggregator,
		analyticsRepo,
		time.Duration(cfg.CollectionIntervalMinutes)*time.Minute,
		log,
	)

	// Query-time engines
	trendEngine := marketdata.NewTrendEngine(analyticsRepo, log)
	insightEngine := marketdata.NewInsightEngine(analyticsRepo, log)
	analyticsService := marketdata.NewAnalyticsService(statsRepo, analyticsRepo, log)
	recommendationEngine := marketdata.NewRecommendationEngine(analyticsRepo, catalogRepo, log)

	marketDataHandlers := marketdatahandlers.NewHandler(
		collector,
		trendEngine,
		insightEngine,
		analyticsService,
		recommendationEngine,
		log,
	)

	var auth server.Authenticator = server.PassthroughAuthenticator{}
	if cfg.APIToken != "" {
		auth = server.NewTokenAuthenticator(cfg.APIToken)
	} else {
		log.Warn().Msg("API_TOKEN not set, API authentication disabled")
	}

	srv := server.New(server.Config{
		Log:                log,
		Config:             cfg,
		MarketDataHandlers: marketDataHandlers,
		Authenticator:      auth,
	})

	collector.Start()

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	collector.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("MarketPulse stopped")
}
