package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trivia-game/internal/config"
	"trivia-game/internal/events"
	"trivia-game/internal/hub"
	"trivia-game/internal/models"
	"trivia-game/internal/repository"
	"trivia-game/internal/server"
	"trivia-game/internal/services"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	if os.Getenv(gin.EnvGinMode) != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	defaults := models.Settings{
		MaxPlayers:       cfg.MaxPlayers,
		TimePerQuestion:  cfg.QuestionTimeMS,
		QuestionsPerGame: cfg.QuestionsPerGame,
	}

	catalog, closeCatalog, err := openCatalog(cfg, defaults)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.CatalogDriver).Msg("failed to open question catalog")
	}
	defer closeCatalog()

	opts := []services.Option{
		services.WithDefaultSettings(defaults),
		services.WithDeckMode(services.DeckMode(cfg.DeckMode)),
	}

	if cfg.NATSURL != "" {
		natsCfg := events.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.SubjectPrefix = cfg.NATSSubject

		publisher, err := events.NewNATSPublisher(natsCfg)
		if err != nil {
			log.Fatal().Err(err).Str("nats_url", cfg.NATSURL).Msg("failed to connect to NATS")
		}
		defer publisher.Close()
		opts = append(opts, services.WithPublisher(publisher))
	}

	gameHub := hub.NewHub()
	gameService := services.NewGameService(gameHub, catalog, opts...)
	defer gameService.Close()

	srv := server.NewServer(cfg, gameHub, gameService)

	log.Info().
		Str("port", cfg.Port).
		Str("catalog", cfg.CatalogDriver).
		Str("deck", cfg.DeckMode).
		Bool("nats", cfg.NATSURL != "").
		Msg("starting trivia server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server stopped")
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// openCatalog picks the question source named by CATALOG_DRIVER.
func openCatalog(cfg *config.Config, defaults models.Settings) (services.Catalog, func(), error) {
	var records []models.QuestionRecord
	if cfg.QuestionsFile != "" {
		var err error
		records, err = repository.LoadQuestionFile(cfg.QuestionsFile)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("file", cfg.QuestionsFile).Int("questions", len(records)).Msg("loaded question file")
	}

	switch cfg.CatalogDriver {
	case "", "memory":
		if len(records) > 0 {
			return services.NewQuestionDatabaseFromRecords(defaults, records), func() {}, nil
		}
		return services.NewQuestionDatabase(defaults), func() {}, nil

	case "sqlite3", "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the %s catalog", cfg.CatalogDriver)
		}
		store, err := repository.NewSQLRepository(cfg.CatalogDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		var repo repository.Repository = store
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		inserted, err := repo.Seed(ctx, records, defaults)
		if err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("seed catalog: %w", err)
		}
		if inserted > 0 {
			log.Info().Int("questions", inserted).Msg("seeded question catalog")
		}
		return repo, func() { repo.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown catalog driver %q", cfg.CatalogDriver)
}
