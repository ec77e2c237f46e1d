package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/roamium/discovery/internal/auth"
	"github.com/roamium/discovery/internal/config"
	"github.com/roamium/discovery/internal/database"
	"github.com/roamium/discovery/internal/handler"
	"github.com/roamium/discovery/internal/logging"
	middlewarepkg "github.com/roamium/discovery/internal/middleware"
	"github.com/roamium/discovery/internal/overpass"
	"github.com/roamium/discovery/internal/repository"
	"github.com/roamium/discovery/internal/router"
	"github.com/roamium/discovery/internal/service"
	"github.com/roamium/discovery/internal/service/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 0)

	placesRepo := repository.NewPGXPlacesRepository(pool)
	overpassClient := overpass.NewClient(nil, cfg.Overpass)

	aggregator := service.NewAggregator(cfg.DefaultRadius,
		service.NewLocalSource(placesRepo),
		service.NewExternalSource(overpassClient, placesRepo, service.ExternalSourceOptions{
			TimeoutSeconds: int(cfg.Overpass.Timeout / time.Second),
			PhoneRegion:    cfg.PhoneRegion,
		}),
	)

	weights := scoring.Weights{
		Category:      cfg.Weights.Category,
		Accessibility: cfg.Weights.Accessibility,
		Distance:      cfg.Weights.Distance,
		Rating:        cfg.Weights.Rating,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = handler.JSONSerializer{}

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging())
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, router.Handlers{
		Health: handler.NewHealthHandler(pool),
		Places: handler.NewPlacesHandler(aggregator, weights),
	})

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("port", cfg.Port).Str("overpass", cfg.Overpass.URL).Msg("starting api server")
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
}
