package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roamium/discovery/internal/auth"
	"github.com/roamium/discovery/internal/config"
	"github.com/roamium/discovery/internal/handler"
	middlewarepkg "github.com/roamium/discovery/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Health *handler.HealthHandler
	Places *handler.PlacesHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", handlers.Health.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	places := e.Group("/places",
		middlewarepkg.JWT(jwtManager),
		middlewarepkg.RateLimiter(cfg.RateLimitNearby),
		middlewarepkg.RequireScope(auth.ScopePlacesRead),
	)
	places.GET("/nearby", handlers.Places.Nearby)
	places.GET("/categories", handlers.Places.Categories)
	places.POST("/recommend", handlers.Places.Recommend, middlewarepkg.RequireScope(auth.ScopePlacesRecommend))
}
