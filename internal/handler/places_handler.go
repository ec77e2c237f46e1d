package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/roamium/discovery/internal/dto"
	"github.com/roamium/discovery/internal/entity"
	"github.com/roamium/discovery/internal/geo"
	"github.com/roamium/discovery/internal/service"
	"github.com/roamium/discovery/internal/service/scoring"
)

// PlaceAggregator is the part of service.Aggregator used by the handler.
type PlaceAggregator interface {
	Aggregate(ctx context.Context, req service.AggregateRequest) ([]entity.AggregatedPlace, error)
}

// PlacesHandler exposes the nearby, categories and recommend endpoints.
type PlacesHandler struct {
	aggregator PlaceAggregator
	weights    scoring.Weights
}

// NewPlacesHandler creates a handler ranking with the given default weights.
func NewPlacesHandler(aggregator PlaceAggregator, weights scoring.Weights) *PlacesHandler {
	return &PlacesHandler{aggregator: aggregator, weights: weights}
}

// Nearby handles GET /places/nearby.
func (h *PlacesHandler) Nearby(c echo.Context) error {
	req, err := parseNearbyQuery(c)
	if err != nil {
		return ServiceError(c, err)
	}

	places, err := h.aggregator.Aggregate(c.Request().Context(), req)
	if err != nil {
		return ServiceError(c, err)
	}
	return Success(c, http.StatusOK, "", places)
}

// Categories handles GET /places/categories.
func (h *PlacesHandler) Categories(c echo.Context) error {
	req, err := parseNearbyQuery(c)
	if err != nil {
		return ServiceError(c, err)
	}

	places, err := h.aggregator.Aggregate(c.Request().Context(), req)
	if err != nil {
		return ServiceError(c, err)
	}
	return Success(c, http.StatusOK, "", dto.CategoriesResponse{Categories: service.ExtractCategories(places)})
}

// Recommend handles POST /places/recommend.
func (h *PlacesHandler) Recommend(c echo.Context) error {
	var req dto.RecommendRequest
	if err := c.Bind(&req); err != nil {
		return ServiceError(c, &service.InvalidParameterError{Field: "body", Message: bindMessage(err)})
	}
	if err := service.ValidateRecommendRequest(req); err != nil {
		return ServiceError(c, err)
	}

	places, err := h.aggregator.Aggregate(c.Request().Context(), service.AggregateRequest{
		Center: geo.NewPoint(req.Lon, req.Lat),
		Radius: req.Radius,
	})
	if err != nil {
		return ServiceError(c, err)
	}

	prefs := scoring.Preferences{
		Categories:    req.Categories,
		Accessibility: req.Accessibility,
		Weights:       h.weightsFor(req),
	}
	return Success(c, http.StatusOK, "", scoring.Recommend(places, prefs))
}

func bindMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok && msg != "" {
			return msg
		}
	}
	return "malformed JSON"
}

func (h *PlacesHandler) weightsFor(req dto.RecommendRequest) scoring.Weights {
	w := scoring.DefaultWeights(req.Accessibility, h.weights)
	if req.Weights == nil {
		return w
	}
	if req.Weights.Category != nil {
		w.Category = *req.Weights.Category
	}
	if req.Weights.Accessibility != nil {
		w.Accessibility = *req.Weights.Accessibility
	}
	if req.Weights.Distance != nil {
		w.Distance = *req.Weights.Distance
	}
	if req.Weights.Rating != nil {
		w.Rating = *req.Weights.Rating
	}
	return w
}

func parseNearbyQuery(c echo.Context) (service.AggregateRequest, error) {
	lat, err := parseFloatParam(c, "lat", true)
	if err != nil {
		return service.AggregateRequest{}, err
	}
	lon, err := parseFloatParam(c, "lon", true)
	if err != nil {
		return service.AggregateRequest{}, err
	}
	radius, err := parseFloatParam(c, "radius", false)
	if err != nil {
		return service.AggregateRequest{}, err
	}

	return service.AggregateRequest{
		Center:         geo.NewPoint(lon, lat),
		Radius:         radius,
		SortByDistance: strings.EqualFold(strings.TrimSpace(c.QueryParam("sort")), "distance"),
	}, nil
}

func parseFloatParam(c echo.Context, name string, required bool) (float64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		if required {
			return 0, &service.InvalidParameterError{Field: name, Message: "is required"}
		}
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &service.InvalidParameterError{Field: name, Message: "must be a number"}
	}
	return value, nil
}
