package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/roamium/discovery/internal/auth"
	"github.com/roamium/discovery/internal/config"
	"github.com/roamium/discovery/internal/entity"
	"github.com/roamium/discovery/internal/handler"
	"github.com/roamium/discovery/internal/service"
	"github.com/roamium/discovery/internal/service/scoring"
)

type fixedAggregator struct{}

func (fixedAggregator) Aggregate(ctx context.Context, req service.AggregateRequest) ([]entity.AggregatedPlace, error) {
	return []entity.AggregatedPlace{{ID: 1, Name: "Cafe", Categories: []string{"cafe"}, Source: entity.SourceLocal}}, nil
}

func newTestServer(t *testing.T) (*echo.Echo, *auth.JWTManager) {
	t.Helper()
	cfg := &config.Config{RateLimitNearby: config.RateLimitConfig{Requests: 100, Interval: time.Minute}}
	manager := auth.NewJWTManager("secret", time.Hour)

	e := echo.New()
	e.JSONSerializer = handler.JSONSerializer{}
	Register(e, cfg, manager, Handlers{
		Health: handler.NewHealthHandler(nil),
		Places: handler.NewPlacesHandler(fixedAggregator{}, scoring.Weights{Category: 8, Accessibility: 2, Distance: 1, Rating: 3}),
	})
	return e, manager
}

func serve(e *echo.Echo, method, target, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegister_PublicRoutes(t *testing.T) {
	e, _ := newTestServer(t)

	if rec := serve(e, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}
	rec := serve(e, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("expected prometheus exposition, got %d", rec.Code)
	}
}

func TestRegister_PlacesRequireToken(t *testing.T) {
	e, manager := newTestServer(t)

	if rec := serve(e, http.MethodGet, "/places/nearby?lat=52.5&lon=13.4", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	readOnly, err := manager.GenerateToken("user-1", auth.ScopePlacesRead)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if rec := serve(e, http.MethodGet, "/places/nearby?lat=52.5&lon=13.4", readOnly, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := serve(e, http.MethodGet, "/places/categories?lat=52.5&lon=13.4", readOnly, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected categories 200, got %d", rec.Code)
	}

	body := `{"lat": 52.5, "lon": 13.4, "categories": ["cafe"]}`
	if rec := serve(e, http.MethodPost, "/places/recommend", readOnly, body); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without recommend scope, got %d", rec.Code)
	}

	full, err := manager.GenerateToken("user-1", auth.ScopePlacesRead, auth.ScopePlacesRecommend)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if rec := serve(e, http.MethodPost, "/places/recommend", full, body); rec.Code != http.StatusOK {
		t.Fatalf("expected recommend 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
