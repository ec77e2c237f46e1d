package overpass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"google.golang.org/api/idtoken"

	"github.com/roamium/discovery/internal/config"
	"github.com/roamium/discovery/internal/logging"
	"github.com/roamium/discovery/internal/metrics"
)

const sourceLabel = "overpass"

// ErrUnavailable is returned while the circuit breaker rejects calls.
var ErrUnavailable = errors.New("overpass endpoint unavailable")

// Element is a single OSM node returned by the interpreter.
type Element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

// Interpreter runs an Overpass QL query and returns its elements.
type Interpreter interface {
	Interpret(ctx context.Context, query string) ([]Element, error)
}

// Client posts queries to an Overpass interpreter behind a circuit breaker.
type Client struct {
	client   *http.Client
	endpoint string
	cb       *gobreaker.CircuitBreaker[[]Element]
}

// NewClient builds a client for cfg.URL. When client is nil a plain client
// with cfg.Timeout is used, or an ID token client if cfg.UseIDToken is set.
func NewClient(client *http.Client, cfg config.OverpassConfig) *Client {
	if cfg.URL == "" {
		panic("overpass URL must not be empty")
	}
	endpoint := strings.TrimRight(cfg.URL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
		if cfg.UseIDToken {
			idc, err := idtoken.NewClient(context.Background(), endpoint)
			if err != nil {
				logging.Warn().Err(err).Msg("overpass: id token client unavailable, using plain client")
			} else {
				idc.Timeout = timeout
				client = idc
			}
		}
	}

	return &Client{
		client:   client,
		endpoint: endpoint,
		cb:       newBreaker(sourceLabel),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker[[]Element] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[[]Element](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Cancelled callers say nothing about the upstream's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Interpret posts query as the form field "data" and decodes the elements.
func (c *Client) Interpret(ctx context.Context, query string) ([]Element, error) {
	start := time.Now()
	elements, err := c.cb.Execute(func() ([]Element, error) {
		return c.post(ctx, query)
	})
	metrics.ExternalRequestDuration.WithLabelValues(sourceLabel).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.ExternalRequests.WithLabelValues(sourceLabel, "rejected").Inc()
			logging.Ctx(ctx).Warn().Err(err).Msg("overpass request rejected by circuit breaker")
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		metrics.ExternalRequests.WithLabelValues(sourceLabel, "failure").Inc()
		return nil, err
	}
	metrics.ExternalRequests.WithLabelValues(sourceLabel, "success").Inc()
	return elements, nil
}

func (c *Client) post(ctx context.Context, query string) ([]Element, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("overpass error (status %d): %s", resp.StatusCode, extractError(resp.Body))
	}

	var payload struct {
		Elements *[]Element `json:"elements"`
		Remark   string     `json:"remark"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("could not decode overpass response: %w", err)
	}
	// Runtime errors such as query timeouts arrive with status 200.
	if strings.Contains(payload.Remark, "error") {
		return nil, fmt.Errorf("overpass error: %s", payload.Remark)
	}
	if payload.Elements == nil {
		return nil, errors.New("could not decode overpass response: missing elements")
	}
	return *payload.Elements, nil
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "overpass returned an error"
	}
	var payload struct {
		Remark string `json:"remark"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Remark != "" {
		return payload.Remark
	}
	return strings.TrimSpace(string(data))
}

var _ Interpreter = (*Client)(nil)
