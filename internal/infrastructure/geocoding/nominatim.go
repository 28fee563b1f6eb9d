// Package geocoding talks to a Nominatim-compatible geocoding API.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/babui-rent/babui/internal/domain"
	"github.com/babui-rent/babui/internal/observability/metrics"
	"github.com/babui-rent/babui/internal/reliability/circuitbreaker"
	"github.com/babui-rent/babui/internal/reliability/retry"
)

const (
	// MinQueryRunes is the shortest query sent upstream
	MinQueryRunes = 2
	// DefaultSearchLimit applies when a caller passes limit <= 0
	DefaultSearchLimit = 5
	maxSearchLimit     = 10
	sourceNominatim    = "nominatim"
)

// Config configures the Nominatim client
type Config struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	CacheTTL       time.Duration
}

// Client implements domain.Geocoder against Nominatim
type Client struct {
	cfg     Config
	http    *http.Client
	cache   Cache
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
	logger  *slog.Logger
}

// NewClient builds a client. cache may be nil to disable caching.
func NewClient(cfg Config, cache Cache, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	breaker := circuitbreaker.NewCircuitBreaker(5, 1, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("geocoder circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		metrics.SetBreakerState(sourceNominatim, int(to))
	})

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:   cache,
		breaker: breaker,
		retry:   retry.DefaultConfig(),
		logger:  logger,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

type searchHit struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Reverse resolves c to Nominatim's display name
func (c *Client) Reverse(ctx context.Context, coords domain.Coordinates) (string, error) {
	if !coords.Valid() {
		return "", domain.ErrInvalidCoordinate
	}

	key := fmt.Sprintf("reverse:%.6f,%.6f", coords.Lat, coords.Lng)
	if addr, ok := c.cacheGet(ctx, key); ok {
		metrics.ObserveGeocode("reverse", "hit")
		return addr, nil
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coords.Lng, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	var resp reverseResponse
	if err := c.call(ctx, "nominatim reverse", "/reverse", q, &resp); err != nil {
		metrics.ObserveGeocode("reverse", "error")
		return "", err
	}

	addr := strings.TrimSpace(resp.DisplayName)
	if addr == "" {
		metrics.ObserveGeocode("reverse", "empty")
		return "", fmt.Errorf("%w: no address for %s", domain.ErrGeocoderUnavailable, key)
	}

	metrics.ObserveGeocode("reverse", "ok")
	c.cacheSet(ctx, key, addr)
	return addr, nil
}

// Search returns up to limit candidates for query. Queries shorter than
// MinQueryRunes return nothing without a request.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.GeocodeCandidate, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryRunes {
		return []domain.GeocodeCandidate{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	key := fmt.Sprintf("search:%d:%s", limit, strings.ToLower(query))
	if raw, ok := c.cacheGet(ctx, key); ok {
		var cached []domain.GeocodeCandidate
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			metrics.ObserveGeocode("search", "hit")
			return cached, nil
		}
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("addressdetails", "1")
	q.Set("limit", strconv.Itoa(limit))

	var hits []searchHit
	if err := c.call(ctx, "nominatim search", "/search", q, &hits); err != nil {
		metrics.ObserveGeocode("search", "error")
		return nil, err
	}

	out := make([]domain.GeocodeCandidate, 0, len(hits))
	for _, h := range hits {
		lat, errLat := strconv.ParseFloat(h.Lat, 64)
		lng, errLng := strconv.ParseFloat(h.Lon, 64)
		cand := domain.Coordinates{Lat: lat, Lng: lng}
		if errLat != nil || errLng != nil || !cand.Valid() {
			c.logger.Debug("skipping unparseable search hit", slog.String("display_name", h.DisplayName))
			continue
		}
		out = append(out, domain.GeocodeCandidate{
			DisplayName: h.DisplayName,
			Coordinates: cand,
			Source:      sourceNominatim,
		})
	}

	if len(out) == 0 {
		metrics.ObserveGeocode("search", "empty")
		return out, nil
	}
	metrics.ObserveGeocode("search", "ok")
	if raw, err := json.Marshal(out); err == nil {
		c.cacheSet(ctx, key, string(raw))
	}
	return out, nil
}

// call performs one GET through the breaker and retry policy and decodes
// the JSON body into dst. Every failure is wrapped in ErrGeocoderUnavailable.
func (c *Client) call(ctx context.Context, op, path string, q url.Values, dst any) error {
	_, err := retry.Do(ctx, c.retry, c.logger, op, func(ctx context.Context) (struct{}, error) {
		err := c.breaker.Execute(func() error {
			return c.get(ctx, path, q, dst)
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrGeocoderUnavailable, op, err)
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.cfg.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.cfg.AcceptLanguage)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		serr := &statusError{code: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(serr)
		}
		return serr
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) cacheGet(ctx context.Context, key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	return c.cache.Get(ctx, key)
}

func (c *Client) cacheSet(ctx context.Context, key, value string) {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return
	}
	c.cache.Set(ctx, key, value, c.cfg.CacheTTL)
}

var _ domain.Geocoder = (*Client)(nil)
