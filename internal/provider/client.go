// Package provider queries the PredictHQ events API for records matching a
// reported disaster.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/codec"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/metrics"
)

const (
	DefaultBaseURL       = "https://api.predicthq.com"
	DefaultTimeout       = 10 * time.Second
	DefaultMaxConcurrent = 4

	eventsPath   = "/v1/events/"
	maxBodyBytes = 4 << 20
)

// ErrMissingAPIKey is returned by New when no bearer credential is supplied.
var ErrMissingAPIKey = errors.New("provider: api key is required")

// Config configures a Client.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration // per query, including queueing for the rate limiter
	MaxConcurrent int           // in-flight queries; further callers wait
	RatePerSec    float64       // 0 = unlimited
	Burst         int
	HTTPClient    *http.Client
}

// Client is a fail-open PredictHQ client. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	log     *slog.Logger
}

// New validates cfg, applies defaults and returns a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("provider: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    hc,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		limiter: rate.NewLimiter(limit, cfg.Burst),
		log:     slog.With("component", "predicthq"),
	}, nil
}

// Fetch returns the record for the first event matching disasterType and
// location. It never fails: any error resolves to the unconfirmed default.
func (c *Client) Fetch(ctx context.Context, disasterType, location string) codec.EventRecord {
	start := time.Now()
	o := c.Query(ctx, disasterType, location)

	label := o.Label()
	metrics.ProviderRequests.WithLabelValues(label).Inc()
	metrics.ProviderRequestDuration.Observe(time.Since(start).Seconds())

	switch label {
	case ResultError:
		c.log.Warn("query failed, treating as unconfirmed",
			"disaster_type", disasterType, "location", location, "err", o.Err)
	case ResultEmpty:
		c.log.Info("no matching events", "disaster_type", disasterType, "location", location)
	default:
		c.log.Info("matching events found",
			"disaster_type", disasterType, "location", location, "count", len(o.Events), "event_id", o.Events[0].ID)
	}
	return Resolve(o)
}

// Query performs one bounded request and reports the raw outcome.
func (c *Client) Query(ctx context.Context, disasterType, location string) Outcome {
	// Waiting for a slot is not subject to the per-query timeout.
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Outcome{Err: fmt.Errorf("wait for slot: %w", err)}
	}
	defer c.sem.Release(1)
	metrics.ProviderInFlight.Inc()
	defer metrics.ProviderInFlight.Dec()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return Outcome{Err: fmt.Errorf("rate limit: %w", err)}
	}

	events, err := c.get(ctx, disasterType, location)
	if err != nil {
		return Outcome{Err: err}
	}
	if len(events) > 0 {
		if _, _, err := events[0].span(); err != nil {
			return Outcome{Err: fmt.Errorf("parse body: %w", err)}
		}
	}
	return Outcome{Events: events}
}

func (c *Client) get(ctx context.Context, disasterType, location string) ([]Event, error) {
	q := url.Values{}
	q.Set("q", disasterType+" AND location="+location)
	endpoint := c.baseURL + eventsPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var parsed eventsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	if parsed.Results == nil {
		return nil, errors.New("parse body: missing results")
	}
	return parsed.Results, nil
}
