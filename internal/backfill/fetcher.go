// Package backfill implements the REST catch-up fetch used at startup and
// after reconnection gaps. Results flow through the same normalizers and
// store insert path as live frames, so backfill is idempotent against
// already-seen events.
package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mirador/newswire/internal/backoff"
)

const (
	// DefaultRequestTimeout bounds each individual attempt.
	DefaultRequestTimeout = 15 * time.Second

	DefaultMaxRetries = 3
)

// ErrNonRetryable marks failures that must abort immediately: auth
// rejections and policy-class refusals. Surfaced to the caller's error
// state instead of retried.
var ErrNonRetryable = errors.New("non-retryable backfill failure")

type Config struct {
	RequestTimeout time.Duration
	MaxRetries     int
	Backoff        backoff.Policy
	Logger         *slog.Logger

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

type Fetcher struct {
	client     *http.Client
	timeout    time.Duration
	maxRetries int
	policy     backoff.Policy
	logger     *slog.Logger
}

func NewFetcher(cfg Config) *Fetcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff == (backoff.Policy{}) {
		cfg.Backoff = backoff.Policy{
			Base:        1 * time.Second,
			Factor:      2.0,
			Cap:         15 * time.Second,
			MaxExponent: 5,
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Fetcher{
		client:     cfg.HTTPClient,
		timeout:    cfg.RequestTimeout,
		maxRetries: cfg.MaxRetries,
		policy:     cfg.Backoff,
		logger:     cfg.Logger.With("component", "backfill"),
	}
}

// Fetch GETs the endpoint and returns the response's JSON array items as raw
// messages, ready for the source's normalizer. Transient failures retry with
// backoff up to the configured ceiling; non-retryable failures abort
// immediately wrapped in ErrNonRetryable.
func (f *Fetcher) Fetch(ctx context.Context, endpoint, token string) ([]json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.policy.Delay(attempt)
			f.logger.Info("retrying backfill fetch", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		items, err := f.fetchOnce(ctx, endpoint, token)
		if err == nil {
			f.logger.Info("backfill fetch complete", "endpoint", endpoint, "items", len(items))
			return items, nil
		}
		if errors.Is(err, ErrNonRetryable) {
			f.logger.Error("backfill fetch aborted", "endpoint", endpoint, "error", err)
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		f.logger.Warn("backfill fetch failed", "endpoint", endpoint, "attempt", attempt+1, "error", err)
		lastErr = err
	}

	return nil, fmt.Errorf("backfill fetch after %d attempts: %w", f.maxRetries+1, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, endpoint, token string) ([]json.RawMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonRetryable, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if nonRetryableStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: status %d", ErrNonRetryable, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		// Some deployments wrap single objects; tolerate that shape.
		var single json.RawMessage
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		items = []json.RawMessage{single}
	}

	return items, nil
}

// nonRetryableStatus classifies auth/policy rejections that retrying cannot
// fix.
func nonRetryableStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}
