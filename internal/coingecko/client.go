package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-market-lab/internal/domain"
)

// Default client configuration.
const (
	DefaultBaseURL     = "https://api.coingecko.com/api/v3"
	DefaultTimeout     = 30 * time.Second
	DefaultMinInterval = 1200 * time.Millisecond

	// Metadata lookups run at a fraction of the chart pacing; they are
	// cheaper for the provider.
	metadataPacing = 0.6

	maxErrorBodyBytes = 512
)

// Client is a rate-limited CoinGecko REST client with bounded retries,
// exponential backoff and progressive window narrowing. Safe for
// concurrent use; the min-interval gate serializes outbound requests.
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	policy      RetryPolicy
	minInterval time.Duration
	logger      zerolog.Logger
	onRetry     func()

	mu   sync.Mutex
	last time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithPolicy sets the retry policy.
func WithPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithMinInterval sets the minimum delay between consecutive requests.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.minInterval = d }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetryHook registers a callback invoked once per retry attempt.
func WithRetryHook(fn func()) Option {
	return func(c *Client) { c.onRetry = fn }
}

// New creates a new CoinGecko client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		policy:      DefaultRetryPolicy(),
		minInterval: DefaultMinInterval,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MarketChartRange fetches (timestamp, price) and (timestamp, volume)
// samples for one asset and window. On a rejected window it halves the
// range toward the window end and retries, trading completeness for
// partial success.
func (c *Client) MarketChartRange(ctx context.Context, assetID string, w domain.Window) (*ChartData, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	window := w
	for narrows := 0; ; narrows++ {
		data, err := c.chartAttempt(ctx, assetID, window)
		if err == nil {
			if narrows > 0 {
				c.logger.Warn().
					Str("asset", assetID).
					Stringer("requested", w).
					Stringer("served", window).
					Msg("window narrowed; older points in the requested range were not fetched")
			}
			return data, nil
		}

		var se *StatusError
		if errors.As(err, &se) && c.policy.Classify(se.Code) == ActionNarrow && narrows < c.policy.MaxNarrow {
			mid := window.Start.Add(window.Duration() / 2)
			window = domain.NewWindow(mid, window.End)
			c.logger.Debug().
				Str("asset", assetID).
				Stringer("window", window).
				Int("step", narrows+1).
				Msg("provider rejected range, retrying narrower window")
			continue
		}

		return nil, err
	}
}

// chartAttempt runs one request against a fixed window, retrying
// transient failures with exponential backoff.
func (c *Client) chartAttempt(ctx context.Context, assetID string, w domain.Window) (*ChartData, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("from", strconv.FormatInt(w.Start.Unix(), 10))
	q.Set("to", strconv.FormatInt(w.End.Unix(), 10))
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart/range?%s", c.baseURL, url.PathEscape(assetID), q.Encode())

	var data ChartData
	if err := c.getJSON(ctx, endpoint, c.minInterval, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Metadata fetches the (symbol, display name) pair for one asset.
// Returns ErrAssetNotFound for unknown ids; the resolver falls back.
func (c *Client) Metadata(ctx context.Context, assetID string) (domain.AssetMeta, error) {
	endpoint := fmt.Sprintf("%s/coins/%s?localization=false", c.baseURL, url.PathEscape(assetID))
	interval := time.Duration(float64(c.minInterval) * metadataPacing)

	var meta coinMeta
	if err := c.getJSON(ctx, endpoint, interval, &meta); err != nil {
		return domain.AssetMeta{}, err
	}

	return domain.AssetMeta{
		Symbol:      strings.ToUpper(meta.Symbol),
		DisplayName: meta.Name,
	}, nil
}

// getJSON performs a rate-gated GET with the policy's retry loop and
// decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, interval time.Duration, out any) error {
	delay := c.policy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if c.onRetry != nil {
				c.onRetry()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = c.policy.NextDelay(delay)
		}

		if err := c.gate(ctx, interval); err != nil {
			return err
		}

		err := c.doGet(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) {
			switch c.policy.Classify(se.Code) {
			case ActionRetry:
				c.logger.Debug().Int("status", se.Code).Int("attempt", attempt+1).Msg("transient provider error")
				continue
			default:
				// Fail fast, narrow, skip: all decided by the caller.
				return err
			}
		}
		// Transport-level failure: transient.
		c.logger.Debug().Err(err).Int("attempt", attempt+1).Msg("request failed")
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", c.policy.MaxRetries+1, lastErr)
}

// gate enforces the minimum delay since the previous request. The slot
// is reserved under the lock before waiting, so concurrent callers each
// get their own interval; a cancelled wait burns its reservation.
func (c *Client) gate(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	c.mu.Lock()
	next := c.last.Add(interval)
	if now := time.Now(); next.Before(now) {
		next = now
	}
	c.last = next
	c.mu.Unlock()

	if wait := time.Until(next); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// doGet performs a single HTTP round trip.
func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		// The provider reads a different header per plan; setting all
		// three to the same value works for demo, free and pro keys.
		req.Header.Set("x-cg-api-key", c.apiKey)
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
