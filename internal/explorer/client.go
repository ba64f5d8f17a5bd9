package explorer

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
	"time"

	"go.uber.org/zap"

	"positionScope/internal/ratelimit"
	"positionScope/internal/resilience"
)

const (
	DefaultV1URL      = "https://flare-explorer.flare.network/api"
	DefaultV2URL      = "https://flare-explorer.flare.network/api/v2"
	DefaultRPS        = 2
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// StatusError is a non-2xx explorer response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("explorer %s: status %d", e.URL, e.StatusCode)
}

// Retryable reports statuses worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Config configures the explorer client.
type Config struct {
	V1URL      string
	V2URL      string
	RPS        float64
	Timeout    time.Duration
	MaxRetries int
	// RetryBase is the first backoff delay; it doubles per attempt.
	RetryBase  time.Duration
	HTTPClient *http.Client
}

// Client talks to an Etherscan compatible V1 API and a Blockscout V2 REST API.
// Every request goes through one shared token bucket.
type Client struct {
	v1URL      string
	v2URL      string
	http       *http.Client
	limiter    *ratelimit.Limiter
	timeout    time.Duration
	maxRetries int
	retryBase  time.Duration
	logger     *zap.Logger
}

// New builds a Client, filling defaults for zero fields.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.V1URL == "" {
		cfg.V1URL = DefaultV1URL
	}
	if cfg.V2URL == "" {
		cfg.V2URL = DefaultV2URL
	}
	if cfg.RPS <= 0 {
		cfg.RPS = DefaultRPS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	limiter, err := ratelimit.New(cfg.RPS)
	if err != nil {
		return nil, err
	}
	logger.Debug("explorer client ready",
		zap.String("v1", cfg.V1URL),
		zap.String("v2", cfg.V2URL),
		zap.Float64("rps", limiter.RequestsPerSecond()),
	)
	return &Client{
		v1URL:      strings.TrimRight(cfg.V1URL, "/"),
		v2URL:      strings.TrimRight(cfg.V2URL, "/"),
		http:       cfg.HTTPClient,
		limiter:    limiter,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
		logger:     logger,
	}, nil
}

// V1Response is the Etherscan style envelope.
type V1Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// FetchV1 calls the V1 API with query params.
func (c *Client) FetchV1(ctx context.Context, params url.Values) (V1Response, error) {
	var resp V1Response
	target := c.v1URL + "?" + params.Encode()
	if err := c.getJSON(ctx, target, &resp); err != nil {
		return V1Response{}, err
	}
	if resp.Status == "0" && !isEmptyResultMessage(resp.Message) {
		c.logger.Warn("explorer v1 returned error",
			zap.String("module", params.Get("module")),
			zap.String("action", params.Get("action")),
			zap.String("message", resp.Message),
		)
	}
	return resp, nil
}

// FetchV2 calls a V2 REST path and decodes the body into out.
func (c *Client) FetchV2(ctx context.Context, path string, params url.Values, out any) error {
	target := c.v2URL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return c.getJSON(ctx, target, out)
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	return resilience.WithRetry(ctx, c.maxRetries, c.retryBase, func(ctx context.Context) error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return resilience.Permanent(err)
		}
		_, err := resilience.WithTimeout(ctx, c.timeout, "explorer request to "+target+" timed out", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.roundTrip(ctx, target, out)
		})
		if err != nil {
			c.logger.Debug("explorer request failed", zap.String("url", target), zap.Error(err))
		}
		return err
	})
}

func (c *Client) roundTrip(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		statusErr := &StatusError{URL: target, StatusCode: resp.StatusCode}
		if !statusErr.Retryable() {
			return resilience.Permanent(statusErr)
		}
		if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return &resilience.RetryAfterError{Wait: wait, Err: statusErr}
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode %s: %w", target, err))
	}
	return nil
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait, true
		}
		return 0, false
	}
	return 0, false
}

func isEmptyResultMessage(message string) bool {
	message = strings.ToLower(message)
	return strings.HasPrefix(message, "no transactions found") ||
		strings.HasPrefix(message, "no records found") ||
		strings.HasPrefix(message, "no logs found") ||
		strings.HasPrefix(message, "no token transfers found")
}

// decodeResult unmarshals a V1 result array. Error envelopes whose result is
// a message string yield an error; empty-result envelopes yield nil.
func decodeResult[T any](resp V1Response) ([]T, error) {
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil, nil
	}
	if resp.Result[0] != '[' {
		if resp.Status == "0" && isEmptyResultMessage(resp.Message) {
			return nil, nil
		}
		var msg string
		if err := json.Unmarshal(resp.Result, &msg); err == nil {
			return nil, errors.New("explorer: " + msg)
		}
		return nil, fmt.Errorf("explorer: unexpected result %s", string(resp.Result))
	}
	var out []T
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
