// Package client provides the Sincera publisher API client with rate
// limiting, retry handling and error classification.
package client

import (
	"bytes"
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

	"github.com/miyaichi/sincera-data-processor/pkg/logging"
	"github.com/miyaichi/sincera-data-processor/pkg/publisher"
	"github.com/miyaichi/sincera-data-processor/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for Sincera client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sincera_requests_total",
		Help: "Total Sincera API requests by identifier kind and status",
	}, []string{"kind", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sincera_request_duration_seconds",
		Help:    "Sincera API request duration in seconds by identifier kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sincera_errors_total",
		Help: "Total Sincera API errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the Sincera publisher lookup endpoint.
const DefaultBaseURL = "https://open.sincera.io/api/publishers"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// maxErrorBodyBytes bounds how much of an error body ends up in messages.
const maxErrorBodyBytes = 256

// defaultRetryAfter is the wait after a 429 that carries no usable
// Retry-After header.
const defaultRetryAfter = 2 * time.Second

// maxRetryAfter caps a server-supplied Retry-After.
const maxRetryAfter = 24 * time.Hour

// ErrorClass represents a classification of lookup errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassResponse represents 200 responses without usable data.
	ErrorClassResponse ErrorClass = "response"
)

// Gate blocks until a request may be dispatched.
type Gate interface {
	Acquire(ctx context.Context) error
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the lookup endpoint; identifiers go in the query string.
	BaseURL string

	// Token is the static bearer token.
	Token string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout is the per-request network timeout.
	Timeout time.Duration

	Retry RetryConfig

	// Limiter is acquired once before every attempt.
	Limiter Gate

	// Clock drives retry delays. Defaults to ratelimit.SystemClock.
	Clock ratelimit.Clock
}

// DefaultConfig returns a configuration with the Sincera defaults.
func DefaultConfig(token string, limiter Gate) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Token:     token,
		UserAgent: "sincera-data-processor/0.1.0",
		Timeout:   10 * time.Second,
		Retry:     DefaultRetryConfig(),
		Limiter:   limiter,
		Clock:     ratelimit.SystemClock{},
	}
}

// Client is the Sincera publisher lookup client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	clock      ratelimit.Clock
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("api token is required")
	}

	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = ratelimit.SystemClock{}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: baseURL,
		config:  cfg,
		clock:   clock,
		logger:  logging.NewLogger(logging.ComponentClient),
	}, nil
}

// Lookup fetches publisher metadata for one request. It never returns an
// error; failures are reported in the result.
func (c *Client) Lookup(ctx context.Context, req publisher.LookupRequest) publisher.LookupResult {
	result := publisher.LookupResult{
		Request: req,
		State:   publisher.StatePending,
	}

	logger := c.logger.With().
		Int("row", req.Row).
		Str("identifier_kind", string(req.Kind)).
		Str("identifier", req.Value).
		Logger()

	target, err := c.lookupURL(req)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid identifier - skipping request")
		result.State = publisher.StateTerminalFailure
		result.Err = err
		return result
	}

	attempts, err := retryWithBackoff(ctx, c.config.Retry, c.clock, logger, func(attempt int) error {
		if err := c.config.Limiter.Acquire(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		c.transition(logger, &result, publisher.StateInFlight, attempt)
		payload, err := c.fetch(ctx, req.Kind, target)
		if err != nil {
			if shouldRetry(classOf(err)) {
				c.transition(logger, &result, publisher.StateRetryableFailure, attempt)
			}
			return err
		}

		result.Payload = payload
		return nil
	})

	result.Attempts = attempts
	if err != nil {
		c.transition(logger, &result, publisher.StateTerminalFailure, attempts)
		result.Err = err
		result.Payload = nil
		return result
	}

	c.transition(logger, &result, publisher.StateSuccess, attempts)
	return result
}

func (c *Client) transition(logger zerolog.Logger, result *publisher.LookupResult, to publisher.State, attempt int) {
	logger.Debug().
		Str("from", string(result.State)).
		Str("to", string(to)).
		Int("attempt", attempt).
		Msg("Lookup state transition")
	result.State = to
}

// lookupURL builds the query URL for req.
func (c *Client) lookupURL(req publisher.LookupRequest) (string, error) {
	u := *c.baseURL
	q := u.Query()

	switch req.Kind {
	case publisher.KindDomain:
		if req.Value == "" {
			return "", fmt.Errorf("empty domain")
		}
		q.Set("domain", req.Value)
	case publisher.KindPublisherID:
		id, err := publisher.NormalizePublisherID(req.Value)
		if err != nil {
			return "", err
		}
		q.Set("id", id)
	default:
		return "", fmt.Errorf("unknown identifier kind %q", req.Kind)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetch performs a single HTTP attempt.
func (c *Client) fetch(ctx context.Context, kind publisher.IdentifierKind, target string) (map[string]string, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(string(kind)).Observe(time.Since(startTime).Seconds())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)
	httpReq.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().Str("url", target).Msg("Executing Sincera request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(string(kind), "network_error").Inc()
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(string(kind), strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if resp.StatusCode == http.StatusOK {
		payload, err := decodePayload(body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassResponse)).Inc()
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassResponse,
				Message:    "unusable response",
				Err:        err,
			}
		}
		return payload, nil
	}

	errClass := classifyStatus(resp.StatusCode)
	errorsTotal.WithLabelValues(string(errClass)).Inc()

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: errClass,
		Message:    errorMessage(resp.Status, body),
	}
	if errClass == ErrorClassRateLimit {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.clock.Now())
		if apiErr.RetryAfter <= 0 {
			apiErr.RetryAfter = defaultRetryAfter
		}
	}

	c.logger.Debug().
		Int("status_code", resp.StatusCode).
		Str("error_class", string(errClass)).
		Msg("Sincera request error")

	return nil, apiErr
}

// classifyStatus maps a non-200 status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// decodePayload accepts a JSON object, or a list whose first element is an
// object.
func decodePayload(body []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch v := data.(type) {
	case map[string]any:
		return publisher.FlattenPayload(v), nil
	case []any:
		if len(v) == 0 {
			return nil, ErrNotFound
		}
		first, ok := v[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: list element is not an object", ErrMalformedResponse)
		}
		return publisher.FlattenPayload(first), nil
	default:
		return nil, fmt.Errorf("%w: unexpected JSON %T", ErrMalformedResponse, data)
	}
}

// parseRetryAfter reads a Retry-After header given as seconds or HTTP date,
// capped at maxRetryAfter. Returns 0 when absent or unparsable.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		if seconds > int(maxRetryAfter/time.Second) {
			return maxRetryAfter
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return min(d, maxRetryAfter)
		}
	}
	return 0
}

func errorMessage(status string, body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyBytes {
		text = text[:maxErrorBodyBytes] + "..."
	}
	if text == "" {
		return status
	}
	return status + ": " + text
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// IsNotFound reports whether err means the publisher does not exist, either
// as a 404 or as an empty result list.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
