// Package upstream is the single GET-only gateway to the football data
// provider. It classifies every response and retries transient failures.
// It does not archive responses itself: its callers pass each returned
// Result to the Raw Archive Writer.
package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"

	"github.com/brightpitch/fixtureflow/internal/platform/resilience"
	"github.com/brightpitch/fixtureflow/internal/ratelimit"
)

const defaultTimeout = 20 * time.Second

var ErrAuthFailed = fmt.Errorf("upstream: authentication failed")

// Result is the full outcome of a single call handed back to callers: the
// decoded envelope (when the body parsed), the classification, and the
// data the Raw Archive Writer needs regardless of outcome.
type Result struct {
	Outcome    Outcome
	Envelope   Envelope
	StatusCode int
	Headers    map[string]string
	Body       []byte
	FetchedAt  time.Time
}

type ClientConfig struct {
	BaseURL        string
	AuthHeaderName string
	AuthToken      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffCeiling time.Duration
	Logger         *slog.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client issues GET-only requests against the upstream provider. Each
// distinct endpoint path gets its own circuit breaker so one misbehaving
// endpoint does not trip calls to unrelated ones.
type Client struct {
	http           *fasthttp.Client
	baseURL        string
	authHeaderName string
	authToken      string
	maxRetries     int
	backoffCeiling time.Duration
	logger         *slog.Logger
	breakerCfg     resilience.CircuitBreakerConfig

	governor *ratelimit.Governor
	flight   resilience.SingleFlight

	breakersMu sync.Mutex
	breakers   map[string]*resilience.CircuitBreaker
}

func NewClient(cfg ClientConfig, governor *ratelimit.Governor) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoffCeiling := cfg.BackoffCeiling
	if backoffCeiling <= 0 {
		backoffCeiling = 30 * time.Second
	}

	return &Client{
		http:           &fasthttp.Client{ReadTimeout: timeout, WriteTimeout: timeout},
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		authHeaderName: cfg.AuthHeaderName,
		authToken:      cfg.AuthToken,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		backoffCeiling: backoffCeiling,
		logger:         logger,
		breakerCfg:     resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker),
		governor:       governor,
		breakers:       make(map[string]*resilience.CircuitBreaker),
	}
}

// Get issues a single logical GET against endpoint with the given query
// parameters, retrying transient outcomes (rate_limited, server_error)
// with exponential backoff. Concurrent identical calls are deduplicated.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (Result, error) {
	dedupKey := endpoint + "?" + encodeParams(params)

	out, err, _ := c.flight.Do(dedupKey, func() (any, error) {
		return c.doWithRetry(ctx, endpoint, params)
	})
	if err != nil {
		return Result{}, err
	}
	return out.(Result), nil
}

func (c *Client) doWithRetry(ctx context.Context, endpoint string, params map[string]string) (Result, error) {
	breaker := c.breakerFor(endpoint)

	var lastResult Result
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.breakerCfg.Enabled {
			if err := breaker.Allow(); err != nil {
				return Result{}, fmt.Errorf("%w: endpoint=%s", err, endpoint)
			}
		}

		if err := c.governor.Acquire(ctx); err != nil {
			return Result{}, fmt.Errorf("rate governor: %w", err)
		}

		result, err := c.doOnce(ctx, endpoint, params)
		if err != nil {
			lastErr = err
			if c.breakerCfg.Enabled {
				breaker.RecordFailure()
			}
			if attempt == c.maxRetries {
				break
			}
			if !c.sleepBackoff(ctx, attempt) {
				return Result{}, ctx.Err()
			}
			continue
		}

		lastResult = result
		lastErr = nil

		if result.Outcome == OutcomeRateLimited {
			c.governor.ObserveRateLimited()
		}

		if c.breakerCfg.Enabled {
			if result.Outcome == OutcomeServerError {
				breaker.RecordFailure()
			} else {
				breaker.RecordSuccess()
			}
		}

		if !result.Outcome.isRetryable() {
			if result.Outcome == OutcomeAuthFailed {
				return result, ErrAuthFailed
			}
			return result, nil
		}

		if attempt == c.maxRetries {
			break
		}
		if !c.sleepBackoff(ctx, attempt) {
			return Result{}, ctx.Err()
		}
	}

	if lastErr != nil {
		return Result{}, lastErr
	}
	return lastResult, nil
}

func (c *Client) doOnce(ctx context.Context, endpoint string, params map[string]string) (Result, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.WriteString(c.baseURL)
	buf.WriteString(endpoint)
	if query := encodeParams(params); query != "" {
		buf.WriteString("?")
		buf.WriteString(query)
	}

	req.SetRequestURI(buf.String())
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.authHeaderName != "" {
		req.Header.Set(c.authHeaderName, c.authToken)
	}

	deadline, ok := ctx.Deadline()
	var err error
	if ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.Do(req, resp)
	}
	if err != nil {
		return Result{}, fmt.Errorf("upstream request endpoint=%s: %w", endpoint, err)
	}

	body := append([]byte(nil), resp.Body()...)
	statusCode := resp.StatusCode()
	headers := collectHeaders(resp)

	result := Result{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
		FetchedAt:  time.Now(),
	}

	outcome := classifyStatus(statusCode)
	if outcome != OutcomeOK {
		result.Outcome = outcome
		return result, nil
	}

	var envelope Envelope
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		c.logger.WarnContext(ctx, "upstream envelope decode failed", "endpoint", endpoint, "error", err)
		result.Outcome = OutcomeServerError
		return result, nil
	}
	result.Envelope = envelope

	switch {
	case envelope.HasRateLimitError():
		result.Outcome = OutcomeRateLimited
	case envelope.HasErrors():
		result.Outcome = OutcomeEnvelopeError
	default:
		result.Outcome = OutcomeOK
	}

	return result, nil
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) bool {
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > c.backoffCeiling {
		backoff = c.backoffCeiling
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) breakerFor(endpoint string) *resilience.CircuitBreaker {
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()

	if b, ok := c.breakers[endpoint]; ok {
		return b
	}
	b := resilience.NewCircuitBreaker(c.breakerCfg.FailureThreshold, c.breakerCfg.OpenTimeout, c.breakerCfg.HalfOpenMaxReq)
	c.breakers[endpoint] = b
	return b
}

func collectHeaders(resp *fasthttp.Response) map[string]string {
	out := make(map[string]string)
	resp.Header.VisitAll(func(key, value []byte) {
		out[string(key)] = string(value)
	})
	return out
}

func encodeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}
