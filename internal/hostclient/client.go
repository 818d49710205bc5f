// SPDX-License-Identifier: MIT

// Package hostclient implements the JSON-RPC-over-HTTP transport used to
// talk to the host media application. It is grounded on the teacher's
// OpenWebIF client: a circuit breaker guards against cascading failures, a
// token-bucket limiter caps request rate, idempotent GET-equivalent calls
// are read-through cached, and transport failures are retried with backoff
// before giving up (a host-reported JSON-RPC error is returned at once).
package hostclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/nfosync/nfosync/internal/cache"
	"github.com/nfosync/nfosync/internal/resilience"
)

var tracer = otel.Tracer("github.com/nfosync/nfosync/internal/hostclient")

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nfosync_host_request_duration_seconds",
		Help:    "Host JSON-RPC request latency by method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	requestRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nfosync_host_request_retries_total",
		Help: "Host JSON-RPC retries by method.",
	}, []string{"method"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nfosync_host_request_failures_total",
		Help: "Host JSON-RPC requests that ultimately failed, by method.",
	}, []string{"method"})

	requestSuccess = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nfosync_host_request_success_total",
		Help: "Host JSON-RPC requests that ultimately succeeded, by method.",
	}, []string{"method"})

	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nfosync_host_cache_hits_total",
		Help: "Host client response-cache hits by method.",
	}, []string{"method"})
)

// mutatingMethods never get a cached response, and invalidate nothing on
// their own: the engine's own change-detection decides what to re-fetch.
var mutatingMethods = map[string]bool{
	"VideoLibrary.RefreshMovie":   true,
	"VideoLibrary.RefreshTVShow":  true,
	"VideoLibrary.RefreshEpisode": true,
	"VideoLibrary.Clean":          true,
	"VideoLibrary.Scan":           true,
	"JSONRPC.NotifyAll":           true,
	"GUI.ShowNotification":        true,
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	RateLimit rate.Limit
	RateBurst int

	MaxRetries  int
	RetryWait   time.Duration
	CacheTTL    time.Duration
	Cache       cache.Cache // nil disables response caching

	CircuitThreshold   int
	CircuitMinAttempts int
	CircuitWindow      time.Duration
	CircuitResetAfter  time.Duration
}

// Client is a JSON-RPC-over-HTTP client for the host media application.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	cache   cache.Cache
	logger  zerolog.Logger

	nextID atomic.Uint64
}

// New constructs a Client from cfg.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 250 * time.Millisecond
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}

	c := cfg.Cache
	if c == nil {
		c = cache.NewNoOpCache()
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		breaker: resilience.NewCircuitBreaker(
			"hostclient",
			cfg.CircuitThreshold,
			cfg.CircuitMinAttempts,
			cfg.CircuitWindow,
			cfg.CircuitResetAfter,
		),
		cache:  c,
		logger: logger.With().Str("component", "hostclient").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("host rpc error %d: %s", e.Code, e.Message)
}

// Call invokes method with params, returning the raw "result" field. GET-
// equivalent methods (anything not in mutatingMethods) are read-through
// cached for Config.CacheTTL.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "hostclient.Call", trace.WithAttributes(attribute.String("rpc.method", method)))
	defer span.End()

	cacheable := c.cfg.CacheTTL > 0 && !mutatingMethods[method]
	var cacheKey string
	if cacheable {
		key, err := cacheKeyFor(method, params)
		if err == nil {
			cacheKey = key
			if v, ok := c.cache.Get(cacheKey); ok {
				if s, ok := v.(string); ok {
					cacheHits.WithLabelValues(method).Inc()
					return json.RawMessage(s), nil
				}
			}
		}
	}

	start := time.Now()
	raw, err := c.callWithRetry(ctx, method, params)
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		requestFailures.WithLabelValues(method).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	requestSuccess.WithLabelValues(method).Inc()

	if cacheable && cacheKey != "" {
		c.cache.Set(cacheKey, string(raw), c.cfg.CacheTTL)
	}
	return raw, nil
}

func (c *Client) callWithRetry(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			requestRetries.WithLabelValues(method).Inc()
			wait := c.cfg.RetryWait * time.Duration(1<<uint(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(wait) / 2))
			select {
			case <-time.After(wait + jitter):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		if !c.breaker.AllowRequest() {
			return nil, resilience.ErrCircuitOpen
		}
		c.breaker.RecordAttempt()

		raw, err := c.doCall(ctx, method, params)
		if err == nil {
			c.breaker.RecordSuccess()
			return raw, nil
		}

		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			// A host-reported JSON-RPC error is semantic, not transient: the
			// transport round-tripped fine, the host just rejected the call.
			// Retrying it would never change the outcome, and it is not the
			// crash/timeout/stall the breaker exists to detect.
			c.breaker.RecordSuccess()
			return nil, rpcErr
		}

		c.breaker.RecordTechnicalFailure()
		lastErr = err
		c.logger.Warn().Err(err).Str("method", method).Int("attempt", attempt).Msg("host rpc attempt failed")
	}
	return nil, fmt.Errorf("host rpc %s failed after %d attempts: %w", method, c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) doCall(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("host returned status %d", resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, decoded.Error
	}
	return decoded.Result, nil
}

// Notify publishes method as a bus notification via JSONRPC.NotifyAll, the
// host RPC used for outbound self-notifications.
func (c *Client) Notify(ctx context.Context, method string, data any) error {
	_, err := c.Call(ctx, "JSONRPC.NotifyAll", map[string]any{
		"sender": "service.nfosync",
		"message": method,
		"data":    data,
	})
	return err
}

// NotifyUser surfaces a user-facing notification through the host's GUI,
// tagged with code for a localized message lookup on the host side
// (the engine never owns message translation itself).
func (c *Client) NotifyUser(ctx context.Context, code int, message string) error {
	_, err := c.Call(ctx, "GUI.ShowNotification", map[string]any{
		"title":             "nfosync",
		"message":           message,
		"notification_code": code,
	})
	return err
}

// FileModTime asks the host for path's modification time via
// Files.GetFileDetails. The second return reports whether the host
// considers the file to exist at all.
func (c *Client) FileModTime(ctx context.Context, path string) (time.Time, bool, error) {
	raw, err := c.Call(ctx, "Files.GetFileDetails", map[string]any{
		"file":       path,
		"properties": []string{"lastmodified"},
	})
	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			// The host reports a missing file as a JSON-RPC error rather than
			// an empty result; treat it as absence like the original addon's
			// request-error-means-None handling, not a transport failure.
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	var envelope struct {
		FileDetails struct {
			LastModified string `json:"lastmodified"`
		} `json:"filedetails"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return time.Time{}, false, fmt.Errorf("decode file details: %w", err)
	}
	if envelope.FileDetails.LastModified == "" {
		return time.Time{}, false, nil
	}

	t, err := time.Parse("2006-01-02 15:04:05", envelope.FileDetails.LastModified)
	if err != nil {
		t, err = time.Parse(time.RFC3339, envelope.FileDetails.LastModified)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("parse lastmodified %q: %w", envelope.FileDetails.LastModified, err)
		}
	}
	return t.UTC(), true, nil
}

func cacheKeyFor(method string, params any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return method + ":" + strconv.Itoa(len(raw)) + ":" + string(raw), nil
}
