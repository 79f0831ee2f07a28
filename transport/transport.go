// Package transport provides the http.RoundTripper that sits under the
// OAuth2 client for YouTube API calls. It throttles requests with a token
// bucket, honours Retry-After on 429 responses and fails fast through a
// per-host circuit breaker.
package transport

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a Transport.
type Config struct {
	// RequestsPerSecond is the token bucket rate. Zero disables throttling.
	RequestsPerSecond float64
	// Burst is the token bucket size.
	Burst int
	// BreakerThreshold is the number of consecutive failures that opens a circuit.
	BreakerThreshold int
	// BreakerCooldown is how long a circuit stays open before a probe.
	BreakerCooldown time.Duration
	// MaxRetryAfter caps the pause taken after a 429 response.
	MaxRetryAfter time.Duration
}

// DefaultConfig returns conservative limits for the YouTube Data API.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 2,
		Burst:             2,
		BreakerThreshold:  5,
		BreakerCooldown:   30 * time.Second,
		MaxRetryAfter:     time.Minute,
	}
}

// Transport is a rate-limited, circuit-breaking http.RoundTripper.
type Transport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
	breaker *Breaker
	maxWait time.Duration
	now     func() time.Time

	mu          sync.Mutex
	pausedUntil time.Time
}

// New wraps base (http.DefaultTransport when nil).
func New(cfg Config, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	maxWait := cfg.MaxRetryAfter
	if maxWait <= 0 {
		maxWait = DefaultConfig().MaxRetryAfter
	}
	return &Transport{
		base:    base,
		limiter: rate.NewLimiter(limit, burst),
		breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		maxWait: maxWait,
		now:     time.Now,
	}
}

// Breaker exposes the circuit breaker for inspection.
func (t *Transport) Breaker() *Breaker { return t.breaker }

// RoundTrip implements http.RoundTripper. 5xx responses, 429 responses and
// transport errors count as failures; other responses count as successes.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Hostname()
	if err := t.breaker.Allow(host); err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, host, err)
	}

	ctx := req.Context()
	if wait := t.pause(); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			t.breaker.Failure(host)
			return nil, ctx.Err()
		}
	}
	if err := t.limiter.Wait(ctx); err != nil {
		t.breaker.Failure(host)
		return nil, err
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.breaker.Failure(host)
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		t.setPause(parseRetryAfter(resp.Header.Get("Retry-After"), t.now()))
		t.breaker.Failure(host)
	case resp.StatusCode >= 500:
		t.breaker.Failure(host)
	default:
		t.breaker.Success(host)
	}
	return resp, nil
}

func (t *Transport) pause() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pausedUntil.Sub(t.now())
}

func (t *Transport) setPause(d time.Duration) {
	if d <= 0 {
		return
	}
	if d > t.maxWait {
		d = t.maxWait
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if until := t.now().Add(d); until.After(t.pausedUntil) {
		t.pausedUntil = until
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return at.Sub(now)
	}
	return 0
}
