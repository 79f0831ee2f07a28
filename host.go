package yttitle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"yttitle/auth"
	"yttitle/config"
	"yttitle/internal/desktop"
	"yttitle/internal/logger"
	"yttitle/internal/retry"
	"yttitle/reconcile"
	"yttitle/transport"
	"yttitle/youtube"
)

// HostOptions controls how the YouTube host obtains credentials.
type HostOptions struct {
	// Interactive allows the browser consent flow when no usable token is cached.
	Interactive bool
	// Prompt receives the consent URL. Nil discards it.
	Prompt io.Writer
	// Logger is used by the auth provider and API client. Nil discards.
	Logger *slog.Logger
	// Base is the innermost round tripper (default http.DefaultTransport).
	Base http.RoundTripper
	// Endpoint overrides the YouTube API base URL.
	Endpoint string
}

// RetryConfig converts the configured backoff settings.
func RetryConfig(cfg *config.Config) retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries
	rc.InitialBackoff = cfg.InitialBackoff
	rc.MaxBackoff = cfg.MaxBackoff
	rc.Multiplier = cfg.BackoffMultiplier
	return rc
}

// TransportConfig converts the configured throttling settings.
func TransportConfig(cfg *config.Config) transport.Config {
	tc := transport.DefaultConfig()
	tc.RequestsPerSecond = cfg.RequestsPerSecond
	tc.BreakerThreshold = cfg.BreakerThreshold
	tc.BreakerCooldown = cfg.BreakerCooldown
	return tc
}

// NewAuthProvider returns the OAuth provider for the configured secrets and
// token cache. Token traffic goes through the same throttled transport as
// API calls.
func NewAuthProvider(cfg *config.Config, opts HostOptions) *auth.Provider {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	prompt := opts.Prompt
	if prompt == nil {
		prompt = io.Discard
	}
	return auth.NewProvider(cfg.ClientSecrets, cfg.TokenFile,
		auth.WithInteractive(opts.Interactive),
		auth.WithPrompt(prompt),
		auth.WithBrowserOpener(desktop.New().OpenURL),
		auth.WithTransport(transport.New(TransportConfig(cfg), base)),
		auth.WithLogger(log),
	)
}

// LazyHost builds the YouTube client on first use so that commands which
// never touch the API work without credentials. A failed build is not
// cached; the next call tries again.
type LazyHost struct {
	build func(ctx context.Context) (reconcile.VideoHost, error)

	mu   sync.Mutex
	host reconcile.VideoHost
}

// NewYouTubeHost returns a LazyHost backed by the YouTube Data API.
func NewYouTubeHost(cfg *config.Config, opts HostOptions) *LazyHost {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return NewLazyHost(func(ctx context.Context) (reconcile.VideoHost, error) {
		// The client outlives the call that built it; token refreshes
		// must not inherit its cancellation.
		ctx = context.WithoutCancel(ctx)
		httpClient, err := NewAuthProvider(cfg, opts).Client(ctx)
		if err != nil {
			return nil, err
		}
		clientOpts := []youtube.Option{
			youtube.WithRetry(RetryConfig(cfg)),
			youtube.WithLogger(log),
		}
		if opts.Endpoint != "" {
			clientOpts = append(clientOpts, youtube.WithEndpoint(opts.Endpoint))
		}
		client, err := youtube.NewClient(ctx, httpClient, clientOpts...)
		if err != nil {
			return nil, err
		}
		log.Info("connected to YouTube API")
		return client, nil
	})
}

// NewLazyHost wraps an arbitrary host constructor.
func NewLazyHost(build func(ctx context.Context) (reconcile.VideoHost, error)) *LazyHost {
	return &LazyHost{build: build}
}

func (h *LazyHost) get(ctx context.Context) (reconcile.VideoHost, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.host != nil {
		return h.host, nil
	}
	host, err := h.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to YouTube API: %w", err)
	}
	h.host = host
	return host, nil
}

// LiveStreamInfo implements reconcile.VideoHost.
func (h *LazyHost) LiveStreamInfo(ctx context.Context) (youtube.Broadcast, error) {
	host, err := h.get(ctx)
	if err != nil {
		return youtube.Broadcast{}, err
	}
	return host.LiveStreamInfo(ctx)
}

// UpdateVideoTitle implements reconcile.VideoHost.
func (h *LazyHost) UpdateVideoTitle(ctx context.Context, videoID, title string) error {
	host, err := h.get(ctx)
	if err != nil {
		return err
	}
	return host.UpdateVideoTitle(ctx, videoID, title)
}
