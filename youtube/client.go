// Package youtube talks to the YouTube Data API v3: it finds the channel's
// active live broadcast and renames the broadcast video.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"yttitle/internal/retry"
	"yttitle/transport"
)

// Broadcast is a snapshot of the channel's live state.
type Broadcast struct {
	// IsLive is true when an active broadcast exists.
	IsLive bool
	// VideoID is the broadcast's video ID; empty when not live.
	VideoID string
	// Title is the broadcast's current remote title; empty when not live.
	Title string
}

// Client is a YouTube Data API client for the authenticated channel.
type Client struct {
	service *youtube.Service
	retry   retry.Config
	log     *slog.Logger
}

type clientOptions struct {
	endpoint string
	retry    *retry.Config
	log      *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

// WithEndpoint points the client at a different API root.
func WithEndpoint(url string) Option {
	return func(o *clientOptions) { o.endpoint = url }
}

// WithRetry sets the retry policy for each API call.
func WithRetry(cfg retry.Config) Option {
	return func(o *clientOptions) { o.retry = &cfg }
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *clientOptions) { o.log = log }
}

// NewClient creates a Client that sends requests through httpClient, which
// is expected to carry the OAuth2 credentials.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("youtube: http client required")
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	svcOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if o.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(o.endpoint))
	}
	service, err := youtube.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	c := &Client{
		service: service,
		retry:   retry.DefaultConfig(),
		log:     o.log,
	}
	if o.retry != nil {
		c.retry = *o.retry
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c, nil
}

// LiveStreamInfo returns the first active broadcast of the authenticated
// channel, or a Broadcast with IsLive false when there is none.
func (c *Client) LiveStreamInfo(ctx context.Context) (Broadcast, error) {
	const op = "liveBroadcasts.list"

	var result Broadcast
	err := c.do(ctx, op, func(ctx context.Context) error {
		resp, err := c.service.LiveBroadcasts.List([]string{"snippet"}).
			BroadcastStatus("active").
			BroadcastType("all").
			MaxResults(1).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}

		result = Broadcast{}
		if len(resp.Items) == 0 {
			return nil
		}
		item := resp.Items[0]
		result.IsLive = true
		result.VideoID = item.Id
		if item.Snippet != nil {
			result.Title = item.Snippet.Title
		}
		return nil
	})
	if err != nil {
		return Broadcast{}, err
	}
	return result, nil
}

// UpdateVideoTitle renames videoID. The current snippet is fetched first so
// that the update keeps the description, category and other snippet fields.
func (c *Client) UpdateVideoTitle(ctx context.Context, videoID, title string) error {
	if videoID == "" {
		return &APIError{Op: "videos.update", Err: errors.New("empty video id")}
	}

	var snippet *youtube.VideoSnippet
	err := c.do(ctx, "videos.list", func(ctx context.Context) error {
		resp, err := c.service.Videos.List([]string{"snippet"}).
			Id(videoID).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
			return retry.Permanent(fmt.Errorf("%w: video %s", ErrNoData, videoID))
		}
		snippet = resp.Items[0].Snippet
		return nil
	})
	if err != nil {
		return err
	}

	snippet.Title = title
	video := &youtube.Video{Id: videoID, Snippet: snippet}
	return c.do(ctx, "videos.update", func(ctx context.Context) error {
		_, err := c.service.Videos.Update([]string{"snippet"}, video).Context(ctx).Do()
		return err
	})
}

// do runs fn under the retry policy and wraps any failure in an APIError.
func (c *Client) do(ctx context.Context, op string, fn func(context.Context) error) error {
	cfg := c.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.log.Warn("youtube: retrying api call", "op", op, "attempt", attempt, "delay", delay, "error", err)
	}
	if err := retry.Do(ctx, cfg, isRetryable, fn); err != nil {
		return &APIError{Op: op, Err: err}
	}
	return nil
}

// isRetryable classifies API failures. Quota exhaustion and client errors
// are permanent; rate limiting, backend errors and transport failures are
// retried.
func isRetryable(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	if errors.Is(err, transport.ErrCircuitOpen) || errors.Is(err, ErrNoData) {
		return false
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return true
	}
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded":
			return false
		case "rateLimitExceeded", "userRateLimitExceeded", "backendError":
			return true
		}
	}
	return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
}
