// Package auth obtains OAuth2 credentials for the YouTube Data API using the
// installed-application flow and caches the token on disk.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"yttitle/storage"
)

// Scope is the OAuth2 scope needed to read broadcasts and rename videos.
const Scope = youtube.YoutubeScope

// Provider hands out authenticated HTTP clients.
type Provider struct {
	secretsPath string
	tokenPath   string
	interactive bool
	openBrowser func(url string) error
	prompt      io.Writer
	base        http.RoundTripper
	log         *slog.Logger

	mu   sync.Mutex
	conf *oauth2.Config
}

// Option configures a Provider.
type Option func(*Provider)

// WithInteractive controls whether the provider may run the browser consent
// flow. Non-interactive providers fail with ErrConsentRequired instead.
func WithInteractive(interactive bool) Option {
	return func(p *Provider) { p.interactive = interactive }
}

// WithBrowserOpener sets the function that opens the consent URL.
func WithBrowserOpener(open func(url string) error) Option {
	return func(p *Provider) { p.openBrowser = open }
}

// WithPrompt sets where the consent URL is printed for manual opening.
func WithPrompt(w io.Writer) Option {
	return func(p *Provider) { p.prompt = w }
}

// WithTransport sets the round tripper under the OAuth2 transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Provider) { p.base = rt }
}

// WithLogger sets the provider logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) {
		if log != nil {
			p.log = log
		}
	}
}

// NewProvider returns a Provider reading client secrets from secretsPath and
// caching the token at tokenPath. It is interactive by default.
func NewProvider(secretsPath, tokenPath string, opts ...Option) *Provider {
	p := &Provider{
		secretsPath: secretsPath,
		tokenPath:   tokenPath,
		interactive: true,
		prompt:      io.Discard,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TokenPath returns the token cache location.
func (p *Provider) TokenPath() string { return p.tokenPath }

// Config parses the client secrets file.
func (p *Provider) Config() (*oauth2.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conf != nil {
		c := *p.conf
		return &c, nil
	}
	data, err := os.ReadFile(p.secretsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &AuthError{Op: "secrets", Err: fmt.Errorf("client secrets file not found at: %s", p.secretsPath)}
		}
		return nil, &AuthError{Op: "secrets", Err: err}
	}
	conf, err := google.ConfigFromJSON(data, Scope)
	if err != nil {
		return nil, &AuthError{Op: "secrets", Err: err}
	}
	p.conf = conf
	c := *conf
	return &c, nil
}

// Client returns an HTTP client that authorizes every request. A cached
// token is used when present; otherwise consent is requested (interactive)
// or ErrConsentRequired is returned. Refreshed tokens are written back to
// the cache.
func (p *Provider) Client(ctx context.Context) (*http.Client, error) {
	conf, err := p.Config()
	if err != nil {
		return nil, err
	}

	tok, err := p.cachedToken()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.log.Warn("auth: cached token unreadable, requesting consent", "path", p.tokenPath, "error", err)
		}
		tok = nil
	}
	if tok == nil || (!tok.Valid() && tok.RefreshToken == "") {
		if tok, err = p.authorize(ctx, conf); err != nil {
			return nil, err
		}
	}

	refreshCtx := ctx
	if p.base != nil {
		refreshCtx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: p.base})
	}
	src := oauth2.ReuseTokenSource(tok, &persistingSource{
		src:  conf.TokenSource(refreshCtx, tok),
		last: tok.AccessToken,
		save: p.saveToken,
		log:  p.log,
	})
	return &http.Client{Transport: &oauth2.Transport{Source: src, Base: p.base}}, nil
}

// Authorize runs the consent flow unconditionally and caches the new token.
func (p *Provider) Authorize(ctx context.Context) error {
	conf, err := p.Config()
	if err != nil {
		return err
	}
	_, err = p.authorize(ctx, conf)
	return err
}

func (p *Provider) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	if !p.interactive {
		return nil, &AuthError{Op: "consent", Err: ErrConsentRequired}
	}
	tok, err := p.loopbackConsent(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err := p.saveToken(tok); err != nil {
		return nil, &AuthError{Op: "token", Err: err}
	}
	p.log.Info("auth: token saved", "path", p.tokenPath)
	return tok, nil
}

func (p *Provider) cachedToken() (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := storage.LoadJSON(p.tokenPath, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, &AuthError{Op: "token", Err: fmt.Errorf("empty token in %s", p.tokenPath)}
	}
	return &tok, nil
}

func (p *Provider) saveToken(tok *oauth2.Token) error {
	return storage.SaveJSON(p.tokenPath, tok)
}

// persistingSource writes the token back to disk whenever the underlying
// source hands out a new access token.
type persistingSource struct {
	src  oauth2.TokenSource
	save func(*oauth2.Token) error
	log  *slog.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, &AuthError{Op: "refresh", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.save(tok); err != nil {
			s.log.Warn("auth: persist refreshed token failed", "error", err)
		}
	}
	return tok, nil
}
