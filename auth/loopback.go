package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const callbackPage = `<html><body><p>Authorization complete. You can close this window.</p></body></html>`

type callbackResult struct {
	code string
	err  error
}

// loopbackConsent runs the installed-app flow: a one-shot HTTP listener on
// 127.0.0.1 receives the authorization code, protected by a state value and
// a PKCE verifier.
func (p *Provider) loopbackConsent(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, &AuthError{Op: "consent", Err: fmt.Errorf("listen for callback: %w", err)}
	}

	c := *conf
	c.RedirectURL = "http://" + ln.Addr().String() + "/"
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = errors.New("state mismatch in callback")
		case q.Get("error") != "":
			res.err = fmt.Errorf("consent denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("callback without authorization code")
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, callbackPage)
		}
		select {
		case results <- res:
		default:
		}
	})}
	go srv.Serve(ln)
	defer srv.Close()

	authURL := c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier))
	fmt.Fprintf(p.prompt, "Open this URL to authorize access:\n%s\n", authURL)
	if p.openBrowser != nil {
		if err := p.openBrowser(authURL); err != nil {
			p.log.Warn("auth: open browser failed", "error", err)
		}
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, &AuthError{Op: "consent", Err: ctx.Err()}
	}
	if res.err != nil {
		return nil, &AuthError{Op: "consent", Err: res.err}
	}

	exchangeCtx := ctx
	if p.base != nil {
		exchangeCtx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: p.base})
	}
	tok, err := c.Exchange(exchangeCtx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &AuthError{Op: "exchange", Err: err}
	}
	return tok, nil
}
