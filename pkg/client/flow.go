package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/doorman-auth/doorman/pkg/logger"
)

// NewVerifier generates a PKCE code verifier per RFC 7636.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthorizeURL assembles the authorization URL. A non-empty verifier adds the
// derived S256 code challenge.
func (c *Client) AuthorizeURL(clientID, redirectURI, state, verifier, scope string) string {
	cfg := c.oauthConfig(clientID, redirectURI, scope)

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return cfg.AuthCodeURL(state, opts...)
}

// Authorize opens the authorization URL in the user's browser. Success means
// the platform handler accepted the URL; the flow continues out of band.
func (c *Client) Authorize(clientID, redirectURI, state, verifier, scope string) error {
	u := c.AuthorizeURL(clientID, redirectURI, state, verifier, scope)
	logger.Debugw("opening browser", "url", u)
	if err := browser.OpenURL(u); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// Exchange redeems an authorization code for tokens, presenting the PKCE
// verifier when one was used.
func (c *Client) Exchange(ctx context.Context, clientID, redirectURI, code, verifier string) (*oauth2.Token, error) {
	cfg := c.oauthConfig(clientID, redirectURI, "")

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := cfg.Exchange(c.httpContext(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return token, nil
}

// PasswordGrant obtains tokens through the resource owner password grant.
func (c *Client) PasswordGrant(ctx context.Context, clientID, username, password, scope string) (*oauth2.Token, error) {
	cfg := c.oauthConfig(clientID, "", scope)

	token, err := cfg.PasswordCredentialsToken(c.httpContext(ctx), username, password)
	if err != nil {
		return nil, fmt.Errorf("password grant failed: %w", err)
	}
	return token, nil
}

// Refresh rotates a refresh token into a fresh token pair.
func (c *Client) Refresh(ctx context.Context, clientID, refreshToken string) (*oauth2.Token, error) {
	cfg := c.oauthConfig(clientID, "", "")

	token, err := cfg.TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return token, nil
}

// successPage is shown in the browser once the callback has been handled.
const successPage = `<!DOCTYPE html>
<html>
  <head><title>Signed in</title></head>
  <body>
    <h1>Signed in</h1>
    <p>You can close this window and return to the terminal.</p>
  </body>
</html>
`

// Login runs the whole authorization code flow for a CLI: start a loopback
// callback listener, open the browser, wait for the redirect, and exchange
// the code. The context bounds the wait.
func (c *Client) Login(ctx context.Context, clientID, scope string) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	redirectURI := fmt.Sprintf("http://%s/callback", ln.Addr().String())
	state := randomState()
	verifier := NewVerifier()

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "Authorization failed: "+q.Get("error"), http.StatusForbidden)
			results <- result{err: fmt.Errorf("authorization failed: %s", q.Get("error"))}
		case q.Get("state") != state:
			http.Error(w, "State mismatch", http.StatusBadRequest)
			results <- result{err: errors.New("state mismatch in callback")}
		case q.Get("code") == "":
			http.Error(w, "Missing code", http.StatusBadRequest)
			results <- result{err: errors.New("callback carried no code")}
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(successPage))
			results <- result{code: q.Get("code")}
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			results <- result{err: fmt.Errorf("callback server failed: %w", err)}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := c.Authorize(clientID, redirectURI, state, verifier, scope); err != nil {
		return nil, err
	}
	logger.Infow("waiting for authorization callback", "redirect_uri", redirectURI)

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		return c.Exchange(ctx, clientID, redirectURI, res.code, verifier)
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization wait canceled: %w", ctx.Err())
	}
}

func randomState() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand is unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
