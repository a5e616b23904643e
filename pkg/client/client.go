// Package client implements the helper side of the doorman protocol:
// server discovery, the PKCE-protected authorization code flow, token
// introspection, and a local-callback login convenience for CLI use.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/doorman-auth/doorman/pkg/logger"
	"github.com/doorman-auth/doorman/pkg/oauth"
)

// wellKnownPaths are probed, in order, when connecting to a server root.
var wellKnownPaths = []string{
	"/.well-known/oauth-authorization-server",
	"/.well-known/openid-configuration",
}

// maxMetadataSize bounds the discovery document read.
const maxMetadataSize = 1 << 20

// ErrNotHTTPS is returned when the server URI or any advertised endpoint is
// not https.
var ErrNotHTTPS = errors.New("endpoint is not https")

// Client is a connection to a doorman (or compatible) authorization server.
// It is safe for concurrent use once Connect returns.
type Client struct {
	serverURL string
	metadata  *oauth.DiscoveryDocument
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for discovery and all token
// endpoint traffic. Tests use this to trust their server's certificate.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// Connect discovers the authorization server behind uri. The scheme must be
// https. A root path probes the well-known metadata locations in order; any
// other path is fetched as the metadata document itself.
func Connect(ctx context.Context, uri string, opts ...Option) (*Client, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("bad server URI: %w", err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrNotHTTPS, uri)
	}

	c := &Client{
		serverURL: u.Scheme + "://" + u.Host,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	paths := wellKnownPaths
	if u.Path != "" && u.Path != "/" {
		paths = []string{u.Path}
	}

	var lastErr error
	for _, path := range paths {
		md, err := c.fetchMetadata(ctx, c.serverURL+path)
		if err != nil {
			logger.Debugw("discovery probe failed", "path", path, "error", err)
			lastErr = err
			continue
		}
		if err := verifyEndpoints(md); err != nil {
			return nil, err
		}
		c.metadata = md
		return c, nil
	}
	return nil, fmt.Errorf("discovery failed for %s: %w", uri, lastErr)
}

// Metadata returns the discovered server metadata.
func (c *Client) Metadata() *oauth.DiscoveryDocument {
	return c.metadata
}

// ServerURL returns the https origin of the server.
func (c *Client) ServerURL() string {
	return c.serverURL
}

func (c *Client) fetchMetadata(ctx context.Context, u string) (*oauth.DiscoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/json, application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, err
	}

	var md oauth.DiscoveryDocument
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("bad metadata document: %w", err)
	}
	return &md, nil
}

// verifyEndpoints checks the advertised endpoints: the authorization and
// token endpoints must be present, and everything present must be https.
func verifyEndpoints(md *oauth.DiscoveryDocument) error {
	if md.AuthorizationEndpoint == "" || md.TokenEndpoint == "" {
		return errors.New("metadata is missing required endpoints")
	}
	for _, endpoint := range []string{
		md.AuthorizationEndpoint,
		md.TokenEndpoint,
		md.IntrospectionEndpoint,
		md.RegistrationEndpoint,
		md.UserinfoEndpoint,
		md.JWKSURI,
	} {
		if endpoint != "" && !strings.HasPrefix(endpoint, "https://") {
			return fmt.Errorf("%w: %s", ErrNotHTTPS, endpoint)
		}
	}
	return nil
}

// oauthConfig assembles the oauth2 configuration for a client id and
// redirect URI against the discovered endpoints.
func (c *Client) oauthConfig(clientID, redirectURI, scope string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      strings.Fields(scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.metadata.AuthorizationEndpoint,
			TokenURL: c.metadata.TokenEndpoint,
		},
	}
}

// httpContext makes c's HTTP client the one oauth2 uses for the exchange.
func (c *Client) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}
