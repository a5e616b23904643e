package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorman-auth/doorman/pkg/authserver/crypto"
	"github.com/doorman-auth/doorman/pkg/oauth"
)

// newTestServer serves a discovery document whose endpoints point back at the
// server itself, plus a token endpoint for exchange tests.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var ts *httptest.Server

	metadata := func(w http.ResponseWriter, _ *http.Request) {
		doc := oauth.DiscoveryDocument{
			AuthorizationServerMetadata: oauth.AuthorizationServerMetadata{
				Issuer:                ts.URL,
				AuthorizationEndpoint: ts.URL + "/authorize",
				TokenEndpoint:         ts.URL + "/token",
				IntrospectionEndpoint: ts.URL + "/introspect",
				UserinfoEndpoint:      ts.URL + "/userinfo",
				JWKSURI:               ts.URL + "/.well-known/jwks.json",
			},
		}
		w.Header().Set("Content-Type", "text/json")
		_ = json.NewEncoder(w).Encode(doc)
	}
	mux.HandleFunc("/.well-known/oauth-authorization-server", metadata)

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oauth.TokenResponse{
			AccessToken:  "access-" + r.PostForm.Get("grant_type"),
			TokenType:    "access",
			ExpiresIn:    604800,
			RefreshToken: "renewal-1",
		})
	})

	mux.HandleFunc("/introspect", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oauth.IntrospectionResponse{
			Active:   r.PostForm.Get("token") == "known-token",
			Username: "alice",
		})
	})

	ts = httptest.NewTLSServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testConnect(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	c, err := Connect(context.Background(), ts.URL+"/", WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	return c
}

func TestConnect(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	c := testConnect(t, ts)

	md := c.Metadata()
	require.NotNil(t, md)
	assert.Equal(t, ts.URL+"/authorize", md.AuthorizationEndpoint)
	assert.Equal(t, ts.URL+"/token", md.TokenEndpoint)
	assert.Equal(t, ts.URL, c.ServerURL())
}

func TestConnectExplicitPath(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	c, err := Connect(context.Background(),
		ts.URL+"/.well-known/oauth-authorization-server", WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	assert.NotNil(t, c.Metadata())
}

func TestConnectRejectsPlainHTTP(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), "http://auth.test/")
	assert.ErrorIs(t, err, ErrNotHTTPS)
}

func TestVerifyEndpoints(t *testing.T) {
	t.Parallel()

	md := &oauth.DiscoveryDocument{
		AuthorizationServerMetadata: oauth.AuthorizationServerMetadata{
			AuthorizationEndpoint: "https://auth.test/authorize",
			TokenEndpoint:         "http://auth.test/token",
		},
	}
	assert.ErrorIs(t, verifyEndpoints(md), ErrNotHTTPS)

	md.TokenEndpoint = ""
	assert.Error(t, verifyEndpoints(md))
}

func TestAuthorizeURL(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	c := testConnect(t, ts)

	verifier := NewVerifier()
	raw := c.AuthorizeURL("app1", "https://app/cb", "state-1", verifier, "private shared")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "app1", q.Get("client_id"))
	assert.Equal(t, "https://app/cb", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "private shared", q.Get("scope"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, crypto.S256Challenge(verifier), q.Get("code_challenge"))
}

func TestAuthorizeURLWithoutVerifier(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	c := testConnect(t, ts)

	u, err := url.Parse(c.AuthorizeURL("app1", "https://app/cb", "s", "", ""))
	require.NoError(t, err)
	assert.Empty(t, u.Query().Get("code_challenge"))
}

func TestExchange(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	c := testConnect(t, ts)

	token, err := c.Exchange(context.Background(), "app1", "https://app/cb", "grant-1", NewVerifier())
	require.NoError(t, err)
	assert.Equal(t, "access-authorization_code", token.AccessToken)
	assert.Equal(t, "renewal-1", token.RefreshToken)
}

func TestPasswordGrant(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	c := testConnect(t, ts)

	token, err := c.PasswordGrant(context.Background(), "app1", "alice", "secret", "private")
	require.NoError(t, err)
	assert.Equal(t, "access-password", token.AccessToken)
}

func TestIntrospect(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	c := testConnect(t, ts)

	info, err := c.Introspect(context.Background(), "auth-token", "known-token")
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, "alice", info.Username)

	info, err = c.Introspect(context.Background(), "auth-token", "unknown-token")
	require.NoError(t, err)
	assert.False(t, info.Active)
}

func TestTokenClaims(t *testing.T) {
	t.Parallel()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"iss": "https://auth.test",
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	claims, err := TokenClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "https://auth.test", claims["iss"])

	_, err = TokenClaims("not-a-jwt")
	assert.Error(t, err)
}
