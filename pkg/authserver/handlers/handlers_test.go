package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorman-auth/doorman/pkg/authn"
	"github.com/doorman-auth/doorman/pkg/authserver/clients"
	"github.com/doorman-auth/doorman/pkg/authserver/crypto"
	"github.com/doorman-auth/doorman/pkg/authserver/keys"
	"github.com/doorman-auth/doorman/pkg/authserver/resources"
	"github.com/doorman-auth/doorman/pkg/authserver/tokens"
	"github.com/doorman-auth/doorman/pkg/oauth"
)

// RFC 7636 appendix B reference values.
const (
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

const testPassword = "secret"

// fakeAuth accepts any username paired with testPassword and hands out a
// fixed numeric identity.
type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, username, password string) (*authn.Identity, error) {
	if password != testPassword {
		return nil, authn.ErrAccessDenied
	}
	return &authn.Identity{Username: username, UID: 1000, GIDs: []int{1000, 27}}, nil
}

type fixture struct {
	handler *Handler
	router  http.Handler
	tokens  *tokens.Store
	clients *clients.Registry
	app     *clients.Application
}

func newFixture(t *testing.T, mutate func(*Params)) *fixture {
	t.Helper()

	reg := clients.NewRegistry()
	app := reg.Add(clients.Application{ClientID: "app1", RedirectURI: "https://app/cb", Name: "Test App"})

	store := tokens.NewStore(crypto.NewSecret(), 300*time.Second, 604800*time.Second,
		tokens.WithSweepInterval(time.Hour))
	t.Cleanup(func() { _ = store.Close() })

	res := resources.NewRegistry(time.Now())
	require.NoError(t, res.AddBuiltin())
	for _, r := range []resources.Resource{
		{Type: resources.TypeStaticBlob, RemotePath: "/p", Scope: resources.ScopePrivate, Data: []byte("private data"), ContentType: "text/plain"},
		{Type: resources.TypeStaticBlob, RemotePath: "/s", Scope: resources.ScopeShared, Group: 27, Data: []byte("shared data"), ContentType: "text/plain"},
		{Type: resources.TypeStaticBlob, RemotePath: "/s99", Scope: resources.ScopeShared, Group: 99, Data: []byte("other team"), ContentType: "text/plain"},
	} {
		_, err := res.Add(r)
		require.NoError(t, err)
	}

	km, err := keys.Load(filepath.Join(t.TempDir(), "doorman.state"))
	require.NoError(t, err)

	p := Params{
		Clients:       reg,
		Tokens:        store,
		Resources:     res,
		Keys:          km,
		Auth:          fakeAuth{},
		Issuer:        "https://auth.test:9443",
		IntrospectGID: -1,
		RegisterGID:   -1,
		TokenLife:     604800 * time.Second,
	}
	if mutate != nil {
		mutate(&p)
	}

	h, err := New(p)
	require.NoError(t, err)

	return &fixture{handler: h, router: h.Routes(), tokens: store, clients: reg, app: app}
}

func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func postForm(path string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

// accessToken runs the password grant and returns the issued access token id.
func accessToken(t *testing.T, f *fixture, scope string) string {
	t.Helper()
	w := f.do(postForm("/token", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {testPassword},
		"scope":      {scope},
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp oauth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func TestAuthorizationCodeFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	// Phase 1: the login form.
	w := f.do(httptest.NewRequest(http.MethodGet,
		"/authorize?client_id=app1&redirect_uri="+url.QueryEscape("https://app/cb")+
			"&response_type=code&state=xyz&code_challenge="+testChallenge+
			"&code_challenge_method=S256", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, `name="username"`)
	assert.Contains(t, body, `name="code_challenge" value="`+testChallenge+`"`)
	assert.Contains(t, body, `name="state" value="xyz"`)

	// Phase 2: credentials.
	w = f.do(postForm("/authorize", url.Values{
		"client_id":             {"app1"},
		"redirect_uri":          {"https://app/cb"},
		"response_type":         {"code"},
		"state":                 {"xyz"},
		"code_challenge":        {testChallenge},
		"code_challenge_method": {"S256"},
		"username":              {"alice"},
		"password":              {testPassword},
	}))
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app", loc.Host)
	assert.Equal(t, "xyz", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	// Exchange.
	w = f.do(postForm("/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"app1"},
		"redirect_uri":  {"https://app/cb"},
		"code":          {code},
		"code_verifier": {testVerifier},
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp oauth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "access", resp.TokenType)
	assert.EqualValues(t, 604800, resp.ExpiresIn)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "private shared", resp.Scope)

	// The grant is single use.
	w = f.do(postForm("/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"app1"},
		"code":          {code},
		"code_verifier": {testVerifier},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthorizeRejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	tests := []struct {
		name  string
		query string
	}{
		{"missing client_id", "response_type=code"},
		{"unknown client", "client_id=ghost&response_type=code"},
		{"wrong redirect", "client_id=app1&response_type=code&redirect_uri=" + url.QueryEscape("https://evil/cb")},
		{"bad response_type", "client_id=app1&response_type=token"},
		{"bad challenge method", "client_id=app1&response_type=code&code_challenge=x&code_challenge_method=plain"},
		{"openid scope", "client_id=app1&response_type=code&scope=openid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := f.do(httptest.NewRequest(http.MethodGet, "/authorize?"+tt.query, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuthorizeBadCredentials(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	w := f.do(postForm("/authorize", url.Values{
		"client_id":     {"app1"},
		"response_type": {"code"},
		"state":         {"s1"},
		"username":      {"alice"},
		"password":      {"wrong"},
	}))
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "access_denied", loc.Query().Get("error"))
	assert.Equal(t, "s1", loc.Query().Get("state"))
	assert.Empty(t, loc.Query().Get("code"))
	assert.Equal(t, 0, f.tokens.Len())
}

func TestTokenVerifierMismatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	grant := f.tokens.Create(tokens.KindGrant, f.app,
		&authn.Identity{Username: "alice", UID: 1000, GIDs: []int{1000}},
		"private", testChallenge)

	w := f.do(postForm("/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"app1"},
		"code":          {grant.ID},
		"code_verifier": {"wrong-verifier-wrong-verifier-wrong-verifier"},
	}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp oauth.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_grant", resp.Error)
}

func TestTokenMissingVerifier(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	grant := f.tokens.Create(tokens.KindGrant, f.app,
		&authn.Identity{Username: "alice", UID: 1000, GIDs: []int{1000}},
		"private", testChallenge)

	w := f.do(postForm("/token", url.Values{
		"grant_type": {"authorization_code"},
		"client_id":  {"app1"},
		"code":       {grant.ID},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenWrongClient(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.clients.Add(clients.Application{ClientID: "app2", RedirectURI: "https://other/cb"})

	grant := f.tokens.Create(tokens.KindGrant, f.app,
		&authn.Identity{Username: "alice", UID: 1000, GIDs: []int{1000}},
		"private", "")

	w := f.do(postForm("/token", url.Values{
		"grant_type": {"authorization_code"},
		"client_id":  {"app2"},
		"code":       {grant.ID},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenPasswordGrant(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	w := f.do(postForm("/token", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {testPassword},
		"scope":      {"private"},
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp oauth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "private", resp.Scope)

	tok := f.tokens.Find(resp.AccessToken)
	require.NotNil(t, tok)
	assert.Nil(t, tok.Application)

	w = f.do(postForm("/token", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"wrong"},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenRefreshRotation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	w := f.do(postForm("/token", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {testPassword},
	}))
	require.Equal(t, http.StatusOK, w.Code)
	var first oauth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = f.do(postForm("/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
	}))
	require.Equal(t, http.StatusOK, w.Code)
	var second oauth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The old refresh token was consumed.
	w = f.do(postForm("/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenUnsupportedGrant(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	w := f.do(postForm("/token", url.Values{"grant_type": {"client_credentials"}}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp oauth.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unsupported_grant_type", resp.Error)
}

func TestIntrospect(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	access := accessToken(t, f, "private shared")

	// Unauthenticated callers are refused.
	w := f.do(postForm("/introspect", url.Values{"token": {access}}))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")

	// A live token introspects as active.
	r := postForm("/introspect", url.Values{"token": {access}})
	r.Header.Set("Authorization", "Bearer "+access)
	w = f.do(r)
	require.Equal(t, http.StatusOK, w.Code)

	var resp oauth.IntrospectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Active)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "access", resp.TokenType)
	assert.Equal(t, "private shared", resp.Scope)
	assert.Empty(t, resp.ClientID)
	assert.Greater(t, resp.Exp, resp.Iat)

	// An unknown token is simply inactive.
	r = postForm("/introspect", url.Values{"token": {"nope"}})
	r.Header.Set("Authorization", "Bearer "+access)
	w = f.do(r)
	require.Equal(t, http.StatusOK, w.Code)
	resp = oauth.IntrospectionResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Active)
}

func TestIntrospectGroupGate(t *testing.T) {
	t.Parallel()

	t.Run("member", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(p *Params) { p.IntrospectGID = 27 })
		access := accessToken(t, f, "private")

		r := postForm("/introspect", url.Values{"token": {access}})
		r.Header.Set("Authorization", "Bearer "+access)
		assert.Equal(t, http.StatusOK, f.do(r).Code)
	})

	t.Run("non-member", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(p *Params) { p.IntrospectGID = 999 })
		access := accessToken(t, f, "private")

		r := postForm("/introspect", url.Values{"token": {access}})
		r.Header.Set("Authorization", "Bearer "+access)
		assert.Equal(t, http.StatusForbidden, f.do(r).Code)
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	access := accessToken(t, f, "private")

	body := `{"redirect_uris":["https://new.app/cb"],"client_name":"New App"}`

	// Authentication required.
	w := f.do(httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+access)
	w = f.do(r)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp oauth.ClientRegistrationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ClientID)
	assert.Equal(t, "New App", resp.ClientName)

	// The new client can be found by the authorization endpoint.
	assert.NotNil(t, f.clients.Find(resp.ClientID, "https://new.app/cb"))

	// Relative redirect URIs are refused.
	r = httptest.NewRequest(http.MethodPost, "/register",
		strings.NewReader(`{"redirect_uris":["not-absolute"]}`))
	r.Header.Set("Authorization", "Bearer "+access)
	assert.Equal(t, http.StatusBadRequest, f.do(r).Code)
}

func TestUserinfo(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/userinfo", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	access := accessToken(t, f, "private")
	r := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	r.Header.Set("Authorization", "Bearer "+access)
	w = f.do(r)
	require.Equal(t, http.StatusOK, w.Code)

	var resp oauth.UserinfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Sub)
	assert.Equal(t, "alice", resp.PreferredUsername)
}

func TestDiscovery(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	for _, path := range []string{
		"/.well-known/oauth-authorization-server",
		"/.well-known/openid-configuration",
	} {
		w := f.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "text/json", w.Header().Get("Content-Type"), path)

		var doc oauth.DiscoveryDocument
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Equal(t, "https://auth.test:9443", doc.Issuer)
		assert.Equal(t, "https://auth.test:9443/authorize", doc.AuthorizationEndpoint)
		assert.Equal(t, "https://auth.test:9443/token", doc.TokenEndpoint)
		assert.Equal(t, "https://auth.test:9443/.well-known/jwks.json", doc.JWKSURI)
		assert.Contains(t, doc.ScopesSupported, "openid")
		assert.Contains(t, doc.ScopesSupported, "public")
		assert.Contains(t, doc.ScopesSupported, "private")
		assert.Contains(t, doc.ScopesSupported, "shared")
		assert.Equal(t, []string{"code", "id_token", "token"}, doc.ResponseTypesSupported)
		assert.Equal(t, []string{"pairwise", "public"}, doc.SubjectTypesSupported)
		assert.Equal(t, []string{"RS256"}, doc.IDTokenSigningAlgValuesSupported)
		assert.Equal(t, []string{"none"}, doc.TokenEndpointAuthMethodsSupported)
		assert.Equal(t, []string{"S256"}, doc.CodeChallengeMethodsSupported)
		assert.Contains(t, doc.GrantTypesSupported, "refresh_token")
	}
}

func TestJWKS(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "RSA", jwks.Keys[0]["kty"])
	assert.Equal(t, "RS256", jwks.Keys[0]["alg"])
	assert.NotContains(t, jwks.Keys[0], "d")
}

func TestResourceScopeEnforcement(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	// Public needs nothing.
	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Private without a token.
	w = f.do(httptest.NewRequest(http.MethodGet, "/p", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")

	// Private with the wrong scope set.
	public := accessToken(t, f, "public")
	r := httptest.NewRequest(http.MethodGet, "/p", nil)
	r.Header.Set("Authorization", "Bearer "+public)
	assert.Equal(t, http.StatusForbidden, f.do(r).Code)

	// Private with the right scope.
	private := accessToken(t, f, "private shared")
	r = httptest.NewRequest(http.MethodGet, "/p", nil)
	r.Header.Set("Authorization", "Bearer "+private)
	w = f.do(r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "private data", w.Body.String())

	// Shared, caller in group 27.
	r = httptest.NewRequest(http.MethodGet, "/s", nil)
	r.Header.Set("Authorization", "Bearer "+private)
	assert.Equal(t, http.StatusOK, f.do(r).Code)

	// Shared, caller not in group 99.
	r = httptest.NewRequest(http.MethodGet, "/s99", nil)
	r.Header.Set("Authorization", "Bearer "+private)
	assert.Equal(t, http.StatusForbidden, f.do(r).Code)

	// Unknown path.
	assert.Equal(t, http.StatusNotFound,
		f.do(httptest.NewRequest(http.MethodGet, "/nope", nil)).Code)

	// Non-GET methods never reach a resource.
	assert.Equal(t, http.StatusNotFound,
		f.do(httptest.NewRequest(http.MethodPut, "/p", nil)).Code)
}

func TestPreflightTraversal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.URL.Path = "/docs/../etc/passwd"
	assert.Equal(t, http.StatusBadRequest, f.do(r).Code)
}

func TestPreflightHostCheck(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(p *Params) {
		p.ServerName = "auth.test"
		p.ServerPort = 9443
	})

	tests := []struct {
		host string
		want int
	}{
		{"auth.test", http.StatusOK},
		{"AUTH.TEST", http.StatusOK},
		{"auth.test.", http.StatusOK},
		{"auth.test:9443", http.StatusOK},
		{"auth.test:1234", http.StatusBadRequest},
		{"elsewhere.test", http.StatusBadRequest},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Host = tt.host
		assert.Equal(t, tt.want, f.do(r).Code, tt.host)
	}
}

func TestBasicAuthOption(t *testing.T) {
	t.Parallel()

	creds := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:"+testPassword))

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		r := httptest.NewRequest(http.MethodGet, "/p", nil)
		r.Header.Set("Authorization", creds)
		assert.Equal(t, http.StatusUnauthorized, f.do(r).Code)
	})

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(p *Params) { p.BasicAuth = true })

		r := httptest.NewRequest(http.MethodGet, "/p", nil)
		r.Header.Set("Authorization", creds)
		assert.Equal(t, http.StatusOK, f.do(r).Code)

		// Bad password attaches no identity.
		r = httptest.NewRequest(http.MethodGet, "/p", nil)
		r.Header.Set("Authorization",
			"Basic "+base64.StdEncoding.EncodeToString([]byte("alice:wrong")))
		w := f.do(r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
	})
}

func TestBearerWrongKindIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	grant := f.tokens.Create(tokens.KindGrant, f.app,
		&authn.Identity{Username: "alice", UID: 1000, GIDs: []int{1000}},
		"private", "")

	r := httptest.NewRequest(http.MethodGet, "/p", nil)
	r.Header.Set("Authorization", "Bearer "+grant.ID)
	assert.Equal(t, http.StatusUnauthorized, f.do(r).Code)
}

func TestQueryAppendedWithAmpersand(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.clients.Add(clients.Application{ClientID: "app3", RedirectURI: "https://app/cb?env=prod"})

	w := f.do(postForm("/authorize", url.Values{
		"client_id":     {"app3"},
		"response_type": {"code"},
		"username":      {"alice"},
		"password":      {testPassword},
	}))
	require.Equal(t, http.StatusFound, w.Code)

	loc := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://app/cb?env=prod&"), loc)
	assert.Contains(t, loc, "code=")
}
