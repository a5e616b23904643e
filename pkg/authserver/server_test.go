package authserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorman-auth/doorman/pkg/config"
	"github.com/doorman-auth/doorman/pkg/oauth"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.New()
	cfg.ServerName = "auth.test"
	cfg.ServerPort = 9443
	cfg.StateFile = filepath.Join(t.TempDir(), "doorman.state")
	cfg.TestPassword = "secret"
	cfg.Applications = []config.Application{
		{ClientID: "app1", RedirectURI: "https://app/cb", Name: "Test App"},
	}
	return cfg
}

func TestNewAssemblesServer(t *testing.T) {
	t.Parallel()

	srv, err := New(testConfig(t))
	require.NoError(t, err)
	defer srv.Close()

	assert.Equal(t, "https://auth.test:9443", srv.Issuer())
	require.NotNil(t, srv.Handler())

	// The state file was created with the signing key.
	data, err := os.ReadFile(srv.cfg.StateFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PrivateKey ")
}

func TestServerDiscoveryThroughHandler(t *testing.T) {
	t.Parallel()

	srv, err := New(testConfig(t))
	require.NoError(t, err)
	defer srv.Close()

	r := httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil)
	r.Host = "auth.test:9443"
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var doc oauth.DiscoveryDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "https://auth.test:9443", doc.Issuer)
}

func TestServerPasswordGrantEndToEnd(t *testing.T) {
	t.Parallel()

	srv, err := New(testConfig(t))
	require.NoError(t, err)
	defer srv.Close()

	form := url.Values{
		"grant_type": {"password"},
		"username":   {currentUsername(t)},
		"password":   {"secret"},
	}
	r := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	r.Host = "auth.test:9443"
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp oauth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "access", resp.TokenType)
}

func TestServerHostCheck(t *testing.T) {
	t.Parallel()

	srv, err := New(testConfig(t))
	require.NoError(t, err)
	defer srv.Close()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "spoofed.example.com"
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddResourceTypeInference(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "motd"), []byte("hi"), 0o644))

	cfg := testConfig(t)
	cfg.Resources = []config.Resource{
		{Scope: "public", RemotePath: "/docs", LocalPath: dir},
		{Scope: "public", RemotePath: "/motd", LocalPath: filepath.Join(dir, "motd")},
		{Scope: "private", RemotePath: "/home", LocalPath: filepath.Join(dir, "*")},
	}

	srv, err := New(cfg)
	require.NoError(t, err)
	defer srv.Close()

	r := httptest.NewRequest(http.MethodGet, "/motd", nil)
	r.Host = "auth.test:9443"
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi", w.Body.String())
}

func TestSelfSignedConfig(t *testing.T) {
	t.Parallel()

	cfg, err := selfSignedConfig("auth.test")
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
	assert.GreaterOrEqual(t, cfg.MinVersion, uint16(0x0303))
}

func TestServerUnknownGroupFails(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.IntrospectGroup = "no-such-group-doorman-test"

	_, err := New(cfg)
	assert.Error(t, err)
}

func currentUsername(t *testing.T) string {
	t.Helper()
	u, err := user.Current()
	require.NoError(t, err)
	return u.Username
}
