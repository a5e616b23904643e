// Package authserver assembles the doorman authorization server: the
// registries, the token store, the signing key, the HTTP handlers, and the
// TLS listeners, wired together from a parsed configuration.
package authserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doorman-auth/doorman/pkg/authn"
	"github.com/doorman-auth/doorman/pkg/authserver/clients"
	"github.com/doorman-auth/doorman/pkg/authserver/crypto"
	"github.com/doorman-auth/doorman/pkg/authserver/handlers"
	"github.com/doorman-auth/doorman/pkg/authserver/keys"
	"github.com/doorman-auth/doorman/pkg/authserver/resources"
	"github.com/doorman-auth/doorman/pkg/authserver/tokens"
	"github.com/doorman-auth/doorman/pkg/config"
	"github.com/doorman-auth/doorman/pkg/logger"
)

// portBase anchors the default listener port; the uid offset keeps
// per-user instances on one host from colliding.
const portBase = 9000

const shutdownGrace = 10 * time.Second

// Server is a fully assembled doorman instance.
type Server struct {
	cfg *config.Config

	clients   *clients.Registry
	tokens    *tokens.Store
	resources *resources.Registry
	keys      *keys.Manager
	auth      authn.Authenticator

	name    string
	port    int
	issuer  string
	handler http.Handler

	tlsConfig *tls.Config
	httpSrv   *http.Server
}

// Option configures a Server before assembly.
type Option func(*Server)

// WithAuthenticator installs a password back-end, overriding the default
// (Static when TestPassword is configured, otherwise fail-closed Deny).
func WithAuthenticator(a authn.Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithTLSConfig installs listener TLS configuration, overriding the
// generated self-signed certificate.
func WithTLSConfig(c *tls.Config) Option {
	return func(s *Server) {
		s.tlsConfig = c
	}
}

// New assembles a server from the configuration: load or generate the
// signing key, populate the registries, start the token store, and build the
// handler tree with its discovery document.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	name := cfg.ServerName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to determine server name: %w", err)
		}
		name = hostname
	}

	port := cfg.ServerPort
	if port == 0 {
		port = portBase + os.Getuid()%1000
	}

	s := &Server{
		cfg:    cfg,
		name:   name,
		port:   port,
		issuer: fmt.Sprintf("https://%s:%d", name, port),
	}
	if cfg.TestPassword != "" {
		s.auth = &authn.Static{Password: cfg.TestPassword}
	} else {
		s.auth = authn.Deny{}
	}
	for _, opt := range opts {
		opt(s)
	}

	km, err := keys.Load(cfg.StateFile)
	if err != nil {
		return nil, err
	}
	s.keys = km

	s.clients = clients.NewRegistry()
	for _, app := range cfg.Applications {
		s.clients.Add(clients.Application{
			ClientID:    app.ClientID,
			RedirectURI: app.RedirectURI,
			Name:        app.Name,
		})
	}

	s.resources = resources.NewRegistry(time.Now())
	if err := s.resources.AddBuiltin(); err != nil {
		return nil, fmt.Errorf("failed to register builtin resources: %w", err)
	}
	for _, res := range cfg.Resources {
		if err := s.addResource(res); err != nil {
			return nil, err
		}
	}

	introspectGID, err := resolveGroup(cfg.IntrospectGroup)
	if err != nil {
		return nil, fmt.Errorf("IntrospectGroup: %w", err)
	}
	registerGID, err := resolveGroup(cfg.RegisterGroup)
	if err != nil {
		return nil, fmt.Errorf("RegisterGroup: %w", err)
	}

	s.tokens = tokens.NewStore(crypto.NewSecret(), cfg.MaxGrantLife, cfg.MaxTokenLife)

	h, err := handlers.New(handlers.Params{
		Clients:       s.clients,
		Tokens:        s.tokens,
		Resources:     s.resources,
		Keys:          s.keys,
		Auth:          s.auth,
		Issuer:        s.issuer,
		ServerName:    name,
		ServerPort:    port,
		BasicAuth:     cfg.BasicAuth,
		Metrics:       cfg.Metrics,
		IntrospectGID: introspectGID,
		RegisterGID:   registerGID,
		TokenLife:     cfg.MaxTokenLife,
	})
	if err != nil {
		s.tokens.Close()
		return nil, err
	}
	s.handler = h.Routes()

	logger.Infow("server assembled",
		"issuer", s.issuer,
		"applications", s.clients.Len(),
		"key_id", s.keys.KeyID(),
	)
	return s, nil
}

// Issuer returns the canonical https URL of the server.
func (s *Server) Issuer() string {
	return s.issuer
}

// Handler returns the assembled handler tree. Tests drive it directly.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe binds the IPv4 and IPv6 listeners and serves TLS until the
// context is canceled or a listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	tlsCfg := s.tlsConfig
	if tlsCfg == nil {
		generated, err := selfSignedConfig(s.name)
		if err != nil {
			return err
		}
		tlsCfg = generated
	}

	s.httpSrv = &http.Server{
		Handler:           s.handler,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	addr := fmt.Sprintf(":%d", s.port)
	var listeners []net.Listener
	for _, network := range []string{"tcp4", "tcp6"} {
		ln, err := net.Listen(network, addr)
		if err != nil {
			logger.Infow("listener unavailable", "network", network, "error", err)
			continue
		}
		listeners = append(listeners, ln)
		logger.Infow("listening", "network", network, "addr", ln.Addr().String())
	}
	if len(listeners) == 0 {
		return fmt.Errorf("failed to bind any listener on %s", addr)
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, ln := range listeners {
		group.Go(func() error {
			if err := s.httpSrv.ServeTLS(ln, "", ""); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// Close releases the server's background resources.
func (s *Server) Close() error {
	return s.tokens.Close()
}

// addResource translates a configured resource into a registry entry. The
// type is inferred: a local path with the user placeholder is a per-user
// directory, an existing directory is a directory, anything else a file.
func (s *Server) addResource(res config.Resource) error {
	typ := resources.TypeFile
	switch {
	case strings.Contains(res.LocalPath, resources.UserToken):
		typ = resources.TypeUserDirectory
	default:
		if info, err := os.Stat(res.LocalPath); err == nil && info.IsDir() {
			typ = resources.TypeDirectory
		} else if err != nil {
			logger.Infow("resource local path not present yet",
				"remote", res.RemotePath, "local", res.LocalPath)
		}
	}

	gid := -1
	if res.Group != "" {
		g, err := resolveGroup(res.Group)
		if err != nil {
			return fmt.Errorf("resource %s: %w", res.RemotePath, err)
		}
		gid = g
	}

	_, err := s.resources.Add(resources.Resource{
		Type:       typ,
		RemotePath: res.RemotePath,
		LocalPath:  res.LocalPath,
		Scope:      res.Scope,
		Group:      gid,
	})
	if err != nil {
		return fmt.Errorf("resource %s: %w", res.RemotePath, err)
	}
	return nil
}

// resolveGroup maps a group directive value to a numeric gid; empty means no
// restriction (-1).
func resolveGroup(nameOrGID string) (int, error) {
	if nameOrGID == "" {
		return -1, nil
	}
	return authn.LookupGroup(nameOrGID)
}
