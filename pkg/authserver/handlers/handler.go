// Package handlers provides the HTTP handlers for every endpoint of the
// doorman authorization server: the OAuth endpoints, the well-known
// discovery documents, and scope-governed resource access.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doorman-auth/doorman/pkg/authn"
	"github.com/doorman-auth/doorman/pkg/authserver/clients"
	"github.com/doorman-auth/doorman/pkg/authserver/keys"
	"github.com/doorman-auth/doorman/pkg/authserver/resources"
	"github.com/doorman-auth/doorman/pkg/authserver/tokens"
)

// DefaultScope is the scope requested when an authorization request names
// none.
const DefaultScope = "private shared"

// Params carries the dependencies and identity a Handler serves with.
type Params struct {
	Clients   *clients.Registry
	Tokens    *tokens.Store
	Resources *resources.Registry
	Keys      *keys.Manager
	Auth      authn.Authenticator

	// Issuer is the canonical https URL of the server.
	Issuer string

	// ServerName and ServerPort back the Host header check. An empty
	// name disables the check (tests).
	ServerName string
	ServerPort int

	// BasicAuth honors HTTP Basic authentication as a backup to Bearer.
	BasicAuth bool

	// Metrics exposes the prometheus handler under /metrics.
	Metrics bool

	// IntrospectGID restricts introspection to members of this group.
	// Negative means no restriction.
	IntrospectGID int

	// RegisterGID restricts dynamic registration to members of this
	// group. Negative means no restriction.
	RegisterGID int

	// TokenLife is reported as expires_in on token responses.
	TokenLife time.Duration
}

// Handler serves all doorman endpoints.
type Handler struct {
	Params

	metadata []byte
}

// New creates a Handler and prebuilds the discovery document.
func New(p Params) (*Handler, error) {
	h := &Handler{Params: p}
	if err := h.buildMetadata(); err != nil {
		return nil, err
	}
	return h, nil
}

// Routes returns the router with every endpoint registered. Requests that
// match no endpoint fall through to the resource registry.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.preflight)
	r.Use(h.identify)

	r.Get("/authorize", h.AuthorizeForm)
	r.Post("/authorize", h.AuthorizeSubmit)
	r.Post("/token", h.Token)
	r.Post("/introspect", h.Introspect)
	r.Post("/register", h.Register)
	r.Get("/userinfo", h.Userinfo)

	r.Get("/.well-known/jwks.json", h.JWKS)
	r.Get("/.well-known/oauth-authorization-server", h.Discovery)
	r.Get("/.well-known/openid-configuration", h.Discovery)

	if h.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.NotFound(h.Resource)
	return r
}
