package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/doorman-auth/doorman/pkg/authn"
	"github.com/doorman-auth/doorman/pkg/authserver/crypto"
	"github.com/doorman-auth/doorman/pkg/authserver/tokens"
	"github.com/doorman-auth/doorman/pkg/logger"
	"github.com/doorman-auth/doorman/pkg/oauth"
)

// Token handles POST /token for the authorization_code, password, and
// refresh_token grants (RFC 6749 §4.1.3, §4.3.2, §6).
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.tokenError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	switch gt := r.PostForm.Get("grant_type"); gt {
	case oauth.GrantTypeAuthorizationCode:
		h.tokenAuthorizationCode(w, r)
	case oauth.GrantTypePassword:
		h.tokenPassword(w, r)
	case oauth.GrantTypeRefreshToken:
		h.tokenRefresh(w, r)
	default:
		h.tokenError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

// tokenAuthorizationCode exchanges a single-use grant code for an access
// token and a refresh token. The grant is consumed even when validation
// fails afterward.
func (h *Handler) tokenAuthorizationCode(w http.ResponseWriter, r *http.Request) {
	code := r.PostForm.Get("code")
	if code == "" {
		h.tokenError(w, http.StatusBadRequest, "invalid_request", "missing code")
		return
	}

	app := h.Clients.Find(r.PostForm.Get("client_id"), r.PostForm.Get("redirect_uri"))
	if app == nil {
		h.tokenError(w, http.StatusBadRequest, "invalid_client", "")
		return
	}

	grant, err := h.Tokens.TakeGrant(code, app)
	if err != nil {
		logger.Infow("grant exchange refused", "client_id", app.ClientID, "error", err)
		h.tokenError(w, http.StatusBadRequest, "invalid_grant", "")
		return
	}

	if grant.Challenge != "" {
		verifier := r.PostForm.Get("code_verifier")
		computed := crypto.S256Challenge(verifier)
		if verifier == "" || subtle.ConstantTimeCompare([]byte(computed), []byte(grant.Challenge)) != 1 {
			logger.Infow("code verifier mismatch", "client_id", app.ClientID, "user", grant.User)
			h.tokenError(w, http.StatusBadRequest, "invalid_grant", "code verifier does not match")
			return
		}
	}

	ident := grant.Identity()
	access := h.Tokens.Create(tokens.KindAccess, app, ident, grant.Scope, "")
	renewal := h.Tokens.Create(tokens.KindRenewal, app, ident, grant.Scope, "")

	logger.Infow("access token issued", "grant", "authorization_code",
		"client_id", app.ClientID, "user", grant.User, "scope", grant.Scope)
	h.tokenSuccess(w, access, renewal)
}

// tokenPassword implements the resource owner password grant. Tokens it
// issues are not bound to any registered application.
func (h *Handler) tokenPassword(w http.ResponseWriter, r *http.Request) {
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" {
		h.tokenError(w, http.StatusBadRequest, "invalid_request", "missing username")
		return
	}

	ident, err := h.Auth.Authenticate(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, authn.ErrAccessDenied) {
			logger.Errorw("authenticator failure", "error", err)
		}
		logger.Infow("password grant denied", "user", username)
		h.tokenError(w, http.StatusBadRequest, "invalid_grant", "")
		return
	}

	scope := r.PostForm.Get("scope")
	if scope == "" {
		scope = DefaultScope
	}

	access := h.Tokens.Create(tokens.KindAccess, nil, ident, scope, "")
	renewal := h.Tokens.Create(tokens.KindRenewal, nil, ident, scope, "")

	logger.Infow("access token issued", "grant", "password", "user", username, "scope", scope)
	h.tokenSuccess(w, access, renewal)
}

// tokenRefresh rotates a refresh token: the old renewal token is consumed
// and a fresh access/renewal pair is issued with the original scope.
func (h *Handler) tokenRefresh(w http.ResponseWriter, r *http.Request) {
	refresh := r.PostForm.Get("refresh_token")
	if refresh == "" {
		h.tokenError(w, http.StatusBadRequest, "invalid_request", "missing refresh_token")
		return
	}

	// App-bound renewal tokens must come back from the same client;
	// password-grant renewals carry no binding and any client_id is
	// ignored.
	app := h.Clients.Find(r.PostForm.Get("client_id"), "")

	old, err := h.Tokens.TakeRenewal(refresh, app)
	if err != nil {
		logger.Infow("refresh refused", "error", err)
		h.tokenError(w, http.StatusBadRequest, "invalid_grant", "")
		return
	}

	ident := old.Identity()
	access := h.Tokens.Create(tokens.KindAccess, old.Application, ident, old.Scope, "")
	renewal := h.Tokens.Create(tokens.KindRenewal, old.Application, ident, old.Scope, "")

	logger.Infow("access token issued", "grant", "refresh_token", "user", old.User, "scope", old.Scope)
	h.tokenSuccess(w, access, renewal)
}

func (h *Handler) tokenSuccess(w http.ResponseWriter, access, renewal *tokens.Token) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, "", oauth.TokenResponse{
		AccessToken:  access.ID,
		TokenType:    access.Kind.String(),
		ExpiresIn:    int64(h.TokenLife.Seconds()),
		RefreshToken: renewal.ID,
		Scope:        access.Scope,
	})
}

func (h *Handler) tokenError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, "", oauth.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}
