package handlers

import (
	"net/http"

	"github.com/doorman-auth/doorman/pkg/logger"
	"github.com/doorman-auth/doorman/pkg/oauth"
)

// Introspect handles POST /introspect (RFC 7662). The caller must present a
// valid identity; when an introspection group is configured, membership in it
// as well. A token that is missing, expired, or of the wrong kind is simply
// reported inactive.
func (h *Handler) Introspect(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	if p == nil {
		h.unauthorized(w)
		return
	}
	if h.IntrospectGID >= 0 && !p.memberOf(h.IntrospectGID) {
		logger.Infow("introspection forbidden", "user", p.username())
		fail(w, http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		fail(w, http.StatusBadRequest)
		return
	}

	t := h.Tokens.Find(r.PostForm.Get("token"))
	if t == nil {
		writeJSON(w, http.StatusOK, "", oauth.IntrospectionResponse{Active: false})
		return
	}

	resp := oauth.IntrospectionResponse{
		Active:    true,
		Scope:     t.Scope,
		Username:  t.User,
		TokenType: t.Kind.String(),
		Exp:       t.ExpiresAt.Unix(),
		Iat:       t.CreatedAt.Unix(),
	}
	if t.Application != nil {
		resp.ClientID = t.Application.ClientID
	}
	writeJSON(w, http.StatusOK, "", resp)
}
