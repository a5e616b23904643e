package handlers

import (
	"net/http"

	"github.com/doorman-auth/doorman/pkg/authn"
	"github.com/doorman-auth/doorman/pkg/logger"
	"github.com/doorman-auth/doorman/pkg/oauth"
)

// Userinfo handles GET /userinfo, answering the OpenID Connect claims that
// the OS account database can supply.
func (h *Handler) Userinfo(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	if p == nil {
		h.unauthorized(w)
		return
	}

	resp := oauth.UserinfoResponse{
		Sub:               p.username(),
		PreferredUsername: p.username(),
	}

	if ident, err := authn.Lookup(p.username()); err == nil {
		resp.Name = ident.RealName
	} else {
		logger.Debugw("userinfo lookup failed", "user", p.username(), "error", err)
	}

	writeJSON(w, http.StatusOK, "", resp)
}
