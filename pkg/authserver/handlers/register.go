package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/doorman-auth/doorman/pkg/authserver/clients"
	"github.com/doorman-auth/doorman/pkg/logger"
	"github.com/doorman-auth/doorman/pkg/oauth"
)

// Register handles POST /register, the RFC 7591 dynamic client registration
// endpoint. The caller must be authenticated; when a registration group is
// configured, membership in it as well. The assigned client id is a random
// UUID and no client secret is issued.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	if p == nil {
		h.unauthorized(w)
		return
	}
	if h.RegisterGID >= 0 && !p.memberOf(h.RegisterGID) {
		logger.Infow("registration forbidden", "user", p.username())
		fail(w, http.StatusForbidden)
		return
	}

	var req oauth.ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.registerError(w, "invalid_client_metadata", "malformed request body")
		return
	}
	if len(req.RedirectURIs) == 0 {
		h.registerError(w, "invalid_redirect_uri", "at least one redirect_uri is required")
		return
	}
	for _, ru := range req.RedirectURIs {
		u, err := url.Parse(ru)
		if err != nil || !u.IsAbs() {
			h.registerError(w, "invalid_redirect_uri", "redirect_uri must be an absolute URI")
			return
		}
	}

	clientID := uuid.NewString()
	for _, ru := range req.RedirectURIs {
		h.Clients.Add(clients.Application{
			ClientID:    clientID,
			RedirectURI: ru,
			Name:        req.ClientName,
			URI:         req.ClientURI,
			LogoURI:     req.LogoURI,
			TosURI:      req.TosURI,
		})
	}

	logger.Infow("application registered",
		"client_id", clientID,
		"name", req.ClientName,
		"by", p.username(),
	)

	writeJSON(w, http.StatusCreated, "", oauth.ClientRegistrationResponse{
		ClientID:     clientID,
		RedirectURIs: req.RedirectURIs,
		ClientName:   req.ClientName,
		ClientURI:    req.ClientURI,
		LogoURI:      req.LogoURI,
		TosURI:       req.TosURI,
	})
}

func (h *Handler) registerError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, "", oauth.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}
