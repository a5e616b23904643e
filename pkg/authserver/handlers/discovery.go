package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/doorman-auth/doorman/pkg/authserver/crypto"
	"github.com/doorman-auth/doorman/pkg/authserver/keys"
	"github.com/doorman-auth/doorman/pkg/oauth"
)

// buildMetadata renders the discovery document once at startup. The
// registries it reads are fully populated before the handler is built.
func (h *Handler) buildMetadata() error {
	scopes := []string{oauth.ScopeOpenID}
	for _, s := range h.Resources.Scopes() {
		if !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}

	doc := oauth.DiscoveryDocument{
		AuthorizationServerMetadata: oauth.AuthorizationServerMetadata{
			Issuer:                h.Issuer,
			AuthorizationEndpoint: h.Issuer + "/authorize",
			TokenEndpoint:         h.Issuer + "/token",
			UserinfoEndpoint:      h.Issuer + "/userinfo",
			JWKSURI:               h.Issuer + "/.well-known/jwks.json",
			RegistrationEndpoint:  h.Issuer + "/register",
			IntrospectionEndpoint: h.Issuer + "/introspect",
			ScopesSupported:       scopes,
			ResponseTypesSupported: []string{
				oauth.ResponseTypeCode, "id_token", "token",
			},
			GrantTypesSupported: []string{
				oauth.GrantTypeAuthorizationCode,
				oauth.GrantTypePassword,
				oauth.GrantTypeRefreshToken,
			},
			CodeChallengeMethodsSupported:     []string{crypto.ChallengeMethodS256},
			TokenEndpointAuthMethodsSupported: []string{oauth.TokenEndpointAuthMethodNone},
		},
		SubjectTypesSupported:            []string{"pairwise", "public"},
		IDTokenSigningAlgValuesSupported: []string{keys.Algorithm},
		ClaimsSupported: []string{
			"email", "name", "phone_number", "preferred_username", "sub", "updated_at",
		},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode discovery document: %w", err)
	}
	h.metadata = data
	return nil
}

// Discovery serves the server metadata under both well-known paths. The
// text/json content type matches what existing clients of this protocol
// expect.
func (h *Handler) Discovery(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/json")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.metadata)
}

// JWKS serves the public signing keys.
func (h *Handler) JWKS(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "", h.Keys.PublicJWKS())
}
