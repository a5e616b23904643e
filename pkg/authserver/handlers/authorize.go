package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/doorman-auth/doorman/pkg/authn"
	"github.com/doorman-auth/doorman/pkg/authserver/clients"
	"github.com/doorman-auth/doorman/pkg/authserver/crypto"
	"github.com/doorman-auth/doorman/pkg/authserver/tokens"
	"github.com/doorman-auth/doorman/pkg/logger"
	"github.com/doorman-auth/doorman/pkg/oauth"
)

// authRequest is a validated authorization request, shared by the GET form
// and the POST submission.
type authRequest struct {
	app         *clients.Application
	redirectURI string
	scope       string
	state       string
	challenge   string
}

// parseAuthRequest validates the authorization parameters per RFC 6749 §4.1
// and RFC 7636. It returns an error for anything that must produce a 400.
func (h *Handler) parseAuthRequest(form url.Values) (*authRequest, error) {
	clientID := form.Get("client_id")
	if clientID == "" {
		return nil, errors.New("missing client_id")
	}

	if rt := form.Get("response_type"); rt != oauth.ResponseTypeCode {
		return nil, errors.New("response_type must be code")
	}

	redirectURI := form.Get("redirect_uri")
	app := h.Clients.Find(clientID, redirectURI)
	if app == nil {
		return nil, errors.New("unknown client")
	}

	scope := form.Get("scope")
	if scope == "" {
		scope = DefaultScope
	}
	// ID token issuance is not implemented; refuse to grant a scope that
	// promises one rather than silently dropping it.
	for _, s := range strings.Fields(scope) {
		if s == oauth.ScopeOpenID {
			return nil, errors.New("openid scope not supported")
		}
	}

	challenge := form.Get("code_challenge")
	if method := form.Get("code_challenge_method"); method != "" && method != crypto.ChallengeMethodS256 {
		return nil, errors.New("code_challenge_method must be S256")
	}

	ru := redirectURI
	if ru == "" {
		ru = app.RedirectURI
	}

	return &authRequest{
		app:         app,
		redirectURI: ru,
		scope:       scope,
		state:       form.Get("state"),
		challenge:   challenge,
	}, nil
}

// loginForm is the minimal HTML login page. It posts back to /authorize and
// carries every authorization parameter forward as hidden fields.
var loginForm = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
  <head>
    <link rel="stylesheet" type="text/css" href="/style.css">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authorize {{.Name}}</title>
  </head>
  <body>
    <div class="body">
      <h1>Authorize {{.Name}}</h1>
      <form method="POST" action="/authorize">
        {{- range $k, $v := .Hidden}}
        <input type="hidden" name="{{$k}}" value="{{$v}}">
        {{- end}}
        <p><label>Username: <input type="text" name="username" autocomplete="username"></label></p>
        <p><label>Password: <input type="password" name="password" autocomplete="current-password"></label></p>
        <p><input type="submit" value="Sign In"></p>
      </form>
    </div>
  </body>
</html>
`))

// AuthorizeForm handles GET /authorize: validate the request, then present
// the login form.
func (h *Handler) AuthorizeForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		fail(w, http.StatusBadRequest)
		return
	}

	req, err := h.parseAuthRequest(r.Form)
	if err != nil {
		logger.Infow("rejecting authorization request", "error", err)
		fail(w, http.StatusBadRequest)
		return
	}

	hidden := map[string]string{
		"client_id":     req.app.ClientID,
		"redirect_uri":  req.redirectURI,
		"response_type": oauth.ResponseTypeCode,
		"scope":         req.scope,
	}
	if req.state != "" {
		hidden["state"] = req.state
	}
	if req.challenge != "" {
		hidden["code_challenge"] = req.challenge
		hidden["code_challenge_method"] = crypto.ChallengeMethodS256
	}

	name := req.app.Name
	if name == "" {
		name = req.app.ClientID
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := loginForm.Execute(w, struct {
		Name   string
		Hidden map[string]string
	}{name, hidden}); err != nil {
		logger.Errorw("failed to render login form", "error", err)
	}
}

// AuthorizeSubmit handles POST /authorize: authenticate the resource owner
// and redirect back to the application with a grant code or an error.
func (h *Handler) AuthorizeSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		fail(w, http.StatusBadRequest)
		return
	}

	req, err := h.parseAuthRequest(r.PostForm)
	if err != nil {
		logger.Infow("rejecting authorization submission", "error", err)
		fail(w, http.StatusBadRequest)
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	ident, err := h.Auth.Authenticate(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, authn.ErrAccessDenied) {
			logger.Errorw("authenticator failure", "error", err)
		}
		logger.Infow("authorization denied", "user", username, "client_id", req.app.ClientID)
		h.redirectError(w, r, req, "access_denied")
		return
	}

	grant := h.Tokens.Create(tokens.KindGrant, req.app, ident, req.scope, req.challenge)
	if grant == nil {
		h.redirectError(w, r, req, "server_error")
		return
	}

	logger.Infow("grant issued", "user", username, "client_id", req.app.ClientID)

	params := url.Values{"code": {grant.ID}}
	if req.state != "" {
		params.Set("state", req.state)
	}
	http.Redirect(w, r, appendQuery(req.redirectURI, params), http.StatusFound)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, req *authRequest, code string) {
	params := url.Values{"error": {code}}
	if req.state != "" {
		params.Set("state", req.state)
	}
	http.Redirect(w, r, appendQuery(req.redirectURI, params), http.StatusFound)
}

// appendQuery attaches params to uri, using '&' when the URI already
// carries a query string.
func appendQuery(uri string, params url.Values) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + params.Encode()
}
