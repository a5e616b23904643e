package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/doorman-auth/doorman/pkg/authn"
	"github.com/doorman-auth/doorman/pkg/authserver/tokens"
	"github.com/doorman-auth/doorman/pkg/logger"
)

// principal is the identity attached to a request by the identify
// middleware: a Bearer access token, a Basic identity, or neither.
type principal struct {
	token *tokens.Token
	ident *authn.Identity
}

// username returns the authenticated username, if any.
func (p *principal) username() string {
	switch {
	case p == nil:
		return ""
	case p.token != nil:
		return p.token.User
	case p.ident != nil:
		return p.ident.Username
	default:
		return ""
	}
}

// hasScope reports whether the principal may exercise the scope. A token
// carries an explicit scope set; a Basic identity proved the account password
// directly and is not scope-limited.
func (p *principal) hasScope(s string) bool {
	switch {
	case p == nil:
		return false
	case p.token != nil:
		return p.token.HasScope(s)
	case p.ident != nil:
		return true
	default:
		return false
	}
}

// uid returns the principal's numeric user id, or -1.
func (p *principal) uid() int {
	switch {
	case p == nil:
		return -1
	case p.token != nil:
		return p.token.UID
	case p.ident != nil:
		return p.ident.UID
	default:
		return -1
	}
}

// gids returns the principal's group list.
func (p *principal) gids() []int {
	switch {
	case p == nil:
		return nil
	case p.token != nil:
		return p.token.GIDs
	case p.ident != nil:
		return p.ident.GIDs
	default:
		return nil
	}
}

// memberOf reports whether the principal's identity belongs to the group.
func (p *principal) memberOf(gid int) bool {
	switch {
	case p == nil:
		return false
	case p.token != nil:
		return p.token.MemberOf(gid)
	case p.ident != nil:
		return p.ident.MemberOf(gid)
	default:
		return false
	}
}

type principalKey struct{}

// principalFrom returns the request's principal, or nil.
func principalFrom(r *http.Request) *principal {
	p, _ := r.Context().Value(principalKey{}).(*principal)
	return p
}

// preflight validates the request before dispatch: the Host header must name
// this server (case-insensitively, with a trailing dot tolerated, and any
// port present must match), and the path must not traverse upward.
func (h *Handler) preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pathTraverses(r.URL.Path) {
			logger.Infow("rejecting path traversal", "path", r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if h.ServerName != "" && !h.hostMatches(r.Host) {
			logger.Infow("rejecting bad Host header", "host", r.Host)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func pathTraverses(path string) bool {
	return path == ".." ||
		strings.Contains(path, "/../") ||
		strings.HasPrefix(path, "../") ||
		strings.HasSuffix(path, "/..")
}

func (h *Handler) hostMatches(host string) bool {
	if host == "" {
		return false
	}

	name := host
	if hp, port, err := net.SplitHostPort(host); err == nil {
		name = hp
		if p, err := strconv.Atoi(port); err != nil || p != h.ServerPort {
			return false
		}
	}

	return strings.EqualFold(strings.TrimSuffix(name, "."), h.ServerName)
}

// identify inspects the Authorization header and attaches a principal when
// it yields one. Invalid credentials never fail the request here; endpoints
// decide what an absent identity means.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, value, _ := strings.Cut(header, " ")
		value = strings.TrimSpace(value)

		var p *principal
		switch {
		case strings.EqualFold(scheme, "Bearer"):
			// Find removes expired tokens on sight; a wrong-kind
			// token is treated as missing.
			if t := h.Tokens.Find(value); t != nil && t.Kind == tokens.KindAccess {
				p = &principal{token: t}
			}

		case strings.EqualFold(scheme, "Basic") && h.BasicAuth:
			if ident := h.basicIdentity(r.Context(), value); ident != nil {
				p = &principal{ident: ident}
			}

		default:
			logger.Infow("ignoring unsupported authorization scheme", "scheme", scheme)
		}

		if p != nil {
			r = r.WithContext(context.WithValue(r.Context(), principalKey{}, p))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) basicIdentity(ctx context.Context, encoded string) *authn.Identity {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		logger.Infow("bad Basic authorization encoding")
		return nil
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		logger.Infow("malformed Basic credentials")
		return nil
	}

	ident, err := h.Auth.Authenticate(ctx, username, password)
	if err != nil {
		if !errors.Is(err, authn.ErrAccessDenied) {
			logger.Errorw("authenticator failure", "error", err)
		}
		logger.Infow("basic authentication failed", "user", username)
		return nil
	}
	return ident
}
