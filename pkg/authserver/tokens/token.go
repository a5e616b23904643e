// Package tokens implements the in-memory store of live OAuth tokens.
//
// Tokens exist only in memory; a restart invalidates everything. The store
// is guarded by a reader/writer lock: lookups take the read lock, creation,
// deletion, and the background expiry sweep take the write lock.
package tokens

import (
	"slices"
	"strings"
	"time"

	"github.com/doorman-auth/doorman/pkg/authn"
	"github.com/doorman-auth/doorman/pkg/authserver/clients"
)

// Kind is the kind of a token.
type Kind int

// Token kinds.
const (
	KindGrant   Kind = iota // authorization code, single use
	KindAccess              // bearer credential for resource access
	KindRenewal             // refresh token
)

// String returns the wire name of the kind ("grant", "access", "renewal").
func (k Kind) String() string {
	switch k {
	case KindGrant:
		return "grant"
	case KindAccess:
		return "access"
	case KindRenewal:
		return "renewal"
	default:
		return "unknown"
	}
}

// Token is a live token. Fields are fixed at creation; callers treat
// references returned by the store as read-only.
type Token struct {
	// ID is the opaque URL-safe identifier.
	ID string

	Kind Kind

	// Application is the client the token is bound to. Nil for access
	// tokens issued through the resource-owner password grant.
	Application *clients.Application

	// User is the authenticated username; UID and GIDs are the numeric
	// identity of the user at issuance.
	User string
	UID  int
	GIDs []int

	// Scope is the space-separated scope string; scopes is its exploded
	// form.
	Scope  string
	scopes []string

	// Challenge is the PKCE code_challenge bound at authorization time.
	// Grant tokens only.
	Challenge string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// HasScope reports whether the token's scope set contains s.
func (t *Token) HasScope(s string) bool {
	return slices.Contains(t.scopes, s)
}

// Scopes returns the exploded scope set.
func (t *Token) Scopes() []string {
	return slices.Clone(t.scopes)
}

// MemberOf reports whether the token's identity belongs to the given group.
func (t *Token) MemberOf(gid int) bool {
	return slices.Contains(t.GIDs, gid)
}

// Expired reports whether the token has expired at the given instant.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Identity reconstructs the numeric identity carried by the token.
func (t *Token) Identity() *authn.Identity {
	return &authn.Identity{
		Username: t.User,
		UID:      t.UID,
		GIDs:     slices.Clone(t.GIDs),
	}
}

// splitScope explodes a space-separated scope string, dropping duplicates
// while preserving order.
func splitScope(scope string) []string {
	var out []string
	for _, s := range strings.Fields(scope) {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
