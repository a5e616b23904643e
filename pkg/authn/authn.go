// Package authn defines the authentication capability the authorization
// server depends on: given a username and password, decide whether the pair
// is valid and return the numeric identity of the account.
//
// The production back-end (PAM or an equivalent system service) lives
// outside this module; it plugs in by implementing [Authenticator]. The
// package ships the OS account lookup shared by all back-ends and a static
// password implementation used with the TestPassword directive.
package authn

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"slices"
	"strconv"
)

// MaxGroups caps the number of supplementary groups recorded per identity.
const MaxGroups = 100

// ErrAccessDenied is returned when the username/password pair is not valid.
var ErrAccessDenied = errors.New("access denied")

// Identity is the numeric identity of an authenticated user.
type Identity struct {
	Username string
	UID      int
	GIDs     []int

	// RealName is the account's display name (GECOS field), if any.
	RealName string
}

// MemberOf reports whether the identity belongs to the given group.
func (id *Identity) MemberOf(gid int) bool {
	return slices.Contains(id.GIDs, gid)
}

// Authenticator validates a username/password pair.
type Authenticator interface {
	// Authenticate returns the identity on success and ErrAccessDenied
	// when the credentials are not valid.
	Authenticate(ctx context.Context, username, password string) (*Identity, error)
}

// Lookup resolves a username against the OS account database without
// checking any password. The group list is capped at MaxGroups.
func Lookup(username string) (*Identity, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return nil, fmt.Errorf("unknown user %q: %w", username, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("non-numeric uid %q for %q", u.Uid, username)
	}

	groups, err := u.GroupIds()
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for %q: %w", username, err)
	}
	if len(groups) > MaxGroups {
		groups = groups[:MaxGroups]
	}

	gids := make([]int, 0, len(groups))
	for _, g := range groups {
		gid, err := strconv.Atoi(g)
		if err != nil {
			continue
		}
		gids = append(gids, gid)
	}

	return &Identity{
		Username: username,
		UID:      uid,
		GIDs:     gids,
		RealName: u.Name,
	}, nil
}

// LookupGroup resolves a group directive value (name or numeric gid) to a
// numeric gid.
func LookupGroup(nameOrGID string) (int, error) {
	if gid, err := strconv.Atoi(nameOrGID); err == nil {
		return gid, nil
	}
	g, err := user.LookupGroup(nameOrGID)
	if err != nil {
		return 0, fmt.Errorf("unknown group %q: %w", nameOrGID, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, fmt.Errorf("non-numeric gid %q for group %q", g.Gid, nameOrGID)
	}
	return gid, nil
}

// Static accepts any OS account paired with one fixed password. It backs the
// TestPassword configuration directive and exists for tests; it performs the
// same OS account lookup a real back-end would.
type Static struct {
	Password string
}

// Authenticate implements Authenticator.
func (a *Static) Authenticate(_ context.Context, username, password string) (*Identity, error) {
	if a.Password == "" || password != a.Password {
		return nil, ErrAccessDenied
	}
	ident, err := Lookup(username)
	if err != nil {
		return nil, ErrAccessDenied
	}
	return ident, nil
}

// Deny rejects every credential pair. It is the fallback when no back-end is
// configured, so a misconfigured server fails closed.
type Deny struct{}

// Authenticate implements Authenticator.
func (Deny) Authenticate(context.Context, string, string) (*Identity, error) {
	return nil, ErrAccessDenied
}

var (
	_ Authenticator = (*Static)(nil)
	_ Authenticator = Deny{}
)
