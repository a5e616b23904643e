// Package resources keeps the registry of scope-tagged resources the server
// is willing to serve, and resolves request paths against it.
package resources

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/doorman-auth/doorman/pkg/logger"
)

// Type is the kind of a resource.
type Type int

// Resource types.
const (
	TypeDirectory     Type = iota // explicit directory
	TypeUserDirectory             // wildcard per-user directory
	TypeFile                      // explicit file
	TypeCachedFile                // file read into memory at registration
	TypeStaticBlob                // in-memory data
)

// Scope names. Resources outside these three are not created by this
// package.
const (
	ScopePublic  = "public"
	ScopePrivate = "private"
	ScopeShared  = "shared"
)

// UserToken is the placeholder in a user-directory local path that gets
// replaced with the authenticated username.
const UserToken = "*"

// Resource is one entry in the registry.
type Resource struct {
	Type       Type
	RemotePath string

	// LocalPath backs filesystem resource types. For TypeUserDirectory it
	// contains UserToken where the username is substituted.
	LocalPath string

	// ContentType is the MIME type; empty means sniff by extension.
	ContentType string

	// Scope is public, private, or shared.
	Scope string

	// Group restricts a shared resource to a POSIX group. Negative means
	// no group restriction.
	Group int

	// Data backs static blobs and cached files.
	Data []byte

	remoteLen int
}

// Match is the result of a successful lookup: the matched resource, the
// resolved local file name (empty for in-memory data), and file metadata.
type Match struct {
	Resource  *Resource
	LocalPath string
	Info      fs.FileInfo
}

// Registry is the thread-safe, insertion-ordered set of resources. Lookups
// vastly outnumber registrations, so it is guarded by a reader/writer lock.
type Registry struct {
	mu        sync.RWMutex
	resources []*Resource
	startTime time.Time
}

// NewRegistry returns an empty registry. The start time stamps synthetic
// file metadata for in-memory resources.
func NewRegistry(startTime time.Time) *Registry {
	return &Registry{startTime: startTime}
}

// Add registers a resource. For TypeCachedFile the local file is read
// immediately. The stored entry is returned.
func (r *Registry) Add(res Resource) (*Resource, error) {
	if res.Group == 0 && res.Scope != ScopeShared {
		res.Group = -1
	}
	res.remoteLen = len(res.RemotePath)

	if res.Type == TypeCachedFile {
		data, err := os.ReadFile(res.LocalPath)
		if err != nil {
			return nil, err
		}
		res.Data = data
	}

	added := res
	r.mu.Lock()
	r.resources = append(r.resources, &added)
	r.mu.Unlock()

	logger.Debugw("resource registered",
		"remote", res.RemotePath,
		"scope", res.Scope,
	)
	return &added, nil
}

// Find resolves a request path to the best (longest remote-path prefix)
// matching resource, ties broken by insertion order. For user-directory
// resources the username is substituted into the local path. Filesystem
// types are also stat'd; a missing file means no match.
func (r *Registry) Find(path, username string) *Match {
	best := r.match(path)
	if best == nil {
		return nil
	}

	switch best.Type {
	case TypeStaticBlob, TypeCachedFile:
		return &Match{
			Resource: best,
			Info:     blobInfo{name: path, size: int64(len(best.Data)), mtime: r.startTime},
		}
	}

	local := best.LocalPath
	if best.Type == TypeUserDirectory {
		if username == "" {
			return nil
		}
		local = strings.Replace(local, UserToken, username, 1)
	}

	// Map the request suffix under the local path for directory types.
	if rest := strings.TrimPrefix(path[best.remoteLen:], "/"); rest != "" {
		local = filepath.Join(local, rest)
	}

	info, err := os.Stat(local)
	if err != nil {
		return nil
	}
	if info.IsDir() && best.Type == TypeFile {
		return nil
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil
	}

	return &Match{Resource: best, LocalPath: local, Info: info}
}

// match finds the longest-prefix resource for the path under the read lock.
func (r *Registry) match(path string) *Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Resource
	for _, res := range r.resources {
		if !prefixMatch(path, res) {
			continue
		}
		if best == nil || res.remoteLen > best.remoteLen {
			best = res
		}
	}
	return best
}

// prefixMatch reports whether the request path falls under the resource's
// remote path. Directory types match any path below their prefix; file-like
// types require an exact match.
func prefixMatch(path string, res *Resource) bool {
	switch res.Type {
	case TypeDirectory, TypeUserDirectory:
		if res.RemotePath == "/" {
			return strings.HasPrefix(path, "/")
		}
		if !strings.HasPrefix(path, res.RemotePath) {
			return false
		}
		rest := path[res.remoteLen:]
		return rest == "" || rest[0] == '/'
	default:
		return path == res.RemotePath
	}
}

// Scopes returns the distinct scope names of all registered resources, in
// first-seen order.
func (r *Registry) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	seen := make(map[string]bool)
	for _, res := range r.resources {
		if !seen[res.Scope] {
			seen[res.Scope] = true
			out = append(out, res.Scope)
		}
	}
	return out
}

// blobInfo is synthetic file metadata for in-memory resources.
type blobInfo struct {
	name  string
	size  int64
	mtime time.Time
}

func (b blobInfo) Name() string       { return b.name }
func (b blobInfo) Size() int64        { return b.size }
func (b blobInfo) Mode() fs.FileMode  { return 0o444 }
func (b blobInfo) ModTime() time.Time { return b.mtime }
func (b blobInfo) IsDir() bool        { return false }
func (b blobInfo) Sys() any           { return nil }
